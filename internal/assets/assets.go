// Package assets finds a deduplicated, diverse list of image references for
// an article topic. The primary path asks the grounded text LLM for
// candidates; SERP-image providers serve as fallback when the primary yields
// nothing usable.
package assets

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/contentforge/internal/imagegen"
	"github.com/hyperifyio/contentforge/internal/jobmodel"
	"github.com/hyperifyio/contentforge/internal/provider/router"
	"github.com/hyperifyio/contentforge/internal/provider/serpimages"
	"github.com/hyperifyio/contentforge/internal/provider/textllm"
)

// assetListSchema constrains the primary-path LLM reply. The array lives
// under "assets" so the reply stays a single JSON object.
const assetListSchema = `{
  "type": "object",
  "properties": {
    "assets": {"type": "array", "items": {"type": "object", "properties": {
      "url": {"type": "string"},
      "title": {"type": "string"},
      "description": {"type": "string"},
      "source_site": {"type": "string"},
      "kind": {"type": "string"},
      "width": {"type": "integer"},
      "height": {"type": "integer"},
      "license": {"type": "string"}
    }, "required": ["url"]}}
  },
  "required": ["assets"]
}`

// imageHostDomains are accepted even without a recognized image extension.
var imageHostDomains = []string{
	"unsplash.com", "pexels.com", "pixabay.com", "imgur.com",
	"flickr.com", "gettyimages.com", "shutterstock.com",
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg"}

// Request describes one asset search.
type Request struct {
	Topic       string
	SectionHint string
	Company     *jobmodel.CompanyContext
	Max         int
	Language    string
	Market      string
	// RecreateInBrandStyle synthesizes brand-styled versions of up to 3 kept
	// assets via the image generator.
	RecreateInBrandStyle bool
}

// Finder runs the asset pipeline.
type Finder struct {
	LLM       *textllm.Provider
	Model     string
	Primary   serpimages.Searcher
	Secondary serpimages.Searcher
	Imagegen  *imagegen.Generator
}

// Result is the found (and optionally recreated) asset set plus the router's
// attempt trail for the stage report.
type Result struct {
	Assets []jobmodel.FoundAsset
	Report jobmodel.StageReport
}

// Find produces at most req.Max found assets: LLM primary, SERP fallback, URL
// validation, diversity filter. With brand-style recreation on, the recreated
// assets are appended after them, so the result can hold more than req.Max.
func (f *Finder) Find(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return Result{}, jobmodel.New(jobmodel.KindInputInvalid, "assets: empty topic")
	}
	max := req.Max
	if max <= 0 {
		max = 6
	}

	report := jobmodel.StageReport{StageID: "image-search", Status: jobmodel.StatusOK}

	candidates := f.findViaLLM(ctx, req, max)
	if len(candidates) > 0 {
		report.Details = "llm: ok"
	} else {
		serpHits, serpReport, err := f.findViaSERP(ctx, req, max)
		report.Details = "llm: no usable candidates; " + serpReport.Details
		if err != nil {
			report.Status = serpReport.Status
			return Result{Report: report}, err
		}
		candidates = serpHits
	}

	kept := diversityFilter(candidates, max)

	if req.RecreateInBrandStyle && f.Imagegen != nil {
		kept = append(kept, f.recreate(ctx, kept, req)...)
	}
	return Result{Assets: kept, Report: report}, nil
}

// findViaLLM asks the grounded text LLM for a JSON candidate list. Errors
// degrade to an empty slice so the SERP fallback can take over.
func (f *Finder) findViaLLM(ctx context.Context, req Request, max int) []jobmodel.FoundAsset {
	if f.LLM == nil {
		return nil
	}
	system := "You find visual assets for blog articles. Reply with ONLY a JSON object, no prose."
	user := buildSearchQueryPrompt(req, max)

	res, err := f.LLM.Generate(ctx, system, user, textllm.Options{
		Model:           f.Model,
		Schema:          json.RawMessage(assetListSchema),
		EnableWebSearch: true,
	})
	if err != nil {
		log.Debug().Err(err).Msg("assets: LLM primary failed, falling back to SERP")
		return nil
	}

	var parsed struct {
		Assets []jobmodel.FoundAsset `json:"assets"`
	}
	if err := json.Unmarshal(res.Structured, &parsed); err != nil {
		log.Debug().Err(err).Msg("assets: LLM reply not decodable, falling back to SERP")
		return nil
	}

	out := make([]jobmodel.FoundAsset, 0, len(parsed.Assets))
	for _, a := range parsed.Assets {
		if !validImageURL(a.URL) {
			continue
		}
		if a.Kind == "" {
			a.Kind = jobmodel.KindPhoto
		}
		out = append(out, a)
	}
	return out
}

// findViaSERP tries the image-SERP providers through the fallback router.
func (f *Finder) findViaSERP(ctx context.Context, req Request, max int) ([]jobmodel.FoundAsset, jobmodel.StageReport, error) {
	var cands []router.Candidate[[]serpimages.ImageHit]
	for _, s := range []serpimages.Searcher{f.Primary, f.Secondary} {
		if s == nil || !s.IsConfigured() {
			continue
		}
		searcher := s
		cands = append(cands, router.Candidate[[]serpimages.ImageHit]{
			Name: searcher.Name(),
			Call: func(ctx context.Context) ([]serpimages.ImageHit, error) {
				return searcher.SearchImages(ctx, serpimages.Query{
					Query:    buildSearchQuery(req),
					Max:      max * 2, // overfetch so the diversity filter has room
					Language: req.Language,
					Market:   req.Market,
				})
			},
		})
	}

	hits, report, err := router.Try(ctx, "image-search", cands)
	if err != nil {
		return nil, report, err
	}

	out := make([]jobmodel.FoundAsset, 0, len(hits))
	for _, h := range hits {
		if !validImageURL(h.URL) {
			continue
		}
		out = append(out, jobmodel.FoundAsset{
			URL:        h.URL,
			Title:      h.Title,
			SourceSite: h.SourceSite,
			Kind:       jobmodel.KindPhoto,
			Width:      h.Width,
			Height:     h.Height,
			License:    h.License,
		})
	}
	return out, report, nil
}

// recreate synthesizes brand-styled versions of up to 3 kept assets. Failed
// generations are skipped, never fatal.
func (f *Finder) recreate(ctx context.Context, kept []jobmodel.FoundAsset, req Request) []jobmodel.FoundAsset {
	industry, tone := "", ""
	if req.Company != nil {
		industry = req.Company.Industry
		tone = req.Company.Tone
	}

	limit := 3
	if len(kept) < limit {
		limit = len(kept)
	}
	var out []jobmodel.FoundAsset
	for i := 0; i < limit; i++ {
		orig := kept[i]
		prompt := recreationPrompt(orig.Title, orig.Description, industry, tone)
		gen, err := f.Imagegen.Generate(ctx, prompt, jobmodel.SlotMid)
		if err != nil {
			log.Debug().Err(err).Str("asset", orig.URL).Msg("assets: recreation failed, keeping original only")
			continue
		}
		from := orig.URL
		out = append(out, jobmodel.FoundAsset{
			URL:           "generated:" + string(gen.Slot) + "/" + orig.Title,
			Title:         orig.Title + " (brand style)",
			Description:   orig.Description,
			SourceSite:    "generated",
			Kind:          jobmodel.KindIllustration,
			RecreatedFrom: &from,
		})
	}
	return out
}

// buildSearchQuery assembles the SERP query: topic + section hint +
// image-type hints + stock-site hints + industry.
func buildSearchQuery(req Request) string {
	parts := []string{req.Topic}
	if req.SectionHint != "" {
		parts = append(parts, req.SectionHint)
	}
	parts = append(parts, "photo illustration infographic", "unsplash pexels pixabay free")
	if req.Company != nil && req.Company.Industry != "" {
		parts = append(parts, req.Company.Industry)
	}
	return strings.Join(parts, " ")
}

func buildSearchQueryPrompt(req Request, max int) string {
	var b strings.Builder
	b.WriteString("Find up to ")
	b.WriteString(strconv.Itoa(max))
	b.WriteString(" high-quality images for a blog article.\n\nTopic: ")
	b.WriteString(req.Topic)
	if req.SectionHint != "" {
		b.WriteString("\nSection: ")
		b.WriteString(req.SectionHint)
	}
	if req.Company != nil && req.Company.Industry != "" {
		b.WriteString("\nIndustry: ")
		b.WriteString(req.Company.Industry)
	}
	b.WriteString("\n\nPrefer free stock photo sites (Unsplash, Pexels, Pixabay). ")
	b.WriteString("Avoid logos, icons, and watermarked images. ")
	b.WriteString(`Reply with {"assets": [{"url", "title", "description", "source_site", "kind", "width", "height", "license"}]}. `)
	b.WriteString(`kind is one of photo, illustration, infographic, chart, diagram.`)
	return b.String()
}

// validImageURL accepts HTTP(S) URLs that carry a recognized image extension
// or point at a known image-hosting domain.
func validImageURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	lower := strings.ToLower(raw)
	for _, ext := range imageExtensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	host := strings.ToLower(u.Host)
	for _, domain := range imageHostDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// diversityFilter drops duplicate URLs, caps 2 per domain and 2 per source
// site, and truncates to max, preserving input order.
func diversityFilter(in []jobmodel.FoundAsset, max int) []jobmodel.FoundAsset {
	seen := make(map[string]struct{})
	domainCount := make(map[string]int)
	sourceCount := make(map[string]int)

	out := make([]jobmodel.FoundAsset, 0, max)
	for _, a := range in {
		if _, dup := seen[a.URL]; dup {
			continue
		}
		seen[a.URL] = struct{}{}

		domain := ""
		if u, err := url.Parse(a.URL); err == nil {
			domain = strings.ToLower(u.Host)
		}
		if domain != "" && domainCount[domain] >= 2 {
			continue
		}
		if a.SourceSite != "" && sourceCount[strings.ToLower(a.SourceSite)] >= 2 {
			continue
		}
		if domain != "" {
			domainCount[domain]++
		}
		if a.SourceSite != "" {
			sourceCount[strings.ToLower(a.SourceSite)]++
		}

		out = append(out, a)
		if len(out) >= max {
			break
		}
	}
	return out
}
