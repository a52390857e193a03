// Package render emits the HTML, Markdown, and JSON serializations of a
// cleaned article. HTML is the canonical form: Markdown derives from it
// through one converter rather than a second hand-written renderer, and JSON
// is a direct marshal of the validated article object.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"regexp"
	"strconv"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hyperifyio/contentforge/internal/jobmodel"
	"github.com/hyperifyio/contentforge/internal/slugify"
)

// Options carries the batch-level metadata the serializations embed.
type Options struct {
	Authors      []jobmodel.AuthorInfo
	CanonicalURL string
	SiteName     string
}

// Renderer sanitizes body fragments and fills the page template. One
// Renderer is safe for concurrent use.
type Renderer struct {
	policy *bluemonday.Policy
	tmpl   *template.Template
	conv   *md.Converter
}

// New builds a Renderer with the article sanitization policy: semantic
// landmarks, headings, lists, tables, figures with alt text, and citation
// anchors; scripts in body fragments are always stripped (the page's single
// JSON-LD block is emitted by the template, never by the model).
func New() *Renderer {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("section", "article", "figure", "figcaption", "sup")
	policy.AllowAttrs("id").OnElements("section", "h2", "h3")
	policy.AllowAttrs("class").OnElements("a", "sup")
	policy.AllowAttrs("alt", "src", "width", "height").OnElements("img")

	return &Renderer{
		policy: policy,
		tmpl:   template.Must(template.New("article").Parse(pageTemplate)),
		conv:   md.NewConverter("", true, nil),
	}
}

var citationMarker = regexp.MustCompile(`\[(\d+)\]`)

// linkMarkers rewrites [k] citation markers into superscripted source
// anchors so no raw marker survives in visible text.
func linkMarkers(fragment string) string {
	return citationMarker.ReplaceAllStringFunc(fragment, func(m string) string {
		k, err := strconv.Atoi(strings.Trim(m, "[]"))
		if err != nil {
			return m
		}
		return fmt.Sprintf(`<sup class="citation"><a href="#source-%d">%d</a></sup>`, k, k)
	})
}

type pageSection struct {
	Heading     string
	Anchor      string
	Body        template.HTML
	Subsections []pageSection
}

type pageImage struct {
	Slot string
	URL  string
	Alt  string
}

type pageData struct {
	Headline        string
	MetaDescription string
	Lead            template.HTML
	TOC             []jobmodel.TOCEntry
	Sections        []pageSection
	FAQ             []qaPair
	PAA             []qaPair
	Citations       []jobmodel.Source
	Comparison      *jobmodel.ComparisonTable
	Hero            *pageImage
	Mid             *pageImage
	Bottom          *pageImage
	PublishedAt     string
	JSONLD          template.JS
	SiteName        string
	CanonicalURL    string
}

type qaPair struct {
	Question string
	Answer   template.HTML
}

// HTML renders the full page document.
func (r *Renderer) HTML(a *jobmodel.ArticleOutput, opts Options) ([]byte, error) {
	data := pageData{
		Headline:        a.Headline,
		MetaDescription: a.MetaDescription,
		Lead:            r.fragment(a.Lead),
		TOC:             a.TOC,
		Citations:       a.Citations,
		Comparison:      a.ComparisonTable,
		PublishedAt:     a.PublishedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		SiteName:        opts.SiteName,
		CanonicalURL:    opts.CanonicalURL,
	}
	data.Sections = r.sections(a.Sections)
	for _, qa := range a.FAQ {
		data.FAQ = append(data.FAQ, qaPair{Question: qa.Question, Answer: r.fragment(qa.Answer)})
	}
	for _, qa := range a.PAA {
		data.PAA = append(data.PAA, qaPair{Question: qa.Question, Answer: r.fragment(qa.Answer)})
	}
	for i := range a.Images {
		img := a.Images[i]
		if img.URL == "" {
			continue // missing images are omitted, never broken references
		}
		p := &pageImage{Slot: string(img.Slot), URL: img.URL, Alt: img.Alt}
		switch img.Slot {
		case jobmodel.SlotHero:
			data.Hero = p
		case jobmodel.SlotMid:
			data.Mid = p
		case jobmodel.SlotBottom:
			data.Bottom = p
		}
	}

	ld, err := jsonLD(a, opts)
	if err != nil {
		return nil, jobmodel.Wrap(jobmodel.KindIO, "render: build json-ld", err)
	}
	data.JSONLD = template.JS(ld)

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return nil, jobmodel.Wrap(jobmodel.KindIO, "render: execute template", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) sections(in []jobmodel.Section) []pageSection {
	out := make([]pageSection, 0, len(in))
	for _, s := range in {
		out = append(out, pageSection{
			Heading:     s.Heading,
			Anchor:      slugify.Slug(s.Heading),
			Body:        r.fragment(s.Body),
			Subsections: r.sections(s.Subsections),
		})
	}
	return out
}

// fragment sanitizes one body fragment and links its citation markers. This
// is the single point where body fragments are sanitized; the plain-text
// fields are escaped by html/template.
func (r *Renderer) fragment(s string) template.HTML {
	return template.HTML(r.policy.Sanitize(linkMarkers(s)))
}

// Markdown derives the Markdown export from the canonical HTML.
func (r *Renderer) Markdown(a *jobmodel.ArticleOutput, opts Options) ([]byte, error) {
	page, err := r.HTML(a, opts)
	if err != nil {
		return nil, err
	}
	out, err := r.conv.ConvertString(string(page))
	if err != nil {
		return nil, jobmodel.Wrap(jobmodel.KindIO, "render: convert markdown", err)
	}
	return []byte(out), nil
}

// JSON marshals the validated article object.
func (r *Renderer) JSON(a *jobmodel.ArticleOutput) ([]byte, error) {
	out, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, jobmodel.Wrap(jobmodel.KindIO, "render: marshal article", err)
	}
	return out, nil
}

// jsonLD builds the single Article structured-data block.
func jsonLD(a *jobmodel.ArticleOutput, opts Options) (string, error) {
	type person struct {
		Type string `json:"@type"`
		Name string `json:"name"`
	}
	authors := make([]person, 0, len(opts.Authors))
	for _, au := range opts.Authors {
		authors = append(authors, person{Type: "Person", Name: au.Name})
	}
	doc := map[string]any{
		"@context":      "https://schema.org",
		"@type":         "Article",
		"headline":      a.Headline,
		"description":   a.MetaDescription,
		"datePublished": a.PublishedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if len(authors) > 0 {
		doc["author"] = authors
	}
	if opts.CanonicalURL != "" {
		doc["mainEntityOfPage"] = map[string]any{"@type": "WebPage", "@id": opts.CanonicalURL}
	}
	out, err := json.Marshal(doc)
	return string(out), err
}
