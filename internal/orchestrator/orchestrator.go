// Package orchestrator schedules the two-phase pipeline: one shared context
// phase (sitemap crawl + company resolution, concurrent), then a bounded
// fan-out of per-article workers. Workers are independent; one failure never
// cancels siblings, and results always come back in input order.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hyperifyio/contentforge/internal/article"
	"github.com/hyperifyio/contentforge/internal/artifacts"
	"github.com/hyperifyio/contentforge/internal/assets"
	"github.com/hyperifyio/contentforge/internal/config"
	"github.com/hyperifyio/contentforge/internal/imagegen"
	"github.com/hyperifyio/contentforge/internal/jobmodel"
	"github.com/hyperifyio/contentforge/internal/postprocess"
	"github.com/hyperifyio/contentforge/internal/quality"
	"github.com/hyperifyio/contentforge/internal/render"
	"github.com/hyperifyio/contentforge/internal/slugify"
)

// SitemapCrawler is the shared-context sitemap stage. Failures degrade; a
// nil crawler means no sitemap data.
type SitemapCrawler interface {
	Crawl(ctx context.Context, baseURL string) (jobmodel.SitemapData, error)
}

// CompanyResolver is the shared-context company stage; its failure aborts
// the batch.
type CompanyResolver interface {
	Resolve(ctx context.Context, companyURL string) (jobmodel.CompanyContext, error)
}

// ArticleGenerator is the per-article generation stage.
type ArticleGenerator interface {
	Generate(ctx context.Context, company jobmodel.CompanyContext, sitemap jobmodel.SitemapData, job jobmodel.ArticleJob, opts article.GenerateOptions) (*jobmodel.ArticleOutput, error)
}

// AssetFinder is the optional image-reference stage.
type AssetFinder interface {
	Find(ctx context.Context, req assets.Request) (assets.Result, error)
}

// ImageGenerator is the optional raster-image stage.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string, slot jobmodel.ImageSlot) (imagegen.Generated, error)
}

// ArticleWriter persists one article's serialized artifacts.
type ArticleWriter interface {
	WriteArticle(slug string, files artifacts.ArticleFiles) error
	WriteBatch(report jobmodel.BatchReport) error
}

// Orchestrator wires the stages together. Sitemap, Assets, Images, and
// Writer are optional; Company, Articles, and Renderer are required.
type Orchestrator struct {
	Sitemap  SitemapCrawler
	Company  CompanyResolver
	Articles ArticleGenerator
	Assets   AssetFinder
	Images   ImageGenerator
	Renderer *render.Renderer
	Writer   ArticleWriter

	// Legal optionally pins mandated citations and feeds the prompt builder.
	Legal *jobmodel.LegalResearch

	ForbidDashes bool

	// PerArticleTimeout defaults to 10 minutes, BatchTimeout to 60.
	PerArticleTimeout time.Duration
	BatchTimeout      time.Duration
}

// Run executes one batch. The returned error is non-nil only for fatal
// batch-level failures (invalid input, company context); per-article
// failures are reported through the BatchReport instead.
func (o *Orchestrator) Run(ctx context.Context, in jobmodel.BatchInput) (jobmodel.BatchReport, error) {
	start := time.Now()

	if err := config.Validate(&in); err != nil {
		return jobmodel.BatchReport{}, err
	}
	in.Normalize()

	batchTimeout := o.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 60 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	report := jobmodel.BatchReport{ArticlesTotal: len(in.Keywords)}

	// Phase A: sitemap and company context are independent; run both to
	// completion and handle their errors separately. The errgroup is used
	// purely as a join point, so neither stage's error cancels the other.
	var (
		sitemapData jobmodel.SitemapData
		sitemapErr  error
		company     jobmodel.CompanyContext
		companyErr  error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if o.Sitemap == nil {
			return nil
		}
		sitemapData, sitemapErr = o.Sitemap.Crawl(gctx, in.CompanyURL)
		return nil
	})
	g.Go(func() error {
		company, companyErr = o.Company.Resolve(gctx, in.CompanyURL)
		return nil
	})
	_ = g.Wait()

	if sitemapErr != nil {
		sitemapData = jobmodel.SitemapData{}
		report.SharedReports = append(report.SharedReports, jobmodel.StageReport{
			StageID: "sitemap", Status: jobmodel.StatusWarn,
			Details: "crawl failed, continuing without sitemap: " + sitemapErr.Error(),
		})
	} else if o.Sitemap != nil {
		report.SharedReports = append(report.SharedReports, jobmodel.StageReport{
			StageID: "sitemap", Status: jobmodel.StatusOK,
			Details: fmt.Sprintf("%d urls", len(sitemapData.Entries)),
		})
	}
	if companyErr != nil {
		report.SharedReports = append(report.SharedReports, jobmodel.StageReport{
			StageID: "company-context", Status: jobmodel.StatusFail, Details: companyErr.Error(),
		})
		report.WallTime = time.Since(start)
		o.writeBatch(&report)
		return report, companyErr
	}
	report.SharedReports = append(report.SharedReports, jobmodel.StageReport{
		StageID: "company-context", Status: jobmodel.StatusOK, Details: company.Name,
	})

	jobs := makeJobs(in)

	// Phase B: bounded fan-out, one worker per article. Results land in a
	// pre-sized slice indexed by input position so output order equals input
	// order regardless of completion order.
	report.Results = make([]jobmodel.ArticleResult, len(jobs))
	sem := semaphore.NewWeighted(int64(in.MaxParallel))
	var workers errgroup.Group
	for i := range jobs {
		i := i
		workers.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				report.Results[i] = jobmodel.ArticleResult{
					Job: jobs[i], Status: jobmodel.StatusSkipped,
					Reports: []jobmodel.StageReport{{StageID: "worker", Status: jobmodel.StatusSkipped, Details: "batch cancelled before start"}},
				}
				return nil
			}
			defer sem.Release(1)
			if ctx.Err() != nil {
				report.Results[i] = jobmodel.ArticleResult{
					Job: jobs[i], Status: jobmodel.StatusSkipped,
					Reports: []jobmodel.StageReport{{StageID: "worker", Status: jobmodel.StatusSkipped, Details: "batch cancelled before start"}},
				}
				return nil
			}
			report.Results[i] = o.runArticle(ctx, company, sitemapData, jobs[i], in)
			return nil
		})
	}
	_ = workers.Wait()

	for _, r := range report.Results {
		switch r.Status {
		case jobmodel.StatusOK, jobmodel.StatusWarn:
			report.ArticlesSuccessful++
		case jobmodel.StatusFail, jobmodel.StatusCancelled:
			report.ArticlesFailed++
		}
	}
	report.WallTime = time.Since(start)
	o.writeBatch(&report)

	log.Info().
		Int("total", report.ArticlesTotal).
		Int("successful", report.ArticlesSuccessful).
		Int("failed", report.ArticlesFailed).
		Dur("wall", report.WallTime).
		Msg("batch complete")
	return report, nil
}

func (o *Orchestrator) writeBatch(report *jobmodel.BatchReport) {
	if o.Writer == nil {
		return
	}
	if err := o.Writer.WriteBatch(*report); err != nil {
		log.Warn().Err(err).Msg("writing batch report failed")
	}
}

// makeJobs derives one ArticleJob per keyword with batch-unique slugs:
// collisions get a numeric suffix in input order.
func makeJobs(in jobmodel.BatchInput) []jobmodel.ArticleJob {
	unique := slugify.NewUnique()
	jobs := make([]jobmodel.ArticleJob, 0, len(in.Keywords))
	for _, spec := range in.Keywords {
		slug := unique.Next(spec.Keyword)
		wc := spec.WordCount
		if wc <= 0 {
			wc = in.DefaultWordCount
		}
		if wc <= 0 {
			wc = 2000
		}
		jobs = append(jobs, jobmodel.ArticleJob{
			JobID:           uuid.NewString(),
			KeywordSpec:     spec,
			Slug:            slug,
			Href:            "./" + slug + "/",
			WordCountTarget: wc,
		})
	}
	return jobs
}

// statusForErr distinguishes cancellation from ordinary failure for a stage
// report.
func statusForErr(ctx context.Context, err error) jobmodel.StageStatus {
	if jobmodel.IsKind(err, jobmodel.KindCancelled) || errors.Is(err, context.Canceled) || ctx.Err() == context.Canceled {
		return jobmodel.StatusCancelled
	}
	return jobmodel.StatusFail
}

// runArticle executes the strict per-article stage sequence:
// generate -> assets -> images -> postprocess -> render -> quality.
func (o *Orchestrator) runArticle(ctx context.Context, company jobmodel.CompanyContext, sitemapData jobmodel.SitemapData, job jobmodel.ArticleJob, in jobmodel.BatchInput) jobmodel.ArticleResult {
	res := jobmodel.ArticleResult{Job: job, Status: jobmodel.StatusOK}

	perArticle := o.PerArticleTimeout
	if perArticle <= 0 {
		perArticle = 10 * time.Minute
	}
	actx, cancel := context.WithTimeout(ctx, perArticle)
	defer cancel()

	fail := func(stage string, err error) jobmodel.ArticleResult {
		status := statusForErr(ctx, err)
		res.Reports = append(res.Reports, jobmodel.StageReport{StageID: stage, Status: status, Details: err.Error()})
		res.Status = status
		return res
	}

	// C7: article generation.
	out, err := o.Articles.Generate(actx, company, sitemapData, job, article.GenerateOptions{
		Language:          in.Language,
		Market:            in.Market,
		BatchInstructions: in.BatchInstructions,
		Legal:             o.Legal,
	})
	if err != nil {
		return fail("article-generate", err)
	}
	res.Reports = append(res.Reports, jobmodel.StageReport{StageID: "article-generate", Status: jobmodel.StatusOK})

	// C5 + C6: image slots. Failures here degrade the article, they never
	// fail it.
	var images map[jobmodel.ImageSlot][]byte
	if !in.SkipImages && o.Images != nil {
		if ctx.Err() != nil {
			return fail("image-generate", jobmodel.Wrap(jobmodel.KindCancelled, "cancelled before image stage", ctx.Err()))
		}
		images = o.generateImages(actx, &res, company, job, out, in)
	}

	// C8: deterministic cleanup.
	pinned := pinnedCitations(o.Legal)
	ppRes := postprocess.Process(out, postprocess.Config{PinnedCitations: pinned})
	res.Reports = append(res.Reports, ppRes.Reports...)
	out = ppRes.Article

	// C9: serialize and persist.
	htmlBytes, err := o.Renderer.HTML(out, render.Options{
		Authors:      company.Authors,
		SiteName:     company.Name,
		CanonicalURL: company.URL,
	})
	if err != nil {
		return fail("render", err)
	}
	files := artifacts.ArticleFiles{Images: images}
	for _, format := range in.ExportFormats {
		switch format {
		case "html":
			files.HTML = htmlBytes
		case "markdown":
			md, err := o.Renderer.Markdown(out, render.Options{Authors: company.Authors, SiteName: company.Name, CanonicalURL: company.URL})
			if err != nil {
				return fail("render", err)
			}
			files.Markdown = md
		case "json":
			js, err := o.Renderer.JSON(out)
			if err != nil {
				return fail("render", err)
			}
			files.JSON = js
		}
	}
	if o.Writer != nil {
		if err := o.Writer.WriteArticle(job.Slug, files); err != nil {
			return fail("write-artifacts", err)
		}
	}
	res.Reports = append(res.Reports, jobmodel.StageReport{StageID: "render", Status: jobmodel.StatusOK})

	// C10: observational quality checks. Critical findings degrade the
	// article to warn; they never undo the produced artifacts.
	qrep := quality.Check(out, htmlBytes, quality.Options{ForbidDashes: o.ForbidDashes})
	res.Reports = append(res.Reports, qrep.StageReport())

	res.Output = out
	for _, r := range res.Reports {
		if r.Status == jobmodel.StatusWarn || r.Status == jobmodel.StatusFail {
			res.Status = jobmodel.StatusWarn
			break
		}
	}
	return res
}

// generateImages runs the asset finder, then up to three slot generations
// concurrently. Any failure is recorded as a warn report and the slot is
// simply absent.
func (o *Orchestrator) generateImages(ctx context.Context, res *jobmodel.ArticleResult, company jobmodel.CompanyContext, job jobmodel.ArticleJob, out *jobmodel.ArticleOutput, in jobmodel.BatchInput) map[jobmodel.ImageSlot][]byte {
	var found []jobmodel.FoundAsset
	if o.Assets != nil {
		aRes, err := o.Assets.Find(ctx, assets.Request{
			Topic:    job.KeywordSpec.Keyword,
			Company:  &company,
			Max:      6,
			Language: in.Language,
			Market:   in.Market,
		})
		if err != nil {
			res.Reports = append(res.Reports, jobmodel.StageReport{
				StageID: "image-search", Status: jobmodel.StatusWarn,
				Details: "asset search failed: " + err.Error(),
			})
		} else {
			res.Reports = append(res.Reports, aRes.Report)
			found = aRes.Assets
		}
	}

	slots := []jobmodel.ImageSlot{jobmodel.SlotHero, jobmodel.SlotMid, jobmodel.SlotBottom}
	type slotResult struct {
		slot jobmodel.ImageSlot
		png  []byte
		err  error
	}
	results := make([]slotResult, len(slots))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(3)
	for i, slot := range slots {
		i, slot := i, slot
		g.Go(func() error {
			prompt := imagePrompt(out, company, slot, found)
			gen, err := o.Images.Generate(gctx, prompt, slot)
			if err != nil {
				results[i] = slotResult{slot: slot, err: err}
				return nil
			}
			results[i] = slotResult{slot: slot, png: gen.PNG}
			return nil
		})
	}
	_ = g.Wait()

	images := make(map[jobmodel.ImageSlot][]byte)
	for _, sr := range results {
		if sr.err != nil {
			res.Reports = append(res.Reports, jobmodel.StageReport{
				StageID: "image-generate", Status: jobmodel.StatusWarn,
				Details: string(sr.slot) + ": " + sr.err.Error(),
			})
			continue
		}
		images[sr.slot] = sr.png
		out.Images = append(out.Images, jobmodel.ImageRef{
			Slot: sr.slot,
			URL:  "images/" + string(sr.slot) + ".png",
			Alt:  imageAlt(out, sr.slot),
		})
	}
	if len(images) > 0 {
		res.Reports = append(res.Reports, jobmodel.StageReport{
			StageID: "image-generate", Status: jobmodel.StatusOK,
			Details: fmt.Sprintf("%d images", len(images)),
		})
	}
	return images
}

func imagePrompt(out *jobmodel.ArticleOutput, company jobmodel.CompanyContext, slot jobmodel.ImageSlot, found []jobmodel.FoundAsset) string {
	prompt := "Editorial illustration for an article titled \"" + out.Headline + "\""
	if company.Industry != "" {
		prompt += " in the " + company.Industry + " industry"
	}
	if len(found) > 0 {
		prompt += ". Visual direction: " + found[0].Title
	}
	switch slot {
	case jobmodel.SlotHero:
		prompt += ". Wide banner composition."
	case jobmodel.SlotMid:
		prompt += ". Supporting mid-article visual."
	case jobmodel.SlotBottom:
		prompt += ". Closing visual."
	}
	return prompt + " No text, no logos."
}

func imageAlt(out *jobmodel.ArticleOutput, slot jobmodel.ImageSlot) string {
	switch slot {
	case jobmodel.SlotHero:
		return out.Headline
	case jobmodel.SlotMid:
		if len(out.Sections) > 0 {
			return out.Sections[0].Heading
		}
	case jobmodel.SlotBottom:
		if n := len(out.Sections); n > 0 {
			return out.Sections[n-1].Heading
		}
	}
	return out.Headline
}

func pinnedCitations(legal *jobmodel.LegalResearch) []string {
	if legal == nil {
		return nil
	}
	pinned := append([]string(nil), legal.Pinned...)
	for _, c := range legal.Citations {
		pinned = append(pinned, c.URL)
	}
	return pinned
}
