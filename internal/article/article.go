// Package article generates one structured article per job: compose the
// prompt through a pluggable builder, call the grounded text LLM under the
// full ArticleOutput schema, and decode the reply. Schema repair (one
// attempt) lives in the text-LLM adapter.
package article

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/contentforge/internal/jobmodel"
	"github.com/hyperifyio/contentforge/internal/provider/textllm"
)

// articleSchema describes ArticleOutput in full for the response-schema
// constrained generation.
const articleSchema = `{
  "type": "object",
  "properties": {
    "headline": {"type": "string", "minLength": 1},
    "meta_description": {"type": "string"},
    "lead": {"type": "string"},
    "sections": {"type": "array", "items": {"type": "object", "properties": {
      "heading": {"type": "string"},
      "body": {"type": "string"},
      "subsections": {"type": "array"}
    }, "required": ["heading", "body"]}},
    "faq": {"type": "array", "items": {"type": "object", "properties": {
      "question": {"type": "string"}, "answer": {"type": "string"}
    }, "required": ["question", "answer"]}},
    "paa": {"type": "array", "items": {"type": "object", "properties": {
      "question": {"type": "string"}, "answer": {"type": "string"}
    }, "required": ["question", "answer"]}},
    "citations": {"type": "array", "items": {"type": "object", "properties": {
      "n": {"type": "integer"}, "title": {"type": "string"}, "url": {"type": "string"}
    }, "required": ["n", "url"]}},
    "comparison_table": {"type": "object", "properties": {
      "headers": {"type": "array", "items": {"type": "string"}},
      "rows": {"type": "array", "items": {"type": "array", "items": {"type": "string"}}}
    }}
  },
  "required": ["headline", "meta_description", "lead", "sections", "citations"]
}`

// PromptInputs is the full surface visible to a prompt builder, per the
// component contract: keyword, targets, company profile, locale, batch and
// per-keyword instructions, blog URLs for internal linking, and the optional
// legal research object.
type PromptInputs struct {
	Keyword             string
	WordCountTarget     int
	Company             jobmodel.CompanyContext
	Language            string
	Market              string
	BatchInstructions   string
	KeywordInstructions string
	BlogURLs            []jobmodel.SitemapEntry
	Legal               *jobmodel.LegalResearch
}

// PromptBuilder turns inputs into the (system, user) message pair. The
// prompt text itself is replaceable; only its input surface is fixed.
type PromptBuilder interface {
	Build(in PromptInputs) (system, user string)
}

// Generator produces raw ArticleOutput objects; body fragments may still mix
// markdown and HTML, which the post-processor resolves.
type Generator struct {
	LLM     *textllm.Provider
	Model   string
	Builder PromptBuilder
	// Timeout bounds one generation including the web-search loop; it must
	// not drop below 60s when grounding is enabled. Zero uses the default.
	Timeout time.Duration
	// Now stamps PublishedAt; nil uses time.Now.
	Now func() time.Time
}

const defaultTimeout = 4 * time.Minute

// Generate runs one grounded, schema-constrained generation for the job.
func (g *Generator) Generate(ctx context.Context, batch jobmodel.CompanyContext, sitemap jobmodel.SitemapData, job jobmodel.ArticleJob, opts GenerateOptions) (*jobmodel.ArticleOutput, error) {
	builder := g.Builder
	if builder == nil {
		builder = DefaultBuilder{}
	}

	system, user := builder.Build(PromptInputs{
		Keyword:             job.KeywordSpec.Keyword,
		WordCountTarget:     job.WordCountTarget,
		Company:             batch,
		Language:            opts.Language,
		Market:              opts.Market,
		BatchInstructions:   opts.BatchInstructions,
		KeywordInstructions: job.KeywordSpec.Instructions,
		BlogURLs:            sitemap.ByLabel(jobmodel.LabelBlog),
		Legal:               opts.Legal,
	})

	timeout := g.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := g.LLM.Generate(callCtx, system, user, textllm.Options{
		Model:           g.Model,
		Schema:          json.RawMessage(articleSchema),
		EnableWebSearch: true,
	})
	if err != nil {
		return nil, err
	}

	var out jobmodel.ArticleOutput
	if err := json.Unmarshal(res.Structured, &out); err != nil {
		return nil, jobmodel.Wrap(jobmodel.KindInvalidOutput, "article: decode output", err)
	}

	now := g.Now
	if now == nil {
		now = time.Now
	}
	out.PublishedAt = now().UTC()

	log.Debug().Str("keyword", job.KeywordSpec.Keyword).
		Int("sections", len(out.Sections)).
		Int("citations", len(out.Citations)).
		Msg("article: generated")
	return &out, nil
}

// GenerateOptions carries the batch-level inputs a single generation needs.
type GenerateOptions struct {
	Language          string
	Market            string
	BatchInstructions string
	Legal             *jobmodel.LegalResearch
}
