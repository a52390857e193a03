// Package companycontext resolves a structured company profile from a URL
// via one grounded text-LLM call. The resolver asserts JSON shape only; it
// never validates business facts.
package companycontext

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/contentforge/internal/jobmodel"
	"github.com/hyperifyio/contentforge/internal/provider/textllm"
)

// contextSchema constrains the LLM reply to the CompanyContext shape. Only
// name and description are required; everything else defaults to empty.
const contextSchema = `{
  "type": "object",
  "properties": {
    "name": {"type": "string"},
    "url": {"type": "string"},
    "industry": {"type": "string"},
    "description": {"type": "string"},
    "products": {"type": "array", "items": {"type": "string"}},
    "target_audience": {"type": "string"},
    "tone": {"type": "string"},
    "voice_persona": {"type": "object", "additionalProperties": {"type": "string"}},
    "authors": {"type": "array", "items": {"type": "object", "properties": {
      "name": {"type": "string"}, "title": {"type": "string"}, "bio": {"type": "string"}
    }, "required": ["name"]}},
    "visual_identity": {"type": "object", "additionalProperties": {"type": "string"}}
  },
  "required": ["name", "description"]
}`

// resolveTimeout floors the grounded call at well above the 60s minimum the
// provider contract requires for web-search-enabled generations.
const resolveTimeout = 120 * time.Second

// Resolver builds a CompanyContext once per batch.
type Resolver struct {
	LLM   *textllm.Provider
	Model string
}

// Resolve issues one grounded generation and decodes the reply. Missing
// fields default to zero values; Name falls back to the host portion of
// companyURL.
func (r *Resolver) Resolve(ctx context.Context, companyURL string) (jobmodel.CompanyContext, error) {
	parsed, err := url.Parse(strings.TrimSpace(companyURL))
	if err != nil || parsed.Host == "" {
		return jobmodel.CompanyContext{}, jobmodel.New(jobmodel.KindInputInvalid, "companycontext: invalid company url")
	}

	callCtx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	system := "You are a company research assistant. Research the given company website " +
		"and reply with ONLY a JSON object describing the company. No prose, no markdown fences."
	user := "Company website: " + companyURL + "\n\n" +
		"Return a JSON object with fields: name, url, industry, description, products (array), " +
		"target_audience, tone, voice_persona (object of string values), " +
		"authors (array of {name,title,bio}), visual_identity (object of string values)."

	res, err := r.LLM.Generate(callCtx, system, user, textllm.Options{
		Model:           r.Model,
		Schema:          json.RawMessage(contextSchema),
		EnableWebSearch: true,
	})
	if err != nil {
		return jobmodel.CompanyContext{}, err
	}

	var cc jobmodel.CompanyContext
	if err := json.Unmarshal(res.Structured, &cc); err != nil {
		return jobmodel.CompanyContext{}, jobmodel.Wrap(jobmodel.KindInvalidOutput, "companycontext: decode profile", err)
	}

	if strings.TrimSpace(cc.Name) == "" {
		cc.Name = parsed.Host
	}
	if strings.TrimSpace(cc.URL) == "" {
		cc.URL = companyURL
	}
	if cc.Products == nil {
		cc.Products = []string{}
	}
	log.Debug().Str("company", cc.Name).Str("industry", cc.Industry).Msg("companycontext: resolved")
	return cc, nil
}
