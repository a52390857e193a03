// Package textllm is the grounded text-generation operation:
// generate(prompt, options) -> {text | structured JSON}.
// It wraps the shared chat client with JSON-schema validation, one repair
// attempt on a schema mismatch, and an optional web-search tool loop.
package textllm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v6"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/contentforge/internal/cache"
	"github.com/hyperifyio/contentforge/internal/jobmodel"
	"github.com/hyperifyio/contentforge/internal/llm"
	"github.com/hyperifyio/contentforge/internal/llmtools"
)

// Searcher performs one web search query on behalf of the optional
// web-search tool. The CLI supplies an adapter over the serptext provider;
// textllm has no transport knowledge of its own.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchHit, error)
}

// SearchHit is one result surfaced to the model via the web_search tool.
type SearchHit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Options configures one generate call.
type Options struct {
	// Model is the chat model name, e.g. "gpt-4o-mini".
	Model string
	// Schema, when non-nil, forces the reply to validate against this JSON
	// Schema. On a first mismatch, one repair call is issued quoting the
	// validation errors back to the model before failing with InvalidOutput.
	Schema json.RawMessage
	// EnableWebSearch allows the model to call a web_search tool backed by
	// Searcher, looping until it returns a final answer.
	EnableWebSearch bool
	Temperature     float32
}

// Result is the outcome of one generate call.
type Result struct {
	Text       string
	Structured json.RawMessage
}

// Provider implements the grounded text-generate operation.
type Provider struct {
	Client   llm.Client
	Cache    *cache.LLMCache
	Searcher Searcher
}

func (p *Provider) Name() string { return "textllm" }

// IsConfigured reports whether a chat backend was supplied.
func (p *Provider) IsConfigured() bool { return p.Client != nil }

// CostPerThousand is a reporting-only estimate, in USD per thousand calls.
func (p *Provider) CostPerThousand() float64 { return 5.0 }

// Generate runs one grounded text generation, classifying failures into
// jobmodel error kinds so the fallback router can decide whether to fail
// over to another provider.
func (p *Provider) Generate(ctx context.Context, system, user string, opts Options) (Result, error) {
	if p.Client == nil {
		return Result{}, jobmodel.New(jobmodel.KindProviderUnavailable, "textllm: no chat client configured")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return Result{}, jobmodel.New(jobmodel.KindInputInvalid, "textllm: model is required")
	}

	cacheKey := cache.KeyFrom(opts.Model, system+"\x00"+user)
	if p.Cache != nil {
		if raw, ok, _ := p.Cache.Get(ctx, cacheKey); ok {
			if res, err := p.toResult(raw, opts.Schema); err == nil {
				return res, nil
			}
		}
	}

	text, err := p.converse(ctx, system, user, opts)
	if err != nil {
		return Result{}, err
	}

	res, err := p.toResult([]byte(text), opts.Schema)
	if err != nil {
		repaired, rerr := p.repair(ctx, system, user, text, err, opts)
		if rerr != nil {
			return Result{}, jobmodel.Wrap(jobmodel.KindInvalidOutput, "textllm: output failed schema validation", err)
		}
		res = repaired
		text = repaired.Text
	}

	if p.Cache != nil {
		_ = p.Cache.Save(ctx, cacheKey, []byte(text))
	}
	return res, nil
}

// converse runs either a plain chat call or, when EnableWebSearch is set, a
// tool-enabled loop via the shared orchestrator.
func (p *Provider) converse(ctx context.Context, system, user string, opts Options) (string, error) {
	if opts.EnableWebSearch && p.Searcher != nil {
		return p.converseWithSearch(ctx, system, user, opts)
	}

	req := openai.ChatCompletionRequest{
		Model: opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: opts.Temperature,
		N:           1,
	}
	resp, err := p.Client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	if len(resp.Choices) == 0 {
		return "", jobmodel.New(jobmodel.KindInvalidOutput, "textllm: model returned no choices")
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", jobmodel.New(jobmodel.KindInvalidOutput, "textllm: model returned empty content")
	}
	return out, nil
}

func (p *Provider) converseWithSearch(ctx context.Context, system, user string, opts Options) (string, error) {
	registry := llmtools.NewRegistry()
	err := registry.Register(llmtools.ToolDefinition{
		StableName:   "web_search",
		SemVer:       "v1.0.0",
		Description:  "Search the public web and return a short list of results",
		JSONSchema:   json.RawMessage(`{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`),
		Capabilities: []string{"search"},
		Handler: func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
			var parsed struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal(args, &parsed); err != nil {
				return nil, fmt.Errorf("web_search: invalid arguments: %w", err)
			}
			hits, err := p.Searcher.Search(ctx, parsed.Query)
			if err != nil {
				return nil, err
			}
			return json.Marshal(hits)
		},
	})
	if err != nil {
		return "", jobmodel.Wrap(jobmodel.KindIO, "textllm: web_search tool registration failed", err)
	}

	orch := &llmtools.Orchestrator{Client: p.Client, Registry: registry, MaxToolCalls: 6}
	req := openai.ChatCompletionRequest{Model: opts.Model, Temperature: opts.Temperature, N: 1}
	final, _, err := orch.Run(ctx, req, system, user, nil)
	if err != nil {
		return "", classifyTransportError(err)
	}
	final = strings.TrimSpace(final)
	if final == "" {
		return "", jobmodel.New(jobmodel.KindInvalidOutput, "textllm: tool loop produced no final answer")
	}
	return final, nil
}

// repair re-asks the model once, quoting the schema violation; a second
// mismatch surfaces as InvalidOutput.
func (p *Provider) repair(ctx context.Context, system, user, priorOutput string, schemaErr error, opts Options) (Result, error) {
	log.Debug().Err(schemaErr).Msg("textllm: attempting one schema repair")
	repairUser := user + "\n\nYour previous reply did not match the required JSON schema:\n" +
		schemaErr.Error() + "\n\nPrevious reply:\n" + priorOutput + "\n\nReturn ONLY corrected JSON matching the schema."

	text, err := p.converse(ctx, system, repairUser, opts)
	if err != nil {
		return Result{}, err
	}
	return p.toResult([]byte(text), opts.Schema)
}

// toResult validates raw model output against opts.Schema when present,
// returning either plain text or a validated structured payload.
func (p *Provider) toResult(raw []byte, schema json.RawMessage) (Result, error) {
	text := strings.TrimSpace(string(raw))
	if len(schema) == 0 {
		return Result{Text: text}, nil
	}

	candidate := extractJSON(text)
	if candidate == "" {
		return Result{}, errors.New("no JSON object found in output")
	}

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(schema)))
	if err != nil {
		return Result{}, fmt.Errorf("schema compile error: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("textllm-schema.json", schemaDoc); err != nil {
		return Result{}, fmt.Errorf("schema compile error: %w", err)
	}
	sch, err := compiler.Compile("textllm-schema.json")
	if err != nil {
		return Result{}, fmt.Errorf("schema compile error: %w", err)
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(candidate))
	if err != nil {
		return Result{}, fmt.Errorf("output is not valid JSON: %w", err)
	}
	if err := sch.Validate(doc); err != nil {
		return Result{}, err
	}
	return Result{Text: text, Structured: json.RawMessage(candidate)}, nil
}

// extractJSON returns the first balanced {...} object found in s, tolerating
// surrounding prose or markdown code fences the model may add despite
// instructions not to.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// classifyTransportError maps go-openai transport errors into the pipeline
// error taxonomy so the fallback router can decide on failover.
func classifyTransportError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 429:
			return jobmodel.Wrap(jobmodel.KindQuotaExhausted, "textllm: rate limited", err)
		case 500, 502, 503, 504:
			return jobmodel.Wrap(jobmodel.KindProviderUnavailable, "textllm: upstream error", err)
		case 400, 401, 403, 404:
			return jobmodel.Wrap(jobmodel.KindInputInvalid, "textllm: request rejected", err)
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return jobmodel.Wrap(jobmodel.KindProviderUnavailable, "textllm: request failed", err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return jobmodel.Wrap(jobmodel.KindCancelled, "textllm: cancelled", err)
	}
	return jobmodel.Wrap(jobmodel.KindProviderUnavailable, "textllm: call failed", err)
}
