package sitemap

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/hyperifyio/contentforge/internal/jobmodel"
	"github.com/hyperifyio/contentforge/internal/provider/textllm"
)

// classifySchema constrains the classifier reply to a url→label map.
const classifySchema = `{
  "type": "object",
  "properties": {
    "labels": {"type": "object", "additionalProperties": {"type": "string"}}
  },
  "required": ["labels"]
}`

// LLMClassifier is the optional AI fallback for URLs the pattern table
// cannot label. One batched call per crawl; no web search.
type LLMClassifier struct {
	LLM   *textllm.Provider
	Model string
	// MaxURLs caps how many unmatched URLs are sampled per crawl.
	MaxURLs int
}

var validLabels = map[jobmodel.URLLabel]bool{
	jobmodel.LabelBlog: true, jobmodel.LabelProduct: true,
	jobmodel.LabelService: true, jobmodel.LabelDocs: true,
	jobmodel.LabelResource: true, jobmodel.LabelCompany: true,
	jobmodel.LabelLegal: true, jobmodel.LabelContact: true,
	jobmodel.LabelLanding: true, jobmodel.LabelTool: true,
	jobmodel.LabelOther: true,
}

func (c *LLMClassifier) ClassifyURLs(ctx context.Context, urls []string) (map[string]jobmodel.URLLabel, error) {
	if c.LLM == nil || !c.LLM.IsConfigured() {
		return nil, jobmodel.New(jobmodel.KindProviderUnavailable, "sitemap classifier: no LLM configured")
	}
	max := c.MaxURLs
	if max <= 0 {
		max = 50
	}
	if len(urls) > max {
		urls = urls[:max]
	}

	system := "You classify website URLs by purpose. Reply with ONLY a JSON object, no prose."
	var b strings.Builder
	b.WriteString("Classify each URL into one of: blog, product, service, docs, resource, company, legal, contact, landing, tool, other.\n\n")
	for _, u := range urls {
		b.WriteString(u)
		b.WriteString("\n")
	}
	b.WriteString("\nReply as {\"labels\": {\"<url>\": \"<label>\", ...}}.")

	res, err := c.LLM.Generate(ctx, system, b.String(), textllm.Options{
		Model:  c.Model,
		Schema: json.RawMessage(classifySchema),
	})
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Labels map[string]string `json:"labels"`
	}
	if err := json.Unmarshal(res.Structured, &parsed); err != nil {
		return nil, jobmodel.Wrap(jobmodel.KindInvalidOutput, "sitemap classifier: decode labels", err)
	}

	out := make(map[string]jobmodel.URLLabel, len(parsed.Labels))
	for u, l := range parsed.Labels {
		label := jobmodel.URLLabel(strings.ToLower(strings.TrimSpace(l)))
		if validLabels[label] {
			out[u] = label
		}
	}
	return out, nil
}
