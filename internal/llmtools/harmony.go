package llmtools

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	openai "github.com/sashabaranov/go-openai"
)

var (
	finalFenceRe = regexp.MustCompile("(?s)```final\\s*\\n(.*?)\\n?```")
	finalTagRe   = regexp.MustCompile(`(?s)<final>(.*?)</final>`)
)

// ParseHarmony extracts the model's final answer from a chat completion,
// tolerating the "analysis then final" style some reasoning models use:
// a ```final fenced block, an XML-style <final> tag, or (when neither marker
// is present) the whole message content. Tool calls always take precedence
// over any final-answer text in the same message.
func ParseHarmony(resp openai.ChatCompletionResponse) (string, []ToolCall) {
	if len(resp.Choices) == 0 {
		return "", nil
	}
	msg := resp.Choices[0].Message
	if calls := ParseToolCalls(resp); len(calls) > 0 {
		return "", calls
	}

	content := msg.Content
	if m := finalFenceRe.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1]), nil
	}
	if m := finalTagRe.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1]), nil
	}
	return strings.TrimSpace(content), nil
}

// validateAgainstSchema checks decoded tool-call arguments against a tool's
// JSON Schema before the handler runs, so malformed arguments surface as a
// structured E_ARGS tool error instead of reaching the handler.
func validateAgainstSchema(value any, schema json.RawMessage) error {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(schema)))
	if err != nil {
		return err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("tool-args.json", doc); err != nil {
		return err
	}
	sch, err := compiler.Compile("tool-args.json")
	if err != nil {
		return err
	}
	return sch.Validate(value)
}
