// openai-stub is a local OpenAI-compatible server returning canned replies
// for each of the pipeline's prompt surfaces: company research, article
// generation, and asset finding. It exists for operational smoke tests that
// exercise the full batch path without spending provider credits.
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strings"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func main() {
	model := os.Getenv("MODEL_ID")
	if strings.TrimSpace(model) == "" {
		model = "test-model"
	}
	addr := os.Getenv("ADDR")
	if strings.TrimSpace(addr) == "" {
		addr = ":8081"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"id": model, "object": "model"}},
		})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		sys := ""
		if len(req.Messages) > 0 {
			sys = strings.TrimSpace(req.Messages[0].Content)
		}
		var content string
		switch {
		case strings.Contains(sys, "company research assistant"):
			profile := map[string]any{
				"name":            "Stub Industries",
				"url":             "https://stub.example.com",
				"industry":        "technology",
				"description":     "Makes stubbed widgets for integration tests.",
				"products":        []string{"StubWidget"},
				"target_audience": "test engineers",
				"tone":            "matter-of-fact",
				"authors":         []map[string]string{{"name": "Stub Author"}},
			}
			b, _ := json.Marshal(profile)
			content = string(b)
		case strings.Contains(sys, "senior content writer"):
			article := map[string]any{
				"headline":         "Stubbed Article",
				"meta_description": "A deterministic article for smoke tests.",
				"lead":             "<p>Everything here is canned [1].</p>",
				"sections": []map[string]any{
					{"heading": "What the stub covers", "body": "<p>The full pipeline path [1].</p>"},
					{"heading": "What it does not", "body": "<p>Anything nondeterministic [2].</p>"},
					{"heading": "Operational notes", "body": "<p>Run it next to the CLI.</p>"},
				},
				"faq": []map[string]string{{"question": "Is this real?", "answer": "No, it is a stub."}},
				"citations": []map[string]any{
					{"n": 1, "title": "Stub source one", "url": "https://one.stub.example.com"},
					{"n": 2, "title": "Stub source two", "url": "https://two.stub.example.com"},
				},
			}
			b, _ := json.Marshal(article)
			content = string(b)
		case strings.Contains(sys, "find visual assets"):
			assets := map[string]any{
				"assets": []map[string]any{
					{"url": "https://images.unsplash.com/stub-1.jpg", "title": "Stub photo", "source_site": "unsplash", "kind": "photo"},
				},
			}
			b, _ := json.Marshal(assets)
			content = string(b)
		default:
			http.Error(w, "unexpected system prompt", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	})

	log.Printf("openai-stub listening on %s (model=%s)", addr, model)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}
