package serpimages

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperifyio/contentforge/internal/jobmodel"
	"github.com/hyperifyio/contentforge/internal/taskpoll"
)

func TestPrimarySearchImagesParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != "key-123" {
			t.Errorf("missing API key header")
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if payload["q"] != "solar panels diagram" {
			t.Errorf("q = %v", payload["q"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"images": []map[string]any{
				{"title": "Solar diagram", "imageUrl": "https://img.example.com/a.png", "imageWidth": 800, "imageHeight": 600, "domain": "example.com"},
				{"title": "No URL skipped"},
			},
		})
	}))
	defer srv.Close()

	p := &Primary{APIKey: "key-123", BaseURL: srv.URL}
	hits, err := p.SearchImages(context.Background(), Query{Query: "solar panels diagram", Max: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want 1", len(hits))
	}
	if hits[0].URL != "https://img.example.com/a.png" || hits[0].Width != 800 {
		t.Fatalf("unexpected hit: %+v", hits[0])
	}
}

func TestPrimaryQuotaExhaustedOn429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := &Primary{APIKey: "key", BaseURL: srv.URL}
	_, err := p.SearchImages(context.Background(), Query{Query: "q"})
	if !jobmodel.IsKind(err, jobmodel.KindQuotaExhausted) {
		t.Fatalf("kind = %v, want quota_exhausted", jobmodel.KindOf(err))
	}
}

func TestSecondarySubmitPollParse(t *testing.T) {
	var polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			if r.Header.Get("Authorization") == "" {
				t.Errorf("missing Basic auth header")
			}
			var payload []map[string]any
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || len(payload) != 1 {
				t.Errorf("bad submit payload: %v", err)
			}
			if payload[0]["location_code"] != float64(2276) {
				t.Errorf("location_code = %v, want 2276 for DE", payload[0]["location_code"])
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"tasks": []map[string]any{{"id": "task-1", "status_code": 20100}},
			})
		default:
			n := atomic.AddInt32(&polls, 1)
			if n == 1 {
				// Still in queue on the first poll.
				_ = json.NewEncoder(w).Encode(map[string]any{
					"tasks": []map[string]any{{"id": "task-1", "status_code": 40602}},
				})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"tasks": []map[string]any{{
					"id": "task-1", "status_code": 20000,
					"result": []map[string]any{{
						"items": []map[string]any{
							{"type": "images_search", "title": "Wind turbine", "domain": "energy.example.org",
								"image": map[string]any{"url": "https://energy.example.org/t.jpg", "width": 1024, "height": 768, "thumbnail": "https://energy.example.org/t_s.jpg"}},
							{"type": "people_also_search", "title": "ignored"},
						},
					}},
				}},
			})
		}
	}))
	defer srv.Close()

	s := &Secondary{
		Login: "user@example.com", Password: "secret", BaseURL: srv.URL,
		Schedule: taskpoll.Schedule{InitialInterval: time.Millisecond, Multiplier: 1.5, MaxInterval: 5 * time.Millisecond, MaxAttempts: 5},
	}
	hits, err := s.SearchImages(context.Background(), Query{Query: "wind turbines", Market: "DE", Max: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want 1 (non-sentinel item must be skipped)", len(hits))
	}
	if hits[0].URL != "https://energy.example.org/t.jpg" || hits[0].SourceSite != "energy.example.org" {
		t.Fatalf("unexpected hit: %+v", hits[0])
	}
	if polls < 2 {
		t.Fatalf("polls = %d, want at least 2", polls)
	}
}

func TestSecondaryTaskFailureSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"tasks": []map[string]any{{"id": "task-2", "status_code": 20100}},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tasks": []map[string]any{{"id": "task-2", "status_code": 40501, "status_message": "invalid field"}},
		})
	}))
	defer srv.Close()

	s := &Secondary{
		Login: "u", Password: "p", BaseURL: srv.URL,
		Schedule: taskpoll.Schedule{InitialInterval: time.Millisecond, Multiplier: 1.5, MaxInterval: 5 * time.Millisecond, MaxAttempts: 3},
	}
	_, err := s.SearchImages(context.Background(), Query{Query: "q"})
	if !jobmodel.IsKind(err, jobmodel.KindProviderUnavailable) {
		t.Fatalf("kind = %v, want provider_unavailable", jobmodel.KindOf(err))
	}
}

func TestSecondaryUnconfigured(t *testing.T) {
	s := &Secondary{}
	if s.IsConfigured() {
		t.Fatal("empty credentials must report unconfigured")
	}
	_, err := s.SearchImages(context.Background(), Query{Query: "q"})
	if !jobmodel.IsKind(err, jobmodel.KindProviderUnavailable) {
		t.Fatalf("kind = %v, want provider_unavailable", jobmodel.KindOf(err))
	}
}
