package serptext

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hyperifyio/contentforge/internal/jobmodel"
	"github.com/hyperifyio/contentforge/internal/taskpoll"
)

func TestLocationCode(t *testing.T) {
	cases := []struct {
		market string
		want   int
	}{
		{"US", 2840},
		{"uk", 2826},
		{"gb", 2826},
		{"DE", 2276},
		{"xx", 2840}, // unknown falls back to US
		{"", 2840},
	}
	for _, c := range cases {
		if got := LocationCode(c.market); got != c.want {
			t.Errorf("LocationCode(%q) = %d, want %d", c.market, got, c.want)
		}
	}
}

func TestClassifyStatus(t *testing.T) {
	for _, code := range []int{StatusTaskCreated, StatusTaskProcessing, StatusTaskInQueue} {
		if ClassifyStatus(code) != taskpoll.OutcomeProcessing {
			t.Errorf("code %d should classify as processing", code)
		}
	}
	if ClassifyStatus(StatusDone) != taskpoll.OutcomeDone {
		t.Error("20000 should classify as done")
	}
	if ClassifyStatus(40501) != taskpoll.OutcomeFailed {
		t.Error("unknown code should classify as failed")
	}
}

func TestAuthHeaderIsBasicBase64(t *testing.T) {
	p := &Provider{Login: "user@example.com", Password: "hunter2"}
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("user@example.com:hunter2"))
	if got := p.AuthHeader(); got != want {
		t.Fatalf("AuthHeader() = %q, want %q", got, want)
	}
}

func TestSearchSubmitPollParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var payload []map[string]any
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || len(payload) != 1 {
				t.Errorf("bad submit payload: %v", err)
			}
			if payload[0]["keyword"] != "gdpr consent rules" {
				t.Errorf("keyword = %v", payload[0]["keyword"])
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"tasks": []map[string]any{{"id": "t-9", "status_code": 20100}},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tasks": []map[string]any{{
				"id": "t-9", "status_code": 20000,
				"result": []map[string]any{{
					"items": []map[string]any{
						{"type": "organic", "rank_absolute": 1, "title": "GDPR overview", "url": "https://gdpr.example.eu/", "description": "Consent rules explained"},
						{"type": "people_also_ask", "title": "ignored"},
					},
				}},
			}},
		})
	}))
	defer srv.Close()

	p := &Provider{
		Login: "u", Password: "p", BaseURL: srv.URL,
		Schedule: taskpoll.Schedule{InitialInterval: time.Millisecond, Multiplier: 1.5, MaxInterval: 5 * time.Millisecond, MaxAttempts: 5},
	}
	results, err := p.Search(context.Background(), "gdpr consent rules", "en", "us", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].URL != "https://gdpr.example.eu/" || results[0].Position != 1 {
		t.Fatalf("unexpected result: %+v", results[0])
	}
}

func TestSearchQuotaOnSubmit429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := &Provider{Login: "u", Password: "p", BaseURL: srv.URL}
	_, err := p.Search(context.Background(), "q", "en", "us", 10)
	if !jobmodel.IsKind(err, jobmodel.KindQuotaExhausted) {
		t.Fatalf("kind = %v, want quota_exhausted", jobmodel.KindOf(err))
	}
}

func TestSearchExhaustedPollsIsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"tasks": []map[string]any{{"id": "t-1", "status_code": 20100}},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"tasks": []map[string]any{{"id": "t-1", "status_code": 40601}},
		})
	}))
	defer srv.Close()

	p := &Provider{
		Login: "u", Password: "p", BaseURL: srv.URL,
		Schedule: taskpoll.Schedule{InitialInterval: time.Millisecond, Multiplier: 1.5, MaxInterval: 2 * time.Millisecond, MaxAttempts: 3},
	}
	_, err := p.Search(context.Background(), "q", "en", "us", 10)
	if !jobmodel.IsKind(err, jobmodel.KindTimeout) {
		t.Fatalf("kind = %v, want timeout", jobmodel.KindOf(err))
	}
}
