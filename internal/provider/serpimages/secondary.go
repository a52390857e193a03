package serpimages

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/hyperifyio/contentforge/internal/jobmodel"
	"github.com/hyperifyio/contentforge/internal/provider/serptext"
	"github.com/hyperifyio/contentforge/internal/taskpoll"
)

// imagesSearchSentinel is the item type tag carrying image data in the
// secondary provider's result envelope; items of any other type are skipped.
const imagesSearchSentinel = "images_search"

// Secondary is the task-submit/task-poll SERP-images provider. It shares
// credentials, envelope format, and status codes with the paid text-SERP
// provider and reuses its transport helpers.
type Secondary struct {
	Login      string
	Password   string
	BaseURL    string
	HTTPClient *http.Client
	Schedule   taskpoll.Schedule
}

func (s *Secondary) Name() string { return "serpimages-secondary" }

func (s *Secondary) IsConfigured() bool {
	return strings.TrimSpace(s.Login) != "" && strings.TrimSpace(s.Password) != ""
}

func (s *Secondary) CostPerThousand() float64 { return 0.50 }

func (s *Secondary) baseURL() string {
	if s.BaseURL != "" {
		return strings.TrimRight(s.BaseURL, "/")
	}
	return serptext.DefaultBaseURL
}

func (s *Secondary) httpClient() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (s *Secondary) authHeader() string {
	p := serptext.Provider{Login: s.Login, Password: s.Password}
	return p.AuthHeader()
}

// SearchImages submits one images-SERP task and polls to completion with the
// 0.5s/×1.5/cap-5s/10-attempt schedule.
func (s *Secondary) SearchImages(ctx context.Context, q Query) ([]ImageHit, error) {
	if !s.IsConfigured() {
		return nil, jobmodel.New(jobmodel.KindProviderUnavailable, "serpimages secondary: missing credentials")
	}
	if strings.TrimSpace(q.Query) == "" {
		return nil, jobmodel.New(jobmodel.KindInputInvalid, "serpimages secondary: empty query")
	}

	max := q.Max
	if max <= 0 {
		max = 20
	}
	if max > 100 {
		max = 100
	}

	backend := &imagesBackend{s: s, q: q, depth: max}
	sched := s.Schedule
	if sched.MaxAttempts == 0 {
		sched = taskpoll.DefaultSchedule()
	}
	body, err := taskpoll.Run(ctx, backend, sched)
	if err != nil {
		return nil, translatePollError(err)
	}
	hits, err := parseImageItems(body)
	if err != nil {
		return nil, err
	}
	if len(hits) > max {
		hits = hits[:max]
	}
	return hits, nil
}

type imagesBackend struct {
	s     *Secondary
	q     Query
	depth int
}

func (b *imagesBackend) Submit(ctx context.Context) (string, error) {
	payload := []map[string]any{{
		"keyword":       b.q.Query,
		"location_code": serptext.LocationCode(b.q.Market),
		"language_code": languageOrDefault(b.q.Language),
		"depth":         b.depth,
		"priority":      1,
	}}
	return serptext.SubmitTask(ctx, b.s.httpClient(), b.s.authHeader(),
		b.s.baseURL()+"/v3/serp/google/images/task_post", payload)
}

func (b *imagesBackend) Poll(ctx context.Context, token string) (taskpoll.Outcome, []byte, error) {
	return serptext.PollTask(ctx, b.s.httpClient(), b.s.authHeader(),
		b.s.baseURL()+"/v3/serp/google/images/task_get/advanced/"+token)
}

// parseImageItems walks the done-task result, keeping only items whose type
// tag equals the images-search sentinel and whose nested image record has a
// URL.
func parseImageItems(result []byte) ([]ImageHit, error) {
	var parsed struct {
		Items []struct {
			Type    string `json:"type"`
			Title   string `json:"title"`
			Domain  string `json:"domain"`
			License string `json:"license"`
			Image   struct {
				URL       string `json:"url"`
				Original  string `json:"original"`
				Width     int    `json:"width"`
				Height    int    `json:"height"`
				Thumbnail string `json:"thumbnail"`
				License   string `json:"license"`
			} `json:"image"`
		} `json:"items"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return nil, jobmodel.Wrap(jobmodel.KindInvalidOutput, "serpimages secondary: malformed result payload", err)
	}

	hits := make([]ImageHit, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.Type != imagesSearchSentinel {
			continue
		}
		url := item.Image.URL
		if url == "" {
			url = item.Image.Original
		}
		if url == "" {
			continue
		}
		license := item.License
		if license == "" {
			license = item.Image.License
		}
		hits = append(hits, ImageHit{
			URL:        strings.TrimSpace(url),
			Title:      strings.TrimSpace(item.Title),
			SourceSite: strings.TrimSpace(item.Domain),
			Thumbnail:  strings.TrimSpace(item.Image.Thumbnail),
			License:    license,
			Width:      item.Image.Width,
			Height:     item.Image.Height,
		})
	}
	return hits, nil
}

func translatePollError(err error) error {
	if jobmodel.KindOf(err) != "" {
		return err
	}
	switch err {
	case taskpoll.ErrTaskFailed:
		return jobmodel.Wrap(jobmodel.KindProviderUnavailable, "serpimages secondary: task reported failure", err)
	case taskpoll.ErrExhausted:
		return jobmodel.Wrap(jobmodel.KindTimeout, "serpimages secondary: task never completed", err)
	}
	if err == context.Canceled || err == context.DeadlineExceeded {
		return jobmodel.Wrap(jobmodel.KindCancelled, "serpimages secondary: cancelled", err)
	}
	return jobmodel.Wrap(jobmodel.KindProviderUnavailable, "serpimages secondary: poll loop failed", err)
}

func languageOrDefault(lang string) string {
	if strings.TrimSpace(lang) == "" {
		return "en"
	}
	return lang
}
