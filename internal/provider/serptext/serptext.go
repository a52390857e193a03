// Package serptext is the paid text-SERP provider: a task-submit/task-poll
// backend used only as a web-search fallback. Standard (task) mode runs about
// 30% cheaper per query than the provider's live mode, at the cost of
// polling latency.
package serptext

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hyperifyio/contentforge/internal/jobmodel"
	"github.com/hyperifyio/contentforge/internal/taskpoll"
)

// Task status codes shared by every task-poll endpoint of this provider.
// created/queued/processing mean "continue polling"; Done means "parse".
const (
	StatusTaskCreated    = 20100
	StatusTaskProcessing = 40601
	StatusTaskInQueue    = 40602
	StatusDone           = 20000
)

// ClassifyStatus maps a task status code onto the poll outcome classes.
func ClassifyStatus(code int) taskpoll.Outcome {
	switch code {
	case StatusDone:
		return taskpoll.OutcomeDone
	case StatusTaskCreated, StatusTaskProcessing, StatusTaskInQueue:
		return taskpoll.OutcomeProcessing
	default:
		return taskpoll.OutcomeFailed
	}
}

// DefaultBaseURL is the task-mode API root.
const DefaultBaseURL = "https://api.dataforseo.com"

// Result is one organic search result.
type Result struct {
	Position int
	Title    string
	URL      string
	Snippet  string
}

// Provider implements web-search over the task-submit/task-poll protocol
// with Basic auth built from login:password.
type Provider struct {
	Login      string
	Password   string
	BaseURL    string
	HTTPClient *http.Client
	// Schedule overrides the default poll schedule; zero value uses defaults.
	Schedule taskpoll.Schedule
}

func (p *Provider) Name() string { return "serptext" }

func (p *Provider) IsConfigured() bool {
	return strings.TrimSpace(p.Login) != "" && strings.TrimSpace(p.Password) != ""
}

func (p *Provider) CostPerThousand() float64 { return 0.50 }

// AuthHeader returns the Basic credential, base64(login:password).
func (p *Provider) AuthHeader() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(p.Login+":"+p.Password))
}

func (p *Provider) baseURL() string {
	if p.BaseURL != "" {
		return strings.TrimRight(p.BaseURL, "/")
	}
	return DefaultBaseURL
}

func (p *Provider) httpClient() *http.Client {
	if p.HTTPClient != nil {
		return p.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

// Search submits one organic-SERP task and polls it to completion.
func (p *Provider) Search(ctx context.Context, query, language, market string, depth int) ([]Result, error) {
	if !p.IsConfigured() {
		return nil, jobmodel.New(jobmodel.KindProviderUnavailable, "serptext: missing credentials")
	}
	if strings.TrimSpace(query) == "" {
		return nil, jobmodel.New(jobmodel.KindInputInvalid, "serptext: empty query")
	}
	if depth <= 0 {
		depth = 10
	}
	if depth > 100 {
		depth = 100
	}

	backend := &organicBackend{p: p, query: query, language: language, market: market, depth: depth}
	sched := p.Schedule
	if sched.MaxAttempts == 0 {
		sched = taskpoll.DefaultSchedule()
	}
	body, err := taskpoll.Run(ctx, backend, sched)
	if err != nil {
		return nil, translatePollError(err, "serptext")
	}
	return parseOrganicItems(body)
}

// organicBackend adapts the organic-SERP endpoints to the taskpoll engine.
type organicBackend struct {
	p        *Provider
	query    string
	language string
	market   string
	depth    int
}

func (b *organicBackend) Submit(ctx context.Context) (string, error) {
	payload := []map[string]any{{
		"keyword":       b.query,
		"location_code": LocationCode(b.market),
		"language_code": orDefault(b.language, "en"),
		"depth":         b.depth,
		"priority":      1,
	}}
	return SubmitTask(ctx, b.p.httpClient(), b.p.AuthHeader(),
		b.p.baseURL()+"/v3/serp/google/organic/task_post", payload)
}

func (b *organicBackend) Poll(ctx context.Context, token string) (taskpoll.Outcome, []byte, error) {
	return PollTask(ctx, b.p.httpClient(), b.p.AuthHeader(),
		b.p.baseURL()+"/v3/serp/google/organic/task_get/regular/"+token)
}

// taskEnvelope is the common wire envelope of every task endpoint.
type taskEnvelope struct {
	Tasks []struct {
		ID            string            `json:"id"`
		StatusCode    int               `json:"status_code"`
		StatusMessage string            `json:"status_message"`
		Result        []json.RawMessage `json:"result"`
	} `json:"tasks"`
}

// SubmitTask posts a task payload and returns the created task id. Shared by
// this provider and the secondary SERP-images provider, which speak the same
// envelope on different endpoints.
func SubmitTask(ctx context.Context, hc *http.Client, authHeader, url string, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", jobmodel.Wrap(jobmodel.KindIO, "task submit: encode payload", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", jobmodel.Wrap(jobmodel.KindIO, "task submit: build request", err)
	}
	req.Header.Set("Authorization", authHeader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return "", jobmodel.Wrap(jobmodel.KindProviderUnavailable, "task submit failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", jobmodel.New(jobmodel.KindQuotaExhausted, "task submit: rate limited")
	}
	if resp.StatusCode != http.StatusOK {
		return "", jobmodel.New(jobmodel.KindProviderUnavailable, fmt.Sprintf("task submit: status %d", resp.StatusCode))
	}

	var env taskEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", jobmodel.Wrap(jobmodel.KindInvalidOutput, "task submit: malformed envelope", err)
	}
	if len(env.Tasks) == 0 {
		return "", jobmodel.New(jobmodel.KindInvalidOutput, "task submit: envelope carried no tasks")
	}
	task := env.Tasks[0]
	if task.StatusCode != StatusTaskCreated {
		return "", jobmodel.New(jobmodel.KindProviderUnavailable,
			fmt.Sprintf("task submit rejected: %s (code %d)", task.StatusMessage, task.StatusCode))
	}
	if task.ID == "" {
		return "", jobmodel.New(jobmodel.KindInvalidOutput, "task submit: created task has no id")
	}
	return task.ID, nil
}

// PollTask fetches one task status. On Done it returns tasks[0].result[0]
// raw, which the caller parses with its own item shape. Each individual poll
// request is bounded to 10s.
func PollTask(ctx context.Context, hc *http.Client, authHeader, url string) (taskpoll.Outcome, []byte, error) {
	pollCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(pollCtx, http.MethodGet, url, nil)
	if err != nil {
		return taskpoll.OutcomeProcessing, nil, jobmodel.Wrap(jobmodel.KindIO, "task poll: build request", err)
	}
	req.Header.Set("Authorization", authHeader)

	resp, err := hc.Do(req)
	if err != nil {
		return taskpoll.OutcomeProcessing, nil, jobmodel.Wrap(jobmodel.KindProviderUnavailable, "task poll failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return taskpoll.OutcomeProcessing, nil, jobmodel.New(jobmodel.KindProviderUnavailable,
			fmt.Sprintf("task poll: status %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return taskpoll.OutcomeProcessing, nil, jobmodel.Wrap(jobmodel.KindIO, "task poll: read body", err)
	}
	var env taskEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return taskpoll.OutcomeProcessing, nil, jobmodel.Wrap(jobmodel.KindInvalidOutput, "task poll: malformed envelope", err)
	}
	if len(env.Tasks) == 0 {
		return taskpoll.OutcomeProcessing, nil, nil
	}
	task := env.Tasks[0]
	outcome := ClassifyStatus(task.StatusCode)
	if outcome != taskpoll.OutcomeDone {
		return outcome, nil, nil
	}
	if len(task.Result) == 0 {
		return taskpoll.OutcomeDone, []byte("{}"), nil
	}
	return taskpoll.OutcomeDone, task.Result[0], nil
}

// translatePollError maps taskpoll engine errors into the pipeline taxonomy
// while passing already-classified errors through untouched.
func translatePollError(err error, provider string) error {
	if jobmodel.KindOf(err) != "" {
		return err
	}
	switch err {
	case taskpoll.ErrTaskFailed:
		return jobmodel.Wrap(jobmodel.KindProviderUnavailable, provider+": task reported failure", err)
	case taskpoll.ErrExhausted:
		return jobmodel.Wrap(jobmodel.KindTimeout, provider+": task never completed", err)
	}
	if err == context.Canceled || err == context.DeadlineExceeded {
		return jobmodel.Wrap(jobmodel.KindCancelled, provider+": cancelled", err)
	}
	return jobmodel.Wrap(jobmodel.KindProviderUnavailable, provider+": poll loop failed", err)
}

func parseOrganicItems(result []byte) ([]Result, error) {
	var parsed struct {
		Items []struct {
			Type         string `json:"type"`
			RankAbsolute int    `json:"rank_absolute"`
			Title        string `json:"title"`
			URL          string `json:"url"`
			Description  string `json:"description"`
		} `json:"items"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return nil, jobmodel.Wrap(jobmodel.KindInvalidOutput, "serptext: malformed result payload", err)
	}
	out := make([]Result, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.Type != "organic" || item.URL == "" {
			continue
		}
		out = append(out, Result{
			Position: item.RankAbsolute,
			Title:    strings.TrimSpace(item.Title),
			URL:      strings.TrimSpace(item.URL),
			Snippet:  strings.TrimSpace(item.Description),
		})
	}
	return out, nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
