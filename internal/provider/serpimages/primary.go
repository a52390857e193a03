package serpimages

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hyperifyio/contentforge/internal/jobmodel"
)

// DefaultPrimaryURL is the single-request Google-Images endpoint.
const DefaultPrimaryURL = "https://google.serper.dev/images"

// Primary is the single-request SERP-images provider. One POST with the
// query payload, one JSON response; no task polling.
type Primary struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func (p *Primary) Name() string { return "serpimages-primary" }

func (p *Primary) IsConfigured() bool { return strings.TrimSpace(p.APIKey) != "" }

func (p *Primary) CostPerThousand() float64 { return 1.0 }

// SearchImages issues one search request. The single-request timeout is 30s
// per the provider-call budget table.
func (p *Primary) SearchImages(ctx context.Context, q Query) ([]ImageHit, error) {
	if !p.IsConfigured() {
		return nil, jobmodel.New(jobmodel.KindProviderUnavailable, "serpimages primary: missing API key")
	}
	if strings.TrimSpace(q.Query) == "" {
		return nil, jobmodel.New(jobmodel.KindInputInvalid, "serpimages primary: empty query")
	}

	max := q.Max
	if max <= 0 {
		max = 20
	}
	if max > 100 {
		max = 100
	}
	payload := map[string]any{"q": q.Query, "num": max}
	if q.Type != "" {
		payload["imageType"] = q.Type
	}
	if q.Size != "" {
		payload["imageSize"] = q.Size
	}
	if q.License != "" {
		payload["imageLicense"] = q.License
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, jobmodel.Wrap(jobmodel.KindIO, "serpimages primary: encode payload", err)
	}

	base := p.BaseURL
	if base == "" {
		base = DefaultPrimaryURL
	}
	callCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, base, bytes.NewReader(body))
	if err != nil {
		return nil, jobmodel.Wrap(jobmodel.KindIO, "serpimages primary: build request", err)
	}
	req.Header.Set("X-API-KEY", p.APIKey)
	req.Header.Set("Content-Type", "application/json")

	hc := p.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, jobmodel.Wrap(jobmodel.KindProviderUnavailable, "serpimages primary: request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, jobmodel.New(jobmodel.KindQuotaExhausted, "serpimages primary: rate limited")
	case resp.StatusCode >= 500:
		return nil, jobmodel.New(jobmodel.KindProviderUnavailable, fmt.Sprintf("serpimages primary: upstream status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, jobmodel.New(jobmodel.KindInputInvalid, fmt.Sprintf("serpimages primary: request rejected with status %d", resp.StatusCode))
	}

	var parsed struct {
		Images []struct {
			Title        string `json:"title"`
			ImageURL     string `json:"imageUrl"`
			ImageWidth   int    `json:"imageWidth"`
			ImageHeight  int    `json:"imageHeight"`
			ThumbnailURL string `json:"thumbnailUrl"`
			Source       string `json:"source"`
			Domain       string `json:"domain"`
		} `json:"images"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, jobmodel.Wrap(jobmodel.KindInvalidOutput, "serpimages primary: malformed response", err)
	}

	hits := make([]ImageHit, 0, len(parsed.Images))
	for _, img := range parsed.Images {
		if img.ImageURL == "" {
			continue
		}
		source := img.Domain
		if source == "" {
			source = img.Source
		}
		hits = append(hits, ImageHit{
			URL:        strings.TrimSpace(img.ImageURL),
			Title:      strings.TrimSpace(img.Title),
			SourceSite: strings.TrimSpace(source),
			Thumbnail:  strings.TrimSpace(img.ThumbnailURL),
			Width:      img.ImageWidth,
			Height:     img.ImageHeight,
		})
		if len(hits) >= max {
			break
		}
	}
	return hits, nil
}
