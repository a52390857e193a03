package assets

import (
	"context"
	"fmt"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/contentforge/internal/jobmodel"
	"github.com/hyperifyio/contentforge/internal/provider/serpimages"
	"github.com/hyperifyio/contentforge/internal/provider/textllm"
)

type scriptedClient struct {
	reply string
	err   error
}

func (s *scriptedClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
		{Message: openai.ChatCompletionMessage{Content: s.reply}},
	}}, nil
}

type fakeSearcher struct {
	name       string
	configured bool
	hits       []serpimages.ImageHit
	err        error
	calls      int
}

func (f *fakeSearcher) Name() string             { return f.name }
func (f *fakeSearcher) IsConfigured() bool       { return f.configured }
func (f *fakeSearcher) CostPerThousand() float64 { return 1 }
func (f *fakeSearcher) SearchImages(ctx context.Context, q serpimages.Query) ([]serpimages.ImageHit, error) {
	f.calls++
	return f.hits, f.err
}

func TestFindUsesLLMPrimary(t *testing.T) {
	client := &scriptedClient{reply: `{"assets": [
		{"url": "https://images.unsplash.com/photo-1.jpg", "title": "One", "source_site": "unsplash", "kind": "photo"},
		{"url": "ftp://bad.example.com/x.jpg", "title": "Invalid scheme"},
		{"url": "https://example.com/page", "title": "Not an image"}
	]}`}
	serp := &fakeSearcher{name: "serp", configured: true}
	f := &Finder{LLM: &textllm.Provider{Client: client}, Model: "m", Primary: serp}

	res, err := f.Find(context.Background(), Request{Topic: "rooftop solar", Max: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Assets) != 1 {
		t.Fatalf("assets = %d, want 1 (invalid URLs dropped): %+v", len(res.Assets), res.Assets)
	}
	if serp.calls != 0 {
		t.Fatalf("SERP must not be called when LLM primary yields candidates")
	}
}

func TestFindFallsBackToSERPWhenLLMEmpty(t *testing.T) {
	client := &scriptedClient{reply: `{"assets": []}`}
	primary := &fakeSearcher{name: "primary", configured: true, err: jobmodel.New(jobmodel.KindQuotaExhausted, "quota")}
	secondary := &fakeSearcher{name: "secondary", configured: true, hits: []serpimages.ImageHit{
		{URL: "https://cdn.pexels.com/a.png", Title: "A", SourceSite: "pexels.com"},
	}}
	f := &Finder{LLM: &textllm.Provider{Client: client}, Model: "m", Primary: primary, Secondary: secondary}

	res, err := f.Find(context.Background(), Request{Topic: "wind farms", Max: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Assets) != 1 || res.Assets[0].URL != "https://cdn.pexels.com/a.png" {
		t.Fatalf("unexpected assets: %+v", res.Assets)
	}
	if !strings.Contains(res.Report.Details, "primary") || !strings.Contains(res.Report.Details, "secondary") {
		t.Fatalf("report must record the provider switch: %q", res.Report.Details)
	}
}

func TestDiversityFilterCapsPerDomainAndSource(t *testing.T) {
	var in []jobmodel.FoundAsset
	for i := 0; i < 5; i++ {
		in = append(in, jobmodel.FoundAsset{
			URL:        fmt.Sprintf("https://images.unsplash.com/p-%d.jpg", i),
			SourceSite: "unsplash",
		})
	}
	in = append(in,
		jobmodel.FoundAsset{URL: "https://cdn.pexels.com/x.jpg", SourceSite: "pexels"},
		jobmodel.FoundAsset{URL: "https://cdn.pexels.com/x.jpg", SourceSite: "pexels"}, // dup URL
	)

	out := diversityFilter(in, 10)
	if len(out) != 3 {
		t.Fatalf("kept = %d, want 3 (2 unsplash + 1 pexels)", len(out))
	}
	domains := map[string]int{}
	for _, a := range out {
		domains[a.SourceSite]++
	}
	if domains["unsplash"] != 2 || domains["pexels"] != 1 {
		t.Fatalf("unexpected distribution: %v", domains)
	}
}

func TestValidImageURL(t *testing.T) {
	cases := []struct {
		url  string
		want bool
	}{
		{"https://example.com/photo.jpg", true},
		{"https://example.com/photo.WEBP", true},
		{"https://images.unsplash.com/photo-xyz", true}, // known host, no extension
		{"https://example.com/page.html", false},
		{"ftp://example.com/photo.jpg", false},
		{"", false},
	}
	for _, c := range cases {
		if got := validImageURL(c.url); got != c.want {
			t.Errorf("validImageURL(%q) = %v, want %v", c.url, got, c.want)
		}
	}
}

func TestPaletteAndStyleTables(t *testing.T) {
	if got := paletteFor("financial technology"); got[0] != "#0066CC" {
		// Only "technology" is a substring here ("financial" does not contain
		// "finance"); the finance palette is still tolerated because map order
		// would decide between several matching keys.
		if got[0] != "#1A472A" {
			t.Fatalf("unexpected palette for mixed industry: %v", got)
		}
	}
	if got := paletteFor("retail commerce"); got[0] != "#FF6B6B" {
		t.Fatalf("retail palette = %v", got)
	}
	if got := paletteFor("unknown sector"); got[0] != "#6366F1" {
		t.Fatalf("default palette = %v", got)
	}
	if got := styleFor("Bold and modern"); got != "modern minimalist" {
		t.Fatalf("style = %q, want modern minimalist (table order decides)", got)
	}
	if got := styleFor("quiet"); got != "professional" {
		t.Fatalf("default style = %q", got)
	}
}
