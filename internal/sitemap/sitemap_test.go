package sitemap

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/contentforge/internal/fetchclient"
	"github.com/hyperifyio/contentforge/internal/jobmodel"
	"github.com/hyperifyio/contentforge/internal/provider/textllm"
	"github.com/hyperifyio/contentforge/internal/robots"
)

func newTestSite(t *testing.T, mux *http.ServeMux) (*httptest.Server, *Crawler) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	crawler := &Crawler{
		Fetch:  &fetchclient.Client{MaxAttempts: 1, PerRequestTimeout: 5 * time.Second},
		Robots: &robots.Manager{AllowPrivateHosts: true},
	}
	return srv, crawler
}

func TestCrawlFlattensIndexAndClassifies(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "User-agent: *\nSitemap: %s/sitemap_index.xml\n", srv.URL)
	})
	mux.HandleFunc("/sitemap_index.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>%s/sitemap_pages.xml</loc></sitemap>
</sitemapindex>`, srv.URL)
	})
	mux.HandleFunc("/sitemap_pages.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>%[1]s/blog/first-post/</loc></url>
  <url><loc>%[1]s/blog/first-post</loc></url>
  <url><loc>%[1]s/products/widget</loc></url>
  <url><loc>%[1]s/about</loc></url>
  <url><loc>%[1]s/something-unusual</loc></url>
</urlset>`, srv.URL)
	})
	// /sitemap.xml 404s; the conventional /sitemap_index.xml is the same URL as
	// the robots directive, so it is fetched once and carries the crawl.
	srv2, crawler := newTestSite(t, mux)
	srv = srv2

	data, err := crawler.Crawl(context.Background(), srv.URL, Limits{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Trailing-slash variant deduplicates: 4 distinct URLs.
	if len(data.Entries) != 4 {
		t.Fatalf("entries = %d, want 4: %+v", len(data.Entries), data.Entries)
	}

	byURL := map[string]jobmodel.URLLabel{}
	for _, e := range data.Entries {
		byURL[e.URL] = e.Label
	}
	if got := byURL[strings.ToLower(srv.URL)+"/blog/first-post"]; got != jobmodel.LabelBlog {
		t.Errorf("blog label = %v", got)
	}
	if got := byURL[strings.ToLower(srv.URL)+"/products/widget"]; got != jobmodel.LabelProduct {
		t.Errorf("product label = %v", got)
	}
	if got := byURL[strings.ToLower(srv.URL)+"/about"]; got != jobmodel.LabelCompany {
		t.Errorf("about label = %v", got)
	}
	if got := byURL[strings.ToLower(srv.URL)+"/something-unusual"]; got != jobmodel.LabelOther {
		t.Errorf("unmatched label = %v, want other", got)
	}
}

func TestCrawlDegradesToEmptyOnFetchFailures(t *testing.T) {
	mux := http.NewServeMux() // every path 404s
	srv, crawler := newTestSite(t, mux)

	data, err := crawler.Crawl(context.Background(), srv.URL, Limits{})
	if err != nil {
		t.Fatalf("crawl failures must degrade, not error: %v", err)
	}
	if len(data.Entries) != 0 {
		t.Fatalf("entries = %d, want 0", len(data.Entries))
	}
}

func TestCrawlTruncatesToMaxURLs(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		b.WriteString(`<?xml version="1.0"?><urlset>`)
		for i := 0; i < 50; i++ {
			fmt.Fprintf(&b, "<url><loc>%s/blog/post-%d</loc></url>", srv.URL, i)
		}
		b.WriteString(`</urlset>`)
		_, _ = w.Write([]byte(b.String()))
	})
	srv2, crawler := newTestSite(t, mux)
	srv = srv2

	data, err := crawler.Crawl(context.Background(), srv.URL, Limits{MaxURLs: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data.Entries) != 10 {
		t.Fatalf("entries = %d, want 10", len(data.Entries))
	}
}

func TestCrawlLabelsPartitionURLSet(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<urlset>
<url><loc>%[1]s/blog/a</loc></url>
<url><loc>%[1]s/privacy</loc></url>
<url><loc>%[1]s/contact</loc></url>
</urlset>`, srv.URL)
	})
	srv2, crawler := newTestSite(t, mux)
	srv = srv2

	data, err := crawler.Crawl(context.Background(), srv.URL, Limits{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	seen := map[string]struct{}{}
	for _, e := range data.Entries {
		if _, dup := seen[e.URL]; dup {
			t.Fatalf("URL %q labelled twice", e.URL)
		}
		seen[e.URL] = struct{}{}
		if e.Label == "" {
			t.Fatalf("URL %q has no label", e.URL)
		}
	}
}

type fakeClassifier struct {
	labels map[string]jobmodel.URLLabel
	calls  int
	seen   []string
}

func (f *fakeClassifier) ClassifyURLs(ctx context.Context, urls []string) (map[string]jobmodel.URLLabel, error) {
	f.calls++
	f.seen = append(f.seen, urls...)
	return f.labels, nil
}

func TestCrawlAIClassifierOnlySeesUnmatched(t *testing.T) {
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<urlset>
<url><loc>%[1]s/blog/a</loc></url>
<url><loc>%[1]s/mystery-page</loc></url>
</urlset>`, srv.URL)
	})
	srv2, crawler := newTestSite(t, mux)
	srv = srv2

	fc := &fakeClassifier{labels: map[string]jobmodel.URLLabel{}}
	crawler.Classifier = fc
	data, err := crawler.Crawl(context.Background(), srv.URL, Limits{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mystery := strings.ToLower(srv.URL) + "/mystery-page"
	if len(fc.seen) != 1 || fc.seen[0] != mystery {
		t.Fatalf("classifier saw %v, want only %s", fc.seen, mystery)
	}
	fc.labels[mystery] = jobmodel.LabelTool

	// Second crawl within the TTL serves the cache; classifier not re-run.
	if _, err := crawler.Crawl(context.Background(), srv.URL, Limits{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fc.calls != 1 {
		t.Fatalf("classifier calls = %d, want 1 (second crawl cached)", fc.calls)
	}
	for _, e := range data.Entries {
		if e.URL == mystery && e.Confidence > 0.5 {
			t.Fatalf("unmatched URL without AI label must be low confidence, got %v", e.Confidence)
		}
	}
}

func TestCanonicalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"HTTPS://Example.COM/Path/", "https://example.com/Path"},
		{"https://example.com/", "https://example.com/"},
		{"https://example.com/page#frag", "https://example.com/page"},
		{"ftp://example.com/x", ""},
		{"not a url", ""},
	}
	for _, c := range cases {
		if got := canonicalize(c.in); got != c.want {
			t.Errorf("canonicalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

type classifierClient struct{ reply string }

func (c *classifierClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
		{Message: openai.ChatCompletionMessage{Content: c.reply}},
	}}, nil
}

func TestLLMClassifierParsesAndFiltersLabels(t *testing.T) {
	client := &classifierClient{reply: `{"labels": {
		"https://x.example.com/widgets": "product",
		"https://x.example.com/weird": "not-a-label"
	}}`}
	c := &LLMClassifier{LLM: &textllm.Provider{Client: client}, Model: "m"}

	labels, err := c.ClassifyURLs(context.Background(), []string{
		"https://x.example.com/widgets", "https://x.example.com/weird",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if labels["https://x.example.com/widgets"] != jobmodel.LabelProduct {
		t.Fatalf("labels = %v", labels)
	}
	if _, ok := labels["https://x.example.com/weird"]; ok {
		t.Fatal("labels outside the taxonomy must be discarded")
	}
}

func TestLLMClassifierUnconfigured(t *testing.T) {
	c := &LLMClassifier{}
	if _, err := c.ClassifyURLs(context.Background(), []string{"https://x.example.com/"}); err == nil {
		t.Fatal("unconfigured classifier must error so the crawler keeps defaults")
	}
}
