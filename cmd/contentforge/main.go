package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/contentforge/internal/article"
	"github.com/hyperifyio/contentforge/internal/artifacts"
	"github.com/hyperifyio/contentforge/internal/assets"
	"github.com/hyperifyio/contentforge/internal/cache"
	"github.com/hyperifyio/contentforge/internal/companycontext"
	"github.com/hyperifyio/contentforge/internal/config"
	"github.com/hyperifyio/contentforge/internal/fetchclient"
	"github.com/hyperifyio/contentforge/internal/imagegen"
	"github.com/hyperifyio/contentforge/internal/jobmodel"
	"github.com/hyperifyio/contentforge/internal/llm"
	"github.com/hyperifyio/contentforge/internal/orchestrator"
	"github.com/hyperifyio/contentforge/internal/provider/imagellm"
	"github.com/hyperifyio/contentforge/internal/provider/serpimages"
	"github.com/hyperifyio/contentforge/internal/provider/serptext"
	"github.com/hyperifyio/contentforge/internal/provider/textllm"
	"github.com/hyperifyio/contentforge/internal/render"
	"github.com/hyperifyio/contentforge/internal/robots"
	"github.com/hyperifyio/contentforge/internal/sitemap"
)

// Exit codes: 0 all articles succeeded, 1 some articles failed but the batch
// completed, 2 fatal batch error.
const (
	exitOK    = 0
	exitSome  = 1
	exitFatal = 2
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	var (
		batchPath    string
		outDir       string
		settingsPath string
		textModel    string
		imageModel   string
		llmBaseURL   string
		cacheDir     string
		cacheMaxAge  time.Duration
		cacheClear   bool
		verbose      bool
	)
	flag.StringVar(&batchPath, "batch", "batch.json", "Path to batch input JSON")
	flag.StringVar(&outDir, "out", "./output", "Output directory root")
	flag.StringVar(&settingsPath, "settings", "", "Optional YAML settings file")
	flag.StringVar(&textModel, "llm.model", "", "Text model name (overrides settings)")
	flag.StringVar(&imageModel, "image.model", "", "Image model name (overrides settings)")
	flag.StringVar(&llmBaseURL, "llm.base", "", "OpenAI-compatible base URL (overrides settings)")
	flag.StringVar(&cacheDir, "cache.dir", ".contentforge-cache", "Cache directory path")
	flag.DurationVar(&cacheMaxAge, "cache.maxAge", 0, "Max age for cache entries before purge (e.g. 24h); 0 disables")
	flag.BoolVar(&cacheClear, "cache.clear", false, "Clear cache directory before run")
	flag.BoolVar(&verbose, "v", false, "Verbose logging")
	flag.Parse()

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	os.Exit(run(runOptions{
		batchPath:    batchPath,
		outDir:       outDir,
		settingsPath: settingsPath,
		textModel:    textModel,
		imageModel:   imageModel,
		llmBaseURL:   llmBaseURL,
		cacheDir:     cacheDir,
		cacheMaxAge:  cacheMaxAge,
		cacheClear:   cacheClear,
	}))
}

type runOptions struct {
	batchPath    string
	outDir       string
	settingsPath string
	textModel    string
	imageModel   string
	llmBaseURL   string
	cacheDir     string
	cacheMaxAge  time.Duration
	cacheClear   bool
}

func run(opts runOptions) int {
	batchPath, outDir := opts.batchPath, opts.outDir
	textModel, imageModel, llmBaseURL := opts.textModel, opts.imageModel, opts.llmBaseURL
	settings, err := config.LoadSettings(opts.settingsPath)
	if err != nil {
		log.Error().Err(err).Msg("loading settings failed")
		return exitFatal
	}
	if textModel == "" {
		textModel = settings.TextModel
	}
	if textModel == "" {
		textModel = "gpt-4o-mini"
	}
	if imageModel == "" {
		imageModel = settings.ImageModel
	}
	if imageModel == "" {
		imageModel = "dall-e-3"
	}
	if llmBaseURL == "" {
		llmBaseURL = settings.LLMBaseURL
	}

	in, err := config.LoadBatch(batchPath)
	if err != nil {
		log.Error().Err(err).Str("path", batchPath).Msg("loading batch input failed")
		return exitFatal
	}

	cacheDir := opts.cacheDir
	if settings.CacheDir != "" && opts.cacheDir == ".contentforge-cache" {
		cacheDir = settings.CacheDir
	}
	if err := prepareCache(cacheDir, opts.cacheClear, opts.cacheMaxAge); err != nil {
		log.Warn().Err(err).Msg("cache maintenance failed, continuing")
	}

	var creds config.Credentials
	creds.ApplyEnv()
	if creds.TextLLMKey == "" {
		log.Error().Msg("TEXT_LLM_API_KEY is required")
		return exitFatal
	}

	// Cancellation: one signal cancels the whole batch; in-flight workers
	// observe it at the next provider-call boundary.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	o := buildOrchestrator(in, creds, settings, textModel, imageModel, llmBaseURL, outDir, cacheDir)

	report, err := o.Run(ctx, in)
	if err != nil {
		log.Error().Err(err).Msg("batch failed")
		return exitFatal
	}
	fmt.Fprintf(os.Stderr, "articles: %d total, %d successful, %d failed (%s)\n",
		report.ArticlesTotal, report.ArticlesSuccessful, report.ArticlesFailed, report.WallTime)
	if report.ArticlesSuccessful < report.ArticlesTotal {
		return exitSome
	}
	return exitOK
}

// prepareCache applies the teacher-style cache maintenance flags: optional
// full clear, then age-based purge of both the HTTP and LLM caches.
func prepareCache(dir string, clear bool, maxAge time.Duration) error {
	if dir == "" {
		return nil
	}
	if clear {
		if err := cache.ClearDir(dir); err != nil {
			return err
		}
	}
	if maxAge > 0 {
		if _, err := cache.PurgeHTTPCacheByAge(filepath.Join(dir, "http"), maxAge); err != nil {
			return err
		}
		if _, err := cache.PurgeLLMCacheByAge(filepath.Join(dir, "llm"), maxAge); err != nil {
			return err
		}
	}
	return nil
}

func buildOrchestrator(in jobmodel.BatchInput, creds config.Credentials, settings config.Settings, textModel, imageModel, llmBaseURL, outDir, cacheDir string) *orchestrator.Orchestrator {
	oaCfg := openai.DefaultConfig(creds.TextLLMKey)
	if llmBaseURL != "" {
		oaCfg.BaseURL = llmBaseURL
	}
	chatClient := &llm.OpenAIProvider{Inner: openai.NewClientWithConfig(oaCfg)}

	// The grounded text LLM searches the web through the paid SERP provider
	// when its credentials are present.
	serpText := &serptext.Provider{Login: creds.SERPSecondaryLogin, Password: creds.SERPSecondaryPassword}
	var searcher textllm.Searcher
	if serpText.IsConfigured() {
		searcher = &serpSearcher{provider: serpText, language: in.Language, market: in.Market}
	}
	textProvider := &textllm.Provider{Client: chatClient, Searcher: searcher}
	var httpCache *cache.HTTPCache
	if cacheDir != "" {
		httpCache = &cache.HTTPCache{Dir: filepath.Join(cacheDir, "http")}
		textProvider.Cache = &cache.LLMCache{Dir: filepath.Join(cacheDir, "llm")}
	}

	httpClient := &fetchclient.Client{
		UserAgent:         "contentforge/1.0 (+https://github.com/hyperifyio/contentforge)",
		MaxAttempts:       3,
		PerRequestTimeout: 20 * time.Second,
		Cache:             httpCache,
	}
	crawler := &sitemap.Crawler{
		Fetch:      httpClient,
		Robots:     &robots.Manager{UserAgent: "contentforge/1.0", Cache: httpCache},
		Classifier: &sitemap.LLMClassifier{LLM: textProvider, Model: textModel},
	}

	imageProvider := &imagellm.Provider{
		Client:     openai.NewClientWithConfig(imageClientConfig(creds, llmBaseURL)),
		Model:      imageModel,
		Configured: creds.ImageLLMKey != "",
	}
	imgGen := &imagegen.Generator{Provider: imageProvider}

	finder := &assets.Finder{
		LLM:       textProvider,
		Model:     textModel,
		Primary:   &serpimages.Primary{APIKey: creds.SERPPrimaryKey},
		Secondary: &serpimages.Secondary{Login: creds.SERPSecondaryLogin, Password: creds.SERPSecondaryPassword},
		Imagegen:  imgGen,
	}

	o := &orchestrator.Orchestrator{
		Sitemap:      &crawlerAdapter{crawler: crawler},
		Company:      &companycontext.Resolver{LLM: textProvider, Model: textModel},
		Articles:     &article.Generator{LLM: textProvider, Model: textModel},
		Assets:       finder,
		Renderer:     render.New(),
		Writer:       &artifacts.Writer{Root: outDir},
		ForbidDashes: settings.ForbidDashes,
	}
	if creds.ImageLLMKey != "" && !in.SkipImages {
		o.Images = imgGen
	}
	return o
}

func imageClientConfig(creds config.Credentials, llmBaseURL string) openai.ClientConfig {
	key := creds.ImageLLMKey
	if key == "" {
		key = creds.TextLLMKey
	}
	cfg := openai.DefaultConfig(key)
	if llmBaseURL != "" {
		cfg.BaseURL = llmBaseURL
	}
	return cfg
}

// serpSearcher adapts the paid SERP provider to the text LLM's web-search
// tool surface.
type serpSearcher struct {
	provider *serptext.Provider
	language string
	market   string
}

func (s *serpSearcher) Search(ctx context.Context, query string) ([]textllm.SearchHit, error) {
	results, err := s.provider.Search(ctx, query, s.language, s.market, 10)
	if err != nil {
		return nil, err
	}
	hits := make([]textllm.SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, textllm.SearchHit{Title: r.Title, URL: r.URL, Snippet: r.Snippet})
	}
	return hits, nil
}

// crawlerAdapter binds the crawl limits once so the orchestrator sees the
// narrow one-argument surface.
type crawlerAdapter struct {
	crawler *sitemap.Crawler
}

func (c *crawlerAdapter) Crawl(ctx context.Context, baseURL string) (jobmodel.SitemapData, error) {
	return c.crawler.Crawl(ctx, baseURL, sitemap.Limits{})
}
