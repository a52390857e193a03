// Package sitemap crawls a company site's sitemap(s) and classifies every
// URL into the label taxonomy used for internal-linking hints. Crawl failures
// are warnings, never fatal; the crawler degrades to an empty result.
package sitemap

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/contentforge/internal/fetchclient"
	"github.com/hyperifyio/contentforge/internal/jobmodel"
	"github.com/hyperifyio/contentforge/internal/robots"
)

// Limits bounds one crawl.
type Limits struct {
	// MaxURLs caps the deduplicated URL set. Default 2000.
	MaxURLs int
	// MaxDepth bounds sitemap-index recursion. Default 3.
	MaxDepth int
	// Budget bounds total crawl wall time. Default 60s.
	Budget time.Duration
}

func (l *Limits) applyDefaults() {
	if l.MaxURLs <= 0 {
		l.MaxURLs = 2000
	}
	if l.MaxDepth <= 0 {
		l.MaxDepth = 3
	}
	if l.Budget <= 0 {
		l.Budget = 60 * time.Second
	}
}

// Crawler fetches and classifies sitemaps. The optional AI classifier is
// consulted only for URLs the pattern table cannot label.
type Crawler struct {
	Fetch  *fetchclient.Client
	Robots *robots.Manager
	// Classifier is the optional AI fallback. It is given the URL strings
	// only; no page titles are fetched. Nil disables it; unmatched URLs then
	// default to "other" with low confidence.
	Classifier AIClassifier

	// cache is the optional per-host result cache (5-minute TTL) for repeated
	// crawls of the same company within a session.
	mu    sync.Mutex
	cache map[string]cacheEntry
	now   func() time.Time
}

// AIClassifier labels URLs the pattern table could not match.
type AIClassifier interface {
	ClassifyURLs(ctx context.Context, urls []string) (map[string]jobmodel.URLLabel, error)
}

type cacheEntry struct {
	data   jobmodel.SitemapData
	expiry time.Time
}

const cacheTTL = 5 * time.Minute

// Crawl discovers sitemap locations via robots.txt directives and the
// conventional /sitemap.xml and /sitemap_index.xml paths, flattens any
// sitemap indexes to bounded depth, deduplicates by canonical form,
// truncates to limits.MaxURLs, and classifies every URL.
func (c *Crawler) Crawl(ctx context.Context, baseURL string, limits Limits) (jobmodel.SitemapData, error) {
	limits.applyDefaults()

	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || base.Host == "" {
		return jobmodel.SitemapData{}, jobmodel.New(jobmodel.KindInputInvalid, "sitemap: invalid base url")
	}

	if data, ok := c.cached(base.Host); ok {
		return data, nil
	}

	ctx, cancel := context.WithTimeout(ctx, limits.Budget)
	defer cancel()

	candidates := c.sitemapCandidates(ctx, base)

	seen := make(map[string]struct{})
	var ordered []string
	for _, loc := range candidates {
		urls := c.collect(ctx, loc, 0, limits.MaxDepth)
		for _, u := range urls {
			canon := canonicalize(u)
			if canon == "" {
				continue
			}
			if _, dup := seen[canon]; dup {
				continue
			}
			seen[canon] = struct{}{}
			ordered = append(ordered, canon)
		}
	}
	if len(ordered) > limits.MaxURLs {
		ordered = ordered[:limits.MaxURLs]
	}

	data := c.classifyAll(ctx, ordered)
	c.store(base.Host, data)
	return data, nil
}

// sitemapCandidates returns the ordered list of sitemap locations to try:
// robots.txt Sitemap: directives first, then the conventional paths.
func (c *Crawler) sitemapCandidates(ctx context.Context, base *url.URL) []string {
	root := base.Scheme + "://" + base.Host
	var out []string

	if c.Robots != nil {
		rules, _, err := c.Robots.Get(ctx, root+"/robots.txt")
		if err != nil {
			log.Debug().Err(err).Str("host", base.Host).Msg("sitemap: robots.txt unavailable")
		} else {
			out = append(out, rules.Sitemaps...)
		}
	}
	out = append(out, root+"/sitemap.xml", root+"/sitemap_index.xml")

	// Drop duplicates while preserving order.
	seen := make(map[string]struct{}, len(out))
	uniq := out[:0]
	for _, u := range out {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		uniq = append(uniq, u)
	}
	return uniq
}

// collect fetches one sitemap document and returns the page URLs it lists,
// recursing into sitemap indexes up to maxDepth.
func (c *Crawler) collect(ctx context.Context, loc string, depth, maxDepth int) []string {
	if depth >= maxDepth || ctx.Err() != nil {
		return nil
	}
	body, _, err := c.Fetch.Get(ctx, loc)
	if err != nil {
		log.Debug().Err(err).Str("sitemap", loc).Msg("sitemap: fetch failed, skipping")
		return nil
	}

	doc, err := xmlquery.Parse(strings.NewReader(string(body)))
	if err != nil {
		log.Debug().Err(err).Str("sitemap", loc).Msg("sitemap: not parseable XML, skipping")
		return nil
	}

	// A sitemap index lists further sitemaps under sitemapindex/sitemap/loc.
	if idx := xmlquery.Find(doc, "//*[local-name()='sitemapindex']//*[local-name()='loc']"); len(idx) > 0 {
		var out []string
		for _, node := range idx {
			child := strings.TrimSpace(node.InnerText())
			if child == "" {
				continue
			}
			out = append(out, c.collect(ctx, child, depth+1, maxDepth)...)
		}
		return out
	}

	nodes := xmlquery.Find(doc, "//*[local-name()='urlset']//*[local-name()='url']/*[local-name()='loc']")
	out := make([]string, 0, len(nodes))
	for _, node := range nodes {
		if u := strings.TrimSpace(node.InnerText()); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// canonicalize lowercases scheme and host, strips fragments, and strips the
// trailing slash except at the root. Invalid or non-HTTP URLs return "".
func canonicalize(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ""
	}
	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	return u.String()
}

// classifyAll runs the pattern fast path over every URL and batches the
// leftovers through the optional AI classifier.
func (c *Crawler) classifyAll(ctx context.Context, urls []string) jobmodel.SitemapData {
	entries := make([]jobmodel.SitemapEntry, 0, len(urls))
	var unmatched []string
	unmatchedIdx := make(map[string]int)

	for _, u := range urls {
		if label, ok := classifyByPattern(u); ok {
			entries = append(entries, jobmodel.SitemapEntry{URL: u, Label: label, Confidence: 0.9})
			continue
		}
		unmatchedIdx[u] = len(entries)
		entries = append(entries, jobmodel.SitemapEntry{URL: u, Label: jobmodel.LabelOther, Confidence: 0.2})
		unmatched = append(unmatched, u)
	}

	if c.Classifier != nil && len(unmatched) > 0 {
		labels, err := c.Classifier.ClassifyURLs(ctx, unmatched)
		if err != nil {
			log.Debug().Err(err).Msg("sitemap: AI classifier unavailable, keeping pattern defaults")
		} else {
			for u, label := range labels {
				if idx, ok := unmatchedIdx[u]; ok && label != "" {
					entries[idx].Label = label
					entries[idx].Confidence = 0.6
				}
			}
		}
	}
	return jobmodel.SitemapData{Entries: entries}
}

func (c *Crawler) cached(host string) (jobmodel.SitemapData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.now == nil {
		c.now = time.Now
	}
	ent, ok := c.cache[host]
	if !ok || c.now().After(ent.expiry) {
		return jobmodel.SitemapData{}, false
	}
	return ent.data, true
}

func (c *Crawler) store(host string, data jobmodel.SitemapData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.now == nil {
		c.now = time.Now
	}
	if c.cache == nil {
		c.cache = make(map[string]cacheEntry)
	}
	c.cache[host] = cacheEntry{data: data, expiry: c.now().Add(cacheTTL)}
}
