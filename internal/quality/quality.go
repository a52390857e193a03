// Package quality runs the observational invariant checks over a finished
// article and its rendered HTML. It never mutates anything; it only reports.
package quality

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/hyperifyio/contentforge/internal/jobmodel"
)

// Options tunes which checks run.
type Options struct {
	// ForbidDashes flags em- and en-dashes in visible text as critical.
	ForbidDashes bool
}

// Report is the checker's verdict. Pass is true when no critical findings
// exist; warnings never fail an article.
type Report struct {
	Critical []string
	Warnings []string
}

func (r Report) Pass() bool { return len(r.Critical) == 0 }

// StageReport folds the verdict into the pipeline's report shape.
func (r Report) StageReport() jobmodel.StageReport {
	switch {
	case len(r.Critical) > 0:
		return jobmodel.StageReport{StageID: "quality", Status: jobmodel.StatusFail, Details: strings.Join(r.Critical, "; ")}
	case len(r.Warnings) > 0:
		return jobmodel.StageReport{StageID: "quality", Status: jobmodel.StatusWarn, Details: strings.Join(r.Warnings, "; ")}
	default:
		return jobmodel.StageReport{StageID: "quality", Status: jobmodel.StatusOK}
	}
}

var (
	rawBoldRe = regexp.MustCompile(`\*\*[^*]+\*\*`)
	markerRe  = regexp.MustCompile(`\[\d+\]`)
)

// Check runs every invariant over the article object and the rendered page.
func Check(a *jobmodel.ArticleOutput, renderedHTML []byte, opts Options) Report {
	var rep Report

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(renderedHTML)))
	if err != nil {
		rep.Critical = append(rep.Critical, "rendered HTML is not parseable: "+err.Error())
		return rep
	}

	visible := visibleText(doc)

	if rawBoldRe.MatchString(visible) {
		rep.Critical = append(rep.Critical, "raw **bold** markers in visible text")
	}
	if strings.Contains(visible, "UNVERIFIED") {
		rep.Critical = append(rep.Critical, "UNVERIFIED token in visible text")
	}
	if opts.ForbidDashes && strings.ContainsAny(visible, "—–") {
		rep.Critical = append(rep.Critical, "em/en-dash in visible text")
	}
	if strings.Contains(string(renderedHTML), "&amp;amp;") {
		rep.Critical = append(rep.Critical, "double-encoded entities in output")
	}

	if msg := markersOutsideCitations(doc); msg != "" {
		rep.Critical = append(rep.Critical, msg)
	}
	if msg := citationNumbering(a); msg != "" {
		rep.Critical = append(rep.Critical, msg)
	}
	if msg := duplicateParagraphs(doc); msg != "" {
		rep.Critical = append(rep.Critical, msg)
	}
	if msg := truncatedItems(doc); msg != "" {
		rep.Critical = append(rep.Critical, msg)
	}
	if msg := emptyBlocks(doc); msg != "" {
		rep.Critical = append(rep.Critical, msg)
	}

	rep.Warnings = append(rep.Warnings, warnings(a, doc)...)
	return rep
}

// visibleText extracts the page's visible text, skipping script and style.
func visibleText(doc *goquery.Document) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for _, n := range doc.Find("body").Nodes {
		walk(n)
	}
	return b.String()
}

// markersOutsideCitations flags raw [k] tokens in visible text outside the
// citations block; after rendering, markers must have become source links.
func markersOutsideCitations(doc *goquery.Document) string {
	found := ""
	var walk func(n *html.Node, inCitations bool)
	walk = func(n *html.Node, inCitations bool) {
		if n.Type == html.ElementNode {
			if n.Data == "script" || n.Data == "style" {
				return
			}
			for _, attr := range n.Attr {
				if attr.Key == "class" && strings.Contains(attr.Val, "citations") {
					inCitations = true
				}
			}
		}
		if n.Type == html.TextNode && !inCitations && markerRe.MatchString(n.Data) {
			found = fmt.Sprintf("raw citation marker %q outside citations block", markerRe.FindString(n.Data))
			return
		}
		for child := n.FirstChild; child != nil && found == ""; child = child.NextSibling {
			walk(child, inCitations)
		}
	}
	for _, n := range doc.Find("body").Nodes {
		walk(n, false)
	}
	return found
}

func citationNumbering(a *jobmodel.ArticleOutput) string {
	for i, c := range a.Citations {
		if c.N != i+1 {
			return fmt.Sprintf("sources not contiguous from 1: position %d numbered %d", i+1, c.N)
		}
	}
	return ""
}

func duplicateParagraphs(doc *goquery.Document) string {
	seen := map[string]bool{}
	dup := ""
	doc.Find("article p").Each(func(_ int, p *goquery.Selection) {
		key := strings.Join(strings.Fields(p.Text()), " ")
		if key == "" {
			return
		}
		if seen[key] && dup == "" {
			dup = "duplicate paragraph: " + clip(key, 60)
		}
		seen[key] = true
	})
	return dup
}

var stopWords = map[string]bool{
	"of": true, "by": true, "the": true, "and": true, "with": true,
	"for": true, "to": true, "in": true, "on": true, "at": true,
	"from": true, "a": true, "an": true,
}

func truncatedItems(doc *goquery.Document) string {
	found := ""
	doc.Find("article li").Each(func(_ int, li *goquery.Selection) {
		words := strings.Fields(li.Text())
		if len(words) == 0 || len(words) >= 5 || found != "" {
			return
		}
		last := strings.ToLower(strings.Trim(words[len(words)-1], ".,;:!?"))
		if stopWords[last] {
			found = "truncated list item: " + clip(li.Text(), 60)
		}
	})
	return found
}

func emptyBlocks(doc *goquery.Document) string {
	found := ""
	doc.Find("article p, article li, article h2, article h3").Each(func(_ int, s *goquery.Selection) {
		if found == "" && strings.TrimSpace(s.Text()) == "" && s.Find("img").Length() == 0 {
			found = "empty block-level element <" + goquery.NodeName(s) + ">"
		}
	})
	return found
}

func warnings(a *jobmodel.ArticleOutput, doc *goquery.Document) []string {
	var out []string

	if doc.Find(`meta[property="og:title"]`).Length() == 0 ||
		doc.Find(`meta[property="og:description"]`).Length() == 0 {
		out = append(out, "missing OG tags")
	}
	if t, ok := doc.Find(`meta[property="article:published_time"]`).Attr("content"); !ok || !isISO8601(t) {
		out = append(out, "published time not ISO-8601")
	}
	if len(a.TOC) < 3 {
		out = append(out, "ToC shorter than 3 entries")
	}
	if len(a.FAQ) == 0 {
		out = append(out, "FAQ absent")
	}
	if len(a.Citations) < 1 {
		out = append(out, "fewer than one external citation")
	}
	return out
}

var iso8601Re = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})$`)

func isISO8601(s string) bool { return iso8601Re.MatchString(s) }

func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
