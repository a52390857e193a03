package postprocess

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/hyperifyio/contentforge/internal/jobmodel"
)

var markerRe = regexp.MustCompile(`\[(\d+)\]`)

// renumberCitations enforces citation discipline over the whole article:
// markers are collected in body order of first appearance, renumbered to a
// contiguous 1..n, the citation list is reordered to match, unreferenced
// citations are dropped unless pinned, markers with no matching citation
// entry are removed, and academic-style markers inside JSON-LD script
// payloads are stripped (they are data, not references).
func renumberCitations(a *jobmodel.ArticleOutput, pinned []string) {
	byOldN := make(map[int]jobmodel.Source, len(a.Citations))
	for _, c := range a.Citations {
		if _, dup := byOldN[c.N]; !dup {
			byOldN[c.N] = c
		}
	}

	// First appearance order across every visible fragment.
	mapping := make(map[int]int)
	var order []int
	collect := func(frag string) {
		for _, m := range collectFragmentMarkers(frag) {
			if _, known := byOldN[m]; !known {
				continue
			}
			if _, seen := mapping[m]; !seen {
				mapping[m] = len(order) + 1
				order = append(order, m)
			}
		}
	}
	collect(a.Lead)
	walkSections(a.Sections, func(s *jobmodel.Section) { collect(s.Body) })
	for _, qa := range a.FAQ {
		collect(qa.Answer)
	}
	for _, qa := range a.PAA {
		collect(qa.Answer)
	}

	// Rewrite every fragment under the mapping.
	a.Lead = rewriteFragmentMarkers(a.Lead, mapping)
	walkSections(a.Sections, func(s *jobmodel.Section) {
		s.Body = rewriteFragmentMarkers(s.Body, mapping)
	})
	for i := range a.FAQ {
		a.FAQ[i].Answer = rewriteFragmentMarkers(a.FAQ[i].Answer, mapping)
	}
	for i := range a.PAA {
		a.PAA[i].Answer = rewriteFragmentMarkers(a.PAA[i].Answer, mapping)
	}

	// Rebuild the citation list: referenced first, then pinned leftovers.
	out := make([]jobmodel.Source, 0, len(order))
	for _, oldN := range order {
		src := byOldN[oldN]
		src.N = mapping[oldN]
		out = append(out, src)
	}
	for _, c := range a.Citations {
		if _, referenced := mapping[c.N]; referenced {
			continue
		}
		if isPinned(c, pinned) {
			c.N = len(out) + 1
			out = append(out, c)
		}
	}
	a.Citations = out
}

func isPinned(c jobmodel.Source, pinned []string) bool {
	for _, p := range pinned {
		if p != "" && (strings.EqualFold(p, c.Title) || p == c.URL) {
			return true
		}
	}
	return false
}

// collectFragmentMarkers returns the marker numbers in a fragment's visible
// text, in document order, skipping script and style content.
func collectFragmentMarkers(frag string) []int {
	if frag == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body>" + frag + "</body></html>"))
	if err != nil {
		return nil
	}
	var out []int
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			for _, m := range markerRe.FindAllStringSubmatch(n.Data, -1) {
				if k, err := strconv.Atoi(m[1]); err == nil {
					out = append(out, k)
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	if body := doc.Find("body"); body.Length() > 0 {
		walk(body.Nodes[0])
	}
	return out
}

// rewriteFragmentMarkers renumbers visible markers under mapping, removes
// markers with no mapping, and strips markers out of JSON-LD script
// payloads entirely.
func rewriteFragmentMarkers(frag string, mapping map[int]int) string {
	if frag == "" {
		return frag
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body>" + frag + "</body></html>"))
	if err != nil {
		return frag
	}
	body := doc.Find("body")
	if body.Length() == 0 {
		return frag
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" {
			// Markers inside structured-data payloads are not references.
			for child := n.FirstChild; child != nil; child = child.NextSibling {
				if child.Type == html.TextNode {
					child.Data = markerRe.ReplaceAllString(child.Data, "")
				}
			}
			return
		}
		if n.Type == html.TextNode {
			n.Data = markerRe.ReplaceAllStringFunc(n.Data, func(m string) string {
				k, err := strconv.Atoi(strings.Trim(m, "[]"))
				if err != nil {
					return m
				}
				if newN, ok := mapping[k]; ok {
					return "[" + strconv.Itoa(newN) + "]"
				}
				return ""
			})
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(body.Nodes[0])
	return renderChildren(body.Nodes[0])
}

func walkSections(sections []jobmodel.Section, fn func(*jobmodel.Section)) {
	for i := range sections {
		fn(&sections[i])
		walkSections(sections[i].Subsections, fn)
	}
}

func collectMarkers(a *jobmodel.ArticleOutput) []int {
	var out []int
	out = append(out, collectFragmentMarkers(a.Lead)...)
	walkSections(a.Sections, func(s *jobmodel.Section) {
		out = append(out, collectFragmentMarkers(s.Body)...)
	})
	for _, qa := range a.FAQ {
		out = append(out, collectFragmentMarkers(qa.Answer)...)
	}
	return out
}
