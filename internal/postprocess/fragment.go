package postprocess

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// cleanFragment runs the per-fragment passes: markdown normalization, list
// reconstruction, entity safety, truncated-item removal, deduplication, and
// orphan cleanup. Input may be any mix of HTML and markdown; output is an
// HTML fragment.
func cleanFragment(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}

	s := unescapeBlockTags(fragment)
	s = normalizeMarkdown(s)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><head></head><body>" + s + "</body></html>"))
	if err != nil {
		return s
	}
	body := doc.Find("body")
	if body.Length() == 0 {
		return s
	}

	splitBulletParagraphs(body)
	wrapLooseInline(body.Nodes[0])
	coalesceLists(body.Nodes[0])
	stripListWhitespace(body.Nodes[0])
	decodeDoubleAmp(body.Nodes[0])
	dropTruncatedItems(body)
	dedupeParagraphs(body)
	removeOrphans(body)

	return renderChildren(body.Nodes[0])
}

// escapedBlockTag matches entity-escaped block and inline-formatting tags
// that LLMs sometimes emit in body text. It touches only these named tags,
// never arbitrary escaped angle brackets.
var escapedBlockTag = regexp.MustCompile(`&lt;(/?(?:p|ul|ol|li|div|h[1-6]|strong|em|table|tr|td|th))&gt;`)

func unescapeBlockTags(s string) string {
	return escapedBlockTag.ReplaceAllString(s, "<$1>")
}

var (
	boldRe        = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	emRe          = regexp.MustCompile(`\*([^*\n]+)\*`)
	dashLineRe    = regexp.MustCompile(`^\s*-\s+(.+)$`)
	orderedLineRe = regexp.MustCompile(`^\s*\d+\.\s+(.+)$`)
)

// normalizeMarkdown converts markdown constructs that appear inside or
// between HTML fragments into HTML: bold, emphasis, and line-based bullet or
// numbered lists. Lines already inside list markup are left alone.
func normalizeMarkdown(s string) string {
	s = boldRe.ReplaceAllString(s, "<strong>$1</strong>")
	s = emRe.ReplaceAllString(s, "<em>$1</em>")

	lines := strings.Split(s, "\n")
	var out []string
	listKind := "" // "", "ul", "ol"

	flush := func() {
		if listKind != "" {
			out = append(out, "</"+listKind+">")
			listKind = ""
		}
	}
	open := func(kind string) {
		if listKind != kind {
			flush()
			out = append(out, "<"+kind+">")
			listKind = kind
		}
	}

	for _, line := range lines {
		if strings.Contains(line, "<li") || strings.Contains(line, "</li") {
			flush()
			out = append(out, line)
			continue
		}
		if m := dashLineRe.FindStringSubmatch(line); m != nil {
			open("ul")
			out = append(out, "<li>"+strings.TrimSpace(m[1])+"</li>")
			continue
		}
		if m := orderedLineRe.FindStringSubmatch(line); m != nil {
			open("ol")
			out = append(out, "<li>"+strings.TrimSpace(m[1])+"</li>")
			continue
		}
		flush()
		out = append(out, line)
	}
	flush()
	return strings.Join(out, "\n")
}

// bulletParagraphRe matches a paragraph whose text is an introduction ending
// in a colon or period followed by two or more inline dash-bullets.
var bulletParagraphRe = regexp.MustCompile(`^(.*?[:.])\s*-\s+(.+)$`)

// splitBulletParagraphs splits "<p>Benefits: - Fast - Cheap - Safe</p>" into
// an introductory paragraph followed by an unordered list.
func splitBulletParagraphs(body *goquery.Selection) {
	body.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimSpace(p.Text())
		m := bulletParagraphRe.FindStringSubmatch(text)
		if m == nil {
			return
		}
		items := splitDashItems(m[2])
		if len(items) < 2 {
			return
		}
		var b strings.Builder
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(strings.TrimSpace(m[1])))
		b.WriteString("</p><ul>")
		for _, item := range items {
			b.WriteString("<li>")
			b.WriteString(html.EscapeString(item))
			b.WriteString("</li>")
		}
		b.WriteString("</ul>")
		p.ReplaceWithHtml(b.String())
	})
}

// splitDashItems splits "Fast - Cheap - Safe" on the " - " separators.
func splitDashItems(s string) []string {
	parts := strings.Split(s, " - ")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// blockLevel reports whether an element interrupts an inline run.
var blockLevel = map[string]bool{
	"p": true, "ul": true, "ol": true, "li": true, "div": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"table": true, "section": true, "article": true, "figure": true,
	"blockquote": true, "script": true, "style": true,
}

// wrapLooseInline wraps runs of top-level inline nodes (text, strong, em,
// links) into paragraphs so no formatted text floats outside a block.
func wrapLooseInline(body *html.Node) {
	var runs [][]*html.Node
	var current []*html.Node

	flushRun := func() {
		if hasVisibleContent(current) {
			runs = append(runs, current)
		}
		current = nil
	}
	for child := body.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && blockLevel[child.Data] {
			flushRun()
			continue
		}
		current = append(current, child)
	}
	flushRun()

	for _, run := range runs {
		p := &html.Node{Type: html.ElementNode, Data: "p"}
		body.InsertBefore(p, run[0])
		for _, n := range run {
			body.RemoveChild(n)
			p.AppendChild(n)
		}
	}
}

func hasVisibleContent(nodes []*html.Node) bool {
	for _, n := range nodes {
		if n.Type == html.TextNode && strings.TrimSpace(n.Data) != "" {
			return true
		}
		if n.Type == html.ElementNode {
			return true
		}
	}
	return false
}

// coalesceLists merges adjacent same-kind sibling lists and collapses
// doubly-nested same-kind lists into one level.
func coalesceLists(n *html.Node) {
	// Merge <ul><ul>...</ul></ul> into the parent list.
	var collapse func(*html.Node)
	collapse = func(node *html.Node) {
		for child := node.FirstChild; child != nil; {
			next := child.NextSibling
			collapse(child)
			if child.Type == html.ElementNode && (child.Data == "ul" || child.Data == "ol") &&
				node.Type == html.ElementNode && node.Data == child.Data {
				for li := child.FirstChild; li != nil; {
					liNext := li.NextSibling
					child.RemoveChild(li)
					node.InsertBefore(li, child)
					li = liNext
				}
				node.RemoveChild(child)
			}
			child = next
		}
	}
	collapse(n)

	// Merge adjacent sibling lists of the same kind.
	var mergeSiblings func(*html.Node)
	mergeSiblings = func(node *html.Node) {
		for child := node.FirstChild; child != nil; {
			next := child.NextSibling
			mergeSiblings(child)
			if child.Type == html.ElementNode && (child.Data == "ul" || child.Data == "ol") {
				sib := nextElement(child)
				for sib != nil && sib.Type == html.ElementNode && sib.Data == child.Data {
					after := nextElement(sib)
					for li := sib.FirstChild; li != nil; {
						liNext := li.NextSibling
						sib.RemoveChild(li)
						child.AppendChild(li)
						li = liNext
					}
					node.RemoveChild(sib)
					sib = after
				}
				next = child.NextSibling
			}
			child = next
		}
	}
	mergeSiblings(n)
}

// stripListWhitespace drops whitespace-only text nodes sitting directly
// between list items; they only exist because the markdown pass emits list
// markup line by line.
func stripListWhitespace(n *html.Node) {
	if n.Type == html.ElementNode && (n.Data == "ul" || n.Data == "ol") {
		for child := n.FirstChild; child != nil; {
			next := child.NextSibling
			if child.Type == html.TextNode && strings.TrimSpace(child.Data) == "" {
				n.RemoveChild(child)
			}
			child = next
		}
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		stripListWhitespace(child)
	}
}

// nextElement returns the next sibling element, skipping whitespace-only
// text nodes.
func nextElement(n *html.Node) *html.Node {
	for sib := n.NextSibling; sib != nil; sib = sib.NextSibling {
		if sib.Type == html.ElementNode {
			return sib
		}
		if sib.Type == html.TextNode && strings.TrimSpace(sib.Data) != "" {
			return nil
		}
	}
	return nil
}

// decodeDoubleAmp fixes double-encoded ampersands. The parser has already
// decoded one level, so a doubly-encoded source shows up as a literal
// "&amp;" inside text node data; decoding it once more restores the intended
// "&". The rewrite touches text nodes only, never attributes and never
// script or style content.
func decodeDoubleAmp(n *html.Node) {
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return
	}
	if n.Type == html.TextNode && strings.Contains(n.Data, "&amp;") {
		n.Data = strings.ReplaceAll(n.Data, "&amp;", "&")
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		decodeDoubleAmp(child)
	}
}

// fragmentStopWords are the prepositions and articles that mark a list item
// as likely truncated when it ends on one.
var fragmentStopWords = map[string]bool{
	"of": true, "by": true, "the": true, "and": true, "with": true,
	"for": true, "to": true, "in": true, "on": true, "at": true,
	"from": true, "a": true, "an": true,
}

// dropTruncatedItems removes list items that are evidently cut off: items
// ending on a preposition or article with fewer than 5 words. Short items
// that end on a complete word ("Fast", "Lower cost") are legitimate bullets
// and stay. Longer items ending on a stop word are kept; no report entry is
// emitted for them.
func dropTruncatedItems(body *goquery.Selection) {
	body.Find("li").Each(func(_ int, li *goquery.Selection) {
		words := strings.Fields(strings.TrimSpace(li.Text()))
		if len(words) == 0 {
			return // removed later by orphan cleanup
		}
		last := strings.ToLower(strings.Trim(words[len(words)-1], ".,;:!?"))
		if fragmentStopWords[last] && len(words) < 5 {
			li.Remove()
		}
	})
}

// dedupeParagraphs collapses byte-identical paragraphs (after whitespace
// normalization) to their first occurrence, and drops a paragraph whose
// sentences fully cover the unordered list that immediately follows it.
func dedupeParagraphs(body *goquery.Selection) {
	seen := make(map[string]bool)
	body.Find("p").Each(func(_ int, p *goquery.Selection) {
		htmlStr, err := p.Html()
		if err != nil {
			return
		}
		key := strings.Join(strings.Fields(htmlStr), " ")
		if key == "" {
			return
		}
		if seen[key] {
			p.Remove()
			return
		}
		seen[key] = true
	})

	body.Find("p").Each(func(_ int, p *goquery.Selection) {
		next := p.Next()
		if !next.Is("ul") {
			return
		}
		sentences := sentenceSet(p.Text())
		items := next.Find("li")
		if items.Length() == 0 {
			return
		}
		allCovered := true
		items.Each(func(_ int, li *goquery.Selection) {
			if !sentences[normalizeSentence(li.Text())] {
				allCovered = false
			}
		})
		if allCovered {
			p.Remove()
		}
	})
}

func sentenceSet(text string) map[string]bool {
	out := make(map[string]bool)
	for _, s := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == ':' || r == ';'
	}) {
		if norm := normalizeSentence(s); norm != "" {
			out[norm] = true
		}
	}
	return out
}

func normalizeSentence(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// removeOrphans deletes empty paragraphs, list items, lists, and divs.
func removeOrphans(body *goquery.Selection) {
	// Repeat so lists emptied by li removal go too.
	for i := 0; i < 3; i++ {
		removed := false
		body.Find("p, li, div, ul, ol").Each(func(_ int, s *goquery.Selection) {
			if strings.TrimSpace(s.Text()) == "" && s.Find("img, table").Length() == 0 {
				s.Remove()
				removed = true
			}
		})
		if !removed {
			break
		}
	}
}

// renderChildren serializes a node's children back into a fragment string.
func renderChildren(n *html.Node) string {
	var buf bytes.Buffer
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode && strings.TrimSpace(child.Data) == "" {
			continue
		}
		_ = html.Render(&buf, child)
	}
	return strings.TrimSpace(buf.String())
}
