package render

import (
	"strings"
	"testing"
	"time"

	"github.com/hyperifyio/contentforge/internal/jobmodel"
)

func sampleArticle() *jobmodel.ArticleOutput {
	return &jobmodel.ArticleOutput{
		Headline:        "Heat Pumps Explained",
		MetaDescription: "How heat pumps work & why they matter.",
		Lead:            "<p>Heat pumps move heat [1].</p>",
		Sections: []jobmodel.Section{
			{Heading: "How it works", Body: "<p>A refrigeration cycle [1].</p>"},
			{Heading: "Costs", Body: "<p>Prices vary [2].</p>", Subsections: []jobmodel.Section{
				{Heading: "Installation", Body: "<p>Labor dominates.</p>"},
			}},
		},
		FAQ: []jobmodel.QA{{Question: "Do they work in winter?", Answer: "<p>Yes, down to -25C.</p>"}},
		PAA: []jobmodel.QA{{Question: "Are they loud?", Answer: "<p>Modern units are quiet.</p>"}},
		Citations: []jobmodel.Source{
			{N: 1, Title: "DOE guide", URL: "https://energy.example.gov/heat-pumps"},
			{N: 2, Title: "Cost study", URL: "https://study.example.org/costs"},
		},
		TOC: []jobmodel.TOCEntry{
			{Label: "How it works", Anchor: "how-it-works", Level: 2},
			{Label: "Costs", Anchor: "costs", Level: 2},
		},
		Images: []jobmodel.ImageRef{
			{Slot: jobmodel.SlotHero, URL: "images/hero.png", Alt: "Heat pump outdoor unit"},
			{Slot: jobmodel.SlotMid, URL: "", Alt: "missing"},
		},
		PublishedAt: time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestHTMLStructure(t *testing.T) {
	r := New()
	out, err := r.HTML(sampleArticle(), Options{
		Authors:      []jobmodel.AuthorInfo{{Name: "Dana Ortiz"}},
		CanonicalURL: "https://acme.example.com/blog/heat-pumps",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	page := string(out)

	if strings.Count(page, "<h1>") != 1 {
		t.Errorf("want exactly one h1")
	}
	for _, want := range []string{
		`property="og:title"`,
		`property="og:description"`,
		`property="article:published_time" content="2026-08-01T09:30:00Z"`,
		`<script type="application/ld+json">`,
		`"@type":"Article"`,
		`"datePublished":"2026-08-01T09:30:00Z"`,
		`"Dana Ortiz"`,
		`mainEntityOfPage`,
		`<nav class="toc"`,
		`<section id="how-it-works">`,
		`<h3>Installation</h3>`,
		`id="source-1"`,
		`alt="Heat pump outdoor unit"`,
	} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(page, `alt="missing"`) {
		t.Error("image with empty URL must be omitted")
	}
	if strings.Count(page, "application/ld+json") != 1 {
		t.Error("want exactly one JSON-LD block")
	}
}

func TestHTMLLinksCitationMarkers(t *testing.T) {
	r := New()
	out, err := r.HTML(sampleArticle(), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	page := string(out)
	if strings.Contains(page, "[1]") || strings.Contains(page, "[2]") {
		t.Fatalf("raw markers survive in rendered HTML")
	}
	if !strings.Contains(page, `href="#source-1"`) || !strings.Contains(page, `href="#source-2"`) {
		t.Fatalf("markers not linked to sources")
	}
}

func TestHTMLSanitizesScriptInBody(t *testing.T) {
	a := sampleArticle()
	a.Sections[0].Body = `<p>Safe text.</p><script>alert("x")</script>`
	r := New()
	out, err := r.HTML(a, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(string(out), "alert(") {
		t.Fatal("script in body fragment must be stripped")
	}
}

func TestMarkdownDerivesFromHTML(t *testing.T) {
	r := New()
	out, err := r.Markdown(sampleArticle(), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	md := string(out)
	if !strings.Contains(md, "Heat Pumps Explained") {
		t.Errorf("markdown missing headline: %q", md)
	}
	if !strings.Contains(md, "How it works") {
		t.Errorf("markdown missing section heading")
	}
}

func TestJSONRoundTripsArticle(t *testing.T) {
	r := New()
	out, err := r.JSON(sampleArticle())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{`"headline"`, `"citations"`, `"faq"`, `"paa"`} {
		if !strings.Contains(string(out), want) {
			t.Errorf("json missing %s", want)
		}
	}
}
