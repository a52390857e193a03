// Package jobmodel defines the immutable data types shared across the
// content generation pipeline: batch input, per-article jobs, the resolved
// company context, and the structured article output produced by the
// content post-processor.
package jobmodel

import "time"

// KeywordSpec is one requested article topic within a batch.
type KeywordSpec struct {
	Keyword      string `json:"keyword"`
	WordCount    int    `json:"word_count,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// BatchInput is the top-level request driving one pipeline run.
type BatchInput struct {
	Keywords          []KeywordSpec `json:"keywords"`
	CompanyURL        string        `json:"company_url"`
	Language          string        `json:"language"`
	Market            string        `json:"market"`
	DefaultWordCount  int           `json:"default_word_count"`
	BatchInstructions string        `json:"batch_instructions,omitempty"`
	MaxParallel       int           `json:"max_parallel,omitempty"`
	SkipImages        bool          `json:"skip_images,omitempty"`
	ExportFormats     []string      `json:"export_formats,omitempty"`
}

// Normalize fills in defaults: max_parallel 4, export formats all three.
func (b *BatchInput) Normalize() {
	if b.MaxParallel <= 0 {
		b.MaxParallel = 4
	}
	if len(b.ExportFormats) == 0 {
		b.ExportFormats = []string{"html", "markdown", "json"}
	}
}

// AuthorInfo names a byline author attached to generated articles.
type AuthorInfo struct {
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
	Bio   string `json:"bio,omitempty"`
}

// CompanyContext is the structured company profile resolved once per batch
// and shared read-only by every article worker.
type CompanyContext struct {
	Name           string            `json:"name"`
	URL            string            `json:"url"`
	Industry       string            `json:"industry"`
	Description    string            `json:"description"`
	Products       []string          `json:"products"`
	TargetAudience string            `json:"target_audience"`
	Tone           string            `json:"tone"`
	VoicePersona   map[string]string `json:"voice_persona,omitempty"`
	Authors        []AuthorInfo      `json:"authors,omitempty"`
	VisualIdentity map[string]string `json:"visual_identity,omitempty"`
}

// URLLabel is the closed taxonomy used to classify sitemap URLs.
type URLLabel string

const (
	LabelBlog     URLLabel = "blog"
	LabelProduct  URLLabel = "product"
	LabelService  URLLabel = "service"
	LabelDocs     URLLabel = "docs"
	LabelResource URLLabel = "resource"
	LabelCompany  URLLabel = "company"
	LabelLegal    URLLabel = "legal"
	LabelContact  URLLabel = "contact"
	LabelLanding  URLLabel = "landing"
	LabelTool     URLLabel = "tool"
	LabelOther    URLLabel = "other"
)

// SitemapEntry is one crawled and classified URL.
type SitemapEntry struct {
	URL        string   `json:"url"`
	Label      URLLabel `json:"label"`
	Confidence float64  `json:"confidence"`
}

// SitemapData is the set of (url, label) pairs produced by the crawler.
// Labels partition the URL set: every URL has exactly one label.
type SitemapData struct {
	Entries []SitemapEntry `json:"entries"`
}

// ByLabel returns the subset of entries carrying the given label, preserving
// crawl order. Used by the article generator to build a compact view of
// blog-labelled URLs for internal linking.
func (s SitemapData) ByLabel(label URLLabel) []SitemapEntry {
	out := make([]SitemapEntry, 0, len(s.Entries))
	for _, e := range s.Entries {
		if e.Label == label {
			out = append(out, e)
		}
	}
	return out
}

// CountsByLabel summarizes the crawl for the batch report.
func (s SitemapData) CountsByLabel() map[URLLabel]int {
	counts := make(map[URLLabel]int, len(s.Entries))
	for _, e := range s.Entries {
		counts[e.Label]++
	}
	return counts
}

// ImageSlot is an opaque placement tag for generated images; the image
// generator does not interpret it beyond passing it back in the result.
type ImageSlot string

const (
	SlotHero   ImageSlot = "hero"
	SlotMid    ImageSlot = "mid"
	SlotBottom ImageSlot = "bottom"
)

// ArticleJob describes one unit of Phase B work.
type ArticleJob struct {
	JobID           string
	KeywordSpec     KeywordSpec
	Slug            string
	Href            string
	WordCountTarget int
}

// QA is one question/answer pair, used for both the FAQ and PAA blocks.
type QA struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Section is one body heading plus its HTML fragment, with optional nesting.
type Section struct {
	Heading     string    `json:"heading"`
	Body        string    `json:"body"`
	Subsections []Section `json:"subsections,omitempty"`
}

// Source is one citation list entry; Source.N is the 1-based index referenced
// by in-body "[n]" markers.
type Source struct {
	N           int        `json:"n"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	RetrievedAt *time.Time `json:"retrieved_at,omitempty"`
}

// TOCEntry is one table-of-contents row built from a section heading.
type TOCEntry struct {
	Label  string `json:"label"`
	Anchor string `json:"anchor"`
	Level  int    `json:"level"`
}

// ImageRef is a hero/mid/bottom image attached to an article.
type ImageRef struct {
	Slot ImageSlot `json:"slot"`
	URL  string    `json:"url"`
	Alt  string    `json:"alt"`
}

// ComparisonTable is an optional structured table rendered verbatim.
type ComparisonTable struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// ArticleOutput is the structured record produced by the article generator
// and cleaned by the content post-processor.
type ArticleOutput struct {
	Headline        string           `json:"headline"`
	MetaDescription string           `json:"meta_description"`
	Lead            string           `json:"lead"`
	Sections        []Section        `json:"sections"`
	FAQ             []QA             `json:"faq,omitempty"`
	PAA             []QA             `json:"paa,omitempty"`
	Citations       []Source         `json:"citations"`
	TOC             []TOCEntry       `json:"toc,omitempty"`
	ComparisonTable *ComparisonTable `json:"comparison_table,omitempty"`
	Images          []ImageRef       `json:"images,omitempty"`
	PublishedAt     time.Time        `json:"published_at"`
}

// LegalResearch is the optional compliance research object passed to the
// article generator for legal/regulatory verticals.
type LegalResearch struct {
	Jurisdiction string   `json:"jurisdiction"`
	Citations    []Source `json:"citations"`
	Disclaimers  []string `json:"disclaimers"`
	// Pinned lists the citation titles that must survive the post-processor's
	// "drop unreferenced citation" pass even if the body never links to them.
	Pinned []string `json:"pinned,omitempty"`
}

// FoundAssetKind is the closed taxonomy for asset-finder results.
type FoundAssetKind string

const (
	KindPhoto        FoundAssetKind = "photo"
	KindIllustration FoundAssetKind = "illustration"
	KindInfographic  FoundAssetKind = "infographic"
	KindChart        FoundAssetKind = "chart"
	KindDiagram      FoundAssetKind = "diagram"
)

// FoundAsset is one candidate image reference surfaced by the asset finder.
type FoundAsset struct {
	URL           string         `json:"url"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	SourceSite    string         `json:"source_site"`
	Kind          FoundAssetKind `json:"kind"`
	Width         int            `json:"width,omitempty"`
	Height        int            `json:"height,omitempty"`
	License       string         `json:"license,omitempty"`
	RecreatedFrom *string        `json:"recreated_from,omitempty"`
}

// StageStatus is the closed status taxonomy for a StageReport.
type StageStatus string

const (
	StatusOK        StageStatus = "ok"
	StatusWarn      StageStatus = "warn"
	StatusFail      StageStatus = "fail"
	StatusSkipped   StageStatus = "skipped"
	StatusCancelled StageStatus = "cancelled"
)

// StageReport is an append-only, per-component observability record.
type StageReport struct {
	StageID string      `json:"stage_id"`
	Status  StageStatus `json:"status"`
	Details string      `json:"details,omitempty"`
}

// ArticleResult bundles one article's final state plus its stage reports,
// indexed by the article's position in the original keyword order: output
// order follows input order, not completion order.
type ArticleResult struct {
	Job     ArticleJob     `json:"job"`
	Output  *ArticleOutput `json:"output,omitempty"`
	Reports []StageReport  `json:"reports"`
	Status  StageStatus    `json:"status"`
}

// BatchReport is the aggregate emitted at the end of a run (batch.json).
type BatchReport struct {
	ArticlesTotal      int             `json:"articles_total"`
	ArticlesSuccessful int             `json:"articles_successful"`
	ArticlesFailed     int             `json:"articles_failed"`
	Results            []ArticleResult `json:"results"`
	SharedReports      []StageReport   `json:"shared_reports"`
	WallTime           time.Duration   `json:"wall_time_ns"`
}
