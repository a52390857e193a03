// Package postprocess turns the semi-structured article the LLM produced
// (mixed well-formed markup, partial markup, and markdown) into validated
// HTML: normalization, list reconstruction, citation renumbering, heading
// discipline, ToC construction, and final invariant assertions.
//
// Apart from the escaped-tag and markdown passes, which rewrite the raw
// string before parsing, every pass is a tree rewrite over a parsed HTML
// fragment; the passes run in a fixed order and the whole pipeline is
// idempotent.
package postprocess

import (
	"fmt"
	"strings"

	"github.com/hyperifyio/contentforge/internal/jobmodel"
)

// Config tunes the cleanup.
type Config struct {
	// PinnedCitations lists citation titles or URLs that survive the
	// drop-unreferenced pass even when the body never cites them (mandated
	// legal citations).
	PinnedCitations []string
}

// Result carries the cleaned article plus the reports the passes emitted.
type Result struct {
	Article *jobmodel.ArticleOutput
	Reports []jobmodel.StageReport
}

// Process runs the full pass pipeline. It never fails outright: when final
// validation cannot be satisfied, the cleaned-so-far output is returned with
// a warn report.
func Process(in *jobmodel.ArticleOutput, cfg Config) Result {
	out := cloneArticle(in)
	var reports []jobmodel.StageReport

	// Passes 1-5 and 9 operate per HTML fragment.
	out.Lead = cleanFragment(out.Lead)
	for i := range out.Sections {
		cleanSection(&out.Sections[i])
	}
	for i := range out.FAQ {
		out.FAQ[i].Answer = cleanFragment(out.FAQ[i].Answer)
	}
	for i := range out.PAA {
		out.PAA[i].Answer = cleanFragment(out.PAA[i].Answer)
	}

	// Heading discipline runs before citation renumbering, deliberately:
	// sections dropped for an empty heading must not contribute markers to
	// the numbering, and renumbering over the surviving sections keeps the
	// 1..n invariant intact.
	out.Sections = disciplineHeadings(out.Sections)

	renumberCitations(out, cfg.PinnedCitations)

	// Pass 8: ToC from the surviving headings.
	out.TOC = buildTOC(out.Sections)

	// Pass 10: final validation; violations degrade to a warn report.
	if violations := validateInvariants(out); len(violations) > 0 {
		reports = append(reports, jobmodel.StageReport{
			StageID: "postprocess",
			Status:  jobmodel.StatusWarn,
			Details: strings.Join(violations, "; "),
		})
	} else {
		reports = append(reports, jobmodel.StageReport{StageID: "postprocess", Status: jobmodel.StatusOK})
	}
	return Result{Article: out, Reports: reports}
}

func cleanSection(s *jobmodel.Section) {
	s.Body = cleanFragment(s.Body)
	for i := range s.Subsections {
		cleanSection(&s.Subsections[i])
	}
}

// disciplineHeadings removes doubled question prefixes and drops sections
// whose heading is empty after cleanup.
func disciplineHeadings(sections []jobmodel.Section) []jobmodel.Section {
	out := sections[:0]
	for _, s := range sections {
		s.Heading = stripDoublePrefix(strings.TrimSpace(s.Heading))
		if s.Heading == "" {
			continue
		}
		if len(s.Subsections) > 0 {
			s.Subsections = disciplineHeadings(s.Subsections)
		}
		out = append(out, s)
	}
	return out
}

// questionPrefixes are the leading phrases stripped for ToC labels and
// deduplicated when an LLM doubles them in a heading.
var questionPrefixes = []string{
	"What is", "How does", "Why is", "What are", "How do", "Why are",
}

// stripDoublePrefix rewrites "What is What is X" to "What is X".
func stripDoublePrefix(h string) string {
	lower := strings.ToLower(h)
	for _, p := range questionPrefixes {
		pl := strings.ToLower(p)
		doubled := pl + " " + pl + " "
		if strings.HasPrefix(lower, doubled) {
			return h[:len(p)] + " " + strings.TrimSpace(h[len(doubled):])
		}
	}
	return h
}

// validateInvariants runs the final assertions over the cleaned article.
func validateInvariants(a *jobmodel.ArticleOutput) []string {
	var out []string

	// Citation list must be exactly 1..n.
	for i, c := range a.Citations {
		if c.N != i+1 {
			out = append(out, fmt.Sprintf("citation %d numbered %d", i+1, c.N))
			break
		}
	}

	// Every in-body marker must be within range.
	used := collectMarkers(a)
	for _, k := range used {
		if k < 1 || k > len(a.Citations) {
			out = append(out, fmt.Sprintf("body cites [%d] but citation list has %d entries", k, len(a.Citations)))
			break
		}
	}

	// No raw markdown bold may survive in visible text.
	if strings.Contains(a.Lead, "**") {
		out = append(out, "raw bold markers in lead")
	}
	for _, s := range a.Sections {
		if strings.Contains(s.Body, "**") {
			out = append(out, "raw bold markers in section "+s.Heading)
			break
		}
	}
	return out
}

func cloneArticle(in *jobmodel.ArticleOutput) *jobmodel.ArticleOutput {
	out := *in
	out.Sections = cloneSections(in.Sections)
	out.FAQ = append([]jobmodel.QA(nil), in.FAQ...)
	out.PAA = append([]jobmodel.QA(nil), in.PAA...)
	out.Citations = append([]jobmodel.Source(nil), in.Citations...)
	out.TOC = append([]jobmodel.TOCEntry(nil), in.TOC...)
	out.Images = append([]jobmodel.ImageRef(nil), in.Images...)
	return &out
}

func cloneSections(in []jobmodel.Section) []jobmodel.Section {
	out := make([]jobmodel.Section, len(in))
	for i, s := range in {
		out[i] = s
		out[i].Subsections = cloneSections(s.Subsections)
	}
	return out
}
