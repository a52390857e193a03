package article

import (
	"strconv"
	"strings"
)

// DefaultBuilder is the built-in prompt builder. It exposes every input the
// contract names; deployments with bespoke editorial prompts swap in their
// own PromptBuilder.
type DefaultBuilder struct{}

func (DefaultBuilder) Build(in PromptInputs) (string, string) {
	var sys strings.Builder
	sys.WriteString("You are a senior content writer")
	if in.Company.Name != "" {
		sys.WriteString(" for ")
		sys.WriteString(in.Company.Name)
	}
	sys.WriteString(". Write well-researched long-form articles with citations. ")
	if in.Company.Tone != "" {
		sys.WriteString("Tone: ")
		sys.WriteString(in.Company.Tone)
		sys.WriteString(". ")
	}
	sys.WriteString("Reply with ONLY a JSON object matching the requested structure; no prose, no markdown fences. ")
	sys.WriteString("Cite sources in body text with bracketed numbers like [1] that index into the citations array.")

	var usr strings.Builder
	usr.WriteString("Write an article about: ")
	usr.WriteString(in.Keyword)
	usr.WriteString("\nTarget length: about ")
	usr.WriteString(strconv.Itoa(in.WordCountTarget))
	usr.WriteString(" words (advisory).")
	if in.Language != "" {
		usr.WriteString("\nLanguage: ")
		usr.WriteString(in.Language)
	}
	if in.Market != "" {
		usr.WriteString("\nMarket: ")
		usr.WriteString(in.Market)
	}
	if in.Company.Description != "" {
		usr.WriteString("\n\nAbout the company:\n")
		usr.WriteString(in.Company.Description)
	}
	if in.Company.TargetAudience != "" {
		usr.WriteString("\nAudience: ")
		usr.WriteString(in.Company.TargetAudience)
	}
	if len(in.Company.Products) > 0 {
		usr.WriteString("\nProducts: ")
		usr.WriteString(strings.Join(in.Company.Products, ", "))
	}
	if in.BatchInstructions != "" {
		usr.WriteString("\n\nBatch instructions: ")
		usr.WriteString(in.BatchInstructions)
	}
	if in.KeywordInstructions != "" {
		usr.WriteString("\nArticle instructions: ")
		usr.WriteString(in.KeywordInstructions)
	}
	if len(in.BlogURLs) > 0 {
		usr.WriteString("\n\nExisting blog posts you may link to internally:\n")
		limit := len(in.BlogURLs)
		if limit > 20 {
			limit = 20
		}
		for _, e := range in.BlogURLs[:limit] {
			usr.WriteString("- ")
			usr.WriteString(e.URL)
			usr.WriteString("\n")
		}
	}
	if in.Legal != nil {
		usr.WriteString("\nJurisdiction: ")
		usr.WriteString(in.Legal.Jurisdiction)
		if len(in.Legal.Disclaimers) > 0 {
			usr.WriteString("\nRequired disclaimers:\n")
			for _, d := range in.Legal.Disclaimers {
				usr.WriteString("- ")
				usr.WriteString(d)
				usr.WriteString("\n")
			}
		}
		if len(in.Legal.Citations) > 0 {
			usr.WriteString("Mandated legal citations (must appear in the citations array):\n")
			for _, c := range in.Legal.Citations {
				usr.WriteString("- ")
				usr.WriteString(c.Title)
				usr.WriteString(" — ")
				usr.WriteString(c.URL)
				usr.WriteString("\n")
			}
		}
	}
	usr.WriteString("\nReturn JSON with: headline, meta_description, lead, sections (heading+body HTML), ")
	usr.WriteString("faq, paa, citations (n+title+url), comparison_table (optional).")
	return sys.String(), usr.String()
}
