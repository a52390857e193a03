package assets

import "strings"

// industryPalettes maps an industry substring to the hex palette used when
// recreating assets in brand style. Keys are tried in Go map order, so when
// several keys match, which palette is returned is not defined; industries
// with no match fall back to defaultPalette.
var industryPalettes = map[string][]string{
	"technology": {"#0066CC", "#00CCFF", "#333333"},
	"finance":    {"#1A472A", "#2D5016", "#FFD700"},
	"healthcare": {"#0066CC", "#00CC99", "#FFFFFF"},
	"retail":     {"#FF6B6B", "#4ECDC4", "#FFE66D"},
	"education":  {"#4A90E2", "#50C878", "#FFA500"},
}

var defaultPalette = []string{"#6366F1", "#8B5CF6", "#EC4899"}

// toneStyles maps a brand-tone substring to the style keywords injected into
// the recreation prompt.
var toneStyles = []struct {
	fragment string
	style    string
}{
	{"modern", "modern minimalist"},
	{"contemporary", "modern minimalist"},
	{"classic", "classic professional"},
	{"traditional", "classic professional"},
	{"creative", "creative vibrant"},
	{"bold", "creative vibrant"},
}

// paletteFor resolves the recreation palette for an industry string.
func paletteFor(industry string) []string {
	lower := strings.ToLower(industry)
	for key, colors := range industryPalettes {
		if strings.Contains(lower, key) {
			return colors
		}
	}
	return defaultPalette
}

// styleFor resolves the style keywords for a brand tone.
func styleFor(tone string) string {
	lower := strings.ToLower(tone)
	for _, ts := range toneStyles {
		if strings.Contains(lower, ts.fragment) {
			return ts.style
		}
	}
	return "professional"
}

// recreationPrompt assembles the image-LLM prompt for recreating one found
// asset in the company's visual identity.
func recreationPrompt(assetTitle, assetDescription, industry, tone string) string {
	var b strings.Builder
	b.WriteString("Create a blog illustration in a ")
	b.WriteString(styleFor(tone))
	b.WriteString(" style")
	if industry != "" {
		b.WriteString(" for the ")
		b.WriteString(industry)
		b.WriteString(" industry")
	}
	b.WriteString(". Subject: ")
	if assetTitle != "" {
		b.WriteString(assetTitle)
	} else {
		b.WriteString(assetDescription)
	}
	if assetDescription != "" && assetTitle != "" {
		b.WriteString(" (")
		b.WriteString(assetDescription)
		b.WriteString(")")
	}
	b.WriteString(". Color palette: ")
	b.WriteString(strings.Join(paletteFor(industry), ", "))
	b.WriteString(". No text, no logos, no watermarks.")
	return b.String()
}
