package postprocess

import (
	"strings"

	"github.com/hyperifyio/contentforge/internal/jobmodel"
	"github.com/hyperifyio/contentforge/internal/slugify"
)

const (
	tocMaxEntries  = 9
	tocMaxLabelLen = 50
)

// buildTOC derives the table of contents from the first nine section
// headings. Labels strip a leading question prefix and trailing question
// mark, and truncate at a word boundary to 50 characters with an ellipsis.
// Rebuilding from the same headings always yields the same entries.
func buildTOC(sections []jobmodel.Section) []jobmodel.TOCEntry {
	var out []jobmodel.TOCEntry
	for _, s := range sections {
		if len(out) >= tocMaxEntries {
			break
		}
		label := tocLabel(s.Heading)
		if label == "" {
			continue
		}
		out = append(out, jobmodel.TOCEntry{
			Label:  label,
			Anchor: slugify.Slug(s.Heading),
			Level:  2,
		})
	}
	return out
}

// tocLabel cleans one heading into its ToC form. A heading that reduces to
// nothing after cleanup falls back to the first 50 characters of the
// original.
func tocLabel(heading string) string {
	original := strings.TrimSpace(heading)
	if original == "" {
		return ""
	}

	label := original
	for _, p := range questionPrefixes {
		if len(label) > len(p) && strings.EqualFold(label[:len(p)], p) && label[len(p)] == ' ' {
			label = strings.TrimSpace(label[len(p):])
			break
		}
	}
	label = strings.TrimSuffix(label, "?")
	label = strings.TrimSpace(label)

	if label == "" {
		if len(original) > tocMaxLabelLen {
			return strings.TrimSpace(original[:tocMaxLabelLen])
		}
		return original
	}
	if len(label) > tocMaxLabelLen {
		label = truncateWordBoundary(label, tocMaxLabelLen) + "…"
	}
	return label
}

// truncateWordBoundary cuts s at the last space within limit, or hard-cuts
// when the first word alone exceeds it.
func truncateWordBoundary(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := s[:limit]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}
