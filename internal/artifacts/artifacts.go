// Package artifacts writes the per-article output tree and the batch-level
// aggregate files. Each article gets its own slug-named subdirectory so
// concurrent workers never collide on paths.
package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperifyio/contentforge/internal/jobmodel"
)

// Writer owns one batch output root.
type Writer struct {
	Root string
}

// ArticleFiles is the serialized article set handed to WriteArticle. Nil
// slices skip that format.
type ArticleFiles struct {
	HTML     []byte
	Markdown []byte
	JSON     []byte
	// Images maps slot name to PNG bytes.
	Images map[jobmodel.ImageSlot][]byte
}

// WriteArticle writes one article's artifacts under root/slug/: index.html,
// article.md, article.json, and images/{slot}.png.
func (w *Writer) WriteArticle(slug string, files ArticleFiles) error {
	dir := filepath.Join(w.Root, slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return jobmodel.Wrap(jobmodel.KindIO, "artifacts: mkdir article dir", err)
	}

	write := func(name string, data []byte) error {
		if data == nil {
			return nil
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return jobmodel.Wrap(jobmodel.KindIO, "artifacts: write "+name, err)
		}
		return nil
	}
	if err := write("index.html", files.HTML); err != nil {
		return err
	}
	if err := write("article.md", files.Markdown); err != nil {
		return err
	}
	if err := write("article.json", files.JSON); err != nil {
		return err
	}

	if len(files.Images) > 0 {
		imgDir := filepath.Join(dir, "images")
		if err := os.MkdirAll(imgDir, 0o755); err != nil {
			return jobmodel.Wrap(jobmodel.KindIO, "artifacts: mkdir images dir", err)
		}
		for slot, png := range files.Images {
			name := string(slot) + ".png"
			if err := os.WriteFile(filepath.Join(imgDir, name), png, 0o644); err != nil {
				return jobmodel.Wrap(jobmodel.KindIO, "artifacts: write image "+name, err)
			}
		}
	}
	return nil
}

// WriteBatch writes batch.json and summary.md at the output root.
func (w *Writer) WriteBatch(report jobmodel.BatchReport) error {
	if err := os.MkdirAll(w.Root, 0o755); err != nil {
		return jobmodel.Wrap(jobmodel.KindIO, "artifacts: mkdir batch root", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return jobmodel.Wrap(jobmodel.KindIO, "artifacts: marshal batch report", err)
	}
	if err := os.WriteFile(filepath.Join(w.Root, "batch.json"), data, 0o644); err != nil {
		return jobmodel.Wrap(jobmodel.KindIO, "artifacts: write batch.json", err)
	}
	if err := os.WriteFile(filepath.Join(w.Root, "summary.md"), []byte(summaryMarkdown(report)), 0o644); err != nil {
		return jobmodel.Wrap(jobmodel.KindIO, "artifacts: write summary.md", err)
	}
	return nil
}

// summaryMarkdown renders the human-readable batch summary.
func summaryMarkdown(report jobmodel.BatchReport) string {
	var b strings.Builder
	b.WriteString("# Batch summary\n\n")
	fmt.Fprintf(&b, "- Articles: %d total, %d successful, %d failed\n",
		report.ArticlesTotal, report.ArticlesSuccessful, report.ArticlesFailed)
	fmt.Fprintf(&b, "- Wall time: %s\n\n", report.WallTime)

	b.WriteString("| # | Keyword | Slug | Status |\n|---|---------|------|--------|\n")
	for i, r := range report.Results {
		fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", i+1, r.Job.KeywordSpec.Keyword, r.Job.Slug, r.Status)
	}

	var failing []string
	for _, r := range report.Results {
		if r.Status != jobmodel.StatusOK && r.Status != jobmodel.StatusWarn {
			for _, sr := range r.Reports {
				if sr.Status == jobmodel.StatusFail || sr.Status == jobmodel.StatusCancelled {
					failing = append(failing, fmt.Sprintf("- **%s** (%s): %s", r.Job.KeywordSpec.Keyword, sr.StageID, sr.Details))
				}
			}
		}
	}
	if len(failing) > 0 {
		b.WriteString("\n## Failures\n\n")
		b.WriteString(strings.Join(failing, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}
