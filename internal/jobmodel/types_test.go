package jobmodel

import (
	"errors"
	"testing"
)

func TestBatchInputNormalizeDefaults(t *testing.T) {
	b := BatchInput{}
	b.Normalize()
	if b.MaxParallel != 4 {
		t.Fatalf("MaxParallel = %d, want 4", b.MaxParallel)
	}
	if len(b.ExportFormats) != 3 {
		t.Fatalf("ExportFormats = %v, want 3 entries", b.ExportFormats)
	}
}

func TestBatchInputNormalizePreservesExplicit(t *testing.T) {
	b := BatchInput{MaxParallel: 2, ExportFormats: []string{"json"}}
	b.Normalize()
	if b.MaxParallel != 2 {
		t.Fatalf("MaxParallel = %d, want 2", b.MaxParallel)
	}
	if len(b.ExportFormats) != 1 || b.ExportFormats[0] != "json" {
		t.Fatalf("ExportFormats = %v, want [json]", b.ExportFormats)
	}
}

func TestSitemapDataByLabelPartitions(t *testing.T) {
	s := SitemapData{Entries: []SitemapEntry{
		{URL: "https://a.example/blog/x", Label: LabelBlog},
		{URL: "https://a.example/", Label: LabelLanding},
		{URL: "https://a.example/blog/y", Label: LabelBlog},
	}}
	blog := s.ByLabel(LabelBlog)
	if len(blog) != 2 {
		t.Fatalf("ByLabel(blog) = %d entries, want 2", len(blog))
	}
	counts := s.CountsByLabel()
	if counts[LabelBlog] != 2 || counts[LabelLanding] != 1 {
		t.Fatalf("CountsByLabel = %v", counts)
	}
}

func TestPipelineErrorKindOf(t *testing.T) {
	err := Wrap(KindQuotaExhausted, "provider quota hit", errors.New("429"))
	if KindOf(err) != KindQuotaExhausted {
		t.Fatalf("KindOf = %v, want quota_exhausted", KindOf(err))
	}
	if !IsKind(err, KindQuotaExhausted) {
		t.Fatal("IsKind should match")
	}
	if IsKind(err, KindTimeout) {
		t.Fatal("IsKind should not match unrelated kind")
	}
	if errors.Unwrap(err).Error() != "429" {
		t.Fatalf("Unwrap() = %v, want 429", errors.Unwrap(err))
	}
}

func TestKindOfNonPipelineError(t *testing.T) {
	if KindOf(errors.New("plain")) != "" {
		t.Fatal("KindOf of a plain error should be empty")
	}
}
