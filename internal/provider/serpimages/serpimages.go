// Package serpimages provides the two Google-Images-SERP providers of the
// provider layer: a primary single-request backend and a secondary
// task-submit/task-poll backend. Both satisfy one Searcher contract so the
// fallback router can try them in order.
package serpimages

import (
	"context"
)

// Query is one image search request.
type Query struct {
	Query    string
	Max      int
	Size     string // large, medium, icon
	License  string // creativeCommons, commercial
	Type     string // photo, clipart, lineart, face, animated
	Language string
	Market   string // ISO-3166 alpha-2, lowercased
}

// ImageHit is one image result in provider-neutral shape.
type ImageHit struct {
	URL        string
	Title      string
	SourceSite string
	Thumbnail  string
	License    string
	Width      int
	Height     int
}

// Searcher is the image-search operation shared by both providers.
type Searcher interface {
	Name() string
	IsConfigured() bool
	CostPerThousand() float64
	SearchImages(ctx context.Context, q Query) ([]ImageHit, error)
}
