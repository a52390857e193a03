// Package imagegen produces raster images for article slots. The slot tag is
// opaque: it travels through to the result untouched so the caller can route
// storage, and nothing here interprets it.
package imagegen

import (
	"context"

	"github.com/hyperifyio/contentforge/internal/jobmodel"
	"github.com/hyperifyio/contentforge/internal/provider/imagellm"
)

// Generated is one produced image plus its slot tag.
type Generated struct {
	Slot jobmodel.ImageSlot
	PNG  []byte
}

// Generator wraps the image LLM for article-slot generation.
type Generator struct {
	Provider *imagellm.Provider
}

// slotSizes picks a provider size per slot; the hero is wide, the inline
// slots are square.
var slotSizes = map[jobmodel.ImageSlot]string{
	jobmodel.SlotHero:   "1792x1024",
	jobmodel.SlotMid:    "1024x1024",
	jobmodel.SlotBottom: "1024x1024",
}

// Generate produces one PNG for the given slot. Retry policy lives in the
// provider adapter.
func (g *Generator) Generate(ctx context.Context, prompt string, slot jobmodel.ImageSlot) (Generated, error) {
	size := slotSizes[slot]
	png, err := g.Provider.GenerateImage(ctx, prompt, imagellm.Options{Size: size})
	if err != nil {
		return Generated{}, err
	}
	return Generated{Slot: slot, PNG: png}, nil
}
