package core

import (
	"context"
	"time"
)

type (
	// Variation is one immutable record of a transformation applied to a design.
	// Variations are appended after a successful remote transform and never
	// replace the parent design's primary image.
	Variation struct {
		ID        string    `json:"id"`
		DesignID  string    `json:"designId"`
		ImageURL  string    `json:"imageUrl"`
		Kind      string    `json:"kind"`
		Prompt    string    `json:"prompt,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// VariationStore is the append-only transform history of a design.
	VariationStore interface {
		// Append records a new variation and assigns its ID and creation time.
		Append(ctx context.Context, variation *Variation) (string, error)

		// ListByDesign returns all variations of a design ordered by creation
		// time ascending.
		ListByDesign(ctx context.Context, designID string) ([]*Variation, error)

		// DeleteVariation removes a single variation. It must verify the
		// variation belongs to the named design and return ErrNotFound
		// otherwise; the design ID alone is never enough to delete by.
		DeleteVariation(ctx context.Context, designID, variationID string) error
	}
)
