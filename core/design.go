package core

import (
	"context"
	"time"
)

type (
	// Design is a user-owned artwork being iterated on. ImageURL always points at
	// the current print artwork; ThumbnailURL is an optional, display-only hint and
	// may lag behind ImageURL.
	Design struct {
		ID           string    `json:"id"`
		UserID       string    `json:"-"` // Not exposed in JSON responses, used internally.
		Title        string    `json:"title"`
		Prompt       string    `json:"prompt,omitempty"`
		ImageURL     string    `json:"imageUrl"`
		ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
		AspectRatio  string    `json:"aspectRatio,omitempty"`
		CreatedAt    time.Time `json:"createdAt"`
		UpdatedAt    time.Time `json:"updatedAt"`
	}

	// DesignStore defines the persistence layer for user-owned designs.
	// All operations are scoped to a specific user.
	DesignStore interface {
		// List returns all designs owned by a user, newest first.
		List(ctx context.Context, userID string) ([]*Design, error)

		// Get returns a single design by its ID, ensuring it belongs to the user.
		Get(ctx context.Context, userID, id string) (*Design, error)

		// Create inserts a new design. The caller assigns the ID.
		Create(ctx context.Context, design *Design) error

		// UpdateThumbnail replaces the design's thumbnail reference, ensuring the
		// design belongs to the user. Last writer wins; thumbnails are advisory.
		UpdateThumbnail(ctx context.Context, userID, id, thumbnailURL string) error

		// Delete removes a design and its variations, ensuring it belongs to the user.
		Delete(ctx context.Context, userID, id string) error
	}
)

// DisplayImage returns the reference to show when the design is listed or
// summarized: the thumbnail when one exists, otherwise the primary image.
func (d *Design) DisplayImage() string {
	if d.ThumbnailURL != "" {
		return d.ThumbnailURL
	}
	return d.ImageURL
}
