package core

import (
	"context"
	"strings"
	"time"
)

type (
	// Template is reusable seed artwork. Templates are not user-owned; copying
	// one produces a brand-new design owned by the requesting user.
	Template struct {
		ID           string    `json:"id"`
		Title        string    `json:"title"`
		Prompt       string    `json:"prompt,omitempty"`
		ImageURL     string    `json:"imageUrl"`
		ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
		AspectRatio  string    `json:"aspectRatio,omitempty"`
		CreatedAt    time.Time `json:"createdAt"`
	}

	// Collection is a named grouping of templates. A template may belong to
	// several collections at once, each membership carrying its own tags.
	Collection struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// TemplateStore persists templates, collections and their associations.
	TemplateStore interface {
		ListTemplates(ctx context.Context, collectionID string) ([]*Template, error)
		GetTemplate(ctx context.Context, id string) (*Template, error)
		CreateTemplate(ctx context.Context, template *Template) error

		ListCollections(ctx context.Context) ([]*Collection, error)
		// CreateCollection stores a collection under its normalized name.
		CreateCollection(ctx context.Context, collection *Collection) error
		// AddTemplateToCollection associates a template with a collection. The
		// tags belong to this (template, collection) pair, not to the template.
		AddTemplateToCollection(ctx context.Context, templateID, collectionID string, tags []string) error
	}
)

// NormalizeCollectionName lower-cases and trims a collection name. It returns
// the empty string when nothing is left after trimming, which callers must
// reject.
func NormalizeCollectionName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NewDesignFromTemplate builds the design a copy-from-template produces. The
// caller assigns the ID and persists it.
//
// The primary image and the thumbnail resolve by different rules on purpose.
// Older templates were saved before their final iteration was rendered; when
// that happened the corrected artwork was captured in the thumbnail slot, so a
// thumbnail that differs from the primary image is the better source to copy.
// The new design's thumbnail simply takes the best available display reference.
// Keep both rules here and nowhere else so this can go away once the template
// data is backfilled.
func NewDesignFromTemplate(t *Template, userID string) *Design {
	imageURL := t.ImageURL
	if t.ThumbnailURL != "" && t.ThumbnailURL != t.ImageURL {
		imageURL = t.ThumbnailURL
	}

	thumbnailURL := t.ThumbnailURL
	if thumbnailURL == "" {
		thumbnailURL = t.ImageURL
	}

	return &Design{
		UserID:       userID,
		Title:        t.Title,
		Prompt:       t.Prompt,
		ImageURL:     imageURL,
		ThumbnailURL: thumbnailURL,
		AspectRatio:  t.AspectRatio,
	}
}
