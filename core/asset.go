package core

import (
	"bytes"
	"context"
)

type (
	// Asset is a raw uploaded image, stored so users can feed their own source
	// pictures into the transform pipeline. Assets are content-addressed by the
	// ID the store assigns and are readable without authentication.
	Asset struct {
		Data bytes.Buffer
	}

	AssetStore interface {
		// FindAsset retrieves an uploaded asset by its ID.
		FindAsset(ctx context.Context, id string) (*Asset, error)

		// CreateAsset stores a new asset and returns its generated ID.
		CreateAsset(ctx context.Context, asset *Asset) (string, error)
	}
)
