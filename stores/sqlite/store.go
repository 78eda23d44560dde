package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"printloom/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS assets (id TEXT PRIMARY KEY, data BLOB);`,
		`CREATE TABLE IF NOT EXISTS designs (
			id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			title TEXT,
			prompt TEXT,
			image_url TEXT NOT NULL,
			thumbnail_url TEXT,
			aspect_ratio TEXT,
			created_at DATETIME,
			updated_at DATETIME,
			PRIMARY KEY (user_id, id)
		);`,
		`CREATE TABLE IF NOT EXISTS variations (
			id TEXT PRIMARY KEY,
			design_id TEXT NOT NULL,
			image_url TEXT NOT NULL,
			kind TEXT,
			prompt TEXT,
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS templates (
			id TEXT PRIMARY KEY,
			title TEXT,
			prompt TEXT,
			image_url TEXT NOT NULL,
			thumbnail_url TEXT,
			aspect_ratio TEXT,
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS collections (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS collection_templates (
			collection_id TEXT NOT NULL,
			template_id TEXT NOT NULL,
			tags TEXT,
			PRIMARY KEY (collection_id, template_id)
		);`,
	}
	for _, stmt := range stmts {
		if _, err = db.Exec(stmt); err != nil {
			log.Fatalf("failed to initialize sqlite schema: %v", err)
		}
	}

	return &sqliteStore{db}
}

// schemaErr maps the driver's missing-relation condition onto the sentinel the
// pipeline distinguishes, so an unprovisioned database is reported as such
// instead of as a generic write failure.
func schemaErr(err error) error {
	if err != nil && strings.Contains(err.Error(), "no such table") {
		return fmt.Errorf("%w: %v", core.ErrSchemaMissing, err)
	}
	return err
}

// AssetStore implementation

func (s *sqliteStore) FindAsset(ctx context.Context, id string) (*core.Asset, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM assets WHERE id = ?", id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("asset %s: %w", id, core.ErrNotFound)
		}
		return nil, schemaErr(err)
	}
	asset := core.Asset{
		Data: *bytes.NewBuffer(data),
	}
	return &asset, nil
}

func (s *sqliteStore) CreateAsset(ctx context.Context, asset *core.Asset) (string, error) {
	id := ulid.Make().String()
	_, err := s.db.ExecContext(ctx, "INSERT INTO assets (id, data) VALUES (?, ?)", id, asset.Data.Bytes())
	if err != nil {
		return "", schemaErr(err)
	}
	logrus.WithFields(logrus.Fields{
		"asset_id":    id,
		"data_length": asset.Data.Len(),
	}).Info("Asset created successfully")
	return id, nil
}

// DesignStore implementation

func (s *sqliteStore) List(ctx context.Context, userID string) ([]*core.Design, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, prompt, image_url, thumbnail_url, aspect_ratio, created_at, updated_at FROM designs WHERE user_id = ? ORDER BY created_at DESC",
		userID)
	if err != nil {
		return nil, schemaErr(err)
	}
	defer rows.Close()

	var designs []*core.Design
	for rows.Next() {
		var d core.Design
		d.UserID = userID
		if err := rows.Scan(&d.ID, &d.Title, &d.Prompt, &d.ImageURL, &d.ThumbnailURL, &d.AspectRatio, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		designs = append(designs, &d)
	}
	return designs, rows.Err()
}

func (s *sqliteStore) Get(ctx context.Context, userID, id string) (*core.Design, error) {
	var d core.Design
	d.UserID = userID
	d.ID = id
	err := s.db.QueryRowContext(ctx,
		"SELECT title, prompt, image_url, thumbnail_url, aspect_ratio, created_at, updated_at FROM designs WHERE user_id = ? AND id = ?",
		userID, id).Scan(&d.Title, &d.Prompt, &d.ImageURL, &d.ThumbnailURL, &d.AspectRatio, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("design %s: %w", id, core.ErrNotFound)
		}
		return nil, schemaErr(err)
	}
	return &d, nil
}

func (s *sqliteStore) Create(ctx context.Context, design *core.Design) error {
	now := time.Now()
	design.CreatedAt = now
	design.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO designs (id, user_id, title, prompt, image_url, thumbnail_url, aspect_ratio, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		design.ID, design.UserID, design.Title, design.Prompt, design.ImageURL, design.ThumbnailURL, design.AspectRatio, now, now)
	return schemaErr(err)
}

func (s *sqliteStore) UpdateThumbnail(ctx context.Context, userID, id, thumbnailURL string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE designs SET thumbnail_url = ?, updated_at = ? WHERE user_id = ? AND id = ?",
		thumbnailURL, time.Now(), userID, id)
	if err != nil {
		return schemaErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("design %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, userID, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM designs WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return schemaErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("design %s: %w", id, core.ErrNotFound)
	}

	// Variations never outlive their design.
	if _, err := tx.ExecContext(ctx, "DELETE FROM variations WHERE design_id = ?", id); err != nil {
		return schemaErr(err)
	}

	return tx.Commit()
}

// VariationStore implementation

func (s *sqliteStore) Append(ctx context.Context, variation *core.Variation) (string, error) {
	id := ulid.Make().String()
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO variations (id, design_id, image_url, kind, prompt, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		id, variation.DesignID, variation.ImageURL, variation.Kind, variation.Prompt, now)
	if err != nil {
		return "", schemaErr(err)
	}
	logrus.WithFields(logrus.Fields{
		"design_id":    variation.DesignID,
		"variation_id": id,
		"kind":         variation.Kind,
	}).Info("Variation appended")
	return id, nil
}

func (s *sqliteStore) ListByDesign(ctx context.Context, designID string) ([]*core.Variation, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, image_url, kind, prompt, created_at FROM variations WHERE design_id = ? ORDER BY created_at ASC",
		designID)
	if err != nil {
		return nil, schemaErr(err)
	}
	defer rows.Close()

	variations := []*core.Variation{}
	for rows.Next() {
		var v core.Variation
		v.DesignID = designID
		if err := rows.Scan(&v.ID, &v.ImageURL, &v.Kind, &v.Prompt, &v.CreatedAt); err != nil {
			return nil, err
		}
		variations = append(variations, &v)
	}
	return variations, rows.Err()
}

func (s *sqliteStore) DeleteVariation(ctx context.Context, designID, variationID string) error {
	// Both keys are required so a variation cannot be deleted through another
	// design's endpoint by guessing its ID.
	res, err := s.db.ExecContext(ctx, "DELETE FROM variations WHERE id = ? AND design_id = ?", variationID, designID)
	if err != nil {
		return schemaErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("variation %s of design %s: %w", variationID, designID, core.ErrNotFound)
	}
	return nil
}

// TemplateStore implementation

func (s *sqliteStore) ListTemplates(ctx context.Context, collectionID string) ([]*core.Template, error) {
	query := "SELECT id, title, prompt, image_url, thumbnail_url, aspect_ratio, created_at FROM templates ORDER BY created_at DESC"
	args := []any{}
	if collectionID != "" {
		query = `SELECT t.id, t.title, t.prompt, t.image_url, t.thumbnail_url, t.aspect_ratio, t.created_at
			FROM templates t
			JOIN collection_templates ct ON ct.template_id = t.id
			WHERE ct.collection_id = ?
			ORDER BY t.created_at DESC`
		args = append(args, collectionID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, schemaErr(err)
	}
	defer rows.Close()

	var templates []*core.Template
	for rows.Next() {
		var t core.Template
		if err := rows.Scan(&t.ID, &t.Title, &t.Prompt, &t.ImageURL, &t.ThumbnailURL, &t.AspectRatio, &t.CreatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, &t)
	}
	return templates, rows.Err()
}

func (s *sqliteStore) GetTemplate(ctx context.Context, id string) (*core.Template, error) {
	var t core.Template
	t.ID = id
	err := s.db.QueryRowContext(ctx,
		"SELECT title, prompt, image_url, thumbnail_url, aspect_ratio, created_at FROM templates WHERE id = ?",
		id).Scan(&t.Title, &t.Prompt, &t.ImageURL, &t.ThumbnailURL, &t.AspectRatio, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("template %s: %w", id, core.ErrNotFound)
		}
		return nil, schemaErr(err)
	}
	return &t, nil
}

func (s *sqliteStore) CreateTemplate(ctx context.Context, template *core.Template) error {
	template.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO templates (id, title, prompt, image_url, thumbnail_url, aspect_ratio, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		template.ID, template.Title, template.Prompt, template.ImageURL, template.ThumbnailURL, template.AspectRatio, template.CreatedAt)
	return schemaErr(err)
}

func (s *sqliteStore) ListCollections(ctx context.Context) ([]*core.Collection, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at FROM collections ORDER BY name ASC")
	if err != nil {
		return nil, schemaErr(err)
	}
	defer rows.Close()

	var collections []*core.Collection
	for rows.Next() {
		var c core.Collection
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		collections = append(collections, &c)
	}
	return collections, rows.Err()
}

func (s *sqliteStore) CreateCollection(ctx context.Context, collection *core.Collection) error {
	collection.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO collections (id, name, created_at) VALUES (?, ?, ?)",
		collection.ID, collection.Name, collection.CreatedAt)
	return schemaErr(err)
}

func (s *sqliteStore) AddTemplateToCollection(ctx context.Context, templateID, collectionID string, tags []string) error {
	// Both sides must exist before a membership row is written, or a bogus ID
	// would persist a dangling association.
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1 FROM templates WHERE id = ?", templateID).Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("template %s: %w", templateID, core.ErrNotFound)
		}
		return schemaErr(err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT 1 FROM collections WHERE id = ?", collectionID).Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("collection %s: %w", collectionID, core.ErrNotFound)
		}
		return schemaErr(err)
	}

	encoded, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	// Tags are scoped to the (template, collection) pair; re-adding replaces them.
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO collection_templates (collection_id, template_id, tags) VALUES (?, ?, ?) ON CONFLICT (collection_id, template_id) DO UPDATE SET tags = excluded.tags",
		collectionID, templateID, string(encoded))
	return schemaErr(err)
}
