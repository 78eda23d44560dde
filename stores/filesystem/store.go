package filesystem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"printloom/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// fsStore keeps each entity as a JSON file. Variation files are named by their
// ULID, which sorts lexically by creation time, so reading a design's history
// directory in name order yields the ledger in append order.
type fsStore struct {
	basePath string
}

// NewStore creates a new filesystem-based store.
func NewStore(basePath string) *fsStore {
	for _, dir := range []string{"assets", "designs", "variations", "templates", "collections", "memberships"} {
		if err := os.MkdirAll(filepath.Join(basePath, dir), 0755); err != nil {
			log.Fatalf("failed to create %s directory: %v", dir, err)
		}
	}
	return &fsStore{basePath: basePath}
}

func (s *fsStore) readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *fsStore) writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// AssetStore implementation

func (s *fsStore) FindAsset(ctx context.Context, id string) (*core.Asset, error) {
	filePath := filepath.Join(s.basePath, "assets", id)
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			logrus.WithField("asset_id", id).Warn("Asset with specified ID not found")
			return nil, fmt.Errorf("asset %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}
	asset := core.Asset{
		Data: *bytes.NewBuffer(data),
	}
	return &asset, nil
}

func (s *fsStore) CreateAsset(ctx context.Context, asset *core.Asset) (string, error) {
	id := ulid.Make().String()
	filePath := filepath.Join(s.basePath, "assets", id)
	if err := os.WriteFile(filePath, asset.Data.Bytes(), 0644); err != nil {
		logrus.WithError(err).Error("Failed to create asset")
		return "", err
	}
	logrus.WithFields(logrus.Fields{
		"asset_id":    id,
		"data_length": asset.Data.Len(),
	}).Info("Asset created successfully")
	return id, nil
}

// DesignStore implementation

func (s *fsStore) designPath(userID, id string) string {
	return filepath.Join(s.basePath, "designs", userID, id+".json")
}

func (s *fsStore) List(ctx context.Context, userID string) ([]*core.Design, error) {
	userPath := filepath.Join(s.basePath, "designs", userID)
	log := logrus.WithField("user_id", userID)

	files, err := os.ReadDir(userPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []*core.Design{}, nil
		}
		log.WithError(err).Error("Failed to read user directory")
		return nil, err
	}

	designs := make([]*core.Design, 0, len(files))
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		var design core.Design
		if err := s.readJSON(filepath.Join(userPath, file.Name()), &design); err != nil {
			log.WithError(err).Warnf("Failed to read design file %s, skipping", file.Name())
			continue
		}
		design.UserID = userID
		designs = append(designs, &design)
	}
	sort.Slice(designs, func(i, j int) bool {
		return designs[i].CreatedAt.After(designs[j].CreatedAt)
	})
	return designs, nil
}

func (s *fsStore) Get(ctx context.Context, userID, id string) (*core.Design, error) {
	var design core.Design
	if err := s.readJSON(s.designPath(userID, id), &design); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("design %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}
	// UserID is json:"-" on the API type; restore it from the path.
	design.UserID = userID
	return &design, nil
}

func (s *fsStore) Create(ctx context.Context, design *core.Design) error {
	if design.UserID == "" || design.ID == "" {
		return fmt.Errorf("design ID and user ID cannot be empty")
	}
	now := time.Now()
	design.CreatedAt = now
	design.UpdatedAt = now
	return s.writeJSON(s.designPath(design.UserID, design.ID), designFile(design))
}

func (s *fsStore) UpdateThumbnail(ctx context.Context, userID, id, thumbnailURL string) error {
	design, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	design.ThumbnailURL = thumbnailURL
	design.UpdatedAt = time.Now()
	return s.writeJSON(s.designPath(userID, id), designFile(design))
}

func (s *fsStore) Delete(ctx context.Context, userID, id string) error {
	if err := os.Remove(s.designPath(userID, id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("design %s: %w", id, core.ErrNotFound)
		}
		return err
	}
	// Variations never outlive their design.
	if err := os.RemoveAll(filepath.Join(s.basePath, "variations", id)); err != nil {
		logrus.WithError(err).WithField("design_id", id).Warn("Failed to remove variation history")
	}
	return nil
}

// designFile re-exposes the fields the JSON store must persist; UserID has
// json:"-" on the API type.
func designFile(d *core.Design) map[string]any {
	return map[string]any{
		"id":           d.ID,
		"userId":       d.UserID,
		"title":        d.Title,
		"prompt":       d.Prompt,
		"imageUrl":     d.ImageURL,
		"thumbnailUrl": d.ThumbnailURL,
		"aspectRatio":  d.AspectRatio,
		"createdAt":    d.CreatedAt,
		"updatedAt":    d.UpdatedAt,
	}
}

// VariationStore implementation

func (s *fsStore) Append(ctx context.Context, variation *core.Variation) (string, error) {
	if variation.DesignID == "" {
		return "", fmt.Errorf("variation design ID cannot be empty")
	}
	stored := *variation
	stored.ID = ulid.Make().String()
	stored.CreatedAt = time.Now()

	path := filepath.Join(s.basePath, "variations", stored.DesignID, stored.ID+".json")
	if err := s.writeJSON(path, &stored); err != nil {
		return "", err
	}
	logrus.WithFields(logrus.Fields{
		"design_id":    stored.DesignID,
		"variation_id": stored.ID,
		"kind":         stored.Kind,
	}).Info("Variation appended")
	return stored.ID, nil
}

func (s *fsStore) ListByDesign(ctx context.Context, designID string) ([]*core.Variation, error) {
	dirPath := filepath.Join(s.basePath, "variations", designID)
	files, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []*core.Variation{}, nil
		}
		return nil, err
	}

	names := make([]string, 0, len(files))
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".json") {
			names = append(names, file.Name())
		}
	}
	// ULID filenames: lexical order is creation order.
	sort.Strings(names)

	variations := make([]*core.Variation, 0, len(names))
	for _, name := range names {
		var v core.Variation
		if err := s.readJSON(filepath.Join(dirPath, name), &v); err != nil {
			logrus.WithError(err).Warnf("Failed to read variation file %s, skipping", name)
			continue
		}
		variations = append(variations, &v)
	}
	return variations, nil
}

func (s *fsStore) DeleteVariation(ctx context.Context, designID, variationID string) error {
	// The path carries both keys, so a variation of another design can never
	// match.
	path := filepath.Join(s.basePath, "variations", designID, variationID+".json")
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("variation %s of design %s: %w", variationID, designID, core.ErrNotFound)
		}
		return err
	}
	return nil
}

// TemplateStore implementation

type membership struct {
	CollectionID string   `json:"collectionId"`
	TemplateID   string   `json:"templateId"`
	Tags         []string `json:"tags"`
}

func (s *fsStore) ListTemplates(ctx context.Context, collectionID string) ([]*core.Template, error) {
	var members map[string]bool
	if collectionID != "" {
		members = make(map[string]bool)
		entries, err := os.ReadDir(filepath.Join(s.basePath, "memberships"))
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		for _, entry := range entries {
			var m membership
			if err := s.readJSON(filepath.Join(s.basePath, "memberships", entry.Name()), &m); err != nil {
				continue
			}
			if m.CollectionID == collectionID {
				members[m.TemplateID] = true
			}
		}
	}

	files, err := os.ReadDir(filepath.Join(s.basePath, "templates"))
	if err != nil {
		if os.IsNotExist(err) {
			return []*core.Template{}, nil
		}
		return nil, err
	}

	templates := make([]*core.Template, 0, len(files))
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		var t core.Template
		if err := s.readJSON(filepath.Join(s.basePath, "templates", file.Name()), &t); err != nil {
			logrus.WithError(err).Warnf("Failed to read template file %s, skipping", file.Name())
			continue
		}
		if members != nil && !members[t.ID] {
			continue
		}
		templates = append(templates, &t)
	}
	sort.Slice(templates, func(i, j int) bool {
		return templates[i].CreatedAt.After(templates[j].CreatedAt)
	})
	return templates, nil
}

func (s *fsStore) GetTemplate(ctx context.Context, id string) (*core.Template, error) {
	var t core.Template
	if err := s.readJSON(filepath.Join(s.basePath, "templates", id+".json"), &t); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("template %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}
	return &t, nil
}

func (s *fsStore) CreateTemplate(ctx context.Context, template *core.Template) error {
	if template.ID == "" {
		return fmt.Errorf("template ID cannot be empty")
	}
	template.CreatedAt = time.Now()
	return s.writeJSON(filepath.Join(s.basePath, "templates", template.ID+".json"), template)
}

func (s *fsStore) ListCollections(ctx context.Context) ([]*core.Collection, error) {
	files, err := os.ReadDir(filepath.Join(s.basePath, "collections"))
	if err != nil {
		if os.IsNotExist(err) {
			return []*core.Collection{}, nil
		}
		return nil, err
	}

	collections := make([]*core.Collection, 0, len(files))
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		var c core.Collection
		if err := s.readJSON(filepath.Join(s.basePath, "collections", file.Name()), &c); err != nil {
			logrus.WithError(err).Warnf("Failed to read collection file %s, skipping", file.Name())
			continue
		}
		collections = append(collections, &c)
	}
	sort.Slice(collections, func(i, j int) bool {
		return collections[i].Name < collections[j].Name
	})
	return collections, nil
}

func (s *fsStore) CreateCollection(ctx context.Context, collection *core.Collection) error {
	if collection.ID == "" {
		return fmt.Errorf("collection ID cannot be empty")
	}
	existing, err := s.ListCollections(ctx)
	if err != nil {
		return err
	}
	for _, c := range existing {
		if c.Name == collection.Name {
			return fmt.Errorf("collection %q already exists", collection.Name)
		}
	}
	collection.CreatedAt = time.Now()
	return s.writeJSON(filepath.Join(s.basePath, "collections", collection.ID+".json"), collection)
}

func (s *fsStore) AddTemplateToCollection(ctx context.Context, templateID, collectionID string, tags []string) error {
	if _, err := s.GetTemplate(ctx, templateID); err != nil {
		return err
	}
	var c core.Collection
	if err := s.readJSON(filepath.Join(s.basePath, "collections", collectionID+".json"), &c); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("collection %s: %w", collectionID, core.ErrNotFound)
		}
		return err
	}
	// Tags are scoped to the (template, collection) pair.
	m := membership{CollectionID: collectionID, TemplateID: templateID, Tags: tags}
	name := collectionID + "__" + templateID + ".json"
	return s.writeJSON(filepath.Join(s.basePath, "memberships", name), &m)
}
