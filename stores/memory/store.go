package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"printloom/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

type tagKey struct {
	templateID   string
	collectionID string
}

// memStore keeps everything in process memory. It is the default backend and
// the one the tests run against.
type memStore struct {
	mu sync.RWMutex

	assets map[string]core.Asset
	// designs is keyed by userID first, then design ID.
	designs map[string]map[string]*core.Design
	// variations holds each design's history in append order.
	variations  map[string][]*core.Variation
	templates   map[string]*core.Template
	collections map[string]*core.Collection
	// members maps collectionID to the set of member template IDs.
	members map[string]map[string]bool
	tags    map[tagKey][]string
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{
		assets:      make(map[string]core.Asset),
		designs:     make(map[string]map[string]*core.Design),
		variations:  make(map[string][]*core.Variation),
		templates:   make(map[string]*core.Template),
		collections: make(map[string]*core.Collection),
		members:     make(map[string]map[string]bool),
		tags:        make(map[tagKey][]string),
	}
}

// AssetStore implementation

func (s *memStore) FindAsset(ctx context.Context, id string) (*core.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if val, ok := s.assets[id]; ok {
		return &val, nil
	}
	logrus.WithField("asset_id", id).Warn("Asset with specified ID not found")
	return nil, fmt.Errorf("asset %s: %w", id, core.ErrNotFound)
}

func (s *memStore) CreateAsset(ctx context.Context, asset *core.Asset) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ulid.Make().String()
	s.assets[id] = *asset
	logrus.WithFields(logrus.Fields{
		"asset_id":    id,
		"data_length": asset.Data.Len(),
	}).Info("Asset created successfully")
	return id, nil
}

// DesignStore implementation

func (s *memStore) List(ctx context.Context, userID string) ([]*core.Design, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userDesigns, ok := s.designs[userID]
	if !ok {
		return []*core.Design{}, nil
	}

	designs := make([]*core.Design, 0, len(userDesigns))
	for _, d := range userDesigns {
		copied := *d
		designs = append(designs, &copied)
	}
	sort.Slice(designs, func(i, j int) bool {
		return designs[i].CreatedAt.After(designs[j].CreatedAt)
	})
	return designs, nil
}

func (s *memStore) Get(ctx context.Context, userID, id string) (*core.Design, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if d, ok := s.designs[userID][id]; ok {
		copied := *d
		return &copied, nil
	}
	return nil, fmt.Errorf("design %s: %w", id, core.ErrNotFound)
}

func (s *memStore) Create(ctx context.Context, design *core.Design) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if design.UserID == "" {
		return fmt.Errorf("design user ID cannot be empty")
	}
	if design.ID == "" {
		return fmt.Errorf("design ID cannot be empty")
	}

	userDesigns, ok := s.designs[design.UserID]
	if !ok {
		userDesigns = make(map[string]*core.Design)
		s.designs[design.UserID] = userDesigns
	}

	now := time.Now()
	design.CreatedAt = now
	design.UpdatedAt = now
	copied := *design
	userDesigns[design.ID] = &copied

	logrus.WithFields(logrus.Fields{"user_id": design.UserID, "design_id": design.ID}).Info("Design created")
	return nil
}

func (s *memStore) UpdateThumbnail(ctx context.Context, userID, id, thumbnailURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.designs[userID][id]
	if !ok {
		return fmt.Errorf("design %s: %w", id, core.ErrNotFound)
	}
	d.ThumbnailURL = thumbnailURL
	d.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	userDesigns, ok := s.designs[userID]
	if !ok {
		return fmt.Errorf("design %s: %w", id, core.ErrNotFound)
	}
	if _, ok := userDesigns[id]; !ok {
		return fmt.Errorf("design %s: %w", id, core.ErrNotFound)
	}

	delete(userDesigns, id)
	// Variations never outlive their design.
	delete(s.variations, id)

	logrus.WithFields(logrus.Fields{"user_id": userID, "design_id": id}).Info("Design deleted")
	return nil
}

// VariationStore implementation

func (s *memStore) Append(ctx context.Context, variation *core.Variation) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if variation.DesignID == "" {
		return "", fmt.Errorf("variation design ID cannot be empty")
	}

	copied := *variation
	copied.ID = ulid.Make().String()
	copied.CreatedAt = time.Now()
	s.variations[copied.DesignID] = append(s.variations[copied.DesignID], &copied)

	logrus.WithFields(logrus.Fields{
		"design_id":    copied.DesignID,
		"variation_id": copied.ID,
		"kind":         copied.Kind,
	}).Info("Variation appended")
	return copied.ID, nil
}

func (s *memStore) ListByDesign(ctx context.Context, designID string) ([]*core.Variation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.variations[designID]
	variations := make([]*core.Variation, 0, len(history))
	for _, v := range history {
		copied := *v
		variations = append(variations, &copied)
	}
	return variations, nil
}

func (s *memStore) DeleteVariation(ctx context.Context, designID, variationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.variations[designID]
	for i, v := range history {
		if v.ID == variationID {
			s.variations[designID] = append(history[:i:i], history[i+1:]...)
			logrus.WithFields(logrus.Fields{
				"design_id":    designID,
				"variation_id": variationID,
			}).Info("Variation deleted")
			return nil
		}
	}
	return fmt.Errorf("variation %s of design %s: %w", variationID, designID, core.ErrNotFound)
}

// TemplateStore implementation

func (s *memStore) ListTemplates(ctx context.Context, collectionID string) ([]*core.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	templates := make([]*core.Template, 0, len(s.templates))
	for _, t := range s.templates {
		if collectionID != "" && !s.members[collectionID][t.ID] {
			continue
		}
		copied := *t
		templates = append(templates, &copied)
	}
	sort.Slice(templates, func(i, j int) bool {
		return templates[i].CreatedAt.After(templates[j].CreatedAt)
	})
	return templates, nil
}

func (s *memStore) GetTemplate(ctx context.Context, id string) (*core.Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if t, ok := s.templates[id]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, fmt.Errorf("template %s: %w", id, core.ErrNotFound)
}

func (s *memStore) CreateTemplate(ctx context.Context, template *core.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if template.ID == "" {
		return fmt.Errorf("template ID cannot be empty")
	}
	template.CreatedAt = time.Now()
	copied := *template
	s.templates[template.ID] = &copied
	return nil
}

func (s *memStore) ListCollections(ctx context.Context) ([]*core.Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	collections := make([]*core.Collection, 0, len(s.collections))
	for _, c := range s.collections {
		copied := *c
		collections = append(collections, &copied)
	}
	sort.Slice(collections, func(i, j int) bool {
		return collections[i].Name < collections[j].Name
	})
	return collections, nil
}

func (s *memStore) CreateCollection(ctx context.Context, collection *core.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if collection.ID == "" {
		return fmt.Errorf("collection ID cannot be empty")
	}
	for _, c := range s.collections {
		if c.Name == collection.Name {
			return fmt.Errorf("collection %q already exists", collection.Name)
		}
	}
	collection.CreatedAt = time.Now()
	copied := *collection
	s.collections[collection.ID] = &copied
	return nil
}

func (s *memStore) AddTemplateToCollection(ctx context.Context, templateID, collectionID string, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[templateID]; !ok {
		return fmt.Errorf("template %s: %w", templateID, core.ErrNotFound)
	}
	if _, ok := s.collections[collectionID]; !ok {
		return fmt.Errorf("collection %s: %w", collectionID, core.ErrNotFound)
	}

	memberSet, ok := s.members[collectionID]
	if !ok {
		memberSet = make(map[string]bool)
		s.members[collectionID] = memberSet
	}
	memberSet[templateID] = true
	// Tags are scoped to the (template, collection) pair.
	s.tags[tagKey{templateID, collectionID}] = append([]string(nil), tags...)
	return nil
}
