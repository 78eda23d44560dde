package templates

import (
	"encoding/json"
	"errors"
	"net/http"

	"printloom/core"
	"printloom/middleware"
	"printloom/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

type (
	CreateTemplateRequest struct {
		Title        string `json:"title"`
		Prompt       string `json:"prompt"`
		ImageURL     string `json:"imageUrl"`
		ThumbnailURL string `json:"thumbnailUrl"`
		AspectRatio  string `json:"aspectRatio"`
	}

	CreateCollectionRequest struct {
		Name string `json:"name"`
	}

	AddTemplateRequest struct {
		TemplateID string   `json:"templateId"`
		Tags       []string `json:"tags"`
	}
)

func HandleList(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		collectionID := r.URL.Query().Get("collection")

		templates, err := store.ListTemplates(r.Context(), collectionID)
		if err != nil {
			logrus.WithField("error", err).Error("Failed to list templates")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list templates"})
			return
		}
		if templates == nil {
			templates = []*core.Template{}
		}
		render.JSON(w, r, templates)
	}
}

func HandleGet(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		template, err := store.GetTemplate(r.Context(), id)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Template not found"})
				return
			}
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to get template"})
			return
		}
		render.JSON(w, r, template)
	}
}

func HandleCreate(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateTemplateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}
		if req.ImageURL == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "imageUrl is required"})
			return
		}

		template := &core.Template{
			ID:           ulid.Make().String(),
			Title:        req.Title,
			Prompt:       req.Prompt,
			ImageURL:     req.ImageURL,
			ThumbnailURL: req.ThumbnailURL,
			AspectRatio:  req.AspectRatio,
		}
		if err := store.CreateTemplate(r.Context(), template); err != nil {
			logrus.WithField("error", err).Error("Failed to create template")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to create template"})
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, template)
	}
}

// HandleCopy creates a brand-new design owned by the caller from a template.
// Ownership never transfers; the template is untouched.
func HandleCopy(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.Caller(r)
		id := chi.URLParam(r, "id")

		template, err := store.GetTemplate(r.Context(), id)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Template not found"})
				return
			}
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to get template"})
			return
		}

		design := core.NewDesignFromTemplate(template, userID)
		design.ID = ulid.Make().String()
		if err := store.Create(r.Context(), design); err != nil {
			logrus.WithFields(logrus.Fields{"error": err, "templateID": id, "userID": userID}).Error("Failed to copy template")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to copy template"})
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, design)
	}
}

func HandleListCollections(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		collections, err := store.ListCollections(r.Context())
		if err != nil {
			logrus.WithField("error", err).Error("Failed to list collections")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list collections"})
			return
		}
		if collections == nil {
			collections = []*core.Collection{}
		}
		render.JSON(w, r, collections)
	}
}

func HandleCreateCollection(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateCollectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}

		name := core.NormalizeCollectionName(req.Name)
		if name == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Collection name is required"})
			return
		}

		collection := &core.Collection{
			ID:   ulid.Make().String(),
			Name: name,
		}
		if err := store.CreateCollection(r.Context(), collection); err != nil {
			logrus.WithFields(logrus.Fields{"error": err, "name": name}).Error("Failed to create collection")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to create collection"})
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, collection)
	}
}

func HandleAddTemplateToCollection(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		collectionID := chi.URLParam(r, "id")

		var req AddTemplateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}
		if req.TemplateID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "templateId is required"})
			return
		}

		if err := store.AddTemplateToCollection(r.Context(), req.TemplateID, collectionID, req.Tags); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Template or collection not found"})
				return
			}
			logrus.WithFields(logrus.Fields{"error": err, "collectionID": collectionID}).Error("Failed to add template to collection")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to add template to collection"})
			return
		}
		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]string{"status": "added"})
	}
}
