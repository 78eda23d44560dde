package designs

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"printloom/core"
	"printloom/middleware"
	"printloom/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

type (
	// designSummary is the list-view shape: the display image is resolved
	// server-side so clients never re-implement the thumbnail precedence.
	designSummary struct {
		ID           string    `json:"id"`
		Title        string    `json:"title"`
		DisplayImage string    `json:"displayImage"`
		AspectRatio  string    `json:"aspectRatio,omitempty"`
		CreatedAt    time.Time `json:"createdAt"`
		UpdatedAt    time.Time `json:"updatedAt"`
	}

	CreateDesignRequest struct {
		Title        string `json:"title"`
		Prompt       string `json:"prompt"`
		ImageURL     string `json:"imageUrl"`
		ThumbnailURL string `json:"thumbnailUrl"`
		AspectRatio  string `json:"aspectRatio"`
	}

	UpdateThumbnailRequest struct {
		ThumbnailURL string `json:"thumbnailUrl"`
	}
)

func HandleList(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.Caller(r)

		designs, err := store.List(r.Context(), userID)
		if err != nil {
			logrus.WithFields(logrus.Fields{"error": err, "userID": userID}).Error("Failed to list designs")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list designs"})
			return
		}

		summaries := make([]designSummary, 0, len(designs))
		for _, d := range designs {
			summaries = append(summaries, designSummary{
				ID:           d.ID,
				Title:        d.Title,
				DisplayImage: d.DisplayImage(),
				AspectRatio:  d.AspectRatio,
				CreatedAt:    d.CreatedAt,
				UpdatedAt:    d.UpdatedAt,
			})
		}
		render.JSON(w, r, summaries)
	}
}

func HandleGet(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.Caller(r)
		id := chi.URLParam(r, "id")

		design, err := store.Get(r.Context(), userID, id)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Design not found"})
				return
			}
			logrus.WithFields(logrus.Fields{"error": err, "userID": userID, "designID": id}).Error("Failed to get design")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to get design"})
			return
		}
		render.JSON(w, r, design)
	}
}

func HandleCreate(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.Caller(r)

		var req CreateDesignRequest
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

		design := &core.Design{
			ID:           ulid.Make().String(),
			UserID:       userID,
			Title:        req.Title,
			Prompt:       req.Prompt,
			ImageURL:     req.ImageURL,
			ThumbnailURL: req.ThumbnailURL,
			AspectRatio:  req.AspectRatio,
		}
		if err := store.Create(r.Context(), design); err != nil {
			logrus.WithFields(logrus.Fields{"error": err, "userID": userID}).Error("Failed to create design")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to create design"})
			return
		}
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, design)
	}
}

func HandleDelete(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.Caller(r)
		id := chi.URLParam(r, "id")

		if err := store.Delete(r.Context(), userID, id); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Design not found"})
				return
			}
			logrus.WithFields(logrus.Fields{"error": err, "userID": userID, "designID": id}).Error("Failed to delete design")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to delete design"})
			return
		}
		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]string{"status": "deleted"})
	}
}

func HandleUpdateThumbnail(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.Caller(r)
		id := chi.URLParam(r, "id")

		var req UpdateThumbnailRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}

		if err := store.UpdateThumbnail(r.Context(), userID, id, req.ThumbnailURL); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Design not found"})
				return
			}
			logrus.WithFields(logrus.Fields{"error": err, "userID": userID, "designID": id}).Error("Failed to update thumbnail")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to update thumbnail"})
			return
		}
		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]string{"status": "updated"})
	}
}

// HandleListVariations returns the design's edit history, oldest first. The
// design is fetched first so one user cannot read another's history by
// guessing a design ID.
func HandleListVariations(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.Caller(r)
		id := chi.URLParam(r, "id")

		if _, err := store.Get(r.Context(), userID, id); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Design not found"})
				return
			}
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to get design"})
			return
		}

		variations, err := store.ListByDesign(r.Context(), id)
		if err != nil {
			logrus.WithFields(logrus.Fields{"error": err, "designID": id}).Error("Failed to list variations")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list variations"})
			return
		}
		if variations == nil {
			variations = []*core.Variation{}
		}
		render.JSON(w, r, variations)
	}
}

func HandleDeleteVariation(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.Caller(r)
		id := chi.URLParam(r, "id")
		variationID := chi.URLParam(r, "variationID")

		if _, err := store.Get(r.Context(), userID, id); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Design not found"})
				return
			}
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to get design"})
			return
		}

		if err := store.DeleteVariation(r.Context(), id, variationID); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Variation not found"})
				return
			}
			logrus.WithFields(logrus.Fields{"error": err, "designID": id, "variationID": variationID}).Error("Failed to delete variation")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to delete variation"})
			return
		}
		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]string{"status": "deleted"})
	}
}
