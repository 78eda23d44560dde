package transforms

import (
	"encoding/json"
	"errors"
	"net/http"

	"printloom/core"
	"printloom/middleware"
	"printloom/pipeline"
	"printloom/stores"
	"printloom/transform"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// TransformRequest is the wire shape shared by all transform endpoints; each
// endpoint reads the subset of fields its kind needs. Pointer fields
// distinguish absent from zero so server-side defaults only fill real gaps.
type TransformRequest struct {
	DesignID        string   `json:"designId,omitempty"`
	ImageURL        string   `json:"imageUrl,omitempty"`
	Instruction     string   `json:"instruction,omitempty"`
	Model           string   `json:"model,omitempty"`
	Strength        *float64 `json:"strength,omitempty"`
	BackgroundColor string   `json:"backgroundColor,omitempty"`
	Tolerance       *int     `json:"tolerance,omitempty"`
	OutputFormat    string   `json:"outputFormat,omitempty"`
	UpscaleMode     string   `json:"upscaleMode,omitempty"`
	UpscaleFactor   int      `json:"upscaleFactor,omitempty"`
	AspectRatio     string   `json:"aspectRatio,omitempty"`
	StyleImageURLs  []string `json:"styleImageUrls,omitempty"`
}

// Handle returns the handler for one transform kind. All kinds share the same
// flow: decode, re-check design ownership when a design is named, run the
// pipeline, map its error taxonomy onto status codes.
func Handle(kind transform.Kind, orch *pipeline.Orchestrator, store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.Caller(r)

		var req TransformRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid request body"})
			return
		}

		// Ownership of the target design is established here, never trusted
		// from the request. Anonymous callers cannot target a design.
		if req.DesignID != "" {
			if userID == "" {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, map[string]string{"error": "Sign in to edit a saved design"})
				return
			}
			if _, err := store.Get(r.Context(), userID, req.DesignID); err != nil {
				if errors.Is(err, core.ErrNotFound) {
					render.Status(r, http.StatusNotFound)
					render.JSON(w, r, map[string]string{"error": "Design not found"})
					return
				}
				logrus.WithFields(logrus.Fields{"error": err, "designID": req.DesignID}).Error("Failed to check design ownership")
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, map[string]string{"error": "Failed to check design ownership"})
				return
			}
		}

		result, err := orch.Apply(r.Context(), userID, pipeline.Request{
			Kind:            kind,
			DesignID:        req.DesignID,
			ImageURL:        req.ImageURL,
			Instruction:     req.Instruction,
			Model:           req.Model,
			Strength:        req.Strength,
			BackgroundColor: req.BackgroundColor,
			Tolerance:       req.Tolerance,
			OutputFormat:    req.OutputFormat,
			UpscaleMode:     req.UpscaleMode,
			UpscaleFactor:   req.UpscaleFactor,
			AspectRatio:     req.AspectRatio,
			StyleImageURLs:  req.StyleImageURLs,
		})
		if err != nil {
			if errors.Is(err, core.ErrMissingInput) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, map[string]string{"error": err.Error()})
				return
			}
			logrus.WithFields(logrus.Fields{
				"error":  err,
				"kind":   kind.String(),
				"userID": userID,
			}).Error("Transform failed")
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, map[string]string{"error": "Image transform failed"})
			return
		}

		render.JSON(w, r, result)
	}
}
