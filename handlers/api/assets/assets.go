package assets

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"printloom/core"
	"printloom/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// Uploads are source images only; anything larger is not a print source.
const maxUploadBytes = 20 << 20

type AssetCreateResponse struct {
	ID string `json:"id"`
}

func HandleCreate(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to read request body"})
			return
		}
		defer r.Body.Close()

		if len(data) == 0 {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Empty upload"})
			return
		}
		if len(data) > maxUploadBytes {
			render.Status(r, http.StatusRequestEntityTooLarge)
			render.JSON(w, r, map[string]string{"error": "Upload too large"})
			return
		}

		asset := &core.Asset{Data: *bytes.NewBuffer(data)}
		id, err := store.CreateAsset(r.Context(), asset)
		if err != nil {
			logrus.WithField("error", err).Error("Failed to store asset")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to store asset"})
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, AssetCreateResponse{ID: id})
	}
}

func HandleGet(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		asset, err := store.FindAsset(r.Context(), id)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Asset not found"})
				return
			}
			logrus.WithFields(logrus.Fields{"error": err, "assetID": id}).Error("Failed to get asset")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to get asset"})
			return
		}

		data := asset.Data.Bytes()
		w.Header().Set("Content-Type", http.DetectContentType(data))
		w.Write(data)
	}
}
