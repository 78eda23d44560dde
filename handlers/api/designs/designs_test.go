package designs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"printloom/core"
	"printloom/handlers/auth"
	"printloom/middleware"
	"printloom/stores"
	"printloom/stores/memory"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

// testRouter mounts the design routes the way main does, with a stub auth
// middleware that injects the given user's claims.
func testRouter(store stores.Store, userID string) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			claims := &auth.AppClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: userID}}
			ctx := context.WithValue(req.Context(), middleware.ClaimsContextKey, claims)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Get("/designs", HandleList(store))
	r.Post("/designs", HandleCreate(store))
	r.Get("/designs/{id}", HandleGet(store))
	r.Delete("/designs/{id}", HandleDelete(store))
	r.Put("/designs/{id}/thumbnail", HandleUpdateThumbnail(store))
	r.Get("/designs/{id}/variations", HandleListVariations(store))
	r.Delete("/designs/{id}/variations/{variationID}", HandleDeleteVariation(store))
	return r
}

func seedDesign(t *testing.T, store stores.Store, userID, id string) {
	t.Helper()
	err := store.Create(context.Background(), &core.Design{
		ID:       id,
		UserID:   userID,
		Title:    "tee front",
		ImageURL: "https://x/full.png",
	})
	if err != nil {
		t.Fatalf("seeding design: %v", err)
	}
}

func TestCreateAndGetDesign(t *testing.T) {
	router := testRouter(memory.NewStore(), "user-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/designs",
		strings.NewReader(`{"title":"tee front","imageUrl":"https://x/full.png","thumbnailUrl":"https://x/thumb.png"}`)))
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201; body %s", w.Code, w.Body.String())
	}
	var created core.Design
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("create response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("created design has no ID")
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/designs/"+created.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", w.Code)
	}
	var got core.Design
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("get response: %v", err)
	}
	if got.ImageURL != "https://x/full.png" || got.ThumbnailURL != "https://x/thumb.png" {
		t.Errorf("got %+v, want the stored urls", got)
	}
}

func TestCreateDesignRequiresImage(t *testing.T) {
	router := testRouter(memory.NewStore(), "user-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/designs",
		strings.NewReader(`{"title":"no artwork"}`)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 without imageUrl", w.Code)
	}
}

func TestListResolvesDisplayImage(t *testing.T) {
	store := memory.NewStore()
	if err := store.Create(context.Background(), &core.Design{
		ID:           "design-1",
		UserID:       "user-1",
		ImageURL:     "https://x/full.png",
		ThumbnailURL: "https://x/thumb.png",
	}); err != nil {
		t.Fatalf("seeding design: %v", err)
	}
	router := testRouter(store, "user-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/designs", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var summaries []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &summaries); err != nil {
		t.Fatalf("list response: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("got %d designs, want 1", len(summaries))
	}
	if summaries[0]["displayImage"] != "https://x/thumb.png" {
		t.Errorf("displayImage = %v, want the thumbnail", summaries[0]["displayImage"])
	}
}

func TestGetForeignDesign(t *testing.T) {
	store := memory.NewStore()
	seedDesign(t, store, "owner", "design-1")
	router := testRouter(store, "intruder")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/designs/design-1", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for another user's design", w.Code)
	}
}

func TestUpdateThumbnail(t *testing.T) {
	store := memory.NewStore()
	seedDesign(t, store, "user-1", "design-1")
	router := testRouter(store, "user-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/designs/design-1/thumbnail",
		strings.NewReader(`{"thumbnailUrl":"https://x/new-thumb.png"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}

	d, err := store.Get(context.Background(), "user-1", "design-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if d.ThumbnailURL != "https://x/new-thumb.png" {
		t.Errorf("ThumbnailURL = %q, want the updated value", d.ThumbnailURL)
	}
}

func TestVariationRoutes(t *testing.T) {
	store := memory.NewStore()
	seedDesign(t, store, "user-1", "design-1")
	variationID, err := store.Append(context.Background(), &core.Variation{
		DesignID: "design-1",
		ImageURL: "https://cdn/v1.png",
		Kind:     "edited",
	})
	if err != nil {
		t.Fatalf("seeding variation: %v", err)
	}
	router := testRouter(store, "user-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/designs/design-1/variations", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", w.Code)
	}
	var history []core.Variation
	if err := json.Unmarshal(w.Body.Bytes(), &history); err != nil {
		t.Fatalf("list response: %v", err)
	}
	if len(history) != 1 || history[0].ID != variationID {
		t.Fatalf("history = %+v, want the seeded variation", history)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/designs/design-1/variations/"+variationID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want 200; body %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/designs/design-1/variations/"+variationID, nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("repeat delete status = %d, want 404", w.Code)
	}
}

func TestVariationRoutesForeignDesign(t *testing.T) {
	store := memory.NewStore()
	seedDesign(t, store, "owner", "design-1")
	if _, err := store.Append(context.Background(), &core.Variation{
		DesignID: "design-1",
		ImageURL: "https://cdn/v1.png",
		Kind:     "edited",
	}); err != nil {
		t.Fatalf("seeding variation: %v", err)
	}
	router := testRouter(store, "intruder")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/designs/design-1/variations", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 reading another user's history", w.Code)
	}
}

func TestDeleteDesign(t *testing.T) {
	store := memory.NewStore()
	seedDesign(t, store, "user-1", "design-1")
	router := testRouter(store, "user-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/designs/design-1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/designs/design-1", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status after delete = %d, want 404", w.Code)
	}
}
