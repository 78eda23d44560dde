package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func callerEcho(t *testing.T, got *string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = Caller(r)
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthJWTRequiresHeader(t *testing.T) {
	var caller string
	handler := AuthJWT(callerEcho(t, &caller))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without a token", w.Code)
	}
}

func TestAuthJWTRejectsMalformedHeader(t *testing.T) {
	var caller string
	handler := AuthJWT(callerEcho(t, &caller))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Basic xyz")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for a non-bearer header", w.Code)
	}
}

func TestMaybeAuthJWTAnonymousPassThrough(t *testing.T) {
	t.Setenv("PUBLIC_ACCESS", "true")

	var caller string
	handler := MaybeAuthJWT(callerEcho(t, &caller))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want anonymous pass-through", w.Code)
	}
	if caller != "" {
		t.Errorf("Caller() = %q, want empty for an anonymous request", caller)
	}
}

func TestMaybeAuthJWTStillRejectsBadToken(t *testing.T) {
	t.Setenv("PUBLIC_ACCESS", "true")

	var caller string
	handler := MaybeAuthJWT(callerEcho(t, &caller))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for an invalid token even with public access", w.Code)
	}
}

func TestMaybeAuthJWTLockedDownByDefault(t *testing.T) {
	t.Setenv("PUBLIC_ACCESS", "")

	var caller string
	handler := MaybeAuthJWT(callerEcho(t, &caller))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 when public access is off", w.Code)
	}
}
