package middleware

import (
	"context"
	"net/http"
	"os"
	"strings"

	"printloom/handlers/auth"

	"github.com/go-chi/render"
)

type contextKey string

const ClaimsContextKey = contextKey("claims")

// PublicAccessEnabled reports whether unauthenticated callers may use the
// transform endpoints. Their results are returned but never recorded in any
// design history.
func PublicAccessEnabled() bool {
	return os.Getenv("PUBLIC_ACCESS") == "true"
}

func claimsFromHeader(r *http.Request) (*auth.AppClaims, string) {
	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return nil, "Authorization header format must be Bearer {token}"
	}

	claims, err := auth.ParseJWT(parts[1])
	if err != nil {
		return nil, "Invalid token"
	}
	return claims, ""
}

// AuthJWT rejects requests without a valid bearer token.
func AuthJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "Authorization header is required"})
			return
		}

		claims, errMsg := claimsFromHeader(r)
		if claims == nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": errMsg})
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// MaybeAuthJWT behaves like AuthJWT unless public access is enabled, in which
// case requests without a token pass through anonymously. A present but
// invalid token is still rejected.
func MaybeAuthJWT(next http.Handler) http.Handler {
	if !PublicAccessEnabled() {
		return AuthJWT(next)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, errMsg := claimsFromHeader(r)
		if claims == nil {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": errMsg})
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Caller returns the authenticated subject, or "" for anonymous requests.
func Caller(r *http.Request) string {
	if claims, ok := r.Context().Value(ClaimsContextKey).(*auth.AppClaims); ok {
		return claims.Subject
	}
	return ""
}
