package kit

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// MetricsAuth guards /metrics with a bearer token. An empty token closes the endpoint.
func MetricsAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				WriteError(w, r, http.StatusForbidden, "forbidden", nil)
				return
			}

			got, ok := BearerToken(r)
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				WriteError(w, r, http.StatusForbidden, "forbidden", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the credential from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return "", false
	}
	return strings.TrimPrefix(authz, "Bearer "), true
}
