package kit

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ChiRoutePatternOrPath labels unmatched requests as "unmatched" so scanners
// hitting random paths cannot blow up metric cardinality.
func ChiRoutePatternOrPath(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	if rp := rctx.RoutePattern(); rp != "" {
		return rp
	}
	return "unmatched"
}
