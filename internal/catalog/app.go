package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"Storefront/pkg/kit"
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string

	// Auth, when set, is mounted under /api/auth.
	Auth http.Handler
}

// NewHandler wraps the catalog routes with the shared middleware stack.
func NewHandler(s *Server, deps HTTPDeps) http.Handler {
	r := chi.NewRouter()

	setupMiddleware(r, deps)
	setupMetrics(r, s, deps)

	if deps.Auth != nil {
		r.Mount("/api/auth", deps.Auth)
	}
	r.Mount("/", s.Routes())
	return r
}

func setupMiddleware(r *chi.Mux, deps HTTPDeps) {
	r.Use(chimw.RequestID)
	r.Use(kit.EchoRequestID)
	r.Use(kit.Recoverer)
	r.Use(kit.Logging(deps.Log))
}

func setupMetrics(r *chi.Mux, s *Server, deps HTTPDeps) {
	if deps.Registry == nil {
		return
	}

	metrics := kit.NewMetrics(deps.Registry)
	r.Use(metrics.Middleware(deps.Service, kit.ChiRoutePatternOrPath))

	if s.Created == nil {
		created := prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_products_created_total",
			Help: "Products appended through the API",
		})
		deps.Registry.MustRegister(created)
		s.Created = created
	}

	if !deps.MetricsEnabled {
		return
	}

	r.With(kit.MetricsAuth(deps.MetricsToken)).
		Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
}
