package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"Storefront/internal/auth"
	"Storefront/pkg/kit"
)

const (
	maxBodyBytes = 64 << 20
	readyTimeout = 1 * time.Second
)

const (
	msgNotFound        = "Not found"
	msgNotImplemented  = "Not implemented"
	msgProductNotFound = "Product not found"
	msgServerError     = "Internal server error"
	msgInvalidJSON     = "Invalid JSON"
)

type Server struct {
	Store  Store
	Filter *Filter
	Admin  auth.Authorizer
	Log    *zap.Logger

	// MaxImageBytes bounds each decoded image on writes; 0 disables the check.
	MaxImageBytes int
	// Created is optional.
	Created prometheus.Counter
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	r.HandleFunc("/health", health)
	r.Get("/readyz", s.ready)

	r.Route("/api/products", func(rr chi.Router) {
		rr.NotFound(notImplemented)
		rr.MethodNotAllowed(notImplemented)

		rr.Get("/", s.list)
		rr.Get("/{id}", s.get)

		rr.Group(func(ar chi.Router) {
			ar.Use(auth.RequireAdmin(s.admin()))
			ar.Post("/", s.create)
			ar.Put("/{id}", s.update)
			ar.Delete("/{id}", s.delete)
		})
	})

	r.Get("/api/categories", s.categories)
	r.Get("/api/categories/stats", s.categoryStats)

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	kit.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	kit.WriteError(w, r, http.StatusNotFound, msgNotFound, nil)
}

func notImplemented(w http.ResponseWriter, r *http.Request) {
	kit.WriteError(w, r, http.StatusBadRequest, msgNotImplemented, nil)
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.Store.Ping(ctx); err != nil {
		s.logWarn("readyz failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
		return
	}
	kit.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	products, err := s.Store.LoadAll(r.Context())
	if err != nil {
		s.storageFailure(w, r, "list products failed", err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, s.filter().Apply(products, ParseQuery(r.URL.Query())))
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := s.Store.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		kit.WriteError(w, r, http.StatusNotFound, msgProductNotFound, nil)
		return
	}
	if err != nil {
		s.storageFailure(w, r, "get product failed", err, zap.String("id", id))
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var in Product
	if !decodeBody(w, r, &in) {
		return
	}
	if !s.checkImages(w, r, in.Images) {
		return
	}

	stored, err := s.Store.Append(r.Context(), in)
	if err != nil {
		s.storageFailure(w, r, "append product failed", err)
		return
	}

	if s.Created != nil {
		s.Created.Inc()
	}
	if s.Log != nil {
		s.Log.Info("product created", zap.String("id", stored.ID), zap.String("category", stored.Category))
	}
	kit.WriteJSON(w, http.StatusCreated, stored)
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch ProductPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	if patch.Images != nil && !s.checkImages(w, r, *patch.Images) {
		return
	}

	updated, err := s.Store.Update(r.Context(), id, patch.Apply)
	if errors.Is(err, ErrNotFound) {
		kit.WriteError(w, r, http.StatusNotFound, msgProductNotFound, nil)
		return
	}
	if err != nil {
		s.storageFailure(w, r, "update product failed", err, zap.String("id", id))
		return
	}
	kit.WriteJSON(w, http.StatusOK, updated)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := s.Store.Delete(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		kit.WriteError(w, r, http.StatusNotFound, msgProductNotFound, nil)
		return
	}
	if err != nil {
		s.storageFailure(w, r, "delete product failed", err, zap.String("id", id))
		return
	}
	kit.WriteJSON(w, http.StatusOK, map[string]string{"message": "Product deleted successfully"})
}

func (s *Server) categories(w http.ResponseWriter, r *http.Request) {
	cats, err := DistinctCategories(r.Context(), s.Store)
	if err != nil {
		s.storageFailure(w, r, "list categories failed", err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, map[string][]string{"categories": cats})
}

func (s *Server) categoryStats(w http.ResponseWriter, r *http.Request) {
	products, err := s.Store.LoadAll(r.Context())
	if err != nil {
		s.storageFailure(w, r, "category stats failed", err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, map[string]map[string]CategoryStat{
		"category_stats": CategoryStats(products),
	})
}

func (s *Server) checkImages(w http.ResponseWriter, r *http.Request, images []string) bool {
	switch err := ValidateImages(images, s.MaxImageBytes); {
	case err == nil:
		return true
	case errors.Is(err, ErrImageTooLarge):
		kit.WriteError(w, r, http.StatusBadRequest, "Image too large", nil)
	default:
		kit.WriteError(w, r, http.StatusBadRequest, "Invalid image", nil)
	}
	return false
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() { _ = r.Body.Close() }()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, msgInvalidJSON, nil)
		return false
	}
	return true
}

// admin defaults to a policy that rejects every credential.
func (s *Server) admin() auth.Authorizer {
	if s.Admin == nil {
		return auth.AnyOf{}
	}
	return s.Admin
}

func (s *Server) filter() *Filter {
	if s.Filter == nil {
		return NewFilter("en")
	}
	return s.Filter
}

func (s *Server) storageFailure(w http.ResponseWriter, r *http.Request, msg string, err error, fields ...zap.Field) {
	if s.Log != nil {
		s.Log.Error(msg, append(fields, zap.Error(err))...)
	}
	kit.WriteError(w, r, http.StatusInternalServerError, msgServerError, nil)
}

func (s *Server) logWarn(msg string, fields ...zap.Field) {
	if s.Log != nil {
		s.Log.Warn(msg, fields...)
	}
}
