package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"Storefront/pkg/kit"
)

const (
	maxBodyBytes     = 1 << 20
	loginLimitPerMin = 5
	limitWindow      = 60 * time.Second
)

type Server struct {
	Log      *zap.Logger
	Store    UserStore
	JWT      *TokenMaker
	TokenTTL time.Duration

	// TrustProxy keys the login limiter on X-Forwarded-For.
	TrustProxy bool
}

// SeedAdmin registers the configured admin account, if any.
func (s *Server) SeedAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	return s.Store.Create(ctx, email, password, RoleAdmin, "u_"+uuid.NewString())
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	loginLimiter := kit.NewIPRateLimiter(loginLimitPerMin, limitWindow)
	loginLimiter.TrustForwardedFor = s.TrustProxy
	r.With(loginLimiter.Middleware).Post("/login", s.handleLogin)

	return r
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResp struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req loginReq
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "Invalid JSON", nil)
		return
	}

	req.Email = normalizeEmail(req.Email)
	req.Password = normalizePassword(req.Password)
	if req.Email == "" || req.Password == "" {
		kit.WriteError(w, r, http.StatusBadRequest, "Email and password required", nil)
		return
	}

	u, err := s.Store.Verify(r.Context(), req.Email, req.Password)
	if err != nil {
		kit.WriteError(w, r, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	ttl := s.TokenTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	tok, err := s.JWT.New(u.ID, u.Email, u.Role, ttl)
	if err != nil {
		if s.Log != nil {
			s.Log.Error("token issue", zap.Error(err))
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "Internal server error", nil)
		return
	}

	kit.WriteJSON(w, http.StatusOK, loginResp{
		AccessToken: tok,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
	})
}
