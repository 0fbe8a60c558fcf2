package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"Storefront/pkg/kit"
)

const RoleAdmin = "admin"

var ErrForbidden = errors.New("admin token required")

// Principal is whoever passed an Authorizer.
type Principal struct {
	ID   string
	Role string
}

// Authorizer decides whether a bearer credential carries the admin capability.
// It knows nothing about HTTP; RequireAdmin adapts it to a middleware.
type Authorizer interface {
	AuthorizeAdmin(ctx context.Context, token string) (Principal, error)
}

// StaticToken accepts one shared secret.
type StaticToken struct {
	Token string
}

func (s StaticToken) AuthorizeAdmin(_ context.Context, token string) (Principal, error) {
	if s.Token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.Token)) != 1 {
		return Principal{}, ErrForbidden
	}
	return Principal{ID: "static", Role: RoleAdmin}, nil
}

// JWTRole accepts a signed token whose role claim is admin.
type JWTRole struct {
	Maker *TokenMaker
}

func (j JWTRole) AuthorizeAdmin(_ context.Context, token string) (Principal, error) {
	if j.Maker == nil {
		return Principal{}, ErrForbidden
	}
	claims, err := j.Maker.Parse(token)
	if err != nil || claims.Role != RoleAdmin {
		return Principal{}, ErrForbidden
	}
	return Principal{ID: claims.UserID, Role: claims.Role}, nil
}

// AnyOf passes when at least one policy passes.
type AnyOf []Authorizer

func (a AnyOf) AuthorizeAdmin(ctx context.Context, token string) (Principal, error) {
	for _, p := range a {
		if pr, err := p.AuthorizeAdmin(ctx, token); err == nil {
			return pr, nil
		}
	}
	return Principal{}, ErrForbidden
}

type ctxKey string

const principalKey ctxKey = "principal"

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// RequireAdmin rejects requests without an admin bearer credential with 403.
func RequireAdmin(a Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := kit.BearerToken(r)
			if !ok {
				kit.WriteError(w, r, http.StatusForbidden, "Admin token required", nil)
				return
			}

			p, err := a.AuthorizeAdmin(r.Context(), token)
			if err != nil {
				kit.WriteError(w, r, http.StatusForbidden, "Admin token required", nil)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
