package auth

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type User struct {
	ID    string
	Email string
	Hash  []byte
	Role  string
}

// UserStore holds the credentials allowed to mint admin tokens.
type UserStore interface {
	Create(ctx context.Context, email, password, role, id string) error
	Verify(ctx context.Context, email, password string) (User, error)
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func normalizePassword(password string) string { return strings.TrimSpace(password) }
