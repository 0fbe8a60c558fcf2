package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestStaticToken(t *testing.T) {
	a := StaticToken{Token: "admin"}

	if _, err := a.AuthorizeAdmin(context.Background(), "admin"); err != nil {
		t.Fatalf("expected admin to pass: %v", err)
	}
	for _, tok := range []string{"", "Admin", "admin ", "root"} {
		if _, err := a.AuthorizeAdmin(context.Background(), tok); err != ErrForbidden {
			t.Fatalf("token %q: err=%v", tok, err)
		}
	}

	if _, err := (StaticToken{}).AuthorizeAdmin(context.Background(), ""); err != ErrForbidden {
		t.Fatalf("empty configured token must reject everything")
	}
}

func TestJWTRole(t *testing.T) {
	maker := NewTokenMaker("test-secret")
	a := JWTRole{Maker: maker}

	adminTok, err := maker.New("u1", "a@example.com", RoleAdmin, time.Minute)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	p, err := a.AuthorizeAdmin(context.Background(), adminTok)
	if err != nil {
		t.Fatalf("admin jwt rejected: %v", err)
	}
	if p.ID != "u1" || p.Role != RoleAdmin {
		t.Fatalf("principal=%+v", p)
	}

	userTok, _ := maker.New("u2", "b@example.com", "user", time.Minute)
	if _, err := a.AuthorizeAdmin(context.Background(), userTok); err != ErrForbidden {
		t.Fatalf("non-admin role must be rejected")
	}

	expired, _ := maker.New("u1", "a@example.com", RoleAdmin, -time.Minute)
	if _, err := a.AuthorizeAdmin(context.Background(), expired); err != ErrForbidden {
		t.Fatalf("expired token must be rejected")
	}

	other, _ := NewTokenMaker("other-secret").New("u1", "a@example.com", RoleAdmin, time.Minute)
	if _, err := a.AuthorizeAdmin(context.Background(), other); err != ErrForbidden {
		t.Fatalf("foreign signature must be rejected")
	}
}

func TestRequireAdmin(t *testing.T) {
	policy := AnyOf{StaticToken{Token: "admin"}, JWTRole{Maker: NewTokenMaker("s")}}
	h := RequireAdmin(policy)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok || p.Role != RoleAdmin {
			t.Errorf("principal missing: %+v", p)
		}
		w.WriteHeader(http.StatusCreated)
	}))

	cases := []struct {
		header string
		want   int
	}{
		{"", http.StatusForbidden},
		{"admin", http.StatusForbidden},
		{"Bearer user", http.StatusForbidden},
		{"Bearer admin", http.StatusCreated},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/products", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != tc.want {
			t.Fatalf("header %q: status=%d want=%d", tc.header, rec.Code, tc.want)
		}
		if tc.want == http.StatusForbidden {
			if got := strings.TrimSpace(rec.Body.String()); got != `{"error":"Admin token required"}` {
				t.Fatalf("body=%s", got)
			}
		}
	}
}

func TestLogin(t *testing.T) {
	store := NewMemStore()
	store.cost = bcrypt.MinCost

	maker := NewTokenMaker("login-secret")
	s := &Server{Log: zap.NewNop(), Store: store, JWT: maker, TokenTTL: time.Minute}
	if err := s.SeedAdmin(context.Background(), "Admin@Shop.com ", "password123"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := s.SeedAdmin(context.Background(), "admin@shop.com", "again"); err != ErrEmailExists {
		t.Fatalf("duplicate seed err=%v", err)
	}

	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)

	post := func(body string) *http.Response {
		resp, err := http.Post(ts.URL+"/login", "application/json", bytes.NewBufferString(body))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		return resp
	}

	resp := post(`{"email":"admin@shop.com","password":"wrong"}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password status=%d", resp.StatusCode)
	}

	resp = post(`{"email":"admin@shop.com","password":"password123"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status=%d", resp.StatusCode)
	}

	var lr loginResp
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := (JWTRole{Maker: maker}).AuthorizeAdmin(context.Background(), lr.AccessToken); err != nil {
		t.Fatalf("issued token not accepted as admin: %v", err)
	}
}
