//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"slices"
	"testing"
	"time"
)

var (
	baseURL    = getenv("E2E_BASE_URL", "http://localhost:8001")
	adminToken = getenv("E2E_ADMIN_TOKEN", "admin")
)

func TestCatalog_E2E(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	waitReady(t, ctx, baseURL+"/readyz")

	var health map[string]string
	doJSON(t, http.MethodGet, baseURL+"/health", nil, &health, 200)
	if health["status"] != "healthy" {
		t.Fatalf("health=%v", health)
	}

	doJSON(t, http.MethodPost, baseURL+"/api/products", map[string]any{"name": "x"}, nil, 403)

	name := fmt.Sprintf("e2e_%d_%d", time.Now().Unix(), rand.Intn(100000))
	var created map[string]any
	doJSONAuth(t, http.MethodPost, baseURL+"/api/products", adminToken, map[string]any{
		"name":        name,
		"description": "integration product",
		"price":       1234.5,
		"category":    "E2E",
		"stock":       3,
	}, &created, 201)

	pid, _ := created["id"].(string)
	if pid == "" {
		t.Fatalf("product id missing: %#v", created)
	}

	var found []map[string]any
	doJSON(t, http.MethodGet, baseURL+"/api/products?category=E2E&search="+name, nil, &found, 200)
	if len(found) != 1 || found[0]["id"] != pid {
		t.Fatalf("search for %s: %#v", name, found)
	}

	var cats struct {
		Categories []string `json:"categories"`
	}
	doJSON(t, http.MethodGet, baseURL+"/api/categories", nil, &cats, 200)
	if !slices.Contains(cats.Categories, "E2E") {
		t.Fatalf("categories=%v", cats.Categories)
	}

	doJSONAuth(t, http.MethodPut, baseURL+"/api/products/"+pid, adminToken, map[string]any{"stock": 7}, nil, 200)

	if os.Getenv("E2E_RESTART_CATALOG") == "1" {
		restartService(t, ctx, "catalog")
		waitReady(t, ctx, baseURL+"/readyz")
	}

	var got map[string]any
	doJSON(t, http.MethodGet, baseURL+"/api/products/"+pid, nil, &got, 200)
	if got["stock"] != float64(7) {
		t.Fatalf("stock after update=%v", got["stock"])
	}

	doJSONAuth(t, http.MethodDelete, baseURL+"/api/products/"+pid, adminToken, nil, nil, 200)
	doJSON(t, http.MethodGet, baseURL+"/api/products/"+pid, nil, nil, 404)
}

func waitReady(t *testing.T, ctx context.Context, url string) {
	t.Helper()
	client := &http.Client{Timeout: 2 * time.Second}

	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		resp, err := client.Do(req)
		if err == nil && resp != nil && resp.StatusCode == 200 {
			_ = resp.Body.Close()
			return
		}
		if resp != nil {
			_ = resp.Body.Close()
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("service not ready: %s", url)
}

func doJSON(t *testing.T, method, url string, body any, out any, want int) {
	t.Helper()
	doJSONAuth(t, method, url, "", body, out, want)
}

func doJSONAuth(t *testing.T, method, url, token string, body any, out any, want int) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		t.Fatalf("%s %s: status=%d want=%d", method, url, resp.StatusCode, want)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
