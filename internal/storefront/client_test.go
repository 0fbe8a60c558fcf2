package storefront

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"Storefront/internal/auth"
	"Storefront/internal/catalog"
)

var noRetry = RetryPolicy{}

func newCatalogServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()

	store := catalog.NewMemStore(
		catalog.Product{ID: "1", Name: "Phone", Price: 19999, Category: "Electronics", Images: []string{}},
		catalog.Product{ID: "2", Name: "Mug", Price: 450, Category: "Kitchen", Images: []string{}},
		catalog.Product{ID: "3", Name: "Lamp", Price: 1200, Category: "Electronics", Images: []string{}},
	)
	s := &catalog.Server{
		Store:  store,
		Filter: catalog.NewFilter("en"),
		Admin:  auth.StaticToken{Token: "admin"},
		Log:    zap.NewNop(),
	}
	h := catalog.NewHandler(s, catalog.HTTPDeps{Log: zap.NewNop(), Service: "catalog"})

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestClient(baseURL string) *Client {
	c := NewClient(baseURL + "/")
	c.Retry = noRetry
	return c
}

func TestClient_ListProducts(t *testing.T) {
	ts := newCatalogServer(t, nil)
	c := newTestClient(ts.URL)

	all, err := c.ListProducts(context.Background(), catalog.Query{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len=%d, want 3", len(all))
	}

	got, err := c.ListProducts(context.Background(), catalog.Query{Category: "Electronics", SortBy: catalog.SortPriceLow})
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "3" || got[1].ID != "1" {
		t.Fatalf("got %+v, want ids [3 1]", got)
	}

	none, err := c.ListProducts(context.Background(), catalog.Query{Search: "nothing-matches"})
	if err != nil {
		t.Fatalf("empty list: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Fatalf("empty result=%#v, want non-nil empty slice", none)
	}
}

func TestClient_GetProduct(t *testing.T) {
	ts := newCatalogServer(t, nil)
	c := newTestClient(ts.URL)

	p, err := c.GetProduct(context.Background(), "2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Name != "Mug" || p.Price != 450 {
		t.Fatalf("got %+v", p)
	}

	_, err = c.GetProduct(context.Background(), "99")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Message != "Product not found" {
		t.Fatalf("err=%#v, want upstream message", err)
	}
}

func TestClient_CategoriesAndStats(t *testing.T) {
	ts := newCatalogServer(t, nil)
	c := newTestClient(ts.URL)

	cats, err := c.Categories(context.Background())
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(cats) != 2 || cats[0] != "Electronics" || cats[1] != "Kitchen" {
		t.Fatalf("categories=%v", cats)
	}

	stats, err := c.CategoryStats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	el := stats["Electronics"]
	if el.Count != 2 || el.MinPrice != 1200 || el.MaxPrice != 19999 || el.AvgPrice != 10599.5 {
		t.Fatalf("electronics stats=%+v", el)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
	}))
	t.Cleanup(ts.Close)

	c := NewClient(ts.URL)
	c.Retry = RetryPolicy{Attempts: 2, Base: time.Millisecond, Max: 5 * time.Millisecond}

	_, err := c.Categories(context.Background())
	if !errors.Is(err, ErrBadStatus) {
		t.Fatalf("err=%v, want ErrBadStatus", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("hits=%d, want 3", hits.Load())
	}
}

func TestClient_NotFoundIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	ts := newCatalogServer(t, &hits)

	c := NewClient(ts.URL)
	c.Retry = RetryPolicy{Attempts: 3, Base: time.Millisecond}

	if _, err := c.GetProduct(context.Background(), "404"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("hits=%d, want 1", hits.Load())
	}
}

func TestClient_Unavailable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	base := ts.URL
	ts.Close()

	c := newTestClient(base)
	if _, err := c.Categories(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err=%v, want ErrUnavailable", err)
	}
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := DefaultRetry
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second, 30 * time.Second}
	for i, w := range want {
		if got := p.Delay(i); got != w {
			t.Fatalf("Delay(%d)=%v, want %v", i, got, w)
		}
	}
}

func TestRetryPolicy_StopsOnContextCancel(t *testing.T) {
	p := RetryPolicy{Attempts: 5, Base: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, func(context.Context) error {
			calls++
			return errors.New("flaky")
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	err := <-done
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want canceled", err)
	}
	if calls != 1 {
		t.Fatalf("calls=%d, want 1", calls)
	}
}

func TestKey_SortsParams(t *testing.T) {
	a := Key(ProductsPath, url.Values{"sort_by": {"price_low"}, "category": {"A"}})
	b := Key(ProductsPath, catalog.Query{Category: "A", SortBy: catalog.SortPriceLow}.Values())
	if a != b || a != "/api/products?category=A&sort_by=price_low" {
		t.Fatalf("keys %q / %q", a, b)
	}
	if got := Key(CategoriesPath, nil); got != CategoriesPath {
		t.Fatalf("bare key=%q", got)
	}
}

func TestCatalog_DeduplicatesReads(t *testing.T) {
	var hits atomic.Int32
	ts := newCatalogServer(t, &hits)

	cat := NewCatalog(newTestClient(ts.URL), Options{StaleTime: time.Minute, Retention: 2 * time.Minute})
	q := catalog.Query{Category: "Electronics"}

	for i := 0; i < 3; i++ {
		got, err := cat.Products(context.Background(), q)
		if err != nil || len(got) != 2 {
			t.Fatalf("products: len=%d err=%v", len(got), err)
		}
	}
	if _, err := cat.Product(context.Background(), "1"); err != nil {
		t.Fatalf("product: %v", err)
	}
	if _, err := cat.Product(context.Background(), "1"); err != nil {
		t.Fatalf("product again: %v", err)
	}
	if hits.Load() != 2 {
		t.Fatalf("hits=%d, want 2", hits.Load())
	}

	if err := cat.PrefetchProducts(context.Background(), catalog.Query{SortBy: catalog.SortName}); err != nil {
		t.Fatalf("prefetch: %v", err)
	}
	if _, err := cat.Products(context.Background(), catalog.Query{SortBy: catalog.SortName}); err != nil {
		t.Fatalf("prefetched products: %v", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("hits=%d, want 3 after prefetch", hits.Load())
	}

	cat.InvalidateProducts()
	if _, err := cat.Products(context.Background(), q); err != nil {
		t.Fatalf("products after invalidate: %v", err)
	}
	if hits.Load() != 4 {
		t.Fatalf("hits=%d, want 4 after invalidate", hits.Load())
	}
}

func TestCatalog_ReturnsCopies(t *testing.T) {
	ts := newCatalogServer(t, nil)
	cat := NewCatalog(newTestClient(ts.URL), Options{StaleTime: time.Minute, Retention: 2 * time.Minute})
	ctx := context.Background()

	products, err := cat.Products(ctx, catalog.Query{})
	if err != nil {
		t.Fatalf("products: %v", err)
	}
	products[0].Name = "mutated"
	products[0], products[1] = products[1], products[0]

	cats, _ := cat.Categories(ctx)
	cats[0] = "mutated"

	stats, _ := cat.CategoryStats(ctx)
	delete(stats, "Kitchen")

	p, _ := cat.Product(ctx, "1")
	p.Images = append(p.Images, "x")

	again, _ := cat.Products(ctx, catalog.Query{})
	if again[0].ID != "1" || again[0].Name != "Phone" {
		t.Fatalf("cached products changed: %+v", again[0])
	}
	if cats, _ := cat.Categories(ctx); cats[0] != "Electronics" {
		t.Fatalf("cached categories changed: %v", cats)
	}
	if stats, _ := cat.CategoryStats(ctx); len(stats) != 2 {
		t.Fatalf("cached stats changed: %v", stats)
	}
	if p, _ := cat.Product(ctx, "1"); len(p.Images) != 0 {
		t.Fatalf("cached product changed: %+v", p)
	}
}
