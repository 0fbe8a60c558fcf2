package storefront

import (
	"context"
	"maps"
	"net/url"
	"slices"
	"time"

	"Storefront/internal/catalog"
)

// Catalog reads the catalog API through per-resource caches. Categories
// change rarely and keep three times the product windows, stats twice.
type Catalog struct {
	client *Client

	products   *Cache[[]catalog.Product]
	product    *Cache[catalog.Product]
	categories *Cache[[]string]
	stats      *Cache[map[string]catalog.CategoryStat]
}

func NewCatalog(client *Client, opts Options) *Catalog {
	scaled := func(n time.Duration) Options {
		o := opts
		o.StaleTime *= n
		o.Retention *= n
		return o
	}
	return &Catalog{
		client:     client,
		products:   NewCache[[]catalog.Product](opts),
		product:    NewCache[catalog.Product](opts),
		categories: NewCache[[]string](scaled(3)),
		stats:      NewCache[map[string]catalog.CategoryStat](scaled(2)),
	}
}

// Products returns a copy, so callers may sort or edit it without touching
// the cache. The other read methods do the same.
func (c *Catalog) Products(ctx context.Context, q catalog.Query) ([]catalog.Product, error) {
	products, err := c.products.GetOrFetch(ctx, Key(ProductsPath, q.Values()), func(ctx context.Context) ([]catalog.Product, error) {
		return c.client.ListProducts(ctx, q)
	})
	if err != nil {
		return nil, err
	}
	out := make([]catalog.Product, len(products))
	for i, p := range products {
		out[i] = cloneProduct(p)
	}
	return out, nil
}

func (c *Catalog) Product(ctx context.Context, id string) (catalog.Product, error) {
	p, err := c.product.GetOrFetch(ctx, Key(ProductsPath+"/"+url.PathEscape(id), nil), func(ctx context.Context) (catalog.Product, error) {
		return c.client.GetProduct(ctx, id)
	})
	if err != nil {
		return catalog.Product{}, err
	}
	return cloneProduct(p), nil
}

func (c *Catalog) Categories(ctx context.Context) ([]string, error) {
	cats, err := c.categories.GetOrFetch(ctx, CategoriesPath, c.client.Categories)
	if err != nil {
		return nil, err
	}
	return slices.Clone(cats), nil
}

func (c *Catalog) CategoryStats(ctx context.Context) (map[string]catalog.CategoryStat, error) {
	stats, err := c.stats.GetOrFetch(ctx, CategoryStatsPath, c.client.CategoryStats)
	if err != nil {
		return nil, err
	}
	return maps.Clone(stats), nil
}

// PrefetchProducts warms the list for q, e.g. the next page a user is
// likely to open.
func (c *Catalog) PrefetchProducts(ctx context.Context, q catalog.Query) error {
	return c.products.Prefetch(ctx, Key(ProductsPath, q.Values()), func(ctx context.Context) ([]catalog.Product, error) {
		return c.client.ListProducts(ctx, q)
	})
}

// InvalidateProducts drops every cached product read after a write.
func (c *Catalog) InvalidateProducts() {
	c.products.Purge()
	c.product.Purge()
	c.categories.Purge()
	c.stats.Purge()
}

func cloneProduct(p catalog.Product) catalog.Product {
	p.Images = slices.Clone(p.Images)
	return p
}
