package storefront

import "net/url"

const (
	ProductsPath      = "/api/products"
	CategoriesPath    = "/api/categories"
	CategoryStatsPath = "/api/categories/stats"
)

// Key builds a cache key from an endpoint and its query parameters.
// Parameters are sorted by name, so equal queries share one entry.
func Key(endpoint string, params url.Values) string {
	if len(params) == 0 {
		return endpoint
	}
	return endpoint + "?" + params.Encode()
}
