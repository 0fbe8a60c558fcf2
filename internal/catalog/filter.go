package catalog

import (
	"cmp"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type SortOrder string

const (
	SortNone      SortOrder = ""
	SortName      SortOrder = "name"
	SortPriceLow  SortOrder = "price_low"
	SortPriceHigh SortOrder = "price_high"
	SortNewest    SortOrder = "newest"
	SortOldest    SortOrder = "oldest"
)

// PriceBand is one of the fixed storefront price buckets.
type PriceBand string

const (
	BandAll         PriceBand = ""
	BandUnder1000   PriceBand = "under_1000"
	Band1000To5000  PriceBand = "1000_5000"
	Band5000To20000 PriceBand = "5000_20000"
	BandOver20000   PriceBand = "over_20000"
)

// Query is the listing filter shared by the API and its clients.
// Zero value matches everything and keeps stored order.
type Query struct {
	Category string
	Search   string
	MinPrice *float64
	MaxPrice *float64
	Band     PriceBand
	SortBy   SortOrder
}

// ParseQuery reads listing parameters. Unparseable prices are ignored.
func ParseQuery(v url.Values) Query {
	return Query{
		Category: v.Get("category"),
		Search:   strings.TrimSpace(v.Get("search")),
		MinPrice: parsePrice(v.Get("min_price")),
		MaxPrice: parsePrice(v.Get("max_price")),
		Band:     PriceBand(v.Get("price_range")),
		SortBy:   SortOrder(v.Get("sort_by")),
	}
}

// Values is the inverse of ParseQuery; empty fields are omitted.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.MinPrice != nil {
		v.Set("min_price", strconv.FormatFloat(*q.MinPrice, 'f', -1, 64))
	}
	if q.MaxPrice != nil {
		v.Set("max_price", strconv.FormatFloat(*q.MaxPrice, 'f', -1, 64))
	}
	if q.Band != BandAll {
		v.Set("price_range", string(q.Band))
	}
	if q.SortBy != SortNone {
		v.Set("sort_by", string(q.SortBy))
	}
	return v
}

func parsePrice(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Filter applies a Query to a product slice. Name ordering uses the
// collation rules of the configured locale.
type Filter struct {
	tag language.Tag
}

func NewFilter(locale string) *Filter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Filter{tag: tag}
}

// Apply returns a new slice; the input is never modified. Predicates are
// ANDed, then a stable sort runs last.
func (f *Filter) Apply(products []Product, q Query) []Product {
	match := f.matcher(q)

	out := make([]Product, 0, len(products))
	for _, p := range products {
		if match(p) {
			out = append(out, p)
		}
	}

	f.sort(out, q.SortBy)
	return out
}

func (f *Filter) matcher(q Query) func(Product) bool {
	// cases.Caser is stateful, so each Apply gets its own.
	fold := cases.Fold()
	term := ""
	if q.Search != "" {
		term = fold.String(q.Search)
	}

	return func(p Product) bool {
		if q.Category != "" && p.Category != q.Category {
			return false
		}
		if !inBand(p.Price, q.Band) {
			return false
		}
		if q.MinPrice != nil && p.Price < *q.MinPrice {
			return false
		}
		if q.MaxPrice != nil && p.Price > *q.MaxPrice {
			return false
		}
		if term != "" &&
			!strings.Contains(fold.String(p.Name), term) &&
			!strings.Contains(fold.String(p.Description), term) &&
			!strings.Contains(fold.String(p.Category), term) {
			return false
		}
		return true
	}
}

func inBand(price float64, band PriceBand) bool {
	switch band {
	case BandUnder1000:
		return price < 1000
	case Band1000To5000:
		return price >= 1000 && price <= 5000
	case Band5000To20000:
		return price >= 5000 && price <= 20000
	case BandOver20000:
		return price > 20000
	default:
		return true
	}
}

func (f *Filter) sort(products []Product, by SortOrder) {
	switch by {
	case SortName:
		col := collate.New(f.tag)
		slices.SortStableFunc(products, func(a, b Product) int {
			return col.CompareString(a.Name, b.Name)
		})
	case SortPriceLow:
		slices.SortStableFunc(products, func(a, b Product) int {
			return cmp.Compare(a.Price, b.Price)
		})
	case SortPriceHigh:
		slices.SortStableFunc(products, func(a, b Product) int {
			return cmp.Compare(b.Price, a.Price)
		})
	case SortNewest:
		slices.SortStableFunc(products, func(a, b Product) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})
	case SortOldest:
		slices.SortStableFunc(products, func(a, b Product) int {
			return a.CreatedAt.Compare(b.CreatedAt)
		})
	}
}
