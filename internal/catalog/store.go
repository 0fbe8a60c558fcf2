package catalog

import (
	"context"
	"strconv"
	"time"
)

// Store is the product persistence capability the HTTP layer depends on.
// Implementations keep insertion order and serialize writers, so two
// concurrent Appends never observe the same prior state.
type Store interface {
	LoadAll(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id string) (Product, error)
	Append(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, id string, patch func(*Product)) (Product, error)
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// DistinctCategories returns each category once, in first-seen order.
func DistinctCategories(ctx context.Context, s Store) ([]string, error) {
	products, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(products))
	out := make([]string, 0, len(products))
	for _, p := range products {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out, nil
}

// nextID assigns count+1, stepping past ids that survived a delete.
func nextID(existing []Product) string {
	taken := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		taken[p.ID] = struct{}{}
	}

	n := len(existing) + 1
	for {
		id := strconv.Itoa(n)
		if _, ok := taken[id]; !ok {
			return id
		}
		n++
	}
}

func prepareNew(p Product, id string, now time.Time) Product {
	p = cloneProduct(p)
	p.ID = id
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = NewTimestamp(now)
	}
	return p
}

func indexOf(products []Product, id string) int {
	for i := range products {
		if products[i].ID == id {
			return i
		}
	}
	return -1
}
