package catalog

import (
	"context"
	"sync"
	"time"
)

type MemStore struct {
	mu       sync.RWMutex
	products []Product
	now      func() time.Time
}

// NewMemStore keeps the catalog in process memory; seed is taken as-is.
func NewMemStore(seed ...Product) *MemStore {
	return &MemStore{products: cloneProducts(seed), now: time.Now}
}

func (s *MemStore) Ping(context.Context) error { return nil }

func (s *MemStore) LoadAll(context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneProducts(s.products), nil
}

func (s *MemStore) Get(_ context.Context, id string) (Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := indexOf(s.products, id); i >= 0 {
		return cloneProduct(s.products[i]), nil
	}
	return Product{}, ErrNotFound
}

func (s *MemStore) Append(_ context.Context, p Product) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p = prepareNew(p, nextID(s.products), s.now())
	s.products = append(s.products, p)
	return cloneProduct(p), nil
}

func (s *MemStore) Update(_ context.Context, id string, patch func(*Product)) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.products, id)
	if i < 0 {
		return Product{}, ErrNotFound
	}

	p := cloneProduct(s.products[i])
	patch(&p)
	p.ID = id
	s.products[i] = p
	return cloneProduct(p), nil
}

func (s *MemStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.products, id)
	if i < 0 {
		return ErrNotFound
	}
	s.products = append(s.products[:i], s.products[i+1:]...)
	return nil
}
