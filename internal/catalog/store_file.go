package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore persists the catalog as one JSON array document. Every write
// rewrites the whole document through a temp file and rename, so readers
// never see a torn file. mu makes the read-modify-write cycle single-writer.
type FileStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Init creates an empty document when none exists yet.
func (s *FileStore) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: stat %s: %w", ErrStorage, s.path, err)
	}
	return s.write([]Product{})
}

func (s *FileStore) Ping(context.Context) error {
	if _, err := os.Stat(s.path); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

func (s *FileStore) LoadAll(context.Context) ([]Product, error) {
	return s.read()
}

func (s *FileStore) Get(ctx context.Context, id string) (Product, error) {
	products, err := s.read()
	if err != nil {
		return Product{}, err
	}
	if i := indexOf(products, id); i >= 0 {
		return products[i], nil
	}
	return Product{}, ErrNotFound
}

func (s *FileStore) Append(_ context.Context, p Product) (Product, error) {
	var stored Product
	err := s.mutate(func(products []Product) ([]Product, error) {
		stored = prepareNew(p, nextID(products), s.now())
		return append(products, stored), nil
	})
	if err != nil {
		return Product{}, err
	}
	return stored, nil
}

func (s *FileStore) Update(_ context.Context, id string, patch func(*Product)) (Product, error) {
	var updated Product
	err := s.mutate(func(products []Product) ([]Product, error) {
		i := indexOf(products, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		patch(&products[i])
		products[i].ID = id
		updated = cloneProduct(products[i])
		return products, nil
	})
	if err != nil {
		return Product{}, err
	}
	return updated, nil
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	return s.mutate(func(products []Product) ([]Product, error) {
		i := indexOf(products, id)
		if i < 0 {
			return nil, ErrNotFound
		}
		return append(products[:i], products[i+1:]...), nil
	})
}

func (s *FileStore) mutate(fn func([]Product) ([]Product, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	products, err := s.read()
	if err != nil {
		return err
	}
	next, err := fn(products)
	if err != nil {
		return err
	}
	return s.write(next)
}

func (s *FileStore) read() ([]Product, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrStorage, s.path, err)
	}

	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrStorage, s.path, err)
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}

func (s *FileStore) write(products []Product) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	data, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrStorage, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: write %s: %w", ErrStorage, tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: sync %s: %w", ErrStorage, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: rename: %w", ErrStorage, err)
	}
	return nil
}
