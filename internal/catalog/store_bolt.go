package catalog

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var productsBucket = []byte("products")

// BoltStore keeps one record per key in a bbolt bucket. Keys are the
// bucket's big-endian sequence number, so cursor order is insertion order.
// bbolt allows a single write transaction at a time.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: mkdir %s: %w", ErrStorage, filepath.Dir(path), err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrStorage, path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(productsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	return &BoltStore{db: db, now: time.Now}, nil
}

func (s *BoltStore) Close() error { return s.db.Close() }

func (s *BoltStore) Ping(context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(productsBucket) == nil {
			return fmt.Errorf("%w: bucket missing", ErrStorage)
		}
		return nil
	})
}

func (s *BoltStore) LoadAll(context.Context) ([]Product, error) {
	var out []Product
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		out, err = scanAll(tx.Bucket(productsBucket))
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) Get(_ context.Context, id string) (Product, error) {
	var (
		p     Product
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		_, p, found, err = findByID(tx.Bucket(productsBucket), id)
		return err
	})
	if err != nil {
		return Product{}, err
	}
	if !found {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (s *BoltStore) Append(_ context.Context, p Product) (Product, error) {
	var stored Product
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(productsBucket)

		existing, err := scanAll(b)
		if err != nil {
			return err
		}

		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStorage, err)
		}

		stored = prepareNew(p, nextID(existing), s.now())
		return putProduct(b, seqKey(seq), stored)
	})
	if err != nil {
		return Product{}, err
	}
	return stored, nil
}

func (s *BoltStore) Update(_ context.Context, id string, patch func(*Product)) (Product, error) {
	var updated Product
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(productsBucket)

		key, p, found, err := findByID(b, id)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}

		patch(&p)
		p.ID = id
		updated = p
		return putProduct(b, key, p)
	})
	if err != nil {
		return Product{}, err
	}
	return updated, nil
}

func (s *BoltStore) Delete(_ context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(productsBucket)

		key, _, found, err := findByID(b, id)
		if err != nil {
			return err
		}
		if !found {
			return ErrNotFound
		}
		if err := b.Delete(key); err != nil {
			return fmt.Errorf("%w: %w", ErrStorage, err)
		}
		return nil
	})
}

func scanAll(b *bolt.Bucket) ([]Product, error) {
	out := make([]Product, 0, b.Stats().KeyN)
	err := b.ForEach(func(k, v []byte) error {
		var p Product
		if err := json.Unmarshal(v, &p); err != nil {
			return fmt.Errorf("%w: decode key %x: %w", ErrStorage, k, err)
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

func findByID(b *bolt.Bucket, id string) ([]byte, Product, bool, error) {
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var p Product
		if err := json.Unmarshal(v, &p); err != nil {
			return nil, Product{}, false, fmt.Errorf("%w: decode key %x: %w", ErrStorage, k, err)
		}
		if p.ID == id {
			key := append([]byte(nil), k...)
			return key, p, true, nil
		}
	}
	return nil, Product{}, false, nil
}

func putProduct(b *bolt.Bucket, key []byte, p Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrStorage, err)
	}
	if err := b.Put(key, data); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
