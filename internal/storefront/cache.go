package storefront

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Loader fetches a fresh value for a cache key.
type Loader[V any] func(ctx context.Context) (V, error)

type Options struct {
	StaleTime time.Duration
	Retention time.Duration
	Log       *zap.Logger
}

type entry[V any] struct {
	value     V
	fetchedAt time.Time
	ttl       time.Duration
}

// Cache is a keyed stale-while-revalidate cache. A fresh entry is served
// as is; a stale one is served while a single background refetch runs;
// an entry older than the retention window is dropped and refetched.
// Concurrent misses for one key share a single load. Failed loads are
// never cached. A load that started before Invalidate or Purge is not
// stored.
//
// Values are handed to every caller as is; callers must not mutate them.
type Cache[V any] struct {
	staleTime time.Duration
	retention time.Duration
	log       *zap.Logger
	now       func() time.Time

	mu         sync.Mutex
	entries    map[string]*entry[V]
	refreshing map[string]struct{}
	inflight   map[string]int
	// gen is bumped by Purge, keyGen[key] by Invalidate.
	gen    uint64
	keyGen map[string]uint64

	group singleflight.Group
	wg    sync.WaitGroup
}

func NewCache[V any](opts Options) *Cache[V] {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache[V]{
		staleTime:  opts.StaleTime,
		retention:  opts.Retention,
		log:        log,
		now:        time.Now,
		entries:    make(map[string]*entry[V]),
		refreshing: make(map[string]struct{}),
		inflight:   make(map[string]int),
		keyGen:     make(map[string]uint64),
	}
}

func (c *Cache[V]) GetOrFetch(ctx context.Context, key string, load Loader[V]) (V, error) {
	return c.GetOrFetchTTL(ctx, key, load, c.staleTime)
}

// GetOrFetchTTL is GetOrFetch with a per-key freshness window.
func (c *Cache[V]) GetOrFetchTTL(ctx context.Context, key string, load Loader[V], ttl time.Duration) (V, error) {
	e, ok := c.lookup(key)
	if ok {
		if c.now().Sub(e.fetchedAt) < e.ttl {
			return e.value, nil
		}
		c.refresh(key, load, ttl)
		return e.value, nil
	}
	return c.fetch(ctx, key, load, ttl)
}

// Prefetch warms key unless a fresh entry already exists.
func (c *Cache[V]) Prefetch(ctx context.Context, key string, load Loader[V]) error {
	if e, ok := c.lookup(key); ok && c.now().Sub(e.fetchedAt) < e.ttl {
		return nil
	}
	_, err := c.fetch(ctx, key, load, c.staleTime)
	return err
}

// Invalidate drops key. A load for key already in flight is detached so
// the next caller starts a fresh one.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	c.keyGen[key]++
	if c.inflight[key] > 0 {
		c.group.Forget(key)
	}
}

func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.entries)
	clear(c.keyGen)
	c.gen++
	for key := range c.inflight {
		c.group.Forget(key)
	}
}

func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Wait blocks until in-flight background refreshes finish.
func (c *Cache[V]) Wait() { c.wg.Wait() }

func (c *Cache[V]) lookup(key string) (*entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	keep := max(c.retention, e.ttl)
	if c.now().Sub(e.fetchedAt) >= keep {
		delete(c.entries, key)
		return nil, false
	}
	return e, true
}

func (c *Cache[V]) fetch(ctx context.Context, key string, load Loader[V], ttl time.Duration) (V, error) {
	// The shared load outlives any one caller so joined callers are not
	// failed by someone else's cancellation.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		gen, keyGen := c.begin(key)
		defer c.finish(key)

		v, err := load(shared)
		if err != nil {
			return nil, err
		}
		c.store(key, v, ttl, gen, keyGen)
		return v, nil
	})

	var zero V
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}

func (c *Cache[V]) refresh(key string, load Loader[V], ttl time.Duration) {
	c.mu.Lock()
	if _, busy := c.refreshing[key]; busy {
		c.mu.Unlock()
		return
	}
	c.refreshing[key] = struct{}{}
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			delete(c.refreshing, key)
			c.mu.Unlock()
		}()

		if _, err := c.fetch(context.Background(), key, load, ttl); err != nil {
			c.log.Warn("cache refresh failed", zap.String("key", key), zap.Error(err))
		}
	}()
}

func (c *Cache[V]) begin(key string) (gen, keyGen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.inflight[key]++
	return c.gen, c.keyGen[key]
}

func (c *Cache[V]) finish(key string) {
	c.mu.Lock()
	if c.inflight[key]--; c.inflight[key] <= 0 {
		delete(c.inflight, key)
	}
	c.mu.Unlock()
}

// store keeps v unless key was invalidated or the cache purged after the
// load began.
func (c *Cache[V]) store(key string, v V, ttl time.Duration, gen, keyGen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen || c.keyGen[key] != keyGen {
		return
	}
	c.entries[key] = &entry[V]{value: v, fetchedAt: c.now(), ttl: ttl}
}
