// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache holds ranked result lists keyed by request fingerprint.
// Expiry is an explicit stored timestamp checked on read; a background
// sweep additionally evicts expired entries. The cache is never
// correctness-critical: a disabled or failing store degrades to always-miss.
package cache

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/searchhub/pkg/types"
)

type entry struct {
	results   []types.SearchResult
	createdAt time.Time
	expiresAt time.Time
}

// Cache is a TTL-keyed in-memory result cache with optional persistence.
// It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry

	store *Store // nil when persistence is off
	log   *zap.Logger

	stop chan struct{}
	once sync.Once

	// now is swapped by tests to drive expiry.
	now func() time.Time
}

// New builds a cache. store may be nil for memory-only operation. A
// positive sweepInterval starts a background eviction goroutine; call Close
// to stop it.
func New(store *Store, sweepInterval time.Duration, log *zap.Logger) *Cache {
	c := &Cache{
		entries: make(map[string]entry),
		store:   store,
		log:     log,
		stop:    make(chan struct{}),
		now:     time.Now,
	}
	if sweepInterval > 0 {
		go c.sweepLoop(sweepInterval)
	}
	return c
}

// Get returns the cached result list for the fingerprint. An expired entry
// is treated as a miss and evicted lazily. The returned slice is a copy;
// callers may not mutate cache internals.
func (c *Cache) Get(fingerprint string) ([]types.SearchResult, bool) {
	c.mu.Lock()
	e, ok := c.entries[fingerprint]
	if ok && c.now().After(e.expiresAt) {
		delete(c.entries, fingerprint)
		ok = false
	}
	c.mu.Unlock()

	if ok {
		return copyResults(e.results), true
	}

	if c.store == nil {
		return nil, false
	}
	results, expiresAt, found, err := c.store.Get(fingerprint)
	if err != nil {
		c.log.Warn("cache store read failed, treating as miss", zap.Error(err))
		return nil, false
	}
	if !found || c.now().After(expiresAt) {
		return nil, false
	}
	c.mu.Lock()
	c.entries[fingerprint] = entry{results: results, createdAt: c.now(), expiresAt: expiresAt}
	c.mu.Unlock()
	return copyResults(results), true
}

// Put stores the result list under the fingerprint for ttl. The entry is
// replaced atomically; existing readers keep their copies.
func (c *Cache) Put(fingerprint string, results []types.SearchResult, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	now := c.now()
	e := entry{
		results:   copyResults(results),
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	c.mu.Lock()
	c.entries[fingerprint] = e
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Put(fingerprint, e.results, e.createdAt, e.expiresAt); err != nil {
			c.log.Warn("cache store write failed, entry kept in memory only", zap.Error(err))
		}
	}
}

// Len returns the number of live in-memory entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close stops the background sweep.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	now := c.now()
	c.mu.Lock()
	for fp, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, fp)
		}
	}
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Evict(now); err != nil {
			c.log.Warn("cache store sweep failed", zap.Error(err))
		}
	}
}

func copyResults(in []types.SearchResult) []types.SearchResult {
	out := make([]types.SearchResult, len(in))
	copy(out, in)
	return out
}
