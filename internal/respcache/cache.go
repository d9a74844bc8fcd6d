// Package respcache provides an opt-in, in-process TTL cache for GET
// responses. State lives only for the life of the client instance; nothing
// is persisted.
package respcache

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Cache is a bounded TTL cache keyed by a hash of method and final URL.
// Safe for concurrent use.
type Cache struct {
	entries sync.Map // uint64 -> *entry
	ttl     time.Duration
	maxSize int

	mu    sync.Mutex
	count int64
}

// entry is one cached response with expiry bookkeeping.
type entry struct {
	value     any
	expiresAt time.Time
	createdAt time.Time
}

// New creates a cache holding at most maxSize entries for ttl each.
func New(ttl time.Duration, maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &Cache{ttl: ttl, maxSize: maxSize}
}

// Key hashes a method and URL into a cache key.
func Key(method, url string) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(method)
	_, _ = h.Write([]byte{0}) // separator
	_, _ = h.WriteString(url)
	return h.Sum64()
}

// Get returns the cached value for key if present and unexpired.
func (c *Cache) Get(key uint64) (any, bool) {
	val, ok := c.entries.Load(key)
	if !ok {
		return nil, false
	}
	e := val.(*entry)
	if time.Now().After(e.expiresAt) {
		// LoadAndDelete makes exactly one caller the remover, so the
		// count drops once per entry even when a concurrent Get or a
		// Put sweep races on the same key.
		if _, removed := c.entries.LoadAndDelete(key); removed {
			c.mu.Lock()
			c.count--
			c.mu.Unlock()
		}
		return nil, false
	}
	return e.value, true
}

// Put stores a value under key. When the cache is full it first sweeps
// expired entries, then falls back to evicting the oldest entry.
func (c *Cache) Put(key uint64, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.count >= int64(c.maxSize) {
		now := time.Now()
		evicted := 0
		c.entries.Range(func(k, v any) bool {
			if now.After(v.(*entry).expiresAt) {
				if _, removed := c.entries.LoadAndDelete(k); removed {
					evicted++
				}
			}
			return evicted < 100
		})
		c.count -= int64(evicted)

		if c.count >= int64(c.maxSize) {
			var oldest time.Time
			var oldestKey any
			c.entries.Range(func(k, v any) bool {
				e := v.(*entry)
				if oldest.IsZero() || e.createdAt.Before(oldest) {
					oldest = e.createdAt
					oldestKey = k
				}
				return true
			})
			if oldestKey != nil {
				if _, removed := c.entries.LoadAndDelete(oldestKey); removed {
					c.count--
				}
			}
		}
	}

	c.entries.Store(key, &entry{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
		createdAt: time.Now(),
	})
	c.count++
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int(c.count)
}
