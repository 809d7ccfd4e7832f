package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"
)

// Fingerprint hashes the parts joined by "||". The same parts always give
// the same key; any change to a part changes it.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte("||"))
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// LRU is a TTL cache with least-recently-used eviction. Values are cloned on
// the way in and out so callers never share memory with a cached entry.
//
// Safe for concurrent use.
type LRU[V any] struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List
	ttl     time.Duration
	maxSize int
	clone   func(V) V
	now     func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// New creates a cache. ttl <= 0 means entries never expire; maxSize <= 0
// defaults to 1024. clone may be nil for value types without shared state.
func New[V any](ttl time.Duration, maxSize int, clone func(V) V) *LRU[V] {
	if maxSize <= 0 {
		maxSize = 1024
	}
	if clone == nil {
		clone = func(v V) V { return v }
	}
	return &LRU[V]{
		entries: make(map[string]*list.Element),
		lru:     list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		clone:   clone,
		now:     time.Now,
	}
}

// Get returns a copy of the value for key if present and not expired.
func (c *LRU[V]) Get(key string) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return zero, false
	}
	e := elem.Value.(*entry[V])
	if c.ttl > 0 && c.now().After(e.expiresAt) {
		c.removeElement(elem)
		c.misses.Add(1)
		return zero, false
	}
	c.lru.MoveToFront(elem)
	c.hits.Add(1)
	return c.clone(e.value), true
}

// Set stores a copy of value, evicting the oldest entries at capacity.
func (c *LRU[V]) Set(key string, value V) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if elem, ok := c.entries[key]; ok {
		e := elem.Value.(*entry[V])
		e.value = c.clone(value)
		e.expiresAt = expires
		c.lru.MoveToFront(elem)
		return
	}
	for c.lru.Len() >= c.maxSize {
		c.removeElement(c.lru.Back())
	}
	c.entries[key] = c.lru.PushFront(&entry[V]{key: key, value: c.clone(value), expiresAt: expires})
}

// Delete drops key if present.
func (c *LRU[V]) Delete(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.removeElement(elem)
	}
}

// Purge drops every entry. Hit and miss counters are kept.
func (c *LRU[V]) Purge() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.lru.Init()
}

// Len is the number of stored entries, expired ones included until touched.
func (c *LRU[V]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *LRU[V]) Hits() int64   { return c.hits.Load() }
func (c *LRU[V]) Misses() int64 { return c.misses.Load() }

// HitRate is hits over lookups, 0 before the first lookup.
func (c *LRU[V]) HitRate() float64 {
	h, m := c.hits.Load(), c.misses.Load()
	if h+m == 0 {
		return 0
	}
	return float64(h) / float64(h+m)
}

// must hold mu
func (c *LRU[V]) removeElement(elem *list.Element) {
	if elem == nil {
		return
	}
	e := elem.Value.(*entry[V])
	delete(c.entries, e.key)
	c.lru.Remove(elem)
}
