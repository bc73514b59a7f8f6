package cache

import (
	"sync"
	"time"
)

type entry struct {
	v      any
	exp    time.Time
	access time.Time
}

// TTLCache is an in-process cache with per-entry expiry. When full, expired
// entries are purged first and then the least recently read one is evicted.
type TTLCache struct {
	mu      sync.RWMutex
	m       map[string]*entry
	maxSize int
	now     func() time.Time
}

type TTLOption func(*TTLCache)

// WithMaxEntries bounds the cache size; 0 means unbounded.
func WithMaxEntries(n int) TTLOption {
	return func(c *TTLCache) { c.maxSize = n }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) TTLOption {
	return func(c *TTLCache) { c.now = now }
}

func NewTTLCache(opts ...TTLOption) *TTLCache {
	c := &TTLCache{m: make(map[string]*entry), maxSize: 1000, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *TTLCache) Get(key string) (any, bool) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok {
		return nil, false
	}
	if !e.exp.IsZero() && now.After(e.exp) {
		delete(c.m, key)
		return nil, false
	}
	e.access = now
	return e.v, true
}

// Set stores v; ttl <= 0 keeps it until evicted.
func (c *TTLCache) Set(key string, v any, ttl time.Duration) {
	now := c.now()
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.m[key]; !exists && c.maxSize > 0 && len(c.m) >= c.maxSize {
		c.evictLocked(now)
	}
	c.m[key] = &entry{v: v, exp: exp, access: now}
}

// Len returns the number of stored entries, expired ones included.
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

func (c *TTLCache) evictLocked(now time.Time) {
	for k, e := range c.m {
		if !e.exp.IsZero() && now.After(e.exp) {
			delete(c.m, k)
		}
	}
	if len(c.m) < c.maxSize {
		return
	}
	var oldest string
	var oldestAt time.Time
	for k, e := range c.m {
		if oldest == "" || e.access.Before(oldestAt) {
			oldest, oldestAt = k, e.access
		}
	}
	delete(c.m, oldest)
}

func (c *TTLCache) GetBytes(key string) ([]byte, bool, error) {
	v, ok := c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	return b, ok, nil
}

func (c *TTLCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	c.Set(key, value, ttl)
	return nil
}
