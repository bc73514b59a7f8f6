package cache

import (
	"encoding/json"
	"time"
)

// BytesCache is a minimal cache API storing raw bytes with TTL.
type BytesCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}

// Fetch returns the cached JSON value of key or computes, stores and returns it.
// Cache errors degrade to a miss; compute errors are never cached.
func Fetch[T any](c BytesCache, key string, ttl time.Duration, compute func() (T, error)) (T, bool, error) {
	if c != nil && ttl > 0 {
		if b, ok, err := c.GetBytes(key); err == nil && ok {
			var v T
			if json.Unmarshal(b, &v) == nil {
				return v, true, nil
			}
		}
	}
	v, err := compute()
	if err != nil {
		return v, false, err
	}
	if c != nil && ttl > 0 {
		if b, err := json.Marshal(v); err == nil {
			_ = c.SetBytes(key, b, ttl)
		}
	}
	return v, false, nil
}
