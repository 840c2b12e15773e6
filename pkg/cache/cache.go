package cache

import (
	"context"
	"encoding/json"
	"time"
)

// DefaultTTL bounds entitlement staleness when the caller does not pick one.
const DefaultTTL = 300 * time.Second

// Cache is a best-effort key-value store. Implementations never return
// transport errors: failures surface as a miss or as false.
type Cache interface {
	// Get returns the raw value and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores value with ttl. A non-positive ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool
	// Delete removes key. Deleting an absent key succeeds.
	Delete(ctx context.Context, key string) bool
	// DeletePattern removes every key matching a glob pattern.
	DeletePattern(ctx context.Context, pattern string) bool
	// Increment atomically adds one and returns the new value.
	Increment(ctx context.Context, key string) (int64, bool)
	// Expire sets a ttl on an existing key. Returns false when absent.
	Expire(ctx context.Context, key string, ttl time.Duration) bool
}

// GetJSON reads key and decodes it into T. A decode failure is a miss.
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, bool) {
	var v T
	raw, ok := c.Get(ctx, key)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false
	}
	return v, true
}

// SetJSON encodes v and stores it under key.
func SetJSON[T any](ctx context.Context, c Cache, key string, v T, ttl time.Duration) bool {
	raw, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return c.Set(ctx, key, raw, ttl)
}
