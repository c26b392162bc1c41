// Package cache provides the best-effort key/value layer fronting the
// durable store. Every operation degrades to a miss on failure; nothing in
// here is ever the source of truth.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// TTLs for the three key families.
const (
	LinkTTL     = 24 * time.Hour
	SnapshotTTL = 5 * time.Minute
)

// Cache is the accelerator contract used by the resolver and middleware.
// Implementations must swallow backend failures: Get reports a miss, Put and
// Delete are fire-and-forget. Increment is the one call that surfaces its
// error so callers can decide how to fail open.
type Cache interface {
	Put(ctx context.Context, key, value string, ttl time.Duration)
	Get(ctx context.Context, key string) (string, bool)
	Delete(ctx context.Context, keys ...string)

	// Increment atomically increments the integer at key, creating it with
	// value 1 and the given TTL when absent, and returns the new value.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// LinkKey addresses the cached destination URL for a short code.
func LinkKey(code string) string { return "link:" + code }

// StatsKey addresses the cached stats snapshot for a short code.
func StatsKey(code string) string { return "stats:" + code }

// SearchKey addresses a cached search result list.
func SearchKey(query string) string { return "search:" + query }

// PutJSON serializes v and stores it under key. Values that fail to marshal
// are simply not cached.
func PutJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.Put(ctx, key, string(data), ttl)
}

// GetJSON loads key and unmarshals it into out. A malformed cached value
// counts as a miss so the caller falls through to the store.
func GetJSON(ctx context.Context, c Cache, key string, out any) bool {
	raw, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false
	}
	return true
}

// InvalidateLink drops both per-link key families for a short code.
func InvalidateLink(ctx context.Context, c Cache, code string) {
	c.Delete(ctx, LinkKey(code), StatsKey(code))
}
