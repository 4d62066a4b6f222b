// Package cache provides the TTL response cache that sits in front of the
// upstream AI provider. Backends are in-memory, Redis, or both layered.
//
// Keys are fingerprints supplied by the caller; KeyGenerator is a helper for
// callers that do not derive their own.
package cache

import (
	"context"
	"time"
)

// Type represents the type of cache backend.
type Type string

const (
	TypeLocal Type = "local" // In-memory cache
	TypeRedis Type = "redis" // Redis cache
	TypeDual  Type = "dual"  // In-memory in front of Redis
)

// Stats holds cache statistics for monitoring.
type Stats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Sets    int64   `json:"sets"`
	Evicted int64   `json:"evicted"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hit_rate"`
}

// Cache defines the interface for all response cache implementations.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value, overwriting any existing entry, expiring after ttl.
	// If ttl is 0, the default TTL is used.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key from the cache.
	Delete(ctx context.Context, key string) error

	// Ping checks if the cache is healthy.
	Ping(ctx context.Context) error

	// Close releases any resources held by the cache.
	Close() error

	// Stats returns cache statistics.
	Stats() Stats
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
