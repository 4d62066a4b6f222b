package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// DualCache layers a MemoryCache (L1) in front of a RedisCache (L2).
// Writes go to both tiers. A miss in L1 falls through to L2 and a hit there
// back-fills L1 with the remaining Redis lifetime, capped at LocalTTL.
type DualCache struct {
	local    *MemoryCache
	redis    *RedisCache
	localTTL time.Duration

	localHits atomic.Int64
	redisHits atomic.Int64
	misses    atomic.Int64
	backfills atomic.Int64
}

// DualConfig holds configuration for DualCache.
type DualConfig struct {
	LocalTTL time.Duration `yaml:"local_ttl"` // Upper bound on L1 lifetime
}

// DefaultDualConfig returns sensible defaults.
func DefaultDualConfig() DualConfig {
	return DualConfig{LocalTTL: 5 * time.Minute}
}

// DualStats breaks down hits per tier.
type DualStats struct {
	LocalHits int64 `json:"local_hits"`
	RedisHits int64 `json:"redis_hits"`
	Misses    int64 `json:"misses"`
	Backfills int64 `json:"backfills"`
}

// NewDualCache creates a new two-tier cache.
func NewDualCache(local *MemoryCache, redis *RedisCache, cfg DualConfig) *DualCache {
	if cfg.LocalTTL <= 0 {
		cfg.LocalTTL = 5 * time.Minute
	}
	return &DualCache{
		local:    local,
		redis:    redis,
		localTTL: cfg.LocalTTL,
	}
}

// Get checks L1 first, then Redis.
func (c *DualCache) Get(ctx context.Context, key string) ([]byte, error) {
	if val, err := c.local.Get(ctx, key); err == nil && val != nil {
		c.localHits.Add(1)
		return val, nil
	}

	val, ttl, err := c.redis.GetWithTTL(ctx, key)
	if err != nil {
		return nil, err
	}
	if val == nil {
		c.misses.Add(1)
		return nil, nil
	}

	c.redisHits.Add(1)
	if ttl > 0 {
		if ttl > c.localTTL {
			ttl = c.localTTL
		}
		_ = c.local.Set(ctx, key, val, ttl) //nolint:errcheck // backfill is best-effort
		c.backfills.Add(1)
	}
	return val, nil
}

// Set stores a value in both tiers. L1 never outlives the Redis entry.
func (c *DualCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	localTTL := c.localTTL
	if ttl > 0 && ttl < localTTL {
		localTTL = ttl
	}
	if err := c.local.Set(ctx, key, value, localTTL); err != nil {
		return err
	}
	return c.redis.Set(ctx, key, value, ttl)
}

// Delete removes a key from both tiers.
func (c *DualCache) Delete(ctx context.Context, key string) error {
	_ = c.local.Delete(ctx, key) //nolint:errcheck // best-effort local delete
	return c.redis.Delete(ctx, key)
}

// Ping checks the Redis tier.
func (c *DualCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx)
}

// Close closes both tiers.
func (c *DualCache) Close() error {
	return errors.Join(c.local.Close(), c.redis.Close())
}

// Stats returns combined statistics.
func (c *DualCache) Stats() Stats {
	hits := c.localHits.Load() + c.redisHits.Load()
	misses := c.misses.Load()
	redisStats := c.redis.Stats()
	return Stats{
		Hits:    hits,
		Misses:  misses,
		Sets:    redisStats.Sets,
		Evicted: c.local.Stats().Evicted,
		Errors:  redisStats.Errors,
		HitRate: hitRate(hits, misses),
	}
}

// DetailedStats returns per-tier statistics.
func (c *DualCache) DetailedStats() DualStats {
	return DualStats{
		LocalHits: c.localHits.Load(),
		RedisHits: c.redisHits.Load(),
		Misses:    c.misses.Load(),
		Backfills: c.backfills.Load(),
	}
}
