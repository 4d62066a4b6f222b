package cache

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryCache is an in-memory TTL cache.
// Expired entries are removed lazily when read. An optional sweep loop and a
// size cap bound memory under key churn.
type MemoryCache struct {
	mu sync.Mutex

	data map[string]*memoryEntry

	// Min-heap by expiresAt, used by Sweep and size-cap eviction.
	expirations expirationHeap

	maxSize    int
	defaultTTL time.Duration
	now        func() time.Time

	sweepTicker *time.Ticker
	stopSweep   chan struct{}
	closeOnce   sync.Once

	hits    atomic.Int64
	misses  atomic.Int64
	sets    atomic.Int64
	evicted atomic.Int64
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

type expirationEntry struct {
	key       string
	expiresAt time.Time
	index     int
}

type expirationHeap []*expirationEntry

func (h expirationHeap) Len() int           { return len(h) }
func (h expirationHeap) Less(i, j int) bool { return h[i].expiresAt.Before(h[j].expiresAt) }
func (h expirationHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *expirationHeap) Push(x any) {
	entry, ok := x.(*expirationEntry)
	if !ok {
		return
	}
	entry.index = len(*h)
	*h = append(*h, entry)
}

func (h *expirationHeap) Pop() any {
	old := *h
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	entry.index = -1
	*h = old[:n-1]
	return entry
}

// MemoryConfig holds configuration for MemoryCache.
type MemoryConfig struct {
	MaxSize       int           `yaml:"max_size"`       // Maximum number of items, 0 = unbounded
	DefaultTTL    time.Duration `yaml:"default_ttl"`    // TTL used when Set gets ttl <= 0
	SweepInterval time.Duration `yaml:"sweep_interval"` // Periodic expiry sweep, 0 = lazy eviction only
}

// DefaultMemoryConfig returns sensible defaults.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		MaxSize:       10000,
		DefaultTTL:    10 * time.Minute,
		SweepInterval: time.Minute,
	}
}

// MemoryOption customizes a MemoryCache.
type MemoryOption func(*MemoryCache)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) {
		c.now = now
	}
}

// NewMemoryCache creates a new in-memory cache.
func NewMemoryCache(cfg MemoryConfig, opts ...MemoryOption) *MemoryCache {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 10 * time.Minute
	}

	c := &MemoryCache{
		data:       make(map[string]*memoryEntry),
		maxSize:    cfg.MaxSize,
		defaultTTL: cfg.DefaultTTL,
		now:        time.Now,
		stopSweep:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	heap.Init(&c.expirations)

	if cfg.SweepInterval > 0 {
		c.sweepTicker = time.NewTicker(cfg.SweepInterval)
		go c.sweepLoop()
	}

	return c
}

func (c *MemoryCache) sweepLoop() {
	for {
		select {
		case <-c.sweepTicker.C:
			c.Sweep()
		case <-c.stopSweep:
			return
		}
	}
}

// Sweep removes every expired entry and returns how many were removed.
func (c *MemoryCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for c.expirations.Len() > 0 {
		head := c.expirations[0]
		entry, ok := c.data[head.key]
		if !ok || !entry.expiresAt.Equal(head.expiresAt) {
			// Stale heap record, the key was overwritten or deleted.
			heap.Pop(&c.expirations)
			continue
		}
		if !entry.expired(now) {
			break
		}
		heap.Pop(&c.expirations)
		delete(c.data, head.key)
		removed++
	}
	c.evicted.Add(int64(removed))
	return removed
}

// evictOldest drops the entry closest to expiry. Caller holds c.mu.
func (c *MemoryCache) evictOldest() {
	for c.expirations.Len() > 0 {
		head, _ := heap.Pop(&c.expirations).(*expirationEntry)
		entry, ok := c.data[head.key]
		if !ok || !entry.expiresAt.Equal(head.expiresAt) {
			continue
		}
		delete(c.data, head.key)
		c.evicted.Add(1)
		return
	}
}

// rebuildExpirations drops stale heap records left by overwrites and
// deletes. Caller holds c.mu.
func (c *MemoryCache) rebuildExpirations() {
	h := make(expirationHeap, 0, len(c.data))
	for key, entry := range c.data {
		h = append(h, &expirationEntry{key: key, expiresAt: entry.expiresAt, index: len(h)})
	}
	heap.Init(&h)
	c.expirations = h
}

// Get returns the value stored under key if present and unexpired.
// An expired entry is deleted and reported as a miss.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	entry, ok := c.data[key]
	if ok && entry.expired(c.now()) {
		delete(c.data, key)
		c.evicted.Add(1)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return nil, nil
	}

	c.hits.Add(1)
	result := make([]byte, len(entry.value))
	copy(result, entry.value)
	return result, nil
}

// Set stores value with expiresAt = now + ttl, overwriting any existing entry.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)
	if _, exists := c.data[key]; !exists && c.maxSize > 0 && len(c.data) >= c.maxSize {
		c.evictOldest()
	}

	c.data[key] = &memoryEntry{value: valueCopy, expiresAt: expiresAt}
	heap.Push(&c.expirations, &expirationEntry{key: key, expiresAt: expiresAt})
	if c.expirations.Len() > 2*len(c.data)+64 {
		c.rebuildExpirations()
	}

	c.sets.Add(1)
	return nil
}

// Delete removes a key from the cache.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// Ping always returns nil for memory cache.
func (c *MemoryCache) Ping(context.Context) error {
	return nil
}

// Close stops the sweep goroutine.
func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() {
		if c.sweepTicker != nil {
			c.sweepTicker.Stop()
		}
		close(c.stopSweep)
	})
	return nil
}

// Stats returns cache statistics.
func (c *MemoryCache) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	return Stats{
		Hits:    hits,
		Misses:  misses,
		Sets:    c.sets.Load(),
		Evicted: c.evicted.Load(),
		HitRate: hitRate(hits, misses),
	}
}

// Len returns the number of stored entries, including expired entries not yet evicted.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Flush removes all entries from the cache.
func (c *MemoryCache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]*memoryEntry)
	c.expirations = make(expirationHeap, 0)
}
