package cache

import (
	"fmt"
	"time"
)

// Config holds the complete cache configuration.
type Config struct {
	Type       Type          `yaml:"type"`        // local, redis, dual
	Enabled    bool          `yaml:"enabled"`     // Enable/disable caching
	Namespace  string        `yaml:"namespace"`   // Key namespace prefix
	DefaultTTL time.Duration `yaml:"default_ttl"` // TTL for responses without an explicit one
	Memory     MemoryConfig  `yaml:"memory"`
	Redis      RedisConfig   `yaml:"redis"`
	Dual       DualConfig    `yaml:"dual"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Type:       TypeLocal,
		Enabled:    true,
		Namespace:  "tripmux",
		DefaultTTL: 10 * time.Minute,
		Memory:     DefaultMemoryConfig(),
		Redis:      DefaultRedisConfig(),
		Dual:       DefaultDualConfig(),
	}
}

// New creates a cache instance based on configuration.
// A disabled cache returns nil, nil.
func New(cfg Config) (Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	memCfg := cfg.Memory
	redisCfg := cfg.Redis
	if cfg.DefaultTTL > 0 {
		memCfg.DefaultTTL = cfg.DefaultTTL
		redisCfg.DefaultTTL = cfg.DefaultTTL
	}
	if cfg.Namespace != "" {
		redisCfg.Namespace = cfg.Namespace
	}

	switch cfg.Type {
	case TypeLocal, "":
		return NewMemoryCache(memCfg), nil

	case TypeRedis:
		return NewRedisCache(redisCfg)

	case TypeDual:
		redis, err := NewRedisCache(redisCfg)
		if err != nil {
			return nil, fmt.Errorf("dual cache: %w", err)
		}
		return NewDualCache(NewMemoryCache(memCfg), redis, cfg.Dual), nil

	default:
		return nil, fmt.Errorf("unknown cache type: %s", cfg.Type)
	}
}
