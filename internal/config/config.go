// Package config provides configuration management with hot-reload support.
// It uses fsnotify to watch for file changes and atomic pointer swaps for zero-downtime updates.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/blueberrycongee/tripmux/internal/cache"
	"github.com/blueberrycongee/tripmux/internal/observability"
	"github.com/blueberrycongee/tripmux/internal/queue"
	"github.com/blueberrycongee/tripmux/internal/resilience"
)

// Config represents the complete service configuration.
type Config struct {
	Server    ServerConfig                `yaml:"server"`
	Provider  ProviderConfig              `yaml:"provider"`
	Cache     cache.Config                `yaml:"cache"`
	Queue     queue.Config                `yaml:"queue"`
	Retry     resilience.RetryConfig      `yaml:"retry"`
	RateLimit resilience.RateLimitConfig  `yaml:"rate_limit"`
	Analytics AnalyticsConfig             `yaml:"analytics"`
	Logging   LoggingConfig               `yaml:"logging"`
	Metrics   MetricsConfig               `yaml:"metrics"`
	Tracing   observability.TracingConfig `yaml:"tracing"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

// Provider types.
const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// ProviderConfig defines the upstream AI provider.
type ProviderConfig struct {
	Type        string            `yaml:"type"` // openai, mock
	BaseURL     string            `yaml:"base_url"`
	APIKey      string            `yaml:"api_key"`
	Model       string            `yaml:"model"`
	Timeout     time.Duration     `yaml:"timeout"`
	MaxTokens   int               `yaml:"max_tokens"`
	Temperature float64           `yaml:"temperature"`
	Headers     map[string]string `yaml:"headers"`
}

// AnalyticsConfig sizes the request log.
type AnalyticsConfig struct {
	Capacity        int `yaml:"capacity"`
	RecentLogsLimit int `yaml:"recent_logs_limit"` // default limit for the metrics endpoint
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`  // debug, info, warn, error
	Format    string `yaml:"format"` // json, text
	AddSource bool   `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Provider: ProviderConfig{
			Type:        ProviderOpenAI,
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			Timeout:     60 * time.Second,
			MaxTokens:   1024,
			Temperature: 0.7,
		},
		Cache:     cache.DefaultConfig(),
		Queue:     queue.DefaultConfig(),
		Retry:     resilience.DefaultRetryConfig(),
		RateLimit: resilience.RateLimitConfig{RequestsPerMinute: 60, Burst: 10},
		Analytics: AnalyticsConfig{
			Capacity:        1000,
			RecentLogsLimit: 50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: observability.DefaultTracingConfig(),
	}
}

// Load parses YAML bytes over the defaults and validates the result.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile reads and parses a YAML configuration file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Load(data)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Provider.Type {
	case ProviderOpenAI:
		if c.Provider.APIKey == "" {
			return fmt.Errorf("provider: api_key is required for type %q", c.Provider.Type)
		}
		if c.Provider.BaseURL == "" {
			return fmt.Errorf("provider: base_url is required")
		}
	case ProviderMock:
	default:
		return fmt.Errorf("provider: unknown type %q", c.Provider.Type)
	}
	if c.Provider.Model == "" {
		return fmt.Errorf("provider: model is required")
	}
	if c.Provider.Timeout < 0 {
		return fmt.Errorf("provider: timeout cannot be negative")
	}

	if c.Cache.Enabled {
		switch c.Cache.Type {
		case cache.TypeLocal, cache.TypeRedis, cache.TypeDual:
		default:
			return fmt.Errorf("cache: unknown type %q", c.Cache.Type)
		}
		if c.Cache.DefaultTTL < 0 {
			return fmt.Errorf("cache.default_ttl cannot be negative")
		}
		if c.Cache.Type != cache.TypeLocal && c.Cache.Redis.Addr == "" && len(c.Cache.Redis.ClusterAddrs) == 0 {
			return fmt.Errorf("cache: redis.addr or redis.cluster_addrs is required for type %q", c.Cache.Type)
		}
	}

	if c.Queue.MaxConcurrent < 1 {
		return fmt.Errorf("queue.max_concurrent must be at least 1")
	}
	if c.Queue.MaxLength < 0 {
		return fmt.Errorf("queue.max_length cannot be negative")
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if c.Retry.BaseDelay <= 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("retry: need 0 < base_delay <= max_delay")
	}
	if c.Retry.BackoffMultiplier < 1 {
		return fmt.Errorf("retry.backoff_multiplier must be >= 1")
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate_limit.requests_per_minute must be positive when enabled")
	}

	if c.Analytics.Capacity <= 0 {
		return fmt.Errorf("analytics.capacity must be positive")
	}

	if c.Tracing.Enabled && (c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1) {
		return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
	}

	return nil
}
