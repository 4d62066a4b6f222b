package tripmux

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/blueberrycongee/tripmux/internal/analytics"
	"github.com/blueberrycongee/tripmux/internal/cache"
	"github.com/blueberrycongee/tripmux/internal/observability"
	"github.com/blueberrycongee/tripmux/internal/queue"
	"github.com/blueberrycongee/tripmux/internal/resilience"
)

// ClientConfig holds all configuration for the Client.
type ClientConfig struct {
	Provider Provider

	// Caching. A nil Cache with CacheEnabled creates an in-memory cache
	// owned by the client.
	CacheEnabled   bool
	Cache          cache.Cache
	CacheTypeLabel string
	CacheTTL       time.Duration
	CacheNamespace string

	Queue     queue.Config
	Retry     resilience.RetryConfig
	RateLimit resilience.RateLimitConfig

	AnalyticsCapacity int

	// DefaultModel is sent when a request does not name one.
	DefaultModel       string
	DefaultMaxTokens   int
	DefaultTemperature *float64

	Logger   *slog.Logger
	Redactor *observability.Redactor
	Tracer   trace.Tracer

	now func() time.Time
}

// Option is a function that configures the Client.
type Option func(*ClientConfig)

func defaultConfig() *ClientConfig {
	return &ClientConfig{
		CacheEnabled:      true,
		CacheTypeLabel:    string(cache.TypeLocal),
		CacheTTL:          10 * time.Minute,
		Queue:             queue.DefaultConfig(),
		Retry:             resilience.DefaultRetryConfig(),
		AnalyticsCapacity: analytics.DefaultCapacity,
		Logger:            slog.Default(),
		Redactor:          observability.NewRedactor(),
		now:               time.Now,
	}
}

// WithProvider sets the upstream provider. Required.
func WithProvider(p Provider) Option {
	return func(c *ClientConfig) {
		c.Provider = p
	}
}

// WithCache uses an existing cache backend. label names the backend in
// metrics ("local", "redis", "dual").
func WithCache(backend cache.Cache, label string) Option {
	return func(c *ClientConfig) {
		c.CacheEnabled = backend != nil
		c.Cache = backend
		if label != "" {
			c.CacheTypeLabel = label
		}
	}
}

// WithoutCache disables response caching.
func WithoutCache() Option {
	return func(c *ClientConfig) {
		c.CacheEnabled = false
		c.Cache = nil
	}
}

// WithCacheTTL sets the TTL for responses stored without an explicit one.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *ClientConfig) {
		c.CacheTTL = ttl
	}
}

// WithCacheNamespace sets a namespace placed in front of generated cache
// keys, e.g. to separate prompt versions.
func WithCacheNamespace(ns string) Option {
	return func(c *ClientConfig) {
		c.CacheNamespace = ns
	}
}

// WithQueue configures the admission queue.
func WithQueue(cfg queue.Config) Option {
	return func(c *ClientConfig) {
		c.Queue = cfg
	}
}

// WithMaxConcurrent sets how many upstream requests may run at once.
func WithMaxConcurrent(n int) Option {
	return func(c *ClientConfig) {
		c.Queue.MaxConcurrent = n
	}
}

// WithRetry configures retry backoff.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *ClientConfig) {
		c.Retry = cfg
	}
}

// WithRateLimit paces upstream calls client-side.
func WithRateLimit(cfg resilience.RateLimitConfig) Option {
	return func(c *ClientConfig) {
		c.RateLimit = cfg
	}
}

// WithAnalyticsCapacity sets how many request logs are retained.
func WithAnalyticsCapacity(n int) Option {
	return func(c *ClientConfig) {
		c.AnalyticsCapacity = n
	}
}

// WithDefaultModel sets the model used when a request leaves it empty.
func WithDefaultModel(model string) Option {
	return func(c *ClientConfig) {
		c.DefaultModel = model
	}
}

// WithDefaultMaxTokens sets max tokens for requests that leave it zero.
func WithDefaultMaxTokens(n int) Option {
	return func(c *ClientConfig) {
		c.DefaultMaxTokens = n
	}
}

// WithDefaultTemperature sets the sampling temperature for requests that
// leave it unset.
func WithDefaultTemperature(t float64) Option {
	return func(c *ClientConfig) {
		c.DefaultTemperature = &t
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ClientConfig) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithRedactor sets the redactor applied to error messages leaving the
// client through Snapshot.
func WithRedactor(r *observability.Redactor) Option {
	return func(c *ClientConfig) {
		c.Redactor = r
	}
}

// WithTracer sets the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *ClientConfig) {
		c.Tracer = t
	}
}

func withClock(now func() time.Time) Option {
	return func(c *ClientConfig) {
		c.now = now
	}
}
