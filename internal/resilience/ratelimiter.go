// Package resilience holds the retry policy and upstream pacing used around
// calls to the AI provider.
package resilience

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitConfig paces outbound provider calls.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// UpstreamLimiter is a token bucket in front of the provider. Waiting on it
// spreads bursts out so the provider sees fewer 429 responses.
// A nil *UpstreamLimiter never blocks.
type UpstreamLimiter struct {
	limiter *rate.Limiter
}

// NewUpstreamLimiter returns nil when pacing is disabled.
func NewUpstreamLimiter(cfg RateLimitConfig) *UpstreamLimiter {
	if !cfg.Enabled || cfg.RequestsPerMinute <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &UpstreamLimiter{
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), burst),
	}
}

// Wait blocks until a call may proceed or ctx is done.
func (l *UpstreamLimiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// Allow reports whether a call may proceed now without waiting.
func (l *UpstreamLimiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.limiter.Allow()
}
