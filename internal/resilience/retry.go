package resilience

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	llmerrors "github.com/blueberrycongee/tripmux/pkg/errors"
)

// RetryConfig controls backoff between upstream attempts.
type RetryConfig struct {
	BaseDelay         time.Duration `yaml:"base_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	MaxAttempts       int           `yaml:"max_attempts"`
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		BaseDelay:         time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2,
		MaxAttempts:       3,
	}
}

// jitterFraction is the upper bound of random jitter relative to the delay.
const jitterFraction = 0.1

// RetryPolicy decides whether and when a failed attempt is repeated.
type RetryPolicy struct {
	cfg atomic.Pointer[RetryConfig]

	randMu sync.Mutex
	rand   *rand.Rand

	// sleep waits for d or until ctx is done. Replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error

	// OnRetry, if set, is called before sleeping ahead of attempt+1.
	OnRetry func(attempt int, kind llmerrors.Kind, delay time.Duration, err error)
}

// NewRetryPolicy creates a policy. Zero fields of cfg take defaults.
func NewRetryPolicy(cfg RetryConfig) *RetryPolicy {
	p := &RetryPolicy{
		rand:  rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- jitter does not need crypto randomness.
		sleep: sleepContext,
	}
	p.SetConfig(cfg)
	return p
}

func withRetryDefaults(cfg RetryConfig) RetryConfig {
	def := DefaultRetryConfig()
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = def.BackoffMultiplier
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	return cfg
}

// Config returns the effective configuration.
func (p *RetryPolicy) Config() RetryConfig {
	return *p.cfg.Load()
}

// SetConfig swaps the configuration, e.g. after a config reload. Calls
// already in Do pick it up from their next attempt.
func (p *RetryPolicy) SetConfig(cfg RetryConfig) {
	cfg = withRetryDefaults(cfg)
	p.cfg.Store(&cfg)
}

// SetRand replaces the jitter source. Used by tests.
func (p *RetryPolicy) SetRand(r *rand.Rand) {
	p.randMu.Lock()
	p.rand = r
	p.randMu.Unlock()
}

func (p *RetryPolicy) jitter() float64 {
	p.randMu.Lock()
	defer p.randMu.Unlock()
	return p.rand.Float64()
}

// CalculateDelay returns the wait before retrying after the given 1-indexed
// attempt: base * multiplier^(attempt-1) plus up to 10% jitter, clamped to MaxDelay.
func (p *RetryPolicy) CalculateDelay(attempt int) time.Duration {
	return CalculateDelay(attempt, p.Config(), p.jitter())
}

// CalculateDelay is the pure form of RetryPolicy.CalculateDelay.
// r is a uniform sample in [0, 1) that scales the jitter.
func CalculateDelay(attempt int, cfg RetryConfig, r float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1))
	delay += r * jitterFraction * delay
	if maxDelay := float64(cfg.MaxDelay); cfg.MaxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	// Without MaxDelay large attempts overflow Duration.
	if delay >= float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

// ShouldRetry reports whether another attempt follows a failure of kind
// on the given 1-indexed attempt.
func (p *RetryPolicy) ShouldRetry(attempt int, kind llmerrors.Kind) bool {
	return attempt < p.Config().MaxAttempts && kind.Retryable()
}

// Do runs op until it succeeds, fails with a non-retryable kind, the
// attempts are exhausted, or ctx is done. The terminal failure is returned
// as *errors.Error carrying its Kind and the number of attempts made.
func (p *RetryPolicy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) error {
	for attempt := 1; ; attempt++ {
		err := op(ctx, attempt)
		if err == nil {
			return nil
		}

		failure := terminal(err, attempt)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return failure
		}
		if !p.ShouldRetry(attempt, failure.Kind) {
			return failure
		}

		delay := p.CalculateDelay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, failure.Kind, delay, err)
		}
		if sleepErr := p.sleep(ctx, delay); sleepErr != nil {
			return failure
		}
	}
}

func terminal(err error, attempts int) *llmerrors.Error {
	wrapped := llmerrors.Wrap(err)
	out := *wrapped
	out.Attempts = attempts
	return &out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
