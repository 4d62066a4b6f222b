package main

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/blueberrycongee/tripmux/internal/config"
	"github.com/blueberrycongee/tripmux/internal/observability"
	"github.com/blueberrycongee/tripmux/internal/resilience"
)

type retryTarget interface {
	SetRetryConfig(resilience.RetryConfig)
}

// configReloader applies the hot-reloadable parts of a new configuration:
// the retry policy and the log level. Everything else needs a restart.
type configReloader struct {
	logger     *slog.Logger
	target     retryTarget
	level      *slog.LevelVar
	inProgress atomic.Bool

	mu      sync.Mutex
	current *config.Config
}

func newConfigReloader(logger *slog.Logger, target retryTarget, level *slog.LevelVar, initial *config.Config) *configReloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &configReloader{
		logger:  logger,
		target:  target,
		level:   level,
		current: initial,
	}
}

func (r *configReloader) Reload(cfg *config.Config) {
	if cfg == nil {
		return
	}
	if !r.inProgress.CompareAndSwap(false, true) {
		r.logger.Warn("config reload already in progress")
		return
	}
	defer r.inProgress.Store(false)

	r.mu.Lock()
	prev := r.current
	r.current = cfg
	r.mu.Unlock()

	r.target.SetRetryConfig(cfg.Retry)
	if r.level != nil {
		r.level.Set(observability.ParseLevel(cfg.Logging.Level))
	}

	if prev != nil {
		for _, field := range restartRequired(prev, cfg) {
			r.logger.Warn("config change requires restart", "field", field)
		}
	}
	r.logger.Info("config reloaded",
		"retry_max_attempts", cfg.Retry.MaxAttempts,
		"log_level", cfg.Logging.Level,
	)
}

func restartRequired(prev, next *config.Config) []string {
	var fields []string
	if prev.Server != next.Server {
		fields = append(fields, "server")
	}
	if prev.Provider.Type != next.Provider.Type ||
		prev.Provider.BaseURL != next.Provider.BaseURL ||
		prev.Provider.APIKey != next.Provider.APIKey ||
		prev.Provider.Model != next.Provider.Model {
		fields = append(fields, "provider")
	}
	if prev.Cache.Type != next.Cache.Type || prev.Cache.Enabled != next.Cache.Enabled {
		fields = append(fields, "cache")
	}
	if prev.Queue != next.Queue {
		fields = append(fields, "queue")
	}
	if prev.RateLimit != next.RateLimit {
		fields = append(fields, "rate_limit")
	}
	if prev.Analytics != next.Analytics {
		fields = append(fields, "analytics")
	}
	return fields
}
