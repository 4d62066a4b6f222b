package main

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/tripmux/internal/config"
	"github.com/blueberrycongee/tripmux/internal/resilience"
)

type recordingTarget struct {
	mu   sync.Mutex
	seen []resilience.RetryConfig
}

func (r *recordingTarget) SetRetryConfig(cfg resilience.RetryConfig) {
	r.mu.Lock()
	r.seen = append(r.seen, cfg)
	r.mu.Unlock()
}

func TestConfigReloaderAppliesRetryAndLevel(t *testing.T) {
	initial := config.DefaultConfig()
	target := &recordingTarget{}
	level := new(slog.LevelVar)

	reloader := newConfigReloader(testLogger(), target, level, initial)

	next := config.DefaultConfig()
	next.Retry.MaxAttempts = 5
	next.Retry.BaseDelay = 250 * time.Millisecond
	next.Logging.Level = "debug"
	reloader.Reload(next)

	require.Len(t, target.seen, 1)
	assert.Equal(t, 5, target.seen[0].MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, target.seen[0].BaseDelay)
	assert.Equal(t, slog.LevelDebug, level.Level())
}

func TestConfigReloaderIgnoresNil(t *testing.T) {
	target := &recordingTarget{}
	reloader := newConfigReloader(testLogger(), target, nil, nil)
	reloader.Reload(nil)
	assert.Empty(t, target.seen)
}

func TestRestartRequired(t *testing.T) {
	prev := config.DefaultConfig()
	next := config.DefaultConfig()
	assert.Empty(t, restartRequired(prev, next))

	next.Queue.MaxConcurrent = 8
	next.Provider.Model = "gpt-4o"
	next.Retry.MaxAttempts = 9
	assert.ElementsMatch(t, []string{"queue", "provider"}, restartRequired(prev, next))
}
