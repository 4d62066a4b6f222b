package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blueberrycongee/tripmux/internal/cache"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Provider.APIKey = "sk-test"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 2, cfg.Queue.MaxConcurrent)
	assert.Zero(t, cfg.Queue.MaxLength, "queue is unbounded by default")
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 10*time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, 2.0, cfg.Retry.BackoffMultiplier)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 1000, cfg.Analytics.Capacity)
	assert.Equal(t, cache.TypeLocal, cfg.Cache.Type)
	assert.True(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Tracing.Enabled)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid config", func(*Config) {}, false},
		{"mock provider needs no key", func(c *Config) { c.Provider = ProviderConfig{Type: ProviderMock, Model: "mock"} }, false},
		{"invalid port zero", func(c *Config) { c.Server.Port = 0 }, true},
		{"invalid port too high", func(c *Config) { c.Server.Port = 70000 }, true},
		{"unknown provider", func(c *Config) { c.Provider.Type = "carrier-pigeon" }, true},
		{"openai missing api_key", func(c *Config) { c.Provider.APIKey = "" }, true},
		{"missing model", func(c *Config) { c.Provider.Model = "" }, true},
		{"negative provider timeout", func(c *Config) { c.Provider.Timeout = -1 }, true},
		{"unknown cache type", func(c *Config) { c.Cache.Type = "memcached" }, true},
		{"redis cache without addr", func(c *Config) {
			c.Cache.Type = cache.TypeRedis
			c.Cache.Redis.Addr = ""
		}, true},
		{"disabled cache skips checks", func(c *Config) {
			c.Cache.Enabled = false
			c.Cache.Type = "memcached"
		}, false},
		{"zero max_concurrent", func(c *Config) { c.Queue.MaxConcurrent = 0 }, true},
		{"negative max_length", func(c *Config) { c.Queue.MaxLength = -1 }, true},
		{"zero max_attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, true},
		{"max_delay below base", func(c *Config) { c.Retry.MaxDelay = c.Retry.BaseDelay / 2 }, true},
		{"multiplier below one", func(c *Config) { c.Retry.BackoffMultiplier = 0.5 }, true},
		{"rate limit enabled without rate", func(c *Config) {
			c.RateLimit.Enabled = true
			c.RateLimit.RequestsPerMinute = 0
		}, true},
		{"zero analytics capacity", func(c *Config) { c.Analytics.Capacity = 0 }, true},
		{"bad sample rate", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.SampleRate = 2
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("TRIPMUX_TEST_API_KEY", "sk-from-env")
	path := writeConfigFile(t, `
server:
  port: 9090
provider:
  type: openai
  api_key: ${TRIPMUX_TEST_API_KEY}
  model: gpt-4o
  timeout: 45s
cache:
  type: dual
  default_ttl: 15m
  redis:
    addr: localhost:6379
queue:
  max_concurrent: 4
  max_length: 100
retry:
  base_delay: 500ms
  max_delay: 8s
  max_attempts: 5
analytics:
  capacity: 200
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sk-from-env", cfg.Provider.APIKey)
	assert.Equal(t, "gpt-4o", cfg.Provider.Model)
	assert.Equal(t, 45*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Provider.BaseURL, "unset fields keep defaults")
	assert.Equal(t, cache.TypeDual, cfg.Cache.Type)
	assert.Equal(t, 15*time.Minute, cfg.Cache.DefaultTTL)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 4, cfg.Queue.MaxConcurrent)
	assert.Equal(t, 100, cfg.Queue.MaxLength)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, 8*time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, 2.0, cfg.Retry.BackoffMultiplier)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 200, cfg.Analytics.Capacity)
}

func TestLoadFromFile_Errors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	_, err = LoadFromFile(writeConfigFile(t, "server: [unclosed"))
	assert.ErrorContains(t, err, "parse config")

	_, err = LoadFromFile(writeConfigFile(t, "server:\n  port: -1\n"))
	assert.ErrorContains(t, err, "validate config")
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
