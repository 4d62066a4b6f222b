package main

import (
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/blueberrycongee/tripmux"
	"github.com/blueberrycongee/tripmux/internal/cache"
	"github.com/blueberrycongee/tripmux/internal/config"
	"github.com/blueberrycongee/tripmux/internal/observability"
	"github.com/blueberrycongee/tripmux/internal/provider"
	"github.com/blueberrycongee/tripmux/internal/provider/openai"
)

func buildProvider(cfg config.ProviderConfig) (provider.Provider, error) {
	switch strings.ToLower(cfg.Type) {
	case config.ProviderOpenAI, "":
		return openai.New(openai.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
			Headers: cfg.Headers,
		}, nil), nil
	case config.ProviderMock:
		return provider.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Type)
	}
}

func buildCacheOptions(cfg cache.Config, logger *slog.Logger) ([]tripmux.Option, error) {
	if !cfg.Enabled {
		logger.Info("response cache disabled")
		return []tripmux.Option{tripmux.WithoutCache()}, nil
	}

	cacheType := strings.ToLower(string(cfg.Type))
	if cacheType == "" || cacheType == "memory" {
		cacheType = string(cache.TypeLocal)
	}
	cfg.Type = cache.Type(cacheType)

	backend, err := cache.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("build %s cache: %w", cacheType, err)
	}

	opts := []tripmux.Option{tripmux.WithCache(backend, cacheType)}
	if cfg.DefaultTTL > 0 {
		opts = append(opts, tripmux.WithCacheTTL(cfg.DefaultTTL))
	}

	logger.Info("cache enabled", "type", cacheType, "default_ttl", cfg.DefaultTTL)
	return opts, nil
}

func buildClient(cfg *config.Config, logger *slog.Logger, redactor *observability.Redactor, tracer trace.Tracer) (*tripmux.Client, error) {
	if cfg == nil {
		return nil, errNilConfig
	}

	prov, err := buildProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}

	opts := []tripmux.Option{
		tripmux.WithProvider(prov),
		tripmux.WithLogger(logger),
		tripmux.WithRedactor(redactor),
		tripmux.WithQueue(cfg.Queue),
		tripmux.WithRetry(cfg.Retry),
		tripmux.WithRateLimit(cfg.RateLimit),
		tripmux.WithAnalyticsCapacity(cfg.Analytics.Capacity),
		tripmux.WithDefaultModel(cfg.Provider.Model),
		tripmux.WithDefaultMaxTokens(cfg.Provider.MaxTokens),
	}
	if cfg.Provider.Temperature > 0 {
		opts = append(opts, tripmux.WithDefaultTemperature(cfg.Provider.Temperature))
	}
	if tracer != nil {
		opts = append(opts, tripmux.WithTracer(tracer))
	}

	cacheOpts, err := buildCacheOptions(cfg.Cache, logger)
	if err != nil {
		return nil, err
	}
	opts = append(opts, cacheOpts...)

	return tripmux.New(opts...)
}
