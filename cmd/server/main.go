// Package main is the entry point for the tripmux AI orchestration server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blueberrycongee/tripmux"
	"github.com/blueberrycongee/tripmux/internal/api"
	"github.com/blueberrycongee/tripmux/internal/config"
	"github.com/blueberrycongee/tripmux/internal/observability"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// Bootstrap logger until the configured one is available.
	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfgManager, err := config.NewManager(configPath, bootLogger)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	defer func() { _ = cfgManager.Close() }()
	cfg := cfgManager.Get()

	redactor := observability.NewRedactor()
	level := new(slog.LevelVar)
	level.Set(observability.ParseLevel(cfg.Logging.Level))
	logger := observability.NewLogger(observability.LoggerConfig{
		Level:      level,
		AddSource:  cfg.Logging.AddSource,
		JSONFormat: cfg.Logging.Format != "text",
	}, redactor)
	slog.SetDefault(logger)

	logger.Info("starting tripmux server", "version", tripmux.Version, "config", configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := observability.InitTracing(ctx, cfg.Tracing, tripmux.Version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown error", "error", err)
		}
	}()

	client, err := buildClient(cfg, logger, redactor, tp.Tracer())
	if err != nil {
		return fmt.Errorf("build client: %w", err)
	}

	reloader := newConfigReloader(logger, client, level, cfg)
	cfgManager.OnChange(reloader.Reload)
	if err := cfgManager.Watch(ctx); err != nil {
		logger.Warn("config hot-reload disabled", "error", err)
	}

	handler := api.NewHandler(client, logger, &api.HandlerConfig{
		MaxBodySize:     cfg.Server.MaxBodyBytes,
		RecentLogsLimit: cfg.Analytics.RecentLogsLimit,
		Redactor:        redactor,
	})
	mux, err := buildMux(cfg, handler)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           buildMiddlewareStack(mux),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
	case err := <-serveErr:
		runErr = err
	}

	logger.Info("shutting down server...")

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := client.Close(shutdownCtx); err != nil {
		logger.Error("client shutdown error", "error", err)
	}

	logger.Info("server stopped")
	return runErr
}
