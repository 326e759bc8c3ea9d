// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpAdapter "github.com/leseb/quizsearch/pkg/adapters/http"
	"github.com/leseb/quizsearch/pkg/bootstrap"
	"github.com/leseb/quizsearch/pkg/core/config"
	"github.com/leseb/quizsearch/pkg/observability/logging"
)

var (
	// Version is set via ldflags during build
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	port := flag.Int("port", 0, "HTTP port to listen on (overrides config)")
	version := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	// Print version
	if *version {
		fmt.Printf("Quiz Search Server\nVersion: %s\nBuild Time: %s\n", Version, BuildTime)
		os.Exit(0)
	}

	// Load configuration; only a missing file falls back to defaults
	cfg, usedDefaults, err := config.LoadOrDefault(*configPath)
	if err != nil {
		logging.New(logging.Config{}).Error("Failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logger.Info("Starting Quiz Search Server",
		"version", Version,
		"build_time", BuildTime)
	if usedDefaults {
		logger.Warn("Config file not found, using defaults", "path", *configPath)
	}

	if *port != 0 {
		cfg.Server.Port = *port
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

// run serves until a shutdown signal arrives, closing backends on return.
func run(cfg *config.Config, logger *logging.Logger) error {
	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	app, err := bootstrap.Build(initCtx, cfg, logger, bootstrap.Options{})
	cancelInit()
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			logger.Error("Failed to close backends", "error", err)
		}
	}()

	handler := httpAdapter.New(logger, app.Search, app.Embeddings, app.Quizzes, app.SnapshotService)
	logger.Info("Initialized HTTP adapter")

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
