// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package bootstrap builds the search services from configuration. It is
// shared by the HTTP server and the admin CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/leseb/quizsearch/pkg/core/config"
	"github.com/leseb/quizsearch/pkg/core/services"
	"github.com/leseb/quizsearch/pkg/embedding"
	"github.com/leseb/quizsearch/pkg/embedding/cache"
	"github.com/leseb/quizsearch/pkg/embedding/openai"
	"github.com/leseb/quizsearch/pkg/observability/logging"
	"github.com/leseb/quizsearch/pkg/quiz"
	"github.com/leseb/quizsearch/pkg/search"
	"github.com/leseb/quizsearch/pkg/snapshot"
	"github.com/leseb/quizsearch/pkg/vectorstore"

	// Register backends.
	_ "github.com/leseb/quizsearch/pkg/quiz/memory"
	_ "github.com/leseb/quizsearch/pkg/quiz/postgres"
	_ "github.com/leseb/quizsearch/pkg/snapshot/filesystem"
	_ "github.com/leseb/quizsearch/pkg/snapshot/memory"
	_ "github.com/leseb/quizsearch/pkg/snapshot/s3"
	_ "github.com/leseb/quizsearch/pkg/vectorstore/bolt"
	_ "github.com/leseb/quizsearch/pkg/vectorstore/milvus"
	_ "github.com/leseb/quizsearch/pkg/vectorstore/postgres"
	_ "github.com/leseb/quizsearch/pkg/vectorstore/sqlite"
)

// App holds the wired services and the backends behind them.
type App struct {
	Quizzes     quiz.WritableStore
	VectorStore vectorstore.Backend
	Snapshots   snapshot.Store
	QueryCache  cache.Cache

	Embeddings      *services.EmbeddingService
	Search          *search.Service
	SnapshotService *services.SnapshotService
}

// Options overrides parts of the wiring, mainly for tests.
type Options struct {
	// Provider replaces the OpenAI-compatible embedding provider.
	Provider embedding.Provider
}

// Build creates every backend named in cfg and the services on top of them.
// On error, backends created so far are closed.
func Build(ctx context.Context, cfg *config.Config, logger *logging.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	app := &App{}
	built := false
	defer func() {
		if !built {
			app.Close(context.Background())
		}
	}()

	// Factories may return typed nil pointers alongside an error, so
	// backends are only stored on App once they were created.
	quizzes, err := quiz.Providers.New(ctx, cfg.QuizStore.Type, cfg.QuizStoreParams())
	if err != nil {
		return nil, fmt.Errorf("quiz store: %w", err)
	}
	app.Quizzes = quizzes
	logger.Info("Initialized quiz store", "type", cfg.QuizStore.Type)

	store, err := vectorstore.Providers.New(ctx, cfg.VectorStore.Type, cfg.VectorStoreParams())
	if err != nil {
		return nil, fmt.Errorf("vector store: %w", err)
	}
	app.VectorStore = store
	if _, ok := app.VectorStore.(vectorstore.NativeSearcher); ok {
		logger.Info("Initialized vector store", "type", cfg.VectorStore.Type, "native_search", true)
	} else {
		logger.Info("Initialized vector store", "type", cfg.VectorStore.Type, "native_search", false)
	}

	snapshots, err := snapshot.Providers.New(ctx, cfg.Snapshot.Type, cfg.SnapshotParams())
	if err != nil {
		return nil, fmt.Errorf("snapshot store: %w", err)
	}
	app.Snapshots = snapshots
	logger.Info("Initialized snapshot store", "type", cfg.Snapshot.Type)

	p := opts.Provider
	if p == nil {
		p = openai.New(openai.Options{
			BaseURL:    cfg.Embedding.Endpoint,
			APIKey:     cfg.Embedding.APIKey,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Timeout:    cfg.Embedding.Timeout,
			MaxRetries: -1,
		})
		logger.Info("Initialized embedding provider", "endpoint", cfg.Embedding.Endpoint, "model", cfg.Embedding.Model)
	}
	if p.Dimensions() != app.VectorStore.Dimensions() {
		return nil, fmt.Errorf("embedding dimensions %d do not match vector store dimensions %d", p.Dimensions(), app.VectorStore.Dimensions())
	}

	queryProvider := p
	if cfg.Cache.Type != "" && cfg.Cache.Type != "none" {
		c, err := cache.Providers.New(ctx, cfg.Cache.Type, cfg.CacheParams())
		if err != nil {
			return nil, fmt.Errorf("query cache: %w", err)
		}
		app.QueryCache = c
		queryProvider = cache.Wrap(p, c, logger)
		logger.Info("Initialized query embedding cache", "type", cfg.Cache.Type)
	}

	app.Embeddings = services.NewEmbeddingService(p, app.VectorStore, app.Quizzes, logger, services.EmbeddingOptions{
		MinTextLength:    cfg.Embedding.MinTextLength,
		BatchConcurrency: cfg.Search.BatchConcurrency,
		BatchItemTimeout: cfg.Search.BatchItemTimeout,
	})
	app.Search = search.NewService(queryProvider, app.VectorStore, app.Quizzes, logger, search.Options{
		DefaultLimit:       cfg.Search.DefaultLimit,
		MaxLimit:           cfg.Search.MaxLimit,
		NumCandidates:      cfg.Search.NumCandidates,
		ManualScanLimit:    cfg.Search.ManualScanLimit,
		ManualPageSize:     cfg.Search.ManualPageSize,
		FallbackSimilarity: cfg.Search.Fallback(),
		TierTimeout:        cfg.Search.TierTimeout,
	})
	app.SnapshotService = services.NewSnapshotService(app.VectorStore, app.Snapshots, logger)

	built = true
	return app, nil
}

// Close releases every backend that was created.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.QueryCache != nil {
		errs = append(errs, a.QueryCache.Close())
	}
	if a.Snapshots != nil {
		errs = append(errs, a.Snapshots.Close(ctx))
	}
	if a.VectorStore != nil {
		errs = append(errs, a.VectorStore.Close())
	}
	if a.Quizzes != nil {
		errs = append(errs, a.Quizzes.Close())
	}
	return errors.Join(errs...)
}
