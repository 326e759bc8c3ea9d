// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leseb/quizsearch/pkg/core/config"
	"github.com/leseb/quizsearch/pkg/embedding/embeddingtest"
	"github.com/leseb/quizsearch/pkg/quiz/quiztest"
	"github.com/leseb/quizsearch/pkg/search"
)

func TestBuild_Defaults(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Type = "memory"
	p := embeddingtest.NewHashing(cfg.Embedding.Dimensions)

	app, err := Build(context.Background(), cfg, nil, Options{Provider: p})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer app.Close(context.Background())

	if app.QueryCache == nil {
		t.Error("expected a query cache")
	}

	ctx := context.Background()
	q := quiztest.NewQuiz("q1", "Intro to Algebra", "math")
	if err := app.Quizzes.SaveQuiz(ctx, q); err != nil {
		t.Fatalf("SaveQuiz: %v", err)
	}
	if _, err := app.Embeddings.Upsert(ctx, q); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	resp, err := app.Search.Search(ctx, "algebra", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Tier != search.TierManual || len(resp.Results) != 1 {
		t.Errorf("unexpected response %+v", resp)
	}

	exported, err := app.SnapshotService.Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if exported.Embeddings != 1 {
		t.Errorf("expected 1 exported embedding, got %d", exported.Embeddings)
	}
}

func TestBuild_SQLite(t *testing.T) {
	cfg := config.Default()
	cfg.VectorStore.Type = "sqlite"
	cfg.VectorStore.Path = filepath.Join(t.TempDir(), "vectors.db")
	cfg.Embedding.Dimensions = 32

	app, err := Build(context.Background(), cfg, nil, Options{Provider: embeddingtest.NewHashing(32)})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer app.Close(context.Background())

	if got := app.VectorStore.Dimensions(); got != 32 {
		t.Errorf("expected 32 dimensions, got %d", got)
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		dims    int
		wantErr string
	}{
		{
			name:    "unknown vector store",
			mutate:  func(c *config.Config) { c.VectorStore.Type = "cassandra" },
			dims:    768,
			wantErr: "vector store",
		},
		{
			name:    "unknown quiz store",
			mutate:  func(c *config.Config) { c.QuizStore.Type = "mongo" },
			dims:    768,
			wantErr: "quiz store",
		},
		{
			name:    "unknown cache",
			mutate:  func(c *config.Config) { c.Cache.Type = "memcached" },
			dims:    768,
			wantErr: "query cache",
		},
		{
			name:    "dimension mismatch",
			mutate:  func(c *config.Config) {},
			dims:    16,
			wantErr: "do not match",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			_, err := Build(context.Background(), cfg, nil, Options{Provider: embeddingtest.NewHashing(tt.dims)})
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
