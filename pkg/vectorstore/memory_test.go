// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package vectorstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/leseb/quizsearch/pkg/vectorstore"
	"github.com/leseb/quizsearch/pkg/vectorstore/vectorstoretest"
)

func TestMemoryBackend(t *testing.T) {
	vectorstoretest.RunConformanceTests(t, func(t *testing.T, dims int) vectorstore.Backend {
		return vectorstore.NewMemoryBackend(dims)
	})
}

func TestMemoryBackend_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	b := vectorstore.NewMemoryBackend(4)

	e := vectorstoretest.NewEmbedding("quiz_a", 1, 2, 3, 4)
	if err := b.Upsert(ctx, e); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	e.Vector[0] = 99

	got, err := b.Get(ctx, "quiz_a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Vector[0] != 1 {
		t.Errorf("stored vector aliased caller slice: %v", got.Vector)
	}
}

func TestCheckVector(t *testing.T) {
	if err := vectorstore.CheckVector("q", []float32{1, 2}, 2); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	var dm *vectorstore.DimensionMismatchError
	if err := vectorstore.CheckVector("q", []float32{1}, 2); !errors.As(err, &dm) || dm.QuizID != "q" {
		t.Errorf("expected DimensionMismatchError for q, got %v", err)
	}
}

func TestUnavailable(t *testing.T) {
	err := vectorstore.Unavailable("upsert", errors.New("connection refused"))
	if !errors.Is(err, vectorstore.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestProvidersRegistersMemory(t *testing.T) {
	b, err := vectorstore.Providers.New(context.Background(), "memory", map[string]string{"dimensions": "8"})
	if err != nil {
		t.Fatalf("Providers.New: %v", err)
	}
	if b.Dimensions() != 8 {
		t.Errorf("expected 8 dimensions, got %d", b.Dimensions())
	}
}
