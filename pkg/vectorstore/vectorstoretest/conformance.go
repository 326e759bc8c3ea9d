// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package vectorstoretest provides a shared conformance test suite for
// vectorstore.Backend implementations. Each backend should call
// RunConformanceTests from its own _test.go file.
package vectorstoretest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/leseb/quizsearch/pkg/vectorstore"
)

// Dims is the vector length the suite asks backends for.
const Dims = 4

// NewEmbedding returns an embedding fixture for quizID with the given vector.
func NewEmbedding(quizID string, vec ...float32) *vectorstore.QuizEmbedding {
	return &vectorstore.QuizEmbedding{
		QuizID:     quizID,
		Vector:     vec,
		SourceText: "Source for " + quizID,
		Metadata: vectorstore.Metadata{
			Category:      "Math",
			Tags:          []string{"algebra", "equations"},
			Difficulty:    "easy",
			Language:      "en",
			QuestionCount: 3,
		},
		LastUpdated: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// RunConformanceTests exercises a Backend implementation against the shared
// contract. newBackend is called once per sub-test with Dims.
func RunConformanceTests(t *testing.T, newBackend func(t *testing.T, dims int) vectorstore.Backend) {
	t.Helper()

	t.Run("UpsertAndGet", func(t *testing.T) {
		b := newBackend(t, Dims)
		defer b.Close()
		ctx := context.Background()

		e := NewEmbedding("quiz_a", 0.1, 0.2, 0.3, 0.4)
		if err := b.Upsert(ctx, e); err != nil {
			t.Fatalf("Upsert: %v", err)
		}

		got, err := b.Get(ctx, "quiz_a")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.QuizID != e.QuizID || got.SourceText != e.SourceText {
			t.Errorf("Get returned unexpected embedding: %+v", got)
		}
		if len(got.Vector) != Dims {
			t.Fatalf("expected %d components, got %d", Dims, len(got.Vector))
		}
		for i := range e.Vector {
			if math.Abs(float64(got.Vector[i]-e.Vector[i])) > 1e-6 {
				t.Errorf("component %d: expected %v, got %v", i, e.Vector[i], got.Vector[i])
			}
		}
		if got.Metadata.Category != "Math" || got.Metadata.QuestionCount != 3 || len(got.Metadata.Tags) != 2 {
			t.Errorf("metadata not round-tripped: %+v", got.Metadata)
		}
		if !got.LastUpdated.Equal(e.LastUpdated) {
			t.Errorf("LastUpdated: expected %v, got %v", e.LastUpdated, got.LastUpdated)
		}
	})

	t.Run("UpsertReplaces", func(t *testing.T) {
		b := newBackend(t, Dims)
		defer b.Close()
		ctx := context.Background()

		if err := b.Upsert(ctx, NewEmbedding("quiz_r", 1, 0, 0, 0)); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		second := NewEmbedding("quiz_r", 0, 1, 0, 0)
		second.SourceText = "updated"
		if err := b.Upsert(ctx, second); err != nil {
			t.Fatalf("Upsert: %v", err)
		}

		n, err := b.Count(ctx)
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 record after two upserts, got %d", n)
		}
		got, err := b.Get(ctx, "quiz_r")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.SourceText != "updated" || got.Vector[1] != 1 {
			t.Errorf("expected second write to win, got %+v", got)
		}
	})

	t.Run("RejectsWrongDimension", func(t *testing.T) {
		b := newBackend(t, Dims)
		defer b.Close()
		ctx := context.Background()

		err := b.Upsert(ctx, NewEmbedding("quiz_d", 1, 2, 3))
		var dm *vectorstore.DimensionMismatchError
		if !errors.As(err, &dm) {
			t.Fatalf("expected DimensionMismatchError, got %v", err)
		}
		if dm.Want != Dims || dm.Got != 3 {
			t.Errorf("unexpected mismatch details: %+v", dm)
		}
		if _, err := b.Get(ctx, "quiz_d"); !errors.Is(err, vectorstore.ErrNotFound) {
			t.Errorf("rejected embedding must not be stored, Get returned %v", err)
		}
	})

	t.Run("RejectsNonFinite", func(t *testing.T) {
		b := newBackend(t, Dims)
		defer b.Close()

		nan := float32(math.NaN())
		err := b.Upsert(context.Background(), NewEmbedding("quiz_nan", 1, nan, 0, 0))
		if !errors.Is(err, vectorstore.ErrInvalidVector) {
			t.Fatalf("expected ErrInvalidVector, got %v", err)
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		b := newBackend(t, Dims)
		defer b.Close()

		if _, err := b.Get(context.Background(), "nope"); !errors.Is(err, vectorstore.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("DeleteIdempotent", func(t *testing.T) {
		b := newBackend(t, Dims)
		defer b.Close()
		ctx := context.Background()

		if err := b.Delete(ctx, "never_stored"); err != nil {
			t.Fatalf("Delete of missing embedding: %v", err)
		}
		if err := b.Upsert(ctx, NewEmbedding("quiz_del", 1, 1, 1, 1)); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		for i := 0; i < 2; i++ {
			if err := b.Delete(ctx, "quiz_del"); err != nil {
				t.Fatalf("Delete #%d: %v", i+1, err)
			}
		}
		n, err := b.Count(ctx)
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if n != 0 {
			t.Errorf("expected 0 records, got %d", n)
		}
	})

	t.Run("ListPaginated", func(t *testing.T) {
		b := newBackend(t, Dims)
		defer b.Close()
		ctx := context.Background()

		for i := 5; i >= 1; i-- {
			id := fmt.Sprintf("quiz_%02d", i)
			if err := b.Upsert(ctx, NewEmbedding(id, float32(i), 0, 0, 1)); err != nil {
				t.Fatalf("Upsert %s: %v", id, err)
			}
		}

		var seen []string
		after := ""
		for {
			page, err := b.List(ctx, after, 2)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(page) == 0 {
				break
			}
			if len(page) > 2 {
				t.Fatalf("page exceeds limit: %d", len(page))
			}
			for _, e := range page {
				seen = append(seen, e.QuizID)
				if len(e.Vector) != Dims {
					t.Errorf("%s: listed vector has %d components", e.QuizID, len(e.Vector))
				}
			}
			after = page[len(page)-1].QuizID
		}

		want := []string{"quiz_01", "quiz_02", "quiz_03", "quiz_04", "quiz_05"}
		if fmt.Sprint(seen) != fmt.Sprint(want) {
			t.Errorf("expected %v, got %v", want, seen)
		}
	})

	t.Run("NearestNeighbors", func(t *testing.T) {
		b := newBackend(t, Dims)
		defer b.Close()
		ctx := context.Background()

		ns, ok := b.(vectorstore.NativeSearcher)
		if !ok {
			t.Skip("backend has no native search")
		}

		fixtures := []*vectorstore.QuizEmbedding{
			NewEmbedding("quiz_x", 1, 0, 0, 0),
			NewEmbedding("quiz_xy", 1, 1, 0, 0),
			NewEmbedding("quiz_z", 0, 0, 1, 0),
		}
		for _, e := range fixtures {
			if err := b.Upsert(ctx, e); err != nil {
				t.Fatalf("Upsert: %v", err)
			}
		}

		matches, err := ns.NearestNeighbors(ctx, []float32{1, 0.1, 0, 0}, 2)
		if errors.Is(err, vectorstore.ErrNativeSearchUnsupported) {
			t.Skip("native search not provisioned")
		}
		if err != nil {
			t.Fatalf("NearestNeighbors: %v", err)
		}
		if len(matches) != 2 {
			t.Fatalf("expected 2 matches, got %d", len(matches))
		}
		if matches[0].QuizID != "quiz_x" || matches[1].QuizID != "quiz_xy" {
			t.Errorf("unexpected order: %+v", matches)
		}
		if matches[0].Score < matches[1].Score {
			t.Errorf("scores not descending: %+v", matches)
		}
	})
}
