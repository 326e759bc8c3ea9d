// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leseb/quizsearch/pkg/embedding"
	"github.com/leseb/quizsearch/pkg/embedding/embeddingtest"
	"github.com/leseb/quizsearch/pkg/quiz"
	quizmemory "github.com/leseb/quizsearch/pkg/quiz/memory"
	"github.com/leseb/quizsearch/pkg/quiz/quiztest"
	"github.com/leseb/quizsearch/pkg/vectorstore"
)

const testDims = 16

func newTestService(t *testing.T, p embedding.Provider) (*EmbeddingService, *vectorstore.MemoryBackend, *quizmemory.Store) {
	t.Helper()
	store := vectorstore.NewMemoryBackend(testDims)
	quizzes := quizmemory.New()
	svc := NewEmbeddingService(p, store, quizzes, nil, EmbeddingOptions{
		Now: func() time.Time { return time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC) },
	})
	return svc, store, quizzes
}

func TestEmbeddingService_UpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t, embeddingtest.NewHashing(testDims))
	q := quiztest.NewQuiz("q1", "Intro to Algebra", "math")

	first, err := svc.Upsert(ctx, q)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	second, err := svc.Upsert(ctx, q)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if first.SourceText != second.SourceText {
		t.Errorf("source text changed between identical upserts")
	}
	n, _ := store.Count(ctx)
	if n != 1 {
		t.Errorf("expected exactly one embedding, got %d", n)
	}

	stored, err := store.Get(ctx, "q1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(stored.Vector) != testDims {
		t.Errorf("expected %d components, got %d", testDims, len(stored.Vector))
	}
	if stored.Metadata.QuestionCount != 1 || stored.Metadata.Category != "General" {
		t.Errorf("unexpected metadata: %+v", stored.Metadata)
	}
	if stored.SourceText != BuildSourceText(DocumentFromQuiz(q)) {
		t.Errorf("stored source text does not match builder output")
	}
}

func TestEmbeddingService_RejectsWrongDimension(t *testing.T) {
	ctx := context.Background()
	short := embeddingtest.FuncProvider{
		Dims: testDims,
		Fn: func(context.Context, string) ([]float32, error) {
			return make([]float32, testDims-1), nil
		},
	}
	svc, store, _ := newTestService(t, short)

	_, err := svc.Upsert(ctx, quiztest.NewQuiz("q1", "Geometry"))
	if !embedding.IsProviderError(err) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if n, _ := store.Count(ctx); n != 0 {
		t.Errorf("no embedding should be stored, got %d", n)
	}
}

func TestEmbeddingService_EmptyContent(t *testing.T) {
	rec := &embeddingtest.Recorder{Inner: embeddingtest.NewHashing(testDims)}
	svc, _, _ := newTestService(t, rec)

	_, err := svc.Upsert(context.Background(), &quiz.Quiz{ID: "empty"})
	if !errors.Is(err, embedding.ErrEmptyText) || !embedding.IsProviderError(err) {
		t.Fatalf("expected ProviderError wrapping ErrEmptyText, got %v", err)
	}
	if len(rec.Calls()) != 0 {
		t.Errorf("provider must not be called for empty content")
	}
}

func TestEmbeddingService_MinTextLength(t *testing.T) {
	store := vectorstore.NewMemoryBackend(testDims)
	svc := NewEmbeddingService(embeddingtest.NewHashing(testDims), store, nil, nil, EmbeddingOptions{MinTextLength: 1000})

	_, err := svc.Upsert(context.Background(), quiztest.NewQuiz("q1", "Short"))
	if !embedding.IsProviderError(err) {
		t.Fatalf("expected ProviderError for short content, got %v", err)
	}
}

func TestEmbeddingService_DeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t, embeddingtest.NewHashing(testDims))

	if err := svc.Delete(ctx, "never"); err != nil {
		t.Fatalf("Delete of missing embedding: %v", err)
	}
	if _, err := svc.Upsert(ctx, quiztest.NewQuiz("q1", "Algebra")); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := svc.Delete(ctx, "q1"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
	}
	if n, _ := store.Count(ctx); n != 0 {
		t.Errorf("expected zero records, got %d", n)
	}
}

func TestEmbeddingService_BatchPartialFailure(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t, embeddingtest.NewHashing(testDims))

	q2 := &quiz.Quiz{ID: "q2", Status: quiz.StatusPublished}
	results := svc.BatchUpsert(ctx, []*quiz.Quiz{
		quiztest.NewQuiz("q1", "Algebra"),
		q2,
		quiztest.NewQuiz("q3", "Geometry"),
	})

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, want := range []struct {
		id string
		ok bool
	}{{"q1", true}, {"q2", false}, {"q3", true}} {
		if results[i].QuizID != want.id || results[i].Success != want.ok {
			t.Errorf("result %d: got %+v, want id=%s success=%v", i, results[i], want.id, want.ok)
		}
	}
	if !embedding.IsProviderError(results[1].Err) || results[1].Error == "" {
		t.Errorf("expected provider error for q2, got %+v", results[1])
	}
	if n, _ := store.Count(ctx); n != 2 {
		t.Errorf("expected 2 stored embeddings, got %d", n)
	}
}

func TestEmbeddingService_BatchItemTimeout(t *testing.T) {
	ctx := context.Background()
	var slow atomic.Int32
	p := embeddingtest.FuncProvider{
		Dims: testDims,
		Fn: func(ctx context.Context, text string) ([]float32, error) {
			if slow.Add(1) == 1 {
				<-ctx.Done()
				return nil, ctx.Err()
			}
			return embeddingtest.NewHashing(testDims).Embed(ctx, text)
		},
	}
	store := vectorstore.NewMemoryBackend(testDims)
	svc := NewEmbeddingService(p, store, nil, nil, EmbeddingOptions{
		BatchConcurrency: 1,
		BatchItemTimeout: 50 * time.Millisecond,
	})

	results := svc.BatchUpsert(ctx, []*quiz.Quiz{
		quiztest.NewQuiz("slow", "Algebra"),
		quiztest.NewQuiz("fast", "Geometry"),
	})
	if results[0].Success {
		t.Errorf("expected the slow item to time out")
	}
	if !results[1].Success {
		t.Errorf("expected the second item to succeed after the first timed out: %+v", results[1])
	}
}

func TestEmbeddingService_SyncSwallowsErrors(t *testing.T) {
	rec := &embeddingtest.Recorder{Inner: embeddingtest.NewHashing(testDims), Err: errors.New("provider down")}
	svc, store, _ := newTestService(t, rec)

	svc.Sync(context.Background(), quiztest.NewQuiz("q1", "Algebra"))
	svc.Forget(context.Background(), "q1")

	if n, _ := store.Count(context.Background()); n != 0 {
		t.Errorf("expected no embedding after failed sync, got %d", n)
	}
}

func TestEmbeddingService_Status(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, embeddingtest.NewHashing(testDims))
	q := quiztest.NewQuiz("q1", "Algebra")

	st, err := svc.Status(ctx, q)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.State != StateMissing || st.LastUpdated != nil {
		t.Errorf("expected missing, got %+v", st)
	}

	if _, err := svc.Upsert(ctx, q); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if st, _ := svc.Status(ctx, q); st.State != StateCurrent {
		t.Errorf("expected current, got %s", st.State)
	}

	q.Title = "Advanced Algebra"
	if st, _ := svc.Status(ctx, q); st.State != StateStale {
		t.Errorf("expected stale after title change, got %s", st.State)
	}
}

func TestEmbeddingService_Reindex(t *testing.T) {
	ctx := context.Background()
	rec := &embeddingtest.Recorder{Inner: embeddingtest.NewHashing(testDims)}
	svc, store, quizzes := newTestService(t, rec)

	current := quiztest.NewQuiz("a", "Algebra")
	stale := quiztest.NewQuiz("b", "Biology")
	missing := quiztest.NewQuiz("c", "Chemistry")
	for _, q := range []*quiz.Quiz{current, stale, missing} {
		if err := quizzes.SaveQuiz(ctx, q); err != nil {
			t.Fatalf("SaveQuiz: %v", err)
		}
	}
	for _, q := range []*quiz.Quiz{current, stale, quiztest.NewQuiz("gone", "Deleted quiz")} {
		if _, err := svc.Upsert(ctx, q); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	stale.Title = "Marine Biology"
	if err := quizzes.SaveQuiz(ctx, stale); err != nil {
		t.Fatalf("SaveQuiz: %v", err)
	}

	var updates int
	report, err := svc.Reindex(ctx, false, func(ReindexProgress) { updates++ })
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}

	if report.Scanned != 3 || report.Current != 1 || report.Embedded != 2 || report.Removed != 1 || report.Failed != 0 {
		t.Errorf("unexpected report: %+v", report)
	}
	if updates != 3 {
		t.Errorf("expected 3 progress updates, got %d", updates)
	}
	if _, err := store.Get(ctx, "gone"); !errors.Is(err, vectorstore.ErrNotFound) {
		t.Errorf("dangling embedding not removed: %v", err)
	}
	if st, _ := svc.Status(ctx, stale); st.State != StateCurrent {
		t.Errorf("stale quiz not re-embedded: %s", st.State)
	}
}

func TestEmbeddingService_ReindexRequiresQuizStore(t *testing.T) {
	svc := NewEmbeddingService(embeddingtest.NewHashing(testDims), vectorstore.NewMemoryBackend(testDims), nil, nil, EmbeddingOptions{})
	if _, err := svc.Reindex(context.Background(), false, nil); err == nil {
		t.Error("expected error without a quiz store")
	}
}
