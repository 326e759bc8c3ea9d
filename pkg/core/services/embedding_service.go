// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leseb/quizsearch/pkg/embedding"
	"github.com/leseb/quizsearch/pkg/observability/logging"
	"github.com/leseb/quizsearch/pkg/quiz"
	"github.com/leseb/quizsearch/pkg/vectorstore"
)

// EmbeddingOptions tunes the EmbeddingService.
type EmbeddingOptions struct {
	// MinTextLength is the minimum amount of quiz content, in characters,
	// worth embedding. Zero only rejects quizzes with no content at all.
	MinTextLength int

	// BatchConcurrency bounds parallel provider calls in BatchUpsert.
	BatchConcurrency int

	// BatchItemTimeout bounds each item of a batch independently.
	BatchItemTimeout time.Duration

	// Now overrides the clock used for LastUpdated.
	Now func() time.Time
}

// EmbeddingState describes how a stored embedding relates to its quiz.
type EmbeddingState string

const (
	StateMissing EmbeddingState = "missing"
	StateStale   EmbeddingState = "stale"
	StateCurrent EmbeddingState = "current"
)

// EmbeddingStatus is the result of EmbeddingService.Status.
type EmbeddingStatus struct {
	QuizID      string         `json:"quiz_id"`
	State       EmbeddingState `json:"state"`
	LastUpdated *time.Time     `json:"last_updated,omitempty"`
}

// BatchResult is the outcome of one item of BatchUpsert.
type BatchResult struct {
	QuizID  string `json:"quiz_id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Err     error  `json:"-"`
}

// ReindexProgress is reported after every quiz Reindex visits.
type ReindexProgress struct {
	Scanned  int
	Embedded int
	Failed   int
}

// ReindexReport summarises a Reindex run.
type ReindexReport struct {
	Scanned  int `json:"scanned"`
	Embedded int `json:"embedded"`
	Current  int `json:"current"`
	Failed   int `json:"failed"`
	Removed  int `json:"removed"`
}

// EmbeddingService keeps one QuizEmbedding in sync with each quiz.
type EmbeddingService struct {
	provider embedding.Provider
	store    vectorstore.Backend
	quizzes  quiz.Store
	logger   *logging.Logger
	opts     EmbeddingOptions
}

// NewEmbeddingService creates an EmbeddingService. quizzes is only needed
// by Reindex and may be nil otherwise.
func NewEmbeddingService(p embedding.Provider, store vectorstore.Backend, quizzes quiz.Store, logger *logging.Logger, opts EmbeddingOptions) *EmbeddingService {
	if logger == nil {
		logger = logging.Nop()
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = 4
	}
	if opts.BatchItemTimeout <= 0 {
		opts.BatchItemTimeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &EmbeddingService{
		provider: embedding.Checked(p),
		store:    store,
		quizzes:  quizzes,
		logger:   logger.Component("embeddings"),
		opts:     opts,
	}
}

// Upsert embeds q and writes its embedding, replacing any previous one.
// Provider failures are returned as *embedding.ProviderError.
func (s *EmbeddingService) Upsert(ctx context.Context, q *quiz.Quiz) (*vectorstore.QuizEmbedding, error) {
	if q == nil || q.ID == "" {
		return nil, errors.New("quiz id is required")
	}

	doc := DocumentFromQuiz(q)
	n := ContentLength(doc)
	if n == 0 {
		return nil, embedding.NewProviderError("no text to embed", embedding.ErrEmptyText)
	}
	if n < s.opts.MinTextLength {
		return nil, embedding.NewProviderError(fmt.Sprintf("text too short (%d < %d characters)", n, s.opts.MinTextLength), embedding.ErrEmptyText)
	}

	text := BuildSourceText(doc)
	vec, err := s.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	e := &vectorstore.QuizEmbedding{
		QuizID:      q.ID,
		Vector:      vec,
		SourceText:  text,
		Metadata:    MetadataFromQuiz(q),
		LastUpdated: s.opts.Now().UTC(),
	}
	if err := s.store.Upsert(ctx, e); err != nil {
		return nil, fmt.Errorf("store embedding for quiz %s: %w", q.ID, err)
	}
	return e, nil
}

// Delete removes the embedding for quizID. A missing embedding is not an error.
func (s *EmbeddingService) Delete(ctx context.Context, quizID string) error {
	if err := s.store.Delete(ctx, quizID); err != nil {
		return fmt.Errorf("delete embedding for quiz %s: %w", quizID, err)
	}
	return nil
}

// BatchUpsert embeds every quiz, continuing past failures. Each item runs
// under its own timeout and results are returned in input order.
func (s *EmbeddingService) BatchUpsert(ctx context.Context, quizzes []*quiz.Quiz) []BatchResult {
	results := make([]BatchResult, len(quizzes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.BatchConcurrency)

	for i, q := range quizzes {
		g.Go(func() error {
			itemCtx, cancel := context.WithTimeout(gctx, s.opts.BatchItemTimeout)
			defer cancel()

			res := BatchResult{Success: true}
			if q != nil {
				res.QuizID = q.ID
			}
			if _, err := s.Upsert(itemCtx, q); err != nil {
				res.Success = false
				res.Err = err
				res.Error = err.Error()
				s.logger.Warn("batch embedding failed", "quiz_id", res.QuizID, "error", err)
			}
			results[i] = res
			return nil
		})
	}
	g.Wait()

	return results
}

// Sync is the best-effort hook for quiz create and update. Failures are
// logged and the quiz remains searchable through the keyword tier.
func (s *EmbeddingService) Sync(ctx context.Context, q *quiz.Quiz) {
	if _, err := s.Upsert(ctx, q); err != nil {
		quizID := ""
		if q != nil {
			quizID = q.ID
		}
		s.logger.Warn("quiz embedding not updated", "quiz_id", quizID, "error", err)
	}
}

// Forget is the best-effort hook for quiz deletion.
func (s *EmbeddingService) Forget(ctx context.Context, quizID string) {
	if err := s.Delete(ctx, quizID); err != nil {
		s.logger.Warn("quiz embedding not removed", "quiz_id", quizID, "error", err)
	}
}

// Status compares the stored embedding of q with its current content.
func (s *EmbeddingService) Status(ctx context.Context, q *quiz.Quiz) (*EmbeddingStatus, error) {
	st := &EmbeddingStatus{QuizID: q.ID, State: StateMissing}

	e, err := s.store.Get(ctx, q.ID)
	if errors.Is(err, vectorstore.ErrNotFound) {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load embedding for quiz %s: %w", q.ID, err)
	}

	updated := e.LastUpdated
	st.LastUpdated = &updated
	st.State = StateCurrent
	if e.SourceText != BuildSourceText(DocumentFromQuiz(q)) {
		st.State = StateStale
	}
	return st, nil
}

// Reindex walks the quiz store, embeds quizzes whose embedding is missing
// or stale (or every quiz when force is set), then removes embeddings whose
// quiz no longer exists. progress may be nil.
func (s *EmbeddingService) Reindex(ctx context.Context, force bool, progress func(ReindexProgress)) (*ReindexReport, error) {
	if s.quizzes == nil {
		return nil, errors.New("reindex requires a quiz store")
	}

	report := &ReindexReport{}
	const pageSize = 100

	after := ""
	for {
		page, more, err := s.quizzes.ListQuizzes(ctx, after, pageSize)
		if err != nil {
			return report, fmt.Errorf("list quizzes: %w", err)
		}

		for _, q := range page {
			report.Scanned++
			needed := force
			if !needed {
				st, err := s.Status(ctx, q)
				if err != nil {
					return report, err
				}
				needed = st.State != StateCurrent
			}

			if !needed {
				report.Current++
			} else if _, err := s.Upsert(ctx, q); err != nil {
				report.Failed++
				s.logger.Warn("reindex: embedding failed", "quiz_id", q.ID, "error", err)
			} else {
				report.Embedded++
			}

			if progress != nil {
				progress(ReindexProgress{Scanned: report.Scanned, Embedded: report.Embedded, Failed: report.Failed})
			}
		}

		if !more || len(page) == 0 {
			break
		}
		after = page[len(page)-1].ID
	}

	removed, err := s.sweepDangling(ctx)
	report.Removed = removed
	if err != nil {
		return report, err
	}

	s.logger.Info("reindex complete",
		"scanned", report.Scanned,
		"embedded", report.Embedded,
		"current", report.Current,
		"failed", report.Failed,
		"removed", report.Removed,
	)
	return report, nil
}

// sweepDangling deletes embeddings whose quiz has been deleted.
func (s *EmbeddingService) sweepDangling(ctx context.Context) (int, error) {
	const pageSize = 500
	var dangling []string

	after := ""
	for {
		page, err := s.store.List(ctx, after, pageSize)
		if err != nil {
			return 0, fmt.Errorf("list embeddings: %w", err)
		}
		if len(page) == 0 {
			break
		}

		ids := make([]string, len(page))
		for i, e := range page {
			ids[i] = e.QuizID
		}
		found, err := s.quizzes.FindQuizzes(ctx, ids, quiz.Filter{})
		if err != nil {
			return 0, fmt.Errorf("find quizzes: %w", err)
		}
		exists := make(map[string]bool, len(found))
		for _, q := range found {
			exists[q.ID] = true
		}
		for _, id := range ids {
			if !exists[id] {
				dangling = append(dangling, id)
			}
		}

		if len(page) < pageSize {
			break
		}
		after = page[len(page)-1].QuizID
	}

	for _, id := range dangling {
		if err := s.Delete(ctx, id); err != nil {
			return 0, err
		}
		s.logger.Info("removed dangling embedding", "quiz_id", id)
	}
	return len(dangling), nil
}
