// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/leseb/quizsearch/pkg/provider"
	"github.com/leseb/quizsearch/pkg/quiz"
)

func init() {
	quiz.Providers.Register("memory", func(_ context.Context, _ provider.Params) (quiz.WritableStore, error) {
		return New(), nil
	})
}

// compile-time check
var _ quiz.WritableStore = (*Store)(nil)

// Store is an in-memory quiz store
type Store struct {
	mu      sync.RWMutex
	quizzes map[string]*quiz.Quiz
}

// New creates a new in-memory quiz store
func New() *Store {
	return &Store{
		quizzes: make(map[string]*quiz.Quiz),
	}
}

// SaveQuiz inserts or replaces a quiz
func (s *Store) SaveQuiz(ctx context.Context, q *quiz.Quiz) error {
	if q.ID == "" {
		return fmt.Errorf("quiz id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.quizzes[q.ID] = clone(q)
	return nil
}

// DeleteQuiz removes a quiz
func (s *Store) DeleteQuiz(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.quizzes[id]; !exists {
		return fmt.Errorf("quiz %s: %w", id, quiz.ErrNotFound)
	}
	delete(s.quizzes, id)
	return nil
}

// GetQuiz retrieves a quiz by ID
func (s *Store) GetQuiz(ctx context.Context, id string) (*quiz.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, exists := s.quizzes[id]
	if !exists {
		return nil, fmt.Errorf("quiz %s: %w", id, quiz.ErrNotFound)
	}
	return clone(q), nil
}

// FindQuizzes returns the existing quizzes among ids that pass the filter
func (s *Store) FindQuizzes(ctx context.Context, ids []string, filter quiz.Filter) ([]*quiz.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*quiz.Quiz, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		q, exists := s.quizzes[id]
		if !exists || !filter.Matches(q) {
			continue
		}
		out = append(out, clone(q))
	}
	return out, nil
}

// SearchText matches quizzes by keyword, ordered by ID
func (s *Store) SearchText(ctx context.Context, tq quiz.TextQuery) ([]*quiz.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*quiz.Quiz
	for _, id := range s.sortedIDs() {
		q := s.quizzes[id]
		if tq.Status != "" && q.Status != tq.Status {
			continue
		}
		if !quiz.MatchesText(q, tq.Text) {
			continue
		}
		out = append(out, clone(q))
		if tq.Limit > 0 && len(out) >= tq.Limit {
			break
		}
	}
	return out, nil
}

// ListQuizzes pages through quizzes ordered by ID
func (s *Store) ListQuizzes(ctx context.Context, after string, limit int) ([]*quiz.Quiz, bool, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.sortedIDs()
	start := sort.SearchStrings(ids, after)
	if start < len(ids) && ids[start] == after {
		start++
	}

	var out []*quiz.Quiz
	for _, id := range ids[start:] {
		if len(out) == limit {
			return out, true, nil
		}
		out = append(out, clone(s.quizzes[id]))
	}
	return out, false, nil
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}

func (s *Store) sortedIDs() []string {
	ids := make([]string, 0, len(s.quizzes))
	for id := range s.quizzes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func clone(q *quiz.Quiz) *quiz.Quiz {
	c := *q
	c.Tags = append([]string(nil), q.Tags...)
	c.Questions = make([]quiz.Question, len(q.Questions))
	for i, question := range q.Questions {
		question.Options = append([]string(nil), question.Options...)
		c.Questions[i] = question
	}
	return &c
}
