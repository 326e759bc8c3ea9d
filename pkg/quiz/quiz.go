// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package quiz defines the quiz documents the search subsystem reads and the
// store interface it consumes them through.
package quiz

import (
	"context"
	"errors"
	"time"

	"github.com/leseb/quizsearch/pkg/provider"
)

// ErrNotFound is returned when a quiz does not exist.
var ErrNotFound = errors.New("quiz not found")

// Providers is the registry of quiz store backend implementations.
// Import implementation packages with blank imports to register them:
//
//	import _ "github.com/leseb/quizsearch/pkg/quiz/memory"
//	import _ "github.com/leseb/quizsearch/pkg/quiz/postgres"
var Providers = provider.NewRegistry[WritableStore]("quiz_store")

// Status is the publication state of a quiz.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Quiz is the authoritative quiz document.
type Quiz struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Tags        []string   `json:"tags"`
	Difficulty  string     `json:"difficulty"`
	Language    string     `json:"language"`
	Status      Status     `json:"status"`
	Questions   []Question `json:"questions"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Question is a single multiple-choice question.
type Question struct {
	Text        string   `json:"text"`
	Options     []string `json:"options"`
	Explanation string   `json:"explanation,omitempty"`
}

// Published reports whether the quiz may surface in search results.
func (q *Quiz) Published() bool {
	return q != nil && q.Status == StatusPublished
}

// Filter restricts FindQuizzes results. An empty Status matches all quizzes.
type Filter struct {
	Status Status
}

// Matches reports whether q passes the filter.
func (f Filter) Matches(q *Quiz) bool {
	return f.Status == "" || q.Status == f.Status
}

// TextQuery is a case-insensitive substring match over title, description,
// category and tags.
type TextQuery struct {
	Text   string
	Status Status
	Limit  int
}

// Store is the read side of the quiz store consumed by search and embedding
// maintenance.
type Store interface {
	// GetQuiz returns the quiz or an error wrapping ErrNotFound.
	GetQuiz(ctx context.Context, id string) (*Quiz, error)

	// FindQuizzes returns the quizzes among ids that exist and match the
	// filter. Missing ids are skipped silently. Order is unspecified.
	FindQuizzes(ctx context.Context, ids []string, filter Filter) ([]*Quiz, error)

	// SearchText performs keyword matching for the text fallback tier.
	SearchText(ctx context.Context, q TextQuery) ([]*Quiz, error)

	// ListQuizzes pages through all quizzes ordered by ID.
	ListQuizzes(ctx context.Context, after string, limit int) ([]*Quiz, bool, error)

	Close() error
}

// WritableStore adds the writes used by imports and tests. Quiz CRUD itself
// belongs to the surrounding application.
type WritableStore interface {
	Store
	SaveQuiz(ctx context.Context, q *Quiz) error
	DeleteQuiz(ctx context.Context, id string) error
}
