// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/leseb/quizsearch/pkg/provider"
	"github.com/leseb/quizsearch/pkg/similarity"
)

// Providers is the registry of vector store backend implementations.
// Import implementation packages with blank imports to register them:
//
//	import _ "github.com/leseb/quizsearch/pkg/vectorstore/milvus"
var Providers = provider.NewRegistry[Backend]("vector_store")

var (
	// ErrNotFound is returned by Get when no embedding exists for a quiz.
	ErrNotFound = errors.New("embedding not found")

	// ErrInvalidVector is returned for vectors with NaN or Inf components.
	ErrInvalidVector = errors.New("invalid vector")

	// ErrStoreUnavailable wraps connection and query failures of the backing store.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrRecordTooLarge is returned by Upsert when a field exceeds what the
	// backend can store without truncation.
	ErrRecordTooLarge = errors.New("embedding record too large")

	// ErrNativeSearchUnsupported is returned by NearestNeighbors when the
	// backend has no usable vector index.
	ErrNativeSearchUnsupported = errors.New("native vector search not supported")
)

// DimensionMismatchError reports a vector whose length differs from the
// store's configured dimensionality.
type DimensionMismatchError struct {
	QuizID string
	Want   int
	Got    int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding for quiz %q has %d dimensions, expected %d", e.QuizID, e.Got, e.Want)
}

// Metadata is the denormalised quiz snapshot stored next to a vector.
type Metadata struct {
	Category      string   `json:"category,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Difficulty    string   `json:"difficulty,omitempty"`
	Language      string   `json:"language,omitempty"`
	QuestionCount int      `json:"question_count"`
}

// QuizEmbedding is the single vector record kept for a quiz.
type QuizEmbedding struct {
	QuizID      string    `json:"quiz_id"`
	Vector      []float32 `json:"vector"`
	SourceText  string    `json:"source_text"`
	Metadata    Metadata  `json:"metadata"`
	LastUpdated time.Time `json:"last_updated"`
}

// Clone returns a deep copy of e.
func (e *QuizEmbedding) Clone() *QuizEmbedding {
	c := *e
	c.Vector = append([]float32(nil), e.Vector...)
	c.Metadata.Tags = append([]string(nil), e.Metadata.Tags...)
	return &c
}

// Match is a quiz id scored by a backend's native similarity metric.
type Match struct {
	QuizID string
	Score  float64
}

// Backend stores one QuizEmbedding per quiz id.
type Backend interface {
	// Dimensions returns the vector length enforced on write.
	Dimensions() int

	// Upsert creates or replaces the embedding for e.QuizID.
	Upsert(ctx context.Context, e *QuizEmbedding) error

	// Get returns the embedding for quizID or ErrNotFound.
	Get(ctx context.Context, quizID string) (*QuizEmbedding, error)

	// Delete removes the embedding for quizID. Deleting a missing
	// embedding is not an error.
	Delete(ctx context.Context, quizID string) error

	// List returns up to limit embeddings with quiz ids strictly greater
	// than after, ordered by quiz id.
	List(ctx context.Context, after string, limit int) ([]*QuizEmbedding, error)

	// Count returns the number of stored embeddings.
	Count(ctx context.Context) (int, error)

	// Close releases any resources held by the backend.
	Close() error
}

// NativeSearcher is implemented by backends with an approximate nearest
// neighbour index. Scores use cosine similarity, higher is closer.
type NativeSearcher interface {
	NearestNeighbors(ctx context.Context, vector []float32, k int) ([]Match, error)
}

// CheckVector validates vec against dim for the given quiz, translating
// similarity errors into the store's error types.
func CheckVector(quizID string, vec []float32, dim int) error {
	err := similarity.Validate(vec, dim)
	if err == nil {
		return nil
	}
	var de *similarity.DimensionError
	if errors.As(err, &de) {
		return &DimensionMismatchError{QuizID: quizID, Want: de.Want, Got: de.Got}
	}
	return fmt.Errorf("quiz %q: %w: %v", quizID, ErrInvalidVector, err)
}

// Validate checks an embedding before it is written.
func Validate(e *QuizEmbedding, dim int) error {
	if e == nil || e.QuizID == "" {
		return errors.New("embedding requires a quiz id")
	}
	return CheckVector(e.QuizID, e.Vector, dim)
}

// Unavailable wraps err so errors.Is(err, ErrStoreUnavailable) holds.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}
