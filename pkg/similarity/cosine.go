// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package similarity implements the vector math used by the manual search
// tier and by store-side validation.
package similarity

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrNonFinite is returned by Validate for vectors containing NaN or Inf.
var ErrNonFinite = errors.New("vector contains non-finite component")

// DimensionError reports a vector whose length differs from the expected one.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Want, e.Got)
}

// Cosine returns the cosine similarity of a and b in [-1, 1]. A zero vector
// has similarity 0 with everything. Callers must pass equal-length vectors;
// a length mismatch panics.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("similarity: cosine of vectors with lengths %d and %d", len(a), len(b)))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	s := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Rounding can push identical vectors a hair past 1.
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

// Validate checks that vec has exactly dim finite components.
func Validate(vec []float32, dim int) error {
	if len(vec) != dim {
		return &DimensionError{Want: dim, Got: len(vec)}
	}
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("component %d: %w", i, ErrNonFinite)
		}
	}
	return nil
}

// Scored pairs an identifier with its similarity score.
type Scored struct {
	ID    string
	Score float64
}

// TopK accumulates the k highest scored items without keeping the rest.
type TopK struct {
	k int
	h minHeap
}

// NewTopK creates a collector for the k best items. k <= 0 keeps nothing.
func NewTopK(k int) *TopK {
	if k < 0 {
		k = 0
	}
	return &TopK{k: k, h: make(minHeap, 0, k)}
}

// Push offers an item to the collector.
func (t *TopK) Push(s Scored) {
	if t.k == 0 {
		return
	}
	if len(t.h) < t.k {
		heap.Push(&t.h, s)
		return
	}
	if less(t.h[0], s) {
		t.h[0] = s
		heap.Fix(&t.h, 0)
	}
}

// Len returns the number of items currently held.
func (t *TopK) Len() int { return len(t.h) }

// Sorted returns the collected items, best first. Ties are broken by ID so
// the order is deterministic.
func (t *TopK) Sorted() []Scored {
	out := make([]Scored, len(t.h))
	copy(out, t.h)
	SortDesc(out)
	return out
}

// SortDesc sorts scored items by descending score, then ascending ID.
func SortDesc(items []Scored) {
	sort.SliceStable(items, func(i, j int) bool {
		return less(items[j], items[i])
	})
}

// less orders a before b when a is the worse result.
func less(a, b Scored) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.ID > b.ID
}

type minHeap []Scored

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return less(h[i], h[j]) }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *minHeap) Push(x any) { *h = append(*h, x.(Scored)) }

func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
