// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package vectorstore

import (
	"context"
	"sort"
	"sync"

	"github.com/leseb/quizsearch/pkg/provider"
)

func init() {
	Providers.Register("memory", func(_ context.Context, params provider.Params) (Backend, error) {
		dims, err := params.Int("dimensions", 768)
		if err != nil {
			return nil, err
		}
		return NewMemoryBackend(dims), nil
	})
}

// MemoryBackend keeps embeddings in a map. It has no vector index, so
// searches against it run through the manual cosine scan.
type MemoryBackend struct {
	mu   sync.RWMutex
	dims int
	data map[string]*QuizEmbedding
}

// NewMemoryBackend creates an empty in-memory backend for vectors of dims components.
func NewMemoryBackend(dims int) *MemoryBackend {
	return &MemoryBackend{
		dims: dims,
		data: make(map[string]*QuizEmbedding),
	}
}

func (m *MemoryBackend) Dimensions() int { return m.dims }

func (m *MemoryBackend) Upsert(_ context.Context, e *QuizEmbedding) error {
	if err := Validate(e, m.dims); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[e.QuizID] = e.Clone()
	return nil
}

func (m *MemoryBackend) Get(_ context.Context, quizID string) (*QuizEmbedding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data[quizID]
	if !ok {
		return nil, ErrNotFound
	}
	return e.Clone(), nil
}

func (m *MemoryBackend) Delete(_ context.Context, quizID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, quizID)
	return nil
}

func (m *MemoryBackend) List(_ context.Context, after string, limit int) ([]*QuizEmbedding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.data))
	for id := range m.data {
		if id > after {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]*QuizEmbedding, len(ids))
	for i, id := range ids {
		out[i] = m.data[id].Clone()
	}
	return out, nil
}

func (m *MemoryBackend) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data), nil
}

func (m *MemoryBackend) Close() error { return nil }
