// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/leseb/quizsearch/pkg/provider"
)

func init() {
	Providers.Register("memory", func(_ context.Context, params provider.Params) (Cache, error) {
		maxEntries, err := params.Int("max_entries", 1000)
		if err != nil {
			return nil, err
		}
		ttl, err := params.Duration("ttl", 15*time.Minute)
		if err != nil {
			return nil, err
		}
		return NewMemory(maxEntries, ttl), nil
	})
}

// Memory is an in-process LRU cache with a TTL.
type Memory struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	ll         *list.List
	entries    map[string]*list.Element
	now        func() time.Time
}

type memoryEntry struct {
	key     string
	vec     []float32
	expires time.Time
}

// NewMemory creates an LRU cache holding at most maxEntries vectors for ttl.
func NewMemory(maxEntries int, ttl time.Duration) *Memory {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Memory{
		maxEntries: maxEntries,
		ttl:        ttl,
		ll:         list.New(),
		entries:    make(map[string]*list.Element),
		now:        time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]float32, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	e := el.Value.(*memoryEntry)
	if m.now().After(e.expires) {
		m.ll.Remove(el)
		delete(m.entries, key)
		return nil, false, nil
	}
	m.ll.MoveToFront(el)
	return append([]float32(nil), e.vec...), true, nil
}

func (m *Memory) Set(_ context.Context, key string, vec []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	expires := m.now().Add(m.ttl)
	stored := append([]float32(nil), vec...)
	if el, ok := m.entries[key]; ok {
		e := el.Value.(*memoryEntry)
		e.vec, e.expires = stored, expires
		m.ll.MoveToFront(el)
		return nil
	}

	m.entries[key] = m.ll.PushFront(&memoryEntry{key: key, vec: stored, expires: expires})
	for m.ll.Len() > m.maxEntries {
		oldest := m.ll.Back()
		m.ll.Remove(oldest)
		delete(m.entries, oldest.Value.(*memoryEntry).key)
	}
	return nil
}

// Len returns the number of cached vectors, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ll.Len()
}

func (m *Memory) Close() error { return nil }
