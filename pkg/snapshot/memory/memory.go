// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/leseb/quizsearch/pkg/provider"
	"github.com/leseb/quizsearch/pkg/snapshot"
)

func init() {
	snapshot.Providers.Register("memory", func(_ context.Context, _ provider.Params) (snapshot.Store, error) {
		return New(), nil
	})
}

// compile-time check
var _ snapshot.Store = (*Store)(nil)

type entry struct {
	data      []byte
	createdAt time.Time
}

// Store keeps snapshots in process memory.
type Store struct {
	mu    sync.RWMutex
	blobs map[string]entry
}

// New creates an empty in-memory snapshot store.
func New() *Store {
	return &Store{blobs: make(map[string]entry)}
}

func (s *Store) Put(_ context.Context, name string, data []byte) error {
	if err := snapshot.ValidateName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[name] = entry{data: append([]byte(nil), data...), createdAt: time.Now().UTC()}
	return nil
}

func (s *Store) Get(_ context.Context, name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.blobs[name]
	if !ok {
		return nil, fmt.Errorf("snapshot %s: %w", name, snapshot.ErrNotFound)
	}
	return append([]byte(nil), e.data...), nil
}

func (s *Store) List(_ context.Context) ([]snapshot.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]snapshot.Info, 0, len(s.blobs))
	for name, e := range s.blobs {
		out = append(out, snapshot.Info{Name: name, Bytes: int64(len(e.data)), CreatedAt: e.createdAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Name > out[j].Name
	})
	return out, nil
}

func (s *Store) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[name]; !ok {
		return fmt.Errorf("snapshot %s: %w", name, snapshot.ErrNotFound)
	}
	delete(s.blobs, name)
	return nil
}

func (s *Store) Close(_ context.Context) error { return nil }
