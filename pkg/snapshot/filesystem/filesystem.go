// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leseb/quizsearch/pkg/provider"
	"github.com/leseb/quizsearch/pkg/snapshot"
)

func init() {
	snapshot.Providers.Register("filesystem", func(_ context.Context, params provider.Params) (snapshot.Store, error) {
		return New(params.String("base_dir", "snapshots"))
	})
}

// compile-time check
var _ snapshot.Store = (*Store)(nil)

// Store implements snapshot.Store on a local directory, one file per
// snapshot:
//
//	<baseDir>/<name>
type Store struct {
	baseDir string
}

// New creates a filesystem-backed Store, creating baseDir if it does not exist.
func New(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create base dir %s: %w", baseDir, err)
	}
	return &Store{baseDir: baseDir}, nil
}

// Put writes the snapshot atomically (temp file + rename).
func (s *Store) Put(_ context.Context, name string, data []byte) error {
	if err := snapshot.ValidateName(name); err != nil {
		return err
	}
	path := filepath.Join(s.baseDir, name)
	tmp := filepath.Join(s.baseDir, "."+name+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

func (s *Store) Get(_ context.Context, name string) ([]byte, error) {
	if err := snapshot.ValidateName(name); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", name, snapshot.ErrNotFound)
	}
	data, err := os.ReadFile(filepath.Join(s.baseDir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("snapshot %s: %w", name, snapshot.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

func (s *Store) List(_ context.Context) ([]snapshot.Info, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read base dir: %w", err)
	}

	var out []snapshot.Info
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, snapshot.Info{
			Name:      e.Name(),
			Bytes:     fi.Size(),
			CreatedAt: fi.ModTime().UTC(),
		})
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
	if err := snapshot.ValidateName(name); err != nil {
		return fmt.Errorf("snapshot %s: %w", name, snapshot.ErrNotFound)
	}
	err := os.Remove(filepath.Join(s.baseDir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("snapshot %s: %w", name, snapshot.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	return nil
}

// Close is a no-op for the filesystem store.
func (s *Store) Close(_ context.Context) error { return nil }
