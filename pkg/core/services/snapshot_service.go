// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/leseb/quizsearch/pkg/observability/logging"
	"github.com/leseb/quizsearch/pkg/snapshot"
	"github.com/leseb/quizsearch/pkg/vectorstore"
)

// ExportResult describes a written snapshot.
type ExportResult struct {
	Name       string `json:"name"`
	Embeddings int    `json:"embeddings"`
	Bytes      int    `json:"bytes"`
}

// RestoreResult describes a restored snapshot.
type RestoreResult struct {
	Name     string `json:"name"`
	Restored int    `json:"restored"`
	Skipped  int    `json:"skipped"`
}

// SnapshotService exports embeddings as JSON lines and restores them
// without calling the embedding provider.
type SnapshotService struct {
	store     vectorstore.Backend
	snapshots snapshot.Store
	logger    *logging.Logger
}

// NewSnapshotService creates a SnapshotService.
func NewSnapshotService(store vectorstore.Backend, snapshots snapshot.Store, logger *logging.Logger) *SnapshotService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &SnapshotService{
		store:     store,
		snapshots: snapshots,
		logger:    logger.Component("snapshots"),
	}
}

// Export writes every stored embedding to a new snapshot.
func (s *SnapshotService) Export(ctx context.Context) (*ExportResult, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)

	const pageSize = 500
	count := 0
	after := ""
	for {
		page, err := s.store.List(ctx, after, pageSize)
		if err != nil {
			return nil, fmt.Errorf("list embeddings: %w", err)
		}
		for _, e := range page {
			if err := enc.Encode(e); err != nil {
				return nil, fmt.Errorf("encode embedding %s: %w", e.QuizID, err)
			}
			count++
		}
		if len(page) < pageSize {
			break
		}
		after = page[len(page)-1].QuizID
	}

	name := "embeddings-" + uuid.NewString() + ".jsonl"
	if err := s.snapshots.Put(ctx, name, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("write snapshot %s: %w", name, err)
	}

	s.logger.Info("snapshot exported", "name", name, "embeddings", count)
	return &ExportResult{Name: name, Embeddings: count, Bytes: buf.Len()}, nil
}

// Restore upserts every embedding in the named snapshot. Records whose
// dimensionality does not match the store are skipped and logged.
func (s *SnapshotService) Restore(ctx context.Context, name string) (*RestoreResult, error) {
	data, err := s.snapshots.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	res := &RestoreResult{Name: name}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}

		var e vectorstore.QuizEmbedding
		if err := json.Unmarshal(raw, &e); err != nil {
			return res, fmt.Errorf("snapshot %s line %d: %w", name, line, err)
		}

		err := s.store.Upsert(ctx, &e)
		var dm *vectorstore.DimensionMismatchError
		switch {
		case err == nil:
			res.Restored++
		case errors.As(err, &dm), errors.Is(err, vectorstore.ErrInvalidVector):
			res.Skipped++
			s.logger.Warn("snapshot record skipped", "quiz_id", e.QuizID, "error", err)
		default:
			return res, fmt.Errorf("restore %s: %w", e.QuizID, err)
		}
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("read snapshot %s: %w", name, err)
	}

	s.logger.Info("snapshot restored", "name", name, "restored", res.Restored, "skipped", res.Skipped)
	return res, nil
}

// List returns the available snapshots, newest first.
func (s *SnapshotService) List(ctx context.Context) ([]snapshot.Info, error) {
	return s.snapshots.List(ctx)
}
