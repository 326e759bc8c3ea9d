// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlite implements an embedded vectorstore.Backend on SQLite.
// Vectors are stored as little-endian float32 blobs; there is no vector
// index, so searches use the manual cosine scan.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/leseb/quizsearch/pkg/provider"
	"github.com/leseb/quizsearch/pkg/vectorstore"

	_ "modernc.org/sqlite"
)

func init() {
	vectorstore.Providers.Register("sqlite", func(ctx context.Context, params provider.Params) (vectorstore.Backend, error) {
		dims, err := params.Int("dimensions", 768)
		if err != nil {
			return nil, err
		}
		return New(ctx, params.String("path", "quizsearch.db"), dims)
	})
}

// compile-time check
var _ vectorstore.Backend = (*Backend)(nil)

// Backend stores embeddings in a single SQLite table.
type Backend struct {
	db   *sql.DB
	dims int
}

// New opens (or creates) the database at path.
func New(ctx context.Context, path string, dims int) (*Backend, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("sqlite open %s: %w", path, err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent batch upserts.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}

	b := &Backend{db: db, dims: dims}
	if err := b.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backend) migrate(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS quiz_embeddings (
			quiz_id      TEXT PRIMARY KEY,
			vector       BLOB NOT NULL,
			dimensions   INTEGER NOT NULL,
			source_text  TEXT NOT NULL,
			metadata     TEXT NOT NULL DEFAULT '{}',
			last_updated INTEGER NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("create quiz_embeddings table: %w", err)
	}
	return nil
}

func (b *Backend) Dimensions() int { return b.dims }

func (b *Backend) Upsert(ctx context.Context, e *vectorstore.QuizEmbedding) error {
	if err := vectorstore.Validate(e, b.dims); err != nil {
		return err
	}
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = b.db.ExecContext(ctx, `
		INSERT INTO quiz_embeddings (quiz_id, vector, dimensions, source_text, metadata, last_updated)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(quiz_id) DO UPDATE SET
			vector = excluded.vector,
			dimensions = excluded.dimensions,
			source_text = excluded.source_text,
			metadata = excluded.metadata,
			last_updated = excluded.last_updated`,
		e.QuizID, encodeVector(e.Vector), len(e.Vector), e.SourceText, string(meta), e.LastUpdated.UnixNano(),
	)
	if err != nil {
		return vectorstore.Unavailable("sqlite upsert", err)
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, quizID string) (*vectorstore.QuizEmbedding, error) {
	row := b.db.QueryRowContext(ctx, `
		SELECT quiz_id, vector, source_text, metadata, last_updated
		FROM quiz_embeddings WHERE quiz_id = ?`, quizID)

	e, err := scanEmbedding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vectorstore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (b *Backend) Delete(ctx context.Context, quizID string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM quiz_embeddings WHERE quiz_id = ?`, quizID); err != nil {
		return vectorstore.Unavailable("sqlite delete", err)
	}
	return nil
}

func (b *Backend) List(ctx context.Context, after string, limit int) ([]*vectorstore.QuizEmbedding, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := b.db.QueryContext(ctx, `
		SELECT quiz_id, vector, source_text, metadata, last_updated
		FROM quiz_embeddings WHERE quiz_id > ?
		ORDER BY quiz_id LIMIT ?`, after, limit)
	if err != nil {
		return nil, vectorstore.Unavailable("sqlite list", err)
	}
	defer rows.Close()

	var out []*vectorstore.QuizEmbedding
	for rows.Next() {
		e, err := scanEmbedding(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (b *Backend) Count(ctx context.Context) (int, error) {
	var n int
	if err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quiz_embeddings`).Scan(&n); err != nil {
		return 0, vectorstore.Unavailable("sqlite count", err)
	}
	return n, nil
}

// Close closes the underlying database connection.
func (b *Backend) Close() error {
	return b.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEmbedding(s scanner) (*vectorstore.QuizEmbedding, error) {
	var (
		e       vectorstore.QuizEmbedding
		blob    []byte
		meta    string
		updated int64
	)
	if err := s.Scan(&e.QuizID, &blob, &e.SourceText, &meta, &updated); err != nil {
		return nil, err
	}
	// A corrupt row is returned with a nil vector or empty metadata so one
	// bad record does not fail a whole List; readers skip it on validation.
	if vec, err := decodeVector(blob); err == nil {
		e.Vector = vec
	}
	if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
		e.Metadata = vectorstore.Metadata{}
	}
	e.LastUpdated = time.Unix(0, updated).UTC()
	return &e, nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("vector blob has %d bytes, not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}
