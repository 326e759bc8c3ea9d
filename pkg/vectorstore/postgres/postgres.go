// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package postgres implements vectorstore.Backend on PostgreSQL. When the
// pgvector extension is available, embeddings live in a vector(D) column
// with an HNSW cosine index and NearestNeighbors uses it. Otherwise the
// column falls back to text in pgvector's literal format and searches use
// the manual scan.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/leseb/quizsearch/pkg/provider"
	"github.com/leseb/quizsearch/pkg/vectorstore"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func init() {
	vectorstore.Providers.Register("postgres", func(ctx context.Context, params provider.Params) (vectorstore.Backend, error) {
		dims, err := params.Int("dimensions", 768)
		if err != nil {
			return nil, err
		}
		return New(ctx, Options{
			DSN:        params.String("dsn", ""),
			Table:      params.String("collection", "quiz_embeddings"),
			Dimensions: dims,
		})
	})
}

// compile-time checks
var (
	_ vectorstore.Backend        = (*Backend)(nil)
	_ vectorstore.NativeSearcher = (*Backend)(nil)
)

// Options configures the PostgreSQL backend.
type Options struct {
	DSN        string
	Table      string
	Dimensions int
}

// Backend is a PostgreSQL-backed vector store.
type Backend struct {
	db     *sql.DB
	table  string
	dims   int
	native bool
}

// New connects to PostgreSQL and creates the embeddings table if needed.
func New(ctx context.Context, opts Options) (*Backend, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("postgres vector store: dsn is required")
	}
	if opts.Table == "" {
		opts.Table = "quiz_embeddings"
	}
	db, err := sql.Open("pgx", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	b := &Backend{
		db:    db,
		table: pgx.Identifier{opts.Table}.Sanitize(),
		dims:  opts.Dimensions,
	}
	if err := b.createTables(ctx, opts.Table); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// Native reports whether the table uses a pgvector column.
func (b *Backend) Native() bool { return b.native }

func (b *Backend) createTables(ctx context.Context, table string) error {
	var existing string
	err := b.db.QueryRowContext(ctx, `
		SELECT udt_name FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1 AND column_name = 'embedding'`,
		table).Scan(&existing)
	switch {
	case err == nil:
		b.native = existing == "vector"
		return nil
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("inspect %s: %w", table, err)
	}

	columnType := "TEXT"
	if _, err := b.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err == nil {
		columnType = fmt.Sprintf("vector(%d)", b.dims)
		b.native = true
	}

	_, err = b.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			quiz_id      TEXT PRIMARY KEY,
			embedding    %s NOT NULL,
			source_text  TEXT NOT NULL,
			metadata     JSONB NOT NULL DEFAULT '{}',
			last_updated TIMESTAMPTZ NOT NULL
		)`, b.table, columnType))
	if err != nil {
		return fmt.Errorf("create %s table: %w", table, err)
	}

	if b.native {
		index := pgx.Identifier{table + "_embedding_hnsw"}.Sanitize()
		_, err = b.db.ExecContext(ctx, fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`, index, b.table))
		if err != nil {
			return fmt.Errorf("create hnsw index on %s: %w", table, err)
		}
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

	_, err = b.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (quiz_id, embedding, source_text, metadata, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (quiz_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			source_text = EXCLUDED.source_text,
			metadata = EXCLUDED.metadata,
			last_updated = EXCLUDED.last_updated`, b.table),
		e.QuizID, pgvector.NewVector(e.Vector), e.SourceText, string(meta), e.LastUpdated,
	)
	if err != nil {
		return vectorstore.Unavailable("postgres upsert", err)
	}
	return nil
}

func (b *Backend) Get(ctx context.Context, quizID string) (*vectorstore.QuizEmbedding, error) {
	row := b.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT quiz_id, embedding::text, source_text, metadata::text, last_updated
		FROM %s WHERE quiz_id = $1`, b.table), quizID)

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
	_, err := b.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE quiz_id = $1`, b.table), quizID)
	if err != nil {
		return vectorstore.Unavailable("postgres delete", err)
	}
	return nil
}

func (b *Backend) List(ctx context.Context, after string, limit int) ([]*vectorstore.QuizEmbedding, error) {
	query := fmt.Sprintf(`
		SELECT quiz_id, embedding::text, source_text, metadata::text, last_updated
		FROM %s WHERE quiz_id COLLATE "C" > $1
		ORDER BY quiz_id COLLATE "C"`, b.table)
	args := []any{after}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, vectorstore.Unavailable("postgres list", err)
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
	if err := b.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, b.table)).Scan(&n); err != nil {
		return 0, vectorstore.Unavailable("postgres count", err)
	}
	return n, nil
}

// NearestNeighbors orders rows by pgvector cosine distance. Scores are
// reported as similarity (1 - distance).
func (b *Backend) NearestNeighbors(ctx context.Context, vector []float32, k int) ([]vectorstore.Match, error) {
	if !b.native {
		return nil, vectorstore.ErrNativeSearchUnsupported
	}
	if err := vectorstore.CheckVector("query", vector, b.dims); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 10
	}

	rows, err := b.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT quiz_id, 1 - (embedding <=> $1) AS score
		FROM %s ORDER BY embedding <=> $1 LIMIT $2`, b.table),
		pgvector.NewVector(vector), k)
	if err != nil {
		return nil, vectorstore.Unavailable("postgres nearest neighbors", err)
	}
	defer rows.Close()

	var out []vectorstore.Match
	for rows.Next() {
		var m vectorstore.Match
		if err := rows.Scan(&m.QuizID, &m.Score); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
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
		e    vectorstore.QuizEmbedding
		vec  pgvector.Vector
		meta string
	)
	if err := s.Scan(&e.QuizID, &vec, &e.SourceText, &meta, &e.LastUpdated); err != nil {
		return nil, err
	}
	e.Vector = vec.Slice()
	if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
		return nil, fmt.Errorf("quiz %q: unmarshal metadata: %w", e.QuizID, err)
	}
	e.LastUpdated = e.LastUpdated.UTC()
	return &e, nil
}
