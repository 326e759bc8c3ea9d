// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package bolt implements an embedded vectorstore.Backend on bbolt.
package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/leseb/quizsearch/pkg/provider"
	"github.com/leseb/quizsearch/pkg/vectorstore"
)

func init() {
	vectorstore.Providers.Register("bolt", func(_ context.Context, params provider.Params) (vectorstore.Backend, error) {
		dims, err := params.Int("dimensions", 768)
		if err != nil {
			return nil, err
		}
		return New(params.String("path", "quizsearch.bolt"), dims)
	})
}

// compile-time check
var _ vectorstore.Backend = (*Backend)(nil)

var bucketEmbeddings = []byte("quiz_embeddings")

// Backend keeps one JSON record per quiz id in a bbolt bucket. Keys are
// byte-ordered, which gives List its ordering for free.
type Backend struct {
	db   *bbolt.DB
	dims int
}

// New opens (or creates) the bbolt file at path.
func New(path string, dims int) (*Backend, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEmbeddings)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create embeddings bucket: %w", err)
	}

	return &Backend{db: db, dims: dims}, nil
}

func (b *Backend) Dimensions() int { return b.dims }

func (b *Backend) Upsert(_ context.Context, e *vectorstore.QuizEmbedding) error {
	if err := vectorstore.Validate(e, b.dims); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEmbeddings).Put([]byte(e.QuizID), data)
	})
}

func (b *Backend) Get(_ context.Context, quizID string) (*vectorstore.QuizEmbedding, error) {
	var e *vectorstore.QuizEmbedding
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketEmbeddings).Get([]byte(quizID))
		if data == nil {
			return vectorstore.ErrNotFound
		}
		e = decode(quizID, data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (b *Backend) Delete(_ context.Context, quizID string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEmbeddings).Delete([]byte(quizID))
	})
}

func (b *Backend) List(_ context.Context, after string, limit int) ([]*vectorstore.QuizEmbedding, error) {
	var out []*vectorstore.QuizEmbedding
	err := b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketEmbeddings).Cursor()

		k, v := c.Seek([]byte(after))
		if k != nil && after != "" && bytes.Equal(k, []byte(after)) {
			k, v = c.Next()
		}
		for ; k != nil; k, v = c.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			out = append(out, decode(string(k), v))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Backend) Count(_ context.Context) (int, error) {
	var n int
	err := b.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketEmbeddings).Stats().KeyN
		return nil
	})
	return n, err
}

// Close closes the bbolt file.
func (b *Backend) Close() error {
	return b.db.Close()
}

// decode never fails: an undecodable record comes back with only its quiz
// id set, so vector validation skips it instead of failing the scan.
func decode(quizID string, data []byte) *vectorstore.QuizEmbedding {
	var e vectorstore.QuizEmbedding
	if err := json.Unmarshal(data, &e); err != nil {
		return &vectorstore.QuizEmbedding{QuizID: quizID}
	}
	if e.QuizID == "" {
		e.QuizID = quizID
	}
	return &e
}
