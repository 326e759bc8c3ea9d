// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"go.etcd.io/bbolt"

	"github.com/leseb/quizsearch/pkg/vectorstore"
	"github.com/leseb/quizsearch/pkg/vectorstore/vectorstoretest"
)

func TestBoltBackend(t *testing.T) {
	vectorstoretest.RunConformanceTests(t, func(t *testing.T, dims int) vectorstore.Backend {
		b, err := New(filepath.Join(t.TempDir(), "vectors.bolt"), dims)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		return b
	})
}

func TestBoltBackend_CorruptRecord(t *testing.T) {
	ctx := context.Background()
	b, err := New(filepath.Join(t.TempDir(), "vectors.bolt"), 4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer b.Close()

	if err := b.Upsert(ctx, vectorstoretest.NewEmbedding("quiz_a", 1, 0, 0, 0)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	err = b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEmbeddings).Put([]byte("quiz_b"), []byte("{not json"))
	})
	if err != nil {
		t.Fatalf("put corrupt record: %v", err)
	}

	all, err := b.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
	if all[1].QuizID != "quiz_b" || all[1].Vector != nil {
		t.Errorf("expected quiz_b with nil vector, got %+v", all[1])
	}

	got, err := b.Get(ctx, "quiz_b")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SourceText != "" {
		t.Errorf("expected empty source text for corrupt record, got %q", got.SourceText)
	}
}
