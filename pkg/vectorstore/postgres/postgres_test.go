// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"

	"github.com/leseb/quizsearch/pkg/vectorstore"
	"github.com/leseb/quizsearch/pkg/vectorstore/vectorstoretest"
)

var tableSeq atomic.Int64

func TestPostgresBackend(t *testing.T) {
	dsn := os.Getenv("VECTOR_STORE_TEST_DSN")
	if dsn == "" {
		t.Skip("Skipping PostgreSQL vector store tests: VECTOR_STORE_TEST_DSN must be set")
	}

	vectorstoretest.RunConformanceTests(t, func(t *testing.T, dims int) vectorstore.Backend {
		ctx := context.Background()
		table := fmt.Sprintf("quiz_embeddings_test_%d_%d", os.Getpid(), tableSeq.Add(1))

		b, err := New(ctx, Options{DSN: dsn, Table: table, Dimensions: dims})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		t.Cleanup(func() {
			cleanup, err := New(ctx, Options{DSN: dsn, Table: table, Dimensions: dims})
			if err != nil {
				return
			}
			defer cleanup.Close()
			cleanup.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+cleanup.table)
		})
		return b
	})
}
