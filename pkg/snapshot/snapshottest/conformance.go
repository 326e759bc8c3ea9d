// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshottest provides a shared conformance test suite for
// snapshot.Store implementations. Each backend should call
// RunConformanceTests from its own _test.go file.
package snapshottest

import (
	"context"
	"errors"
	"testing"

	"github.com/leseb/quizsearch/pkg/snapshot"
)

// RunConformanceTests exercises a Store implementation against the shared
// contract. The newStore function is called once per sub-test to provide an
// isolated store instance.
func RunConformanceTests(t *testing.T, newStore func(t *testing.T) snapshot.Store) {
	t.Helper()

	t.Run("PutAndGet", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		data := []byte("{\"quiz_id\":\"q1\"}\n")
		if err := store.Put(ctx, "snap-1.jsonl", data); err != nil {
			t.Fatalf("Put: %v", err)
		}

		got, err := store.Get(ctx, "snap-1.jsonl")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(got) != string(data) {
			t.Errorf("expected %q, got %q", data, got)
		}
	})

	t.Run("PutOverwrites", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		if err := store.Put(ctx, "snap.jsonl", []byte("old")); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if err := store.Put(ctx, "snap.jsonl", []byte("new")); err != nil {
			t.Fatalf("Put: %v", err)
		}
		got, err := store.Get(ctx, "snap.jsonl")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(got) != "new" {
			t.Errorf("expected overwrite, got %q", got)
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())

		_, err := store.Get(context.Background(), "missing.jsonl")
		if !errors.Is(err, snapshot.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("RejectsInvalidName", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())

		for _, name := range []string{"", "../escape", "a/b", ".hidden"} {
			if err := store.Put(context.Background(), name, []byte("x")); !errors.Is(err, snapshot.ErrInvalidName) {
				t.Errorf("Put(%q): expected ErrInvalidName, got %v", name, err)
			}
		}
	})

	t.Run("List", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		for _, name := range []string{"a.jsonl", "b.jsonl"} {
			if err := store.Put(ctx, name, []byte(name)); err != nil {
				t.Fatalf("Put %s: %v", name, err)
			}
		}

		infos, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(infos) != 2 {
			t.Fatalf("expected 2 snapshots, got %d", len(infos))
		}
		sizes := map[string]int64{}
		for _, info := range infos {
			sizes[info.Name] = info.Bytes
		}
		if sizes["a.jsonl"] != 7 || sizes["b.jsonl"] != 7 {
			t.Errorf("unexpected listing: %+v", infos)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		if err := store.Put(ctx, "del.jsonl", []byte("x")); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if err := store.Delete(ctx, "del.jsonl"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := store.Get(ctx, "del.jsonl"); !errors.Is(err, snapshot.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := store.Delete(ctx, "del.jsonl"); !errors.Is(err, snapshot.ErrNotFound) {
			t.Errorf("expected ErrNotFound deleting twice, got %v", err)
		}
	})
}
