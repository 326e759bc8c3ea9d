// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"testing"
	"time"
)

type fakeBackend struct {
	path string
	dims int
}

func TestRegistry_RegisterAndNew(t *testing.T) {
	r := NewRegistry[*fakeBackend]("vector_store")
	r.Register("sqlite", func(_ context.Context, params Params) (*fakeBackend, error) {
		dims, err := params.Int("dimensions", 768)
		if err != nil {
			return nil, err
		}
		return &fakeBackend{path: params.String("path", "quizsearch.db"), dims: dims}, nil
	})

	b, err := r.New(context.Background(), "sqlite", Params{"path": "/tmp/e.db"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.path != "/tmp/e.db" {
		t.Errorf("expected path '/tmp/e.db', got %q", b.path)
	}
	if b.dims != 768 {
		t.Errorf("expected default dims 768, got %d", b.dims)
	}
}

func TestRegistry_NilParams(t *testing.T) {
	r := NewRegistry[*fakeBackend]("vector_store")
	r.Register("memory", func(_ context.Context, params Params) (*fakeBackend, error) {
		return &fakeBackend{path: params.String("path", "mem")}, nil
	})

	b, err := r.New(context.Background(), "memory", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.path != "mem" {
		t.Errorf("expected default path, got %q", b.path)
	}
}

func TestRegistry_UnknownProvider(t *testing.T) {
	r := NewRegistry[*fakeBackend]("quiz_store")
	r.Register("memory", func(_ context.Context, _ Params) (*fakeBackend, error) {
		return &fakeBackend{}, nil
	})

	_, err := r.New(context.Background(), "mongo", nil)
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	want := `unknown quiz_store provider: "mongo" (available: [memory])`
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestRegistry_Available(t *testing.T) {
	r := NewRegistry[*fakeBackend]("test")
	r.Register("postgres", func(_ context.Context, _ Params) (*fakeBackend, error) {
		return &fakeBackend{}, nil
	})
	r.Register("milvus", func(_ context.Context, _ Params) (*fakeBackend, error) {
		return &fakeBackend{}, nil
	})

	avail := r.Available()
	if len(avail) != 2 || avail[0] != "milvus" || avail[1] != "postgres" {
		t.Errorf("Available() = %v, want [milvus postgres]", avail)
	}
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry[*fakeBackend]("test")
	r.Register("dup", func(_ context.Context, _ Params) (*fakeBackend, error) {
		return &fakeBackend{}, nil
	})

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	r.Register("dup", func(_ context.Context, _ Params) (*fakeBackend, error) {
		return &fakeBackend{}, nil
	})
}

func TestParams(t *testing.T) {
	p := Params{"limit": "25", "ttl": "90s", "bad": "x", "empty": ""}

	if n, err := p.Int("limit", 10); err != nil || n != 25 {
		t.Errorf("Int(limit) = %d, %v; want 25, nil", n, err)
	}
	if n, err := p.Int("missing", 10); err != nil || n != 10 {
		t.Errorf("Int(missing) = %d, %v; want 10, nil", n, err)
	}
	if _, err := p.Int("bad", 0); err == nil {
		t.Error("Int(bad) expected error")
	}
	if d, err := p.Duration("ttl", time.Second); err != nil || d != 90*time.Second {
		t.Errorf("Duration(ttl) = %v, %v; want 90s, nil", d, err)
	}
	if d, err := p.Duration("empty", time.Minute); err != nil || d != time.Minute {
		t.Errorf("Duration(empty) = %v, %v; want 1m, nil", d, err)
	}
	if s := p.String("empty", "def"); s != "def" {
		t.Errorf("String(empty) = %q, want def", s)
	}
}
