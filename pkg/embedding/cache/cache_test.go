// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/leseb/quizsearch/pkg/embedding/embeddingtest"
	"github.com/leseb/quizsearch/pkg/observability/logging"
)

func TestEncodeDecode(t *testing.T) {
	vec := []float32{0, 1.5, -2.25, 3e-7}
	got, err := decode(encode(vec))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("component %d: got %v, want %v", i, got[i], vec[i])
		}
	}
	if _, err := decode([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated payload")
	}
}

func TestKey(t *testing.T) {
	if Key(768, "algebra") == Key(384, "algebra") {
		t.Error("keys must differ across dimensions")
	}
	if Key(768, "algebra") != Key(768, "algebra") {
		t.Error("keys must be stable")
	}
}

func TestMemory_LRUEviction(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(2, time.Minute)

	m.Set(ctx, "a", []float32{1})
	m.Set(ctx, "b", []float32{2})
	if _, ok, _ := m.Get(ctx, "a"); !ok {
		t.Fatal("expected a to be cached")
	}
	m.Set(ctx, "c", []float32{3})

	if _, ok, _ := m.Get(ctx, "b"); ok {
		t.Error("expected b to be evicted as least recently used")
	}
	if _, ok, _ := m.Get(ctx, "a"); !ok {
		t.Error("expected a to survive eviction")
	}
	if m.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", m.Len())
	}
}

func TestMemory_TTL(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(10, time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.Set(ctx, "k", []float32{1, 2})
	now = now.Add(2 * time.Minute)

	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Error("expected entry to expire")
	}
}

func TestWrap(t *testing.T) {
	ctx := context.Background()
	rec := &embeddingtest.Recorder{Inner: embeddingtest.NewHashing(8)}
	p := Wrap(rec, NewMemory(10, time.Minute), nil)

	first, err := p.Embed(ctx, "solving equations")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	second, err := p.Embed(ctx, "solving equations")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(rec.Calls()) != 1 {
		t.Errorf("expected a single provider call, got %d", len(rec.Calls()))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("cached vector differs at %d", i)
		}
	}
}

func TestWrap_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	rec := &embeddingtest.Recorder{Inner: embeddingtest.NewHashing(8), Err: errors.New("down")}
	mem := NewMemory(10, time.Minute)
	p := Wrap(rec, mem, nil)

	if _, err := p.Embed(ctx, "q"); err == nil {
		t.Fatal("expected provider error")
	}
	if mem.Len() != 0 {
		t.Errorf("failed embeddings must not be cached, got %d entries", mem.Len())
	}
}

// brokenCache fails every operation, like an unreachable Redis.
type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]float32, bool, error) {
	return nil, false, errors.New("dial tcp: connection refused")
}

func (brokenCache) Set(context.Context, string, []float32) error {
	return errors.New("dial tcp: connection refused")
}

func (brokenCache) Close() error { return nil }

func TestWrap_CacheFailuresAreLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Config{Level: "warn", Output: &buf})
	p := Wrap(embeddingtest.NewHashing(8), brokenCache{}, logger)

	vec, err := p.Embed(context.Background(), "solving equations")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 8 {
		t.Errorf("expected 8 dimensions, got %d", len(vec))
	}
	for _, msg := range []string{"Failed to read query cache", "Failed to write query cache"} {
		if !strings.Contains(buf.String(), msg) {
			t.Errorf("expected %q in log, got %s", msg, buf.String())
		}
	}
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("Skipping Redis cache tests: REDIS_TEST_ADDR must be set")
	}
	ctx := context.Background()

	r, err := NewRedis(ctx, RedisOptions{Addr: addr, TTL: time.Minute, KeyPrefix: "quizsearch:test:"})
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	defer r.Close()

	key := Key(3, t.Name())
	if _, ok, err := r.Get(ctx, key+"missing"); err != nil || ok {
		t.Fatalf("Get(missing) = %v, %v; want miss", ok, err)
	}
	if err := r.Set(ctx, key, []float32{1, 2, 3}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	vec, ok, err := r.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v; want hit", ok, err)
	}
	if len(vec) != 3 || vec[2] != 3 {
		t.Errorf("unexpected vector %v", vec)
	}
}
