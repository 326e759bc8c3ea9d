// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package cache memoises query embeddings so repeated searches do not pay
// for a provider round trip.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"

	"github.com/leseb/quizsearch/pkg/embedding"
	"github.com/leseb/quizsearch/pkg/observability/logging"
	"github.com/leseb/quizsearch/pkg/provider"
)

// Providers is the registry of cache backend implementations.
var Providers = provider.NewRegistry[Cache]("cache")

// Cache stores vectors by key.
type Cache interface {
	// Get returns the cached vector and whether it was present.
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vec []float32) error
	Close() error
}

// Key derives the cache key for text embedded at dims dimensions.
func Key(dims int, text string) string {
	h := sha256.New()
	h.Write([]byte(strconv.Itoa(dims)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// Wrap returns a provider that consults c before calling p. Cache failures
// are logged and degrade to a direct provider call.
func Wrap(p embedding.Provider, c Cache, logger *logging.Logger) embedding.Provider {
	if c == nil {
		return p
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &cachedProvider{inner: p, cache: c, logger: logger.Component("query_cache")}
}

type cachedProvider struct {
	inner  embedding.Provider
	cache  Cache
	logger *logging.Logger
}

func (p *cachedProvider) Dimensions() int { return p.inner.Dimensions() }

func (p *cachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	key := Key(p.inner.Dimensions(), text)
	vec, ok, err := p.cache.Get(ctx, key)
	switch {
	case err != nil:
		p.logger.Warn("Failed to read query cache", "error", err)
	case ok && len(vec) == p.inner.Dimensions():
		return vec, nil
	}

	vec, err = p.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := p.cache.Set(ctx, key, vec); err != nil {
		p.logger.Warn("Failed to write query cache", "error", err)
	}
	return vec, nil
}

// encode packs a vector as little-endian float32s.
func encode(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decode(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("cached vector has %d bytes, not a multiple of 4", len(buf))
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec, nil
}
