// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package embeddingtest provides deterministic embedding providers for tests.
package embeddingtest

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/leseb/quizsearch/pkg/embedding"
)

// Func is the signature of an embedding call.
type Func func(ctx context.Context, text string) ([]float32, error)

// FuncProvider adapts a function to embedding.Provider.
type FuncProvider struct {
	Dims int
	Fn   Func
}

func (p FuncProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return p.Fn(ctx, text)
}

func (p FuncProvider) Dimensions() int { return p.Dims }

// Hashing embeds text as a bag of words, hashing each token onto one of
// dims buckets. Identical text always yields identical vectors.
type Hashing struct {
	dims int
}

// NewHashing creates a hashing provider with the given dimensionality.
func NewHashing(dims int) *Hashing {
	return &Hashing{dims: dims}
}

func (h *Hashing) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dims)
	for _, tok := range Tokens(text) {
		f := fnv.New32a()
		f.Write([]byte(tok))
		vec[int(f.Sum32())%h.dims]++
	}
	return vec, nil
}

func (h *Hashing) Dimensions() int { return h.dims }

// Topics embeds text by counting keywords per topic: component i is the
// number of tokens belonging to topic i. Texts about the same topic point
// in the same direction regardless of length.
type Topics struct {
	dims  int
	index map[string]int
}

// NewTopics creates a topic provider. Each entry of topics is a keyword
// list; keyword matching ignores case and a trailing plural "s".
func NewTopics(dims int, topics ...[]string) *Topics {
	if len(topics) > dims {
		panic("embeddingtest: more topics than dimensions")
	}
	index := make(map[string]int)
	for i, words := range topics {
		for _, w := range words {
			index[stem(strings.ToLower(w))] = i
		}
	}
	return &Topics{dims: dims, index: index}
}

func (t *Topics) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, t.dims)
	for _, tok := range Tokens(text) {
		if i, ok := t.index[stem(tok)]; ok {
			vec[i]++
		}
	}
	return vec, nil
}

func (t *Topics) Dimensions() int { return t.dims }

// Recorder wraps a provider and counts calls. Set Err to make every call fail.
type Recorder struct {
	Inner embedding.Provider

	mu    sync.Mutex
	calls []string
	Err   error
}

func (r *Recorder) Embed(ctx context.Context, text string) ([]float32, error) {
	r.mu.Lock()
	r.calls = append(r.calls, text)
	err := r.Err
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.Inner.Embed(ctx, text)
}

func (r *Recorder) Dimensions() int { return r.Inner.Dimensions() }

// Calls returns the texts passed to Embed so far.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Tokens lower-cases text and splits it on anything that is not a letter or digit.
func Tokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func stem(w string) string {
	if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
		return w[:len(w)-1]
	}
	return w
}
