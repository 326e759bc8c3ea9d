// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package embedding defines the text-to-vector provider consumed by the
// lifecycle manager and the search tiers.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/leseb/quizsearch/pkg/similarity"
)

// ErrEmptyText is returned when there is nothing to embed.
var ErrEmptyText = errors.New("empty text")

// Provider maps text to a fixed-length vector.
type Provider interface {
	// Embed returns the embedding of text. Failures are *ProviderError.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the configured vector length.
	Dimensions() int
}

// ProviderError reports that the provider could not produce a usable vector:
// empty input, outage, rate limiting, or a malformed response.
type ProviderError struct {
	Reason string
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("embedding provider: %s: %v", e.Reason, e.Err)
	}
	return "embedding provider: " + e.Reason
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError wraps err with a reason.
func NewProviderError(reason string, err error) *ProviderError {
	return &ProviderError{Reason: reason, Err: err}
}

// IsProviderError reports whether err is, or wraps, a *ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// Checked wraps a provider so that empty input is rejected before the call
// and every returned vector is validated against the configured dimensions.
func Checked(p Provider) Provider {
	if _, ok := p.(checked); ok {
		return p
	}
	return checked{p}
}

type checked struct {
	Provider
}

func (c checked) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, NewProviderError("no text to embed", ErrEmptyText)
	}
	vec, err := c.Provider.Embed(ctx, text)
	if err != nil {
		if IsProviderError(err) {
			return nil, err
		}
		return nil, NewProviderError("request failed", err)
	}
	if len(vec) == 0 {
		return nil, NewProviderError("empty vector returned", nil)
	}
	if err := similarity.Validate(vec, c.Dimensions()); err != nil {
		return nil, NewProviderError("unusable vector returned", err)
	}
	return vec, nil
}
