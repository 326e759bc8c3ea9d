// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package embedding_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/leseb/quizsearch/pkg/embedding"
	"github.com/leseb/quizsearch/pkg/embedding/embeddingtest"
	"github.com/leseb/quizsearch/pkg/similarity"
)

func TestChecked(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		fn      embeddingtest.Func
		text    string
		wantOK  bool
		wantErr error
	}{
		{
			name:   "valid vector",
			fn:     func(context.Context, string) ([]float32, error) { return []float32{1, 0, 0}, nil },
			text:   "algebra",
			wantOK: true,
		},
		{
			name:    "empty text",
			fn:      func(context.Context, string) ([]float32, error) { return []float32{1, 0, 0}, nil },
			text:    "   ",
			wantErr: embedding.ErrEmptyText,
		},
		{
			name: "outage",
			fn:   func(context.Context, string) ([]float32, error) { return nil, errors.New("connection refused") },
			text: "algebra",
		},
		{
			name: "zero length vector",
			fn:   func(context.Context, string) ([]float32, error) { return []float32{}, nil },
			text: "algebra",
		},
		{
			name: "wrong dimensions",
			fn:   func(context.Context, string) ([]float32, error) { return []float32{1, 2}, nil },
			text: "algebra",
		},
		{
			name: "NaN component",
			fn: func(context.Context, string) ([]float32, error) {
				return []float32{1, float32(math.NaN()), 0}, nil
			},
			text:    "algebra",
			wantErr: similarity.ErrNonFinite,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := embedding.Checked(embeddingtest.FuncProvider{Dims: 3, Fn: tt.fn})
			vec, err := p.Embed(ctx, tt.text)
			if tt.wantOK {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if len(vec) != 3 {
					t.Errorf("expected 3 dims, got %d", len(vec))
				}
				return
			}
			if !embedding.IsProviderError(err) {
				t.Fatalf("expected *ProviderError, got %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected error wrapping %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestChecked_DimensionError(t *testing.T) {
	p := embedding.Checked(embeddingtest.FuncProvider{Dims: 4, Fn: func(context.Context, string) ([]float32, error) {
		return []float32{1, 2, 3}, nil
	}})
	_, err := p.Embed(context.Background(), "text")

	var dimErr *similarity.DimensionError
	if !errors.As(err, &dimErr) {
		t.Fatalf("expected DimensionError in chain, got %v", err)
	}
	if dimErr.Want != 4 || dimErr.Got != 3 {
		t.Errorf("unexpected dimension error: %+v", dimErr)
	}
}

func TestChecked_Idempotent(t *testing.T) {
	p := embedding.Checked(embeddingtest.NewHashing(8))
	if embedding.Checked(p) != p {
		t.Error("wrapping a checked provider twice should return it unchanged")
	}
}
