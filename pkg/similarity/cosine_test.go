// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package similarity

import (
	"errors"
	"math"
	"testing"
)

const epsilon = 1e-9

func approx(a, b float64) bool { return math.Abs(a-b) < epsilon }

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero left", []float32{0, 0, 0}, []float32{1, 2, 3}, 0},
		{"zero right", []float32{1, 2, 3}, []float32{0, 0, 0}, 0},
		{"both zero", []float32{0, 0}, []float32{0, 0}, 0},
		{"empty", []float32{}, []float32{}, 0},
		{"forty five degrees", []float32{1, 0}, []float32{1, 1}, 1 / math.Sqrt2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); !approx(got, tt.want) {
				t.Errorf("Cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCosine_Symmetric(t *testing.T) {
	vectors := [][]float32{
		{0.1, -0.4, 2.5, 7},
		{3, 3, -1, 0.25},
		{-2, 0.5, 0.5, 9},
		{0, 0, 0, 0},
	}
	for i := range vectors {
		for j := range vectors {
			ab := Cosine(vectors[i], vectors[j])
			ba := Cosine(vectors[j], vectors[i])
			if ab != ba {
				t.Errorf("Cosine not symmetric for %d,%d: %v vs %v", i, j, ab, ba)
			}
			if ab < -1 || ab > 1 {
				t.Errorf("Cosine out of range for %d,%d: %v", i, j, ab)
			}
		}
	}
}

func TestCosine_LengthMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on length mismatch")
		}
	}()
	Cosine([]float32{1, 2}, []float32{1, 2, 3})
}

func TestValidate(t *testing.T) {
	if err := Validate([]float32{1, 2, 3}, 3); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	var dimErr *DimensionError
	if err := Validate([]float32{1, 2}, 3); !errors.As(err, &dimErr) {
		t.Errorf("expected DimensionError, got %v", err)
	} else if dimErr.Want != 3 || dimErr.Got != 2 {
		t.Errorf("unexpected dimension error fields: %+v", dimErr)
	}

	nan := float32(math.NaN())
	if err := Validate([]float32{1, nan, 3}, 3); !errors.Is(err, ErrNonFinite) {
		t.Errorf("expected ErrNonFinite for NaN, got %v", err)
	}
	inf := float32(math.Inf(1))
	if err := Validate([]float32{inf}, 1); !errors.Is(err, ErrNonFinite) {
		t.Errorf("expected ErrNonFinite for Inf, got %v", err)
	}
}

func TestTopK(t *testing.T) {
	top := NewTopK(3)
	for _, s := range []Scored{
		{"a", 0.1}, {"b", 0.9}, {"c", 0.5}, {"d", 0.7}, {"e", 0.3}, {"f", 0.7},
	} {
		top.Push(s)
	}

	got := top.Sorted()
	want := []string{"b", "d", "f"}
	if len(got) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: expected %s, got %s (%v)", i, id, got[i].ID, got)
		}
	}
}

func TestTopK_Zero(t *testing.T) {
	top := NewTopK(0)
	top.Push(Scored{"a", 1})
	if top.Len() != 0 {
		t.Errorf("expected empty collector, got %d items", top.Len())
	}
}
