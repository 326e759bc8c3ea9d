// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package memory_test

import (
	"context"
	"testing"

	"github.com/leseb/quizsearch/pkg/quiz"
	"github.com/leseb/quizsearch/pkg/quiz/memory"
	"github.com/leseb/quizsearch/pkg/quiz/quiztest"
)

func TestMemoryConformance(t *testing.T) {
	quiztest.RunConformanceTests(t, func(t *testing.T) quiz.WritableStore {
		return memory.New()
	})
}

func TestGetQuiz_ReturnsCopy(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	if err := s.SaveQuiz(ctx, quiztest.NewQuiz("q1", "Biology", "cells")); err != nil {
		t.Fatalf("SaveQuiz: %v", err)
	}

	got, err := s.GetQuiz(ctx, "q1")
	if err != nil {
		t.Fatalf("GetQuiz: %v", err)
	}
	got.Tags[0] = "mutated"
	got.Questions[0].Options[0] = "mutated"

	again, err := s.GetQuiz(ctx, "q1")
	if err != nil {
		t.Fatalf("GetQuiz: %v", err)
	}
	if again.Tags[0] != "cells" || again.Questions[0].Options[0] == "mutated" {
		t.Errorf("store leaked internal state: %+v", again)
	}
}
