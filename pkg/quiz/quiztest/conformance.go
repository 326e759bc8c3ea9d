// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package quiztest provides a shared conformance test suite for
// quiz.WritableStore implementations and fixtures used across packages.
package quiztest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/leseb/quizsearch/pkg/quiz"
)

// NewQuiz returns a small published quiz fixture.
func NewQuiz(id, title string, tags ...string) *quiz.Quiz {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &quiz.Quiz{
		ID:          id,
		Title:       title,
		Description: "A quiz about " + title,
		Category:    "General",
		Tags:        tags,
		Difficulty:  "medium",
		Language:    "en",
		Status:      quiz.StatusPublished,
		Questions: []quiz.Question{
			{
				Text:        "Which statement about " + title + " is true?",
				Options:     []string{"The first one", "The second one", "Neither"},
				Explanation: "The first one is the textbook definition.",
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// RunConformanceTests exercises a WritableStore implementation against the
// shared contract. newStore is called once per sub-test.
func RunConformanceTests(t *testing.T, newStore func(t *testing.T) quiz.WritableStore) {
	t.Helper()

	t.Run("SaveAndGet", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		q := NewQuiz("quiz_get1", "Intro to Algebra", "math", "equations")
		if err := store.SaveQuiz(ctx, q); err != nil {
			t.Fatalf("SaveQuiz: %v", err)
		}

		got, err := store.GetQuiz(ctx, q.ID)
		if err != nil {
			t.Fatalf("GetQuiz: %v", err)
		}
		if got.Title != q.Title || got.Status != q.Status || len(got.Tags) != 2 {
			t.Errorf("GetQuiz returned unexpected quiz: %+v", got)
		}
		if len(got.Questions) != 1 || len(got.Questions[0].Options) != 3 {
			t.Errorf("questions not round-tripped: %+v", got.Questions)
		}
		if got.Questions[0].Explanation != q.Questions[0].Explanation {
			t.Errorf("explanation mismatch: %q", got.Questions[0].Explanation)
		}
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		q := NewQuiz("quiz_rep1", "Geometry")
		if err := store.SaveQuiz(ctx, q); err != nil {
			t.Fatalf("SaveQuiz: %v", err)
		}
		q.Title = "Euclidean Geometry"
		if err := store.SaveQuiz(ctx, q); err != nil {
			t.Fatalf("second SaveQuiz: %v", err)
		}

		got, err := store.GetQuiz(ctx, q.ID)
		if err != nil {
			t.Fatalf("GetQuiz: %v", err)
		}
		if got.Title != "Euclidean Geometry" {
			t.Errorf("expected updated title, got %q", got.Title)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		if _, err := store.GetQuiz(ctx, "quiz_missing"); !errors.Is(err, quiz.ErrNotFound) {
			t.Errorf("GetQuiz expected ErrNotFound, got: %v", err)
		}
		if err := store.DeleteQuiz(ctx, "quiz_missing"); !errors.Is(err, quiz.ErrNotFound) {
			t.Errorf("DeleteQuiz expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		q := NewQuiz("quiz_del1", "History")
		if err := store.SaveQuiz(ctx, q); err != nil {
			t.Fatalf("SaveQuiz: %v", err)
		}
		if err := store.DeleteQuiz(ctx, q.ID); err != nil {
			t.Fatalf("DeleteQuiz: %v", err)
		}
		if _, err := store.GetQuiz(ctx, q.ID); !errors.Is(err, quiz.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got: %v", err)
		}
	})

	t.Run("FindQuizzesFiltersStatus", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		pub := NewQuiz("quiz_find_pub", "Chemistry")
		draft := NewQuiz("quiz_find_draft", "Physics")
		draft.Status = quiz.StatusDraft
		for _, q := range []*quiz.Quiz{pub, draft} {
			if err := store.SaveQuiz(ctx, q); err != nil {
				t.Fatalf("SaveQuiz(%s): %v", q.ID, err)
			}
		}

		got, err := store.FindQuizzes(ctx, []string{pub.ID, draft.ID, "quiz_find_gone"}, quiz.Filter{Status: quiz.StatusPublished})
		if err != nil {
			t.Fatalf("FindQuizzes: %v", err)
		}
		if len(got) != 1 || got[0].ID != pub.ID {
			t.Errorf("expected only %s, got %v", pub.ID, ids(got))
		}

		all, err := store.FindQuizzes(ctx, []string{pub.ID, draft.ID}, quiz.Filter{})
		if err != nil {
			t.Fatalf("FindQuizzes: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("expected 2 quizzes without filter, got %v", ids(all))
		}
	})

	t.Run("SearchText", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		js := NewQuiz("quiz_txt_js", "JavaScript Basics")
		tagged := NewQuiz("quiz_txt_tag", "Frontend Quiz", "javascript")
		draft := NewQuiz("quiz_txt_draft", "Advanced JavaScript")
		draft.Status = quiz.StatusDraft
		other := NewQuiz("quiz_txt_py", "Python Basics")
		for _, q := range []*quiz.Quiz{js, tagged, draft, other} {
			if err := store.SaveQuiz(ctx, q); err != nil {
				t.Fatalf("SaveQuiz(%s): %v", q.ID, err)
			}
		}

		got, err := store.SearchText(ctx, quiz.TextQuery{Text: "JAVASCRIPT", Status: quiz.StatusPublished, Limit: 10})
		if err != nil {
			t.Fatalf("SearchText: %v", err)
		}
		gotIDs := ids(got)
		if len(gotIDs) != 2 || gotIDs[0] != js.ID || gotIDs[1] != tagged.ID {
			t.Errorf("expected [%s %s], got %v", js.ID, tagged.ID, gotIDs)
		}

		limited, err := store.SearchText(ctx, quiz.TextQuery{Text: "basics", Limit: 1})
		if err != nil {
			t.Fatalf("SearchText: %v", err)
		}
		if len(limited) != 1 {
			t.Errorf("expected limit to cap results at 1, got %d", len(limited))
		}
	})

	t.Run("SearchTextLiteral", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		if err := store.SaveQuiz(ctx, NewQuiz("quiz_lit1", "C++ Templates")); err != nil {
			t.Fatalf("SaveQuiz: %v", err)
		}
		got, err := store.SearchText(ctx, quiz.TextQuery{Text: "c++", Status: quiz.StatusPublished})
		if err != nil {
			t.Fatalf("SearchText: %v", err)
		}
		if len(got) != 1 {
			t.Errorf("expected literal match for c++, got %v", ids(got))
		}
		none, err := store.SearchText(ctx, quiz.TextQuery{Text: ".*", Status: quiz.StatusPublished})
		if err != nil {
			t.Fatalf("SearchText: %v", err)
		}
		if len(none) != 0 {
			t.Errorf("regex metacharacters must be matched literally, got %v", ids(none))
		}
	})

	t.Run("ListQuizzesPaginated", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			q := NewQuiz(fmt.Sprintf("quiz_list_%d", i), fmt.Sprintf("Quiz %d", i))
			if err := store.SaveQuiz(ctx, q); err != nil {
				t.Fatalf("SaveQuiz[%d]: %v", i, err)
			}
		}

		var all []string
		after := ""
		for {
			page, hasMore, err := store.ListQuizzes(ctx, after, 2)
			if err != nil {
				t.Fatalf("ListQuizzes: %v", err)
			}
			if len(page) > 2 {
				t.Fatalf("page larger than limit: %d", len(page))
			}
			all = append(all, ids(page)...)
			if !hasMore {
				break
			}
			after = page[len(page)-1].ID
		}
		if len(all) != 5 {
			t.Fatalf("expected 5 quizzes across pages, got %v", all)
		}
		if !sort.StringsAreSorted(all) {
			t.Errorf("expected ID order, got %v", all)
		}
	})
}

func ids(qs []*quiz.Quiz) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.ID
	}
	return out
}
