// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"testing"

	"github.com/leseb/quizsearch/pkg/quiz"
)

func TestBuildSourceText(t *testing.T) {
	doc := Document{
		Title:       "Intro to Algebra",
		Description: "Linear equations for beginners",
		Category:    "Math",
		Tags:        []string{"algebra", "equations"},
		Questions: []DocumentQuestion{
			{
				Text:        "Solve 2x + 3 = 7",
				Options:     []string{"x = 1", "x = 2", "x = 5"},
				Explanation: "Subtract 3, then divide by 2.",
			},
			{
				Text:    "What is a linear equation?",
				Options: []string{"Degree one", "Degree two"},
			},
		},
	}

	want := "Intro to Algebra\n" +
		"\n" +
		"Linear equations for beginners\n" +
		"\n" +
		"Category: Math\n" +
		"Tags: algebra, equations\n" +
		"Q1: Solve 2x + 3 = 7\n" +
		"  A. x = 1\n" +
		"  B. x = 2\n" +
		"  C. x = 5\n" +
		"Explanation: Subtract 3, then divide by 2.\n" +
		"Q2: What is a linear equation?\n" +
		"  A. Degree one\n" +
		"  B. Degree two"

	if got := BuildSourceText(doc); got != want {
		t.Errorf("BuildSourceText mismatch\n got: %q\nwant: %q", got, want)
	}
	if BuildSourceText(doc) != BuildSourceText(doc) {
		t.Error("BuildSourceText is not deterministic")
	}
}

func TestBuildSourceText_RichText(t *testing.T) {
	doc := Document{
		Title:       "<p>Cell <b>Biology</b></p>",
		Description: "Is x<y when x=1?",
		Tags:        []string{"<b>cells</b>", "x<y"},
		Questions: []DocumentQuestion{
			{Text: "Name the <em>powerhouse</em> of the cell<br/>", Options: []string{"Mitochondria"}},
		},
	}
	got := BuildSourceText(doc)
	want := "Cell Biology\n\nIs x<y when x=1?\n\nCategory: \nTags: cells, x<y\nQ1: Name the powerhouse of the cell\n  A. Mitochondria"
	if got != want {
		t.Errorf("BuildSourceText mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"a < b", "a < b"},
		{"<p>one</p><p>two</p>", "one two"},
		{"<div>x<script>alert(1)</script></div>", "x"},
		{"Fish &amp; chips<br>", "Fish & chips"},
	}
	for _, tt := range tests {
		if got := plainText(tt.in); got != tt.want {
			t.Errorf("plainText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOptionLabel(t *testing.T) {
	tests := map[int]string{0: "A", 1: "B", 25: "Z", 26: "AA", 27: "AB", 51: "AZ", 52: "BA"}
	for i, want := range tests {
		if got := optionLabel(i); got != want {
			t.Errorf("optionLabel(%d) = %q, want %q", i, got, want)
		}
	}
}

func TestDocumentFromQuiz(t *testing.T) {
	q := &quiz.Quiz{
		ID:          "q1",
		Title:       "T",
		Description: "D",
		Category:    "C",
		Tags:        []string{"x"},
		Difficulty:  "hard",
		Language:    "fr",
		Questions:   []quiz.Question{{Text: "Q", Options: []string{"a", "b"}, Explanation: "E"}},
	}
	d := DocumentFromQuiz(q)
	if d.Title != "T" || d.Description != "D" || d.Category != "C" || len(d.Tags) != 1 {
		t.Errorf("unexpected document: %+v", d)
	}
	if len(d.Questions) != 1 || d.Questions[0].Explanation != "E" || len(d.Questions[0].Options) != 2 {
		t.Errorf("unexpected questions: %+v", d.Questions)
	}

	m := MetadataFromQuiz(q)
	if m.Difficulty != "hard" || m.Language != "fr" || m.QuestionCount != 1 {
		t.Errorf("unexpected metadata: %+v", m)
	}
}

func TestContentLength(t *testing.T) {
	if n := ContentLength(Document{}); n != 0 {
		t.Errorf("empty document: expected 0, got %d", n)
	}
	if n := ContentLength(Document{Title: "  ab  ", Tags: []string{"c"}}); n != 3 {
		t.Errorf("expected 3, got %d", n)
	}
	if n := ContentLength(Document{Tags: []string{"<i>ab</i>"}}); n != 2 {
		t.Errorf("markup in tags: expected 2, got %d", n)
	}
}
