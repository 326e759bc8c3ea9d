// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/leseb/quizsearch/pkg/quiz"
	"github.com/leseb/quizsearch/pkg/vectorstore"
)

// Document is the subset of a quiz that feeds its embedding.
type Document struct {
	Title       string
	Description string
	Category    string
	Tags        []string
	Questions   []DocumentQuestion
}

// DocumentQuestion is one question of a Document.
type DocumentQuestion struct {
	Text        string
	Options     []string
	Explanation string
}

// DocumentFromQuiz projects q onto a Document.
func DocumentFromQuiz(q *quiz.Quiz) Document {
	d := Document{
		Title:       q.Title,
		Description: q.Description,
		Category:    q.Category,
		Tags:        q.Tags,
		Questions:   make([]DocumentQuestion, len(q.Questions)),
	}
	for i, qq := range q.Questions {
		d.Questions[i] = DocumentQuestion{
			Text:        qq.Text,
			Options:     qq.Options,
			Explanation: qq.Explanation,
		}
	}
	return d
}

// MetadataFromQuiz builds the denormalised metadata stored with an embedding.
func MetadataFromQuiz(q *quiz.Quiz) vectorstore.Metadata {
	return vectorstore.Metadata{
		Category:      q.Category,
		Tags:          append([]string(nil), q.Tags...),
		Difficulty:    q.Difficulty,
		Language:      q.Language,
		QuestionCount: len(q.Questions),
	}
}

// BuildSourceText renders d into the text that is embedded:
//
//	<title>
//
//	<description>
//
//	Category: <category>
//	Tags: <tag>, <tag>
//	Q1: <question>
//	  A. <option>
//	  B. <option>
//	Explanation: <explanation>
//
// The output depends only on d, so unchanged quizzes re-embed identically.
func BuildSourceText(d Document) string {
	lines := []string{
		plainText(d.Title),
		"",
		plainText(d.Description),
		"",
		"Category: " + plainText(d.Category),
		"Tags: " + strings.Join(plainTags(d.Tags), ", "),
	}

	for i, q := range d.Questions {
		lines = append(lines, "Q"+strconv.Itoa(i+1)+": "+plainText(q.Text))
		for j, opt := range q.Options {
			lines = append(lines, "  "+optionLabel(j)+". "+plainText(opt))
		}
		if expl := plainText(q.Explanation); expl != "" {
			lines = append(lines, "Explanation: "+expl)
		}
	}

	return strings.Join(lines, "\n")
}

// ContentLength counts the characters of author-supplied content in d,
// ignoring the labels BuildSourceText adds.
func ContentLength(d Document) int {
	n := len([]rune(strings.TrimSpace(plainText(d.Title)))) +
		len([]rune(strings.TrimSpace(plainText(d.Description)))) +
		len([]rune(strings.TrimSpace(plainText(d.Category))))
	for _, t := range plainTags(d.Tags) {
		n += len([]rune(strings.TrimSpace(t)))
	}
	for _, q := range d.Questions {
		n += len([]rune(strings.TrimSpace(plainText(q.Text))))
		n += len([]rune(strings.TrimSpace(plainText(q.Explanation))))
		for _, o := range q.Options {
			n += len([]rune(strings.TrimSpace(plainText(o))))
		}
	}
	return n
}

func plainTags(tags []string) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = plainText(t)
	}
	return out
}

// optionLabel returns A..Z, then AA, AB and so on.
func optionLabel(i int) string {
	label := ""
	for i >= 0 {
		label = string(rune('A'+i%26)) + label
		i = i/26 - 1
	}
	return label
}

// plainText strips markup from rich-text fields authored in the quiz
// editor. Strings without closing or self-closing tags are returned
// unchanged, so text such as "x<y" survives.
func plainText(s string) string {
	if !strings.Contains(s, "</") && !strings.Contains(s, "/>") && !strings.Contains(s, "<br>") {
		return s
	}

	z := html.NewTokenizer(strings.NewReader(s))
	var (
		sb   strings.Builder
		skip int
	)
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				if tt == html.StartTagToken {
					skip++
				}
			case "br", "p", "div", "li":
				sb.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style":
				if skip > 0 {
					skip--
				}
			case "p", "div", "li":
				sb.WriteByte(' ')
			}
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
			}
		}
	}
}
