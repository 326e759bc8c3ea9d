// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/leseb/quizsearch/pkg/bootstrap"
	"github.com/leseb/quizsearch/pkg/quiz"
)

func newImportCommand(s *state) *cobra.Command {
	var embed bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Load quizzes from a JSON file into the quiz store",
		Long: `Import reads quizzes from a JSON array or from JSON lines, saves them to the
configured quiz store and, unless --embed=false, embeds them.

Examples:
  quizsearchctl import quizzes.json
  quizsearchctl import quizzes.jsonl --embed=false`,
		Args: cobra.ExactArgs(1),
		RunE: s.withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			quizzes, err := readQuizzes(f)
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			now := time.Now().UTC()
			for _, q := range quizzes {
				if q.CreatedAt.IsZero() {
					q.CreatedAt = now
				}
				if q.UpdatedAt.IsZero() {
					q.UpdatedAt = q.CreatedAt
				}
				if err := app.Quizzes.SaveQuiz(cmd.Context(), q); err != nil {
					return fmt.Errorf("save quiz %s: %w", q.ID, err)
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d quizzes\n", len(quizzes))
			if !embed {
				return nil
			}

			failed := 0
			for _, res := range app.Embeddings.BatchUpsert(cmd.Context(), quizzes) {
				if !res.Success {
					failed++
					fmt.Fprintf(out, "  - %s: %s\n", res.QuizID, res.Error)
				}
			}
			fmt.Fprintf(out, "Embedded %d quizzes (%d failed)\n", len(quizzes)-failed, failed)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&embed, "embed", true, "embed imported quizzes")
	return cmd
}

// readQuizzes decodes either a JSON array of quizzes or one quiz per line.
func readQuizzes(r io.Reader) ([]*quiz.Quiz, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		return nil, err
	}

	var quizzes []*quiz.Quiz
	dec := json.NewDecoder(br)
	if first == '[' {
		if err := dec.Decode(&quizzes); err != nil {
			return nil, err
		}
	} else {
		for {
			var q quiz.Quiz
			err := dec.Decode(&q)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, err
			}
			quizzes = append(quizzes, &q)
		}
	}

	for i, q := range quizzes {
		if q == nil || q.ID == "" {
			return nil, fmt.Errorf("quiz %d has no id", i+1)
		}
		if q.Status == "" {
			q.Status = quiz.StatusPublished
		}
	}
	return quizzes, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if errors.Is(err, io.EOF) {
			return 0, errors.New("no quizzes in input")
		}
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}
