// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leseb/quizsearch/pkg/bootstrap"
	"github.com/leseb/quizsearch/pkg/search"
)

type searchFlags struct {
	limit int
	json  bool
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 0, "number of results (default from config)")
	cmd.Flags().BoolVar(&f.json, "json", false, "output as JSON")
}

func newSearchCommand(s *state) *cobra.Command {
	var flags searchFlags
	cmd := &cobra.Command{
		Use:   "search <query>...",
		Short: "Search published quizzes by free text",
		Long: `Search runs the tiered pipeline: the vector store's native index, then a
manual cosine scan, then keyword matching against the quiz store.

Examples:
  quizsearchctl search solving equations
  quizsearchctl search "cell biology" --limit 5 --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: s.withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
			query := strings.Join(args, " ")
			resp, err := app.Search.Search(cmd.Context(), query, flags.limit)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			return printResponse(cmd.OutOrStdout(), resp, flags.json, query)
		}),
	}
	flags.register(cmd)
	return cmd
}

func newSimilarCommand(s *state) *cobra.Command {
	var flags searchFlags
	cmd := &cobra.Command{
		Use:   "similar <quiz-id>",
		Short: "Find quizzes similar to an existing quiz",
		Args:  cobra.ExactArgs(1),
		RunE: s.withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
			resp, err := app.Search.FindSimilar(cmd.Context(), args[0], flags.limit)
			if err != nil {
				return fmt.Errorf("similar search failed: %w", err)
			}
			return printResponse(cmd.OutOrStdout(), resp, flags.json, "quiz "+args[0])
		}),
	}
	flags.register(cmd)
	return cmd
}

func printResponse(w io.Writer, resp *search.Response, asJSON bool, label string) error {
	if asJSON {
		return printJSON(w, resp)
	}
	if len(resp.Results) == 0 {
		fmt.Fprintf(w, "No results found (tier: %s).\n", resp.Tier)
		return nil
	}
	fmt.Fprintf(w, "Found %d results for %s (tier: %s)\n\n", len(resp.Results), label, resp.Tier)
	for i, r := range resp.Results {
		score := fmt.Sprintf("%.3f", r.Similarity)
		if r.Synthetic {
			score += " keyword"
		}
		title := ""
		if r.Quiz != nil {
			title = r.Quiz.Title
		}
		fmt.Fprintf(w, "%2d. %-24s %s (score: %s)\n", i+1, r.QuizID, title, score)
	}
	return nil
}
