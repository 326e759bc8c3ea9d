// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/leseb/quizsearch/pkg/bootstrap"
	"github.com/leseb/quizsearch/pkg/core/services"
)

func newReindexCommand(s *state) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Re-embed missing or stale quizzes and drop dangling embeddings",
		Long: `Reindex walks the quiz store, embeds every quiz whose stored embedding is
missing or was built from different content, then removes embeddings whose
quiz no longer exists.

Examples:
  quizsearchctl reindex
  quizsearchctl reindex --force   # Re-embed every quiz`,
		Args: cobra.NoArgs,
		RunE: s.withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
			// Quiz count is unknown up front, so the bar runs as a spinner.
			bar := progressbar.NewOptions(-1,
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionSetDescription("Reindexing"),
				progressbar.OptionShowCount(),
				progressbar.OptionSpinnerType(14),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(cmd.ErrOrStderr())
				}),
			)
			progress := func(p services.ReindexProgress) {
				bar.Describe(fmt.Sprintf("Reindexing (embedded %d, failed %d)", p.Embedded, p.Failed))
				bar.Set(p.Scanned)
			}

			report, err := app.Embeddings.Reindex(cmd.Context(), force, progress)
			bar.Finish()
			if err != nil {
				return fmt.Errorf("reindex failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Reindex complete:\n")
			fmt.Fprintf(out, "  Quizzes scanned:    %d\n", report.Scanned)
			fmt.Fprintf(out, "  Embedded:           %d\n", report.Embedded)
			fmt.Fprintf(out, "  Already current:    %d\n", report.Current)
			fmt.Fprintf(out, "  Failed:             %d\n", report.Failed)
			fmt.Fprintf(out, "  Dangling removed:   %d\n", report.Removed)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&force, "force", false, "re-embed every quiz, even current ones")
	return cmd
}
