// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leseb/quizsearch/pkg/bootstrap"
)

func newSnapshotCommand(s *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export, list and restore embedding snapshots",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "export",
			Short: "Write every stored embedding to a new snapshot",
			Args:  cobra.NoArgs,
			RunE: s.withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
				res, err := app.SnapshotService.Export(cmd.Context())
				if err != nil {
					return fmt.Errorf("export failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d embeddings to %s (%d bytes)\n", res.Embeddings, res.Name, res.Bytes)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "list",
			Short: "List snapshots, newest first",
			Args:  cobra.NoArgs,
			RunE: s.withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
				infos, err := app.SnapshotService.List(cmd.Context())
				if err != nil {
					return fmt.Errorf("list failed: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(infos) == 0 {
					fmt.Fprintln(out, "No snapshots found.")
					return nil
				}
				for _, info := range infos {
					fmt.Fprintf(out, "%s\t%d bytes\t%s\n", info.Name, info.Bytes, info.CreatedAt.Format("2006-01-02 15:04:05"))
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "restore <name>",
			Short: "Restore embeddings from a snapshot without calling the provider",
			Args:  cobra.ExactArgs(1),
			RunE: s.withApp(func(cmd *cobra.Command, args []string, app *bootstrap.App) error {
				res, err := app.SnapshotService.Restore(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("restore failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %d embeddings from %s (%d skipped)\n", res.Restored, res.Name, res.Skipped)
				return nil
			}),
		},
	)
	return cmd
}
