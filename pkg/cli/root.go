// Copyright Quiz Search Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli implements quizsearchctl, the admin command line for the
// quiz search subsystem.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/leseb/quizsearch/pkg/bootstrap"
	"github.com/leseb/quizsearch/pkg/core/config"
	"github.com/leseb/quizsearch/pkg/observability/logging"
)

// state is shared by every subcommand of one root command.
type state struct {
	cfgFile  string
	logLevel string
	opts     bootstrap.Options

	cfg    *config.Config
	logger *logging.Logger
}

// NewRootCommand builds the quizsearchctl command tree. opts is passed to
// bootstrap.Build and lets tests swap the embedding provider.
func NewRootCommand(opts bootstrap.Options) *cobra.Command {
	s := &state{opts: opts}

	root := &cobra.Command{
		Use:   "quizsearchctl",
		Short: "Administer semantic quiz search",
		Long: `quizsearchctl runs searches, maintains quiz embeddings and manages
embedding snapshots against the stores named in the configuration file.

Example usage:
  quizsearchctl search "solving equations"   # Tiered search
  quizsearchctl reindex                      # Re-embed stale quizzes
  quizsearchctl snapshot export              # Back up all embeddings`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.loadConfig(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&s.cfgFile, "config", "", "config file (defaults are used when empty)")
	root.PersistentFlags().StringVar(&s.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newSearchCommand(s),
		newSimilarCommand(s),
		newReindexCommand(s),
		newImportCommand(s),
		newSnapshotCommand(s),
	)
	return root
}

// Execute runs quizsearchctl with the process arguments.
func Execute() {
	if err := NewRootCommand(bootstrap.Options{}).Execute(); err != nil {
		os.Exit(1)
	}
}

func (s *state) loadConfig(logOut io.Writer) error {
	var err error
	if s.cfgFile != "" {
		s.cfg, err = config.Load(s.cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		s.cfg = config.Default()
	}

	s.logger = logging.New(logging.Config{
		Level:  s.logLevel,
		Format: "text",
		Output: logOut,
	})
	return nil
}

// withApp builds the services for one command run and closes them
// afterwards, including when fn fails.
func (s *state) withApp(fn func(cmd *cobra.Command, args []string, app *bootstrap.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := bootstrap.Build(cmd.Context(), s.cfg, s.logger, s.opts)
		if err != nil {
			return err
		}
		defer func() {
			if err := app.Close(context.Background()); err != nil {
				s.logger.Warn("Failed to close backends", "error", err)
			}
		}()
		return fn(cmd, args, app)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
