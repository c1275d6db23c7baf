// Package cmd provides the queryward command-line interface.
package cmd

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/queryward/queryward/pkg/config"
)

// Deps carries the dependencies shared by every command. Commands assemble
// their own pipeline from these instead of reaching for globals.
type Deps struct {
	FS     afero.Fs
	Cfg    *config.Config
	Logger *zap.Logger
}

// NewRootCommand returns the root command with all subcommands attached.
func NewRootCommand(deps *Deps) *cobra.Command {
	cobra.EnableCommandSorting = false
	rootCmd := &cobra.Command{
		Use:   "queryward",
		Short: "Safety-gated SQL execution over a template backend",
		Long: `Queryward runs SQL through a guarded pipeline: a keyword safety gate,
template compilation via the configured backend, execution as a backend
subprocess, and tabular extraction from the backend's text output. Every
executed query is recorded in a per-session history that agents and humans
can look up by index.`,
		Version:      deps.Cfg.Version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("session", "s", "", "session id for query history (defaults to registry.default_session)")
	rootCmd.PersistentFlags().Int("limit", 0, "row limit for query results (defaults to backend.default_row_limit)")
	rootCmd.PersistentFlags().Bool("unrestricted", false, "allow write/DDL statements; honored only when safety.allow_unrestricted is set")

	rootCmd.AddCommand(NewQueryCommand(deps))
	rootCmd.AddCommand(NewAskCommand(deps))
	rootCmd.AddCommand(NewHistoryCommand(deps))
	rootCmd.AddCommand(NewSessionsCommand(deps))
	rootCmd.AddCommand(NewServeCommand(deps))
	rootCmd.AddCommand(NewDoctorCommand(deps))

	return rootCmd
}
