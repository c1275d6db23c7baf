package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/queryward/queryward/pkg/term"
)

// NewSessionsCommand creates the 'sessions' command group.
func NewSessionsCommand(deps *Deps) *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage result registry sessions",
	}
	sessionsCmd.AddCommand(newSessionsListCommand(deps))
	sessionsCmd.AddCommand(newSessionsClearCommand(deps))
	return sessionsCmd
}

func newSessionsListCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions that have recorded results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := registries(deps).Sessions()
			if err != nil {
				return err
			}
			term.RenderSessions(cmd.OutOrStdout(), deps.Cfg.Registry.DefaultSession, sessions)
			return nil
		},
	}
}

func newSessionsClearCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <session>",
		Short: "Delete all recorded results in a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registries(deps).ForSession(args[0])
			if err != nil {
				return err
			}
			count := reg.Count()
			if err := reg.Clear(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %d results from session %q\n", count, args[0])
			return nil
		},
	}
}
