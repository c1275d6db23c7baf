package cmd

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/queryward/queryward/pkg/term"
)

// NewHistoryCommand creates the 'history' command group.
func NewHistoryCommand(deps *Deps) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded query results for a session",
	}
	historyCmd.AddCommand(newHistoryListCommand(deps))
	historyCmd.AddCommand(newHistoryShowCommand(deps))
	historyCmd.AddCommand(newHistoryExportCommand(deps))
	return historyCmd
}

func newHistoryListCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded results in the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session := sessionID(cmd, deps)
			reg, err := registries(deps).ForSession(session)
			if err != nil {
				return err
			}
			term.RenderHistory(cmd.OutOrStdout(), session, reg.List())
			return nil
		},
	}
}

func newHistoryShowCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "show <index>",
		Short: "Show one recorded result in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("index must be a number, got %q", args[0])
			}
			reg, err := registries(deps).ForSession(sessionID(cmd, deps))
			if err != nil {
				return err
			}
			entry, err := reg.Get(index)
			if err != nil {
				return err
			}
			term.RenderEntry(cmd.OutOrStdout(), entry)
			return nil
		},
	}
}

func newHistoryExportCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "export <path>",
		Short: "Write the session history to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session := sessionID(cmd, deps)
			reg, err := registries(deps).ForSession(session)
			if err != nil {
				return err
			}
			data, err := reg.ExportJSON()
			if err != nil {
				return err
			}
			if err := afero.WriteFile(deps.FS, args[0], data, 0o644); err != nil {
				return fmt.Errorf("writing export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s of session %q to %s\n",
				humanize.Bytes(uint64(len(data))), session, args[0])
			return nil
		},
	}
}
