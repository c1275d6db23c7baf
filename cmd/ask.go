package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/queryward/queryward/pkg/models"
)

// AskFlags holds the flags for the ask command.
type AskFlags struct {
	DryRun bool
	JSON   bool
}

// NewAskCommand creates the 'ask' command.
func NewAskCommand(deps *Deps) *cobra.Command {
	flags := &AskFlags{}

	askCmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Translate a natural-language question to SQL and run it",
		Long: `Ask sends the question to the configured language model, prints the
generated SQL, and runs it through the same pipeline as the query command.
Generated SQL always executes read-only regardless of flags; the safety
gate still applies to whatever the model produced.`,
		Example: `  queryward ask "which films rented most this month?"
  queryward ask --dry-run "how many PG films run longer than two hours?"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			translator, err := buildTranslatorFn(deps)
			if err != nil {
				return err
			}
			if translator == nil {
				return fmt.Errorf("no language model is configured; set llm.model or run the SQL directly with 'queryward query'")
			}

			translation, err := translator.Translate(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("translating question: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "SQL: %s\n", translation.SQL)
			if translation.Explanation != "" {
				fmt.Fprintf(out, "Explanation: %s\n", translation.Explanation)
			}
			if flags.DryRun {
				return nil
			}
			fmt.Fprintln(out)

			p, cleanup, err := buildPipelineFn(cmd.Context(), deps)
			if err != nil {
				return err
			}
			defer cleanup()

			limit, _ := cmd.Flags().GetInt("limit")
			result := p.Run(cmd.Context(), models.QueryRequest{
				Text:      translation.SQL,
				SessionID: sessionID(cmd, deps),
				Mode:      models.ModeReadOnly,
				RowLimit:  limit,
				Kind:      models.QueryKindSQL,
			})
			return emitResult(cmd, flags.JSON, result)
		},
	}

	askCmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "print the generated SQL without executing it")
	askCmd.Flags().BoolVar(&flags.JSON, "json", false, "emit the raw result as JSON")
	return askCmd
}
