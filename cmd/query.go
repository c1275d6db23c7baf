package cmd

import (
	"github.com/spf13/cobra"

	"github.com/queryward/queryward/pkg/models"
)

// QueryFlags holds the flags for the query command.
type QueryFlags struct {
	JSON bool
}

// NewQueryCommand creates the 'query' command.
func NewQueryCommand(deps *Deps) *cobra.Command {
	flags := &QueryFlags{}

	queryCmd := &cobra.Command{
		Use:     "query <sql>",
		Aliases: []string{"q"},
		Short:   "Run one SQL statement through the safety pipeline",
		Example: `  queryward query "SELECT title, rating FROM film LIMIT 5"
  queryward query --session analysis --limit 500 "SELECT * FROM rental"
  queryward query --json "SELECT count(*) FROM film"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := requestMode(cmd, deps)
			if err != nil {
				return err
			}

			p, cleanup, err := buildPipelineFn(cmd.Context(), deps)
			if err != nil {
				return err
			}
			defer cleanup()

			limit, _ := cmd.Flags().GetInt("limit")
			result := p.Run(cmd.Context(), models.QueryRequest{
				Text:      args[0],
				SessionID: sessionID(cmd, deps),
				Mode:      mode,
				RowLimit:  limit,
				Kind:      models.QueryKindSQL,
			})
			return emitResult(cmd, flags.JSON, result)
		},
	}

	queryCmd.Flags().BoolVar(&flags.JSON, "json", false, "emit the raw result as JSON")
	return queryCmd
}
