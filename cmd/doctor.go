package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/queryward/queryward/pkg/backend"
	"github.com/queryward/queryward/pkg/term"
	"github.com/queryward/queryward/pkg/warehouse"
)

const doctorTimeout = 30 * time.Second

// NewDoctorCommand creates the 'doctor' command.
func NewDoctorCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the environment is ready to run queries",
		Long: `Doctor verifies each piece of the execution environment: the backend
binary and its version, the connection profiles it will use, the result
registry directory, and any configured warehouse or language model.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), doctorTimeout)
			defer cancel()

			cfg := deps.Cfg
			out := cmd.OutOrStdout()
			healthy := true

			prober := backend.NewProbe(backend.NewRunner(deps.Logger), cfg.Backend.Command, cfg.Backend.MinVersion, deps.Logger)
			version, err := prober.Check(ctx)
			term.RenderCheck(out, "backend binary", err, fmt.Sprintf("%s %s", cfg.Backend.Command, version))
			if err != nil {
				healthy = false
			}

			if cfg.Backend.ProfilesDir == "" || cfg.Backend.Profile == "" {
				term.RenderSkip(out, "profiles", "no profile configured")
			} else {
				info, err := backend.ValidateProfiles(deps.FS, cfg.Backend.ProfilesDir, cfg.Backend.Profile, cfg.Backend.Target)
				detail := ""
				if err == nil {
					detail = fmt.Sprintf("%s/%s via %s", info.Profile, info.Target, info.AdapterType)
				}
				term.RenderCheck(out, "profiles", err, detail)
				if err != nil {
					healthy = false
				}
			}

			err = registries(deps).CheckWritable()
			term.RenderCheck(out, "registry", err, cfg.Registry.Dir)
			if err != nil {
				healthy = false
			}

			if cfg.Warehouse.Preflight {
				if err := checkWarehouse(ctx, deps, out); err != nil {
					healthy = false
				}
			} else {
				term.RenderSkip(out, "warehouse", "preflight disabled")
			}

			if cfg.LLM.Configured() {
				term.RenderCheck(out, "llm", nil, fmt.Sprintf("%s %s", cfg.LLM.Provider, cfg.LLM.Model))
			} else {
				term.RenderSkip(out, "llm", "no model configured")
			}

			if !healthy {
				return fmt.Errorf("doctor found problems")
			}
			return nil
		},
	}
}

// checkWarehouse connects, pings, and reports the database name. Errors
// render as a failed check rather than aborting the remaining checks.
func checkWarehouse(ctx context.Context, deps *Deps, out io.Writer) error {
	pf, err := warehouse.New(ctx, deps.Cfg.Warehouse.DSN, deps.Logger)
	if err != nil {
		term.RenderCheck(out, "warehouse", err, "")
		return err
	}
	defer pf.Close()

	if err := pf.Ping(ctx); err != nil {
		term.RenderCheck(out, "warehouse", err, "")
		return err
	}
	name, err := pf.Database(ctx)
	if err != nil {
		term.RenderCheck(out, "warehouse", err, "")
		return err
	}
	term.RenderCheck(out, "warehouse", nil, fmt.Sprintf("database %s", name))
	return nil
}
