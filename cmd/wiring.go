package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/queryward/queryward/pkg/audit"
	"github.com/queryward/queryward/pkg/backend"
	"github.com/queryward/queryward/pkg/extract"
	"github.com/queryward/queryward/pkg/llm"
	"github.com/queryward/queryward/pkg/models"
	"github.com/queryward/queryward/pkg/pipeline"
	"github.com/queryward/queryward/pkg/registry"
	"github.com/queryward/queryward/pkg/safety"
	"github.com/queryward/queryward/pkg/term"
	"github.com/queryward/queryward/pkg/warehouse"
)

// Injectable constructors for testability: command tests swap these for
// fakes instead of spawning backend processes or dialing a warehouse.
var (
	buildPipelineFn   = buildPipeline
	buildTranslatorFn = buildTranslator
)

// registries builds the session registry factory rooted at the configured
// storage directory.
func registries(deps *Deps) *registry.Factory {
	return registry.NewFactory(deps.FS, deps.Cfg.Registry.Dir, deps.Logger)
}

// buildPipeline assembles the full query pipeline from configuration. The
// returned cleanup releases the warehouse pool when preflight is enabled
// and must be called once the pipeline is no longer needed.
func buildPipeline(ctx context.Context, deps *Deps) (queryRunner, func(), error) {
	runner := backend.NewRunner(deps.Logger)
	compiler := backend.NewCompiler(deps.FS, runner, backend.CompilerOptions{
		Command:       deps.Cfg.Backend.Command,
		StagingSubdir: deps.Cfg.Backend.StagingSubdir,
	}, deps.Logger)
	executor := backend.NewExecutor(runner, backend.ExecutorOptions{
		Command:   deps.Cfg.Backend.Command,
		RunVia:    deps.Cfg.Backend.RunVia,
		Operation: deps.Cfg.Backend.Operation,
	}, deps.Logger)

	cleanup := func() {}
	var preflight pipeline.PreflightStage
	if deps.Cfg.Warehouse.Preflight {
		pf, err := warehouse.New(ctx, deps.Cfg.Warehouse.DSN, deps.Logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting warehouse for preflight: %w", err)
		}
		preflight = pf
		cleanup = pf.Close
	}

	p := pipeline.New(pipeline.Deps{
		Classifier: safety.NewClassifier(deps.Cfg.Safety.ExtraBlockedKeywords),
		Compiler:   compiler,
		Executor:   executor,
		Preflight:  preflight,
		Errors:     extract.NewErrorExtractor(deps.Cfg.Extract.ErrorSubstrings),
		Registries: registries(deps),
		Auditor:    audit.NewSecurityAuditor(deps.Logger),
	}, pipeline.Options{
		ExecContext:     deps.Cfg.Backend.ExecContext(),
		ExecTimeout:     deps.Cfg.Backend.Timeout(),
		DefaultRowLimit: deps.Cfg.Backend.DefaultRowLimit,
	}, deps.Logger)
	return p, cleanup, nil
}

// queryRunner is the slice of the pipeline the commands use.
type queryRunner interface {
	Run(ctx context.Context, req models.QueryRequest) models.QueryResult
}

// questionTranslator is the slice of the translator the ask command uses.
type questionTranslator interface {
	Translate(ctx context.Context, question string) (*llm.Translation, error)
}

// buildTranslator returns nil without error when no model is configured;
// callers decide whether that is fatal.
func buildTranslator(deps *Deps) (questionTranslator, error) {
	if !deps.Cfg.LLM.Configured() {
		return nil, nil
	}

	client, err := llm.NewClient(&llm.Config{
		Provider: deps.Cfg.LLM.Provider,
		Endpoint: deps.Cfg.LLM.Endpoint,
		Model:    deps.Cfg.LLM.Model,
		APIKey:   deps.Cfg.LLM.APIKey,
	}, deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating llm client: %w", err)
	}

	var hinter *llm.SchemaHinter
	if deps.Cfg.Backend.ProjectDir != "" {
		hinter = llm.NewSchemaHinter(deps.FS, deps.Cfg.Backend.ProjectDir, deps.Logger)
	}

	return llm.NewTranslator(client, hinter, llm.TranslatorOptions{
		Adapter:     "postgres",
		Temperature: deps.Cfg.LLM.Temperature,
	}, deps.Logger), nil
}

// sessionID resolves the active session: the --session flag when given,
// the configured default otherwise.
func sessionID(cmd *cobra.Command, deps *Deps) string {
	s, _ := cmd.Flags().GetString("session")
	if s == "" {
		s = deps.Cfg.Registry.DefaultSession
	}
	return s
}

// requestMode maps the --unrestricted flag onto the configured default
// mode, failing when configuration forbids escalation.
func requestMode(cmd *cobra.Command, deps *Deps) (models.Mode, error) {
	unrestricted, _ := cmd.Flags().GetBool("unrestricted")
	if !unrestricted {
		return models.Mode(deps.Cfg.Safety.Mode), nil
	}
	if !deps.Cfg.Safety.AllowUnrestricted {
		return "", fmt.Errorf("unrestricted execution is disabled; enable safety.allow_unrestricted in the configuration")
	}
	return models.ModeUnrestricted, nil
}

// emitResult renders a result and maps failure onto a non-zero exit
// status through the returned error.
func emitResult(cmd *cobra.Command, asJSON bool, result models.QueryResult) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.ToMap()); err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
	} else {
		term.RenderResult(cmd.OutOrStdout(), result)
	}
	if !result.Success {
		return fmt.Errorf("query failed: %s", result.Code)
	}
	return nil
}
