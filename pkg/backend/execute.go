package backend

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/queryward/queryward/pkg/models"
)

// Execution routes supported by the backend CLI.
const (
	// RunViaOperation executes SQL through a project macro invoked with
	// run-operation; the macro prints COLUMN_NAMES=/ROW_DATA= marker lines.
	RunViaOperation = "operation"
	// RunViaShow executes SQL through the backend's inline preview command,
	// which prints a pipe-delimited table.
	RunViaShow = "show"
)

// Executor invokes the backend's query-execution entry point as a
// subordinate process. The query text is passed as an argument payload, not
// a file, and is forwarded byte for byte: the stage never interprets or
// rewrites it, so the safety verdict stays accurate for what actually ran.
type Executor struct {
	runner    CommandRunner
	command   string
	runVia    string
	operation string
	logger    *zap.Logger
}

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	// Command is the backend executable, e.g. "dbt".
	Command string
	// RunVia selects the execution route: RunViaOperation or RunViaShow.
	RunVia string
	// Operation is the project macro name used by the operation route.
	Operation string
}

// NewExecutor builds an execution stage over the given process runner.
func NewExecutor(runner CommandRunner, opts ExecutorOptions, logger *zap.Logger) *Executor {
	return &Executor{
		runner:    runner,
		command:   opts.Command,
		runVia:    opts.RunVia,
		operation: opts.Operation,
		logger:    logger.Named("execute"),
	}
}

// Execute runs the text against the configured connection and captures the
// outcome. It never returns an error: spawn failures surface as a failed
// outcome with the failure text in stderr. Wall-clock duration is measured
// around the invocation only. Cancellation comes from the caller's context;
// this stage imposes no timeout of its own.
func (e *Executor) Execute(ctx context.Context, text string, limit int, execCtx ExecContext) models.ExecutionOutcome {
	args := e.buildArgs(text, limit)
	args = append(args, execCtx.BaseArgs()...)

	start := time.Now()
	result, err := e.runner.Run(ctx, Invocation{
		Command: e.command,
		Args:    args,
		Dir:     execCtx.ProjectDir,
		Env:     execCtx.Env,
	})
	duration := time.Since(start)

	outcome := models.ExecutionOutcome{
		Success:  err == nil && result.ExitCode == 0,
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
		ExitCode: result.ExitCode,
		Duration: duration,
	}
	if err != nil && outcome.Stderr == "" {
		outcome.Stderr = err.Error()
	}

	e.logger.Debug("execution finished",
		zap.Bool("success", outcome.Success),
		zap.Int("exit_code", outcome.ExitCode),
		zap.Duration("duration", duration))
	return outcome
}

// buildArgs renders the route-specific command line.
func (e *Executor) buildArgs(text string, limit int) []string {
	if e.runVia == RunViaShow {
		args := []string{"show", "--inline", text}
		if limit > 0 {
			args = append(args, "--limit", strconv.Itoa(limit))
		}
		return args
	}

	payload := map[string]any{"sql": text}
	if limit > 0 {
		payload["limit"] = limit
	}
	// Marshaling a map of string and int never fails.
	argsJSON, _ := json.Marshal(payload)
	return []string{"run-operation", e.operation, "--args", string(argsJSON)}
}
