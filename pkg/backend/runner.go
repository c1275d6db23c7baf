package backend

import (
	"context"
	"fmt"

	execute "github.com/alexellis/go-execute/v2"
	"go.uber.org/zap"
)

// Invocation describes one backend subprocess call.
type Invocation struct {
	Command string
	Args    []string
	Dir     string
	Env     []string
}

// InvocationResult carries the captured output of a finished call. A
// non-zero exit code is not an error at this level; stages decide what a
// failed invocation means.
type InvocationResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner executes backend subprocesses, capturing stdout and stderr
// separately. An error is returned only when the process could not be
// started or the context was canceled.
type CommandRunner interface {
	Run(ctx context.Context, inv Invocation) (InvocationResult, error)
}

type execRunner struct {
	logger *zap.Logger
}

var _ CommandRunner = (*execRunner)(nil)

// NewRunner returns the production CommandRunner backed by go-execute.
func NewRunner(logger *zap.Logger) CommandRunner {
	return &execRunner{logger: logger.Named("runner")}
}

func (r *execRunner) Run(ctx context.Context, inv Invocation) (InvocationResult, error) {
	r.logger.Debug("invoking backend",
		zap.String("command", inv.Command),
		zap.Strings("args", inv.Args),
		zap.String("dir", inv.Dir))

	task := execute.ExecTask{
		Command: inv.Command,
		Args:    inv.Args,
		Cwd:     inv.Dir,
		Env:     inv.Env,
	}

	result, err := task.Execute(ctx)
	out := InvocationResult{
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
		ExitCode: result.ExitCode,
	}
	if err != nil {
		r.logger.Error("backend invocation failed to start",
			zap.String("command", inv.Command),
			zap.Error(err))
		return out, fmt.Errorf("running %s: %w", inv.Command, err)
	}

	if out.ExitCode != 0 {
		r.logger.Warn("backend exited with non-zero code",
			zap.String("command", inv.Command),
			zap.Int("exit_code", out.ExitCode))
	}
	return out, nil
}
