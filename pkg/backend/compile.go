package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/queryward/queryward/pkg/apperrors"
	"github.com/queryward/queryward/pkg/models"
)

// Compiler resolves template/macro references by staging the query text as
// an analysis artifact and asking the backend to compile just that artifact.
type Compiler struct {
	fs            afero.Fs
	runner        CommandRunner
	command       string
	stagingSubdir string
	searchDirs    []string
	logger        *zap.Logger
}

// CompilerOptions configures a Compiler.
type CompilerOptions struct {
	// Command is the backend executable, e.g. "dbt".
	Command string
	// StagingSubdir is the project subdirectory the backend scans for
	// analysis files, e.g. "analyses".
	StagingSubdir string
	// SearchDirs are extra roots (relative to the project dir) searched for
	// compiled output when the conventional locations come up empty.
	SearchDirs []string
}

// NewCompiler builds a compilation stage over the given filesystem and
// process runner.
func NewCompiler(fs afero.Fs, runner CommandRunner, opts CompilerOptions, logger *zap.Logger) *Compiler {
	return &Compiler{
		fs:            fs,
		runner:        runner,
		command:       opts.Command,
		stagingSubdir: opts.StagingSubdir,
		searchDirs:    opts.SearchDirs,
		logger:        logger.Named("compile"),
	}
}

// Compile stages the text, invokes the backend's compile operation scoped to
// the staged artifact, and reads back the resolved SQL.
//
// Failure semantics: a backend diagnostic (non-zero exit) is a hard failure
// returned as ErrCompilationFailed with the raw diagnostic preserved. Merely
// failing to locate the compiled output is a soft failure: the returned
// CompiledQuery has no resolved text and no error, and the caller falls back
// to executing the original text.
//
// The staged artifact is removed on every exit path.
func (c *Compiler) Compile(ctx context.Context, text string, execCtx ExecContext) (models.CompiledQuery, error) {
	compiled := models.CompiledQuery{Original: text}

	stem := stagingStem()
	stagingDir := filepath.Join(execCtx.ProjectDir, c.stagingSubdir)
	if err := c.fs.MkdirAll(stagingDir, 0o755); err != nil {
		compiled.Diagnostic = err.Error()
		return compiled, fmt.Errorf("%w: creating staging directory: %v", apperrors.ErrCompilationFailed, err)
	}

	artifact := filepath.Join(stagingDir, stem+".sql")
	if err := afero.WriteFile(c.fs, artifact, []byte(text), 0o644); err != nil {
		compiled.Diagnostic = err.Error()
		return compiled, fmt.Errorf("%w: staging query artifact: %v", apperrors.ErrCompilationFailed, err)
	}
	defer func() {
		if err := c.fs.Remove(artifact); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("failed to remove staged artifact",
				zap.String("artifact", artifact), zap.Error(err))
		}
	}()

	args := append([]string{"compile", "--select", stem}, execCtx.BaseArgs()...)
	result, err := c.runner.Run(ctx, Invocation{
		Command: c.command,
		Args:    args,
		Dir:     execCtx.ProjectDir,
		Env:     execCtx.Env,
	})
	if err != nil {
		compiled.Diagnostic = err.Error()
		return compiled, fmt.Errorf("%w: %v", apperrors.ErrCompilationFailed, err)
	}
	if result.ExitCode != 0 {
		compiled.Diagnostic = compileDiagnostic(result)
		return compiled, fmt.Errorf("%w: backend exited with status %d", apperrors.ErrCompilationFailed, result.ExitCode)
	}

	resolved, resolverName := c.resolveCompiled(stem, execCtx)
	if resolved == "" {
		c.logger.Warn("compiled output not found, falling back to original text",
			zap.String("stem", stem))
		return compiled, nil
	}

	c.logger.Debug("compiled output resolved",
		zap.String("stem", stem),
		zap.String("resolver", resolverName))
	compiled.Resolved = resolved
	return compiled, nil
}

// resolveCompiled tries each candidate resolver in order and reports which
// one produced the compiled text.
func (c *Compiler) resolveCompiled(stem string, execCtx ExecContext) (string, string) {
	type resolver struct {
		name string
		fn   func() (string, bool)
	}

	resolvers := []resolver{
		{name: "conventional-path", fn: func() (string, bool) {
			return c.readConventionalPath(stem, execCtx)
		}},
		{name: "target-search", fn: func() (string, bool) {
			return c.searchByName(filepath.Join(execCtx.ProjectDir, "target", "compiled"), stem)
		}},
	}
	for _, dir := range c.searchDirs {
		dir := dir
		resolvers = append(resolvers, resolver{
			name: "configured-search:" + dir,
			fn: func() (string, bool) {
				return c.searchByName(filepath.Join(execCtx.ProjectDir, dir), stem)
			},
		})
	}

	for _, r := range resolvers {
		if text, ok := r.fn(); ok {
			return text, r.name
		}
	}
	return "", ""
}

// readConventionalPath reads target/compiled/<project>/<staging>/<stem>.sql,
// the layout current backend versions produce.
func (c *Compiler) readConventionalPath(stem string, execCtx ExecContext) (string, bool) {
	project, err := c.projectName(execCtx.ProjectDir)
	if err != nil {
		c.logger.Debug("project name unavailable, skipping conventional path", zap.Error(err))
		return "", false
	}

	path := filepath.Join(execCtx.ProjectDir, "target", "compiled", project, c.stagingSubdir, stem+".sql")
	return c.readCompiledFile(path)
}

// errStopWalk terminates a search walk once the artifact is found.
var errStopWalk = errors.New("stop walk")

// searchByName walks root for any file named <stem>.sql; this absorbs
// output-layout differences across backend versions.
func (c *Compiler) searchByName(root, stem string) (string, bool) {
	want := stem + ".sql"
	var found string

	_ = afero.Walk(c.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() && info.Name() == want {
			found = path
			return errStopWalk
		}
		return nil
	})
	if found == "" {
		return "", false
	}
	return c.readCompiledFile(found)
}

func (c *Compiler) readCompiledFile(path string) (string, bool) {
	data, err := afero.ReadFile(c.fs, path)
	if err != nil {
		return "", false
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", false
	}
	return text, true
}

// projectName reads the backend project's name from its project file; the
// name determines where compiled output lands.
func (c *Compiler) projectName(projectDir string) (string, error) {
	data, err := afero.ReadFile(c.fs, filepath.Join(projectDir, "dbt_project.yml"))
	if err != nil {
		return "", err
	}
	var project struct {
		Name string `yaml:"name"`
	}
	if err := yaml.Unmarshal(data, &project); err != nil {
		return "", fmt.Errorf("parsing project file: %w", err)
	}
	if project.Name == "" {
		return "", fmt.Errorf("project file has no name")
	}
	return project.Name, nil
}

// compileDiagnostic flattens the backend's output into one verbatim
// diagnostic string for the caller.
func compileDiagnostic(result InvocationResult) string {
	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(result.Stdout); s != "" {
		parts = append(parts, s)
	}
	if s := strings.TrimSpace(result.Stderr); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n")
}

// stagingStem generates a unique artifact name. Timestamp plus random
// suffix gives concurrent sessions enough entropy to never collide in the
// shared staging directory.
func stagingStem() string {
	return fmt.Sprintf("qw_%d_%s", time.Now().UnixNano(), uuid.NewString()[:8])
}
