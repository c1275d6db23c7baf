// Package pipeline orchestrates one query's path through classification,
// the safety gate, template compilation, backend execution, output
// extraction, and result recording.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/queryward/queryward/pkg/backend"
	"github.com/queryward/queryward/pkg/extract"
	"github.com/queryward/queryward/pkg/logging"
	"github.com/queryward/queryward/pkg/models"
	"github.com/queryward/queryward/pkg/registry"
	"github.com/queryward/queryward/pkg/sqltext"
)

// Classifier produces a safety verdict for query text.
type Classifier interface {
	Classify(text string, mode models.Mode) models.SafetyVerdict
}

// CompilationStage resolves template references into literal SQL.
type CompilationStage interface {
	Compile(ctx context.Context, text string, execCtx backend.ExecContext) (models.CompiledQuery, error)
}

// ExecutionStage runs resolved SQL against the backend.
type ExecutionStage interface {
	Execute(ctx context.Context, text string, limit int, execCtx backend.ExecContext) models.ExecutionOutcome
}

// PreflightStage asks the warehouse to plan resolved SQL before the backend
// runs it. Optional; a nil stage is skipped.
type PreflightStage interface {
	Validate(ctx context.Context, sql string) error
}

// RegistryFactory hands out per-session result registries.
type RegistryFactory interface {
	ForSession(sessionID string) (*registry.SessionRegistry, error)
}

// Auditor receives safety-gate events.
type Auditor interface {
	LogQueryBlocked(sessionID string, matchedOperations []string, queryText string)
	LogInjectionPattern(sessionID, fingerprint, queryText string)
	LogUnrestrictedExecution(sessionID string, matchedOperations []string, queryText string)
}

// Deps bundles the pipeline's collaborators. Preflight is the only
// optional one.
type Deps struct {
	Classifier Classifier
	Compiler   CompilationStage
	Executor   ExecutionStage
	Preflight  PreflightStage
	Errors     *extract.ErrorExtractor
	Registries RegistryFactory
	Auditor    Auditor
}

// Options carries the per-installation execution settings.
type Options struct {
	// ExecContext is the backend environment every invocation runs under.
	ExecContext backend.ExecContext
	// ExecTimeout bounds the execution stage only. Compilation is left
	// unbounded because interrupting it mid-flight risks leaving the staged
	// artifact behind; zero disables the bound entirely.
	ExecTimeout time.Duration
	// DefaultRowLimit applies when the request does not set its own limit.
	DefaultRowLimit int
}

// Pipeline runs queries synchronously on the calling goroutine. Concurrency
// is the caller's concern; invocations against the same session share the
// session registry's write lock through the factory.
type Pipeline struct {
	deps   Deps
	opts   Options
	logger *zap.Logger
}

// New builds a pipeline from its collaborators.
func New(deps Deps, opts Options, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		deps:   deps,
		opts:   opts,
		logger: logger.Named("pipeline"),
	}
}

// Run takes a request through the full stage sequence and returns a
// QueryResult in every case; it never panics out to the caller. Blocked and
// never-executed requests are reported directly without a registry entry,
// while every executed request, failed or not, is recorded under the next
// session index.
func (p *Pipeline) Run(ctx context.Context, req models.QueryRequest) (result models.QueryResult) {
	stage := "RECEIVED"
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline recovered from unexpected failure",
				zap.String("stage", stage),
				zap.Any("panic", r))
			result = models.QueryResult{
				Success: false,
				Kind:    queryKind(req),
				Error:   fmt.Sprintf("unexpected failure in stage %s: %v", stage, r),
				Code:    models.CodeInternalError,
			}
		}
	}()

	kind := queryKind(req)
	mode := req.Mode
	if mode == "" {
		mode = models.ModeReadOnly
	}

	if sqltext.IsBlank(req.Text) {
		return models.QueryResult{
			Success: false,
			Kind:    kind,
			Error:   "query text is empty",
			Code:    models.CodeEmptyQuery,
		}
	}

	normalized, err := sqltext.Normalize(req.Text)
	if err != nil {
		return models.QueryResult{
			Success: false,
			Kind:    kind,
			Error:   err.Error(),
			Code:    models.CodeMultipleStatements,
		}
	}

	stage = "CLASSIFIED"
	verdict := p.deps.Classifier.Classify(normalized, mode)
	if verdict.InjectionFingerprint != "" {
		p.deps.Auditor.LogInjectionPattern(req.SessionID, verdict.InjectionFingerprint, normalized)
	}

	if verdict.RiskLevel == models.RiskDangerous {
		stage = "BLOCKED"
		p.deps.Auditor.LogQueryBlocked(req.SessionID, verdict.MatchedOperations, normalized)
		p.logger.Warn("query blocked",
			zap.String("session_id", req.SessionID),
			zap.Strings("matched_operations", verdict.MatchedOperations))
		v := verdict
		return models.QueryResult{
			Success: false,
			Kind:    kind,
			Error: fmt.Sprintf("query blocked by safety policy: detected %s. Re-run in unrestricted mode to allow write statements.",
				strings.Join(verdict.MatchedOperations, ", ")),
			Code:   models.CodeSafetyBlocked,
			Safety: &v,
		}
	}
	if !verdict.IsReadOnly {
		p.deps.Auditor.LogUnrestrictedExecution(req.SessionID, verdict.MatchedOperations, normalized)
	}

	stage = "COMPILING"
	compiled, err := p.deps.Compiler.Compile(ctx, normalized, p.opts.ExecContext)
	if err != nil {
		errText := compiled.Diagnostic
		if errText == "" {
			errText = err.Error()
		}
		if req.Text != normalized {
			errText = fmt.Sprintf("original query:\n%s\n\nnormalized query:\n%s\n---\n%s", req.Text, normalized, errText)
		}
		return p.withVerdict(models.QueryResult{
			Success: false,
			Kind:    kind,
			Error:   errText,
			Code:    models.CodeCompilationFailed,
		}, verdict)
	}

	execText := normalized
	compiledSQL := ""
	if compiled.HasResolved() {
		execText = compiled.Resolved
		if compiled.Resolved != normalized {
			compiledSQL = compiled.Resolved
		}
	}

	if p.deps.Preflight != nil {
		stage = "PREFLIGHT"
		if err := p.deps.Preflight.Validate(ctx, execText); err != nil {
			return p.withVerdict(models.QueryResult{
				Success: false,
				Kind:    kind,
				Error:   err.Error(),
				Code:    models.CodePreflightFailed,
			}, verdict)
		}
	}

	limit := req.RowLimit
	if limit <= 0 {
		limit = p.opts.DefaultRowLimit
	}

	stage = "EXECUTING"
	execCtx := ctx
	if p.opts.ExecTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, p.opts.ExecTimeout)
		defer cancel()
	}
	outcome := p.deps.Executor.Execute(execCtx, execText, limit, p.opts.ExecContext)

	stage = "EXTRACTING"
	result = p.extractResult(kind, normalized, execText, compiledSQL, outcome)
	result = p.withVerdict(result, verdict)

	stage = "RECORDED"
	result = p.record(req, result)

	p.logger.Info("query pipeline finished",
		zap.String("session_id", req.SessionID),
		zap.Bool("success", result.Success),
		zap.String("code", result.Code),
		zap.Int("index", result.Index),
		zap.Int64("execution_time_ms", result.ExecutionTimeMS),
		zap.String("query", logging.SanitizeQuery(req.Text)))
	return result
}

// extractResult turns a raw execution outcome into the externally visible
// result, running the codec over the backend output.
func (p *Pipeline) extractResult(kind models.QueryKind, normalized, execText, compiledSQL string, outcome models.ExecutionOutcome) models.QueryResult {
	base := models.QueryResult{
		Kind:            kind,
		ExecutionTimeMS: outcome.Duration.Milliseconds(),
		CompiledSQL:     compiledSQL,
	}

	if !outcome.Success {
		errText := p.deps.Errors.Extract(outcome.Stdout, outcome.Stderr, normalized, execText)
		if errText == "" {
			errText = fmt.Sprintf("backend exited with status %d and produced no output", outcome.ExitCode)
		}
		base.Error = errText
		base.Code = models.CodeExecutionFailed
		return base
	}

	out := extract.Parse(outcome.Stdout)
	switch out.Kind {
	case extract.KindMarked, extract.KindTabular:
		base.Success = true
		base.Columns = out.Columns
		base.Data = models.SafeRows(out.Rows)
		base.RowCount = len(out.Rows)
	default:
		// The backend reported success but printed nothing tabular. Surface
		// the raw text rather than a false empty result.
		base.Error = p.deps.Errors.Extract(outcome.Stdout, outcome.Stderr, normalized, execText)
		base.Code = models.CodeExtractionFailed
	}
	return base
}

// record writes an executed result into the session registry and stamps the
// assigned index onto the result. Persistence problems are logged and the
// in-memory result returned regardless: a durability failure must not mask
// a finished query.
func (p *Pipeline) record(req models.QueryRequest, result models.QueryResult) models.QueryResult {
	reg, err := p.deps.Registries.ForSession(req.SessionID)
	if err != nil {
		p.logger.Error("result registry unavailable, returning unrecorded result",
			zap.String("session_id", req.SessionID),
			zap.Error(err))
		return result
	}

	entry, err := reg.Record(req.Text, result)
	if err != nil {
		p.logger.Warn("result registry persistence failed",
			zap.String("session_id", req.SessionID),
			zap.Error(err))
	}
	result.Index = entry.Index
	return result
}

// withVerdict attaches the safety verdict when it says something worth
// keeping: matched operations or an injection fingerprint.
func (p *Pipeline) withVerdict(result models.QueryResult, verdict models.SafetyVerdict) models.QueryResult {
	if len(verdict.MatchedOperations) > 0 || verdict.InjectionFingerprint != "" {
		v := verdict
		result.Safety = &v
	}
	return result
}

func queryKind(req models.QueryRequest) models.QueryKind {
	if req.Kind == "" {
		return models.QueryKindSQL
	}
	return req.Kind
}
