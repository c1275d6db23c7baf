// Package models defines the data types shared across the query pipeline,
// registry, and tool layers.
package models

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"
)

// Mode controls whether the safety gate blocks write/DDL statements.
type Mode string

const (
	// ModeReadOnly blocks any statement matching a write or DDL keyword.
	ModeReadOnly Mode = "read_only"
	// ModeUnrestricted allows write and DDL statements through the gate.
	ModeUnrestricted Mode = "unrestricted"
)

// RiskLevel classifies a query's safety verdict.
type RiskLevel string

const (
	RiskSafe      RiskLevel = "safe"
	RiskDangerous RiskLevel = "dangerous"
)

// QueryKind distinguishes plain SQL from a direct backend operation call.
type QueryKind string

const (
	QueryKindSQL       QueryKind = "sql"
	QueryKindOperation QueryKind = "operation"
)

// QueryRequest is a single pipeline invocation. Treated as immutable once
// created; the pipeline works on copies of its fields.
type QueryRequest struct {
	Text      string
	SessionID string
	Mode      Mode
	RowLimit  int
	Kind      QueryKind
}

// SafetyVerdict is the outcome of static keyword classification.
// RiskLevel is dangerous exactly when MatchedOperations is non-empty and the
// caller's mode forbids them; the injection fingerprint is advisory only and
// never changes the risk level.
type SafetyVerdict struct {
	IsReadOnly           bool      `json:"is_read_only"`
	RiskLevel            RiskLevel `json:"risk_level"`
	MatchedOperations    []string  `json:"matched_operations"`
	InjectionFingerprint string    `json:"injection_fingerprint,omitempty"`
}

// CompiledQuery is the result of resolving template/macro references through
// the backend's compile step. Resolved is empty when compilation soft-failed
// (no output artifact found); Diagnostic carries the backend's raw complaint
// on hard failure.
type CompiledQuery struct {
	Original   string
	Resolved   string
	Diagnostic string
}

// HasResolved reports whether compilation produced usable SQL.
func (c CompiledQuery) HasResolved() bool {
	return c.Resolved != ""
}

// ExecutionOutcome captures one backend invocation. Never mutated after the
// stage returns it.
type ExecutionOutcome struct {
	Success  bool
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Stable machine-readable failure codes carried in QueryResult.Code. Agent
// callers branch on these rather than parsing error text.
const (
	CodeEmptyQuery         = "EMPTY_QUERY"
	CodeMultipleStatements = "MULTIPLE_STATEMENTS"
	CodeSafetyBlocked      = "SAFETY_BLOCKED"
	CodeCompilationFailed  = "COMPILATION_FAILED"
	CodePreflightFailed    = "PREFLIGHT_FAILED"
	CodeExecutionFailed    = "EXECUTION_FAILED"
	CodeExtractionFailed   = "EXTRACTION_FAILED"
	CodeInternalError      = "INTERNAL_ERROR"
)

// QueryResult is the externally visible outcome of a pipeline run.
// Immutable after construction and always JSON-serializable: Data rows must
// pass through SafeRows before being set.
type QueryResult struct {
	Success         bool             `json:"success"`
	Kind            QueryKind        `json:"kind"`
	ExecutionTimeMS int64            `json:"execution_time_ms"`
	Columns         []string         `json:"columns,omitempty"`
	Data            []map[string]any `json:"data,omitempty"`
	RowCount        int              `json:"row_count"`
	CompiledSQL     string           `json:"compiled_sql,omitempty"`
	Error           string           `json:"error,omitempty"`
	Code            string           `json:"code,omitempty"`
	Safety          *SafetyVerdict   `json:"safety,omitempty"`
	// Index is assigned by the registry when the result is recorded.
	// Zero means the result was never recorded (e.g. a blocked query).
	Index int `json:"index,omitempty"`
}

// ToMap renders the result as a JSON-safe map, applying the same value
// conversion as SafeRows to every data cell.
func (r QueryResult) ToMap() map[string]any {
	m := map[string]any{
		"success":           r.Success,
		"kind":              string(r.Kind),
		"execution_time_ms": r.ExecutionTimeMS,
		"row_count":         r.RowCount,
	}
	if len(r.Columns) > 0 {
		m["columns"] = r.Columns
	}
	if r.Data != nil {
		m["data"] = SafeRows(r.Data)
	}
	if r.CompiledSQL != "" {
		m["compiled_sql"] = r.CompiledSQL
	}
	if r.Error != "" {
		m["error"] = r.Error
	}
	if r.Code != "" {
		m["code"] = r.Code
	}
	if r.Safety != nil {
		m["safety"] = map[string]any{
			"is_read_only":       r.Safety.IsReadOnly,
			"risk_level":         string(r.Safety.RiskLevel),
			"matched_operations": r.Safety.MatchedOperations,
		}
	}
	if r.Index > 0 {
		m["index"] = r.Index
	}
	return m
}

// QueryResultEntry wraps a recorded QueryResult with its 1-based session
// index, the original request text, and the time it was recorded. Entries
// are append-only; the registry is the sole index authority.
type QueryResultEntry struct {
	Index     int         `json:"index"`
	Timestamp time.Time   `json:"timestamp"`
	QueryText string      `json:"query_text"`
	Result    QueryResult `json:"result"`
}

// SessionHistory is the persisted shape of one session's registry file.
type SessionHistory struct {
	SessionID string             `json:"session_id"`
	Entries   []QueryResultEntry `json:"entries"`
}

// SafeRows converts every cell of every row through JSONSafeValue so the
// result can always be marshaled. Row and column order are preserved.
func SafeRows(rows []map[string]any) []map[string]any {
	if rows == nil {
		return nil
	}
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		safe := make(map[string]any, len(row))
		for k, v := range row {
			safe[k] = JSONSafeValue(v)
		}
		out[i] = safe
	}
	return out
}

// JSONSafeValue converts an arbitrary cell value into something that
// json.Marshal can always handle: integers, floats, bools and strings pass
// through, fixed-point decimals become float64, timestamps become RFC-3339
// strings, and everything else is stringified. The conversion is total; no
// input value causes a marshal failure downstream.
func JSONSafeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case json.Number:
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case *big.Float:
		f, _ := val.Float64()
		return f
	case *big.Rat:
		f, _ := val.Float64()
		return f
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = JSONSafeValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = JSONSafeValue(item)
		}
		return out
	case error:
		return val.Error()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
