package tools

import (
	"encoding/json"
	"regexp"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/queryward/queryward/pkg/models"
)

// ErrorResponse represents a structured error in tool results. Failures
// the agent can act on are returned inside this envelope rather than as
// MCP protocol errors, so the details stay visible instead of being
// swallowed by the client.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for recoverable failures: a blocked statement, a bad result
// index, SQL the warehouse rejected. System failures (a registry that
// cannot be opened, an unreachable backend binary) still return Go
// errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// NewErrorResultWithDetails creates an error result with additional
// context the agent can use to correct the call.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// FromQueryResult converts a finished pipeline result into a tool
// result. Successes carry the full result JSON; failures use the error
// envelope keyed by the pipeline's stable code, with whatever context
// survived the run attached as details.
func FromQueryResult(result models.QueryResult) *mcp.CallToolResult {
	if result.Success {
		raw, _ := json.Marshal(result)
		return mcp.NewToolResultText(string(raw))
	}

	details := map[string]any{}
	if result.Index > 0 {
		details["index"] = result.Index
	}
	if result.CompiledSQL != "" {
		details["compiled_sql"] = result.CompiledSQL
	}
	if result.Safety != nil && len(result.Safety.MatchedOperations) > 0 {
		details["matched_operations"] = result.Safety.MatchedOperations
	}
	if sub := sqlStateDetail(result.Error); sub != "" {
		details["sqlstate"] = sub
	}

	if len(details) == 0 {
		return NewErrorResult(result.Code, result.Error)
	}
	return NewErrorResultWithDetails(result.Code, result.Error, details)
}

// sqlStateRegex matches PostgreSQL SQLSTATE codes in error messages like "(SQLSTATE 42601)"
var sqlStateRegex = regexp.MustCompile(`\(SQLSTATE ([0-9A-Z]{5})\)`)

// sqlStateDetail maps a SQLSTATE embedded in error text to a stable
// sub-code. Preflight rejections carry one; backend error text usually
// does not.
func sqlStateDetail(message string) string {
	matches := sqlStateRegex.FindStringSubmatch(message)
	if len(matches) < 2 {
		return ""
	}
	return mapSQLStateToCode(matches[1])
}

// mapSQLStateToCode maps a SQLSTATE code to a human-readable error code.
func mapSQLStateToCode(sqlState string) string {
	if len(sqlState) < 2 {
		return "sql_error"
	}

	switch sqlState {
	case "42601":
		return "syntax_error"
	case "42703":
		return "undefined_column"
	case "42P01":
		return "undefined_table"
	case "42883":
		return "undefined_function"
	case "23505":
		return "unique_violation"
	case "23503":
		return "foreign_key_violation"
	case "23502":
		return "not_null_violation"
	case "22012":
		return "division_by_zero"
	case "22P02":
		return "invalid_input"
	}

	// Fall back to class-based codes
	switch sqlState[:2] {
	case "22":
		return "data_exception"
	case "23":
		return "constraint_violation"
	case "42":
		return "sql_error"
	}

	return "sql_error"
}
