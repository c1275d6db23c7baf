package tools

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryward/queryward/pkg/models"
)

func TestNewErrorResult(t *testing.T) {
	result := NewErrorResult("SAFETY_BLOCKED", "query blocked by safety policy")

	require.True(t, result.IsError)
	require.Len(t, result.Content, 1)

	text := textContent(t, result.Content[0])
	var envelope ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(text), &envelope))
	assert.True(t, envelope.Error)
	assert.Equal(t, "SAFETY_BLOCKED", envelope.Code)
	assert.Equal(t, "query blocked by safety policy", envelope.Message)
	assert.Nil(t, envelope.Details)
}

func TestNewErrorResultWithDetails(t *testing.T) {
	result := NewErrorResultWithDetails("RESULT_NOT_FOUND", "no result at index 9", map[string]any{
		"session_id": "default",
		"count":      3,
	})

	require.True(t, result.IsError)
	text := textContent(t, result.Content[0])

	var envelope ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(text), &envelope))
	details, ok := envelope.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "default", details["session_id"])
	assert.Equal(t, float64(3), details["count"])
}

func TestFromQueryResult_Success(t *testing.T) {
	result := FromQueryResult(models.QueryResult{
		Success:  true,
		Kind:     models.QueryKindSQL,
		Columns:  []string{"n"},
		Data:     []map[string]any{{"n": "1"}},
		RowCount: 1,
		Index:    7,
	})

	assert.False(t, result.IsError)
	text := textContent(t, result.Content[0])

	var parsed models.QueryResult
	require.NoError(t, json.Unmarshal([]byte(text), &parsed))
	assert.True(t, parsed.Success)
	assert.Equal(t, 7, parsed.Index)
}

func TestFromQueryResult_PlainFailure(t *testing.T) {
	result := FromQueryResult(models.QueryResult{
		Success: false,
		Error:   "query text is empty",
		Code:    models.CodeEmptyQuery,
	})

	assert.True(t, result.IsError)
	text := textContent(t, result.Content[0])

	var envelope ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(text), &envelope))
	assert.Equal(t, models.CodeEmptyQuery, envelope.Code)
	assert.Nil(t, envelope.Details, "nothing survived the run, so no details")
}

func TestFromQueryResult_PreflightFailureMapsSQLState(t *testing.T) {
	result := FromQueryResult(models.QueryResult{
		Success: false,
		Error:   `invalid SQL: ERROR: relation "flim" does not exist (SQLSTATE 42P01)`,
		Code:    models.CodePreflightFailed,
	})

	assert.True(t, result.IsError)
	text := textContent(t, result.Content[0])

	var envelope ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(text), &envelope))
	assert.Equal(t, models.CodePreflightFailed, envelope.Code)

	details, ok := envelope.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "undefined_table", details["sqlstate"])
}

func TestSQLStateDetail(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected string
	}{
		{"undefined table", `ERROR: relation "x" does not exist (SQLSTATE 42P01)`, "undefined_table"},
		{"syntax error", `ERROR: syntax error at or near "FORM" (SQLSTATE 42601)`, "syntax_error"},
		{"undefined column", `ERROR: column "ttle" does not exist (SQLSTATE 42703)`, "undefined_column"},
		{"unique violation", `ERROR: duplicate key value (SQLSTATE 23505)`, "unique_violation"},
		{"division by zero", `ERROR: division by zero (SQLSTATE 22012)`, "division_by_zero"},
		{"class fallback 22", `ERROR: bad data (SQLSTATE 22999)`, "data_exception"},
		{"class fallback 42", `ERROR: access rule (SQLSTATE 42999)`, "sql_error"},
		{"unknown class", `ERROR: weird (SQLSTATE 99001)`, "sql_error"},
		{"no sqlstate", "Database Error: compilation failed", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sqlStateDetail(tt.message))
		})
	}
}
