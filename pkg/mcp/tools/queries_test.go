package tools

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/queryward/queryward/pkg/models"
)

func newQueryToolDeps(t *testing.T, runner *fakeRunner) *QueryToolDeps {
	t.Helper()
	return &QueryToolDeps{
		Runner:         runner,
		Registries:     newTestRegistries(t),
		DefaultSession: "default",
		Logger:         zap.NewNop(),
	}
}

func TestRegisterQueryTools(t *testing.T) {
	s := newToolServer()
	RegisterQueryTools(s, newQueryToolDeps(t, &fakeRunner{}))

	names := listToolNames(t, s)
	assert.True(t, names["run_query"], "run_query should be registered")
	assert.True(t, names["get_query_result"], "get_query_result should be registered")
	assert.True(t, names["list_query_results"], "list_query_results should be registered")
	assert.True(t, names["clear_session"], "clear_session should be registered")
}

func TestRunQuery_ForwardsRequestAndResult(t *testing.T) {
	runner := &fakeRunner{result: models.QueryResult{
		Success:  true,
		Kind:     models.QueryKindSQL,
		Columns:  []string{"title"},
		Data:     []map[string]any{{"title": "ACADEMY DINOSAUR"}},
		RowCount: 1,
		Index:    3,
	}}
	s := newToolServer()
	RegisterQueryTools(s, newQueryToolDeps(t, runner))

	text, isError := callTool(t, s, "run_query", map[string]any{
		"query":      "SELECT title FROM {{ ref('film') }}",
		"session_id": "demo",
		"row_limit":  float64(50),
	})

	assert.False(t, isError)
	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, "SELECT title FROM {{ ref('film') }}", runner.gotReq.Text)
	assert.Equal(t, "demo", runner.gotReq.SessionID)
	assert.Equal(t, 50, runner.gotReq.RowLimit)
	assert.Equal(t, models.ModeReadOnly, runner.gotReq.Mode)

	var result models.QueryResult
	require.NoError(t, json.Unmarshal([]byte(text), &result))
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.RowCount)
	assert.Equal(t, 3, result.Index)
	assert.Equal(t, "ACADEMY DINOSAUR", result.Data[0]["title"])
}

func TestRunQuery_DefaultsSession(t *testing.T) {
	runner := &fakeRunner{result: models.QueryResult{Success: true}}
	s := newToolServer()
	RegisterQueryTools(s, newQueryToolDeps(t, runner))

	callTool(t, s, "run_query", map[string]any{"query": "SELECT 1"})

	assert.Equal(t, "default", runner.gotReq.SessionID)
	assert.Zero(t, runner.gotReq.RowLimit, "absent row_limit leaves the pipeline default in charge")
}

func TestRunQuery_UnrestrictedRejectedWhenDisabled(t *testing.T) {
	runner := &fakeRunner{}
	s := newToolServer()
	RegisterQueryTools(s, newQueryToolDeps(t, runner))

	text, isError := callTool(t, s, "run_query", map[string]any{
		"query":        "DELETE FROM film WHERE film_id = 1",
		"unrestricted": true,
	})

	assert.True(t, isError)
	envelope := decodeEnvelope(t, text)
	assert.Equal(t, "UNRESTRICTED_DISABLED", envelope.Code)
	assert.Zero(t, runner.calls, "a rejected flag must not reach the pipeline")
}

func TestRunQuery_UnrestrictedHonoredWhenAllowed(t *testing.T) {
	runner := &fakeRunner{result: models.QueryResult{Success: true}}
	deps := newQueryToolDeps(t, runner)
	deps.AllowUnrestricted = true
	s := newToolServer()
	RegisterQueryTools(s, deps)

	_, isError := callTool(t, s, "run_query", map[string]any{
		"query":        "DELETE FROM film WHERE film_id = 1",
		"unrestricted": true,
	})

	assert.False(t, isError)
	assert.Equal(t, models.ModeUnrestricted, runner.gotReq.Mode)
}

func TestRunQuery_FailureUsesErrorEnvelope(t *testing.T) {
	runner := &fakeRunner{result: models.QueryResult{
		Success:     false,
		Kind:        models.QueryKindSQL,
		Error:       `Database Error: relation "flim" does not exist`,
		Code:        models.CodeExecutionFailed,
		CompiledSQL: `SELECT count(*) FROM "pagila"."public"."flim"`,
		Index:       2,
	}}
	s := newToolServer()
	RegisterQueryTools(s, newQueryToolDeps(t, runner))

	text, isError := callTool(t, s, "run_query", map[string]any{
		"query": "SELECT count(*) FROM {{ ref('flim') }}",
	})

	assert.True(t, isError)
	envelope := decodeEnvelope(t, text)
	assert.True(t, envelope.Error)
	assert.Equal(t, models.CodeExecutionFailed, envelope.Code)
	assert.Contains(t, envelope.Message, "flim")

	details, ok := envelope.Details.(map[string]any)
	require.True(t, ok, "expected details map")
	assert.Equal(t, float64(2), details["index"], "executed failures carry their registry index")
	assert.Contains(t, details["compiled_sql"], "pagila")
}

func TestRunQuery_BlockedCarriesMatchedOperations(t *testing.T) {
	runner := &fakeRunner{result: models.QueryResult{
		Success: false,
		Kind:    models.QueryKindSQL,
		Error:   "query blocked by safety policy: detected DROP",
		Code:    models.CodeSafetyBlocked,
		Safety: &models.SafetyVerdict{
			RiskLevel:         models.RiskDangerous,
			MatchedOperations: []string{"DROP"},
		},
	}}
	s := newToolServer()
	RegisterQueryTools(s, newQueryToolDeps(t, runner))

	text, isError := callTool(t, s, "run_query", map[string]any{"query": "DROP TABLE film"})

	assert.True(t, isError)
	envelope := decodeEnvelope(t, text)
	assert.Equal(t, models.CodeSafetyBlocked, envelope.Code)

	details, ok := envelope.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"DROP"}, details["matched_operations"])
}

func TestGetQueryResult_ReturnsRecordedEntry(t *testing.T) {
	deps := newQueryToolDeps(t, &fakeRunner{})
	reg, err := deps.Registries.ForSession("default")
	require.NoError(t, err)
	_, err = reg.Record("SELECT 42 AS answer", models.QueryResult{
		Success:  true,
		Kind:     models.QueryKindSQL,
		Columns:  []string{"answer"},
		Data:     []map[string]any{{"answer": "42"}},
		RowCount: 1,
	})
	require.NoError(t, err)

	s := newToolServer()
	RegisterQueryTools(s, deps)

	text, isError := callTool(t, s, "get_query_result", map[string]any{"index": float64(1)})

	assert.False(t, isError)
	var entry models.QueryResultEntry
	require.NoError(t, json.Unmarshal([]byte(text), &entry))
	assert.Equal(t, 1, entry.Index)
	assert.Equal(t, "SELECT 42 AS answer", entry.QueryText)
	assert.Equal(t, "42", entry.Result.Data[0]["answer"])
}

func TestGetQueryResult_UnknownIndex(t *testing.T) {
	deps := newQueryToolDeps(t, &fakeRunner{})
	reg, err := deps.Registries.ForSession("default")
	require.NoError(t, err)
	_, err = reg.Record("SELECT 1", models.QueryResult{Success: true})
	require.NoError(t, err)

	s := newToolServer()
	RegisterQueryTools(s, deps)

	text, isError := callTool(t, s, "get_query_result", map[string]any{"index": float64(99)})

	assert.True(t, isError)
	envelope := decodeEnvelope(t, text)
	assert.Equal(t, "RESULT_NOT_FOUND", envelope.Code)

	details, ok := envelope.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "default", details["session_id"])
	assert.Equal(t, float64(1), details["count"])
}

func TestGetQueryResult_MissingIndexParameter(t *testing.T) {
	s := newToolServer()
	RegisterQueryTools(s, newQueryToolDeps(t, &fakeRunner{}))

	text, isError := callTool(t, s, "get_query_result", nil)

	assert.True(t, isError)
	envelope := decodeEnvelope(t, text)
	assert.Equal(t, "INVALID_INDEX", envelope.Code)
}

func TestListQueryResults_SummarizesSession(t *testing.T) {
	deps := newQueryToolDeps(t, &fakeRunner{})
	reg, err := deps.Registries.ForSession("default")
	require.NoError(t, err)
	_, err = reg.Record("SELECT 1 AS n", models.QueryResult{Success: true, RowCount: 1})
	require.NoError(t, err)
	_, err = reg.Record("SELECT broken FROM nowhere", models.QueryResult{
		Success: false,
		Code:    models.CodeExecutionFailed,
		Error:   "relation does not exist",
	})
	require.NoError(t, err)

	s := newToolServer()
	RegisterQueryTools(s, deps)

	text, isError := callTool(t, s, "list_query_results", nil)

	assert.False(t, isError)
	var listing listQueryResultsResult
	require.NoError(t, json.Unmarshal([]byte(text), &listing))
	assert.Equal(t, "default", listing.SessionID)
	assert.Equal(t, 2, listing.Count)
	require.Len(t, listing.Results, 2)
	assert.Equal(t, 1, listing.Results[0].Index)
	assert.True(t, listing.Results[0].Success)
	assert.Equal(t, 2, listing.Results[1].Index)
	assert.False(t, listing.Results[1].Success)
	assert.Equal(t, models.CodeExecutionFailed, listing.Results[1].Code)
	assert.NotEmpty(t, listing.Results[0].ExecutedAt)
}

func TestListQueryResults_EmptySession(t *testing.T) {
	s := newToolServer()
	RegisterQueryTools(s, newQueryToolDeps(t, &fakeRunner{}))

	text, isError := callTool(t, s, "list_query_results", map[string]any{"session_id": "fresh"})

	assert.False(t, isError)
	var listing listQueryResultsResult
	require.NoError(t, json.Unmarshal([]byte(text), &listing))
	assert.Equal(t, "fresh", listing.SessionID)
	assert.Zero(t, listing.Count)
	assert.Empty(t, listing.Results)
}

func TestClearSession_RemovesResults(t *testing.T) {
	deps := newQueryToolDeps(t, &fakeRunner{})
	reg, err := deps.Registries.ForSession("default")
	require.NoError(t, err)
	_, err = reg.Record("SELECT 1", models.QueryResult{Success: true})
	require.NoError(t, err)
	_, err = reg.Record("SELECT 2", models.QueryResult{Success: true})
	require.NoError(t, err)

	s := newToolServer()
	RegisterQueryTools(s, deps)

	text, isError := callTool(t, s, "clear_session", nil)

	assert.False(t, isError)
	var response struct {
		SessionID      string `json:"session_id"`
		ClearedResults int    `json:"cleared_results"`
	}
	require.NoError(t, json.Unmarshal([]byte(text), &response))
	assert.Equal(t, "default", response.SessionID)
	assert.Equal(t, 2, response.ClearedResults)
	assert.Zero(t, reg.Count(), "registry must be empty after clearing")
}
