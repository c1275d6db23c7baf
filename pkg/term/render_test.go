package term

import (
	"bytes"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"

	"github.com/queryward/queryward/pkg/models"
)

func TestMain(m *testing.M) {
	// Assertions match on plain text; ANSI sequences would break them.
	pterm.DisableStyling()
	os.Exit(m.Run())
}

func TestRenderResult_SuccessTable(t *testing.T) {
	var buf bytes.Buffer
	RenderResult(&buf, models.QueryResult{
		Success:         true,
		Kind:            models.QueryKindSQL,
		ExecutionTimeMS: 132,
		Columns:         []string{"title", "length"},
		Data: []map[string]any{
			{"title": "ACADEMY DINOSAUR", "length": 86},
			{"title": "ACE GOLDFINGER", "length": 48},
		},
		RowCount: 2,
	})

	out := buf.String()
	assert.Contains(t, out, "title")
	assert.Contains(t, out, "ACADEMY DINOSAUR", "cell values should render")
	assert.Contains(t, out, "86")
	assert.Contains(t, out, "2 rows in 132ms")
}

func TestRenderResult_NoRows(t *testing.T) {
	var buf bytes.Buffer
	RenderResult(&buf, models.QueryResult{Success: true, ExecutionTimeMS: 45})

	assert.Contains(t, buf.String(), "no rows in 45ms")
}

func TestRenderResult_Failure(t *testing.T) {
	var buf bytes.Buffer
	RenderResult(&buf, models.QueryResult{
		Success: false,
		Code:    models.CodeSafetyBlocked,
		Error:   "query blocked by safety gate",
		Safety: &models.SafetyVerdict{
			RiskLevel:         models.RiskDangerous,
			MatchedOperations: []string{"DROP", "TRUNCATE"},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "SAFETY_BLOCKED")
	assert.Contains(t, out, "query blocked by safety gate")
	assert.Contains(t, out, "blocked operations: DROP, TRUNCATE")
}

func TestRenderResult_FailureShowsCompiledSQL(t *testing.T) {
	var buf bytes.Buffer
	RenderResult(&buf, models.QueryResult{
		Success:     false,
		Code:        models.CodeExecutionFailed,
		Error:       `relation "flim" does not exist`,
		CompiledSQL: `SELECT title FROM "pagila"."public"."flim"`,
	})

	assert.Contains(t, buf.String(), `compiled sql: SELECT title FROM "pagila"."public"."flim"`)
}

func TestRenderResult_DerivesColumnsWhenUnset(t *testing.T) {
	var buf bytes.Buffer
	RenderResult(&buf, models.QueryResult{
		Success:  true,
		Data:     []map[string]any{{"b_col": 2, "a_col": 1}},
		RowCount: 1,
	})

	out := buf.String()
	assert.Contains(t, out, "a_col")
	assert.Contains(t, out, "b_col")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("a_col")), bytes.Index(buf.Bytes(), []byte("b_col")),
		"derived columns should be sorted")
}

func TestRenderHistory(t *testing.T) {
	var buf bytes.Buffer
	RenderHistory(&buf, "default", []models.QueryResultEntry{
		{
			Index:     1,
			Timestamp: time.Now().Add(-3 * time.Minute),
			QueryText: "SELECT title FROM film WHERE rating = 'PG' ORDER BY title LIMIT 100",
			Result:    models.QueryResult{Success: true, RowCount: 100},
		},
		{
			Index:     2,
			Timestamp: time.Now().Add(-30 * time.Second),
			QueryText: "DROP TABLE film",
			Result:    models.QueryResult{Success: false, Code: models.CodeExecutionFailed},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "When")
	assert.Contains(t, out, "minutes ago")
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "EXECUTION_FAILED")
	assert.Contains(t, out, "...", "long queries should be truncated")
}

func TestRenderHistory_Empty(t *testing.T) {
	var buf bytes.Buffer
	RenderHistory(&buf, "scratch", nil)

	assert.Contains(t, buf.String(), `no recorded results in session "scratch"`)
}

func TestRenderEntry(t *testing.T) {
	var buf bytes.Buffer
	RenderEntry(&buf, models.QueryResultEntry{
		Index:     3,
		Timestamp: time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC),
		QueryText: "SELECT count(*) FROM rental",
		Result: models.QueryResult{
			Success:  true,
			Columns:  []string{"count"},
			Data:     []map[string]any{{"count": 16044}},
			RowCount: 1,
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Index:    3")
	assert.Contains(t, out, "2026-08-25T10:30:00Z")
	assert.Contains(t, out, "SELECT count(*) FROM rental")
	assert.Contains(t, out, "16044")
}

func TestRenderSessions(t *testing.T) {
	var buf bytes.Buffer
	RenderSessions(&buf, "default", []string{"analysis", "default"})

	out := buf.String()
	assert.Contains(t, out, "* default")
	assert.Contains(t, out, "  analysis")
}

func TestRenderSessions_Empty(t *testing.T) {
	var buf bytes.Buffer
	RenderSessions(&buf, "default", nil)

	assert.Contains(t, buf.String(), "no sessions recorded")
}

func TestRenderCheck(t *testing.T) {
	var buf bytes.Buffer
	RenderCheck(&buf, "backend", nil, "dbt 1.8.2")
	RenderCheck(&buf, "registry", nil, "")
	RenderCheck(&buf, "warehouse", errors.New("connection refused"), "")
	RenderSkip(&buf, "llm", "no model configured")

	out := buf.String()
	assert.Contains(t, out, "✓ backend (dbt 1.8.2)")
	assert.Contains(t, out, "✓ registry")
	assert.Contains(t, out, "✗ warehouse: connection refused")
	assert.Contains(t, out, "- llm: no model configured")
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-10", 10, "exactly-10"},
		{"this one is too long", 10, "this one i..."},
		{"line\none\n\tline two", 40, "line one line two"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncate(tt.in, tt.max))
	}
}
