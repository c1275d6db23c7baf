package tools

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/queryward/queryward/pkg/llm"
	"github.com/queryward/queryward/pkg/models"
)

func newQuestionToolDeps(runner *fakeRunner, translator QuestionTranslator) *QuestionToolDeps {
	deps := &QuestionToolDeps{
		Runner:         runner,
		DefaultSession: "default",
		Logger:         zap.NewNop(),
	}
	if translator != nil {
		deps.Translator = translator
	}
	return deps
}

func TestRegisterQuestionTool(t *testing.T) {
	s := newToolServer()
	RegisterQuestionTool(s, newQuestionToolDeps(&fakeRunner{}, nil))

	names := listToolNames(t, s)
	assert.True(t, names["ask_question"], "ask_question should be registered")
}

func TestAskQuestion_TranslatesAndExecutes(t *testing.T) {
	translator := &fakeTranslator{translation: &llm.Translation{
		SQL:         "SELECT count(*) FROM {{ ref('film') }}",
		Explanation: "Counts every film in the catalog.",
	}}
	runner := &fakeRunner{result: models.QueryResult{
		Success:  true,
		Kind:     models.QueryKindSQL,
		Columns:  []string{"count"},
		Data:     []map[string]any{{"count": "1000"}},
		RowCount: 1,
		Index:    1,
	}}
	s := newToolServer()
	RegisterQuestionTool(s, newQuestionToolDeps(runner, translator))

	text, isError := callTool(t, s, "ask_question", map[string]any{
		"question": "How many films are in the catalog?",
	})

	assert.False(t, isError)
	assert.Equal(t, "How many films are in the catalog?", translator.gotQuestion)
	assert.Equal(t, translator.translation.SQL, runner.gotReq.Text)
	assert.Equal(t, models.ModeReadOnly, runner.gotReq.Mode, "generated SQL always runs read-only")

	var response askQuestionResult
	require.NoError(t, json.Unmarshal([]byte(text), &response))
	assert.Equal(t, "How many films are in the catalog?", response.Question)
	assert.Equal(t, translator.translation.SQL, response.SQL)
	assert.Equal(t, "Counts every film in the catalog.", response.Explanation)
	assert.True(t, response.Result.Success)
	assert.Equal(t, 1, response.Result.Index)
}

func TestAskQuestion_NoTranslatorConfigured(t *testing.T) {
	runner := &fakeRunner{}
	s := newToolServer()
	RegisterQuestionTool(s, newQuestionToolDeps(runner, nil))

	text, isError := callTool(t, s, "ask_question", map[string]any{
		"question": "How many films are in the catalog?",
	})

	assert.True(t, isError)
	envelope := decodeEnvelope(t, text)
	assert.Equal(t, "LLM_NOT_CONFIGURED", envelope.Code)
	assert.Contains(t, envelope.Message, "run_query")
	assert.Zero(t, runner.calls)
}

func TestAskQuestion_TranslationFailure(t *testing.T) {
	translator := &fakeTranslator{err: errors.New("circuit breaker open, retry in 30s")}
	runner := &fakeRunner{}
	s := newToolServer()
	RegisterQuestionTool(s, newQuestionToolDeps(runner, translator))

	text, isError := callTool(t, s, "ask_question", map[string]any{
		"question": "How many films are in the catalog?",
	})

	assert.True(t, isError)
	envelope := decodeEnvelope(t, text)
	assert.Equal(t, "TRANSLATION_FAILED", envelope.Code)
	assert.Contains(t, envelope.Message, "circuit breaker open")
	assert.Zero(t, runner.calls, "nothing executes without SQL")
}

func TestAskQuestion_ExecutionFailureCarriesGeneratedSQL(t *testing.T) {
	translator := &fakeTranslator{translation: &llm.Translation{
		SQL:         "SELECT count(*) FROM filmz",
		Explanation: "Counts films.",
	}}
	runner := &fakeRunner{result: models.QueryResult{
		Success: false,
		Kind:    models.QueryKindSQL,
		Error:   `relation "filmz" does not exist`,
		Code:    models.CodeExecutionFailed,
		Index:   4,
	}}
	s := newToolServer()
	RegisterQuestionTool(s, newQuestionToolDeps(runner, translator))

	text, isError := callTool(t, s, "ask_question", map[string]any{
		"question": "How many films are there?",
	})

	assert.True(t, isError)
	envelope := decodeEnvelope(t, text)
	assert.Equal(t, models.CodeExecutionFailed, envelope.Code)

	details, ok := envelope.Details.(map[string]any)
	require.True(t, ok, "expected details map")
	assert.Equal(t, "SELECT count(*) FROM filmz", details["sql"])
}

func TestAskQuestion_ForwardsSessionAndLimit(t *testing.T) {
	translator := &fakeTranslator{translation: &llm.Translation{SQL: "SELECT 1"}}
	runner := &fakeRunner{result: models.QueryResult{Success: true}}
	s := newToolServer()
	RegisterQuestionTool(s, newQuestionToolDeps(runner, translator))

	callTool(t, s, "ask_question", map[string]any{
		"question":   "anything",
		"session_id": "analysis",
		"row_limit":  float64(25),
	})

	assert.Equal(t, "analysis", runner.gotReq.SessionID)
	assert.Equal(t, 25, runner.gotReq.RowLimit)
}
