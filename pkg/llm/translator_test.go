package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/queryward/queryward/pkg/retry"
)

func fastRetryConfig() *retry.Config {
	return &retry.Config{
		MaxRetries:       3,
		InitialDelay:     time.Millisecond,
		MaxDelay:         5 * time.Millisecond,
		Multiplier:       2.0,
		MaxSameErrorType: 5,
	}
}

func newTestTranslator(client LLMClient, hinter *SchemaHinter) *Translator {
	tr := NewTranslator(client, hinter, TranslatorOptions{Adapter: "postgres"}, zap.NewNop())
	tr.retryCfg = fastRetryConfig()
	return tr
}

func translationResponse(t *testing.T, sql, explanation string) string {
	t.Helper()
	raw, err := json.Marshal(map[string]string{"sql": sql, "explanation": explanation})
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return string(raw)
}

func TestTranslate_ParsesProviderJSON(t *testing.T) {
	mock := NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		return translationResponse(t, "SELECT title FROM film ORDER BY length DESC LIMIT 10", "longest films first"), nil
	}
	tr := newTestTranslator(mock, nil)

	result, err := tr.Translate(context.Background(), "what are the longest films?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SQL != "SELECT title FROM film ORDER BY length DESC LIMIT 10" {
		t.Errorf("unexpected sql: %q", result.SQL)
	}
	if result.Explanation != "longest films first" {
		t.Errorf("unexpected explanation: %q", result.Explanation)
	}
	if mock.GenerateResponseCalls != 1 {
		t.Errorf("expected 1 provider call, got %d", mock.GenerateResponseCalls)
	}
	if !strings.Contains(mock.LastPrompt, "what are the longest films?") {
		t.Error("expected prompt to carry the question")
	}
	if !strings.Contains(mock.LastPrompt, "postgres") {
		t.Error("expected prompt to name the target dialect")
	}
	if mock.LastSystemMessage == "" {
		t.Error("expected a system message")
	}
}

func TestTranslate_StripsFencedSQL(t *testing.T) {
	mock := NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		return translationResponse(t, "```sql\nSELECT count(*) FROM rental\n```", "rental count"), nil
	}
	tr := newTestTranslator(mock, nil)

	result, err := tr.Translate(context.Background(), "how many rentals?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SQL != "SELECT count(*) FROM rental" {
		t.Errorf("expected fences stripped, got %q", result.SQL)
	}
}

func TestTranslate_ToleratesNonStringExplanation(t *testing.T) {
	mock := NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		return `{"sql": "SELECT 1", "explanation": 42}`, nil
	}
	tr := newTestTranslator(mock, nil)

	result, err := tr.Translate(context.Background(), "anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Explanation != "42" {
		t.Errorf("expected numeric explanation coerced to string, got %q", result.Explanation)
	}
}

func TestTranslate_HandlesThinkTags(t *testing.T) {
	mock := NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		return "<think>need a simple aggregate</think>\n" + translationResponse(t, "SELECT count(*) FROM film", "film count"), nil
	}
	tr := newTestTranslator(mock, nil)

	result, err := tr.Translate(context.Background(), "how many films?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SQL != "SELECT count(*) FROM film" {
		t.Errorf("unexpected sql: %q", result.SQL)
	}
}

func TestTranslate_MissingSQLField(t *testing.T) {
	mock := NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		return `{"explanation": "I could not form a query"}`, nil
	}
	tr := newTestTranslator(mock, nil)

	_, err := tr.Translate(context.Background(), "something unanswerable")
	if err == nil {
		t.Fatal("expected error for response without sql")
	}
	if !strings.Contains(err.Error(), "no sql field") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTranslate_EmptyQuestion(t *testing.T) {
	mock := NewMockLLMClient()
	tr := newTestTranslator(mock, nil)

	if _, err := tr.Translate(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty question")
	}
	if mock.GenerateResponseCalls != 0 {
		t.Errorf("expected no provider calls, got %d", mock.GenerateResponseCalls)
	}
}

func TestTranslate_RetriesTransientProviderErrors(t *testing.T) {
	mock := NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		if mock.GenerateResponseCalls < 3 {
			return "", NewError(ErrorTypeEndpoint, "HTTP 503 service unavailable", true, nil)
		}
		return translationResponse(t, "SELECT 1", "constant"), nil
	}
	tr := newTestTranslator(mock, nil)

	result, err := tr.Translate(context.Background(), "anything")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SQL != "SELECT 1" {
		t.Errorf("unexpected sql: %q", result.SQL)
	}
	if mock.GenerateResponseCalls != 3 {
		t.Errorf("expected 3 provider calls (2 failures + success), got %d", mock.GenerateResponseCalls)
	}
	if tr.breaker.State() != CircuitClosed {
		t.Errorf("expected breaker closed after eventual success, got %v", tr.breaker.State())
	}
}

func TestTranslate_DoesNotRetryAuthErrors(t *testing.T) {
	mock := NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		return "", NewError(ErrorTypeAuth, "authentication failed", false, nil)
	}
	tr := newTestTranslator(mock, nil)

	_, err := tr.Translate(context.Background(), "anything")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "authentication failed") {
		t.Errorf("unexpected error: %v", err)
	}
	if mock.GenerateResponseCalls != 1 {
		t.Errorf("expected a single provider call for a permanent error, got %d", mock.GenerateResponseCalls)
	}

	var llmErr *Error
	if !errors.As(err, &llmErr) || llmErr.Type != ErrorTypeAuth {
		t.Errorf("expected wrapped auth error, got %v", err)
	}
}

func TestTranslate_BreakerFailsFastAfterRepeatedFailures(t *testing.T) {
	mock := NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		return "", NewError(ErrorTypeEndpoint, "connection refused", false, nil)
	}
	tr := newTestTranslator(mock, nil)
	tr.breaker = NewCircuitBreaker(CircuitBreakerConfig{Threshold: 2, ResetAfter: time.Minute})
	tr.retryCfg.MaxRetries = 0

	for i := 0; i < 2; i++ {
		if _, err := tr.Translate(context.Background(), "anything"); err == nil {
			t.Fatalf("expected failure on call %d", i+1)
		}
	}
	if mock.GenerateResponseCalls != 2 {
		t.Fatalf("expected 2 provider calls before the trip, got %d", mock.GenerateResponseCalls)
	}

	_, err := tr.Translate(context.Background(), "anything")
	if err == nil || !strings.Contains(err.Error(), "circuit breaker open") {
		t.Fatalf("expected fail-fast breaker error, got %v", err)
	}
	if mock.GenerateResponseCalls != 2 {
		t.Errorf("expected no provider call while the breaker is open, got %d", mock.GenerateResponseCalls)
	}
}

func TestTranslate_PromptIncludesSchemaHints(t *testing.T) {
	fs := afero.NewMemMapFs()
	schema := `version: 2
models:
  - name: film
    description: One row per film
    columns:
      - name: title
        description: Film title
      - name: length
        description: Running time in minutes
`
	if err := afero.WriteFile(fs, "/proj/models/schema.yml", []byte(schema), 0o644); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	hinter := NewSchemaHinter(fs, "/proj", zap.NewNop())

	mock := NewMockLLMClient()
	mock.GenerateResponseFunc = func(ctx context.Context, prompt, system string, temperature float64) (string, error) {
		return translationResponse(t, "SELECT title FROM film", "titles"), nil
	}
	tr := newTestTranslator(mock, hinter)

	if _, err := tr.Translate(context.Background(), "list film titles"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(mock.LastPrompt, "## Available Models") {
		t.Error("expected prompt to include the models section")
	}
	if !strings.Contains(mock.LastPrompt, "film") {
		t.Error("expected prompt to name the documented model")
	}
	if !strings.Contains(mock.LastPrompt, "Running time in minutes") {
		t.Error("expected prompt to carry column descriptions")
	}
}
