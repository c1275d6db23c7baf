package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/queryward/queryward/pkg/jsonutil"
	"github.com/queryward/queryward/pkg/prompts"
	"github.com/queryward/queryward/pkg/retry"
)

// Translation is the parsed result of a natural-language translation. The
// SQL grants no privilege: it still passes the full safety gate before it
// can execute.
type Translation struct {
	SQL         string `json:"sql"`
	Explanation string `json:"explanation"`
}

// TranslatorOptions tune how questions are prompted.
type TranslatorOptions struct {
	Adapter     string  // warehouse dialect named in the prompt, e.g. "postgres"
	Temperature float64 // defaults to 0.1; translations want determinism
}

// Translator turns a question into a candidate SELECT statement using the
// configured provider. Transient provider errors are retried with backoff;
// a provider that keeps failing trips the circuit breaker so later
// questions fail fast instead of waiting out a timeout each.
type Translator struct {
	client      LLMClient
	hinter      *SchemaHinter
	breaker     *CircuitBreaker
	retryCfg    *retry.Config
	adapter     string
	temperature float64
	logger      *zap.Logger
}

// NewTranslator builds a translator. The hinter may be nil when no project
// directory is configured; translation then runs without schema context.
func NewTranslator(client LLMClient, hinter *SchemaHinter, opts TranslatorOptions, logger *zap.Logger) *Translator {
	temperature := opts.Temperature
	if temperature <= 0 {
		temperature = 0.1
	}
	return &Translator{
		client:      client,
		hinter:      hinter,
		breaker:     NewCircuitBreaker(DefaultCircuitBreakerConfig()),
		retryCfg:    retry.DefaultConfig(),
		adapter:     opts.Adapter,
		temperature: temperature,
		logger:      logger.Named("translator"),
	}
}

// Translate prompts the provider for a single SELECT answering the question.
func (t *Translator) Translate(ctx context.Context, question string) (*Translation, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is empty")
	}

	if ok, err := t.breaker.Allow(); !ok {
		return nil, err
	}

	var hints []prompts.ModelHint
	if t.hinter != nil {
		hints = t.hinter.HintsFor(question)
	}
	t.logger.Debug("translating question",
		zap.Int("question_len", len(question)),
		zap.String("hint_models", hintSummary(hints)))

	prompt := prompts.BuildSQLTranslationPrompt(question, t.adapter, hints)
	system := prompts.BuildSQLTranslationSystemMessage()

	var response string
	err := retry.DoIfRetryable(ctx, t.retryCfg, func() error {
		var callErr error
		response, callErr = t.client.GenerateResponse(ctx, prompt, system, t.temperature)
		return callErr
	})
	if err != nil {
		t.breaker.RecordFailure()
		return nil, fmt.Errorf("translate question: %w", err)
	}
	t.breaker.RecordSuccess()

	if thinking := ExtractThinking(response); thinking != "" {
		t.logger.Debug("model emitted reasoning before the answer",
			zap.Int("reasoning_chars", len(thinking)))
	}

	translation, err := parseTranslation(response)
	if err != nil {
		return nil, err
	}

	t.logger.Info("question translated",
		zap.String("model", t.client.GetModel()),
		zap.Int("sql_len", len(translation.SQL)))
	return translation, nil
}

// fencePattern matches a whole-string markdown code fence with an optional
// language tag.
var fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// parseTranslation decodes the provider's JSON reply, tolerating fenced or
// non-string field values.
func parseTranslation(response string) (*Translation, error) {
	raw, err := ParseJSONResponse[map[string]json.RawMessage](response)
	if err != nil {
		return nil, fmt.Errorf("parse translation: %w", err)
	}

	sqlText := strings.TrimSpace(stripFences(jsonutil.FlexibleStringValue(raw["sql"])))
	if sqlText == "" {
		return nil, fmt.Errorf("translation response has no sql field")
	}

	return &Translation{
		SQL:         sqlText,
		Explanation: strings.TrimSpace(jsonutil.FlexibleStringValue(raw["explanation"])),
	}, nil
}

// stripFences removes a markdown fence wrapped around the whole value; some
// models fence the SQL even inside a JSON string.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fencePattern.FindStringSubmatch(s); len(m) == 2 {
		return m[1]
	}
	return s
}
