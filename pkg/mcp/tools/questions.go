package tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/queryward/queryward/pkg/llm"
	"github.com/queryward/queryward/pkg/models"
)

// QuestionTranslator turns a natural-language question into SQL.
type QuestionTranslator interface {
	Translate(ctx context.Context, question string) (*llm.Translation, error)
}

// QuestionToolDeps contains dependencies for the ask_question tool.
// Translator stays nil when no model is configured; the tool is still
// registered so the agent gets an actionable error instead of an
// unknown-tool failure.
type QuestionToolDeps struct {
	Runner         QueryRunner
	Translator     QuestionTranslator
	DefaultSession string
	Logger         *zap.Logger
}

// askQuestionResult pairs the generated SQL with its execution outcome.
type askQuestionResult struct {
	Question    string             `json:"question"`
	SQL         string             `json:"sql"`
	Explanation string             `json:"explanation,omitempty"`
	Result      models.QueryResult `json:"result"`
}

// RegisterQuestionTool registers ask_question.
func RegisterQuestionTool(s *server.MCPServer, deps *QuestionToolDeps) {
	tool := mcp.NewTool(
		"ask_question",
		mcp.WithDescription(
			"Answer a natural-language question by generating SQL against the dbt "+
				"project and executing it read-only. The response includes the generated "+
				"SQL so it can be inspected, corrected, or re-run with run_query.",
		),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("The question to answer from the warehouse"),
		),
		mcp.WithString(
			"session_id",
			mcp.Description("Registry session to record the result under (default: the configured session)"),
		),
		mcp.WithNumber(
			"row_limit",
			mcp.Description("Max rows to return (default: the server's configured limit)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return nil, err
		}

		if deps.Translator == nil {
			return NewErrorResult("LLM_NOT_CONFIGURED",
				"no language model is configured; set llm.model or pass explicit SQL to run_query"), nil
		}

		translation, err := deps.Translator.Translate(ctx, question)
		if err != nil {
			return NewErrorResult("TRANSLATION_FAILED", err.Error()), nil
		}

		request := models.QueryRequest{
			Text:      translation.SQL,
			SessionID: sessionOrDefault(req, deps.DefaultSession),
			Mode:      models.ModeReadOnly,
		}
		if limit, ok := getOptionalFloat(req, "row_limit"); ok {
			request.RowLimit = int(limit)
		}

		result := deps.Runner.Run(ctx, request)

		deps.Logger.Debug("ask_question finished",
			zap.String("session_id", request.SessionID),
			zap.Bool("success", result.Success),
			zap.String("code", result.Code))

		if !result.Success {
			// Surface the generated SQL with the failure so the agent can
			// repair it instead of re-asking blind.
			return NewErrorResultWithDetails(result.Code, result.Error, map[string]any{
				"sql":         translation.SQL,
				"explanation": translation.Explanation,
			}), nil
		}

		raw, _ := json.Marshal(askQuestionResult{
			Question:    question,
			SQL:         translation.SQL,
			Explanation: translation.Explanation,
			Result:      result,
		})
		return mcp.NewToolResultText(string(raw)), nil
	})
}
