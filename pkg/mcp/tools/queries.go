// Package tools registers the agent-facing MCP tools over the query
// pipeline and the session result registry.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/queryward/queryward/pkg/logging"
	"github.com/queryward/queryward/pkg/models"
	"github.com/queryward/queryward/pkg/registry"
)

// QueryRunner runs one request through the execution pipeline.
type QueryRunner interface {
	Run(ctx context.Context, req models.QueryRequest) models.QueryResult
}

// QueryToolDeps contains dependencies for the query tools.
type QueryToolDeps struct {
	Runner         QueryRunner
	Registries     *registry.Factory
	DefaultSession string
	// AllowUnrestricted gates the per-call unrestricted flag. When false
	// the flag is rejected outright rather than silently ignored.
	AllowUnrestricted bool
	Logger            *zap.Logger
}

// RegisterQueryTools registers the SQL execution and result registry tools.
func RegisterQueryTools(s *server.MCPServer, deps *QueryToolDeps) {
	registerRunQueryTool(s, deps)
	registerGetQueryResultTool(s, deps)
	registerListQueryResultsTool(s, deps)
	registerClearSessionTool(s, deps)
}

// registerRunQueryTool - executes one SQL statement through the pipeline.
func registerRunQueryTool(s *server.MCPServer, deps *QueryToolDeps) {
	tool := mcp.NewTool(
		"run_query",
		mcp.WithDescription(
			"Execute a SQL query against the warehouse through the dbt project. "+
				"Statements may reference models with {{ ref('model') }}; references are "+
				"compiled to relation names before execution. Exactly one statement per call. "+
				"Write operations are blocked unless the server permits unrestricted mode and "+
				"the call sets unrestricted=true. Every executed query is recorded in the "+
				"session registry; use get_query_result to re-read results by index.",
		),
		mcp.WithString(
			"query",
			mcp.Required(),
			mcp.Description("The SQL statement to execute"),
		),
		mcp.WithString(
			"session_id",
			mcp.Description("Registry session to record the result under (default: the configured session)"),
		),
		mcp.WithNumber(
			"row_limit",
			mcp.Description("Max rows to return (default: the server's configured limit)"),
		),
		mcp.WithBoolean(
			"unrestricted",
			mcp.Description("Allow write and DDL statements for this call. Honored only when the server enables unrestricted execution."),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		queryText, err := req.RequireString("query")
		if err != nil {
			return nil, err
		}

		mode := models.ModeReadOnly
		if unrestricted, ok := getOptionalBool(req, "unrestricted"); ok && unrestricted {
			if !deps.AllowUnrestricted {
				return NewErrorResult("UNRESTRICTED_DISABLED",
					"unrestricted execution is disabled; enable safety.allow_unrestricted in the server configuration"), nil
			}
			mode = models.ModeUnrestricted
		}

		request := models.QueryRequest{
			Text:      queryText,
			SessionID: sessionOrDefault(req, deps.DefaultSession),
			Mode:      mode,
		}
		if limit, ok := getOptionalFloat(req, "row_limit"); ok {
			request.RowLimit = int(limit)
		}

		result := deps.Runner.Run(ctx, request)

		deps.Logger.Debug("run_query finished",
			zap.String("session_id", request.SessionID),
			zap.Bool("success", result.Success),
			zap.String("code", result.Code),
			zap.String("query", logging.SanitizeQuery(queryText)))

		return FromQueryResult(result), nil
	})
}

// registerGetQueryResultTool - re-reads a recorded result by index.
func registerGetQueryResultTool(s *server.MCPServer, deps *QueryToolDeps) {
	tool := mcp.NewTool(
		"get_query_result",
		mcp.WithDescription(
			"Re-read a previously recorded query result by its 1-based index within a "+
				"session, without re-executing anything. Use list_query_results to see "+
				"what is recorded.",
		),
		mcp.WithNumber(
			"index",
			mcp.Required(),
			mcp.Description("1-based result index within the session"),
		),
		mcp.WithString(
			"session_id",
			mcp.Description("Registry session to read from (default: the configured session)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		indexVal, ok := getOptionalFloat(req, "index")
		if !ok {
			return NewErrorResult("INVALID_INDEX", "index parameter is required and must be a number"), nil
		}

		reg, err := deps.Registries.ForSession(sessionOrDefault(req, deps.DefaultSession))
		if err != nil {
			return nil, fmt.Errorf("failed to open session registry: %w", err)
		}

		entry, err := reg.Get(int(indexVal))
		if err != nil {
			return NewErrorResultWithDetails("RESULT_NOT_FOUND", err.Error(), map[string]any{
				"session_id": reg.SessionID(),
				"count":      reg.Count(),
			}), nil
		}

		raw, _ := json.Marshal(entry)
		return mcp.NewToolResultText(string(raw)), nil
	})
}

// queryResultSummary is one line of the list_query_results response.
type queryResultSummary struct {
	Index      int    `json:"index"`
	Query      string `json:"query"`
	Success    bool   `json:"success"`
	Code       string `json:"code,omitempty"`
	RowCount   int    `json:"row_count"`
	ExecutedAt string `json:"executed_at"`
}

type listQueryResultsResult struct {
	SessionID string               `json:"session_id"`
	Count     int                  `json:"count"`
	Results   []queryResultSummary `json:"results"`
}

// registerListQueryResultsTool - summarizes everything recorded in a session.
func registerListQueryResultsTool(s *server.MCPServer, deps *QueryToolDeps) {
	tool := mcp.NewTool(
		"list_query_results",
		mcp.WithDescription(
			"List every recorded query result in a session: index, query text, "+
				"success, and row count. Fetch full rows with get_query_result.",
		),
		mcp.WithString(
			"session_id",
			mcp.Description("Registry session to list (default: the configured session)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reg, err := deps.Registries.ForSession(sessionOrDefault(req, deps.DefaultSession))
		if err != nil {
			return nil, fmt.Errorf("failed to open session registry: %w", err)
		}

		entries := reg.List()
		response := listQueryResultsResult{
			SessionID: reg.SessionID(),
			Count:     len(entries),
			Results:   make([]queryResultSummary, len(entries)),
		}
		for i, entry := range entries {
			response.Results[i] = queryResultSummary{
				Index:      entry.Index,
				Query:      truncateQuery(entry.QueryText, 200),
				Success:    entry.Result.Success,
				Code:       entry.Result.Code,
				RowCount:   entry.Result.RowCount,
				ExecutedAt: entry.Timestamp.UTC().Format(time.RFC3339),
			}
		}

		raw, _ := json.Marshal(response)
		return mcp.NewToolResultText(string(raw)), nil
	})
}

// registerClearSessionTool - deletes a session's recorded results.
func registerClearSessionTool(s *server.MCPServer, deps *QueryToolDeps) {
	tool := mcp.NewTool(
		"clear_session",
		mcp.WithDescription(
			"Delete every recorded result in a session. Indexes restart at 1 "+
				"afterwards. This cannot be undone.",
		),
		mcp.WithString(
			"session_id",
			mcp.Description("Registry session to clear (default: the configured session)"),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reg, err := deps.Registries.ForSession(sessionOrDefault(req, deps.DefaultSession))
		if err != nil {
			return nil, fmt.Errorf("failed to open session registry: %w", err)
		}

		cleared := reg.Count()
		if err := reg.Clear(); err != nil {
			return nil, fmt.Errorf("failed to clear session: %w", err)
		}

		deps.Logger.Info("session cleared",
			zap.String("session_id", reg.SessionID()),
			zap.Int("cleared_results", cleared))

		response := struct {
			SessionID      string `json:"session_id"`
			ClearedResults int    `json:"cleared_results"`
		}{
			SessionID:      reg.SessionID(),
			ClearedResults: cleared,
		}
		raw, _ := json.Marshal(response)
		return mcp.NewToolResultText(string(raw)), nil
	})
}
