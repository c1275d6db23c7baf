package mcp

import (
	"context"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/queryward/queryward/pkg/logging"
)

// CallLogger records every tool invocation with its duration through
// mcp-go server hooks. Events go to the structured log; the security
// audit trail for query verdicts is written by the pipeline, not here.
type CallLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewCallLogger creates a CallLogger writing to the given logger.
func NewCallLogger(logger *zap.Logger) *CallLogger {
	return &CallLogger{logger: logger.Named("mcp")}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (c *CallLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(c.beforeCallTool)
	hooks.AddAfterCallTool(c.afterCallTool)
	hooks.AddOnError(c.onError)
	return hooks
}

func (c *CallLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	c.startTimes.Store(id, time.Now())
}

func (c *CallLogger) afterCallTool(_ context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	start, _ := c.loadAndDeleteStart(id)

	c.logger.Info("tool call finished",
		zap.String("tool", req.Params.Name),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		zap.Bool("is_error", result != nil && result.IsError))
}

func (c *CallLogger) onError(_ context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}

	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	start, _ := c.loadAndDeleteStart(id)

	// Transport errors can carry credentials from DSNs or auth headers.
	c.logger.Warn("tool call failed",
		zap.String("tool", req.Params.Name),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		zap.String("error", logging.SanitizeError(err)))
}

func (c *CallLogger) loadAndDeleteStart(id any) (time.Time, bool) {
	if v, ok := c.startTimes.LoadAndDelete(id); ok {
		return v.(time.Time), true
	}
	return time.Now(), false
}
