package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/queryward/queryward/pkg/llm"
	"github.com/queryward/queryward/pkg/models"
	"github.com/queryward/queryward/pkg/registry"
)

// fakeRunner records the last request and replies with a canned result.
type fakeRunner struct {
	result models.QueryResult
	gotReq models.QueryRequest
	calls  int
}

func (f *fakeRunner) Run(_ context.Context, req models.QueryRequest) models.QueryResult {
	f.calls++
	f.gotReq = req
	return f.result
}

// fakeTranslator replies with a canned translation or error.
type fakeTranslator struct {
	translation *llm.Translation
	err         error
	gotQuestion string
	calls       int
}

func (f *fakeTranslator) Translate(_ context.Context, question string) (*llm.Translation, error) {
	f.calls++
	f.gotQuestion = question
	if f.err != nil {
		return nil, f.err
	}
	return f.translation, nil
}

func newToolServer() *server.MCPServer {
	return server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
}

func newTestRegistries(t *testing.T) *registry.Factory {
	t.Helper()
	return registry.NewFactory(afero.NewMemMapFs(), "/data/sessions", zap.NewNop())
}

// callTool drives a registered tool through the server's JSON-RPC
// surface and returns the first content text plus the isError flag.
func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) (string, bool) {
	t.Helper()

	params := map[string]any{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	request, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"method":  "tools/call",
		"params":  params,
		"id":      1,
	})
	require.NoError(t, err)

	result := s.HandleMessage(context.Background(), request)
	resultBytes, err := json.Marshal(result)
	require.NoError(t, err)

	var response struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(resultBytes, &response))
	require.NotEmpty(t, response.Result.Content, "expected content in tool response")
	return response.Result.Content[0].Text, response.Result.IsError
}

// listToolNames returns the registered tool names via tools/list.
func listToolNames(t *testing.T, s *server.MCPServer) map[string]bool {
	t.Helper()

	result := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"tools/list","id":1}`))
	resultBytes, err := json.Marshal(result)
	require.NoError(t, err)

	var response struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(resultBytes, &response))

	names := make(map[string]bool)
	for _, tool := range response.Result.Tools {
		names[tool.Name] = true
	}
	return names
}

// decodeEnvelope parses an error envelope out of a tool result text.
func decodeEnvelope(t *testing.T, text string) ErrorResponse {
	t.Helper()
	var envelope ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(text), &envelope))
	return envelope
}

// textContent extracts the text from a tool result content item.
func textContent(t *testing.T, content mcp.Content) string {
	t.Helper()
	tc, ok := content.(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", content)
	return tc.Text
}
