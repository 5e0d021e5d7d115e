package orchestrator

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// fakeExecutorClient implements mcpclient.MCPClient for exercising the
// execute_query path without a real transport.
type fakeExecutorClient struct {
	failFirst  bool
	engineMsg  string
	resultJSON string
	calls      int
}

func (f *fakeExecutorClient) Initialize(ctx context.Context) error { return nil }
func (f *fakeExecutorClient) Close() error                         { return nil }
func (f *fakeExecutorClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	return nil, nil
}
func (f *fakeExecutorClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	f.calls++
	if f.failFirst && f.calls == 1 {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{mcp.TextContent{Type: "text", Text: f.engineMsg}},
		}, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: f.resultJSON}},
	}, nil
}
func (f *fakeExecutorClient) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	return nil, nil
}
func (f *fakeExecutorClient) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	return nil, nil
}

// sequencedLLM replies with successive entries of replies on each call,
// repeating the last entry once exhausted.
type sequencedLLM struct {
	replies []string
	calls   int
}

func (s *sequencedLLM) Generate(ctx context.Context, prompt string) (string, error) {
	idx := s.calls
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	s.calls++
	return s.replies[idx], nil
}
