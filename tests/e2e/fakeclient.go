// Package e2e drives the full pipeline (registry view, resource cache,
// prompt builder, response parser, recovery engine, orchestrator) against
// in-process fake MCP servers, with no real transport involved.
package e2e

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// fakeServer is an in-process stand-in for one subordinate MCP server. It
// implements mcpclient.MCPClient directly rather than speaking any wire
// protocol.
type fakeServer struct {
	resources map[string]string // uri -> JSON payload
	resMeta   []mcp.Resource

	// execute_query behavior: queueFailures are returned in order before
	// falling through to a successful reply carrying successJSON.
	queueFailures []string
	successJSON   string

	calls int
}

func (f *fakeServer) Initialize(ctx context.Context) error { return nil }
func (f *fakeServer) Close() error                         { return nil }

func (f *fakeServer) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	return []mcp.Tool{{Name: "execute_query"}}, nil
}

func (f *fakeServer) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	if name != "execute_query" {
		return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "unknown tool"}}}, nil
	}
	if f.calls < len(f.queueFailures) {
		msg := f.queueFailures[f.calls]
		f.calls++
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{mcp.TextContent{Type: "text", Text: msg}},
		}, nil
	}
	f.calls++
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: f.successJSON}},
	}, nil
}

func (f *fakeServer) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	return f.resMeta, nil
}

func (f *fakeServer) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	payload, ok := f.resources[uri]
	if !ok {
		return &mcp.ReadResourceResult{}, nil
	}
	return &mcp.ReadResourceResult{
		Contents: []interface{}{
			mcp.TextResourceContents{URI: uri, MIMEType: "application/json", Text: payload},
		},
	}, nil
}
