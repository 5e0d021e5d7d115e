package mcpclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPClient defines the interface every transport variant implements
// (spec.md §4.1). The registry and resource cache depend only on this
// interface, never on a concrete transport type.
type MCPClient interface {
	// Initialize establishes the connection and performs the protocol handshake.
	Initialize(ctx context.Context) error
	// Close cleanly shuts down the client connection. Idempotent.
	Close() error
	// ListTools returns all available tools from the server.
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	// CallTool executes a specific tool and returns the result.
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
	// ListResources returns all available resources from the server.
	ListResources(ctx context.Context) ([]mcp.Resource, error)
	// ReadResource retrieves a specific resource.
	ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error)
}

// Compile-time interface compliance checks.
var (
	_ MCPClient = (*StdioClient)(nil)
	_ MCPClient = (*SSEClient)(nil)
	_ MCPClient = (*HTTPClient)(nil)
)

// baseMCPClient provides the MCP protocol operations shared by every
// transport variant; each variant only needs to establish/tear down the
// underlying connection.
type baseMCPClient struct {
	serverID  string
	client    client.MCPClient
	mu        sync.RWMutex
	connected bool
}

func (b *baseMCPClient) checkConnected() error {
	if !b.connected || b.client == nil {
		return fmt.Errorf("client not connected")
	}
	return nil
}

func (b *baseMCPClient) closeClient() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.connected || b.client == nil {
		return nil
	}

	err := b.client.Close()
	b.connected = false
	b.client = nil
	return err
}

func (b *baseMCPClient) listTools(ctx context.Context) ([]mcp.Tool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkConnected(); err != nil {
		return nil, newTransportError(b.serverID, "list_tools", TransportKindClosed, false, err)
	}

	result, err := b.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, classifyError(b.serverID, "list_tools", err)
	}
	return result.Tools, nil
}

func (b *baseMCPClient) callTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkConnected(); err != nil {
		return nil, newTransportError(b.serverID, "call_tool", TransportKindClosed, false, err)
	}

	result, err := b.client.CallTool(ctx, mcp.CallToolRequest{
		Params: struct {
			Name      string    `json:"name"`
			Arguments any       `json:"arguments,omitempty"`
			Meta      *mcp.Meta `json:"_meta,omitempty"`
		}{
			Name:      name,
			Arguments: args,
		},
	})
	if err != nil {
		return nil, classifyError(b.serverID, "call_tool:"+name, err)
	}
	return result, nil
}

func (b *baseMCPClient) listResources(ctx context.Context) ([]mcp.Resource, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkConnected(); err != nil {
		return nil, newTransportError(b.serverID, "list_resources", TransportKindClosed, false, err)
	}

	result, err := b.client.ListResources(ctx, mcp.ListResourcesRequest{})
	if err != nil {
		return nil, classifyError(b.serverID, "list_resources", err)
	}
	return result.Resources, nil
}

func (b *baseMCPClient) readResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.checkConnected(); err != nil {
		return nil, newTransportError(b.serverID, "read_resource:"+uri, TransportKindClosed, false, err)
	}

	result, err := b.client.ReadResource(ctx, mcp.ReadResourceRequest{
		Params: struct {
			URI       string         `json:"uri"`
			Arguments map[string]any `json:"arguments,omitempty"`
		}{URI: uri},
	})
	if err != nil {
		return nil, classifyError(b.serverID, "read_resource:"+uri, err)
	}
	return result, nil
}
