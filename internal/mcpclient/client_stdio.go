package mcpclient

import (
	"context"
	"fmt"
	"io"
	"time"

	"sqlgateway/pkg/logging"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// DefaultStdioInitTimeout bounds subprocess start + MCP handshake when the
// caller's context carries no deadline.
const DefaultStdioInitTimeout = 10 * time.Second

// StdioClient implements MCPClient over a local subprocess's stdin/stdout
// (spec.md §4.1 "stdio" transport).
type StdioClient struct {
	baseMCPClient
	command string
	args    []string
	env     map[string]string
}

// NewStdioClient creates a stdio-based MCP client for the given server id.
func NewStdioClient(serverID, command string, args []string, env map[string]string) *StdioClient {
	if env == nil {
		env = make(map[string]string)
	}
	return &StdioClient{
		baseMCPClient: baseMCPClient{serverID: serverID},
		command:       command,
		args:          args,
		env:           env,
	}
}

func (c *StdioClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	logging.Debug("StdioClient", "starting %s %v for server %s", c.command, c.args, c.serverID)

	var envStrings []string
	for k, v := range c.env {
		envStrings = append(envStrings, fmt.Sprintf("%s=%s", k, v))
	}

	mcpClient, err := client.NewStdioMCPClient(c.command, envStrings, c.args...)
	if err != nil {
		return newTransportError(c.serverID, "initialize", TransportKindDial, true, err)
	}

	initCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, DefaultStdioInitTimeout)
		defer cancel()
	}

	_, err = mcpClient.Initialize(initCtx, mcp.InitializeRequest{
		Params: struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Capabilities    mcp.ClientCapabilities `json:"capabilities"`
			ClientInfo      mcp.Implementation     `json:"clientInfo"`
		}{
			ProtocolVersion: "2024-11-05",
			ClientInfo:      mcp.Implementation{Name: "sqlgateway", Version: "1.0.0"},
			Capabilities:    mcp.ClientCapabilities{},
		},
	})
	if err != nil {
		_ = mcpClient.Close()
		return classifyError(c.serverID, "initialize", err)
	}

	c.client = mcpClient
	c.connected = true
	logging.Debug("StdioClient", "server %s ready (%s)", c.serverID, c.command)
	return nil
}

func (c *StdioClient) Close() error { return c.closeClient() }

func (c *StdioClient) ListTools(ctx context.Context) ([]mcp.Tool, error) { return c.listTools(ctx) }

func (c *StdioClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return c.callTool(ctx, name, args)
}

func (c *StdioClient) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	return c.listResources(ctx)
}

func (c *StdioClient) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	return c.readResource(ctx, uri)
}

// Stderr returns a reader for the subprocess's stderr stream, used as the
// out-of-band diagnostic sink spec.md §4.1 requires for stdio servers.
func (c *StdioClient) Stderr() (io.Reader, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected || c.client == nil {
		return nil, false
	}
	if concrete, ok := c.client.(*client.Client); ok {
		return client.GetStderr(concrete)
	}
	return nil, false
}
