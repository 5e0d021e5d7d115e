package mcpclient

import (
	"context"
	"net/http"

	"sqlgateway/pkg/logging"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// HTTPClient implements MCPClient over request/response HTTPS with bearer
// or API-key headers (spec.md §4.1 "http" transport).
type HTTPClient struct {
	baseMCPClient
	url        string
	headers    map[string]string
	httpClient *http.Client
}

// NewHTTPClient creates an HTTP-based MCP client. apiKey, when non-empty,
// is sent as an API-key header in addition to any caller-supplied headers;
// bearerToken, when non-empty, is sent as an Authorization: Bearer header.
func NewHTTPClient(serverID, url string, headers map[string]string, bearerToken, apiKey string) *HTTPClient {
	merged := make(map[string]string, len(headers)+2)
	for k, v := range headers {
		merged[k] = v
	}
	if bearerToken != "" {
		merged["Authorization"] = "Bearer " + bearerToken
	}
	if apiKey != "" {
		merged["X-API-Key"] = apiKey
	}
	return &HTTPClient{
		baseMCPClient: baseMCPClient{serverID: serverID},
		url:           url,
		headers:       merged,
	}
}

func (c *HTTPClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	logging.Debug("HTTPClient", "connecting server %s at %s", c.serverID, c.url)

	var opts []transport.StreamableHTTPCOption
	if len(c.headers) > 0 {
		opts = append(opts, transport.WithHTTPHeaders(c.headers))
	}
	if c.httpClient != nil {
		opts = append(opts, transport.WithHTTPBasicClient(c.httpClient))
	}

	mcpClient, err := client.NewStreamableHttpClient(c.url, opts...)
	if err != nil {
		return newTransportError(c.serverID, "initialize", TransportKindDial, true, err)
	}

	_, err = mcpClient.Initialize(ctx, mcp.InitializeRequest{
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
	logging.Debug("HTTPClient", "server %s ready", c.serverID)
	return nil
}

func (c *HTTPClient) Close() error { return c.closeClient() }

func (c *HTTPClient) ListTools(ctx context.Context) ([]mcp.Tool, error) { return c.listTools(ctx) }

func (c *HTTPClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return c.callTool(ctx, name, args)
}

func (c *HTTPClient) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	return c.listResources(ctx)
}

func (c *HTTPClient) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	return c.readResource(ctx, uri)
}
