package mcpclient

import (
	"fmt"

	"sqlgateway/internal/config"
)

// NewClientForServer constructs the MCPClient variant matching a server
// descriptor's declared transport (spec.md §4.1/§6.2).
func NewClientForServer(desc config.ServerDescriptor) (MCPClient, error) {
	tc := desc.TransportConfig

	switch desc.Transport {
	case config.TransportStdio:
		if tc.Command == "" {
			return nil, fmt.Errorf("server %q: command is required for stdio transport", desc.ID)
		}
		return NewStdioClient(desc.ID, tc.Command, tc.Args, tc.Env), nil

	case config.TransportSSE:
		if tc.Endpoint == "" {
			return nil, fmt.Errorf("server %q: endpoint is required for sse transport", desc.ID)
		}
		return NewSSEClient(desc.ID, tc.Endpoint, tc.Headers), nil

	case config.TransportHTTP:
		if tc.Endpoint == "" {
			return nil, fmt.Errorf("server %q: endpoint is required for http transport", desc.ID)
		}
		return NewHTTPClient(desc.ID, tc.Endpoint, tc.Headers, "", tc.APIKey), nil

	default:
		return nil, fmt.Errorf("server %q: unsupported transport %q", desc.ID, desc.Transport)
	}
}
