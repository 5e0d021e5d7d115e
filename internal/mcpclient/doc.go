// Package mcpclient implements the transport clients that speak MCP
// (Model Context Protocol) to the gateway's subordinate servers.
//
// Three transport variants share one capability set — Initialize, ListTools,
// ListResources, ReadResource, CallTool, Close — so the rest of the gateway
// (registry, resource cache, recovery engine) can treat every subordinate
// server polymorphically regardless of how it is reached:
//
//   - stdio: a local subprocess speaking framed JSON over stdin/stdout.
//   - sse: a long-lived Server-Sent Events stream paired with an HTTP
//     request channel.
//   - http: request/response over HTTPS with bearer or API-key headers.
//
// All three wrap github.com/mark3labs/mcp-go's client implementations and
// normalize their failures into TransportError, whose Kind (dial, protocol,
// timeout, closed) and Retryable flag let callers tell retryable conditions
// from terminal ones: dial and timeout are retryable, protocol is not, and
// closed is retryable when the connection dropped (EOF, broken pipe) but not
// when the caller cancelled or the client was never connected.
package mcpclient
