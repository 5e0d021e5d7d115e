package mcpclient

import (
	"context"
	"errors"
	"net"
	"strings"
)

// classifyError maps a raw error from the underlying mcp-go client into a
// TransportError with a best-effort Kind/Retryable classification
// (spec.md §4.1 failure surface).
func classifyError(serverID, op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return newTransportError(serverID, op, TransportKindTimeout, true, err)
	}
	if errors.Is(err, context.Canceled) {
		return newTransportError(serverID, op, TransportKindClosed, false, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return newTransportError(serverID, op, TransportKindTimeout, true, err)
		}
		return newTransportError(serverID, op, TransportKindDial, true, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "eof") || strings.Contains(msg, "closed") || strings.Contains(msg, "broken pipe"):
		return newTransportError(serverID, op, TransportKindClosed, true, err)
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "dial"):
		return newTransportError(serverID, op, TransportKindDial, true, err)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return newTransportError(serverID, op, TransportKindTimeout, true, err)
	default:
		return newTransportError(serverID, op, TransportKindProtocol, false, err)
	}
}
