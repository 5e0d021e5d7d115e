package mcpclient

import "fmt"

// TransportKind classifies a TransportError so callers can decide whether a
// retry is worthwhile.
type TransportKind string

const (
	TransportKindDial     TransportKind = "dial"
	TransportKindProtocol TransportKind = "protocol"
	TransportKindTimeout  TransportKind = "timeout"
	TransportKindClosed   TransportKind = "closed"
)

// TransportError is the normalized failure surface for every MCPClient
// operation (spec.md §4.1). Retryable indicates whether the transport
// layer believes a subsequent attempt could succeed without operator
// intervention.
type TransportError struct {
	Kind      TransportKind
	ServerID  string
	Op        string
	Err       error
	Retryable bool
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mcpclient: %s %s failed (%s): %v", e.ServerID, e.Op, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func newTransportError(serverID, op string, kind TransportKind, retryable bool, err error) *TransportError {
	return &TransportError{Kind: kind, ServerID: serverID, Op: op, Err: err, Retryable: retryable}
}
