// Package gatewayerrors defines the surface error taxonomy returned by
// ProcessQuery and the lifecycle operations (spec.md §7). Every terminal
// failure anywhere in the pipeline is converted to exactly one of these
// kinds before it crosses the orchestrator boundary; nothing is swallowed
// silently.
package gatewayerrors

import "fmt"

// Kind is the stable machine code attached to every GatewayError.
type Kind string

const (
	KindConfigurationError    Kind = "ConfigurationError"
	KindInitializationError   Kind = "InitializationError"
	KindTransportError        Kind = "TransportError"
	KindNoResourcesAvailable  Kind = "NoResourcesAvailable"
	KindNoExecutorAvailable   Kind = "NoExecutorAvailable"
	KindPromptGenerationError Kind = "PromptGenerationError"
	KindResponseParseError    Kind = "ResponseParseError"
	KindSQLValidationError    Kind = "SQLValidationError"
	KindSQLExecutionError     Kind = "SQLExecutionError"
	KindRecoveryExhausted     Kind = "RecoveryExhausted"
	KindPermissionDenied      Kind = "PermissionDenied"
	KindCancelled             Kind = "Cancelled"
)

// GatewayError is the single error type every surface kind maps to. Category
// and EngineMessage are only populated for KindSQLExecutionError.
type GatewayError struct {
	Kind          Kind
	Message       string
	Category      string // set for KindSQLExecutionError; one of the sqlerrors categories
	EngineMessage string // set for KindSQLExecutionError; raw message from the executor
	Err           error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the orchestrator's recovery loop should treat
// this kind as worth another attempt. Terminal kinds (permission, exhausted,
// cancelled, validation) never are.
func (e *GatewayError) Retryable() bool {
	switch e.Kind {
	case KindSQLExecutionError:
		return true
	default:
		return false
	}
}

func New(kind Kind, message string) *GatewayError {
	return &GatewayError{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *GatewayError {
	return &GatewayError{Kind: kind, Message: message, Err: err}
}

// NewSQLExecutionError builds the one kind that carries categorization
// detail produced by the error categorizer (spec.md §4.4).
func NewSQLExecutionError(category, engineMessage string) *GatewayError {
	return &GatewayError{
		Kind:          KindSQLExecutionError,
		Message:       fmt.Sprintf("executor reported %s", category),
		Category:      category,
		EngineMessage: engineMessage,
	}
}

// Is lets callers build sentinel comparisons with errors.Is(err,
// &GatewayError{Kind: gatewayerrors.KindCancelled}) without matching on
// Message or Err, which vary per occurrence.
func (e *GatewayError) Is(target error) bool {
	other, ok := target.(*GatewayError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}
