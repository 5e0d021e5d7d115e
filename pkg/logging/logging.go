package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel defines the severity of the log entry.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String makes LogLevel satisfy the fmt.Stringer interface.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogEntry is a structured record of a single log call, kept around mainly
// for tests that want to assert on what was logged.
type LogEntry struct {
	Timestamp  time.Time
	Level      LogLevel
	Subsystem  string
	Message    string
	Err        error
	Attributes []slog.Attr
}

var defaultLogger *slog.Logger

// Init initializes the package-level logger. Call once at process startup;
// every subsystem in the gateway (registry, cache, orchestrator, ...)
// logs through Debug/Info/Warn/Error using its own subsystem tag.
func Init(level LogLevel, output io.Writer) {
	handler := slog.NewTextHandler(output, &slog.HandlerOptions{Level: level.SlogLevel()})
	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// InitForCLI is kept for call-site symmetry with the teacher's logging
// package; in this single-mode logger it is equivalent to Init.
func InitForCLI(filterLevel LogLevel, output io.Writer) {
	Init(filterLevel, output)
}

func logInternal(level LogLevel, subsystem string, err error, messageFmt string, args ...interface{}) {
	if defaultLogger == nil {
		Init(LevelInfo, os.Stderr)
	}
	if !defaultLogger.Enabled(context.Background(), level.SlogLevel()) {
		return
	}

	msg := messageFmt
	if len(args) > 0 {
		msg = fmt.Sprintf(messageFmt, args...)
	}

	var attrs []slog.Attr
	attrs = append(attrs, slog.String("subsystem", subsystem))
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}

	defaultLogger.LogAttrs(context.Background(), level.SlogLevel(), msg, attrs...)
}

// Debug logs a debug message.
func Debug(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelDebug, subsystem, nil, messageFmt, args...)
}

// Info logs an informational message.
func Info(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelInfo, subsystem, nil, messageFmt, args...)
}

// Warn logs a warning message.
func Warn(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelWarn, subsystem, nil, messageFmt, args...)
}

// Error logs an error message.
func Error(subsystem string, err error, messageFmt string, args ...interface{}) {
	logInternal(LevelError, subsystem, err, messageFmt, args...)
}

// TruncateID shortens an identifier (request id, server id) for log lines
// without losing enough of it to correlate across log entries.
func TruncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}

// RecoveryEvent is a structured record of one recovery-engine decision,
// logged at INFO with a filterable [RECOVERY] prefix.
type RecoveryEvent struct {
	RequestID string
	AttemptNo int
	Category  string
	Outcome   string // "retrying", "succeeded", "exhausted", "permission_denied"
	Detail    string
}

// Recovery logs a structured recovery-engine event.
func Recovery(event RecoveryEvent) {
	parts := make([]string, 0, 5)
	parts = append(parts, "request="+logReqID(event.RequestID))
	parts = append(parts, fmt.Sprintf("attempt=%d", event.AttemptNo))
	if event.Category != "" {
		parts = append(parts, "category="+event.Category)
	}
	parts = append(parts, "outcome="+event.Outcome)
	if event.Detail != "" {
		parts = append(parts, "detail="+event.Detail)
	}
	logInternal(LevelInfo, "Recovery", nil, "[RECOVERY] %s", strings.Join(parts, " "))
}

func logReqID(id string) string {
	if id == "" {
		return "-"
	}
	return TruncateID(id)
}
