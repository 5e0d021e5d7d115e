// Package executor invokes the execute_query tool on the selected executor
// server and normalizes the reply into a domain.ExecutionOutcome
// (spec.md §6.2 "tools/call").
package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"sqlgateway/internal/domain"
	"sqlgateway/internal/metrics"
	"sqlgateway/internal/registry"
	"sqlgateway/internal/sqlerrors"

	"github.com/mark3labs/mcp-go/mcp"
)

const toolName = "execute_query"

// Breaker is the subset of *registry.Registry the executor needs to report
// call outcomes back into the circuit breaker / health tracking.
type Breaker interface {
	MarkSuccess(id string)
	MarkFailure(id string, err error)
}

type successPayload struct {
	Columns   []string        `json:"columns"`
	Rows      [][]interface{} `json:"rows"`
	RowCount  int             `json:"row_count"`
	Truncated bool            `json:"truncated"`
	TotalRows *int            `json:"total_rows"`
}

// Execute calls execute_query on session with {sql: sql} and returns the
// normalized outcome. A transport-level error (the call itself failing) is
// returned as the error value; an engine-level SQL failure is returned as a
// non-Ok ExecutionOutcome with a nil error, since it is not retryable at the
// transport layer — the recovery engine decides what to do with it.
func Execute(ctx context.Context, reg Breaker, session *registry.Session, sql string) (domain.ExecutionOutcome, error) {
	if session == nil {
		return domain.ExecutionOutcome{}, fmt.Errorf("executor: no session")
	}

	result, err := session.Client.CallTool(ctx, toolName, map[string]interface{}{"sql": sql})
	if err != nil {
		reg.MarkFailure(session.Descriptor.ID, err)
		metrics.ExecutorCalls.WithLabelValues(session.Descriptor.ID, "transport_error").Inc()
		return domain.ExecutionOutcome{}, err
	}

	// A non-Ok outcome here is an engine-level SQL failure (bad statement,
	// missing table, ...), not a server connectivity problem: the session
	// answered the call correctly. Only MarkSuccess, never MarkFailure, so
	// the circuit breaker and degraded/reconnect machinery stay scoped to
	// transport health, not to SQL the recovery engine is meant to handle
	// (spec.md §4.2, §9).
	outcome := toOutcome(result)
	reg.MarkSuccess(session.Descriptor.ID)
	if outcome.Ok {
		metrics.ExecutorCalls.WithLabelValues(session.Descriptor.ID, "success").Inc()
	} else {
		metrics.ExecutorCalls.WithLabelValues(session.Descriptor.ID, "engine_error").Inc()
	}
	return outcome, nil
}

func toOutcome(result *mcp.CallToolResult) domain.ExecutionOutcome {
	raw := contentText(result)

	if result.IsError {
		category, _ := sqlerrors.Categorize(raw)
		return domain.ExecutionOutcome{
			Ok:            false,
			EngineMessage: raw,
			Category:      string(category),
			Raw:           raw,
		}
	}

	var payload successPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		category, _ := sqlerrors.Categorize(err.Error())
		return domain.ExecutionOutcome{
			Ok:            false,
			EngineMessage: fmt.Sprintf("malformed execute_query result: %v", err),
			Category:      string(category),
			Raw:           raw,
		}
	}

	rowCount := payload.RowCount
	if rowCount == 0 {
		rowCount = len(payload.Rows)
	}

	return domain.ExecutionOutcome{
		Ok:        true,
		Columns:   payload.Columns,
		Rows:      payload.Rows,
		RowCount:  rowCount,
		Truncated: payload.Truncated,
		TotalRows: payload.TotalRows,
		Raw:       raw,
	}
}

// contentText concatenates the text blocks of a tool result. execute_query
// is expected to reply with exactly one text block carrying a JSON object.
func contentText(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}
	var out string
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			out += tc.Text
		}
	}
	return out
}
