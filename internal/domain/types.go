// Package domain holds the value types shared across the query pipeline —
// prompt builder, response parser, recovery engine and orchestrator all
// speak in these shapes rather than importing one another's internals
// (spec.md §3.1).
package domain

import "time"

// ResolvedEntity records one user term the LLM mapped to a concrete value,
// and which subordinate server supplied the mapping.
type ResolvedEntity struct {
	OriginalTerm string  `json:"original_term"`
	ResolvedValue string `json:"resolved_value"`
	SourceServer string  `json:"source_server"`
	Confidence   float64 `json:"confidence"`
}

// GeneratedSQL is what the response parser produces from an LLM reply.
type GeneratedSQL struct {
	SQLText          string           `json:"sql_text"`
	ResolvedEntities []ResolvedEntity `json:"resolved_entities"`
	Explanation      string           `json:"explanation"`
	ChangesMade      []string         `json:"changes_made,omitempty"`
	Confidence       float64          `json:"confidence"`
}

// ExecutionOutcome is the tagged result of handing SQL to the executor.
type ExecutionOutcome struct {
	Ok bool

	Columns   []string        `json:"columns,omitempty"`
	Rows      [][]interface{} `json:"rows,omitempty"`
	RowCount  int             `json:"row_count,omitempty"`
	Truncated bool            `json:"truncated,omitempty"`
	TotalRows *int            `json:"total_rows,omitempty"`

	EngineMessage string `json:"engine_message,omitempty"`
	Category      string `json:"category,omitempty"`
	Raw           string `json:"raw,omitempty"`
}

// RecoveryAttempt records one iteration of the bounded recovery loop.
type RecoveryAttempt struct {
	AttemptNo    int       `json:"attempt_no"`
	Category     string    `json:"category"`
	InputSQL     string    `json:"input_sql"`
	OutputSQL    string    `json:"output_sql"`
	Succeeded    bool      `json:"succeeded"`
	EngineMessage string   `json:"engine_message,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// RecoveryReport summarizes what the recovery engine did for one request.
type RecoveryReport struct {
	Performed bool              `json:"performed"`
	Attempts  int               `json:"attempts"`
	History   []RecoveryAttempt `json:"history"`
}

// QueryResultMetadata carries observability detail that doesn't affect
// correctness but is useful to callers and operators.
type QueryResultMetadata struct {
	ServersUsed []string      `json:"servers_used"`
	Elapsed     time.Duration `json:"elapsed"`
}

// QueryResult is the sole return value of ProcessQuery (spec.md §6.3).
type QueryResult struct {
	Success          bool                 `json:"success"`
	UserQuery        string               `json:"user_query"`
	SQL              string               `json:"sql"`
	Execution        *ExecutionOutcome    `json:"execution,omitempty"`
	ResolvedEntities []ResolvedEntity     `json:"resolved_entities,omitempty"`
	Explanation      string               `json:"explanation,omitempty"`
	Recovery         RecoveryReport       `json:"recovery"`
	Metadata         QueryResultMetadata  `json:"metadata"`

	ErrorKind    string `json:"error_kind,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}
