// Package recovery implements the bounded, category-guided retry loop
// (spec.md §4.7): when the initial SQL fails, it re-prompts the LLM with a
// recovery prompt carrying the failure category and schema, validates the
// correction against the aggregated schema, and re-executes, up to
// MaxRetryAttempts times.
package recovery

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"sqlgateway/internal/domain"
	"sqlgateway/internal/llm"
	"sqlgateway/internal/metrics"
	"sqlgateway/internal/promptbuilder"
	"sqlgateway/internal/resourcecache"
	"sqlgateway/internal/responseparser"
	"sqlgateway/internal/sqlerrors"
)

// DefaultMaxRetryAttempts is the bound spec.md §3.2 names as the default.
const DefaultMaxRetryAttempts = 3

// Executor runs one SQL statement against the selected executor server.
// A non-nil error means the call itself failed (transport level); a
// non-Ok outcome with a nil error means the engine rejected the SQL.
type Executor func(ctx context.Context, sql string) (domain.ExecutionOutcome, error)

// Engine drives the state machine described in spec.md §4.7.
type Engine struct {
	LLM              llm.Client
	MaxRetryAttempts int
	MaxPromptItems   int
}

// New builds an Engine with the given collaborators and spec defaults for
// any zero-valued tuning fields.
func New(client llm.Client, maxRetryAttempts, maxPromptItems int) *Engine {
	if maxRetryAttempts <= 0 {
		maxRetryAttempts = DefaultMaxRetryAttempts
	}
	if maxPromptItems <= 0 {
		maxPromptItems = promptbuilder.DefaultMaxItems
	}
	return &Engine{LLM: client, MaxRetryAttempts: maxRetryAttempts, MaxPromptItems: maxPromptItems}
}

// Result is what Run hands back to the orchestrator.
type Result struct {
	Succeeded bool
	FinalSQL  domain.GeneratedSQL
	Outcome   domain.ExecutionOutcome
	Report    domain.RecoveryReport
	// TerminalCategory is set when Succeeded is false, naming why recovery
	// gave up: a terminal non-recoverable category, or exhaustion.
	TerminalCategory sqlerrors.Category
	Exhausted        bool
}

// Run executes initialSQL; on failure it loops through recovery prompts up
// to e.MaxRetryAttempts times, stopping immediately on a non-recoverable
// category (spec.md §4.7 "PERMISSION_ERROR → done_fail, no retry").
func (e *Engine) Run(ctx context.Context, userQuery string, catalog resourcecache.AggregatedCatalog, initialSQL domain.GeneratedSQL, execute Executor) (Result, error) {
	outcome, err := execute(ctx, initialSQL.SQLText)
	if err != nil {
		return Result{}, fmt.Errorf("execute initial SQL: %w", err)
	}
	if outcome.Ok {
		return Result{Succeeded: true, FinalSQL: initialSQL, Outcome: outcome}, nil
	}

	category, _ := sqlerrors.Categorize(outcome.EngineMessage)
	if !category.Recoverable() {
		return Result{
			FinalSQL:         initialSQL,
			Outcome:          outcome,
			TerminalCategory: category,
			Report:           domain.RecoveryReport{Performed: false},
		}, nil
	}

	var history []domain.RecoveryAttempt
	currentSQL := initialSQL

	for k := 1; k <= e.MaxRetryAttempts; k++ {
		startedAt := nowOrZero()

		prompt := promptbuilder.BuildRecoveryPrompt(promptbuilder.RecoveryInput{
			UserQuery:     userQuery,
			FailedSQL:     currentSQL.SQLText,
			EngineMessage: outcome.EngineMessage,
			Category:      category,
			AttemptNo:     k,
		}, catalog, e.MaxPromptItems)

		text, genErr := e.LLM.Generate(ctx, prompt)
		if genErr != nil {
			metrics.LLMCalls.WithLabelValues("error", "recovery").Inc()
			return Result{}, fmt.Errorf("recovery generation attempt %d: %w", k, genErr)
		}
		metrics.LLMCalls.WithLabelValues("success", "recovery").Inc()

		candidate, parseErr := responseparser.Parse(text)
		if parseErr != nil {
			history = append(history, domain.RecoveryAttempt{
				AttemptNo:     k,
				Category:      string(category),
				InputSQL:      currentSQL.SQLText,
				OutputSQL:     "",
				Succeeded:     false,
				EngineMessage: "parse failure",
				StartedAt:     startedAt,
				FinishedAt:    nowOrZero(),
			})
			metrics.RecoveryAttempts.WithLabelValues(string(category), "parse_failure").Inc()
			continue
		}

		if validationErr := validateAgainstSchema(category, candidate.SQLText, catalog); validationErr != nil {
			history = append(history, domain.RecoveryAttempt{
				AttemptNo:     k,
				Category:      string(category),
				InputSQL:      currentSQL.SQLText,
				OutputSQL:     candidate.SQLText,
				Succeeded:     false,
				EngineMessage: fmt.Sprintf("%s: %v", outcome.EngineMessage, validationErr),
				StartedAt:     startedAt,
				FinishedAt:    nowOrZero(),
			})
			metrics.RecoveryAttempts.WithLabelValues(string(category), "schema_rejected").Inc()
			continue
		}

		execOutcome, execErr := execute(ctx, candidate.SQLText)
		if execErr != nil {
			return Result{}, fmt.Errorf("execute recovery attempt %d: %w", k, execErr)
		}

		attempt := domain.RecoveryAttempt{
			AttemptNo:     k,
			Category:      string(category),
			InputSQL:      currentSQL.SQLText,
			OutputSQL:     candidate.SQLText,
			Succeeded:     execOutcome.Ok,
			EngineMessage: execOutcome.EngineMessage,
			StartedAt:     startedAt,
			FinishedAt:    nowOrZero(),
		}
		history = append(history, attempt)
		if execOutcome.Ok {
			metrics.RecoveryAttempts.WithLabelValues(string(category), "succeeded").Inc()
		} else {
			metrics.RecoveryAttempts.WithLabelValues(string(category), "failed").Inc()
		}

		if execOutcome.Ok {
			return Result{
				Succeeded: true,
				FinalSQL:  candidate,
				Outcome:   execOutcome,
				Report:    domain.RecoveryReport{Performed: true, Attempts: k, History: history},
			}, nil
		}

		currentSQL = candidate
		outcome = execOutcome
		category, _ = sqlerrors.Categorize(outcome.EngineMessage)
		if !category.Recoverable() {
			return Result{
				FinalSQL:         currentSQL,
				Outcome:          outcome,
				TerminalCategory: category,
				Report:           domain.RecoveryReport{Performed: true, Attempts: k, History: history},
			}, nil
		}
	}

	return Result{
		FinalSQL:         currentSQL,
		Outcome:          outcome,
		TerminalCategory: category,
		Exhausted:        true,
		Report:           domain.RecoveryReport{Performed: true, Attempts: e.MaxRetryAttempts, History: history},
	}, nil
}

var (
	fromJoinPattern      = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([a-zA-Z_][a-zA-Z0-9_]*)`)
	qualifiedColumnPattern = regexp.MustCompile(`\b([a-zA-Z_][a-zA-Z0-9_]*)\.([a-zA-Z_][a-zA-Z0-9_]*)\b`)
)

// validateAgainstSchema applies the schema-aware checks spec.md §4.7
// requires before a recovery candidate is even attempted against the
// executor: MISSING_TABLE candidates must only reference known tables,
// MISSING_COLUMN candidates must only reference known qualified columns.
func validateAgainstSchema(category sqlerrors.Category, sqlText string, catalog resourcecache.AggregatedCatalog) error {
	switch category {
	case sqlerrors.MissingTable:
		return validateTables(sqlText, catalog)
	case sqlerrors.MissingColumn:
		return validateQualifiedColumns(sqlText, catalog)
	default:
		return nil
	}
}

func validateTables(sqlText string, catalog resourcecache.AggregatedCatalog) error {
	known := make(map[string]bool, len(catalog.Tables))
	for _, t := range catalog.Tables {
		known[strings.ToLower(t.Name)] = true
	}

	for _, m := range fromJoinPattern.FindAllStringSubmatch(sqlText, -1) {
		table := strings.ToLower(m[1])
		if !known[table] {
			return fmt.Errorf("table %q not present in aggregated schema", m[1])
		}
	}
	return nil
}

func validateQualifiedColumns(sqlText string, catalog resourcecache.AggregatedCatalog) error {
	tableColumns := make(map[string]map[string]bool, len(catalog.Tables))
	for _, t := range catalog.Tables {
		cols := make(map[string]bool, len(t.Columns))
		for _, c := range t.Columns {
			cols[strings.ToLower(c)] = true
		}
		tableColumns[strings.ToLower(t.Name)] = cols
	}

	for _, m := range qualifiedColumnPattern.FindAllStringSubmatch(sqlText, -1) {
		table, column := strings.ToLower(m[1]), strings.ToLower(m[2])
		cols, ok := tableColumns[table]
		if !ok {
			continue // not a table alias we recognize; skip rather than false-reject
		}
		if !cols[column] {
			return fmt.Errorf("column %q not declared under table %q", m[2], m[1])
		}
	}
	return nil
}

func nowOrZero() time.Time {
	return time.Now()
}
