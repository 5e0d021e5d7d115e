// Package orchestrator implements the single public operation of the core
// system, ProcessQuery, plus the Start/Shutdown/Status lifecycle
// (spec.md §4.8, §6.3): gather the resource catalog, prompt the LLM, parse
// and execute the result, and hand failures to the recovery engine.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"sqlgateway/internal/config"
	"sqlgateway/internal/domain"
	"sqlgateway/internal/executor"
	"sqlgateway/internal/gatewayerrors"
	"sqlgateway/internal/llm"
	"sqlgateway/internal/metrics"
	"sqlgateway/internal/promptbuilder"
	"sqlgateway/internal/recovery"
	"sqlgateway/internal/registry"
	"sqlgateway/internal/resourcecache"
	"sqlgateway/internal/responseparser"
	"sqlgateway/pkg/logging"

	"github.com/google/uuid"
)

const subsystem = "orchestrator"

// Options tunes one ProcessQuery call (spec.md §6.3).
type Options struct {
	EnableRecovery bool
	Deadline       time.Time
}

// DefaultOptions matches the spec default of recovery enabled with no
// deadline.
func DefaultOptions() Options {
	return Options{EnableRecovery: true}
}

// ServerRegistry is the subset of *registry.Registry the orchestrator
// depends on; it is an interface so tests can substitute a fake registry
// without standing up real MCP transports.
type ServerRegistry interface {
	Start(ctx context.Context, descriptors []config.ServerDescriptor) error
	Shutdown()
	Status() []registry.ServerView
	Executor() *registry.Session
	IsShutdown() bool
	MarkSuccess(id string)
	MarkFailure(id string, err error)
}

// CatalogSource is the subset of *resourcecache.Cache the orchestrator
// depends on.
type CatalogSource interface {
	Catalog(ctx context.Context) (resourcecache.AggregatedCatalog, error)
	Stop()
}

// Gateway wires the registry, resource cache, prompt builder, response
// parser and recovery engine into the single ProcessQuery entry point.
type Gateway struct {
	registry       ServerRegistry
	cache          CatalogSource
	llm            llm.Client
	recoveryEngine *recovery.Engine
	maxPromptItems int
	orchestration  config.OrchestrationConfig
}

// New builds a Gateway. The registry and cache are expected to already be
// constructed (so tests can substitute fakes); llmClient is the injected
// generation collaborator (spec.md §6 "injected LLM client").
func New(reg ServerRegistry, cache CatalogSource, llmClient llm.Client, orchestration config.OrchestrationConfig) *Gateway {
	maxRetry := orchestration.MaxRetryAttempts
	return &Gateway{
		registry:       reg,
		cache:          cache,
		llm:            llmClient,
		recoveryEngine: recovery.New(llmClient, maxRetry, promptbuilder.DefaultMaxItems),
		maxPromptItems: promptbuilder.DefaultMaxItems,
		orchestration:  orchestration,
	}
}

// Start initializes every enabled subordinate server (spec.md §4.2).
func (g *Gateway) Start(ctx context.Context, descriptors []config.ServerDescriptor) error {
	return g.registry.Start(ctx, descriptors)
}

// Shutdown closes every session; idempotent (spec.md §4.2 R2).
func (g *Gateway) Shutdown() {
	g.registry.Shutdown()
	g.cache.Stop()
}

// Status returns the registry's server view (spec.md §6.3).
func (g *Gateway) Status() []registry.ServerView {
	return g.registry.Status()
}

// ProcessQuery implements the algorithm in spec.md §4.8.
func (g *Gateway) ProcessQuery(ctx context.Context, userQuery string, opts Options) (out domain.QueryResult) {
	requestID := uuid.NewString()
	start := time.Now()

	defer func() {
		outcome := "failure"
		if out.Success {
			outcome = "success"
		}
		metrics.QueryDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	if g.registry.IsShutdown() {
		return failureResult(userQuery, start, gatewayerrors.KindCancelled, "gateway is shut down")
	}

	if !opts.Deadline.IsZero() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, opts.Deadline)
		defer cancel()
	}

	catalog, err := g.cache.Catalog(ctx)
	if err != nil {
		logging.Error(subsystem, err, "catalog gather failed request=%s", requestID)
		return failureResult(userQuery, start, gatewayerrors.KindNoResourcesAvailable, err.Error())
	}
	if catalog.IsEmpty() && g.orchestration.IsFailFast() {
		return failureResult(userQuery, start, gatewayerrors.KindNoResourcesAvailable, "aggregated catalog is empty")
	}

	initialPrompt := promptbuilder.BuildInitialPrompt(userQuery, catalog, g.maxPromptItems)
	reply, err := g.llm.Generate(ctx, initialPrompt)
	if err != nil {
		logging.Error(subsystem, err, "llm generation failed request=%s", requestID)
		metrics.LLMCalls.WithLabelValues("error", "initial").Inc()
		return failureResult(userQuery, start, gatewayerrors.KindPromptGenerationError, err.Error())
	}
	metrics.LLMCalls.WithLabelValues("success", "initial").Inc()
	if reply == "" {
		return failureResult(userQuery, start, gatewayerrors.KindPromptGenerationError, "LLM returned empty content")
	}

	generated, err := responseparser.Parse(reply)
	if err != nil {
		kind := gatewayerrors.KindResponseParseError
		var gwErr *gatewayerrors.GatewayError
		if errors.As(err, &gwErr) {
			kind = gwErr.Kind
		}
		return failureResult(userQuery, start, kind, err.Error())
	}

	executorSession := g.registry.Executor()
	if executorSession == nil {
		return failureResult(userQuery, start, gatewayerrors.KindNoExecutorAvailable, "no ready server advertises execute_query")
	}

	execute := func(ctx context.Context, sql string) (domain.ExecutionOutcome, error) {
		return executor.Execute(ctx, g.registry, executorSession, sql)
	}

	if !opts.EnableRecovery {
		outcome, execErr := execute(ctx, generated.SQLText)
		if execErr != nil {
			return failureResult(userQuery, start, gatewayerrors.KindTransportError, execErr.Error())
		}
		if outcome.Ok {
			return successResult(userQuery, generated, outcome, domain.RecoveryReport{}, []string{executorSession.Descriptor.ID}, start)
		}
		return failureExecutionResult(userQuery, generated.SQLText, outcome, start)
	}

	// Run executes the initial SQL itself and re-prompts only on failure, so
	// the executor sees each statement once.
	result, err := g.recoveryEngine.Run(ctx, userQuery, catalog, generated, execute)
	if err != nil {
		return failureResult(userQuery, start, gatewayerrors.KindTransportError, err.Error())
	}

	if result.Succeeded {
		return successResult(userQuery, result.FinalSQL, result.Outcome, result.Report, []string{executorSession.Descriptor.ID}, start)
	}

	if result.Exhausted {
		qr := failureExecutionResult(userQuery, result.FinalSQL.SQLText, result.Outcome, start)
		qr.ErrorKind = string(gatewayerrors.KindRecoveryExhausted)
		qr.Recovery = result.Report
		return qr
	}

	if result.TerminalCategory.Recoverable() {
		qr := failureExecutionResult(userQuery, result.FinalSQL.SQLText, result.Outcome, start)
		qr.Recovery = result.Report
		return qr
	}

	qr := failureResult(userQuery, start, gatewayerrors.KindPermissionDenied, result.Outcome.EngineMessage)
	qr.SQL = result.FinalSQL.SQLText
	qr.Recovery = result.Report
	return qr
}

func successResult(userQuery string, generated domain.GeneratedSQL, outcome domain.ExecutionOutcome, report domain.RecoveryReport, servers []string, start time.Time) domain.QueryResult {
	return domain.QueryResult{
		Success:          true,
		UserQuery:        userQuery,
		SQL:              generated.SQLText,
		Execution:        &outcome,
		ResolvedEntities: generated.ResolvedEntities,
		Explanation:      generated.Explanation,
		Recovery:         report,
		Metadata: domain.QueryResultMetadata{
			ServersUsed: servers,
			Elapsed:     time.Since(start),
		},
	}
}

func failureExecutionResult(userQuery, sqlText string, outcome domain.ExecutionOutcome, start time.Time) domain.QueryResult {
	return domain.QueryResult{
		Success:      false,
		UserQuery:    userQuery,
		SQL:          sqlText,
		Execution:    &outcome,
		ErrorKind:    string(gatewayerrors.KindSQLExecutionError),
		ErrorMessage: outcome.EngineMessage,
		Metadata: domain.QueryResultMetadata{
			Elapsed: time.Since(start),
		},
	}
}

func failureResult(userQuery string, start time.Time, kind gatewayerrors.Kind, message string) domain.QueryResult {
	return domain.QueryResult{
		Success:      false,
		UserQuery:    userQuery,
		ErrorKind:    string(kind),
		ErrorMessage: message,
		Metadata: domain.QueryResultMetadata{
			Elapsed: time.Since(start),
		},
	}
}
