package recovery

import (
	"context"
	"testing"

	"sqlgateway/internal/domain"
	"sqlgateway/internal/resourcecache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	replies []string
	calls   int
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	if f.calls >= len(f.replies) {
		return f.replies[len(f.replies)-1], nil
	}
	reply := f.replies[f.calls]
	f.calls++
	return reply, nil
}

func sampleCatalog() resourcecache.AggregatedCatalog {
	return resourcecache.AggregatedCatalog{
		Tables: []resourcecache.TableProjection{
			{Name: "sales", Columns: []string{"id", "amount"}},
		},
	}
}

func TestRun_SucceedsOnFirstExecution(t *testing.T) {
	engine := New(&fakeLLM{}, 3, 20)
	initialSQL := domain.GeneratedSQL{SQLText: "SELECT id FROM sales"}
	calls := 0

	result, err := engine.Run(context.Background(), "q", sampleCatalog(), initialSQL, func(ctx context.Context, sql string) (domain.ExecutionOutcome, error) {
		calls++
		return domain.ExecutionOutcome{Ok: true, Columns: []string{"id"}}, nil
	})

	require.NoError(t, err)
	assert.True(t, result.Succeeded)
	assert.False(t, result.Report.Performed)
	assert.Equal(t, 1, calls)
}

func TestRun_RecoversAfterSyntaxError(t *testing.T) {
	llmClient := &fakeLLM{replies: []string{
		`{"sql_query": "SELECT id FROM sales", "explanation": "fixed"}`,
	}}
	engine := New(llmClient, 3, 20)
	initialSQL := domain.GeneratedSQL{SQLText: "SELECT id FORM sales"}

	execAttempts := 0
	result, err := engine.Run(context.Background(), "q", sampleCatalog(), initialSQL, func(ctx context.Context, sql string) (domain.ExecutionOutcome, error) {
		execAttempts++
		if execAttempts == 1 {
			return domain.ExecutionOutcome{Ok: false, EngineMessage: "syntax error at or near \"FORM\""}, nil
		}
		return domain.ExecutionOutcome{Ok: true, Columns: []string{"id"}}, nil
	})

	require.NoError(t, err)
	assert.True(t, result.Succeeded)
	assert.True(t, result.Report.Performed)
	assert.Equal(t, 1, result.Report.Attempts)
	require.Len(t, result.Report.History, 1)
	assert.True(t, result.Report.History[0].Succeeded)
}

func TestRun_PermissionErrorShortCircuitsNoRetry(t *testing.T) {
	llmClient := &fakeLLM{}
	engine := New(llmClient, 3, 20)
	initialSQL := domain.GeneratedSQL{SQLText: "SELECT id FROM sensitive"}

	execAttempts := 0
	result, err := engine.Run(context.Background(), "q", sampleCatalog(), initialSQL, func(ctx context.Context, sql string) (domain.ExecutionOutcome, error) {
		execAttempts++
		return domain.ExecutionOutcome{Ok: false, EngineMessage: "permission denied for relation sensitive"}, nil
	})

	require.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.Equal(t, 1, execAttempts)
	assert.False(t, result.Report.Performed)
	assert.Equal(t, 0, llmClient.calls)
}

func TestRun_ExhaustsAfterMaxRetryAttempts(t *testing.T) {
	llmClient := &fakeLLM{replies: []string{
		`{"sql_query": "SELECT id FROM sales"}`,
		`{"sql_query": "SELECT id FROM sales"}`,
		`{"sql_query": "SELECT id FROM sales"}`,
	}}
	engine := New(llmClient, 3, 20)
	initialSQL := domain.GeneratedSQL{SQLText: "SELECT id FORM sales"}

	result, err := engine.Run(context.Background(), "q", sampleCatalog(), initialSQL, func(ctx context.Context, sql string) (domain.ExecutionOutcome, error) {
		return domain.ExecutionOutcome{Ok: false, EngineMessage: "syntax error near token"}, nil
	})

	require.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.True(t, result.Exhausted)
	assert.Equal(t, 3, result.Report.Attempts)
	assert.Len(t, result.Report.History, 3)
}

func TestRun_SchemaValidationRejectsUnknownTable(t *testing.T) {
	llmClient := &fakeLLM{replies: []string{
		`{"sql_query": "SELECT id FROM ghost_table"}`,
		`{"sql_query": "SELECT id FROM sales"}`,
	}}
	engine := New(llmClient, 3, 20)
	initialSQL := domain.GeneratedSQL{SQLText: "SELECT id FROM ghosttabl"}

	execAttempts := 0
	result, err := engine.Run(context.Background(), "q", sampleCatalog(), initialSQL, func(ctx context.Context, sql string) (domain.ExecutionOutcome, error) {
		execAttempts++
		if sql == "SELECT id FROM sales" {
			return domain.ExecutionOutcome{Ok: true, Columns: []string{"id"}}, nil
		}
		return domain.ExecutionOutcome{Ok: false, EngineMessage: "relation \"ghosttabl\" does not exist"}, nil
	})

	require.NoError(t, err)
	assert.True(t, result.Succeeded)
	assert.Equal(t, 2, result.Report.Attempts)
	assert.Equal(t, 2, execAttempts)
	assert.False(t, result.Report.History[0].Succeeded)
	assert.Contains(t, result.Report.History[0].EngineMessage, "not present in aggregated schema")
}

func TestRun_ParseFailureAdvancesToNextAttempt(t *testing.T) {
	llmClient := &fakeLLM{replies: []string{
		"not json and no select statement at all",
		`{"sql_query": "SELECT id FROM sales"}`,
	}}
	engine := New(llmClient, 3, 20)
	initialSQL := domain.GeneratedSQL{SQLText: "SELECT id FORM sales"}

	execAttempts := 0
	result, err := engine.Run(context.Background(), "q", sampleCatalog(), initialSQL, func(ctx context.Context, sql string) (domain.ExecutionOutcome, error) {
		execAttempts++
		if sql == "SELECT id FROM sales" {
			return domain.ExecutionOutcome{Ok: true, Columns: []string{"id"}}, nil
		}
		return domain.ExecutionOutcome{Ok: false, EngineMessage: "syntax error near token"}, nil
	})

	require.NoError(t, err)
	assert.True(t, result.Succeeded)
	assert.Equal(t, 2, result.Report.Attempts)
	assert.Equal(t, 2, execAttempts)
	assert.Equal(t, "parse failure", result.Report.History[0].EngineMessage)
}
