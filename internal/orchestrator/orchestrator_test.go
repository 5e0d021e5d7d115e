package orchestrator

import (
	"context"
	"errors"
	"testing"

	"sqlgateway/internal/config"
	"sqlgateway/internal/registry"
	"sqlgateway/internal/resourcecache"

	"github.com/stretchr/testify/assert"
)

type fakeRegistry struct {
	executorSession *registry.Session
	shutdown        bool
	failures        []string
	successes       []string
}

func (f *fakeRegistry) Start(ctx context.Context, descriptors []config.ServerDescriptor) error {
	return nil
}
func (f *fakeRegistry) Shutdown()                  { f.shutdown = true }
func (f *fakeRegistry) Status() []registry.ServerView { return nil }
func (f *fakeRegistry) Executor() *registry.Session { return f.executorSession }
func (f *fakeRegistry) IsShutdown() bool            { return f.shutdown }
func (f *fakeRegistry) MarkSuccess(id string)       { f.successes = append(f.successes, id) }
func (f *fakeRegistry) MarkFailure(id string, err error) {
	f.failures = append(f.failures, id)
}

type fakeCatalogSource struct {
	catalog resourcecache.AggregatedCatalog
	err     error
	stopped bool
}

func (f *fakeCatalogSource) Catalog(ctx context.Context) (resourcecache.AggregatedCatalog, error) {
	return f.catalog, f.err
}
func (f *fakeCatalogSource) Stop() { f.stopped = true }

type fakeLLM struct {
	reply string
	err   error
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return f.reply, f.err
}

func sampleCatalog() resourcecache.AggregatedCatalog {
	return resourcecache.AggregatedCatalog{
		Servers: []resourcecache.ServerBlock{{ServerID: "metadata", Priority: 10}},
		Tables:  []resourcecache.TableProjection{{Name: "sales", Columns: []string{"id"}}},
	}
}

func executorSession(client *fakeExecutorClient) *registry.Session {
	return &registry.Session{
		Descriptor: config.ServerDescriptor{ID: "db", Capabilities: []string{"execute_query"}},
		Client:     client,
	}
}

func TestProcessQuery_Success(t *testing.T) {
	reg := &fakeRegistry{executorSession: executorSession(&fakeExecutorClient{
		resultJSON: `{"columns":["id"],"rows":[[1]]}`,
	})}
	cache := &fakeCatalogSource{catalog: sampleCatalog()}
	llmClient := &fakeLLM{reply: `{"sql_query": "SELECT id FROM sales", "explanation": "ok"}`}

	gw := New(reg, cache, llmClient, config.OrchestrationConfig{MaxRetryAttempts: 3, FailFast: boolPtr(true)})
	result := gw.ProcessQuery(context.Background(), "how many sales", DefaultOptions())

	assert.True(t, result.Success)
	assert.Equal(t, "SELECT id FROM sales", result.SQL)
	assert.Contains(t, reg.successes, "db")
}

func TestProcessQuery_EmptyCatalogFailFast(t *testing.T) {
	reg := &fakeRegistry{}
	cache := &fakeCatalogSource{catalog: resourcecache.AggregatedCatalog{}}
	llmClient := &fakeLLM{}

	gw := New(reg, cache, llmClient, config.OrchestrationConfig{MaxRetryAttempts: 3, FailFast: boolPtr(true)})
	result := gw.ProcessQuery(context.Background(), "q", DefaultOptions())

	assert.False(t, result.Success)
	assert.Equal(t, "NoResourcesAvailable", result.ErrorKind)
}

func TestProcessQuery_NoExecutorAvailable(t *testing.T) {
	reg := &fakeRegistry{executorSession: nil}
	cache := &fakeCatalogSource{catalog: sampleCatalog()}
	llmClient := &fakeLLM{reply: `{"sql_query": "SELECT id FROM sales"}`}

	gw := New(reg, cache, llmClient, config.OrchestrationConfig{MaxRetryAttempts: 3, FailFast: boolPtr(true)})
	result := gw.ProcessQuery(context.Background(), "q", DefaultOptions())

	assert.False(t, result.Success)
	assert.Equal(t, "NoExecutorAvailable", result.ErrorKind)
}

func TestProcessQuery_LLMFailurePropagates(t *testing.T) {
	reg := &fakeRegistry{executorSession: executorSession(&fakeExecutorClient{})}
	cache := &fakeCatalogSource{catalog: sampleCatalog()}
	llmClient := &fakeLLM{err: errors.New("boom")}

	gw := New(reg, cache, llmClient, config.OrchestrationConfig{MaxRetryAttempts: 3, FailFast: boolPtr(true)})
	result := gw.ProcessQuery(context.Background(), "q", DefaultOptions())

	assert.False(t, result.Success)
	assert.Equal(t, "PromptGenerationError", result.ErrorKind)
}

func TestProcessQuery_RecoversFromSyntaxError(t *testing.T) {
	client := &fakeExecutorClient{
		failFirst:  true,
		engineMsg:  `syntax error at or near "FORM"`,
		resultJSON: `{"columns":["id"],"rows":[[1]]}`,
	}
	reg := &fakeRegistry{executorSession: executorSession(client)}
	cache := &fakeCatalogSource{catalog: sampleCatalog()}
	llmClient := &sequencedLLM{replies: []string{
		`{"sql_query": "SELECT id FROM sales WHERE"}`,
		`{"sql_query": "SELECT id FROM sales"}`,
	}}

	gw := New(reg, cache, llmClient, config.OrchestrationConfig{MaxRetryAttempts: 3, FailFast: boolPtr(true)})
	result := gw.ProcessQuery(context.Background(), "q", DefaultOptions())

	assert.True(t, result.Success)
	assert.True(t, result.Recovery.Performed)
	assert.Equal(t, 1, result.Recovery.Attempts)
}

func TestProcessQuery_ShutdownReturnsCancelled(t *testing.T) {
	reg := &fakeRegistry{shutdown: true}
	cache := &fakeCatalogSource{}
	llmClient := &fakeLLM{}

	gw := New(reg, cache, llmClient, config.OrchestrationConfig{MaxRetryAttempts: 3})
	result := gw.ProcessQuery(context.Background(), "q", DefaultOptions())

	assert.False(t, result.Success)
	assert.Equal(t, "Cancelled", result.ErrorKind)
}

func TestProcessQuery_PermissionErrorNoRetry(t *testing.T) {
	client := &fakeExecutorClient{
		failFirst: true,
		engineMsg: "permission denied for relation sensitive",
	}
	reg := &fakeRegistry{executorSession: executorSession(client)}
	cache := &fakeCatalogSource{catalog: sampleCatalog()}
	llmClient := &fakeLLM{reply: `{"sql_query": "SELECT id FROM sensitive"}`}

	gw := New(reg, cache, llmClient, config.OrchestrationConfig{MaxRetryAttempts: 3, FailFast: boolPtr(true)})
	result := gw.ProcessQuery(context.Background(), "q", DefaultOptions())

	assert.False(t, result.Success)
	assert.Equal(t, "PermissionDenied", result.ErrorKind)
	assert.False(t, result.Recovery.Performed)
}

func boolPtr(b bool) *bool { return &b }
