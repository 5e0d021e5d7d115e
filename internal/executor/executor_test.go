package executor

import (
	"context"
	"testing"

	"sqlgateway/internal/config"
	"sqlgateway/internal/registry"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToolClient struct {
	result *mcp.CallToolResult
	err    error
}

func (f *fakeToolClient) Initialize(ctx context.Context) error { return nil }
func (f *fakeToolClient) Close() error                         { return nil }
func (f *fakeToolClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	return nil, nil
}
func (f *fakeToolClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return f.result, f.err
}
func (f *fakeToolClient) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	return nil, nil
}
func (f *fakeToolClient) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	return nil, nil
}

type fakeBreaker struct {
	successes []string
	failures  []string
}

func (f *fakeBreaker) MarkSuccess(id string) { f.successes = append(f.successes, id) }
func (f *fakeBreaker) MarkFailure(id string, err error) { f.failures = append(f.failures, id) }

func newSession(id string, client *fakeToolClient) *registry.Session {
	return &registry.Session{
		Descriptor: config.ServerDescriptor{ID: id},
		Client:     client,
	}
}

func TestExecute_Success(t *testing.T) {
	client := &fakeToolClient{result: &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: `{"columns":["id"],"rows":[[1],[2]]}`}},
	}}
	breaker := &fakeBreaker{}
	session := newSession("db", client)

	outcome, err := Execute(context.Background(), breaker, session, "SELECT id FROM sales")
	require.NoError(t, err)
	assert.True(t, outcome.Ok)
	assert.Equal(t, []string{"id"}, outcome.Columns)
	assert.Equal(t, 2, outcome.RowCount)
	assert.Contains(t, breaker.successes, "db")
}

func TestExecute_EngineFailure(t *testing.T) {
	client := &fakeToolClient{result: &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: `syntax error at or near "FORM"`}},
	}}
	breaker := &fakeBreaker{}
	session := newSession("db", client)

	outcome, err := Execute(context.Background(), breaker, session, "SELECT * FORM sales")
	require.NoError(t, err)
	assert.False(t, outcome.Ok)
	assert.Equal(t, "SYNTAX_ERROR", outcome.Category)
	// An engine-level SQL error still means the session answered the call,
	// so it counts as connectivity success, not a breaker failure: only a
	// transport-level error (see TestExecute_TransportError) may do that.
	assert.Contains(t, breaker.successes, "db")
	assert.NotContains(t, breaker.failures, "db")
}

func TestExecute_TransportError(t *testing.T) {
	client := &fakeToolClient{err: assert.AnError}
	breaker := &fakeBreaker{}
	session := newSession("db", client)

	_, err := Execute(context.Background(), breaker, session, "SELECT 1 FROM sales")
	assert.Error(t, err)
	assert.Contains(t, breaker.failures, "db")
}

func TestExecute_NilSession(t *testing.T) {
	_, err := Execute(context.Background(), &fakeBreaker{}, nil, "SELECT 1")
	assert.Error(t, err)
}
