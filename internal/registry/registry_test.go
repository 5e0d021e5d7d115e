package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"sqlgateway/internal/config"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient is a minimal in-memory MCPClient used to exercise the registry
// without a real subordinate process.
type fakeClient struct {
	initErr      error
	listToolsErr error
}

func (f *fakeClient) Initialize(ctx context.Context) error { return f.initErr }
func (f *fakeClient) Close() error                         { return nil }
func (f *fakeClient) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	if f.listToolsErr != nil {
		return nil, f.listToolsErr
	}
	return nil, nil
}
func (f *fakeClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return &mcp.CallToolResult{}, nil
}
func (f *fakeClient) ListResources(ctx context.Context) ([]mcp.Resource, error) { return nil, nil }
func (f *fakeClient) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	return &mcp.ReadResourceResult{}, nil
}

func descriptor(id string, priority int, critical bool, caps ...string) config.ServerDescriptor {
	if len(caps) == 0 {
		caps = []string{"list_resources"}
	}
	return config.ServerDescriptor{
		ID:           id,
		Priority:     priority,
		Critical:     critical,
		Capabilities: caps,
		Transport:    config.TransportStdio,
		TransportConfig: config.TransportConfig{
			Command: "fake",
		},
	}
}

func TestRegistry_StartAndReady(t *testing.T) {
	r := New()
	descs := []config.ServerDescriptor{descriptor("catalog", 10, false)}

	// Swap in a fake client after construction since NewClientForServer
	// would try to spawn a real subprocess.
	r.sessions["catalog"] = newSession(descs[0], &fakeClient{})
	r.breakers["catalog"] = newBreaker("catalog", r)

	require.NoError(t, r.initSession(context.Background(), "catalog"))
	assert.Equal(t, StatusReady, r.Ready("catalog").Status())
	assert.Len(t, r.All(), 1)
}

func TestRegistry_Executor_PicksLowestPriority(t *testing.T) {
	r := New()
	low := descriptor("low-priority", 50, false, "list_resources", "execute_query")
	high := descriptor("high-priority", 5, false, "list_resources", "execute_query")

	r.sessions["low-priority"] = newSession(low, &fakeClient{})
	r.sessions["high-priority"] = newSession(high, &fakeClient{})
	r.sessions["low-priority"].setStatus(StatusReady)
	r.sessions["high-priority"].setStatus(StatusReady)

	executor := r.Executor()
	require.NotNil(t, executor)
	assert.Equal(t, "high-priority", executor.Descriptor.ID)
}

func TestRegistry_Executor_IgnoresNonExecutors(t *testing.T) {
	r := New()
	desc := descriptor("catalog", 10, false, "list_resources")
	r.sessions["catalog"] = newSession(desc, &fakeClient{})
	r.sessions["catalog"].setStatus(StatusReady)

	assert.Nil(t, r.Executor())
}

func TestRegistry_MarkFailure_DegradesAfterThreshold(t *testing.T) {
	r := New()
	desc := descriptor("catalog", 10, false)
	r.sessions["catalog"] = newSession(desc, &fakeClient{})
	r.sessions["catalog"].setStatus(StatusReady)
	r.breakers["catalog"] = newBreaker("catalog", r)

	for i := 0; i < consecutiveFailuresToDegrade; i++ {
		r.MarkFailure("catalog", errors.New("boom"))
	}

	// allow the async OnStateChange callback to run
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		if r.sessions["catalog"].Status() == StatusDegraded {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, StatusDegraded, r.sessions["catalog"].Status())

	r.mu.Lock()
	if cancel, ok := r.reconnectCancel["catalog"]; ok {
		cancel()
	}
	r.mu.Unlock()
}

func TestRegistry_Shutdown_Idempotent(t *testing.T) {
	r := New()
	desc := descriptor("catalog", 10, false)
	r.sessions["catalog"] = newSession(desc, &fakeClient{})
	r.sessions["catalog"].setStatus(StatusReady)

	r.Shutdown()
	r.Shutdown()
	assert.True(t, r.IsShutdown())
	assert.Equal(t, StatusClosed, r.sessions["catalog"].Status())
}

func TestRegistry_InitSession_FailureMarksDegraded(t *testing.T) {
	r := New()
	descs := []config.ServerDescriptor{descriptor("critical-server", 1, true)}
	r.sessions["critical-server"] = newSession(descs[0], &fakeClient{initErr: errors.New("dial failed")})
	r.breakers["critical-server"] = newBreaker("critical-server", r)

	err := r.initSession(context.Background(), "critical-server")
	assert.Error(t, err)
	assert.Equal(t, StatusDegraded, r.sessions["critical-server"].Status())

	r.mu.Lock()
	if cancel, ok := r.reconnectCancel["critical-server"]; ok {
		cancel()
	}
	r.mu.Unlock()
}
