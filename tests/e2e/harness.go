package e2e

import (
	"context"
	"time"

	"sqlgateway/internal/config"
	"sqlgateway/internal/llm"
	"sqlgateway/internal/orchestrator"
	"sqlgateway/internal/registry"
	"sqlgateway/internal/resourcecache"

	"github.com/mark3labs/mcp-go/mcp"
)

// fakeRegistry satisfies both resourcecache.RegistrySource and
// orchestrator.ServerRegistry over a fixed, already-"connected" session
// list, so the real Cache and real Gateway wiring run end to end against
// fakeServer transports.
type fakeRegistry struct {
	sessions []*registry.Session
}

func (r *fakeRegistry) All() []*registry.Session { return r.sessions }

func (r *fakeRegistry) Start(ctx context.Context, descriptors []config.ServerDescriptor) error {
	return nil
}
func (r *fakeRegistry) Shutdown() {}
func (r *fakeRegistry) Status() []registry.ServerView {
	views := make([]registry.ServerView, 0, len(r.sessions))
	for _, s := range r.sessions {
		views = append(views, registry.ServerView{ID: s.Descriptor.ID, Priority: s.Descriptor.Priority})
	}
	return views
}
func (r *fakeRegistry) Executor() *registry.Session {
	for _, s := range r.sessions {
		if s.Descriptor.HasCapability("execute_query") {
			return s
		}
	}
	return nil
}
func (r *fakeRegistry) IsShutdown() bool                 { return false }
func (r *fakeRegistry) MarkSuccess(id string)            {}
func (r *fakeRegistry) MarkFailure(id string, err error) {}

// sequencedLLM replies with successive entries on each Generate call,
// repeating the last entry once exhausted.
type sequencedLLM struct {
	replies []string
	calls   int
}

func (s *sequencedLLM) Generate(ctx context.Context, prompt string) (string, error) {
	idx := s.calls
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	s.calls++
	return s.replies[idx], nil
}

var _ llm.Client = (*sequencedLLM)(nil)

// metadataSession is the priority-10 server carrying product aliases.
func metadataSession() *registry.Session {
	return &registry.Session{
		Descriptor: config.ServerDescriptor{
			ID:           "metadata",
			Priority:     10,
			Domains:      []string{"metadata", "product"},
			Capabilities: []string{"list_resources"},
		},
		Client: &fakeServer{
			resMeta: []mcp.Resource{{URI: "product://aliases"}},
			resources: map[string]string{
				"product://aliases": `[{"name":"Acme Corp"},{"name":"Widget Co"}]`,
			},
		},
	}
}

// schemaSession is the priority-20 database server carrying table schemas
// and the execute_query tool.
func schemaSession(queueFailures []string, successJSON string) *registry.Session {
	return &registry.Session{
		Descriptor: config.ServerDescriptor{
			ID:           "db",
			Priority:     20,
			Domains:      []string{"database"},
			Capabilities: []string{"list_resources", "execute_query"},
		},
		Client: &fakeServer{
			resMeta: []mcp.Resource{{URI: "db://schema/sales"}},
			resources: map[string]string{
				"db://schema/sales": `[{"name":"sales","columns":[{"name":"id"},{"name":"amount"},{"name":"customer_name"}]}]`,
			},
			queueFailures: queueFailures,
			successJSON:   successJSON,
		},
	}
}

func newGateway(reg *fakeRegistry, llmClient llm.Client, maxRetry int) *orchestrator.Gateway {
	cache := resourcecache.New(reg, time.Hour)
	return orchestrator.New(reg, cache, llmClient, config.OrchestrationConfig{MaxRetryAttempts: maxRetry})
}
