package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"sqlgateway/internal/config"
	"sqlgateway/internal/gatewayerrors"
	"sqlgateway/internal/mcpclient"
	"sqlgateway/internal/metrics"
	"sqlgateway/pkg/logging"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
)

// consecutiveFailuresToDegrade is N_CONSECUTIVE_FAILURES from spec.md §4.2.
const consecutiveFailuresToDegrade = 3

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectCapDelay  = 30 * time.Second
)

// ServerView is the per-server slice of Status() (spec.md §6.3).
type ServerView struct {
	ID        string
	Priority  int
	Status    Status
	LastError string
}

// Registry owns every subordinate server's session and health state
// (spec.md §4.2). cmd's buildGateway constructs one Registry and injects it
// into the resource cache and the orchestrator; there is no global instance.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	breakers map[string]*gobreaker.CircuitBreaker
	closed   bool

	reconnectCancel map[string]context.CancelFunc
}

// New constructs an empty Registry. Call Start to populate it.
func New() *Registry {
	return &Registry{
		sessions:        make(map[string]*Session),
		breakers:        make(map[string]*gobreaker.CircuitBreaker),
		reconnectCancel: make(map[string]context.CancelFunc),
	}
}

// Start concurrently initializes every enabled descriptor. A descriptor
// marked critical that fails initialization aborts startup with
// InitializationError; non-critical failures mark the session degraded and
// startup proceeds (spec.md §4.2).
func (r *Registry) Start(ctx context.Context, descriptors []config.ServerDescriptor) error {
	r.mu.Lock()
	for _, desc := range descriptors {
		if !desc.IsEnabled() {
			continue
		}
		client, err := mcpclient.NewClientForServer(desc)
		if err != nil {
			r.mu.Unlock()
			return gatewayerrors.Wrap(gatewayerrors.KindInitializationError,
				fmt.Sprintf("server %q: failed to construct transport client", desc.ID), err)
		}
		session := newSession(desc, client)
		r.sessions[desc.ID] = session
		r.breakers[desc.ID] = newBreaker(desc.ID, r)
	}
	r.mu.Unlock()

	group, gctx := errgroup.WithContext(ctx)
	for _, desc := range descriptors {
		if !desc.IsEnabled() {
			continue
		}
		desc := desc
		group.Go(func() error {
			if err := r.initSession(gctx, desc.ID); err != nil {
				if desc.Critical {
					return gatewayerrors.Wrap(gatewayerrors.KindInitializationError,
						fmt.Sprintf("critical server %q failed to initialize", desc.ID), err)
				}
				logging.Warn("Registry", "non-critical server %q failed to initialize: %v", desc.ID, err)
			}
			return nil
		})
	}
	return group.Wait()
}

func (r *Registry) initSession(ctx context.Context, id string) error {
	r.mu.RLock()
	session := r.sessions[id]
	r.mu.RUnlock()
	if session == nil {
		return fmt.Errorf("unknown server %q", id)
	}

	if err := session.Client.Initialize(ctx); err != nil {
		session.recordError(err)
		session.setStatus(StatusDegraded)
		r.scheduleReconnect(id)
		return err
	}
	if _, err := session.Client.ListTools(ctx); err != nil {
		session.recordError(err)
		session.setStatus(StatusDegraded)
		r.scheduleReconnect(id)
		return err
	}
	if session.Descriptor.HasCapability("list_resources") {
		if _, err := session.Client.ListResources(ctx); err != nil {
			session.recordError(err)
			session.setStatus(StatusDegraded)
			r.scheduleReconnect(id)
			return err
		}
	}

	session.setStatus(StatusReady)
	session.recordSuccess()
	logging.Info("Registry", "server %q ready", id)
	return nil
}

func newBreaker(id string, r *Registry) *gobreaker.CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        id,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     reconnectCapDelay,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailuresToDegrade
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info("Registry", "session %q circuit breaker: %s -> %s", name, from, to)
			if to == gobreaker.StateOpen {
				r.mu.RLock()
				session := r.sessions[name]
				r.mu.RUnlock()
				if session != nil {
					session.setStatus(StatusDegraded)
				}
				r.scheduleReconnect(name)
			}
		},
	}
	return gobreaker.NewCircuitBreaker(settings)
}

// Ready returns the session for id if it is currently ready.
func (r *Registry) Ready(id string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session := r.sessions[id]
	if session == nil || session.Status() != StatusReady {
		return nil
	}
	return session
}

// All returns every ready session, ordered by ascending priority (lowest
// number first), with server id (lexicographic) breaking ties so the order
// is deterministic across calls regardless of map iteration order (spec.md
// §4.5, SPEC_FULL.md §5).
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Session
	for _, session := range r.sessions {
		if session.Status() == StatusReady {
			out = append(out, session)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Descriptor.Priority != out[j].Descriptor.Priority {
			return out[i].Descriptor.Priority < out[j].Descriptor.Priority
		}
		return out[i].Descriptor.ID < out[j].Descriptor.ID
	})
	return out
}

// Executor returns the ready server with the execute_query capability
// having the lowest priority number, breaking ties by server id, or nil if
// none exists (spec.md §3.2, §4.5).
func (r *Registry) Executor() *Session {
	for _, session := range r.All() {
		if session.Descriptor.HasCapability("execute_query") {
			return session
		}
	}
	return nil
}

// MarkSuccess resets a session's circuit breaker and records a successful
// call.
func (r *Registry) MarkSuccess(id string) {
	r.mu.RLock()
	session := r.sessions[id]
	breaker := r.breakers[id]
	r.mu.RUnlock()
	if session == nil {
		return
	}
	session.recordRequest()
	session.recordSuccess()
	if breaker != nil {
		_, _ = breaker.Execute(func() (interface{}, error) { return nil, nil })
	}
	if session.Status() != StatusClosed {
		session.setStatus(StatusReady)
	}
	metrics.ServerRequests.WithLabelValues(id, "success").Inc()
	metrics.ServerReady.WithLabelValues(id).Set(1)
}

// MarkFailure records a failed call and lets the circuit breaker decide
// whether the session should move to degraded.
func (r *Registry) MarkFailure(id string, err error) {
	r.mu.RLock()
	session := r.sessions[id]
	breaker := r.breakers[id]
	r.mu.RUnlock()
	if session == nil {
		return
	}
	session.recordRequest()
	session.recordError(err)
	if breaker != nil {
		_, _ = breaker.Execute(func() (interface{}, error) { return nil, err })
	}
	metrics.ServerRequests.WithLabelValues(id, "failure").Inc()
	if session.Status() != StatusReady {
		metrics.ServerReady.WithLabelValues(id).Set(0)
	}
}

// scheduleReconnect starts (or restarts) an exponential-backoff reconnect
// loop for a degraded session, base 1s capped at 30s (spec.md §4.2).
func (r *Registry) scheduleReconnect(id string) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if cancel, ok := r.reconnectCancel[id]; ok {
		cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.reconnectCancel[id] = cancel
	r.mu.Unlock()

	go r.reconnectLoop(ctx, id)
}

func (r *Registry) reconnectLoop(ctx context.Context, id string) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = reconnectBaseDelay
	bo.MaxInterval = reconnectCapDelay
	bo.MaxElapsedTime = 0
	bo.Multiplier = 2
	wrapped := backoff.WithContext(bo, ctx)

	_ = backoff.Retry(func() error {
		r.mu.RLock()
		session := r.sessions[id]
		r.mu.RUnlock()
		if session == nil || session.Status() == StatusClosed {
			return nil
		}
		if session.Status() == StatusReady {
			return nil
		}

		if err := r.initSession(ctx, id); err != nil {
			logging.Debug("Registry", "reconnect attempt for %q failed: %v", id, err)
			return err
		}
		logging.Info("Registry", "session %q reconnected", id)
		return nil
	}, wrapped)
}

// Shutdown closes every session. Idempotent: a second call is a no-op
// (spec.md §4.2, R2).
func (r *Registry) Shutdown() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	for _, cancel := range r.reconnectCancel {
		cancel()
	}
	r.mu.Unlock()

	for _, session := range sessions {
		session.setStatus(StatusClosed)
		if err := session.Client.Close(); err != nil {
			logging.Warn("Registry", "error closing session %q: %v", session.Descriptor.ID, err)
		}
	}
}

// IsShutdown reports whether Shutdown has already been called.
func (r *Registry) IsShutdown() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// Status returns the registry view used by the core's Status() operation
// (spec.md §6.3): every server's connected/degraded state, priority, and
// last error.
func (r *Registry) Status() []ServerView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	views := make([]ServerView, 0, len(r.sessions))
	for id, session := range r.sessions {
		view := ServerView{
			ID:       id,
			Priority: session.Descriptor.Priority,
			Status:   session.Status(),
		}
		if err := session.LastError(); err != nil {
			view.LastError = err.Error()
		}
		views = append(views, view)
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].Priority != views[j].Priority {
			return views[i].Priority < views[j].Priority
		}
		return views[i].ID < views[j].ID
	})
	return views
}
