// Package registry implements the server registry (spec.md §4.2): it owns
// every subordinate server's live session, tracks health via a circuit
// breaker per session, and drives the reconnect loop for sessions that have
// tripped into the degraded state.
package registry

import (
	"sync"
	"time"

	"sqlgateway/internal/config"
	"sqlgateway/internal/mcpclient"
)

// Status is a session's externally observable connection state.
type Status string

const (
	StatusConnecting Status = "connecting"
	StatusReady      Status = "ready"
	StatusDegraded   Status = "degraded"
	StatusClosed     Status = "closed"
)

// Session is a live MCP conversation with one subordinate server.
type Session struct {
	Descriptor config.ServerDescriptor
	Client     mcpclient.MCPClient

	mu             sync.RWMutex
	status         Status
	requests       uint64
	errors         uint64
	lastSuccessAt  time.Time
	lastErr        error
}

func newSession(desc config.ServerDescriptor, client mcpclient.MCPClient) *Session {
	return &Session{
		Descriptor: desc,
		Client:     client,
		status:      StatusConnecting,
	}
}

// Status returns the session's current connection state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Session) setStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// LastError returns the most recently recorded failure, if any.
func (s *Session) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Counters returns the request and error counts observed so far.
func (s *Session) Counters() (requests, errors uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requests, s.errors
}

func (s *Session) recordRequest() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
}

func (s *Session) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSuccessAt = time.Now()
}

func (s *Session) recordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors++
	s.lastErr = err
}
