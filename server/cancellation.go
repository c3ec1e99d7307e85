package server

import (
	"context"
	"encoding/json"
	"sync"
)

// CancelledNotification carries a client's request to abandon an
// in-flight call. RequestID stays raw so string and numeric ids compare
// exactly as sent.
type CancelledNotification struct {
	RequestID json.RawMessage `json:"requestId"`
	Reason    string          `json:"reason,omitempty"`
}

// CancellationManager maps in-flight request ids to their cancel
// functions so a later notification can abort them.
type CancellationManager struct {
	mu       sync.RWMutex
	inFlight map[string]context.CancelFunc
}

// NewCancellationManager creates an empty cancellation manager.
func NewCancellationManager() *CancellationManager {
	return &CancellationManager{
		inFlight: make(map[string]context.CancelFunc),
	}
}

// Track registers a request id and returns a cancellable child context.
// The returned function both cancels and forgets the id; call it when
// the request finishes either way.
func (m *CancellationManager) Track(ctx context.Context, requestID string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.inFlight[requestID] = cancel
	m.mu.Unlock()

	return ctx, func() {
		cancel()
		m.mu.Lock()
		delete(m.inFlight, requestID)
		m.mu.Unlock()
	}
}

// Cancel aborts the tracked request with the given id. It reports
// whether the id was in flight; cancelling an unknown or already
// finished id is a no-op.
func (m *CancellationManager) Cancel(requestID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	cancel, ok := m.inFlight[requestID]
	if !ok {
		return false
	}
	cancel()
	delete(m.inFlight, requestID)
	return true
}

// Untrack forgets a request id without cancelling it.
func (m *CancellationManager) Untrack(requestID string) {
	m.mu.Lock()
	delete(m.inFlight, requestID)
	m.mu.Unlock()
}

// ActiveRequests returns how many requests are currently tracked.
func (m *CancellationManager) ActiveRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.inFlight)
}

type cancellationManagerKey struct{}

// ContextWithCancellationManager attaches the manager to ctx.
func ContextWithCancellationManager(ctx context.Context, manager *CancellationManager) context.Context {
	return context.WithValue(ctx, cancellationManagerKey{}, manager)
}

// CancellationManagerFromContext returns the attached manager, or nil.
func CancellationManagerFromContext(ctx context.Context) *CancellationManager {
	manager, _ := ctx.Value(cancellationManagerKey{}).(*CancellationManager)
	return manager
}
