package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rubyonai/mcpwire/protocol"
)

// Session is the server's view of one connected client. It carries the
// reverse channel for server-initiated requests (sampling, roots) and
// the per-client cancellation and subscription state.
type Session struct {
	id       string
	sender   RequestSender
	notifier NotificationSender

	mu          sync.RWMutex
	logLevel    LogLevel
	roots       []Root
	rootsChange func([]Root)
	clientCaps  ClientCapabilities

	requestID     atomic.Int64
	cancellation  *CancellationManager
	subscriptions *SubscriptionManager
}

// ClientCapabilities describes what the connected client supports.
type ClientCapabilities struct {
	Sampling bool             `json:"sampling,omitempty"`
	Roots    *RootsCapability `json:"roots,omitempty"`
}

// RootsCapability describes the client's roots support.
type RootsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// RequestSender sends a request to the client and waits for its reply.
type RequestSender interface {
	SendRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error)
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithClientCapabilities seeds the client capabilities, normally from
// the initialize handshake.
func WithClientCapabilities(caps ClientCapabilities) SessionOption {
	return func(s *Session) {
		s.clientCaps = caps
	}
}

// WithRootsChangeCallback registers a callback invoked whenever the
// client announces a new roots list.
func WithRootsChangeCallback(callback func([]Root)) SessionOption {
	return func(s *Session) {
		s.rootsChange = callback
	}
}

// NewSession builds a session for one client connection.
func NewSession(id string, sender RequestSender, notifier NotificationSender, opts ...SessionOption) *Session {
	s := &Session{
		id:            id,
		sender:        sender,
		notifier:      notifier,
		logLevel:      LogLevelInfo,
		cancellation:  NewCancellationManager(),
		subscriptions: NewSubscriptionManager(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// ClientCapabilities returns the client's capabilities.
func (s *Session) ClientCapabilities() ClientCapabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clientCaps
}

// SetClientCapabilities replaces the client's capabilities.
func (s *Session) SetClientCapabilities(caps ClientCapabilities) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientCaps = caps
}

// SupportsFeature reports whether the client declared support for the
// named feature ("sampling", "roots", "roots.listChanged").
func (s *Session) SupportsFeature(feature string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch feature {
	case "sampling":
		return s.clientCaps.Sampling
	case "roots":
		return s.clientCaps.Roots != nil
	case "roots.listChanged":
		return s.clientCaps.Roots != nil && s.clientCaps.Roots.ListChanged
	default:
		return false
	}
}

// roundTrip sends a server-initiated request and decodes the result
// into out.
func (s *Session) roundTrip(ctx context.Context, method string, params json.RawMessage, out any) error {
	idRaw, err := json.Marshal(s.requestID.Add(1))
	if err != nil {
		return fmt.Errorf("marshal request ID: %w", err)
	}

	resp, err := s.sender.SendRequest(ctx, &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      idRaw,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	if resp.Error != nil {
		return resp.Error
	}

	resultBytes, err := json.Marshal(resp.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := json.Unmarshal(resultBytes, out); err != nil {
		return fmt.Errorf("unmarshal result: %w", err)
	}
	return nil
}

// CreateMessage asks the client to sample a model completion. Fails
// when the client did not declare sampling support.
func (s *Session) CreateMessage(ctx context.Context, req *CreateMessageRequest) (*CreateMessageResult, error) {
	if !s.SupportsFeature("sampling") {
		return nil, fmt.Errorf("client does not support sampling")
	}

	params, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var result CreateMessageResult
	if err := s.roundTrip(ctx, protocol.MethodSamplingCreateMessage, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListRoots fetches the client's roots list and caches it. Fails when
// the client did not declare roots support.
func (s *Session) ListRoots(ctx context.Context) (*ListRootsResult, error) {
	if !s.SupportsFeature("roots") {
		return nil, fmt.Errorf("client does not support roots")
	}

	var result ListRootsResult
	if err := s.roundTrip(ctx, protocol.MethodRootsList, nil, &result); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.roots = result.Roots
	s.mu.Unlock()

	return &result, nil
}

// Roots returns the cached roots from the last ListRoots call or
// roots/list_changed notification.
func (s *Session) Roots() []Root {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roots
}

// HandleRootsChanged replaces the cached roots and fires the change
// callback.
func (s *Session) HandleRootsChanged(roots []Root) {
	s.mu.Lock()
	s.roots = roots
	callback := s.rootsChange
	s.mu.Unlock()

	if callback != nil {
		callback(roots)
	}
}

// Log sends a logging notification when level clears the session's
// minimum.
func (s *Session) Log(level LogLevel, logger string, data any) {
	s.mu.RLock()
	minLevel := s.logLevel
	s.mu.RUnlock()

	if !ShouldLog(level, minLevel) {
		return
	}

	_ = s.notifier.SendNotification(protocol.MethodLoggingMessage, LoggingMessage{
		Level:  level,
		Logger: logger,
		Data:   data,
	})
}

func (s *Session) Debug(logger string, data any)     { s.Log(LogLevelDebug, logger, data) }
func (s *Session) Info(logger string, data any)      { s.Log(LogLevelInfo, logger, data) }
func (s *Session) Notice(logger string, data any)    { s.Log(LogLevelNotice, logger, data) }
func (s *Session) Warning(logger string, data any)   { s.Log(LogLevelWarning, logger, data) }
func (s *Session) Error(logger string, data any)     { s.Log(LogLevelError, logger, data) }
func (s *Session) Critical(logger string, data any)  { s.Log(LogLevelCritical, logger, data) }
func (s *Session) Alert(logger string, data any)     { s.Log(LogLevelAlert, logger, data) }
func (s *Session) Emergency(logger string, data any) { s.Log(LogLevelEmergency, logger, data) }

// SetLogLevel sets the minimum log level.
func (s *Session) SetLogLevel(level LogLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logLevel = level
}

// LogLevel returns the current minimum log level.
func (s *Session) LogLevel() LogLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.logLevel
}

// Cancel notifies the client that a request was cancelled.
func (s *Session) Cancel(requestID json.RawMessage, reason string) error {
	return s.notifier.SendNotification(protocol.MethodCancelled, CancelledNotification{
		RequestID: requestID,
		Reason:    reason,
	})
}

// CancellationManager returns the session's cancellation manager.
func (s *Session) CancellationManager() *CancellationManager {
	return s.cancellation
}

// Subscribe records a resource subscription for this session.
func (s *Session) Subscribe(uri string) {
	s.subscriptions.Subscribe(s.id, uri)
}

// Unsubscribe drops a resource subscription for this session.
func (s *Session) Unsubscribe(uri string) {
	s.subscriptions.Unsubscribe(s.id, uri)
}

// SubscriptionManager returns the session's subscription manager.
func (s *Session) SubscriptionManager() *SubscriptionManager {
	return s.subscriptions
}

// NotifyResourceUpdated announces a change to a subscribed resource.
func (s *Session) NotifyResourceUpdated(uri string) error {
	return s.notifier.SendNotification(protocol.MethodResourceUpdated, ResourceUpdatedNotification{URI: uri})
}

// NotifyResourceListChanged announces a change to the resource list.
func (s *Session) NotifyResourceListChanged() error {
	return s.notifier.SendNotification(protocol.MethodResourceListChanged, nil)
}

// NotifyToolListChanged announces a change to the tool list.
func (s *Session) NotifyToolListChanged() error {
	return s.notifier.SendNotification(protocol.MethodToolListChanged, nil)
}

// NotifyPromptListChanged announces a change to the prompt list.
func (s *Session) NotifyPromptListChanged() error {
	return s.notifier.SendNotification(protocol.MethodPromptListChanged, nil)
}

type sessionKey struct{}

// ContextWithSession attaches a session to the context.
func ContextWithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext returns the session, or nil.
func SessionFromContext(ctx context.Context) *Session {
	session, _ := ctx.Value(sessionKey{}).(*Session)
	return session
}
