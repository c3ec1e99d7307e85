// Package transport provides MCP transport implementations.
package transport

import (
	"context"
	"encoding/json"
)

// MessageHandler processes raw JSON-RPC frames. The returned bytes are
// written back to the peer verbatim; a nil return means nothing is sent,
// which is how notifications are acknowledged.
type MessageHandler interface {
	HandleMessage(ctx context.Context, data []byte) []byte
}

// MessageHandlerFunc is an adapter to allow ordinary functions as handlers.
type MessageHandlerFunc func(ctx context.Context, data []byte) []byte

// HandleMessage calls f(ctx, data).
func (f MessageHandlerFunc) HandleMessage(ctx context.Context, data []byte) []byte {
	return f(ctx, data)
}

// Transport defines the communication layer interface.
type Transport interface {
	// Serve starts the transport, blocking until ctx is canceled or an error occurs.
	Serve(ctx context.Context, handler MessageHandler) error

	// Addr returns the transport's address description.
	Addr() string
}

// NotificationSender can send JSON-RPC notifications to clients.
type NotificationSender interface {
	SendNotification(method string, params any) error
}

// FrameWriter can push raw JSON-RPC frames to the peer outside the
// request/response cycle. Senders on bidirectional transports implement
// it, which is what lets the server issue its own requests (sampling,
// roots/list) over the same connection.
type FrameWriter interface {
	WriteFrame(data []byte) error
}

// notificationSenderKey is the context key for the notification sender.
type notificationSenderKey struct{}

// ContextWithNotificationSender returns a context with the notification sender attached.
func ContextWithNotificationSender(ctx context.Context, sender NotificationSender) context.Context {
	return context.WithValue(ctx, notificationSenderKey{}, sender)
}

// NotificationSenderFromContext returns the notification sender from context, or nil if none.
func NotificationSenderFromContext(ctx context.Context) NotificationSender {
	sender, _ := ctx.Value(notificationSenderKey{}).(NotificationSender)
	return sender
}

// Notification represents a JSON-RPC notification (no ID, no response expected).
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// marshalNotification builds the wire form of a notification.
func marshalNotification(method string, params any) ([]byte, error) {
	paramsData, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Notification{
		JSONRPC: "2.0",
		Method:  method,
		Params:  paramsData,
	})
}
