package client

import (
	"context"
	"errors"

	"github.com/rubyonai/mcpwire/protocol"
)

// Transport errors shared by all client transports.
var (
	// ErrNotConnected is returned when an operation requires a live
	// connection and the transport does not have one.
	ErrNotConnected = errors.New("transport not connected")

	// ErrClosed is returned after Close; a closed transport cannot be
	// reused.
	ErrClosed = errors.New("transport closed")
)

// NotificationHandler receives server-initiated frames: notifications and
// server-to-client requests such as sampling/createMessage. Handlers run on
// the transport's read path and should hand off long work to a goroutine.
type NotificationHandler func(msg *protocol.Message)

// CloseHandler is invoked once when the transport loses its connection for
// a reason other than a local Close call.
type CloseHandler func(err error)

// Transport is the client side of an MCP wire connection. Implementations
// correlate responses to in-flight requests so that Send can be called from
// any number of goroutines.
type Transport interface {
	// Connect establishes the connection. Calling Connect on a transport
	// that is already connected is a no-op.
	Connect(ctx context.Context) error

	// Close tears the connection down.
	Close() error

	// Connected reports whether the transport currently has a live
	// connection.
	Connected() bool

	// Send transmits a request frame and blocks until the matching
	// response arrives or ctx expires.
	Send(ctx context.Context, msg *protocol.Message) (*protocol.Message, error)

	// Notify transmits a frame without waiting for a response.
	Notify(ctx context.Context, msg *protocol.Message) error

	// OnNotification registers the handler for server-initiated frames.
	OnNotification(fn NotificationHandler)

	// OnClose registers the handler for unexpected disconnects.
	OnClose(fn CloseHandler)
}
