package server

import (
	"context"

	"github.com/rubyonai/mcpwire/protocol"
)

// HandlerFunc handles one decoded request.
type HandlerFunc func(ctx context.Context, req *protocol.Request) (*protocol.Response, error)

// Middleware wraps a handler. Server-level middleware registered with
// Use runs inside any transport-level middleware.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain folds middleware into one wrapper, first argument outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(final HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
