package middleware

import (
	"context"
	"fmt"

	"github.com/rubyonai/mcpwire/protocol"
)

// PanicHandler turns a recovered panic into a response or error.
type PanicHandler func(ctx context.Context, req *protocol.Request, panicVal any) (*protocol.Response, error)

// Recover returns middleware that converts handler panics into
// internal errors instead of tearing down the connection.
func Recover() Middleware {
	return RecoverWithHandler(func(_ context.Context, _ *protocol.Request, panicVal any) (*protocol.Response, error) {
		return nil, protocol.NewInternalError(fmt.Sprintf("panic: %v", panicVal))
	})
}

// RecoverWithHandler is Recover with custom panic handling, for
// callers that want to log or alert before answering.
func RecoverWithHandler(handler PanicHandler) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (resp *protocol.Response, err error) {
			defer func() {
				if r := recover(); r != nil {
					resp, err = handler(ctx, req, r)
				}
			}()
			return next(ctx, req)
		}
	}
}
