package middleware

import (
	"context"

	"github.com/rubyonai/mcpwire/protocol"
)

// HandlerFunc handles a decoded request and produces its response.
type HandlerFunc func(ctx context.Context, req *protocol.Request) (*protocol.Response, error)

// Middleware wraps a handler with cross-cutting behavior.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middleware into one. The first argument becomes the
// outermost wrapper: Chain(a, b, c) runs a, then b, then c, then the
// handler.
func Chain(middlewares ...Middleware) Middleware {
	return func(final HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// MiddlewareChain accumulates middleware for fluent composition.
type MiddlewareChain struct {
	middlewares []Middleware
}

// Use starts a chain with the given middleware.
func Use(middlewares ...Middleware) *MiddlewareChain {
	return &MiddlewareChain{middlewares: middlewares}
}

// Append adds middleware to the end of the chain.
func (c *MiddlewareChain) Append(middlewares ...Middleware) *MiddlewareChain {
	c.middlewares = append(c.middlewares, middlewares...)
	return c
}

// Then wraps handler with the accumulated chain.
func (c *MiddlewareChain) Then(handler HandlerFunc) HandlerFunc {
	return Chain(c.middlewares...)(handler)
}

// ThenFunc is Then for a plain function literal.
func (c *MiddlewareChain) ThenFunc(fn func(ctx context.Context, req *protocol.Request) (*protocol.Response, error)) HandlerFunc {
	return c.Then(HandlerFunc(fn))
}
