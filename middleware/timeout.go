package middleware

import (
	"context"
	"time"

	"github.com/rubyonai/mcpwire/protocol"
)

// Timeout returns middleware that caps each request at d. Handlers
// that honor their context observe context.DeadlineExceeded once the
// cap is exceeded.
func Timeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			deadlined, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(deadlined, req)
		}
	}
}
