package middleware

import (
	"context"
	"fmt"

	"github.com/rubyonai/mcpwire/protocol"
)

// Size limit presets.
const (
	KB = 1024
	MB = 1024 * 1024
)

// SizeLimitOption configures the size limit middleware.
type SizeLimitOption func(*sizeLimitConfig)

type sizeLimitConfig struct {
	logger Logger
}

// WithSizeLimitLogger logs rejected oversized requests.
func WithSizeLimitLogger(l Logger) SizeLimitOption {
	return func(o *sizeLimitConfig) {
		o.logger = l
	}
}

// SizeLimit returns middleware that rejects requests whose params
// payload is larger than maxBytes. The limit applies to the raw
// encoded params, not the decoded value.
func SizeLimit(maxBytes int64, opts ...SizeLimitOption) Middleware {
	cfg := &sizeLimitConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			size := int64(len(req.Params))
			if size <= maxBytes {
				return next(ctx, req)
			}
			if cfg.logger != nil {
				cfg.logger.Warn("request size limit exceeded",
					Field{Key: "method", Value: req.Method},
					Field{Key: "size", Value: size},
					Field{Key: "max", Value: maxBytes},
				)
			}
			return nil, &protocol.Error{
				Code:    protocol.CodeInvalidRequest,
				Message: fmt.Sprintf("request size %d exceeds limit of %d bytes", size, maxBytes),
			}
		}
	}
}
