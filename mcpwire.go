// Package mcpwire provides a framework for building MCP (Model Context
// Protocol) servers.
//
// mcpwire aims to be the "Gin framework" for MCP servers, providing:
//   - Typed handlers with automatic JSON Schema generation
//   - Gin-style middleware chains
//   - Pluggable transports (stdio, WebSocket, HTTP+SSE)
//   - Production-ready defaults
//
// Basic usage:
//
//	srv := mcpwire.NewServer(mcpwire.ServerInfo{
//	    Name:    "my-server",
//	    Version: "1.0.0",
//	})
//
//	type SearchInput struct {
//	    Query string `json:"query" jsonschema:"required"`
//	}
//
//	srv.Tool("search").
//	    Description("Search for items").
//	    Handler(func(ctx context.Context, input SearchInput) ([]string, error) {
//	        return []string{"result1", "result2"}, nil
//	    })
//
//	mcpwire.ServeStdio(ctx, srv)
package mcpwire

import (
	"context"
	"time"

	"github.com/rubyonai/mcpwire/middleware"
	"github.com/rubyonai/mcpwire/protocol"
	"github.com/rubyonai/mcpwire/server"
	"github.com/rubyonai/mcpwire/transport"
)

// Re-export core types for convenience

// ServerInfo contains server metadata exposed to clients.
type ServerInfo = server.Info

// Capabilities declares what features the server supports.
type Capabilities = server.Capabilities

// Server is the MCP server instance.
type Server = server.Server

// Option configures a Server.
type Option = server.Option

// WithInstructions sets usage instructions returned from initialize.
var WithInstructions = server.WithInstructions

// WithAuthorizer installs a per-request authorization hook on the server.
var WithAuthorizer = server.WithAuthorizer

// Authorizer decides whether the caller may see or invoke a registered
// entity.
type Authorizer = server.Authorizer

// Entity kinds passed to an Authorizer.
const (
	KindTool     = server.KindTool
	KindResource = server.KindResource
	KindPrompt   = server.KindPrompt
	KindRoot     = server.KindRoot
)

// Resource types
type ResourceContent = server.ResourceContent
type ResourceInfo = server.ResourceInfo

// Prompt types
type PromptResult = server.PromptResult
type PromptMessage = server.PromptMessage
type PromptArgument = server.PromptArgument
type PromptInfo = server.PromptInfo
type TextContent = server.TextContent
type ImageContent = server.ImageContent

// Tool result types. Returning *CallToolResult from a tool handler gives
// full control over the content blocks and the isError flag.
type CallToolResult = server.CallToolResult
type ContentBlock = server.ContentBlock

var (
	NewToolResultText  = server.NewToolResultText
	NewToolResultError = server.NewToolResultError
)

// Root is a filesystem root exposed via roots/list.
type Root = server.Root

// Completion types for argument autocompletion.
type CompletionRef = server.CompletionRef
type CompletionArgument = server.CompletionArgument
type CompletionResult = server.CompletionResult

// Sampling types for requesting LLM completions from the client.
type CreateMessageRequest = server.CreateMessageRequest
type CreateMessageResult = server.CreateMessageResult
type SamplingMessage = server.SamplingMessage
type Content = server.Content
type ModelPreferences = server.ModelPreferences
type ModelHint = server.ModelHint

// Role identifies who authored a sampling message.
type Role = server.Role

const (
	RoleUser      = server.RoleUser
	RoleAssistant = server.RoleAssistant
)

// Content constructors for sampling messages.
var (
	NewTextContent  = server.NewTextContent
	NewImageContent = server.NewImageContent
)

// Session tracks one connected client.
type Session = server.Session

// SessionFromContext returns the client session from a handler context.
// Handlers use it for client logging, sampling, roots and subscriptions.
var SessionFromContext = server.SessionFromContext

// Progress types for streaming tool responses
type ProgressToken = server.ProgressToken
type Progress = server.Progress
type ProgressReporter = server.ProgressReporter

// ProgressFromContext returns the progress reporter from context.
// Use this in tool handlers to report progress for long-running operations.
//
// Example:
//
//	srv.Tool("process").Handler(func(ctx context.Context, input ProcessInput) (string, error) {
//	    progress := mcpwire.ProgressFromContext(ctx)
//	    total := 100.0
//	    for i := 0; i < 100; i++ {
//	        progress.Report(float64(i), &total)
//	        // do work...
//	    }
//	    return "done", nil
//	})
var ProgressFromContext = server.ProgressFromContext

// Middleware types
type Middleware = middleware.Middleware
type MiddlewareHandlerFunc = middleware.HandlerFunc
type Logger = middleware.Logger
type LogField = middleware.Field
type RateLimitOption = middleware.RateLimitOption

// RateLimit re-exports for convenience.
var (
	RateLimit            = middleware.RateLimit
	RateLimitByMethod    = middleware.RateLimitByMethod
	RateLimitByClient    = middleware.RateLimitByClient
	RateLimitPerMinute   = middleware.RateLimitPerMinute
	WithRateLimitKeyFunc = middleware.WithRateLimitKeyFunc
	WithRateLimitLogger  = middleware.WithRateLimitLogger
)

// Auth re-exports for convenience.
var (
	Auth     = middleware.Auth
	AuthGate = middleware.AuthGate
	OTel     = middleware.OTel
)

// SizeLimit re-exports for convenience.
type SizeLimitOption = middleware.SizeLimitOption

var (
	SizeLimit           = middleware.SizeLimit
	WithSizeLimitLogger = middleware.WithSizeLimitLogger
)

// Size limit presets.
const (
	KB = middleware.KB
	MB = middleware.MB
)

// HTTPOption configures the HTTP transport.
type HTTPOption = transport.HTTPOption

// ServeOption configures how the server is run.
type ServeOption func(*serveOptions)

type serveOptions struct {
	middleware []Middleware
	logger     Logger
}

// WithMiddleware adds middleware to the request handling chain.
func WithMiddleware(m ...Middleware) ServeOption {
	return func(o *serveOptions) {
		o.middleware = append(o.middleware, m...)
	}
}

// WithLogger sets the logger the dispatcher uses for protocol-level
// diagnostics.
func WithLogger(l Logger) ServeOption {
	return func(o *serveOptions) {
		o.logger = l
	}
}

// NewServer creates a new MCP server with the given info and options.
func NewServer(info ServerInfo, opts ...Option) *Server {
	return server.New(info, opts...)
}

// ServeStdio runs the server using stdio transport.
// This blocks until the context is canceled or an error occurs.
func ServeStdio(ctx context.Context, srv *Server, opts ...ServeOption) error {
	t := transport.NewStdio()
	return t.Serve(ctx, NewHandler(srv, opts...))
}

// ServeHTTP runs the server using HTTP transport with SSE support.
// This blocks until the context is canceled or an error occurs.
func ServeHTTP(ctx context.Context, srv *Server, addr string, opts ...HTTPOption) error {
	t := transport.NewHTTP(addr, opts...)
	return t.Serve(ctx, NewHandler(srv))
}

// ServeHTTPWithMiddleware runs the server using HTTP transport with middleware support.
func ServeHTTPWithMiddleware(ctx context.Context, srv *Server, addr string, httpOpts []HTTPOption, serveOpts ...ServeOption) error {
	t := transport.NewHTTP(addr, httpOpts...)
	return t.Serve(ctx, NewHandler(srv, serveOpts...))
}

// WithReadTimeout sets the read timeout for HTTP requests.
func WithReadTimeout(d time.Duration) HTTPOption {
	return transport.WithReadTimeout(d)
}

// WithWriteTimeout sets the write timeout for HTTP responses.
func WithWriteTimeout(d time.Duration) HTTPOption {
	return transport.WithWriteTimeout(d)
}

// WebSocketOption configures the WebSocket transport.
type WebSocketOption = transport.WebSocketOption

// ServeWebSocket runs the server using WebSocket transport.
// This blocks until the context is canceled or an error occurs.
func ServeWebSocket(ctx context.Context, srv *Server, addr string, opts ...WebSocketOption) error {
	t := transport.NewWebSocket(addr, opts...)
	return t.Serve(ctx, NewHandler(srv))
}

// ServeWebSocketWithMiddleware runs the server using WebSocket transport with middleware support.
func ServeWebSocketWithMiddleware(ctx context.Context, srv *Server, addr string, wsOpts []WebSocketOption, serveOpts ...ServeOption) error {
	t := transport.NewWebSocket(addr, wsOpts...)
	return t.Serve(ctx, NewHandler(srv, serveOpts...))
}

// WithWebSocketReadTimeout sets the read timeout for WebSocket messages.
func WithWebSocketReadTimeout(d time.Duration) WebSocketOption {
	return transport.WithWebSocketReadTimeout(d)
}

// WithWebSocketWriteTimeout sets the write timeout for WebSocket messages.
func WithWebSocketWriteTimeout(d time.Duration) WebSocketOption {
	return transport.WithWebSocketWriteTimeout(d)
}

// Middleware re-exports

// Chain composes multiple middleware into a single middleware.
func Chain(middlewares ...Middleware) Middleware {
	return middleware.Chain(middlewares...)
}

// Recover returns middleware that catches panics and converts them to internal errors.
func Recover() Middleware {
	return middleware.Recover()
}

// RecoverWithHandler returns middleware that catches panics and calls the provided handler.
func RecoverWithHandler(handler func(ctx context.Context, req *protocol.Request, panicVal any) (*protocol.Response, error)) Middleware {
	return middleware.RecoverWithHandler(handler)
}

// Timeout returns middleware that enforces a request deadline.
func Timeout(d time.Duration) Middleware {
	return middleware.Timeout(d)
}

// RequestID returns middleware that injects a unique request ID into the context.
func RequestID() Middleware {
	return middleware.RequestID()
}

// RequestIDFromContext returns the request ID from the context, or empty string if not set.
func RequestIDFromContext(ctx context.Context) string {
	return middleware.RequestIDFromContext(ctx)
}

// Logging returns middleware that logs request details.
func Logging(logger Logger) Middleware {
	return middleware.Logging(logger)
}

// DefaultMiddleware returns the recommended production middleware stack.
func DefaultMiddleware(logger Logger) []Middleware {
	return middleware.DefaultStack(logger)
}

// DefaultMiddlewareWithTimeout returns the default stack with a timeout middleware.
func DefaultMiddlewareWithTimeout(logger Logger, timeout time.Duration) []Middleware {
	return middleware.DefaultStackWithTimeout(logger, timeout)
}

// LogF creates a new log field with the given key and value.
func LogF(key string, value any) LogField {
	return middleware.F(key, value)
}
