// Package transport provides MCP transport implementations.
//
// This package implements the communication layer for MCP servers,
// supporting multiple transport protocols. Transports carry raw frames;
// all JSON-RPC parsing and error mapping happens in the handler.
//
// # Stdio Transport
//
// The stdio transport communicates via stdin/stdout with one message per
// line, suitable for local tools and CLI integrations:
//
//	t := transport.NewStdio()
//	err := t.Serve(ctx, handler)
//
// # HTTP Transport
//
// The HTTP transport provides an HTTP server with Server-Sent Events (SSE)
// support for server-to-client notifications:
//
//	t := transport.NewHTTP(":8080",
//	    transport.WithReadTimeout(30*time.Second),
//	    transport.WithWriteTimeout(30*time.Second),
//	)
//	err := t.Serve(ctx, handler)
//
// The HTTP transport exposes the following endpoints:
//   - POST /mcp - Handle JSON-RPC requests
//   - GET /mcp/sse - Establish an SSE session
//   - GET /health - Health check endpoint
//
// An SSE session begins with an "endpoint" event naming the POST URL
// (including the session ID) that routes notifications back to the stream.
//
// # WebSocket Transport
//
// The WebSocket transport serves bidirectional connections and supports
// per-connection notification push:
//
//	t := transport.NewWebSocket(":8080")
//	err := t.Serve(ctx, handler)
//
// # Handler Interface
//
// All transports deliver raw frames to a MessageHandler:
//
//	type MessageHandler interface {
//	    HandleMessage(ctx context.Context, data []byte) []byte
//	}
//
// The returned bytes are written back verbatim; a nil return means no
// reply (notifications). Connection metadata such as the remote address
// and Authorization header is available via protocol.RequestMetaFromContext.
//
// # Usage with mcpwire Package
//
// Most users should use the root package's convenience functions:
//
//	mcpwire.ServeStdio(ctx, srv)
//	mcpwire.ServeHTTP(ctx, srv, ":8080")
package transport
