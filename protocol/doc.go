// Package protocol defines the MCP JSON-RPC 2.0 message types and error codes.
//
// This package provides the low-level protocol structures used by mcpwire.
// Most users should use the higher-level mcpwire package instead.
//
// # Messages
//
// Message is the union of the four JSON-RPC 2.0 frame shapes. Parse turns
// raw bytes into a Message, failing only on malformed JSON; Validate checks
// the frame against the JSON-RPC 2.0 structural rules; and the IsRequest,
// IsNotification, IsResponse, and IsError methods classify a valid frame:
//
//	msg, perr := protocol.Parse(line)
//	if perr != nil { ... }           // -32700, the bytes were not JSON
//	if verr := msg.Validate(); verr != nil { ... } // -32600
//	switch {
//	case msg.IsRequest():      ...
//	case msg.IsNotification(): ...
//	case msg.IsResponse():     ...
//	}
//
// The Request and Response types are the dispatch-side shapes consumed by
// transport handlers.
//
// # Error Codes
//
// Standard JSON-RPC 2.0 error codes are defined as constants:
//
//	CodeParseError     = -32700  // Invalid JSON
//	CodeInvalidRequest = -32600  // Invalid Request object
//	CodeMethodNotFound = -32601  // Method not found
//	CodeInvalidParams  = -32602  // Invalid method parameters
//	CodeInternalError  = -32603  // Internal server error
//
// MCP-specific domain failures use the implementation-defined band:
//
//	CodeNotFound     = -32001
//	CodeUnauthorized = -32002
//	CodeRateLimited  = -32003
//
// Domain errors carry a structured ErrorData payload naming the capability
// kind and key, never stack traces:
//
//	err := protocol.NewToolNotFoundError("echo")
//	err := protocol.NewInvalidParams("missing required field: name")
//
// # MCP Method Constants
//
// Standard MCP method names are defined as constants:
//
//	MethodInitialize    = "initialize"
//	MethodToolsList     = "tools/list"
//	MethodToolsCall     = "tools/call"
//	MethodResourcesList = "resources/list"
//	MethodResourcesRead = "resources/read"
//	MethodPromptsList   = "prompts/list"
//	MethodPromptsGet    = "prompts/get"
//	MethodRootsList     = "roots/list"
//	MethodPing          = "ping"
package protocol
