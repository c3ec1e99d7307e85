// Package protocol implements the MCP protocol layer including JSON-RPC 2.0.
package protocol

import (
	"errors"
	"fmt"
)

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// MCP-specific error codes.
const (
	CodeNotFound     = -32001
	CodeUnauthorized = -32002
	CodeRateLimited  = -32003
)

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorData is the structured payload attached to domain errors. It names
// the capability kind and key involved so clients can react without parsing
// message text. Stack traces and wrapped Go errors never cross the wire.
type ErrorData struct {
	Kind string `json:"kind"`
	Name string `json:"name,omitempty"`
	URI  string `json:"uri,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("mcp: %s (code: %d)", e.Message, e.Code)
}

// Is implements errors.Is comparison by error code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithData returns a copy of the error with additional data attached.
func (e *Error) WithData(data any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Data:    data,
	}
}

// NewError creates an error with an arbitrary code.
func NewError(code int, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// NewParseError creates a parse error (-32700).
func NewParseError(msg string) *Error {
	return &Error{Code: CodeParseError, Message: msg}
}

// NewInvalidRequest creates an invalid request error (-32600).
func NewInvalidRequest(msg string) *Error {
	return &Error{Code: CodeInvalidRequest, Message: msg}
}

// NewMethodNotFound creates a method not found error (-32601).
func NewMethodNotFound(msg string) *Error {
	return &Error{Code: CodeMethodNotFound, Message: msg}
}

// NewInvalidParams creates an invalid params error (-32602).
func NewInvalidParams(msg string) *Error {
	return &Error{Code: CodeInvalidParams, Message: msg}
}

// NewInternalError creates an internal error (-32603).
func NewInternalError(msg string) *Error {
	return &Error{Code: CodeInternalError, Message: msg}
}

// NewNotFound creates a not found error (-32001).
func NewNotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NewUnauthorized creates an unauthorized error (-32002).
func NewUnauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// NewRateLimited creates a rate limited error (-32003).
func NewRateLimited(msg string) *Error {
	return &Error{Code: CodeRateLimited, Message: msg}
}

// NewToolNotFoundError creates a -32001 error naming the missing tool.
func NewToolNotFoundError(name string) *Error {
	return NewNotFound("tool not found: " + name).
		WithData(ErrorData{Kind: "tool", Name: name})
}

// NewResourceNotFoundError creates a -32001 error naming the missing resource.
func NewResourceNotFoundError(uri string) *Error {
	return NewNotFound("resource not found: " + uri).
		WithData(ErrorData{Kind: "resource", URI: uri})
}

// NewPromptNotFoundError creates a -32001 error naming the missing prompt.
func NewPromptNotFoundError(name string) *Error {
	return NewNotFound("prompt not found: " + name).
		WithData(ErrorData{Kind: "prompt", Name: name})
}

// NewRootNotFoundError creates a -32001 error naming the missing root.
func NewRootNotFoundError(name string) *Error {
	return NewNotFound("root not found: " + name).
		WithData(ErrorData{Kind: "root", Name: name})
}

// AsError extracts a protocol error from an error chain, wrapping anything
// else as an internal error. Only the message string of a foreign error is
// carried over; wrapped causes stay server-side.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}
	return NewInternalError(err.Error())
}
