package protocol

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

var jsonNull = []byte("null")

// Message is the union of every JSON-RPC 2.0 frame shape: request,
// notification, success response, and error response. A Message is built
// either by one of the factory functions or by Parse; Validate reports
// whether the frame is a legal JSON-RPC 2.0 message, and the Is* methods
// classify a valid frame into exactly one of the four shapes.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`

	// Parse artifacts. These make a frame invalid rather than unparsable:
	// a top-level value that is not an object, a method that is not a
	// string, an error member that is not an object, and a result member
	// that is present (possibly as literal null) all parse fine but fail
	// Validate or steer classification.
	notObject bool
	badMethod bool
	badError  bool
	hasResult bool
}

// rawFrame decodes every member as raw bytes so that a type mismatch in a
// single member never aborts the parse.
type rawFrame struct {
	JSONRPC json.RawMessage `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  json.RawMessage `json:"method"`
	Params  json.RawMessage `json:"params"`
	Result  json.RawMessage `json:"result"`
	Error   json.RawMessage `json:"error"`
}

// Parse decodes a single JSON-RPC frame. It fails only on malformed JSON;
// any syntactically valid document comes back as a Message, and structural
// problems (wrong version, missing method, non-object frame) are reported
// by Validate instead. This split keeps the -32700/-32600 boundary exact:
// parse errors are for bytes the decoder cannot read.
func Parse(data []byte) (*Message, *Error) {
	if !json.Valid(data) {
		return nil, NewParseError("invalid JSON")
	}
	m := &Message{}
	if first := firstNonSpace(data); first != '{' {
		m.notObject = true
		return m, nil
	}
	var raw rawFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, NewParseError("invalid JSON: " + err.Error())
	}
	if present(raw.JSONRPC) {
		// A non-string version is left empty and caught by Validate.
		_ = json.Unmarshal(raw.JSONRPC, &m.JSONRPC)
	}
	if present(raw.ID) {
		m.ID = raw.ID
	}
	if present(raw.Method) {
		if err := json.Unmarshal(raw.Method, &m.Method); err != nil {
			m.badMethod = true
		}
	}
	m.Params = raw.Params
	if len(raw.Result) > 0 {
		m.Result = raw.Result
		m.hasResult = true
	}
	if present(raw.Error) {
		var e Error
		if err := json.Unmarshal(raw.Error, &e); err != nil {
			m.badError = true
		} else {
			m.Error = &e
		}
	}
	return m, nil
}

// Validate reports whether the frame is a legal JSON-RPC 2.0 message.
// It returns a -32600 invalid request error describing the first problem
// found, or nil for a valid frame.
func (m *Message) Validate() *Error {
	if m.notObject {
		return NewInvalidRequest("message must be a JSON object")
	}
	if m.JSONRPC != JSONRPCVersion {
		return NewInvalidRequest(`jsonrpc must be exactly "2.0"`)
	}
	if m.badMethod {
		return NewInvalidRequest("method must be a string")
	}
	if m.badError {
		return NewInvalidRequest("error must be an object with code and message")
	}
	hasMethod := m.Method != ""
	hasError := m.Error != nil
	switch {
	case hasMethod && (m.hasResult || hasError):
		return NewInvalidRequest("message mixes request and response members")
	case !hasMethod && !m.hasResult && !hasError:
		return NewInvalidRequest("method must be a non-empty string")
	}
	if hasMethod {
		if strings.HasPrefix(m.Method, "rpc.") {
			return NewInvalidRequest(`method names beginning with "rpc." are reserved`)
		}
		return nil
	}
	if m.hasResult && hasError {
		return NewInvalidRequest("response carries both result and error")
	}
	// Error responses may carry a null id when the request id never parsed;
	// success responses always answer a concrete id.
	if m.hasResult && len(m.ID) == 0 {
		return NewInvalidRequest("response must carry the id it answers")
	}
	return nil
}

// IsRequest reports whether the frame is a request expecting a response.
func (m *Message) IsRequest() bool {
	return m.Method != "" && len(m.ID) > 0
}

// IsNotification reports whether the frame is a fire-and-forget request.
func (m *Message) IsNotification() bool {
	return m.Method != "" && len(m.ID) == 0
}

// IsResponse reports whether the frame answers a request, successfully or not.
func (m *Message) IsResponse() bool {
	return m.Method == "" && (m.hasResult || m.Error != nil)
}

// IsError reports whether the frame carries an error member.
func (m *Message) IsError() bool {
	return m.Error != nil
}

// Request converts the frame into the dispatch-side request shape.
func (m *Message) Request() *Request {
	return &Request{
		JSONRPC: m.JSONRPC,
		ID:      m.ID,
		Method:  m.Method,
		Params:  m.Params,
	}
}

// IDString renders the frame id as its canonical JSON text, which is the
// key format used for response correlation. Returns "" when no id is set.
func (m *Message) IDString() string {
	return string(bytes.TrimSpace(m.ID))
}

// UnmarshalResult decodes the result member into v.
func (m *Message) UnmarshalResult(v any) error {
	if !m.hasResult {
		return NewInternalError("message has no result")
	}
	if err := json.Unmarshal(m.Result, v); err != nil {
		return NewInternalError("decoding result: " + err.Error())
	}
	return nil
}

// NewRequest builds a request with a freshly generated UUID id. Generated
// ids are unique for the lifetime of the process, so concurrent senders
// never collide in a correlation table.
func NewRequest(method string, params any) (*Message, error) {
	return NewRequestWithID(uuid.New().String(), method, params)
}

// NewRequestWithID builds a request with a caller-chosen id. The id may be
// any JSON-marshalable value; strings and numbers are the interoperable
// choices.
func NewRequestWithID(id any, method string, params any) (*Message, error) {
	rawID, err := json.Marshal(id)
	if err != nil {
		return nil, NewInternalError("encoding id: " + err.Error())
	}
	rawParams, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Message{
		JSONRPC: JSONRPCVersion,
		ID:      rawID,
		Method:  method,
		Params:  rawParams,
	}, nil
}

// NewNotification builds a request frame without an id; no response will
// ever correlate back to it.
func NewNotification(method string, params any) (*Message, error) {
	rawParams, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	return &Message{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  rawParams,
	}, nil
}

// NewResult builds a success response frame for the given request id.
func NewResult(id json.RawMessage, result any) (*Message, error) {
	rawResult, err := json.Marshal(result)
	if err != nil {
		return nil, NewInternalError("encoding result: " + err.Error())
	}
	return &Message{
		JSONRPC:   JSONRPCVersion,
		ID:        id,
		Result:    rawResult,
		hasResult: true,
	}, nil
}

// NewErrorMessage builds an error response frame for the given request id.
// Pass a nil id for errors answering frames whose id never parsed.
func NewErrorMessage(id json.RawMessage, e *Error) *Message {
	if len(id) == 0 {
		id = jsonNull
	}
	return &Message{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error:   e,
	}
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, NewInternalError("encoding params: " + err.Error())
	}
	return raw, nil
}

// present reports whether a raw member was set to something other than
// literal null. JSON-RPC treats "id": null the same as an absent id.
func present(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, jsonNull)
}

func firstNonSpace(data []byte) byte {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b
	}
	return 0
}
