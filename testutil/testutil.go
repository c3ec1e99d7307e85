// Package testutil provides an in-memory harness for testing MCP servers.
//
// The harness drives the real wire dispatcher with raw JSON-RPC frames, so
// tests exercise exactly the path a transport would: parse, validate,
// middleware, routing, and response encoding.
//
// Example usage:
//
//	func TestMyServer(t *testing.T) {
//	    srv := mcpwire.NewServer(mcpwire.ServerInfo{Name: "test", Version: "1.0.0"})
//	    srv.Tool("greet").Handler(func(ctx context.Context, input GreetInput) (string, error) {
//	        return "Hello, " + input.Name, nil
//	    })
//
//	    tc := testutil.NewTestClient(t, srv)
//	    text, err := tc.CallTool("greet", map[string]any{"name": "World"})
//	    if err != nil || text != "Hello, World" {
//	        t.Fatalf("CallTool = %q, %v", text, err)
//	    }
//	}
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	mcpwire "github.com/rubyonai/mcpwire"
	"github.com/rubyonai/mcpwire/protocol"
	"github.com/rubyonai/mcpwire/server"
	"github.com/rubyonai/mcpwire/transport"
)

// TestClient drives an MCP server through its wire dispatcher without a
// real transport. Every call builds a JSON frame, hands it to the handler,
// and decodes the reply frame.
type TestClient struct {
	t       testing.TB
	handler transport.MessageHandler
	notes   *NotificationRecorder

	mu        sync.Mutex
	reqID     int64
	sessionID string
}

// NewTestClient creates a client for the given server and performs the
// initialize handshake. The test fails if the handshake does.
func NewTestClient(t testing.TB, srv *server.Server) *TestClient {
	t.Helper()

	tc := NewTestClientWithHandler(t, mcpwire.NewHandler(srv))
	if _, err := tc.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return tc
}

// NewTestClientWithHandler creates a client around a prebuilt handler.
// No handshake is performed, which keeps middleware tests in control of
// the first frame the handler sees.
func NewTestClientWithHandler(t testing.TB, handler transport.MessageHandler) *TestClient {
	t.Helper()
	return &TestClient{
		t:         t,
		handler:   handler,
		notes:     NewNotificationRecorder(),
		sessionID: fmt.Sprintf("testclient-%p", t),
	}
}

// Notifications returns the recorder capturing server-initiated
// notifications sent during this client's requests.
func (tc *TestClient) Notifications() *NotificationRecorder {
	return tc.notes
}

// Context returns the context frames are handled under: it carries the
// client's session id and the notification recorder, the way a transport
// would stamp them.
func (tc *TestClient) Context() context.Context {
	ctx := protocol.ContextWithRequestMeta(context.Background(), protocol.RequestMeta{
		protocol.MetaSessionID: tc.sessionID,
	})
	return transport.ContextWithNotificationSender(ctx, tc.notes)
}

func (tc *TestClient) nextID() json.RawMessage {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.reqID++
	return json.RawMessage(fmt.Sprintf("%d", tc.reqID))
}

// SendRaw hands one raw frame to the dispatcher and returns the raw reply,
// or nil when the frame warrants none.
func (tc *TestClient) SendRaw(data []byte) []byte {
	tc.t.Helper()
	return tc.handler.HandleMessage(tc.Context(), data)
}

// SendRequest sends a request frame and decodes the reply. The returned
// Response carries decoded JSON values, so result maps can be asserted
// with plain type switches.
func (tc *TestClient) SendRequest(method string, params any) (*protocol.Response, error) {
	tc.t.Helper()

	msg, err := protocol.NewRequestWithID(tc.nextID(), method, params)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	frame, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	reply := tc.handler.HandleMessage(tc.Context(), frame)
	if reply == nil {
		return nil, fmt.Errorf("no reply for request %s", frame)
	}

	var resp protocol.Response
	if err := json.Unmarshal(reply, &resp); err != nil {
		return nil, fmt.Errorf("decoding reply %s: %w", reply, err)
	}
	return &resp, nil
}

// Notify sends a notification frame and returns the raw reply, which a
// conforming dispatcher leaves nil.
func (tc *TestClient) Notify(method string, params any) []byte {
	tc.t.Helper()

	msg, err := protocol.NewNotification(method, params)
	if err != nil {
		tc.t.Fatalf("building notification: %v", err)
	}
	frame, err := json.Marshal(msg)
	if err != nil {
		tc.t.Fatalf("encoding notification: %v", err)
	}
	return tc.handler.HandleMessage(tc.Context(), frame)
}

// Initialize performs the MCP handshake and returns the decoded result.
func (tc *TestClient) Initialize() (map[string]any, error) {
	tc.t.Helper()

	resp, err := tc.SendRequest(protocol.MethodInitialize, map[string]any{
		"protocolVersion": protocol.MCPVersion,
		"clientInfo": map[string]any{
			"name":    "test-client",
			"version": "1.0.0",
		},
	})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	result, ok := resp.Result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected result type: %T", resp.Result)
	}
	return result, nil
}

// Ping sends a ping request.
func (tc *TestClient) Ping() error {
	tc.t.Helper()

	resp, err := tc.SendRequest(protocol.MethodPing, nil)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	return nil
}

// ListTools lists the tools visible to the client.
func (tc *TestClient) ListTools() ([]map[string]any, error) {
	tc.t.Helper()
	return tc.listOf(protocol.MethodToolsList, "tools")
}

// ListResources lists the resources visible to the client.
func (tc *TestClient) ListResources() ([]map[string]any, error) {
	tc.t.Helper()
	return tc.listOf(protocol.MethodResourcesList, "resources")
}

// ListPrompts lists the prompts visible to the client.
func (tc *TestClient) ListPrompts() ([]map[string]any, error) {
	tc.t.Helper()
	return tc.listOf(protocol.MethodPromptsList, "prompts")
}

// listOf fetches a list-shaped result and unpacks the named array.
func (tc *TestClient) listOf(method, field string) ([]map[string]any, error) {
	resp, err := tc.SendRequest(method, nil)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	result, ok := resp.Result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected result type: %T", resp.Result)
	}
	items, ok := result[field].([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected %s type: %T", field, result[field])
	}

	out := make([]map[string]any, len(items))
	for i, item := range items {
		out[i], _ = item.(map[string]any)
	}
	return out, nil
}

// CallTool calls a tool and returns the text of its first content block.
func (tc *TestClient) CallTool(name string, args any) (string, error) {
	tc.t.Helper()

	resp, err := tc.CallToolRaw(name, args)
	if err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", resp.Error
	}

	result, ok := resp.Result.(map[string]any)
	if !ok {
		return "", fmt.Errorf("unexpected result type: %T", resp.Result)
	}
	content, ok := result["content"].([]any)
	if !ok || len(content) == 0 {
		return "", fmt.Errorf("empty content in %v", result)
	}
	first, _ := content[0].(map[string]any)
	if first == nil {
		return "", fmt.Errorf("nil content item")
	}
	text, _ := first["text"].(string)
	return text, nil
}

// CallToolRaw calls a tool and returns the undecoded response.
func (tc *TestClient) CallToolRaw(name string, args any) (*protocol.Response, error) {
	tc.t.Helper()

	params := map[string]any{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	return tc.SendRequest(protocol.MethodToolsCall, params)
}

// ReadResource reads a resource and returns the text of its first
// contents entry.
func (tc *TestClient) ReadResource(uri string) (string, error) {
	tc.t.Helper()

	resp, err := tc.SendRequest(protocol.MethodResourcesRead, map[string]any{"uri": uri})
	if err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", resp.Error
	}

	result, ok := resp.Result.(map[string]any)
	if !ok {
		return "", fmt.Errorf("unexpected result type: %T", resp.Result)
	}
	contents, ok := result["contents"].([]any)
	if !ok || len(contents) == 0 {
		return "", fmt.Errorf("empty contents in %v", result)
	}
	first, _ := contents[0].(map[string]any)
	if first == nil {
		return "", fmt.Errorf("nil contents item")
	}
	text, _ := first["text"].(string)
	return text, nil
}

// GetPrompt renders a prompt and returns the decoded result.
func (tc *TestClient) GetPrompt(name string, args map[string]string) (map[string]any, error) {
	tc.t.Helper()

	params := map[string]any{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	resp, err := tc.SendRequest(protocol.MethodPromptsGet, params)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	result, ok := resp.Result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected result type: %T", resp.Result)
	}
	return result, nil
}

// Subscribe subscribes the client's session to resource updates for uri.
func (tc *TestClient) Subscribe(uri string) error {
	tc.t.Helper()

	resp, err := tc.SendRequest(protocol.MethodResourcesSubscribe, map[string]any{"uri": uri})
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	return nil
}

// AssertToolExists fails the test unless tools/list includes name.
func (tc *TestClient) AssertToolExists(name string) {
	tc.t.Helper()

	tools, err := tc.ListTools()
	if err != nil {
		tc.t.Fatalf("ListTools failed: %v", err)
	}
	for _, tool := range tools {
		if tool["name"] == name {
			return
		}
	}
	tc.t.Errorf("tool %q not found", name)
}

// AssertResourceExists fails the test unless resources/list includes the
// URI template.
func (tc *TestClient) AssertResourceExists(uriTemplate string) {
	tc.t.Helper()

	resources, err := tc.ListResources()
	if err != nil {
		tc.t.Fatalf("ListResources failed: %v", err)
	}
	for _, res := range resources {
		if res["uri"] == uriTemplate {
			return
		}
	}
	tc.t.Errorf("resource %q not found", uriTemplate)
}

// AssertPromptExists fails the test unless prompts/list includes name.
func (tc *TestClient) AssertPromptExists(name string) {
	tc.t.Helper()

	prompts, err := tc.ListPrompts()
	if err != nil {
		tc.t.Fatalf("ListPrompts failed: %v", err)
	}
	for _, prompt := range prompts {
		if prompt["name"] == name {
			return
		}
	}
	tc.t.Errorf("prompt %q not found", name)
}

// Notification is one captured server-initiated notification.
type Notification struct {
	Method string
	Params json.RawMessage
}

// NotificationRecorder captures notifications a server pushes during
// request handling. It implements transport.NotificationSender and
// transport.FrameWriter, so progress reporting, subscription fan-out and
// server-initiated requests all land here in tests.
type NotificationRecorder struct {
	mu            sync.Mutex
	notifications []Notification
	frames        [][]byte
}

// NewNotificationRecorder creates an empty recorder.
func NewNotificationRecorder() *NotificationRecorder {
	return &NotificationRecorder{}
}

// SendNotification records one notification.
func (r *NotificationRecorder) SendNotification(method string, params any) error {
	data, err := json.Marshal(params)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.notifications = append(r.notifications, Notification{Method: method, Params: data})
	r.mu.Unlock()
	return nil
}

// WriteFrame records one raw outbound frame.
func (r *NotificationRecorder) WriteFrame(data []byte) error {
	frame := make([]byte, len(data))
	copy(frame, data)
	r.mu.Lock()
	r.frames = append(r.frames, frame)
	r.mu.Unlock()
	return nil
}

// All returns the captured notifications in arrival order.
func (r *NotificationRecorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.notifications))
	copy(out, r.notifications)
	return out
}

// ByMethod returns the captured notifications with the given method.
func (r *NotificationRecorder) ByMethod(method string) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.notifications {
		if n.Method == method {
			out = append(out, n)
		}
	}
	return out
}

// Frames returns raw frames written through the reverse channel.
func (r *NotificationRecorder) Frames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.frames))
	copy(out, r.frames)
	return out
}

// Reset discards everything captured so far.
func (r *NotificationRecorder) Reset() {
	r.mu.Lock()
	r.notifications = nil
	r.frames = nil
	r.mu.Unlock()
}
