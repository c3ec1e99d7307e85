package client_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rubyonai/mcpwire/client"
	"github.com/rubyonai/mcpwire/protocol"
)

// fakeTransport answers each method with a canned result or error and
// records everything the connection sends.
type fakeTransport struct {
	mu        sync.Mutex
	connected bool
	sent      []*protocol.Message
	notified  []*protocol.Message
	results   map[string]any
	errs      map[string]*protocol.Error
	handler   client.NotificationHandler
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		results: map[string]any{},
		errs:    map[string]*protocol.Error{},
	}
}

// withInit adds a well-formed initialize response.
func (f *fakeTransport) withInit() *fakeTransport {
	f.results[protocol.MethodInitialize] = map[string]any{
		"protocolVersion": protocol.MCPVersion,
		"serverInfo": map[string]any{
			"name":    "test-server",
			"version": "1.0.0",
		},
		"capabilities": map[string]any{
			"tools":     map[string]any{},
			"resources": map[string]any{},
		},
		"instructions": "be gentle",
	}
	return f
}

func (f *fakeTransport) Connect(_ context.Context) error {
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) Send(_ context.Context, msg *protocol.Message) (*protocol.Message, error) {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	perr := f.errs[msg.Method]
	result, ok := f.results[msg.Method]
	f.mu.Unlock()

	if perr != nil {
		return protocol.NewErrorMessage(msg.ID, perr), nil
	}
	if !ok {
		result = map[string]any{}
	}
	return protocol.NewResult(msg.ID, result)
}

func (f *fakeTransport) Notify(_ context.Context, msg *protocol.Message) error {
	f.mu.Lock()
	f.notified = append(f.notified, msg)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) OnNotification(fn client.NotificationHandler) {
	f.mu.Lock()
	f.handler = fn
	f.mu.Unlock()
}

func (f *fakeTransport) OnClose(client.CloseHandler) {}

// push simulates a server-initiated frame arriving on the wire.
func (f *fakeTransport) push(msg *protocol.Message) {
	f.mu.Lock()
	fn := f.handler
	f.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}

func (f *fakeTransport) countSent(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, msg := range f.sent {
		if msg.Method == method {
			n++
		}
	}
	return n
}

// initialized returns a connection that has completed the handshake.
func initialized(t *testing.T, tr *fakeTransport) *client.Connection {
	t.Helper()
	conn := client.NewConnection(tr)
	if err := conn.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if _, err := conn.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	return conn
}

func TestConnection_Initialize(t *testing.T) {
	t.Run("performs handshake with server", func(t *testing.T) {
		tr := newFakeTransport().withInit()
		conn := client.NewConnection(tr, client.WithClientInfo("test-client", "0.1.0"))

		if err := conn.Connect(context.Background()); err != nil {
			t.Fatalf("connect failed: %v", err)
		}

		info, err := conn.Initialize(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if info.Name != "test-server" {
			t.Errorf("server name = %q, want %q", info.Name, "test-server")
		}
		if info.Version != "1.0.0" {
			t.Errorf("server version = %q, want %q", info.Version, "1.0.0")
		}
		if info.Instructions != "be gentle" {
			t.Errorf("instructions = %q, want %q", info.Instructions, "be gentle")
		}
		if !info.Capabilities.Tools || !info.Capabilities.Resources {
			t.Error("expected tools and resources capabilities")
		}
		if info.Capabilities.Prompts {
			t.Error("prompts capability was not advertised")
		}
		if conn.State() != client.StateInitialized {
			t.Errorf("state = %v, want initialized", conn.State())
		}

		// The handshake ends with notifications/initialized.
		if len(tr.notified) != 1 || tr.notified[0].Method != protocol.MethodInitialized {
			t.Errorf("expected a single %s notification, got %v", protocol.MethodInitialized, tr.notified)
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		tr := newFakeTransport().withInit()
		conn := initialized(t, tr)

		info, err := conn.Initialize(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.Name != "test-server" {
			t.Errorf("server name = %q, want %q", info.Name, "test-server")
		}

		if n := tr.countSent(protocol.MethodInitialize); n != 1 {
			t.Errorf("initialize sent %d times, want 1", n)
		}
	})

	t.Run("concurrent calls send one handshake", func(t *testing.T) {
		tr := newFakeTransport().withInit()
		conn := client.NewConnection(tr)

		if err := conn.Connect(context.Background()); err != nil {
			t.Fatalf("connect failed: %v", err)
		}

		var wg sync.WaitGroup
		errs := make([]error, 10)
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = conn.Initialize(context.Background())
			}()
		}
		wg.Wait()

		for i, err := range errs {
			if err != nil {
				t.Fatalf("Initialize %d: %v", i, err)
			}
		}
		if n := tr.countSent(protocol.MethodInitialize); n != 1 {
			t.Errorf("initialize sent %d times, want 1", n)
		}
		if len(tr.notified) != 1 {
			t.Errorf("sent %d initialized notifications, want 1", len(tr.notified))
		}
	})

	t.Run("returns error on failed handshake", func(t *testing.T) {
		tr := newFakeTransport()
		tr.errs[protocol.MethodInitialize] = protocol.NewInvalidRequest("bad handshake")

		conn := client.NewConnection(tr)
		if err := conn.Connect(context.Background()); err != nil {
			t.Fatalf("connect failed: %v", err)
		}

		if _, err := conn.Initialize(context.Background()); err == nil {
			t.Fatal("expected error")
		}
		if conn.State() != client.StateConnected {
			t.Errorf("state = %v, want connected", conn.State())
		}
	})

	t.Run("rejects protocol version mismatch", func(t *testing.T) {
		tr := newFakeTransport()
		tr.results[protocol.MethodInitialize] = map[string]any{
			"protocolVersion": "1999-12-31",
			"serverInfo":      map[string]any{"name": "old", "version": "0.0.1"},
			"capabilities":    map[string]any{},
		}

		conn := client.NewConnection(tr)
		if err := conn.Connect(context.Background()); err != nil {
			t.Fatalf("connect failed: %v", err)
		}

		if _, err := conn.Initialize(context.Background()); err == nil {
			t.Fatal("expected version mismatch error")
		}
	})

	t.Run("requires connect first", func(t *testing.T) {
		conn := client.NewConnection(newFakeTransport().withInit())

		if _, err := conn.Initialize(context.Background()); !errors.Is(err, client.ErrNotConnected) {
			t.Errorf("err = %v, want ErrNotConnected", err)
		}
	})
}

func TestConnection_RequestGate(t *testing.T) {
	t.Run("rejects requests before initialization", func(t *testing.T) {
		tr := newFakeTransport().withInit()
		conn := client.NewConnection(tr)
		if err := conn.Connect(context.Background()); err != nil {
			t.Fatalf("connect failed: %v", err)
		}

		if _, err := conn.SendRequest(context.Background(), protocol.MethodToolsList, nil); !errors.Is(err, client.ErrNotInitialized) {
			t.Errorf("err = %v, want ErrNotInitialized", err)
		}
	})

	t.Run("allows ping before initialization", func(t *testing.T) {
		tr := newFakeTransport().withInit()
		conn := client.NewConnection(tr)
		if err := conn.Connect(context.Background()); err != nil {
			t.Fatalf("connect failed: %v", err)
		}

		if err := conn.Ping(context.Background()); err != nil {
			t.Errorf("ping failed: %v", err)
		}
	})
}

func TestConnection_ListTools(t *testing.T) {
	t.Run("returns list of tools", func(t *testing.T) {
		tr := newFakeTransport().withInit()
		tr.results[protocol.MethodToolsList] = map[string]any{
			"tools": []any{
				map[string]any{
					"name":        "search",
					"description": "Search for items",
					"inputSchema": map[string]any{"type": "object"},
				},
			},
		}
		conn := initialized(t, tr)

		tools, err := conn.ListTools(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tools) != 1 {
			t.Fatalf("expected 1 tool, got %d", len(tools))
		}
		if tools[0].Name != "search" {
			t.Errorf("tool name = %q, want %q", tools[0].Name, "search")
		}
	})
}

func TestConnection_CallTool(t *testing.T) {
	t.Run("executes tool and returns result", func(t *testing.T) {
		tr := newFakeTransport().withInit()
		tr.results[protocol.MethodToolsCall] = map[string]any{
			"content": []any{
				map[string]any{"type": "text", "text": "Hello, World!"},
			},
			"isError": false,
		}
		conn := initialized(t, tr)

		result, err := conn.CallTool(context.Background(), "greet", map[string]any{"name": "World"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Content) != 1 {
			t.Fatalf("expected 1 content item, got %d", len(result.Content))
		}
		if result.Content[0].Text != "Hello, World!" {
			t.Errorf("text = %q, want %q", result.Content[0].Text, "Hello, World!")
		}
		if result.IsError {
			t.Error("expected isError to be false")
		}
	})

	t.Run("returns error for unknown tool", func(t *testing.T) {
		tr := newFakeTransport().withInit()
		tr.errs[protocol.MethodToolsCall] = protocol.NewToolNotFoundError("unknown")
		conn := initialized(t, tr)

		_, err := conn.CallTool(context.Background(), "unknown", nil)
		if err == nil {
			t.Fatal("expected error")
		}

		var perr *protocol.Error
		if !errors.As(err, &perr) || perr.Code != protocol.CodeNotFound {
			t.Errorf("expected protocol error %d, got %v", protocol.CodeNotFound, err)
		}
	})
}

func TestConnection_ListResources(t *testing.T) {
	t.Run("returns list of resources", func(t *testing.T) {
		tr := newFakeTransport().withInit()
		tr.results[protocol.MethodResourcesList] = map[string]any{
			"resources": []any{
				map[string]any{
					"uri":      "file://config",
					"name":     "Config",
					"mimeType": "text/plain",
				},
			},
		}
		conn := initialized(t, tr)

		resources, err := conn.ListResources(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(resources) != 1 {
			t.Fatalf("expected 1 resource, got %d", len(resources))
		}
		if resources[0].Name != "Config" {
			t.Errorf("resource name = %q, want %q", resources[0].Name, "Config")
		}
	})
}

func TestConnection_ReadResource(t *testing.T) {
	t.Run("reads resource content", func(t *testing.T) {
		tr := newFakeTransport().withInit()
		tr.results[protocol.MethodResourcesRead] = map[string]any{
			"contents": []any{
				map[string]any{
					"uri":      "file://test.txt",
					"mimeType": "text/plain",
					"text":     "Hello, World!",
				},
			},
		}
		conn := initialized(t, tr)

		content, err := conn.ReadResource(context.Background(), "file://test.txt")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if content.Text != "Hello, World!" {
			t.Errorf("text = %q, want %q", content.Text, "Hello, World!")
		}
	})

	t.Run("rejects empty contents", func(t *testing.T) {
		tr := newFakeTransport().withInit()
		tr.results[protocol.MethodResourcesRead] = map[string]any{"contents": []any{}}
		conn := initialized(t, tr)

		if _, err := conn.ReadResource(context.Background(), "file://empty"); err == nil {
			t.Fatal("expected error for empty contents")
		}
	})
}

func TestConnection_ListPrompts(t *testing.T) {
	t.Run("returns list of prompts", func(t *testing.T) {
		tr := newFakeTransport().withInit()
		tr.results[protocol.MethodPromptsList] = map[string]any{
			"prompts": []any{
				map[string]any{
					"name":        "greet",
					"description": "Generate a greeting",
					"arguments": []any{
						map[string]any{"name": "name", "required": true},
					},
				},
			},
		}
		conn := initialized(t, tr)

		prompts, err := conn.ListPrompts(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(prompts) != 1 {
			t.Fatalf("expected 1 prompt, got %d", len(prompts))
		}
		if prompts[0].Name != "greet" {
			t.Errorf("prompt name = %q, want %q", prompts[0].Name, "greet")
		}
		if len(prompts[0].Arguments) != 1 || !prompts[0].Arguments[0].Required {
			t.Error("expected one required argument")
		}
	})
}

func TestConnection_GetPrompt(t *testing.T) {
	t.Run("gets prompt messages", func(t *testing.T) {
		tr := newFakeTransport().withInit()
		tr.results[protocol.MethodPromptsGet] = map[string]any{
			"messages": []any{
				map[string]any{
					"role":    "user",
					"content": map[string]any{"type": "text", "text": "Hello, World!"},
				},
			},
		}
		conn := initialized(t, tr)

		result, err := conn.GetPrompt(context.Background(), "greet", map[string]string{"name": "World"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Messages) != 1 {
			t.Fatalf("expected 1 message, got %d", len(result.Messages))
		}
		if result.Messages[0].Role != "user" {
			t.Errorf("role = %q, want user", result.Messages[0].Role)
		}
	})
}

func TestConnection_ListRoots(t *testing.T) {
	t.Run("returns roots", func(t *testing.T) {
		tr := newFakeTransport().withInit()
		tr.results[protocol.MethodRootsList] = map[string]any{
			"roots": []any{
				map[string]any{"uri": "file:///srv/data", "name": "data"},
			},
		}
		conn := initialized(t, tr)

		roots, err := conn.ListRoots(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(roots) != 1 || roots[0].Name != "data" {
			t.Errorf("unexpected roots: %+v", roots)
		}
	})
}

func TestConnection_OnMethod(t *testing.T) {
	t.Run("dispatches notifications by method", func(t *testing.T) {
		tr := newFakeTransport().withInit()
		conn := initialized(t, tr)

		got := make(chan *protocol.Message, 1)
		conn.OnMethod("notifications/resources/updated", func(msg *protocol.Message) {
			got <- msg
		})

		notif, _ := protocol.NewNotification("notifications/resources/updated", map[string]string{"uri": "file://x"})
		tr.push(notif)

		select {
		case msg := <-got:
			if msg.Method != "notifications/resources/updated" {
				t.Errorf("method = %q", msg.Method)
			}
		default:
			t.Fatal("handler not invoked")
		}
	})

	t.Run("ignores methods without a handler", func(t *testing.T) {
		tr := newFakeTransport().withInit()
		conn := initialized(t, tr)
		_ = conn

		notif, _ := protocol.NewNotification("notifications/unknown", nil)
		tr.push(notif) // must not panic
	})
}

func TestConnection_Close(t *testing.T) {
	t.Run("returns to disconnected state", func(t *testing.T) {
		tr := newFakeTransport().withInit()
		conn := initialized(t, tr)

		if err := conn.Close(); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if conn.State() != client.StateDisconnected {
			t.Errorf("state = %v, want disconnected", conn.State())
		}
		if tr.Connected() {
			t.Error("expected transport to be closed")
		}
	})
}
