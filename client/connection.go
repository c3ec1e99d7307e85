// Package client provides MCP client transports and a connection state
// machine for talking to MCP servers.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rubyonai/mcpwire/protocol"
)

// ErrNotInitialized is returned by requests sent before the initialize
// handshake completes.
var ErrNotInitialized = errors.New("connection not initialized")

// State is the connection lifecycle phase.
type State int32

// Connection states.
const (
	StateDisconnected State = iota
	StateConnected
	StateInitialized
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateInitialized:
		return "initialized"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ServerInfo contains what the server reported during initialization.
type ServerInfo struct {
	Name            string
	Version         string
	ProtocolVersion string
	Instructions    string
	Capabilities    Capabilities
}

// Capabilities describes which feature groups the server advertises.
type Capabilities struct {
	Tools     bool
	Resources bool
	Prompts   bool
	Roots     bool
	Logging   bool
}

// Tool represents a tool exposed by the server.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

// ToolResult is the result of calling a tool. IsError marks an in-band
// execution failure, as opposed to a protocol error.
type ToolResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError"`
}

// ContentItem is one block of tool or prompt output.
type ContentItem struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

// Resource represents a resource exposed by the server.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceContent is the content of a resource.
type ResourceContent struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// Prompt represents a prompt exposed by the server.
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptArgument describes an argument for a prompt.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// PromptResult is the result of getting a prompt.
type PromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

// PromptMessage is a message in a prompt result.
type PromptMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// Root is a filesystem root advertised by the server.
type Root struct {
	URI  string `json:"uri"`
	Name string `json:"name,omitempty"`
}

// ConnectionOption configures a Connection.
type ConnectionOption func(*connectionOptions)

type connectionOptions struct {
	clientName  string
	clientVer   string
	protocolVer string
	initTimeout time.Duration
	logger      *slog.Logger
}

// WithClientInfo sets the client name and version sent during
// initialization.
func WithClientInfo(name, version string) ConnectionOption {
	return func(o *connectionOptions) {
		o.clientName = name
		o.clientVer = version
	}
}

// WithProtocolVersion overrides the protocol version offered to the
// server.
func WithProtocolVersion(version string) ConnectionOption {
	return func(o *connectionOptions) {
		o.protocolVer = version
	}
}

// WithInitTimeout bounds the initialize round trip when the caller's
// context has no deadline.
func WithInitTimeout(d time.Duration) ConnectionOption {
	return func(o *connectionOptions) {
		o.initTimeout = d
	}
}

// WithConnLogger sets the connection logger.
func WithConnLogger(logger *slog.Logger) ConnectionOption {
	return func(o *connectionOptions) {
		o.logger = logger
	}
}

// Connection drives the MCP lifecycle over any Transport:
// Disconnected → Connected → Initialized. Requests other than initialize
// and ping are rejected until the handshake completes.
type Connection struct {
	transport Transport
	opts      connectionOptions

	state atomic.Int32

	// initMu serializes the handshake so concurrent Initialize calls
	// send at most one initialize request.
	initMu sync.Mutex

	mu         sync.RWMutex
	serverInfo *ServerInfo

	handlerMu sync.RWMutex
	handlers  map[string]NotificationHandler
}

// NewConnection wraps a transport in the MCP lifecycle.
func NewConnection(t Transport, opts ...ConnectionOption) *Connection {
	options := connectionOptions{
		clientName:  "mcpwire-client",
		clientVer:   "1.0.0",
		protocolVer: protocol.MCPVersion,
		initTimeout: 30 * time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	c := &Connection{
		transport: t,
		opts:      options,
		handlers:  make(map[string]NotificationHandler),
	}
	t.OnNotification(c.dispatch)
	return c
}

// Connect establishes the underlying transport connection.
func (c *Connection) Connect(ctx context.Context) error {
	if err := c.transport.Connect(ctx); err != nil {
		return err
	}
	c.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnected))
	return nil
}

// State returns the current lifecycle phase.
func (c *Connection) State() State {
	return State(c.state.Load())
}

// ServerInfo returns the server identity cached by Initialize, or nil
// before the handshake.
func (c *Connection) ServerInfo() *ServerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// initializeResult is the wire shape of the initialize response.
type initializeResult struct {
	ProtocolVersion string `json:"protocolVersion"`
	ServerInfo      struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"serverInfo"`
	Capabilities map[string]any `json:"capabilities"`
	Instructions string         `json:"instructions,omitempty"`
}

// Initialize performs the MCP handshake: it sends initialize, verifies
// the protocol version, announces notifications/initialized, and caches
// the server identity. Calling it on an initialized connection returns
// the cached info without another round trip.
func (c *Connection) Initialize(ctx context.Context) (*ServerInfo, error) {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.State() == StateInitialized {
		return c.ServerInfo(), nil
	}
	if c.State() == StateDisconnected {
		return nil, ErrNotConnected
	}

	if _, ok := ctx.Deadline(); !ok && c.opts.initTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.initTimeout)
		defer cancel()
	}

	params := map[string]any{
		"protocolVersion": c.opts.protocolVer,
		"clientInfo": map[string]any{
			"name":    c.opts.clientName,
			"version": c.opts.clientVer,
		},
		"capabilities": map[string]any{},
	}

	resp, err := c.roundTrip(ctx, protocol.MethodInitialize, params)
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	var result initializeResult
	if err := resp.UnmarshalResult(&result); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	if result.ProtocolVersion != c.opts.protocolVer {
		return nil, fmt.Errorf("initialize: protocol version mismatch: server offered %q, want %q",
			result.ProtocolVersion, c.opts.protocolVer)
	}

	info := &ServerInfo{
		Name:            result.ServerInfo.Name,
		Version:         result.ServerInfo.Version,
		ProtocolVersion: result.ProtocolVersion,
		Instructions:    result.Instructions,
	}
	_, info.Capabilities.Tools = result.Capabilities["tools"]
	_, info.Capabilities.Resources = result.Capabilities["resources"]
	_, info.Capabilities.Prompts = result.Capabilities["prompts"]
	_, info.Capabilities.Roots = result.Capabilities["roots"]
	_, info.Capabilities.Logging = result.Capabilities["logging"]

	c.mu.Lock()
	c.serverInfo = info
	c.mu.Unlock()

	if err := c.SendNotification(ctx, protocol.MethodInitialized, nil); err != nil {
		return nil, fmt.Errorf("initialize: announcing ready: %w", err)
	}

	c.state.Store(int32(StateInitialized))
	return info, nil
}

// SendRequest sends a request frame and returns the response. Before
// Initialize completes only initialize and ping pass the gate; an error
// response comes back as the *protocol.Error itself.
func (c *Connection) SendRequest(ctx context.Context, method string, params any) (*protocol.Message, error) {
	if c.State() != StateInitialized &&
		method != protocol.MethodInitialize && method != protocol.MethodPing {
		return nil, ErrNotInitialized
	}
	return c.roundTrip(ctx, method, params)
}

// SendNotification sends a fire-and-forget frame.
func (c *Connection) SendNotification(ctx context.Context, method string, params any) error {
	notif, err := protocol.NewNotification(method, params)
	if err != nil {
		return err
	}
	return c.transport.Notify(ctx, notif)
}

// OnMethod registers a handler for server-initiated frames with the given
// method. Frames with no registered handler are logged at debug level.
func (c *Connection) OnMethod(method string, fn NotificationHandler) {
	c.handlerMu.Lock()
	c.handlers[method] = fn
	c.handlerMu.Unlock()
}

// Ping checks that the server is responsive.
func (c *Connection) Ping(ctx context.Context) error {
	if _, err := c.roundTrip(ctx, protocol.MethodPing, nil); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close tears the connection down. In-flight requests on a persistent
// transport are not cancelled; they run into their own timeouts.
func (c *Connection) Close() error {
	c.state.Store(int32(StateDisconnected))
	return c.transport.Close()
}

// ListTools returns the tools available on the server.
func (c *Connection) ListTools(ctx context.Context) ([]Tool, error) {
	resp, err := c.SendRequest(ctx, protocol.MethodToolsList, nil)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	var result struct {
		Tools []Tool `json:"tools"`
	}
	if err := resp.UnmarshalResult(&result); err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	return result.Tools, nil
}

// CallTool invokes a tool on the server.
func (c *Connection) CallTool(ctx context.Context, name string, arguments any) (*ToolResult, error) {
	params := map[string]any{"name": name}
	if arguments != nil {
		params["arguments"] = arguments
	}
	resp, err := c.SendRequest(ctx, protocol.MethodToolsCall, params)
	if err != nil {
		return nil, fmt.Errorf("call tool %q: %w", name, err)
	}
	var result ToolResult
	if err := resp.UnmarshalResult(&result); err != nil {
		return nil, fmt.Errorf("call tool %q: %w", name, err)
	}
	return &result, nil
}

// ListResources returns the resources available on the server.
func (c *Connection) ListResources(ctx context.Context) ([]Resource, error) {
	resp, err := c.SendRequest(ctx, protocol.MethodResourcesList, nil)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	var result struct {
		Resources []Resource `json:"resources"`
	}
	if err := resp.UnmarshalResult(&result); err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return result.Resources, nil
}

// ReadResource reads a resource by URI. Servers answer with a contents
// list; the first entry is returned.
func (c *Connection) ReadResource(ctx context.Context, uri string) (*ResourceContent, error) {
	resp, err := c.SendRequest(ctx, protocol.MethodResourcesRead, map[string]any{"uri": uri})
	if err != nil {
		return nil, fmt.Errorf("read resource %q: %w", uri, err)
	}
	var result struct {
		Contents []ResourceContent `json:"contents"`
	}
	if err := resp.UnmarshalResult(&result); err != nil {
		return nil, fmt.Errorf("read resource %q: %w", uri, err)
	}
	if len(result.Contents) == 0 {
		return nil, fmt.Errorf("read resource %q: no content", uri)
	}
	return &result.Contents[0], nil
}

// ListPrompts returns the prompts available on the server.
func (c *Connection) ListPrompts(ctx context.Context) ([]Prompt, error) {
	resp, err := c.SendRequest(ctx, protocol.MethodPromptsList, nil)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	var result struct {
		Prompts []Prompt `json:"prompts"`
	}
	if err := resp.UnmarshalResult(&result); err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	return result.Prompts, nil
}

// GetPrompt renders a prompt with the given arguments.
func (c *Connection) GetPrompt(ctx context.Context, name string, arguments map[string]string) (*PromptResult, error) {
	params := map[string]any{"name": name}
	if arguments != nil {
		params["arguments"] = arguments
	}
	resp, err := c.SendRequest(ctx, protocol.MethodPromptsGet, params)
	if err != nil {
		return nil, fmt.Errorf("get prompt %q: %w", name, err)
	}
	var result PromptResult
	if err := resp.UnmarshalResult(&result); err != nil {
		return nil, fmt.Errorf("get prompt %q: %w", name, err)
	}
	return &result, nil
}

// ListRoots returns the filesystem roots advertised by the server.
func (c *Connection) ListRoots(ctx context.Context) ([]Root, error) {
	resp, err := c.SendRequest(ctx, protocol.MethodRootsList, nil)
	if err != nil {
		return nil, fmt.Errorf("list roots: %w", err)
	}
	var result struct {
		Roots []Root `json:"roots"`
	}
	if err := resp.UnmarshalResult(&result); err != nil {
		return nil, fmt.Errorf("list roots: %w", err)
	}
	return result.Roots, nil
}

// roundTrip builds a request, sends it, and unwraps error responses into
// *protocol.Error values.
func (c *Connection) roundTrip(ctx context.Context, method string, params any) (*protocol.Message, error) {
	req, err := protocol.NewRequest(method, params)
	if err != nil {
		return nil, err
	}
	resp, err := c.transport.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, resp.Error
	}
	return resp, nil
}

// dispatch routes server-initiated frames to their method handler.
func (c *Connection) dispatch(msg *protocol.Message) {
	c.handlerMu.RLock()
	fn, ok := c.handlers[msg.Method]
	c.handlerMu.RUnlock()
	if !ok {
		c.opts.logger.Debug("unhandled server message", "method", msg.Method)
		return
	}
	fn(msg)
}
