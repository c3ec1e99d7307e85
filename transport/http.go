package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tmaxmax/go-sse"

	"github.com/rubyonai/mcpwire/protocol"
)

// HTTP implements an HTTP transport with SSE support for MCP. Clients POST
// JSON-RPC frames to /mcp and receive server-initiated messages over an
// SSE stream at /mcp/sse. The SSE handshake hands each client a session
// endpoint URL so notifications can be routed back to its stream.
type HTTP struct {
	addr         string
	readTimeout  time.Duration
	writeTimeout time.Duration

	corsConfig      *CORSConfig
	shutdownTimeout time.Duration
	drainDelay      time.Duration

	mu         sync.RWMutex
	listenAddr string
	server     *http.Server

	sseMu      sync.RWMutex
	sseClients map[string]*sseClient
}

// sseClient serializes writes to one SSE session.
type sseClient struct {
	mu   sync.Mutex
	sess *sse.Session
}

func (c *sseClient) send(msg *sse.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.sess.Send(msg); err != nil {
		return err
	}
	return c.sess.Flush()
}

// HTTPOption configures the HTTP transport.
type HTTPOption func(*HTTP)

// WithReadTimeout sets the read timeout for HTTP requests.
func WithReadTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.readTimeout = d
	}
}

// WithWriteTimeout bounds how long a single JSON-RPC request may take to
// produce a response. SSE streams are not subject to it.
func WithWriteTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.writeTimeout = d
	}
}

// NewHTTP creates a new HTTP transport.
func NewHTTP(addr string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		addr:            addr,
		readTimeout:     30 * time.Second,
		writeTimeout:    30 * time.Second,
		shutdownTimeout: 30 * time.Second,
		sseClients:      make(map[string]*sseClient),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Addr returns the configured address.
func (h *HTTP) Addr() string {
	return h.addr
}

// ListenAddr returns the actual address the server is listening on.
func (h *HTTP) ListenAddr() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.listenAddr
}

// Serve starts the HTTP server and handles requests until ctx is canceled.
// On shutdown, in-flight requests are drained before the listener closes.
func (h *HTTP) Serve(ctx context.Context, handler MessageHandler) error {
	sm := NewShutdownManager(ShutdownConfig{
		Timeout:    h.shutdownTimeout,
		DrainDelay: h.drainDelay,
	})
	httpHandler := h.createHandler(ctx, handler, sm)

	listener, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	h.mu.Lock()
	h.listenAddr = listener.Addr().String()
	// WriteTimeout stays unset on the server so SSE streams are not cut
	// off; per-request deadlines are applied on the /mcp route instead.
	h.server = &http.Server{
		Handler:     httpHandler,
		ReadTimeout: h.readTimeout,
	}
	h.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		if err := h.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		_ = sm.Shutdown(context.Background())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// createHandler builds the HTTP routes for MCP requests.
func (h *HTTP) createHandler(ctx context.Context, handler MessageHandler, sm *ShutdownManager) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	// SSE endpoint for server-to-client messages
	mux.HandleFunc("/mcp/sse", func(w http.ResponseWriter, r *http.Request) {
		h.handleSSE(ctx, w, r)
	})

	// Main MCP endpoint
	var mcpHandler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.handleMCP(w, r, handler, sm)
	})
	if h.writeTimeout > 0 {
		mcpHandler = http.TimeoutHandler(mcpHandler, h.writeTimeout,
			`{"jsonrpc":"2.0","error":{"code":-32603,"message":"request timed out"},"id":null}`)
	}
	mux.Handle("/mcp", mcpHandler)

	if h.corsConfig != nil {
		return CORSHandler(*h.corsConfig, mux)
	}
	return mux
}

// handleMCP handles JSON-RPC requests over HTTP.
func (h *HTTP) handleMCP(w http.ResponseWriter, r *http.Request, handler MessageHandler, sm *ShutdownManager) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if !sm.TrackRequest() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer sm.CompleteRequest()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFrameBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	meta := protocol.RequestMeta{
		protocol.MetaRemoteAddr: r.RemoteAddr,
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		meta[protocol.MetaAuthorization] = auth
	}
	// Route notifications back to the caller's SSE stream when it has one.
	sessionID := r.URL.Query().Get("sessionID")
	if sessionID != "" {
		meta[protocol.MetaSessionID] = sessionID
	}
	reqCtx := protocol.ContextWithRequestMeta(r.Context(), meta)
	if sessionID != "" {
		if client := h.sseClient(sessionID); client != nil {
			reqCtx = ContextWithNotificationSender(reqCtx, &sseNotificationSender{client: client})
		}
	}

	resp := handler.HandleMessage(reqCtx, body)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(resp)
}

// handleSSE upgrades the connection and parks it until the client leaves
// or the server shuts down.
func (h *HTTP) handleSSE(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	sess, err := sse.Upgrade(w, r)
	if err != nil {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	sessionID := uuid.New().String()
	client := &sseClient{sess: sess}

	h.sseMu.Lock()
	h.sseClients[sessionID] = client
	h.sseMu.Unlock()

	defer func() {
		h.sseMu.Lock()
		delete(h.sseClients, sessionID)
		h.sseMu.Unlock()
	}()

	// Hand the client its message endpoint for this session.
	endpoint := &sse.Message{Type: sse.Type("endpoint")}
	endpoint.AppendData(fmt.Sprintf("/mcp?sessionID=%s", sessionID))
	if err := client.send(endpoint); err != nil {
		return
	}

	select {
	case <-r.Context().Done():
	case <-ctx.Done():
	}
}

func (h *HTTP) sseClient(sessionID string) *sseClient {
	h.sseMu.RLock()
	defer h.sseMu.RUnlock()
	return h.sseClients[sessionID]
}

// BroadcastNotification sends a notification to every connected SSE client.
func (h *HTTP) BroadcastNotification(method string, params any) error {
	data, err := marshalNotification(method, params)
	if err != nil {
		return err
	}

	msg := &sse.Message{Type: sse.Type("message")}
	msg.AppendData(string(data))

	h.sseMu.RLock()
	defer h.sseMu.RUnlock()
	for _, client := range h.sseClients {
		_ = client.send(msg)
	}
	return nil
}

// SendNotificationTo sends a notification to one SSE session. It reports
// whether the session was connected.
func (h *HTTP) SendNotificationTo(sessionID, method string, params any) bool {
	client := h.sseClient(sessionID)
	if client == nil {
		return false
	}

	sender := &sseNotificationSender{client: client}
	return sender.SendNotification(method, params) == nil
}

// sseNotificationSender sends notifications over one SSE session.
type sseNotificationSender struct {
	client *sseClient
}

func (s *sseNotificationSender) SendNotification(method string, params any) error {
	data, err := marshalNotification(method, params)
	if err != nil {
		return err
	}
	return s.WriteFrame(data)
}

// WriteFrame pushes a raw frame down the SSE stream, enabling
// server-initiated requests whose responses arrive on a later POST.
func (s *sseNotificationSender) WriteFrame(data []byte) error {
	msg := &sse.Message{Type: sse.Type("message")}
	msg.AppendData(string(data))
	return s.client.send(msg)
}
