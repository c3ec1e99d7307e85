package mcpwire

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rubyonai/mcpwire/middleware"
	"github.com/rubyonai/mcpwire/protocol"
	"github.com/rubyonai/mcpwire/server"
	"github.com/rubyonai/mcpwire/transport"
)

// sessionIdleTimeout bounds how long a session survives without traffic.
// Idle sessions are purged lazily when new ones are created.
const sessionIdleTimeout = 30 * time.Minute

// Handler is the wire-level dispatcher. It decodes raw JSON-RPC frames,
// routes requests and notifications to the Server's registries, and
// renders the reply frame. It implements transport.MessageHandler, so it
// plugs into any Transport directly.
type Handler struct {
	srv    *Server
	chain  middleware.HandlerFunc
	logger Logger

	mu       sync.Mutex
	sessions map[string]*sessionEntry

	calls clientCallTable
}

type sessionEntry struct {
	sess     *server.Session
	outlet   *connOutlet
	lastSeen time.Time
}

// NewHandler builds the dispatcher for a server. Middleware registered on
// the server via Use runs innermost; middleware passed through
// WithMiddleware wraps it.
func NewHandler(srv *Server, opts ...ServeOption) *Handler {
	options := &serveOptions{}
	for _, opt := range opts {
		opt(options)
	}

	h := &Handler{
		srv:      srv,
		logger:   options.logger,
		sessions: make(map[string]*sessionEntry),
		calls:    clientCallTable{waiting: make(map[string]chan *protocol.Response)},
	}
	if h.logger == nil {
		h.logger = middleware.NewSlogLogger(slog.Default())
	}

	core := server.HandlerFunc(h.route)
	if mws := srv.Middlewares(); len(mws) > 0 {
		core = server.Chain(mws...)(core)
	}
	chain := middleware.HandlerFunc(core)
	if len(options.middleware) > 0 {
		chain = middleware.Chain(options.middleware...)(chain)
	}
	h.chain = chain

	return h
}

// HandleMessage processes one inbound frame and returns the reply frame,
// or nil when the frame warrants no reply (notifications and response
// frames). Malformed JSON yields a -32700 error with a null id; a frame
// that parses but is not a legal JSON-RPC 2.0 message yields -32600,
// echoing the request id when one could be recovered.
func (h *Handler) HandleMessage(ctx context.Context, data []byte) []byte {
	msg, perr := protocol.Parse(data)
	if perr != nil {
		return h.errorFrame(nil, perr)
	}
	if isBatch(data) {
		return h.errorFrame(nil, protocol.NewInvalidRequest("batch requests are not supported"))
	}
	if verr := msg.Validate(); verr != nil {
		return h.errorFrame(msg.ID, verr)
	}

	switch {
	case msg.IsNotification():
		h.handleNotification(ctx, msg)
		return nil
	case msg.IsRequest():
		return h.handleRequest(ctx, msg.Request())
	default:
		// A response frame arriving at the server answers a
		// server-initiated request (sampling, roots/list).
		h.resolveClientCall(ctx, msg)
		return nil
	}
}

func (h *Handler) handleRequest(ctx context.Context, req *protocol.Request) []byte {
	sess := h.sessionFor(ctx)
	ctx = server.ContextWithSession(ctx, sess)

	ctx, done := sess.CancellationManager().Track(ctx, canonicalID(req.ID))
	defer done()

	resp, err := h.chain(ctx, req)
	if err != nil {
		// A request cancelled via notifications/cancelled gets no reply.
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil
		}
		return h.errorFrame(req.ID, protocol.AsError(err))
	}
	if resp == nil {
		return nil
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return h.errorFrame(req.ID, protocol.NewInternalError("encoding response: "+err.Error()))
	}
	return data
}

func (h *Handler) handleNotification(ctx context.Context, msg *protocol.Message) {
	switch msg.Method {
	case protocol.MethodInitialized:
		h.logger.Debug("client initialized")

	case protocol.MethodCancelled:
		var params server.CancelledNotification
		if err := json.Unmarshal(msg.Params, &params); err != nil || len(params.RequestID) == 0 {
			h.logger.Warn("discarding malformed cancellation", middleware.F("method", msg.Method))
			return
		}
		sess := h.sessionFor(ctx)
		if !sess.CancellationManager().Cancel(canonicalID(params.RequestID)) {
			h.logger.Debug("cancellation for unknown request",
				middleware.F("requestId", string(params.RequestID)))
		}

	case protocol.MethodRootsListChanged:
		sess := h.sessionFor(ctx)
		if !sess.SupportsFeature("roots") {
			return
		}
		// Refresh the cached roots off the notification path.
		go func() {
			refreshCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, err := sess.ListRoots(refreshCtx); err != nil {
				h.logger.Debug("roots refresh failed", middleware.F("error", err.Error()))
			}
		}()

	default:
		h.logger.Debug("ignoring notification", middleware.F("method", msg.Method))
	}
}

// resolveClientCall matches an inbound response frame to the pending
// server-initiated request that carries its id. Unmatched responses are
// dropped.
func (h *Handler) resolveClientCall(ctx context.Context, msg *protocol.Message) {
	resp := &protocol.Response{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      msg.ID,
		Error:   msg.Error,
	}
	if len(msg.Result) > 0 {
		resp.Result = msg.Result
	}

	key := sessionKey(ctx) + "\n" + msg.IDString()
	if !h.calls.resolve(key, resp) {
		h.logger.Debug("response frame with no pending request",
			middleware.F("id", msg.IDString()))
	}
}

func (h *Handler) errorFrame(id json.RawMessage, e *protocol.Error) []byte {
	data, err := json.Marshal(protocol.NewErrorMessage(id, e))
	if err != nil {
		h.logger.Error("encoding error frame", middleware.F("error", err.Error()))
		return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal error"}}`)
	}
	return data
}

// sessionFor returns the session for the connection behind ctx, creating
// it on first contact. The session's outbound channel is refreshed on
// every request so that HTTP sessions survive SSE reconnects.
func (h *Handler) sessionFor(ctx context.Context) *server.Session {
	key := sessionKey(ctx)
	sender := transport.NotificationSenderFromContext(ctx)

	h.mu.Lock()
	if e, ok := h.sessions[key]; ok {
		e.lastSeen = time.Now()
		h.mu.Unlock()
		e.outlet.refresh(sender)
		return e.sess
	}
	h.purgeIdleLocked()

	outlet := &connOutlet{sender: sender}
	requester := &clientRequester{calls: &h.calls, key: key, writer: outlet}
	entry := &sessionEntry{
		sess:     server.NewSession(uuid.New().String(), requester, outlet),
		outlet:   outlet,
		lastSeen: time.Now(),
	}
	h.sessions[key] = entry
	h.mu.Unlock()

	return entry.sess
}

func (h *Handler) purgeIdleLocked() {
	cutoff := time.Now().Add(-sessionIdleTimeout)
	for key, e := range h.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(h.sessions, key)
		}
	}
}

// sessionKey identifies the peer behind a request: the transport session
// id when there is one, the remote address otherwise. Pipe transports
// carry no metadata and share a single session.
func sessionKey(ctx context.Context) string {
	meta := protocol.RequestMetaFromContext(ctx)
	if id := meta[protocol.MetaSessionID]; id != "" {
		return id
	}
	if addr := meta[protocol.MetaRemoteAddr]; addr != "" {
		return addr
	}
	return "local"
}

// canonicalID renders a request id for use as a map key.
func canonicalID(id json.RawMessage) string {
	return string(bytes.TrimSpace(id))
}

// isBatch reports whether the frame is a JSON array. Batches are valid
// JSON-RPC 2.0 but intentionally unsupported: MCP never issues them.
func isBatch(data []byte) bool {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b == '['
	}
	return false
}

// NotifyResourceUpdated tells every session subscribed to uri that the
// resource changed. It returns the number of sessions notified.
func (h *Handler) NotifyResourceUpdated(uri string) int {
	notified := 0
	for _, sess := range h.snapshotSessions() {
		if !sess.SubscriptionManager().IsSubscribed(sess.ID(), uri) {
			continue
		}
		if err := sess.NotifyResourceUpdated(uri); err == nil {
			notified++
		}
	}
	return notified
}

// NotifyToolListChanged broadcasts a tool list change to every session.
func (h *Handler) NotifyToolListChanged() {
	for _, sess := range h.snapshotSessions() {
		_ = sess.NotifyToolListChanged()
	}
}

// NotifyResourceListChanged broadcasts a resource list change to every session.
func (h *Handler) NotifyResourceListChanged() {
	for _, sess := range h.snapshotSessions() {
		_ = sess.NotifyResourceListChanged()
	}
}

// NotifyPromptListChanged broadcasts a prompt list change to every session.
func (h *Handler) NotifyPromptListChanged() {
	for _, sess := range h.snapshotSessions() {
		_ = sess.NotifyPromptListChanged()
	}
}

func (h *Handler) snapshotSessions() []*server.Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	sessions := make([]*server.Session, 0, len(h.sessions))
	for _, e := range h.sessions {
		sessions = append(sessions, e.sess)
	}
	return sessions
}

// connOutlet routes outbound traffic for one session to the most recent
// transport channel seen for it. Sessions outlive individual HTTP POST
// bodies, so the outlet is refreshed on every request.
type connOutlet struct {
	mu     sync.RWMutex
	sender transport.NotificationSender
}

func (o *connOutlet) refresh(sender transport.NotificationSender) {
	if sender == nil {
		return
	}
	o.mu.Lock()
	o.sender = sender
	o.mu.Unlock()
}

func (o *connOutlet) current() transport.NotificationSender {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.sender
}

// SendNotification forwards to the connection's sender. Notifications to
// a session with no outbound channel are dropped.
func (o *connOutlet) SendNotification(method string, params any) error {
	if sender := o.current(); sender != nil {
		return sender.SendNotification(method, params)
	}
	return nil
}

// WriteFrame pushes a raw frame to the peer. It fails when the transport
// has no reverse channel.
func (o *connOutlet) WriteFrame(data []byte) error {
	if fw, ok := o.current().(transport.FrameWriter); ok {
		return fw.WriteFrame(data)
	}
	return errors.New("transport does not support server-initiated requests")
}

// clientCallTable correlates server-initiated requests with the response
// frames the client later sends back. Keys combine the session key and
// the request id so ids from different peers never collide.
type clientCallTable struct {
	mu      sync.Mutex
	waiting map[string]chan *protocol.Response
}

func (t *clientCallTable) add(key string) <-chan *protocol.Response {
	ch := make(chan *protocol.Response, 1)
	t.mu.Lock()
	t.waiting[key] = ch
	t.mu.Unlock()
	return ch
}

func (t *clientCallTable) remove(key string) {
	t.mu.Lock()
	delete(t.waiting, key)
	t.mu.Unlock()
}

func (t *clientCallTable) resolve(key string, resp *protocol.Response) bool {
	t.mu.Lock()
	ch, ok := t.waiting[key]
	if ok {
		delete(t.waiting, key)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	ch <- resp
	return true
}

// clientRequester sends requests to the peer over the connection's frame
// writer and waits for the correlated response frame.
type clientRequester struct {
	calls  *clientCallTable
	key    string
	writer transport.FrameWriter
}

func (r *clientRequester) SendRequest(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	frame, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	callKey := r.key + "\n" + canonicalID(req.ID)
	ch := r.calls.add(callKey)
	if err := r.writer.WriteFrame(frame); err != nil {
		r.calls.remove(callKey)
		return nil, fmt.Errorf("writing request: %w", err)
	}

	select {
	case <-ctx.Done():
		r.calls.remove(callKey)
		return nil, ctx.Err()
	case resp := <-ch:
		return resp, nil
	}
}

func (h *Handler) route(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	switch req.Method {
	case protocol.MethodInitialize:
		return h.handleInitialize(ctx, req)
	case protocol.MethodPing:
		return protocol.NewResponse(req.ID, map[string]any{"pong": true}), nil
	case protocol.MethodToolsList:
		return h.handleToolsList(ctx, req)
	case protocol.MethodToolsCall:
		return h.handleToolsCall(ctx, req)
	case protocol.MethodResourcesList:
		return h.handleResourcesList(ctx, req)
	case protocol.MethodResourcesTemplatesList:
		return h.handleResourceTemplatesList(ctx, req)
	case protocol.MethodResourcesRead:
		return h.handleResourcesRead(ctx, req)
	case protocol.MethodResourcesSubscribe:
		return h.handleSubscribe(ctx, req)
	case protocol.MethodResourcesUnsubscribe:
		return h.handleUnsubscribe(ctx, req)
	case protocol.MethodPromptsList:
		return h.handlePromptsList(ctx, req)
	case protocol.MethodPromptsGet:
		return h.handlePromptsGet(ctx, req)
	case protocol.MethodRootsList:
		return h.handleRootsList(ctx, req)
	case protocol.MethodCompletionComplete:
		return h.handleCompletion(ctx, req)
	case protocol.MethodLoggingSetLevel:
		return h.handleSetLevel(ctx, req)
	default:
		return nil, protocol.NewMethodNotFound("method not found: " + req.Method)
	}
}

func (h *Handler) handleInitialize(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	var params struct {
		ProtocolVersion string `json:"protocolVersion"`
		ClientInfo      struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"clientInfo"`
		Capabilities struct {
			Sampling *struct{}               `json:"sampling"`
			Roots    *server.RootsCapability `json:"roots"`
		} `json:"capabilities"`
	}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return nil, protocol.NewInvalidParams("invalid initialize params: " + err.Error())
		}
	}

	if sess := server.SessionFromContext(ctx); sess != nil {
		sess.SetClientCapabilities(server.ClientCapabilities{
			Sampling: params.Capabilities.Sampling != nil,
			Roots:    params.Capabilities.Roots,
		})
	}

	manifest := h.srv.Manifest()

	capabilities := make(map[string]any)
	if manifest.Capabilities.Tools {
		capabilities["tools"] = map[string]any{}
	}
	if manifest.Capabilities.Resources {
		capabilities["resources"] = map[string]any{"subscribe": true}
	}
	if manifest.Capabilities.Prompts {
		capabilities["prompts"] = map[string]any{}
	}
	if manifest.Capabilities.Roots {
		capabilities["roots"] = map[string]any{}
	}
	if manifest.Capabilities.Logging {
		capabilities["logging"] = map[string]any{}
	}

	result := map[string]any{
		"protocolVersion": manifest.ProtocolVersion,
		"serverInfo": map[string]any{
			"name":    manifest.Name,
			"version": manifest.Version,
		},
		"capabilities": capabilities,
	}
	if instructions := h.srv.Instructions(); instructions != "" {
		result["instructions"] = instructions
	}

	return protocol.NewResponse(req.ID, result), nil
}

func (h *Handler) handleToolsList(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	tools := h.srv.Tools()
	toolList := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		if !h.srv.Authorized(ctx, server.KindTool, t.Name) {
			continue
		}
		item := map[string]any{
			"name":        t.Name,
			"description": t.Description,
			"inputSchema": t.InputSchema,
		}
		if t.Annotations != nil {
			item["annotations"] = t.Annotations
		}
		toolList = append(toolList, item)
	}
	return protocol.NewResponse(req.ID, map[string]any{"tools": toolList}), nil
}

func (h *Handler) handleToolsCall(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, protocol.NewInvalidParams("invalid params: " + err.Error())
	}
	if params.Name == "" {
		return nil, protocol.NewInvalidParams("name is required")
	}

	tool, ok := h.srv.GetTool(params.Name)
	if !ok {
		return nil, protocol.NewToolNotFoundError(params.Name)
	}
	if !h.srv.Authorized(ctx, server.KindTool, params.Name) {
		return nil, protocol.NewUnauthorized("tool access denied").
			WithData(protocol.ErrorData{Kind: server.KindTool, Name: params.Name})
	}

	// Progress reporting rides on _meta.progressToken when the transport
	// has an outbound channel.
	if token := server.ExtractProgressToken(req.Params); token != "" {
		if sender := transport.NotificationSenderFromContext(ctx); sender != nil {
			ctx = server.ContextWithProgress(ctx, server.NewProgressReporter(token, sender))
		}
	}

	result, err := tool.Execute(ctx, params.Arguments)
	if err != nil {
		// Cancellation surfaces as-is so the dispatcher can suppress the
		// reply instead of answering a request the client abandoned.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var pe *protocol.Error
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, protocol.NewInternalError(err.Error()).
			WithData(protocol.ErrorData{Kind: server.KindTool, Name: params.Name})
	}

	return protocol.NewResponse(req.ID, toolResult(result)), nil
}

// toolResult renders a handler's return value in the tools/call wire
// shape. Handlers keep full control by returning *CallToolResult; strings
// pass through as a single text block; everything else is rendered as
// compact JSON.
func toolResult(v any) *server.CallToolResult {
	switch r := v.(type) {
	case *server.CallToolResult:
		if r.Content == nil {
			r.Content = []server.ContentBlock{}
		}
		return r
	case server.CallToolResult:
		if r.Content == nil {
			r.Content = []server.ContentBlock{}
		}
		return &r
	case string:
		return server.NewToolResultText(r)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return server.NewToolResultError("encoding tool result: " + err.Error())
		}
		return server.NewToolResultText(string(data))
	}
}

func (h *Handler) handleResourcesList(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	resources := h.srv.Resources()
	resourceList := make([]map[string]any, 0, len(resources))
	for _, r := range resources {
		if !h.srv.Authorized(ctx, server.KindResource, r.URITemplate) {
			continue
		}
		item := map[string]any{
			"uri":  r.URITemplate,
			"name": r.Name,
		}
		if r.Description != "" {
			item["description"] = r.Description
		}
		if r.MimeType != "" {
			item["mimeType"] = r.MimeType
		}
		if r.Annotations != nil {
			item["annotations"] = r.Annotations
		}
		resourceList = append(resourceList, item)
	}
	return protocol.NewResponse(req.ID, map[string]any{"resources": resourceList}), nil
}

func (h *Handler) handleResourceTemplatesList(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	templates := h.srv.ResourceTemplates()
	templateList := make([]map[string]any, 0, len(templates))
	for _, r := range templates {
		if !h.srv.Authorized(ctx, server.KindResource, r.URITemplate) {
			continue
		}
		item := map[string]any{
			"uriTemplate": r.URITemplate,
			"name":        r.Name,
		}
		if r.Description != "" {
			item["description"] = r.Description
		}
		if r.MimeType != "" {
			item["mimeType"] = r.MimeType
		}
		templateList = append(templateList, item)
	}
	return protocol.NewResponse(req.ID, map[string]any{"resourceTemplates": templateList}), nil
}

func (h *Handler) handleResourcesRead(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	var params struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, protocol.NewInvalidParams("invalid params: " + err.Error())
	}
	if params.URI == "" {
		return nil, protocol.NewInvalidParams("uri is required")
	}

	resource, ok := h.srv.FindResourceForURI(params.URI)
	if !ok {
		return nil, protocol.NewResourceNotFoundError(params.URI)
	}
	if !h.srv.Authorized(ctx, server.KindResource, resource.URITemplate()) {
		return nil, protocol.NewUnauthorized("resource access denied").
			WithData(protocol.ErrorData{Kind: server.KindResource, URI: params.URI})
	}

	content, err := resource.Read(ctx, params.URI)
	if err != nil {
		var pe *protocol.Error
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, protocol.NewInternalError(err.Error()).
			WithData(protocol.ErrorData{Kind: server.KindResource, URI: params.URI})
	}

	entry := map[string]any{"uri": content.URI}
	if content.MimeType != "" {
		entry["mimeType"] = content.MimeType
	}
	if content.Blob != "" {
		entry["blob"] = content.Blob
	} else {
		entry["text"] = content.Text
	}

	return protocol.NewResponse(req.ID, map[string]any{
		"contents": []map[string]any{entry},
	}), nil
}

func (h *Handler) handleSubscribe(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	var params server.SubscribeRequest
	if err := json.Unmarshal(req.Params, &params); err != nil || params.URI == "" {
		return nil, protocol.NewInvalidParams("subscribe requires a uri")
	}
	if _, ok := h.srv.FindResourceForURI(params.URI); !ok {
		return nil, protocol.NewResourceNotFoundError(params.URI)
	}

	sess := server.SessionFromContext(ctx)
	if sess == nil {
		return nil, protocol.NewInternalError("no session")
	}
	sess.Subscribe(params.URI)

	return protocol.NewResponse(req.ID, map[string]any{}), nil
}

func (h *Handler) handleUnsubscribe(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	var params server.UnsubscribeRequest
	if err := json.Unmarshal(req.Params, &params); err != nil || params.URI == "" {
		return nil, protocol.NewInvalidParams("unsubscribe requires a uri")
	}

	sess := server.SessionFromContext(ctx)
	if sess == nil {
		return nil, protocol.NewInternalError("no session")
	}
	sess.Unsubscribe(params.URI)

	return protocol.NewResponse(req.ID, map[string]any{}), nil
}

func (h *Handler) handlePromptsList(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	prompts := h.srv.Prompts()
	promptList := make([]map[string]any, 0, len(prompts))
	for _, p := range prompts {
		if !h.srv.Authorized(ctx, server.KindPrompt, p.Name) {
			continue
		}
		item := map[string]any{
			"name":        p.Name,
			"description": p.Description,
		}
		if len(p.Arguments) > 0 {
			item["arguments"] = p.Arguments
		}
		if p.Annotations != nil {
			item["annotations"] = p.Annotations
		}
		promptList = append(promptList, item)
	}
	return protocol.NewResponse(req.ID, map[string]any{"prompts": promptList}), nil
}

func (h *Handler) handlePromptsGet(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	var params struct {
		Name      string            `json:"name"`
		Arguments map[string]string `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, protocol.NewInvalidParams("invalid params: " + err.Error())
	}
	if params.Name == "" {
		return nil, protocol.NewInvalidParams("name is required")
	}

	prompt, ok := h.srv.GetPrompt(params.Name)
	if !ok {
		return nil, protocol.NewPromptNotFoundError(params.Name)
	}
	if !h.srv.Authorized(ctx, server.KindPrompt, params.Name) {
		return nil, protocol.NewUnauthorized("prompt access denied").
			WithData(protocol.ErrorData{Kind: server.KindPrompt, Name: params.Name})
	}

	result, err := prompt.Get(ctx, params.Arguments)
	if err != nil {
		var pe *protocol.Error
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, protocol.NewInternalError(err.Error()).
			WithData(protocol.ErrorData{Kind: server.KindPrompt, Name: params.Name})
	}

	return protocol.NewResponse(req.ID, result), nil
}

func (h *Handler) handleRootsList(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	roots := h.srv.Roots()
	rootList := make([]server.Root, 0, len(roots))
	for _, r := range roots {
		if !h.srv.Authorized(ctx, server.KindRoot, r.Name) {
			continue
		}
		rootList = append(rootList, r)
	}
	return protocol.NewResponse(req.ID, map[string]any{"roots": rootList}), nil
}

func (h *Handler) handleCompletion(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	var params server.CompletionRequest
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, protocol.NewInvalidParams("invalid params: " + err.Error())
	}

	result, err := h.srv.HandleCompletion(ctx, params.Ref, params.Argument)
	if err != nil {
		var pe *protocol.Error
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, protocol.NewInternalError(err.Error())
	}

	return protocol.NewResponse(req.ID, server.CompletionResponse{Completion: *result}), nil
}

func (h *Handler) handleSetLevel(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	var params server.SetLevelRequest
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, protocol.NewInvalidParams("invalid params: " + err.Error())
	}
	if !server.ValidLogLevel(params.Level) {
		return nil, protocol.NewInvalidParams(fmt.Sprintf("unknown log level %q", params.Level))
	}

	sess := server.SessionFromContext(ctx)
	if sess == nil {
		return nil, protocol.NewInternalError("no session")
	}
	sess.SetLogLevel(params.Level)

	return protocol.NewResponse(req.ID, map[string]any{}), nil
}
