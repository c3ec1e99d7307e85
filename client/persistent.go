package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rubyonai/mcpwire/protocol"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultRequestTimeout = 30 * time.Second

	// closeAuthExpired is the application close code servers use when a
	// credential stops being valid mid-session.
	closeAuthExpired = 4401
)

// AuthRefreshFunc produces a replacement bearer token after the server
// closes the connection for credential reasons.
type AuthRefreshFunc func(ctx context.Context) (string, error)

// PersistentOption configures a Persistent transport.
type PersistentOption func(*Persistent)

// WithConnectTimeout sets the WebSocket handshake timeout.
func WithConnectTimeout(d time.Duration) PersistentOption {
	return func(p *Persistent) {
		p.connectTimeout = d
	}
}

// WithRequestTimeout sets the default per-request timeout. A deadline on
// the Send context overrides it.
func WithRequestTimeout(d time.Duration) PersistentOption {
	return func(p *Persistent) {
		p.requestTimeout = d
	}
}

// WithAuthToken sets the bearer token sent in the Authorization header
// during the handshake.
func WithAuthToken(token string) PersistentOption {
	return func(p *Persistent) {
		p.authToken = token
	}
}

// WithAuthRefresh sets the hook invoked when the server closes the
// connection with an auth-kinded close code. The transport reconnects
// with the returned token.
func WithAuthRefresh(fn AuthRefreshFunc) PersistentOption {
	return func(p *Persistent) {
		p.authRefresh = fn
	}
}

// WithHeader adds a header to the WebSocket handshake request.
func WithHeader(key, value string) PersistentOption {
	return func(p *Persistent) {
		p.header.Set(key, value)
	}
}

// WithLogger sets the transport logger.
func WithLogger(logger *slog.Logger) PersistentOption {
	return func(p *Persistent) {
		p.logger = logger
	}
}

// WithDialer replaces the WebSocket dialer, for custom TLS or proxy
// configuration.
func WithDialer(dialer *websocket.Dialer) PersistentOption {
	return func(p *Persistent) {
		p.dialer = dialer
	}
}

// Persistent is a WebSocket client transport. One connection carries any
// number of concurrent requests; a single read loop correlates responses
// and pushes server-initiated frames to the notification handler.
type Persistent struct {
	url            string
	connectTimeout time.Duration
	requestTimeout time.Duration
	dialer         *websocket.Dialer
	logger         *slog.Logger
	header         http.Header
	authRefresh    AuthRefreshFunc

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	authToken string

	writeMu sync.Mutex

	pending *pendingTable

	handlerMu      sync.RWMutex
	onNotification NotificationHandler
	onClose        CloseHandler
}

// NewPersistent creates a WebSocket transport for the given URL
// (ws:// or wss://).
func NewPersistent(url string, opts ...PersistentOption) *Persistent {
	p := &Persistent{
		url:            url,
		connectTimeout: defaultConnectTimeout,
		requestTimeout: defaultRequestTimeout,
		logger:         slog.Default(),
		header:         make(http.Header),
		pending:        newPendingTable(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Connect dials the server and starts the read loop. It is a no-op when
// already connected.
func (p *Persistent) Connect(ctx context.Context) error {
	p.mu.Lock()
	if p.connected {
		p.mu.Unlock()
		return nil
	}
	header := p.header.Clone()
	if p.authToken != "" {
		header.Set("Authorization", "Bearer "+p.authToken)
	}
	dialer := p.dialer
	p.mu.Unlock()

	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: p.connectTimeout}
	}

	conn, resp, err := dialer.DialContext(ctx, p.url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dialing %s: %w (status %d)", p.url, err, resp.StatusCode)
		}
		return fmt.Errorf("dialing %s: %w", p.url, err)
	}

	p.mu.Lock()
	p.conn = conn
	p.connected = true
	p.mu.Unlock()

	go p.readLoop(conn)

	return nil
}

// Connected reports whether the transport has a live connection.
func (p *Persistent) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Send transmits a request and blocks until its response arrives or the
// deadline passes. Without a ctx deadline the default request timeout
// applies.
func (p *Persistent) Send(ctx context.Context, msg *protocol.Message) (*protocol.Message, error) {
	id := msg.IDString()
	if id == "" {
		return nil, errors.New("request carries no id")
	}

	ch := p.pending.add(id)
	if err := p.writeFrame(msg); err != nil {
		p.pending.remove(id)
		return nil, err
	}

	if _, ok := ctx.Deadline(); !ok && p.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.requestTimeout)
		defer cancel()
	}

	select {
	case <-ctx.Done():
		// Drop the entry first so a response racing the deadline
		// resolves nothing.
		p.pending.remove(id)
		return nil, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		return res.msg, nil
	}
}

// Notify transmits a frame without waiting for a response.
func (p *Persistent) Notify(_ context.Context, msg *protocol.Message) error {
	return p.writeFrame(msg)
}

// OnNotification registers the handler for server-initiated frames.
func (p *Persistent) OnNotification(fn NotificationHandler) {
	p.handlerMu.Lock()
	p.onNotification = fn
	p.handlerMu.Unlock()
}

// OnClose registers the handler for unexpected disconnects.
func (p *Persistent) OnClose(fn CloseHandler) {
	p.handlerMu.Lock()
	p.onClose = fn
	p.handlerMu.Unlock()
}

// SetAuthToken replaces the bearer token. A live connection is torn down
// and re-dialed so the new credential takes effect.
func (p *Persistent) SetAuthToken(token string) error {
	p.mu.Lock()
	p.authToken = token
	connected := p.connected
	p.mu.Unlock()

	if !connected {
		return nil
	}
	if err := p.Close(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.connectTimeout)
	defer cancel()
	return p.Connect(ctx)
}

// Close tears the connection down. In-flight requests are not failed;
// they run into their own timeouts.
func (p *Persistent) Close() error {
	p.mu.Lock()
	conn := p.conn
	p.conn = nil
	p.connected = false
	p.mu.Unlock()

	if conn == nil {
		return nil
	}

	p.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	p.writeMu.Unlock()

	return conn.Close()
}

func (p *Persistent) writeFrame(msg *protocol.Message) error {
	p.mu.Lock()
	conn := p.conn
	connected := p.connected
	p.mu.Unlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// readLoop is the sole resolver of the pending table for its connection.
func (p *Persistent) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			p.handleReadError(conn, err)
			return
		}

		msg, perr := protocol.Parse(data)
		if perr != nil {
			p.logger.Warn("discarding unparsable frame", "err", perr)
			continue
		}

		if msg.IsResponse() {
			if !p.pending.resolve(msg.IDString(), msg) {
				p.logger.Debug("response with no waiting request", "id", msg.IDString())
			}
			continue
		}

		p.handlerMu.RLock()
		fn := p.onNotification
		p.handlerMu.RUnlock()
		if fn != nil {
			fn(msg)
		}
	}
}

// handleReadError distinguishes local closes (the connection was already
// replaced or discarded), credential expiry (refresh and re-dial), and
// genuine failures (reported through OnClose).
func (p *Persistent) handleReadError(conn *websocket.Conn, err error) {
	p.mu.Lock()
	current := p.conn == conn
	if current {
		p.conn = nil
		p.connected = false
	}
	refresh := p.authRefresh
	p.mu.Unlock()

	if !current {
		return
	}

	if refresh != nil && websocket.IsCloseError(err, websocket.ClosePolicyViolation, closeAuthExpired) {
		ctx, cancel := context.WithTimeout(context.Background(), p.connectTimeout)
		defer cancel()

		token, rerr := refresh(ctx)
		if rerr == nil {
			p.mu.Lock()
			p.authToken = token
			p.mu.Unlock()
			if rerr = p.Connect(ctx); rerr == nil {
				p.logger.Info("reconnected after credential refresh")
				return
			}
		}
		err = fmt.Errorf("credential refresh: %w", rerr)
	}

	p.handlerMu.RLock()
	onClose := p.onClose
	p.handlerMu.RUnlock()
	if onClose != nil {
		onClose(err)
	}
}
