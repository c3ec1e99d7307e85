package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/rubyonai/mcpwire/protocol"
)

// maxLineBytes bounds a single newline-delimited frame read from the
// server. Matches the server-side frame limit.
const maxLineBytes = 10 * 1024 * 1024

// Stream is a client transport over a newline-delimited byte stream:
// either the stdin/stdout of a spawned subprocess or an existing pipe
// pair. A background reader resolves responses and dispatches
// server-initiated frames; when the reader stops, every in-flight request
// fails and the transport reports disconnected.
type Stream struct {
	command string
	args    []string
	logger  *slog.Logger

	mu         sync.Mutex
	cmd        *exec.Cmd
	stdin      io.Writer
	stdout     io.Reader
	stderr     io.ReadCloser
	connected  bool
	closed     bool
	readerDone chan struct{}

	writeMu sync.Mutex

	pending *pendingTable

	handlerMu      sync.RWMutex
	onNotification NotificationHandler
	onClose        CloseHandler
}

// NewStdio creates a stream transport that spawns command with args on
// Connect and speaks JSON-RPC over its stdin/stdout.
func NewStdio(command string, args ...string) *Stream {
	return &Stream{
		command: command,
		args:    args,
		logger:  slog.Default(),
		pending: newPendingTable(),
	}
}

// NewStream creates a stream transport over an existing pipe pair. Frames
// from the server are read from r; frames to the server are written to w.
func NewStream(r io.Reader, w io.Writer) *Stream {
	return &Stream{
		stdout:  r,
		stdin:   w,
		logger:  slog.Default(),
		pending: newPendingTable(),
	}
}

// Connect starts the subprocess (when one was configured) and the
// background reader. It is a no-op when already connected.
func (s *Stream) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.connected {
		return nil
	}

	if s.command != "" {
		cmd := exec.CommandContext(ctx, s.command, s.args...)

		stdin, err := cmd.StdinPipe()
		if err != nil {
			return fmt.Errorf("stdin pipe: %w", err)
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("stdout pipe: %w", err)
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return fmt.Errorf("stderr pipe: %w", err)
		}
		if err := cmd.Start(); err != nil {
			return fmt.Errorf("starting %q: %w", s.command, err)
		}

		s.cmd = cmd
		s.stdin = stdin
		s.stdout = stdout
		s.stderr = stderr
	}

	if s.stdin == nil || s.stdout == nil {
		return errors.New("stream transport has no pipes")
	}

	s.connected = true
	s.readerDone = make(chan struct{})
	go s.readLoop(s.stdout, s.readerDone)

	return nil
}

// Connected reports whether the background reader is still running.
func (s *Stream) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Send transmits a request and blocks until its response arrives, ctx
// expires, or the reader stops. Deadlines come from ctx alone.
func (s *Stream) Send(ctx context.Context, msg *protocol.Message) (*protocol.Message, error) {
	id := msg.IDString()
	if id == "" {
		return nil, errors.New("request carries no id")
	}

	s.mu.Lock()
	connected := s.connected
	s.mu.Unlock()
	if !connected {
		return nil, ErrNotConnected
	}

	ch := s.pending.add(id)
	if err := s.writeFrame(msg); err != nil {
		s.pending.remove(id)
		return nil, err
	}

	select {
	case <-ctx.Done():
		s.pending.remove(id)
		return nil, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		return res.msg, nil
	}
}

// Notify transmits a frame without waiting for a response.
func (s *Stream) Notify(_ context.Context, msg *protocol.Message) error {
	s.mu.Lock()
	connected := s.connected
	s.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	return s.writeFrame(msg)
}

// OnNotification registers the handler for server-initiated frames.
func (s *Stream) OnNotification(fn NotificationHandler) {
	s.handlerMu.Lock()
	s.onNotification = fn
	s.handlerMu.Unlock()
}

// OnClose registers the handler for unexpected disconnects.
func (s *Stream) OnClose(fn CloseHandler) {
	s.handlerMu.Lock()
	s.onClose = fn
	s.handlerMu.Unlock()
}

// Close shuts the transport down. For subprocess transports it closes
// stdin, waits for the reader to drain, and reaps the process.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.connected = false
	cmd := s.cmd
	stdin := s.stdin
	stdout := s.stdout
	done := s.readerDone
	s.mu.Unlock()

	// Closing stdin signals EOF; a conforming server exits and closes its
	// stdout, which stops the reader.
	if c, ok := stdin.(io.Closer); ok {
		_ = c.Close()
	}
	if cmd == nil {
		if c, ok := stdout.(io.Closer); ok {
			_ = c.Close()
		}
	}
	if done != nil {
		<-done
	}

	if cmd != nil {
		if cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		err := cmd.Wait()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil
		}
		return err
	}
	return nil
}

// Stderr returns the subprocess stderr reader, or nil for pipe-pair
// transports.
func (s *Stream) Stderr() io.Reader {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stderr
}

func (s *Stream) writeFrame(msg *protocol.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}
	data = append(data, '\n')

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.stdin.Write(data); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// readLoop is the sole resolver of the pending table. It parses each line,
// routes responses to their waiting Send, and hands everything else to the
// notification handler. Malformed lines are logged and skipped.
func (s *Stream) readLoop(r io.Reader, done chan struct{}) {
	defer close(done)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		msg, perr := protocol.Parse(line)
		if perr != nil {
			s.logger.Warn("skipping malformed frame", "err", perr)
			continue
		}

		if msg.IsResponse() {
			if !s.pending.resolve(msg.IDString(), msg) {
				s.logger.Debug("response with no waiting request", "id", msg.IDString())
			}
			continue
		}

		s.handlerMu.RLock()
		fn := s.onNotification
		s.handlerMu.RUnlock()
		if fn != nil {
			// Called on the read path so handlers see frames in stream
			// order. Slow handlers stall the reader; hand off long work.
			fn(msg)
		}
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}

	s.mu.Lock()
	wasClosed := s.closed
	s.connected = false
	s.mu.Unlock()

	// No response can arrive anymore.
	s.pending.failAll(fmt.Errorf("stream reader stopped: %w", err))

	if wasClosed {
		return
	}
	s.handlerMu.RLock()
	onClose := s.onClose
	s.handlerMu.RUnlock()
	if onClose != nil {
		onClose(err)
	}
}
