package transport

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"sync"
)

// maxFrameBytes bounds a single newline-delimited frame on stdio.
const maxFrameBytes = 10 * 1024 * 1024

// Stdio implements MCP transport over stdin/stdout. Frames are
// newline-delimited JSON; stderr is left free for logging.
type Stdio struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	mu sync.Mutex
}

// StdioOption configures a Stdio transport.
type StdioOption func(*Stdio)

// WithStdin sets a custom stdin reader.
func WithStdin(r io.Reader) StdioOption {
	return func(s *Stdio) {
		s.in = r
	}
}

// WithStdout sets a custom stdout writer.
func WithStdout(w io.Writer) StdioOption {
	return func(s *Stdio) {
		s.out = w
	}
}

// WithStderr sets a custom stderr writer.
func WithStderr(w io.Writer) StdioOption {
	return func(s *Stdio) {
		s.errOut = w
	}
}

// NewStdio creates a new stdio transport.
func NewStdio(opts ...StdioOption) *Stdio {
	s := &Stdio{
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Addr returns the transport address.
func (s *Stdio) Addr() string {
	return "stdio"
}

// Serve starts processing frames from stdin. It returns nil on EOF.
func (s *Stdio) Serve(ctx context.Context, handler MessageHandler) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameBytes)

	// Channel for scanner results
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			scanErr <- err
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-scanErr:
			return err
		case line, ok := <-lines:
			if !ok {
				return nil // EOF
			}
			s.handleLine(ctx, handler, line)
		}
	}
}

// SendNotification sends a JSON-RPC notification to the client.
func (s *Stdio) SendNotification(method string, params any) error {
	data, err := marshalNotification(method, params)
	if err != nil {
		return err
	}
	return s.writeFrame(data)
}

// WriteFrame writes a raw frame to stdout, serialized with response writes.
func (s *Stdio) WriteFrame(data []byte) error {
	return s.writeFrame(data)
}

func (s *Stdio) handleLine(ctx context.Context, handler MessageHandler, line string) {
	if strings.TrimSpace(line) == "" {
		return
	}

	// Attach notification sender to context for progress reporting
	ctx = ContextWithNotificationSender(ctx, s)

	if resp := handler.HandleMessage(ctx, []byte(line)); resp != nil {
		_ = s.writeFrame(resp)
	}
}

func (s *Stdio) writeFrame(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.out.Write(data); err != nil {
		return err
	}
	_, err := s.out.Write([]byte("\n"))
	return err
}
