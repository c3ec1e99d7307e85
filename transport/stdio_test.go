package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewStdio(t *testing.T) {
	t.Run("creates stdio transport with defaults", func(t *testing.T) {
		transport := NewStdio()

		if transport == nil {
			t.Fatal("expected transport to be created")
		}

		if transport.Addr() != "stdio" {
			t.Errorf("Addr() = %q, want %q", transport.Addr(), "stdio")
		}
	})

	t.Run("creates stdio transport with custom streams", func(t *testing.T) {
		in := &bytes.Buffer{}
		out := &bytes.Buffer{}
		errOut := &bytes.Buffer{}

		transport := NewStdio(
			WithStdin(in),
			WithStdout(out),
			WithStderr(errOut),
		)

		if transport.in != in {
			t.Error("expected custom stdin to be used")
		}
		if transport.out != out {
			t.Error("expected custom stdout to be used")
		}
		if transport.errOut != errOut {
			t.Error("expected custom stderr to be used")
		}
	})
}

func TestStdio_Serve(t *testing.T) {
	t.Run("processes single request", func(t *testing.T) {
		in := bytes.NewBufferString(`{"jsonrpc":"2.0","id":1,"method":"test/method"}` + "\n")
		out := &bytes.Buffer{}

		transport := NewStdio(
			WithStdin(in),
			WithStdout(out),
		)

		handler := MessageHandlerFunc(func(ctx context.Context, data []byte) []byte {
			if !strings.Contains(string(data), "test/method") {
				t.Errorf("handler received %q, want the request frame", data)
			}
			return []byte(`{"jsonrpc":"2.0","id":1,"result":"success"}`)
		})

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		// Serve will exit when stdin is exhausted
		_ = transport.Serve(ctx, handler)

		// Check output
		output := out.String()
		if !strings.Contains(output, `"result":"success"`) {
			t.Errorf("output = %q, expected to contain success result", output)
		}
		if !strings.HasSuffix(output, "\n") {
			t.Errorf("output = %q, expected trailing newline", output)
		}
	})

	t.Run("handles multiple requests", func(t *testing.T) {
		input := `{"jsonrpc":"2.0","id":1,"method":"method1"}` + "\n" +
			`{"jsonrpc":"2.0","id":2,"method":"method2"}` + "\n"
		in := bytes.NewBufferString(input)
		out := &bytes.Buffer{}

		transport := NewStdio(
			WithStdin(in),
			WithStdout(out),
		)

		callCount := 0
		handler := MessageHandlerFunc(func(ctx context.Context, data []byte) []byte {
			callCount++
			return data
		})

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		_ = transport.Serve(ctx, handler)

		if callCount != 2 {
			t.Errorf("handler called %d times, want 2", callCount)
		}
	})

	t.Run("passes malformed frames to the handler", func(t *testing.T) {
		in := bytes.NewBufferString("{invalid json}\n")
		out := &bytes.Buffer{}

		transport := NewStdio(
			WithStdin(in),
			WithStdout(out),
		)

		handler := MessageHandlerFunc(func(ctx context.Context, data []byte) []byte {
			if string(data) != "{invalid json}" {
				t.Errorf("handler received %q, want the raw frame", data)
			}
			return []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"parse error"}}`)
		})

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		_ = transport.Serve(ctx, handler)

		output := out.String()
		if !strings.Contains(output, `"error"`) {
			t.Errorf("expected error response, got %q", output)
		}
	})

	t.Run("skips blank lines", func(t *testing.T) {
		in := bytes.NewBufferString("\n   \n")
		out := &bytes.Buffer{}

		transport := NewStdio(
			WithStdin(in),
			WithStdout(out),
		)

		handler := MessageHandlerFunc(func(ctx context.Context, data []byte) []byte {
			t.Errorf("handler should not be called for blank lines, got %q", data)
			return nil
		})

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		_ = transport.Serve(ctx, handler)

		if out.Len() > 0 {
			t.Errorf("expected no output, got %q", out.String())
		}
	})

	t.Run("fails on oversized frames", func(t *testing.T) {
		in := bytes.NewBufferString(strings.Repeat("a", maxFrameBytes+1) + "\n")
		out := &bytes.Buffer{}

		transport := NewStdio(
			WithStdin(in),
			WithStdout(out),
		)

		handler := MessageHandlerFunc(func(ctx context.Context, data []byte) []byte {
			t.Error("handler should not be called for oversized frames")
			return nil
		})

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		err := transport.Serve(ctx, handler)
		if !errors.Is(err, bufio.ErrTooLong) {
			t.Errorf("Serve() err = %v, want bufio.ErrTooLong", err)
		}
	})

	t.Run("stops on context cancellation", func(t *testing.T) {
		// Use a reader that blocks forever
		in := &blockingReader{}
		out := &bytes.Buffer{}

		transport := NewStdio(
			WithStdin(in),
			WithStdout(out),
		)

		handler := MessageHandlerFunc(func(ctx context.Context, data []byte) []byte {
			return data
		})

		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- transport.Serve(ctx, handler)
		}()

		// Cancel after a short delay
		time.Sleep(10 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			if err != context.Canceled {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(100 * time.Millisecond):
			t.Error("Serve did not stop after context cancellation")
		}
	})

	t.Run("skips notifications (no response)", func(t *testing.T) {
		in := bytes.NewBufferString(`{"jsonrpc":"2.0","method":"notifications/test"}` + "\n")
		out := &bytes.Buffer{}

		transport := NewStdio(
			WithStdin(in),
			WithStdout(out),
		)

		handlerCalled := false
		handler := MessageHandlerFunc(func(ctx context.Context, data []byte) []byte {
			handlerCalled = true
			return nil
		})

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		_ = transport.Serve(ctx, handler)

		if !handlerCalled {
			t.Error("handler should be called for notifications")
		}

		// Notifications should not produce output
		if out.Len() > 0 {
			t.Errorf("expected no output for notification, got %q", out.String())
		}
	})
}

func TestStdio_SendNotification(t *testing.T) {
	out := &bytes.Buffer{}
	transport := NewStdio(WithStdout(out))

	if err := transport.SendNotification("notifications/progress", map[string]any{"progress": 0.5}); err != nil {
		t.Fatalf("SendNotification: %v", err)
	}

	var notif Notification
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &notif); err != nil {
		t.Fatalf("output is not a notification: %v", err)
	}
	if notif.JSONRPC != "2.0" {
		t.Errorf("jsonrpc = %q, want 2.0", notif.JSONRPC)
	}
	if notif.Method != "notifications/progress" {
		t.Errorf("method = %q, want notifications/progress", notif.Method)
	}
}

// blockingReader is a reader that blocks until context is done
type blockingReader struct{}

func (r *blockingReader) Read(p []byte) (n int, err error) {
	// Block forever (will be interrupted by context)
	select {}
}
