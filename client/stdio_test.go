package client_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"testing"
	"time"

	"github.com/rubyonai/mcpwire/client"
	"github.com/rubyonai/mcpwire/protocol"
)

// pipeServer wires a Stream transport to an in-process fake server and
// returns the transport plus the server's ends of both pipes.
func pipeServer(t *testing.T) (*client.Stream, *io.PipeReader, *io.PipeWriter) {
	t.Helper()

	clientIn, serverOut := io.Pipe()
	serverIn, clientOut := io.Pipe()

	tr := client.NewStream(clientIn, clientOut)
	t.Cleanup(func() {
		_ = tr.Close()
		_ = serverOut.Close()
		_ = serverIn.Close()
	})
	return tr, serverIn, serverOut
}

func TestStream_PipePair(t *testing.T) {
	t.Run("round trips a request", func(t *testing.T) {
		tr, serverIn, serverOut := pipeServer(t)

		go func() {
			scanner := bufio.NewScanner(serverIn)
			for scanner.Scan() {
				msg, perr := protocol.Parse(scanner.Bytes())
				if perr != nil || !msg.IsRequest() {
					continue
				}
				resp, _ := protocol.NewResult(msg.ID, map[string]string{"method": msg.Method})
				data, _ := json.Marshal(resp)
				_, _ = serverOut.Write(append(data, '\n'))
			}
		}()

		if err := tr.Connect(context.Background()); err != nil {
			t.Fatalf("connect failed: %v", err)
		}

		req, _ := protocol.NewRequest("test/echo", nil)
		resp, err := tr.Send(context.Background(), req)
		if err != nil {
			t.Fatalf("send failed: %v", err)
		}

		var result struct {
			Method string `json:"method"`
		}
		if err := resp.UnmarshalResult(&result); err != nil {
			t.Fatalf("unmarshal result: %v", err)
		}
		if result.Method != "test/echo" {
			t.Errorf("method = %q, want %q", result.Method, "test/echo")
		}
	})

	t.Run("skips malformed frames", func(t *testing.T) {
		tr, serverIn, serverOut := pipeServer(t)

		go func() {
			scanner := bufio.NewScanner(serverIn)
			for scanner.Scan() {
				msg, perr := protocol.Parse(scanner.Bytes())
				if perr != nil || !msg.IsRequest() {
					continue
				}
				// Garbage first, then the real response.
				_, _ = serverOut.Write([]byte("{not json}\n"))
				resp, _ := protocol.NewResult(msg.ID, "ok")
				data, _ := json.Marshal(resp)
				_, _ = serverOut.Write(append(data, '\n'))
			}
		}()

		if err := tr.Connect(context.Background()); err != nil {
			t.Fatalf("connect failed: %v", err)
		}

		req, _ := protocol.NewRequest("ping", nil)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if _, err := tr.Send(ctx, req); err != nil {
			t.Fatalf("send failed: %v", err)
		}
	})

	t.Run("dispatches server notifications", func(t *testing.T) {
		tr, _, serverOut := pipeServer(t)

		received := make(chan *protocol.Message, 1)
		tr.OnNotification(func(msg *protocol.Message) {
			received <- msg
		})

		if err := tr.Connect(context.Background()); err != nil {
			t.Fatalf("connect failed: %v", err)
		}

		notif, _ := protocol.NewNotification("notifications/progress", map[string]int{"progress": 50})
		data, _ := json.Marshal(notif)
		if _, err := serverOut.Write(append(data, '\n')); err != nil {
			t.Fatalf("server write failed: %v", err)
		}

		select {
		case msg := <-received:
			if msg.Method != "notifications/progress" {
				t.Errorf("method = %q, want notifications/progress", msg.Method)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("notification not dispatched")
		}
	})

	t.Run("delivers notifications in stream order", func(t *testing.T) {
		tr, _, serverOut := pipeServer(t)

		const count = 200
		var got []string
		done := make(chan struct{})
		tr.OnNotification(func(msg *protocol.Message) {
			got = append(got, msg.Method)
			if len(got) == count {
				close(done)
			}
		})

		if err := tr.Connect(context.Background()); err != nil {
			t.Fatalf("connect failed: %v", err)
		}

		go func() {
			for i := range count {
				notif, _ := protocol.NewNotification(fmt.Sprintf("notifications/seq/%d", i), nil)
				data, _ := json.Marshal(notif)
				if _, err := serverOut.Write(append(data, '\n')); err != nil {
					return
				}
			}
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("received %d of %d notifications", len(got), count)
		}
		for i, method := range got {
			if want := fmt.Sprintf("notifications/seq/%d", i); method != want {
				t.Fatalf("out of order at index %d: got %s want %s", i, method, want)
			}
		}
	})

	t.Run("fails in-flight requests when the stream ends", func(t *testing.T) {
		tr, serverIn, serverOut := pipeServer(t)

		closed := make(chan error, 1)
		tr.OnClose(func(err error) {
			closed <- err
		})

		if err := tr.Connect(context.Background()); err != nil {
			t.Fatalf("connect failed: %v", err)
		}

		// The server reads the request and hangs up without answering.
		go func() {
			scanner := bufio.NewScanner(serverIn)
			scanner.Scan()
			_ = serverOut.Close()
		}()

		req, _ := protocol.NewRequest("test/doomed", nil)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if _, err := tr.Send(ctx, req); err == nil {
			t.Fatal("expected send to fail when the stream ends")
		}

		select {
		case <-closed:
		case <-time.After(2 * time.Second):
			t.Fatal("close handler not invoked")
		}

		if tr.Connected() {
			t.Error("expected transport to report disconnected")
		}
	})

	t.Run("rejects send before connect", func(t *testing.T) {
		clientIn, _ := io.Pipe()
		_, clientOut := io.Pipe()
		tr := client.NewStream(clientIn, clientOut)

		req, _ := protocol.NewRequest("ping", nil)
		if _, err := tr.Send(context.Background(), req); err != client.ErrNotConnected {
			t.Errorf("err = %v, want ErrNotConnected", err)
		}
	})
}

func TestStdio_Subprocess(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	t.Run("echoed frames surface as server messages", func(t *testing.T) {
		tr := client.NewStdio("cat")

		received := make(chan *protocol.Message, 1)
		tr.OnNotification(func(msg *protocol.Message) {
			received <- msg
		})

		if err := tr.Connect(context.Background()); err != nil {
			t.Fatalf("connect failed: %v", err)
		}
		defer tr.Close()

		// cat reflects the notification byte for byte, so it comes back
		// as a server-initiated frame.
		notif, _ := protocol.NewNotification("test/echoed", nil)
		if err := tr.Notify(context.Background(), notif); err != nil {
			t.Fatalf("notify failed: %v", err)
		}

		select {
		case msg := <-received:
			if msg.Method != "test/echoed" {
				t.Errorf("method = %q, want test/echoed", msg.Method)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("echoed frame not dispatched")
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		tr := client.NewStdio("cat")
		if err := tr.Connect(context.Background()); err != nil {
			t.Fatalf("connect failed: %v", err)
		}

		if err := tr.Close(); err != nil {
			t.Errorf("close returned error: %v", err)
		}
		if err := tr.Close(); err != nil {
			t.Errorf("second close returned error: %v", err)
		}
	})

	t.Run("reports spawn failures", func(t *testing.T) {
		tr := client.NewStdio("nonexistent-command-that-should-not-exist")
		if err := tr.Connect(context.Background()); err == nil {
			t.Fatal("expected error for nonexistent command")
		}
	})
}
