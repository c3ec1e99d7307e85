package client

import (
	"errors"
	"testing"

	"github.com/rubyonai/mcpwire/protocol"
)

func TestPendingTable(t *testing.T) {
	t.Run("resolves a waiting request", func(t *testing.T) {
		p := newPendingTable()
		ch := p.add(`"req-1"`)

		msg, _ := protocol.NewResult([]byte(`"req-1"`), map[string]string{"ok": "yes"})
		if !p.resolve(`"req-1"`, msg) {
			t.Fatal("expected resolve to find the waiter")
		}

		res := <-ch
		if res.err != nil {
			t.Fatalf("unexpected error: %v", res.err)
		}
		if res.msg != msg {
			t.Error("expected the resolved message to be delivered")
		}
	})

	t.Run("resolve without a waiter reports false", func(t *testing.T) {
		p := newPendingTable()

		msg, _ := protocol.NewResult([]byte(`"ghost"`), nil)
		if p.resolve(`"ghost"`, msg) {
			t.Error("expected resolve to report false for an unknown id")
		}
	})

	t.Run("removed entries ignore late responses", func(t *testing.T) {
		p := newPendingTable()
		ch := p.add(`"req-2"`)
		p.remove(`"req-2"`)

		msg, _ := protocol.NewResult([]byte(`"req-2"`), nil)
		if p.resolve(`"req-2"`, msg) {
			t.Error("expected the late response to resolve nothing")
		}

		select {
		case res := <-ch:
			t.Errorf("unexpected delivery after remove: %+v", res)
		default:
		}
	})

	t.Run("entries resolve exactly once", func(t *testing.T) {
		p := newPendingTable()
		ch := p.add(`"req-3"`)

		msg, _ := protocol.NewResult([]byte(`"req-3"`), nil)
		if !p.resolve(`"req-3"`, msg) {
			t.Fatal("first resolve should succeed")
		}
		if p.resolve(`"req-3"`, msg) {
			t.Error("second resolve should be a no-op")
		}

		<-ch
		select {
		case res := <-ch:
			t.Errorf("unexpected second delivery: %+v", res)
		default:
		}
	})

	t.Run("failAll ends every wait", func(t *testing.T) {
		p := newPendingTable()
		a := p.add(`"a"`)
		b := p.add(`"b"`)

		cause := errors.New("connection lost")
		p.failAll(cause)

		for _, ch := range []<-chan pendingResult{a, b} {
			res := <-ch
			if !errors.Is(res.err, cause) {
				t.Errorf("expected %v, got %v", cause, res.err)
			}
		}

		// The table is empty afterwards, so a late response resolves nothing.
		msg, _ := protocol.NewResult([]byte(`"a"`), nil)
		if p.resolve(`"a"`, msg) {
			t.Error("expected resolve after failAll to be a no-op")
		}
	})
}
