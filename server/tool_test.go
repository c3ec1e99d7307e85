package server

import (
	"context"
	"errors"
	"testing"

	"github.com/rubyonai/mcpwire/protocol"
)

func TestToolBuilder_Registration(t *testing.T) {
	srv := New(Info{Name: "reg", Version: "0.1.0"})

	type input struct {
		Query string `json:"query"`
	}

	srv.Tool("search").
		Description("Search the index").
		Handler(func(ctx context.Context, in input) ([]string, error) {
			return nil, nil
		})

	// Context-free handlers register too.
	srv.Tool("plain").
		Handler(func(in input) (string, error) {
			return in.Query, nil
		})

	tools := srv.Tools()
	if len(tools) != 2 {
		t.Fatalf("registered %d tools, want 2", len(tools))
	}
	if tools[0].Name != "plain" && tools[1].Name != "plain" {
		t.Errorf("tools = %v", tools)
	}
	for _, info := range tools {
		if info.Name == "search" && info.Description != "Search the index" {
			t.Errorf("search description = %q", info.Description)
		}
	}
}

func TestToolBuilder_BadHandler(t *testing.T) {
	srv := New(Info{Name: "reg", Version: "0.1.0"})

	b := srv.Tool("broken").Handler(func(s string) string { return s })
	if b.Err() == nil {
		t.Error("builder accepted a handler with the wrong shape")
	}
	if _, ok := srv.GetTool("broken"); ok {
		t.Error("broken tool was registered anyway")
	}
}

func TestTool_Execute(t *testing.T) {
	srv := New(Info{Name: "exec", Version: "0.1.0"})

	type pair struct {
		A int `json:"a"`
		B int `json:"b"`
	}
	type sum struct {
		Sum int `json:"sum"`
	}

	boom := errors.New("backend down")

	srv.Tool("add").Handler(func(in pair) (sum, error) {
		return sum{Sum: in.A + in.B}, nil
	})
	srv.Tool("fail").Handler(func(ctx context.Context, in pair) (string, error) {
		return "", boom
	})

	t.Run("typed result", func(t *testing.T) {
		tool, _ := srv.GetTool("add")
		result, err := tool.Execute(context.Background(), []byte(`{"a":5,"b":3}`))
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		out, ok := result.(sum)
		if !ok {
			t.Fatalf("result type = %T", result)
		}
		if out.Sum != 8 {
			t.Errorf("Sum = %d, want 8", out.Sum)
		}
	})

	t.Run("absent arguments decode as empty object", func(t *testing.T) {
		tool, _ := srv.GetTool("add")
		result, err := tool.Execute(context.Background(), nil)
		if err != nil {
			t.Fatalf("Execute: %v", err)
		}
		if result.(sum).Sum != 0 {
			t.Errorf("Sum = %d, want 0", result.(sum).Sum)
		}
	})

	t.Run("handler error surfaces unwrapped", func(t *testing.T) {
		tool, _ := srv.GetTool("fail")
		_, err := tool.Execute(context.Background(), []byte(`{}`))
		if !errors.Is(err, boom) {
			t.Errorf("Execute error = %v, want %v", err, boom)
		}
	})

	t.Run("missing required field is an invalid params error", func(t *testing.T) {
		type labeled struct {
			Label string `json:"label" jsonschema:"required"`
		}
		srv.Tool("stamp").Handler(func(in labeled) (string, error) {
			return "stamped: " + in.Label, nil
		})

		tool, _ := srv.GetTool("stamp")
		_, err := tool.Execute(context.Background(), []byte(`{}`))
		if err == nil {
			t.Fatal("Execute accepted input missing a required field")
		}
		var pe *protocol.Error
		if !errors.As(err, &pe) || pe.Code != protocol.CodeInvalidParams {
			t.Errorf("Execute error = %v, want code %d", err, protocol.CodeInvalidParams)
		}
	})

	t.Run("undecodable input is an invalid params error", func(t *testing.T) {
		tool, _ := srv.GetTool("add")
		_, err := tool.Execute(context.Background(), []byte(`{"a":"not a number"}`))
		if err == nil {
			t.Fatal("Execute accepted undecodable input")
		}
		var pe *protocol.Error
		if !errors.As(err, &pe) || pe.Code != protocol.CodeInvalidParams {
			t.Errorf("Execute error = %v, want code %d", err, protocol.CodeInvalidParams)
		}
	})
}
