package server

import (
	"context"
	"errors"
	"testing"

	"github.com/rubyonai/mcpwire/protocol"
)

func TestPromptRegistration(t *testing.T) {
	srv := New(Info{Name: "prompts", Version: "0.1.0"})

	srv.Prompt("summarize").
		Description("Summarize text").
		Argument("text", "Content to summarize", true).
		Argument("tone", "Formal or casual", false).
		Handler(func(ctx context.Context, args map[string]string) (*PromptResult, error) {
			return &PromptResult{}, nil
		})

	prompts := srv.Prompts()
	if len(prompts) != 1 {
		t.Fatalf("registered %d prompts, want 1", len(prompts))
	}
	info := prompts[0]
	if info.Name != "summarize" || info.Description != "Summarize text" {
		t.Errorf("prompt info = %+v", info)
	}
	if len(info.Arguments) != 2 {
		t.Fatalf("arguments = %v", info.Arguments)
	}
	if info.Arguments[0].Name != "text" || !info.Arguments[0].Required {
		t.Errorf("first argument = %+v", info.Arguments[0])
	}
	if info.Arguments[1].Name != "tone" || info.Arguments[1].Required {
		t.Errorf("second argument = %+v", info.Arguments[1])
	}

	dup := srv.Prompt("summarize").Handler(func(ctx context.Context, args map[string]string) (*PromptResult, error) {
		return &PromptResult{}, nil
	})
	if !errors.Is(dup.Err(), ErrAlreadyExists) {
		t.Errorf("duplicate registration error = %v, want ErrAlreadyExists", dup.Err())
	}
}

func TestPromptGet(t *testing.T) {
	srv := New(Info{Name: "prompts", Version: "0.1.0"})

	srv.Prompt("greet").
		Argument("name", "Name to greet", true).
		Handler(func(ctx context.Context, args map[string]string) (*PromptResult, error) {
			return &PromptResult{
				Messages: []PromptMessage{
					{Role: "user", Content: TextContent{Type: "text", Text: "Hello, " + args["name"] + "!"}},
				},
			}, nil
		})

	prompt, ok := srv.GetPrompt("greet")
	if !ok {
		t.Fatal("prompt not registered")
	}

	result, err := prompt.Get(context.Background(), map[string]string{"name": "Ada"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(result.Messages) != 1 {
		t.Fatalf("messages = %v", result.Messages)
	}
	content, ok := result.Messages[0].Content.(TextContent)
	if !ok || content.Text != "Hello, Ada!" {
		t.Errorf("content = %#v", result.Messages[0].Content)
	}
}

func TestPromptGetRequiredArguments(t *testing.T) {
	srv := New(Info{Name: "prompts", Version: "0.1.0"})

	srv.Prompt("strict").
		Argument("path", "File path", true).
		Handler(func(ctx context.Context, args map[string]string) (*PromptResult, error) {
			return &PromptResult{}, nil
		})

	prompt, _ := srv.GetPrompt("strict")

	_, err := prompt.Get(context.Background(), nil)
	var pe *protocol.Error
	if !errors.As(err, &pe) || pe.Code != protocol.CodeInvalidParams {
		t.Errorf("missing argument error = %v, want code %d", err, protocol.CodeInvalidParams)
	}

	if _, err := prompt.Get(context.Background(), map[string]string{"path": "a.go"}); err != nil {
		t.Errorf("Get with argument: %v", err)
	}
}

func TestPromptGetHandlerError(t *testing.T) {
	srv := New(Info{Name: "prompts", Version: "0.1.0"})

	bad := errors.New("template broken")
	srv.Prompt("failing").
		Handler(func(ctx context.Context, args map[string]string) (*PromptResult, error) {
			return nil, bad
		})

	prompt, _ := srv.GetPrompt("failing")
	if _, err := prompt.Get(context.Background(), nil); !errors.Is(err, bad) {
		t.Errorf("Get error = %v, want %v", err, bad)
	}
}
