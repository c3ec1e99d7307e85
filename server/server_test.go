package server

import (
	"context"
	"errors"
	"testing"
)

func TestNewServer(t *testing.T) {
	t.Run("creates server with info", func(t *testing.T) {
		srv := New(Info{
			Name:    "test-server",
			Version: "1.0.0",
		})

		if srv == nil {
			t.Fatal("expected server to be created")
		}

		info := srv.Info()
		if info.Name != "test-server" {
			t.Errorf("Name = %q, want %q", info.Name, "test-server")
		}
		if info.Version != "1.0.0" {
			t.Errorf("Version = %q, want %q", info.Version, "1.0.0")
		}
	})

	t.Run("creates server with capabilities", func(t *testing.T) {
		srv := New(Info{
			Name:    "test-server",
			Version: "1.0.0",
			Capabilities: Capabilities{
				Tools:     true,
				Resources: true,
				Prompts:   true,
			},
		})

		caps := srv.Info().Capabilities
		if !caps.Tools {
			t.Error("expected Tools capability to be true")
		}
		if !caps.Resources {
			t.Error("expected Resources capability to be true")
		}
		if !caps.Prompts {
			t.Error("expected Prompts capability to be true")
		}
	})

	t.Run("applies functional options", func(t *testing.T) {
		called := false
		opt := func(s *Server) {
			called = true
		}

		New(Info{Name: "test", Version: "1.0.0"}, opt)

		if !called {
			t.Error("expected option to be called")
		}
	})
}

func TestServer_Tool(t *testing.T) {
	t.Run("returns tool builder", func(t *testing.T) {
		srv := New(Info{Name: "test", Version: "1.0.0"})

		builder := srv.Tool("search")

		if builder == nil {
			t.Fatal("expected builder to be created")
		}
	})

	t.Run("registers tool with server", func(t *testing.T) {
		srv := New(Info{Name: "test", Version: "1.0.0"})

		type SearchInput struct {
			Query string `json:"query"`
		}

		srv.Tool("search").
			Description("Search for items").
			Handler(func(input SearchInput) (string, error) {
				return "result", nil
			})

		tools := srv.Tools()
		if len(tools) != 1 {
			t.Fatalf("expected 1 tool, got %d", len(tools))
		}

		if tools[0].Name != "search" {
			t.Errorf("tool name = %q, want %q", tools[0].Name, "search")
		}
		if tools[0].Description != "Search for items" {
			t.Errorf("tool description = %q, want %q", tools[0].Description, "Search for items")
		}
	})
}

func TestServer_Middleware(t *testing.T) {
	t.Run("registers middleware", func(t *testing.T) {
		srv := New(Info{Name: "test", Version: "1.0.0"})

		middleware := func(next HandlerFunc) HandlerFunc {
			return next
		}

		srv.Use(middleware)

		if len(srv.middleware) != 1 {
			t.Errorf("expected 1 middleware, got %d", len(srv.middleware))
		}
	})

	t.Run("registers multiple middleware", func(t *testing.T) {
		srv := New(Info{Name: "test", Version: "1.0.0"})

		m1 := func(next HandlerFunc) HandlerFunc { return next }
		m2 := func(next HandlerFunc) HandlerFunc { return next }

		srv.Use(m1, m2)

		if len(srv.middleware) != 2 {
			t.Errorf("expected 2 middleware, got %d", len(srv.middleware))
		}
	})
}

func TestServer_Manifest(t *testing.T) {
	srv := New(Info{
		Name:    "manifest-test",
		Version: "2.0.0",
		Capabilities: Capabilities{
			Tools: true,
		},
	})

	manifest := srv.Manifest()

	if manifest.Name != "manifest-test" {
		t.Errorf("Name = %q, want %q", manifest.Name, "manifest-test")
	}
	if manifest.Version != "2.0.0" {
		t.Errorf("Version = %q, want %q", manifest.Version, "2.0.0")
	}
	if manifest.ProtocolVersion == "" {
		t.Error("expected ProtocolVersion to be set")
	}
	if !manifest.Capabilities.Tools {
		t.Error("expected Tools capability to be true")
	}
}

func TestServer_DuplicateRegistration(t *testing.T) {
	type input struct {
		Query string `json:"query"`
	}

	t.Run("second tool registration fails and keeps the original", func(t *testing.T) {
		srv := New(Info{Name: "test", Version: "1.0.0"})

		first := srv.Tool("search").
			Description("original").
			Handler(func(in input) (string, error) { return "first", nil })
		if first.Err() != nil {
			t.Fatalf("unexpected error: %v", first.Err())
		}

		second := srv.Tool("search").
			Description("replacement").
			Handler(func(in input) (string, error) { return "second", nil })
		if !errors.Is(second.Err(), ErrAlreadyExists) {
			t.Fatalf("Err() = %v, want ErrAlreadyExists", second.Err())
		}

		tools := srv.Tools()
		if len(tools) != 1 {
			t.Fatalf("expected 1 tool, got %d", len(tools))
		}
		if tools[0].Description != "original" {
			t.Errorf("Description = %q, want %q", tools[0].Description, "original")
		}
	})

	t.Run("second resource registration fails", func(t *testing.T) {
		srv := New(Info{Name: "test", Version: "1.0.0"})
		handler := func(ctx context.Context, uri string, params map[string]string) (*ResourceContent, error) {
			return &ResourceContent{URI: uri}, nil
		}

		if b := srv.Resource("config://app").Handler(handler); b.Err() != nil {
			t.Fatalf("unexpected error: %v", b.Err())
		}
		b := srv.Resource("config://app").Handler(handler)
		if !errors.Is(b.Err(), ErrAlreadyExists) {
			t.Fatalf("Err() = %v, want ErrAlreadyExists", b.Err())
		}
	})

	t.Run("second prompt registration fails", func(t *testing.T) {
		srv := New(Info{Name: "test", Version: "1.0.0"})
		handler := func(ctx context.Context, args map[string]string) (*PromptResult, error) {
			return &PromptResult{}, nil
		}

		if b := srv.Prompt("greet").Handler(handler); b.Err() != nil {
			t.Fatalf("unexpected error: %v", b.Err())
		}
		b := srv.Prompt("greet").Handler(handler)
		if !errors.Is(b.Err(), ErrAlreadyExists) {
			t.Fatalf("Err() = %v, want ErrAlreadyExists", b.Err())
		}
	})
}

func TestServer_Unregister(t *testing.T) {
	type input struct {
		Query string `json:"query"`
	}

	srv := New(Info{Name: "test", Version: "1.0.0"})
	srv.Tool("search").Handler(func(in input) (string, error) { return "", nil })
	srv.Resource("config://app").Handler(func(ctx context.Context, uri string, params map[string]string) (*ResourceContent, error) {
		return &ResourceContent{URI: uri}, nil
	})
	srv.Prompt("greet").Handler(func(ctx context.Context, args map[string]string) (*PromptResult, error) {
		return &PromptResult{}, nil
	})

	if !srv.UnregisterTool("search") {
		t.Error("UnregisterTool = false, want true")
	}
	if srv.UnregisterTool("search") {
		t.Error("second UnregisterTool = true, want false")
	}
	if _, ok := srv.GetTool("search"); ok {
		t.Error("tool still present after unregister")
	}

	if !srv.UnregisterResource("config://app") {
		t.Error("UnregisterResource = false, want true")
	}
	if srv.UnregisterResource("config://app") {
		t.Error("second UnregisterResource = true, want false")
	}
	if len(srv.Resources()) != 0 {
		t.Errorf("expected 0 resources, got %d", len(srv.Resources()))
	}

	if !srv.UnregisterPrompt("greet") {
		t.Error("UnregisterPrompt = false, want true")
	}
	if srv.UnregisterPrompt("greet") {
		t.Error("second UnregisterPrompt = true, want false")
	}
}

func TestServer_ListOrdering(t *testing.T) {
	type input struct {
		Query string `json:"query"`
	}

	t.Run("tools are listed by name", func(t *testing.T) {
		srv := New(Info{Name: "test", Version: "1.0.0"})
		for _, name := range []string{"zeta", "alpha", "mid"} {
			srv.Tool(name).Handler(func(in input) (string, error) { return "", nil })
		}

		tools := srv.Tools()
		want := []string{"alpha", "mid", "zeta"}
		for i, w := range want {
			if tools[i].Name != w {
				t.Errorf("tools[%d].Name = %q, want %q", i, tools[i].Name, w)
			}
		}
	})

	t.Run("resources are listed in registration order", func(t *testing.T) {
		srv := New(Info{Name: "test", Version: "1.0.0"})
		handler := func(ctx context.Context, uri string, params map[string]string) (*ResourceContent, error) {
			return &ResourceContent{URI: uri}, nil
		}
		templates := []string{"z://last", "a://first", "m://mid"}
		for _, tpl := range templates {
			srv.Resource(tpl).Handler(handler)
		}

		resources := srv.Resources()
		if len(resources) != 3 {
			t.Fatalf("expected 3 resources, got %d", len(resources))
		}
		for i, tpl := range templates {
			if resources[i].URITemplate != tpl {
				t.Errorf("resources[%d].URITemplate = %q, want %q", i, resources[i].URITemplate, tpl)
			}
		}
	})
}

func TestServer_FindResourceForURI(t *testing.T) {
	newHandler := func(tag string) ResourceHandler {
		return func(ctx context.Context, uri string, params map[string]string) (*ResourceContent, error) {
			return &ResourceContent{URI: uri, Text: tag}, nil
		}
	}

	t.Run("exact template beats pattern", func(t *testing.T) {
		srv := New(Info{Name: "test", Version: "1.0.0"})
		srv.Resource("users://{id}").Handler(newHandler("pattern"))
		srv.Resource("users://admin").Handler(newHandler("exact"))

		r, ok := srv.FindResourceForURI("users://admin")
		if !ok {
			t.Fatal("resource not found")
		}
		content, err := r.Read(context.Background(), "users://admin")
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if content.Text != "exact" {
			t.Errorf("matched %q, want exact registration", content.Text)
		}
	})

	t.Run("first registered pattern wins", func(t *testing.T) {
		srv := New(Info{Name: "test", Version: "1.0.0"})
		srv.Resource("files://{name}").Handler(newHandler("first"))
		srv.Resource("files://{path}").Handler(newHandler("second"))

		r, ok := srv.FindResourceForURI("files://report")
		if !ok {
			t.Fatal("resource not found")
		}
		content, err := r.Read(context.Background(), "files://report")
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if content.Text != "first" {
			t.Errorf("matched %q, want first registration", content.Text)
		}
	})

	t.Run("no match", func(t *testing.T) {
		srv := New(Info{Name: "test", Version: "1.0.0"})
		srv.Resource("users://{id}").Handler(newHandler("pattern"))

		if _, ok := srv.FindResourceForURI("posts://1"); ok {
			t.Error("expected no match for unrelated scheme")
		}
	})
}

func TestServer_Authorized(t *testing.T) {
	ctx := context.Background()

	t.Run("nil authorizer allows everything", func(t *testing.T) {
		srv := New(Info{Name: "test", Version: "1.0.0"})
		if !srv.Authorized(ctx, KindTool, "anything") {
			t.Error("Authorized = false, want true")
		}
	})

	t.Run("authorizer verdict is honored", func(t *testing.T) {
		srv := New(
			Info{Name: "test", Version: "1.0.0"},
			WithAuthorizer(func(ctx context.Context, kind, key string) bool {
				return kind == KindTool && key == "allowed"
			}),
		)
		if !srv.Authorized(ctx, KindTool, "allowed") {
			t.Error("expected allowed tool to pass")
		}
		if srv.Authorized(ctx, KindTool, "denied") {
			t.Error("expected denied tool to be rejected")
		}
		if srv.Authorized(ctx, KindPrompt, "allowed") {
			t.Error("expected other kinds to be rejected")
		}
	})

	t.Run("panicking authorizer denies", func(t *testing.T) {
		srv := New(
			Info{Name: "test", Version: "1.0.0"},
			WithAuthorizer(func(ctx context.Context, kind, key string) bool {
				panic("boom")
			}),
		)
		if srv.Authorized(ctx, KindTool, "x") {
			t.Error("Authorized = true, want false on panic")
		}
	})
}

func TestServer_WithInstructions(t *testing.T) {
	t.Run("sets instructions via option", func(t *testing.T) {
		instructions := "Use the search tool to find documents. Always validate results."
		srv := New(
			Info{Name: "test", Version: "1.0.0"},
			WithInstructions(instructions),
		)

		if srv.Instructions() != instructions {
			t.Errorf("Instructions() = %q, want %q", srv.Instructions(), instructions)
		}
	})

	t.Run("returns empty when not set", func(t *testing.T) {
		srv := New(Info{Name: "test", Version: "1.0.0"})

		if srv.Instructions() != "" {
			t.Errorf("Instructions() = %q, want empty string", srv.Instructions())
		}
	})
}
