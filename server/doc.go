// Package server holds the capability registries behind an MCP server:
// tools, resources, prompts and filesystem roots, plus the session
// state that server-initiated requests (sampling, roots listing) and
// resource subscriptions hang off.
//
// Most programs import the root mcpwire package, which re-exports the
// types here and adds the dispatcher and transports. Use this package
// directly when embedding the registries in your own serving loop.
//
// # Registration
//
// Everything registers through fluent builders rooted on Server:
//
//	srv := server.New(server.Info{
//	    Name:         "notes",
//	    Version:      "1.0.0",
//	    Capabilities: server.Capabilities{Tools: true, Resources: true},
//	})
//
//	type SearchInput struct {
//	    Query string `json:"query" jsonschema:"required"`
//	}
//
//	srv.Tool("search").
//	    Description("Search notes").
//	    Handler(func(ctx context.Context, input SearchInput) ([]string, error) {
//	        return search(ctx, input.Query)
//	    })
//
//	srv.Resource("notes/{id}").
//	    Name("note").
//	    Handler(func(ctx context.Context, uri string, params map[string]string) (*server.ResourceContent, error) {
//	        return load(ctx, params["id"])
//	    })
//
// Builders collect the first error instead of panicking; check Err()
// when registering from dynamic input. Registering a duplicate name
// reports ErrAlreadyExists.
//
// # Authorization
//
// An Authorizer installed with WithAuthorizer is consulted before every
// tool call, resource read, prompt get and root operation, and filters
// list results. Denials and authorizer panics both read as "no".
package server
