package server

import "context"

// Entity kinds passed to an Authorizer and carried in error data.
const (
	KindTool     = "tool"
	KindResource = "resource"
	KindPrompt   = "prompt"
	KindRoot     = "root"
)

// Authorizer decides whether the caller in ctx may access the named
// entity. kind is one of KindTool, KindResource, KindPrompt or KindRoot;
// key is the tool, prompt or root name, or the resource URI template.
type Authorizer func(ctx context.Context, kind, key string) bool

// WithAuthorizer installs an access hook consulted before every tool call,
// resource read, prompt get and root operation, and used to filter list
// results. Entities the hook denies are invisible to the caller.
func WithAuthorizer(authz Authorizer) Option {
	return func(s *Server) {
		s.authorizer = authz
	}
}

// Authorized reports whether the caller in ctx may access the named
// entity. A server without an authorizer allows everything. A panicking
// authorizer denies.
func (s *Server) Authorized(ctx context.Context, kind, key string) (ok bool) {
	s.mu.RLock()
	authz := s.authorizer
	s.mu.RUnlock()

	if authz == nil {
		return true
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return authz(ctx, kind, key)
}
