package middleware

import (
	"context"
	"strings"

	"github.com/rubyonai/mcpwire/protocol"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	// ID uniquely identifies the caller (user id, API key id).
	ID string
	// Name is a human-readable label.
	Name string
	// Metadata carries extra claims.
	Metadata map[string]any
}

type identityContextKey struct{}

// IdentityFromContext returns the authenticated identity, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey{}).(*Identity)
	return id
}

// ContextWithIdentity attaches an identity to the context.
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// Authenticator validates a request's credentials. A nil identity with
// a nil error means no usable credentials were found.
type Authenticator func(ctx context.Context, req *protocol.Request) (*Identity, error)

// AuthOption configures the authentication middleware.
type AuthOption func(*authConfig)

type authConfig struct {
	logger       Logger
	skipMethods  map[string]bool
	realm        string
	errorMessage string
}

// WithAuthLogger logs authentication outcomes.
func WithAuthLogger(l Logger) AuthOption {
	return func(c *authConfig) {
		c.logger = l
	}
}

// WithAuthSkipMethods exempts extra methods from authentication.
// initialize and ping are always exempt so the handshake can complete
// before credentials exist.
func WithAuthSkipMethods(methods ...string) AuthOption {
	return func(c *authConfig) {
		for _, m := range methods {
			c.skipMethods[m] = true
		}
	}
}

// WithAuthRealm sets the realm reported on failures.
func WithAuthRealm(realm string) AuthOption {
	return func(c *authConfig) {
		c.realm = realm
	}
}

// WithAuthErrorMessage overrides the failure message.
func WithAuthErrorMessage(msg string) AuthOption {
	return func(c *authConfig) {
		c.errorMessage = msg
	}
}

// Auth returns middleware that authenticates every request through the
// given authenticator and stores the resulting identity in the context.
// Requests without a valid identity are rejected.
func Auth(authenticator Authenticator, opts ...AuthOption) Middleware {
	cfg := &authConfig{
		skipMethods: map[string]bool{
			protocol.MethodInitialize: true,
			protocol.MethodPing:       true,
		},
		realm:        "mcp",
		errorMessage: "authentication required",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	deny := func(method, reason string) *protocol.Error {
		if cfg.logger != nil {
			cfg.logger.Warn("authentication failed",
				Field{Key: "method", Value: method},
				Field{Key: "reason", Value: reason},
			)
		}
		return &protocol.Error{
			Code:    protocol.CodeUnauthorized,
			Message: cfg.errorMessage,
		}
	}

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			if cfg.skipMethods[req.Method] {
				return next(ctx, req)
			}

			identity, err := authenticator(ctx, req)
			if err != nil {
				return nil, deny(req.Method, err.Error())
			}
			if identity == nil {
				return nil, deny(req.Method, "no identity")
			}

			if cfg.logger != nil {
				cfg.logger.Debug("authenticated",
					Field{Key: "method", Value: req.Method},
					Field{Key: "identity", Value: identity.ID},
				)
			}
			return next(ContextWithIdentity(ctx, identity), req)
		}
	}
}

// APIKeyAuthenticator reads an API key from request metadata under the
// given header name and resolves it through keyValidator. Transports
// are responsible for copying their headers into the request metadata.
func APIKeyAuthenticator(headerName string, keyValidator func(key string) *Identity) Authenticator {
	return func(ctx context.Context, req *protocol.Request) (*Identity, error) {
		key := protocol.GetRequestMeta(ctx, headerName)
		if key == "" {
			key = protocol.GetRequestMeta(ctx, strings.ToLower(headerName))
		}
		if key == "" {
			return nil, nil
		}
		return keyValidator(key), nil
	}
}

// BearerTokenAuthenticator reads an Authorization bearer token from
// request metadata and resolves it through tokenValidator.
func BearerTokenAuthenticator(tokenValidator func(token string) *Identity) Authenticator {
	return func(ctx context.Context, req *protocol.Request) (*Identity, error) {
		auth := protocol.GetRequestMeta(ctx, "Authorization")
		if auth == "" {
			auth = protocol.GetRequestMeta(ctx, "authorization")
		}
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			return nil, nil
		}
		return tokenValidator(token), nil
	}
}

// StaticAPIKeys builds a key validator from a fixed key -> identity map.
func StaticAPIKeys(keys map[string]*Identity) func(string) *Identity {
	return func(key string) *Identity {
		return keys[key]
	}
}

// StaticTokens builds a token validator from a fixed token -> identity map.
func StaticTokens(tokens map[string]*Identity) func(string) *Identity {
	return func(token string) *Identity {
		return tokens[token]
	}
}

// ChainAuthenticators tries each authenticator in order and returns the
// first identity found. An error from any authenticator stops the chain.
func ChainAuthenticators(authenticators ...Authenticator) Authenticator {
	return func(ctx context.Context, req *protocol.Request) (*Identity, error) {
		for _, auth := range authenticators {
			identity, err := auth(ctx, req)
			if err != nil {
				return nil, err
			}
			if identity != nil {
				return identity, nil
			}
		}
		return nil, nil
	}
}
