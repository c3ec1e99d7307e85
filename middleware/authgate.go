package middleware

import (
	"context"

	"github.com/rubyonai/mcpwire/protocol"
)

// TokenVerifier checks a bearer credential and resolves it to an identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// TokenVerifierFunc adapts a function to the TokenVerifier interface.
type TokenVerifierFunc func(ctx context.Context, token string) (*Identity, error)

func (f TokenVerifierFunc) Verify(ctx context.Context, token string) (*Identity, error) {
	return f(ctx, token)
}

// PermissionChecker decides whether an identity may invoke a method.
type PermissionChecker interface {
	CheckPermission(identity *Identity, method string) (bool, error)
}

// PermissionCheckerFunc adapts a function to the PermissionChecker interface.
type PermissionCheckerFunc func(identity *Identity, method string) (bool, error)

func (f PermissionCheckerFunc) CheckPermission(identity *Identity, method string) (bool, error) {
	return f(identity, method)
}

// AuthGateOption configures the authorization gate.
type AuthGateOption func(*authGateConfig)

type authGateConfig struct {
	logger      Logger
	skipMethods map[string]bool
}

// WithAuthGateLogger sets the logger for gate decisions.
func WithAuthGateLogger(l Logger) AuthGateOption {
	return func(c *authGateConfig) {
		c.logger = l
	}
}

// WithAuthGateSkipMethods exempts methods from the gate. The initialize
// handshake and ping are always exempt.
func WithAuthGateSkipMethods(methods ...string) AuthGateOption {
	return func(c *authGateConfig) {
		for _, m := range methods {
			c.skipMethods[m] = true
		}
	}
}

// AuthGate returns middleware that admits a request only when the checker
// affirmatively allows it. The gate fails closed: a nil checker, a checker
// error, a checker panic, and a false verdict all deny. Denials are reported
// as protocol-level invalid request errors so the gate is indistinguishable
// from a malformed frame to a probing caller.
func AuthGate(verifier TokenVerifier, checker PermissionChecker, opts ...AuthGateOption) Middleware {
	cfg := &authGateConfig{
		skipMethods: map[string]bool{
			protocol.MethodInitialize: true,
			protocol.MethodPing:       true,
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			if cfg.skipMethods[req.Method] {
				return next(ctx, req)
			}

			identity := IdentityFromContext(ctx)
			if identity == nil && verifier != nil {
				token := bearerToken(ctx)
				if token != "" {
					id, err := verifier.Verify(ctx, token)
					if err == nil && id != nil {
						identity = id
						ctx = ContextWithIdentity(ctx, identity)
					}
				}
			}

			if !authorized(ctx, checker, identity, req.Method, cfg.logger) {
				if cfg.logger != nil {
					cfg.logger.Warn("authorization denied",
						Field{Key: "method", Value: req.Method},
					)
				}
				return nil, protocol.NewInvalidRequest("not authorized")
			}

			return next(ctx, req)
		}
	}
}

// authorized evaluates the checker, converting every failure mode into a
// denial. A panicking checker must not grant access.
func authorized(ctx context.Context, checker PermissionChecker, identity *Identity, method string, logger Logger) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if logger != nil {
				logger.Error("permission checker panicked",
					Field{Key: "method", Value: method},
					Field{Key: "panic", Value: r},
				)
			}
			ok = false
		}
	}()

	if checker == nil {
		return false
	}

	allowed, err := checker.CheckPermission(identity, method)
	if err != nil {
		if logger != nil {
			logger.Warn("permission check failed",
				Field{Key: "method", Value: method},
				Field{Key: "error", Value: err.Error()},
			)
		}
		return false
	}
	return allowed
}

// AllowAll is a PermissionChecker that admits every request. It exists for
// servers that gate on authentication alone.
func AllowAll() PermissionChecker {
	return PermissionCheckerFunc(func(*Identity, string) (bool, error) {
		return true, nil
	})
}

// RequireIdentity is a PermissionChecker that admits any authenticated
// identity and denies anonymous callers.
func RequireIdentity() PermissionChecker {
	return PermissionCheckerFunc(func(id *Identity, _ string) (bool, error) {
		return id != nil, nil
	})
}

func bearerToken(ctx context.Context) string {
	auth := protocol.GetRequestMeta(ctx, protocol.MetaAuthorization)
	if auth == "" {
		auth = protocol.GetRequestMeta(ctx, "authorization")
	}
	const prefix = "Bearer "
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}
