package protocol

import (
	"context"
	"maps"
)

type requestMetaKey struct{}

// RequestMeta carries transport-level metadata alongside a request,
// typically HTTP headers or connection facts that middleware and
// handlers may want to inspect.
type RequestMeta map[string]string

// Metadata keys stamped by the built-in transports.
const (
	MetaRemoteAddr    = "remoteAddr"
	MetaAuthorization = "Authorization"
	MetaSessionID     = "sessionID"
)

// ContextWithRequestMeta attaches metadata to the context.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext returns the attached metadata, or nil.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	meta, _ := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta
}

// GetRequestMeta returns one metadata value, or "" when absent.
func GetRequestMeta(ctx context.Context, key string) string {
	return RequestMetaFromContext(ctx)[key]
}

// SetRequestMeta returns a context whose metadata includes key=value.
// Existing metadata is copied, never mutated, so sibling contexts stay
// unaffected.
func SetRequestMeta(ctx context.Context, key, value string) context.Context {
	existing := RequestMetaFromContext(ctx)
	meta := make(RequestMeta, len(existing)+1)
	maps.Copy(meta, existing)
	meta[key] = value
	return ContextWithRequestMeta(ctx, meta)
}
