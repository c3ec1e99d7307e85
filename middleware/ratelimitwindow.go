package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/rubyonai/mcpwire/protocol"
)

// MinuteWindowOption configures the per-minute rate limiter.
type MinuteWindowOption func(*minuteWindowConfig)

type minuteWindowConfig struct {
	keyFunc func(ctx context.Context, req *protocol.Request) string
	clock   func() time.Time
	logger  Logger
}

// WithMinuteWindowKeyFunc sets a function to extract the caller key.
func WithMinuteWindowKeyFunc(fn func(ctx context.Context, req *protocol.Request) string) MinuteWindowOption {
	return func(c *minuteWindowConfig) {
		c.keyFunc = fn
	}
}

// WithMinuteWindowClock sets the time source. Tests inject a fake clock to
// step across minute boundaries deterministically.
func WithMinuteWindowClock(now func() time.Time) MinuteWindowOption {
	return func(c *minuteWindowConfig) {
		c.clock = now
	}
}

// WithMinuteWindowLogger sets the logger for rejection events.
func WithMinuteWindowLogger(l Logger) MinuteWindowOption {
	return func(c *minuteWindowConfig) {
		c.logger = l
	}
}

// CallerKey identifies the caller of a request: the authenticated identity
// when one is present, the transport remote address otherwise. Callers that
// are neither authenticated nor addressable share one bucket.
func CallerKey(ctx context.Context, req *protocol.Request) string {
	if id := IdentityFromContext(ctx); id != nil && id.ID != "" {
		return id.ID
	}
	if addr := protocol.GetRequestMeta(ctx, protocol.MetaRemoteAddr); addr != "" {
		return addr
	}
	return "anonymous"
}

// RateLimitPerMinute returns middleware that admits at most limit requests
// per caller per clock minute. The window is fixed, not sliding: counters
// reset at every minute boundary, so a caller rejected at :59 is admitted
// again at :00. Rejections carry code -32003 and the seconds until the next
// window opens.
func RateLimitPerMinute(limit int, opts ...MinuteWindowOption) Middleware {
	cfg := &minuteWindowConfig{
		keyFunc: CallerKey,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	w := &minuteWindow{
		limit:  limit,
		counts: make(map[string]map[int64]int),
	}

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			key := cfg.keyFunc(ctx, req)
			now := cfg.clock()

			ok, retryAfter := w.allow(key, now)
			if !ok {
				if cfg.logger != nil {
					cfg.logger.Warn("rate limit exceeded",
						Field{Key: "method", Value: req.Method},
						Field{Key: "key", Value: key},
					)
				}
				return nil, protocol.NewRateLimited("rate limit exceeded").WithData(map[string]any{
					"retryAfterSeconds": int(retryAfter.Seconds()) + 1,
				})
			}

			return next(ctx, req)
		}
	}
}

// minuteWindow counts requests per (caller, minute bucket). Only the current
// bucket for a caller is retained; older buckets are purged on that caller's
// next request, so the map stays proportional to the active caller set.
type minuteWindow struct {
	mu     sync.Mutex
	limit  int
	counts map[string]map[int64]int
}

func (w *minuteWindow) allow(key string, now time.Time) (bool, time.Duration) {
	bucket := now.Unix() / 60

	w.mu.Lock()
	defer w.mu.Unlock()

	perKey := w.counts[key]
	if perKey == nil {
		perKey = make(map[int64]int, 1)
		w.counts[key] = perKey
	}
	for b := range perKey {
		if b != bucket {
			delete(perKey, b)
		}
	}

	if perKey[bucket] >= w.limit {
		nextWindow := time.Unix((bucket+1)*60, 0)
		return false, nextWindow.Sub(now)
	}

	perKey[bucket]++
	return true, 0
}
