package middleware

import "time"

// DefaultStack is the recommended production stack: panic recovery
// outermost, then request ID injection, then request logging.
func DefaultStack(logger Logger) []Middleware {
	return []Middleware{
		Recover(),
		RequestID(),
		Logging(logger),
	}
}

// DefaultStackWithTimeout is DefaultStack with a per-request deadline
// applied before logging so timed-out requests are still recorded.
func DefaultStackWithTimeout(logger Logger, timeout time.Duration) []Middleware {
	return []Middleware{
		Recover(),
		RequestID(),
		Timeout(timeout),
		Logging(logger),
	}
}
