package transport

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig controls cross-origin access to the HTTP transport.
// Zero-valued fields fall back to the defaults noted below.
type CORSConfig struct {
	// AllowOrigins lists permitted origins; "*" alone permits any.
	AllowOrigins []string

	// AllowMethods defaults to GET, POST and OPTIONS.
	AllowMethods []string

	// AllowHeaders defaults to Content-Type, Authorization and
	// X-Request-ID.
	AllowHeaders []string

	// ExposeHeaders lists response headers scripts may read.
	ExposeHeaders []string

	// AllowCredentials permits cookies and authorization headers.
	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds; defaults to
	// one day.
	MaxAge int
}

// DefaultCORSConfig returns a permissive configuration meant for
// development setups.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:       86400,
	}
}

func (c *CORSConfig) applyDefaults() {
	if len(c.AllowMethods) == 0 {
		c.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	}
	if len(c.AllowHeaders) == 0 {
		c.AllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}
	if c.MaxAge == 0 {
		c.MaxAge = 86400
	}
}

// CORSHandler answers preflight requests and stamps CORS headers on the
// rest, then delegates to next. Requests from origins the config does
// not allow pass through without CORS headers; the browser enforces the
// denial.
func CORSHandler(config CORSConfig, next http.Handler) http.Handler {
	config.applyDefaults()

	wildcard := len(config.AllowOrigins) == 1 && config.AllowOrigins[0] == "*"
	allowed := make(map[string]bool, len(config.AllowOrigins))
	for _, origin := range config.AllowOrigins {
		allowed[origin] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		var grant string
		switch {
		case wildcard:
			grant = "*"
		case origin != "" && allowed[origin]:
			grant = origin
		}

		if grant != "" {
			w.Header().Set("Access-Control-Allow-Origin", grant)
			if config.AllowCredentials {
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", strings.Join(config.AllowMethods, ", "))
				w.Header().Set("Access-Control-Allow-Headers", strings.Join(config.AllowHeaders, ", "))
				if config.MaxAge > 0 {
					w.Header().Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if len(config.ExposeHeaders) > 0 {
				w.Header().Set("Access-Control-Expose-Headers", strings.Join(config.ExposeHeaders, ", "))
			}
		}

		next.ServeHTTP(w, r)
	})
}

// WithCORS applies the given CORS configuration to the HTTP transport.
func WithCORS(config CORSConfig) HTTPOption {
	return func(h *HTTP) {
		h.corsConfig = &config
	}
}

// WithDefaultCORS enables the permissive development configuration.
func WithDefaultCORS() HTTPOption {
	config := DefaultCORSConfig()
	return func(h *HTTP) {
		h.corsConfig = &config
	}
}
