package middleware

import (
	"context"
	"net/http"
	"time"
)

// DefaultRequestTimeout is used when no timeout is configured.
const DefaultRequestTimeout = 30 * time.Second

// Timeout bounds how long a request may run. The request context is
// cancelled at the deadline and http.TimeoutHandler writes the 503 if
// the handler has not responded by then.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(next http.Handler) http.Handler {
		inner := http.TimeoutHandler(next, timeout, "Request Timeout")
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			inner.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
