package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/Rdemo143/RenTO/internal/transport"
)

// RateLimit limits requests per client IP. An unparsable window falls back
// to one minute.
func RateLimit(requests int, windowStr string) func(next http.Handler) http.Handler {
	window, err := time.ParseDuration(windowStr)
	if err != nil {
		window = time.Minute
	}

	return httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			transport.WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
		}),
	)
}
