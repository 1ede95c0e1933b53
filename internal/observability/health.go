package observability

import (
	"context"
	"net/http"
)

// Pinger is satisfied by *sql.DB and by the Redis client adapter.
type Pinger interface {
	PingContext(ctx context.Context) error
}

func HealthLiveHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func HealthReadyHandler(deps ...Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, d := range deps {
			if err := d.PingContext(r.Context()); err != nil {
				GetLogger(r.Context()).Warn("readiness check failed")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("Dependency unreachable"))
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}
