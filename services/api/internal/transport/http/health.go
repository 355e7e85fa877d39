package http

import (
	"context"
	stdhttp "net/http"
	"time"
)

// Pinger checks a backing store, e.g. *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

const healthTimeout = 2 * time.Second

// HealthHandler reports liveness, and database reachability when db is set.
func HealthHandler(db Pinger) stdhttp.HandlerFunc {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				writeError(w, stdhttp.StatusServiceUnavailable, codeUnavailable, "database unreachable")
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(stdhttp.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
