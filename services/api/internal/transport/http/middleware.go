package http

import (
	"context"
	"crypto/subtle"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	userHeader  = "X-User-ID"
	adminHeader = "X-Admin-Token"
)

// RequestLogger logs basic request details and latency.
func RequestLogger(next http.Handler, logger *log.Logger) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		logger.Printf(
			"request method=%s path=%s status=%d duration=%s user=%s",
			r.Method,
			r.URL.Path,
			rec.status,
			time.Since(start),
			r.Header.Get(userHeader),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

type userKey struct{}

// RequireUser reads the caller's id, set by the upstream auth proxy, into the
// request context.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(userHeader))
		if userID == "" {
			writeError(w, http.StatusUnauthorized, codeUserRequired, "X-User-ID header required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, userID)))
	})
}

func userFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userKey{}).(string)
	return userID
}

// RequireAdmin rejects requests without the configured admin token. An empty
// token disables the admin routes entirely.
func RequireAdmin(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(adminHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			writeError(w, http.StatusForbidden, codeForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}
