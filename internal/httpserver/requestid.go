package httpserver

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// requestIDHeader is the HTTP header carrying a request's correlation ID.
const requestIDHeader = "X-Request-ID"

// requestID is a middleware that injects a request ID into the context and
// response headers: the caller's own X-Request-ID is echoed back if
// present, otherwise a new UUID is generated. The /runs handler attaches
// the ID to the log line it writes when the store query fails.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		w.Header().Set(requestIDHeader, id)

		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestIDFromContext returns the request ID stashed by requestID, or ""
// if none is present.
func requestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
