package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"garant/pkg/requestcontext"
)

const requestIDHeader = "X-Request-Id"

// RequestID propagates an inbound correlation id or mints a fresh one, and
// echoes it on the response so callers can reference failed operations.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)
		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
