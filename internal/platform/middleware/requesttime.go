package middleware

import (
	"net/http"
	"time"

	"garant/pkg/requestcontext"
)

// RequestTime captures the current time at the start of the request and
// stores it in the context. Every timestamp written during one transition
// (payment date, refund date, event timestamps) observes the same instant.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
