package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"onboard/pkg/requestcontext"
)

const RequestIDHeader = "X-Request-ID"

// RequestContext stamps each request with an id and a fixed "now" so every
// audit entry written while serving it shares both.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := requestcontext.WithRequestID(r.Context(), id)
		ctx = requestcontext.WithTime(ctx, time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
