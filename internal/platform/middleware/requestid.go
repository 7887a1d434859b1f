package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"relationd/pkg/requestcontext"
)

// RequestID stamps every request with an ID (honoring an inbound
// X-Request-ID) and a request-scoped time, both readable through
// pkg/requestcontext.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		// One "now" per request keeps every timestamp written during the
		// request consistent.
		ctx = requestcontext.WithTime(ctx, time.Now())
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
