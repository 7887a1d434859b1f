package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	dErrors "relationd/pkg/domain-errors"
	"relationd/pkg/requestcontext"
)

// RequireToken guards mutating endpoints with an HS256 bearer token. With an
// empty signing key the middleware is a pass-through, which keeps local
// development and tests free of token plumbing.
func RequireToken(signingKey string) func(http.Handler) http.Handler {
	key := []byte(signingKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(key) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				writeUnauthorized(w, "bearer token required")
				return
			}

			parsed, err := jwt.Parse(raw, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrTokenUnverifiable
				}
				return key, nil
			})
			if err != nil || !parsed.Valid {
				writeUnauthorized(w, "invalid token")
				return
			}

			ctx := r.Context()
			if subject, err := parsed.Claims.GetSubject(); err == nil && subject != "" {
				ctx = requestcontext.WithSubject(ctx, subject)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.HTTPStatus(dErrors.New(dErrors.CodeUnauthorized, message)))
	_, _ = w.Write([]byte(`{"error":"unauthorized","message":"` + message + `"}`))
}
