package apitest

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const userKey ctxKey = "user"

// tokenVerifier maps a bearer token to a user id, or returns an error if the
// token is invalid or expired.
type tokenVerifier func(token string) (int64, error)

// bearerAuth is a middleware that enforces bearer-token authentication.
//
// Paths listed in public are passed through without a token. For every other
// request it reads "Authorization: Bearer <token>", verifies it and stores the
// resulting user id in the request context. Failures are answered with
// 401 and a JSON {"error": ...} body.
func bearerAuth(verify tokenVerifier, public ...string) func(http.Handler) http.Handler {
	open := make(map[string]bool, len(public))
	for _, p := range public {
		open[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if open[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusUnauthorized, "no token provided")
				return
			}
			userID, err := verify(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			ctx := context.WithValue(r.Context(), userKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// userIDFromContext extracts the authenticated user id from the request
// context. Returns 0 and false if not found.
func userIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userKey).(int64)
	return id, ok
}
