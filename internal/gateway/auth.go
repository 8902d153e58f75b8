package gateway

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

type contextKey string

const userKey contextKey = "gateway.user"

// authMiddleware validates the Bearer token using constant-time comparison.
func authMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if after, ok := strings.CutPrefix(auth, "Bearer "); ok {
				if constantTimeEqual(after, token) {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}

// requireUser extracts the calling user's identity from the X-User-ID
// header and stores it on the request context. Identity is asserted by the
// fronting proxy; verifying it is out of scope here.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := r.Header.Get("X-User-ID")
		if user == "" {
			http.Error(w, "missing X-User-ID header", http.StatusBadRequest)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	})
}

// userID returns the identity stored by requireUser.
func userID(r *http.Request) string {
	user, _ := r.Context().Value(userKey).(string)
	return user
}

// constantTimeEqual compares two strings in constant time.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
