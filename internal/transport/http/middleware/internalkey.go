package middleware

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// InternalKeyHeader carries the shared service key on internal routes.
const InternalKeyHeader = "X-Internal-Key"

// InternalKey returns middleware that gates internal routes on a shared
// service key. The configured value is a bcrypt hash, so a leaked config dump
// does not expose the key itself. An empty hash disables the routes entirely.
func InternalKey(keyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keyHash == "" {
				writeJSONError(w, http.StatusForbidden, "internal routes disabled")
				return
			}
			key := r.Header.Get(InternalKeyHeader)
			if key == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing internal key")
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)); err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid internal key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
