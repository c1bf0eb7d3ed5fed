// Package middleware provides HTTP middleware for the classmate API.
package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

// WorkerSecretHeader carries the shared secret of internal callers.
const WorkerSecretHeader = "X-Worker-Secret"

// RequireWorkerSecret rejects requests whose X-Worker-Secret header does
// not match secret. An empty secret rejects every request.
func RequireWorkerSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(WorkerSecretHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				slog.Warn("Rejected internal request", "path", r.URL.Path, "has_secret", got != "")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid worker secret"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
