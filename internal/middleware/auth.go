// Package middleware holds the HTTP middleware for the API surface.
package middleware

import (
	"crypto/sha256"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// APIKey validates the Authorization bearer token against the bcrypt
// hash of the service API key. Successful comparisons are memoized by
// token digest so only the first request of a client pays the bcrypt
// cost. An empty hash disables auth entirely for local setups.
func APIKey(apiKeyHash string) func(http.Handler) http.Handler {
	var (
		mu    sync.RWMutex
		known = make(map[[32]byte]struct{})
	)

	return func(next http.Handler) http.Handler {
		if apiKeyHash == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				unauthorized(w, "missing bearer token")
				return
			}

			digest := sha256.Sum256([]byte(token))
			mu.RLock()
			_, ok := known[digest]
			mu.RUnlock()

			if !ok {
				if err := bcrypt.CompareHashAndPassword([]byte(apiKeyHash), []byte(token)); err != nil {
					unauthorized(w, "invalid API key")
					return
				}
				mu.Lock()
				known[digest] = struct{}{}
				mu.Unlock()
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   message,
	})
}
