// Package middleware provides HTTP middleware for the chat panel API.
package middleware

import (
	"net/http"
	"strings"
)

// DefaultAllowedHeaders are the request headers the panel frontend sends.
var DefaultAllowedHeaders = []string{"Content-Type", "Authorization", "X-Chat-Panel-ID"}

// CORS returns middleware that handles CORS headers for the given origins.
// Passing no headers allows DefaultAllowedHeaders.
func CORS(allowedOrigins []string, allowedHeaders ...string) func(http.Handler) http.Handler {
	if len(allowedHeaders) == 0 {
		allowedHeaders = DefaultAllowedHeaders
	}
	headerList := strings.Join(allowedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			explicit := false
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					allowed = true
				}
				if o != "*" && o == origin {
					explicit = true
				}
			}

			if allowed && origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", headerList)
				w.Header().Add("Vary", "Origin")
				// Credentials only for explicit origins; a wildcard-echoed origin
				// with credentials enables CSRF.
				if explicit {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
