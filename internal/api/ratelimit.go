package api

import (
	"net/http"
	"time"

	"github.com/gopaljayanthi/argocd-ui-extension/internal/identity"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// RateLimiter implements a per-user token bucket.
// The key is the username only, not username:panel, so clients cannot
// bypass throttling by rotating panel IDs.
type RateLimiter struct {
	limiters *cache.Cache
	limit    rate.Limit
	burst    int
}

// NewRateLimiter creates a limiter allowing rps requests per second with the
// given burst. Idle buckets are evicted after ten minutes.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: cache.New(10*time.Minute, 5*time.Minute),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

// Allow checks if a request is allowed for the given key.
func (l *RateLimiter) Allow(key string) bool {
	if v, ok := l.limiters.Get(key); ok {
		l.limiters.SetDefault(key, v)
		return v.(*rate.Limiter).Allow()
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	if err := l.limiters.Add(key, lim, cache.DefaultExpiration); err != nil {
		// Lost the race with a concurrent request for the same key.
		if v, ok := l.limiters.Get(key); ok {
			lim = v.(*rate.Limiter)
		}
	}
	return lim.Allow()
}

// Middleware rejects requests over the caller's budget with 429.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(identity.UsernameFromContext(r.Context())) {
			Error(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
