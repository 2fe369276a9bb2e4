package controlplane

import (
	"net/http"
	"sync"
	"time"
)

// rateLimiter is a simple token bucket, mirroring the teacher's
// api/middleware/ratelimit.go shape. The control plane uses one
// process-wide bucket rather than the teacher's per-client variant,
// since admin traffic here is low-volume and internal rather than
// public-facing.
type rateLimiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64
	lastRefill time.Time
}

func newRateLimiter(rps int) *rateLimiter {
	if rps <= 0 {
		rps = 100
	}
	return &rateLimiter{
		tokens:     float64(rps),
		maxTokens:  float64(rps),
		refillRate: float64(rps),
		lastRefill: time.Now(),
	}
}

func (rl *rateLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.tokens += now.Sub(rl.lastRefill).Seconds() * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// rateLimit returns middleware enforcing rps requests per second across
// all callers.
func rateLimit(rps int) func(http.Handler) http.Handler {
	limiter := newRateLimiter(rps)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.allow() {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
