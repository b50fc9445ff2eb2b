package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/render"
)

// sweepThreshold caps the number of tracked keys before expired entries are
// collected on the next check.
const sweepThreshold = 1024

type rateLimitEntry struct {
	count     int
	resetTime time.Time
}

// RateLimitResult reports the outcome of a single check together with the
// values exposed through the X-RateLimit-* headers.
type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// RateLimiter is a fixed-window request counter keyed by client identity.
// The table lives in process memory: when the service runs as several
// replicas each replica counts independently, so the effective limit is
// approximate. That is acceptable for abuse mitigation, which is all this
// limiter is for.
type RateLimiter struct {
	window  time.Duration
	max     int
	mu      sync.Mutex
	entries map[string]*rateLimitEntry
	nowFn   func() time.Time
}

// NewRateLimiter returns a limiter allowing max requests per key per window.
func NewRateLimiter(window time.Duration, max int) *RateLimiter {
	return &RateLimiter{
		window:  window,
		max:     max,
		entries: map[string]*rateLimitEntry{},
		nowFn:   time.Now,
	}
}

// Check counts one request for key and reports whether it is allowed
// within the current window.
func (rl *RateLimiter) Check(key string) RateLimitResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.nowFn()

	if len(rl.entries) > sweepThreshold {
		rl.sweep(now)
	}

	entry, found := rl.entries[key]
	if !found || !entry.resetTime.After(now) {
		entry = &rateLimitEntry{resetTime: now.Add(rl.window)}
		rl.entries[key] = entry
	}
	entry.count++

	remaining := rl.max - entry.count
	if remaining < 0 {
		remaining = 0
	}

	return RateLimitResult{
		Allowed:   entry.count <= rl.max,
		Limit:     rl.max,
		Remaining: remaining,
		Reset:     entry.resetTime,
	}
}

func (rl *RateLimiter) sweep(now time.Time) {
	for key, entry := range rl.entries {
		if !entry.resetTime.After(now) {
			delete(rl.entries, key)
		}
	}
}

// Handler gates requests through the limiter, keyed by client IP. The
// rate-limit headers are set on allowed and rejected responses alike.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result := rl.Check(ClientIP(r))

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("X-RateLimit-Reset", result.Reset.UTC().Format(http.TimeFormat))

		if !result.Allowed {
			render.Status(r, http.StatusTooManyRequests)
			render.JSON(w, r, map[string]string{"error": "Too many requests"})
			return
		}

		next.ServeHTTP(w, r)
	})
}
