package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// rateLimiter is a fixed-window per-caller request counter. Callers are
// keyed by X-User-ID header, falling back to client IP. Windows reset
// lazily on the next request after expiry.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string]*bucket
}

type bucket struct {
	count   int
	resetAt time.Time
}

func newRateLimiter(requestsPerMinute int) *rateLimiter {
	return &rateLimiter{
		limit:   requestsPerMinute,
		window:  time.Minute,
		buckets: make(map[string]*bucket),
	}
}

// allow records one request for key and reports whether it is within the
// limit. It also prunes the occasional expired bucket to bound memory.
func (rl *rateLimiter) allow(key string, now time.Time) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok || now.After(b.resetAt) {
		b = &bucket{resetAt: now.Add(rl.window)}
		rl.buckets[key] = b
		rl.pruneLocked(now)
	}
	b.count++
	return b.count <= rl.limit
}

// pruneLocked drops expired buckets. Caller must hold the lock.
func (rl *rateLimiter) pruneLocked(now time.Time) {
	if len(rl.buckets) < 1024 {
		return
	}
	for key, b := range rl.buckets {
		if now.After(b.resetAt) {
			delete(rl.buckets, key)
		}
	}
}

// rateLimitMiddleware rejects callers over their per-minute budget.
func rateLimitMiddleware(requestsPerMinute int) gin.HandlerFunc {
	rl := newRateLimiter(requestsPerMinute)
	return func(c *gin.Context) {
		key := c.GetHeader("X-User-ID")
		if key == "" {
			key = c.ClientIP()
		}
		if !rl.allow(key, time.Now()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}
