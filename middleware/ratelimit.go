package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Fetch triggers fan out to provider APIs, so the HTTP surface carries a
// per-client request budget. Limits are generous for a single-user API; they
// exist to stop runaway clients from hammering the orchestrators.
const (
	rateLimit  = 100
	rateWindow = time.Minute
)

type clientWindow struct {
	count   int
	resetAt time.Time
}

type ipLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientWindow
	swept   time.Time
}

// RateLimiter caps requests per client IP over a sliding window.
func RateLimiter() gin.HandlerFunc {
	limiter := &ipLimiter{clients: map[string]*clientWindow{}, swept: time.Now()}

	return func(c *gin.Context) {
		now := time.Now()

		limiter.mu.Lock()
		limiter.sweep(now)

		client, ok := limiter.clients[c.ClientIP()]
		if !ok || now.After(client.resetAt) {
			limiter.clients[c.ClientIP()] = &clientWindow{count: 1, resetAt: now.Add(rateWindow)}
			limiter.mu.Unlock()
			c.Next()
			return
		}

		if client.count >= rateLimit {
			retryAfter := client.resetAt.Sub(now).Seconds()
			limiter.mu.Unlock()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": retryAfter,
			})
			c.Abort()
			return
		}

		client.count++
		limiter.mu.Unlock()
		c.Next()
	}
}

// sweep drops expired windows. Runs at most once per window, piggybacked on
// request handling so no background goroutine is needed.
func (l *ipLimiter) sweep(now time.Time) {
	if now.Sub(l.swept) < rateWindow {
		return
	}
	for ip, client := range l.clients {
		if now.After(client.resetAt) {
			delete(l.clients, ip)
		}
	}
	l.swept = now
}
