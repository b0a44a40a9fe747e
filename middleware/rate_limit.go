package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter is a fixed-window per-client counter. Signing tokens are
// bearer credentials, so the signing API is limited per IP.
type RateLimiter struct {
	mu        sync.Mutex
	counts    map[string]int
	windowEnd time.Time
	rate      int
	window    time.Duration
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		counts:    make(map[string]int),
		windowEnd: time.Now().Add(window),
		rate:      rate,
		window:    window,
	}
}

// Allow records one request for the client and reports whether it fits
// inside the current window.
func (l *RateLimiter) Allow(client string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Now().After(l.windowEnd) {
		l.counts = make(map[string]int)
		l.windowEnd = time.Now().Add(l.window)
	}

	if l.counts[client] >= l.rate {
		return false
	}
	l.counts[client]++
	return true
}

// RateLimit middleware limits requests per IP
func RateLimit(rate int, window time.Duration) gin.HandlerFunc {
	limiter := NewRateLimiter(rate, window)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		if !limiter.Allow(clientIP) {
			slog.Warn("rate limit exceeded",
				"client_ip", clientIP,
				"request_id", GetRequestID(c),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			return
		}

		c.Next()
	}
}
