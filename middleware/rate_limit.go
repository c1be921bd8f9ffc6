package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Safi-ullah-majid/Molecular-Complex-Analysis/pkg/logger"
)

// counters is one client's usage within the current window.
type counters struct {
	requests    int
	submissions int
}

// RateLimiter applies fixed-window counting per client IP with two
// budgets: an overall request budget, and a much smaller one for
// analysis submissions. A status poll is a map read; a submission
// spawns an optimization pipeline that runs for minutes, so the two
// must not share a budget.
type RateLimiter struct {
	mu          sync.Mutex
	clients     map[string]*counters
	windowStart time.Time
	requests    int // overall requests per window
	submissions int // analysis submissions per window
	window      time.Duration
}

// NewRateLimiter creates a limiter with the given per-window budgets.
func NewRateLimiter(requests, submissions int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		clients:     make(map[string]*counters),
		windowStart: time.Now(),
		requests:    requests,
		submissions: submissions,
		window:      window,
	}
}

// allow consumes one request (and one submission, when applicable)
// from the client's budgets. All counters reset together when the
// window rolls over.
func (l *RateLimiter) allow(clientIP string, submission bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.windowStart) > l.window {
		l.clients = make(map[string]*counters)
		l.windowStart = time.Now()
	}

	c := l.clients[clientIP]
	if c == nil {
		c = &counters{}
		l.clients[clientIP] = c
	}

	if c.requests >= l.requests {
		return false
	}
	if submission && c.submissions >= l.submissions {
		return false
	}
	c.requests++
	if submission {
		c.submissions++
	}
	return true
}

// isSubmission reports whether the request starts an analysis
// pipeline.
func isSubmission(c *gin.Context) bool {
	return c.Request.Method == http.MethodPost && strings.HasSuffix(c.Request.URL.Path, "/analyze")
}

// RateLimit shapes traffic per client IP: `requests` total requests
// and `submissions` analysis starts per window.
func RateLimit(requests, submissions int, window time.Duration) gin.HandlerFunc {
	limiter := NewRateLimiter(requests, submissions, window)

	return func(c *gin.Context) {
		submission := isSubmission(c)
		if !limiter.allow(c.ClientIP(), submission) {
			logger.WithContext(c.Request.Context()).Warn("rate limit exceeded",
				"client_ip", c.ClientIP(),
				"submission", submission,
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			return
		}

		c.Next()
	}
}
