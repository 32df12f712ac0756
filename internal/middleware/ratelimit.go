package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/fratpos/pkg/errors"
	"github.com/charlesng35/fratpos/pkg/metrics"
	"github.com/charlesng35/fratpos/pkg/response"
)

// pruneEvery bounds how many new windows are opened between sweeps of expired ones.
const pruneEvery = 256

// RateLimiter counts requests per key in fixed windows. It lives in process
// memory, so limits apply per instance.
type RateLimiter struct {
	limit  int
	period time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*rateWindow
	opened  int
}

type rateWindow struct {
	count int
	ends  time.Time
}

// NewRateLimiter allows limit requests per key every period. A non-positive
// limit or period returns nil, which RateLimit treats as unlimited.
func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	if limit <= 0 || period <= 0 {
		return nil
	}
	return &RateLimiter{limit: limit, period: period, now: time.Now, windows: make(map[string]*rateWindow)}
}

// Allow records one request for key and reports how many remain in the
// current window and when it resets.
func (l *RateLimiter) Allow(key string) (remaining int, reset time.Duration, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, found := l.windows[key]
	if !found || !now.Before(w.ends) {
		l.sweep(now)
		w = &rateWindow{ends: now.Add(l.period)}
		l.windows[key] = w
	}
	w.count++
	return max(l.limit-w.count, 0), w.ends.Sub(now), w.count <= l.limit
}

func (l *RateLimiter) sweep(now time.Time) {
	l.opened++
	if l.opened < pruneEvery {
		return
	}
	l.opened = 0
	for key, w := range l.windows {
		if !now.Before(w.ends) {
			delete(l.windows, key)
		}
	}
}

// RateLimit rejects requests beyond the limiter's budget with 429, keyed by
// client IP and route.
func RateLimit(l *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}

		remaining, reset, ok := l.Allow(c.ClientIP() + " " + c.FullPath())
		seconds := strconv.Itoa(int(reset.Round(time.Second) / time.Second))
		c.Header("X-RateLimit-Limit", strconv.Itoa(l.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", seconds)
		if !ok {
			metrics.RateLimited.WithLabelValues(c.FullPath()).Inc()
			c.Header("Retry-After", seconds)
			response.Error(c, errors.ErrTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}
