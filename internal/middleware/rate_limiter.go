package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mroshb/couple_journal/pkg/errors"
)

// RateLimiter is a fixed-window in-memory limiter keyed by user id and by
// client IP.
type RateLimiter struct {
	userLimits map[string]*window
	ipLimits   map[string]*window
	mu         sync.Mutex

	userMaxRequests int
	ipMaxRequests   int
	window          time.Duration
	now             func() time.Time
}

type window struct {
	requests  int
	resetTime time.Time
}

func NewRateLimiter(userMaxRequests, ipMaxRequests int, windowSize time.Duration) *RateLimiter {
	return &RateLimiter{
		userLimits:      make(map[string]*window),
		ipLimits:        make(map[string]*window),
		userMaxRequests: userMaxRequests,
		ipMaxRequests:   ipMaxRequests,
		window:          windowSize,
		now:             time.Now,
	}
}

// Run evicts expired windows every few minutes until ctx ends.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// CheckUserLimit records a request for userID and reports whether it is allowed
func (rl *RateLimiter) CheckUserLimit(userID string) bool {
	return rl.check(rl.userLimits, userID, rl.userMaxRequests)
}

// CheckIPLimit records a request for ip and reports whether it is allowed
func (rl *RateLimiter) CheckIPLimit(ip string) bool {
	return rl.check(rl.ipLimits, ip, rl.ipMaxRequests)
}

func (rl *RateLimiter) check(limits map[string]*window, key string, max int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	limit, exists := limits[key]
	if !exists || now.After(limit.resetTime) {
		limits[key] = &window{requests: 1, resetTime: now.Add(rl.window)}
		return true
	}

	if limit.requests >= max {
		return false
	}
	limit.requests++
	return true
}

// GetUserRemaining returns remaining requests for user
func (rl *RateLimiter) GetUserRemaining(userID string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limit, exists := rl.userLimits[userID]
	if !exists || rl.now().After(limit.resetTime) {
		return rl.userMaxRequests
	}

	remaining := rl.userMaxRequests - limit.requests
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, limit := range rl.userLimits {
		if now.After(limit.resetTime) {
			delete(rl.userLimits, key)
		}
	}
	for key, limit := range rl.ipLimits {
		if now.After(limit.resetTime) {
			delete(rl.ipLimits, key)
		}
	}
}

// Reset clears all rate limits
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.userLimits = make(map[string]*window)
	rl.ipLimits = make(map[string]*window)
}

// Limit rejects requests over either budget with 429. It must run after
// JWTAuth so the user id is known.
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.CheckIPLimit(c.ClientIP()) || !rl.CheckUserLimit(UserID(c)) {
			c.Header("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			AbortWithError(c, http.StatusTooManyRequests, errors.New(errors.ErrCodeRateLimitExceeded, "rate limit exceeded"))
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(rl.GetUserRemaining(UserID(c))))
		c.Next()
	}
}
