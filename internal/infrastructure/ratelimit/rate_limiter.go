package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const ActionSendMessage = "send_message"

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per user and action.
type RateLimiter struct {
	buckets map[string]*bucket
	limits  map[string]rate.Limit
	bursts  map[string]int
	mutex   sync.Mutex
}

// NewRateLimiter allows perMinute sends per user, with bursts of the same size.
func NewRateLimiter(sendPerMinute int) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		limits:  make(map[string]rate.Limit),
		bursts:  make(map[string]int),
	}
	rl.SetLimit(ActionSendMessage, sendPerMinute, time.Minute)
	return rl
}

// SetLimit configures an action to allow n events per interval. n <= 0 disables limiting.
func (rl *RateLimiter) SetLimit(action string, n int, interval time.Duration) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	if n <= 0 {
		rl.limits[action] = rate.Inf
		rl.bursts[action] = 0
	} else {
		rl.limits[action] = rate.Every(interval / time.Duration(n))
		rl.bursts[action] = n
	}
	for key := range rl.buckets {
		delete(rl.buckets, key)
	}
}

// Allow checks if a user action is allowed and, when it is not, how long to wait.
func (rl *RateLimiter) Allow(userID, action string) (bool, time.Duration) {
	key := userID + ":" + action
	now := time.Now()

	rl.mutex.Lock()
	b, exists := rl.buckets[key]
	if !exists {
		limit, ok := rl.limits[action]
		if !ok {
			limit = rate.Every(3 * time.Second)
		}
		burst, ok := rl.bursts[action]
		if !ok {
			burst = 20
		}
		b = &bucket{limiter: rate.NewLimiter(limit, burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	rl.mutex.Unlock()

	reservation := b.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, 0
	}
	delay := reservation.DelayFrom(now)
	if delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Cleanup removes buckets that have not been used for maxIdle.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > maxIdle {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanupRoutine runs Cleanup periodically until ctx is done.
func (rl *RateLimiter) StartCleanupRoutine(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rl.Cleanup(time.Hour)
			case <-ctx.Done():
				return
			}
		}
	}()
}
