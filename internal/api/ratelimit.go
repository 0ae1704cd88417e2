package api

import (
	"math"
	"sync"
	"time"
)

// TokenBucket is a simple global rate limiter.
type TokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	ratePerS   float64
	burst      float64
	lastRefill time.Time
	disabled   bool
	now        func() time.Time
}

func NewTokenBucket(perMinute, burst int) *TokenBucket {
	if perMinute <= 0 {
		return &TokenBucket{disabled: true}
	}
	if burst <= 0 {
		burst = perMinute
	}
	return &TokenBucket{
		tokens:     float64(burst),
		ratePerS:   float64(perMinute) / 60.0,
		burst:      float64(burst),
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

func (t *TokenBucket) Allow() bool {
	if t == nil || t.disabled {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refillLocked()
	if t.tokens >= 1 {
		t.tokens -= 1
		return true
	}
	return false
}

// RetryAfter is how long until the next token, rounded up to whole seconds.
func (t *TokenBucket) RetryAfter() time.Duration {
	if t == nil || t.disabled {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.refillLocked()
	if t.tokens >= 1 || t.ratePerS <= 0 {
		return 0
	}
	secs := (1 - t.tokens) / t.ratePerS
	return time.Duration(math.Ceil(secs)) * time.Second
}

func (t *TokenBucket) refillLocked() {
	now := t.now()
	elapsed := now.Sub(t.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	t.tokens = math.Min(t.burst, t.tokens+elapsed*t.ratePerS)
	t.lastRefill = now
}
