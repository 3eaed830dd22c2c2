// Package ratelimit implements the per-API-key token bucket limiter of
// spec.md §4.4/§3: steady rate = max_requests_per_minute, refilled
// continuously, thread-safe per key. Grounded on hydroxycult-drylax's
// svc/lim/rate.go, which wraps golang.org/x/time/rate with exactly the
// formula this bucket needs: rate.NewLimiter(rate.Limit(capacity)/60.0,
// capacity).
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter holds one token bucket per configured API key.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// New returns an empty Limiter. Buckets are created lazily the first time
// a key is registered via Configure.
func New() *Limiter {
	return &Limiter{buckets: make(map[string]*rate.Limiter)}
}

// Configure creates (or replaces) the bucket for keyID with the given
// capacity (== max_requests_per_minute). Called once per key at startup
// when the API keys file is loaded.
func (l *Limiter) Configure(keyID string, capacity int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets[keyID] = rate.NewLimiter(rate.Limit(capacity)/60.0, capacity)
}

// Allow reports whether keyID may proceed, deducting one token on success.
// Keys with no configured bucket are rejected — admission is expected to
// have already turned away unknown keys before reaching the limiter.
func (l *Limiter) Allow(keyID string) bool {
	l.mu.Lock()
	b, ok := l.buckets[keyID]
	l.mu.Unlock()
	if !ok {
		return false
	}
	return b.Allow()
}
