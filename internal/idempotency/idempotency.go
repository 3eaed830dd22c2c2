// Package idempotency implements the bounded in-memory idempotency cache
// described in spec.md §4.3: a mapping from (principal, idempotency-key) to
// a frozen response, used to replay identical creates and reject
// conflicting reuse. Grounded on hydroxycult-drylax's svc/cache/lru.go,
// which wraps hashicorp/golang-lru/v2 with a mutex and a per-entry
// expiry — the same shape this cache needs to additionally satisfy the
// "at least 10 minutes" retention floor an LRU alone cannot express.
package idempotency

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MinEntries and MinRetention are the floors spec.md §3 requires of the
// idempotency cache.
const (
	MinEntries   = 1024
	MinRetention = 10 * time.Minute
)

// Outcome is the result of CheckOrReserve.
type Outcome int

const (
	// Fresh means no prior record exists; the caller must do the work and
	// call Store with the computed response.
	Fresh Outcome = iota
	// Replay means a prior record exists with a matching fingerprint; the
	// caller should return the stored response with status 200.
	Replay
	// Conflict means a prior record exists with a different fingerprint;
	// the caller should return 409.
	Conflict
)

type record struct {
	fingerprint string
	response    any
	storedAt    time.Time
}

// Cache is the bounded idempotency cache. It is safe for concurrent use.
type Cache struct {
	mu  sync.Mutex
	lru *lru.Cache[string, record]
}

// New creates a Cache with capacity at least MinEntries.
func New(capacity int) (*Cache, error) {
	if capacity < MinEntries {
		capacity = MinEntries
	}
	c, err := lru.New[string, record](capacity)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

func cacheKey(principal, key string) string {
	return principal + "\x00" + key
}

// CheckOrReserve looks up (principal, key). See Outcome for the three
// possible results; on Replay the stored response is returned alongside.
func (c *Cache) CheckOrReserve(principal, key, fingerprint string) (Outcome, any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.lru.Get(cacheKey(principal, key))
	if !ok || time.Since(rec.storedAt) > MinRetention {
		return Fresh, nil
	}
	if rec.fingerprint != fingerprint {
		return Conflict, nil
	}
	return Replay, rec.response
}

// Store records the response for (principal, key) once the create has
// completed, so later replays can be served without redoing the work.
func (c *Cache) Store(principal, key, fingerprint string, response any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(cacheKey(principal, key), record{
		fingerprint: fingerprint,
		response:    response,
		storedAt:    time.Now(),
	})
}
