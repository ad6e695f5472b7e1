// Package ratelimit implements per-session and per-API-key request limiters
// backed by golang.org/x/time/rate's token-bucket algorithm.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter holds one token-bucket limiter per key, created lazily on first
// use and never evicted — acceptable for the operator plane's expected key
// cardinality (sessions and API keys, not per-request identifiers).
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// New returns a Limiter allowing rps requests/sec with the given burst per
// key.
func New(rps float64, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether a request for key may proceed right now.
func (l *Limiter) Allow(key string) bool {
	return l.get(key).Allow()
}

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

// InFlight tracks concurrently-running requests per key, used to cap
// simultaneous agent turns per session independent of the rate limiter
// above.
type InFlight struct {
	mu    sync.Mutex
	count map[string]int
	max   int
}

// NewInFlight returns an InFlight limiter allowing up to max concurrent
// holders per key.
func NewInFlight(max int) *InFlight {
	return &InFlight{count: make(map[string]int), max: max}
}

// Acquire attempts to reserve a slot for key, returning false if the key is
// already at its concurrency cap.
func (f *InFlight) Acquire(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.count[key] >= f.max {
		return false
	}
	f.count[key]++
	return true
}

// Release frees a previously-acquired slot for key.
func (f *InFlight) Release(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.count[key] > 0 {
		f.count[key]--
	}
}
