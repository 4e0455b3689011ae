package webhook

import (
	"sync"
	"time"
)

const (
	// maxTrackedSources caps the number of tracked source keys so an
	// attacker rotating source addresses cannot exhaust memory.
	maxTrackedSources = 4096

	defaultWindow  = 60 * time.Second
	defaultMaxHits = 120
)

type sourceEntry struct {
	windowStart time.Time
	count       int
}

// RateLimiter bounds how often a single source may hit the public webhook
// endpoint. Fixed-window counting with a hard cap on tracked sources.
// Safe for concurrent use.
type RateLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	maxHits int
	entries map[string]*sourceEntry
}

// NewRateLimiter creates a webhook rate limiter. maxHits <= 0 selects the
// default budget.
func NewRateLimiter(maxHits int) *RateLimiter {
	if maxHits <= 0 {
		maxHits = defaultMaxHits
	}
	return &RateLimiter{
		window:  defaultWindow,
		maxHits: maxHits,
		entries: make(map[string]*sourceEntry),
	}
}

// Allow reports whether the source is within its budget, pruning stale
// entries and evicting arbitrary ones when the tracking cap is reached.
func (r *RateLimiter) Allow(source string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	if len(r.entries) >= maxTrackedSources {
		for k, e := range r.entries {
			if now.Sub(e.windowStart) >= r.window {
				delete(r.entries, k)
			}
		}
		for len(r.entries) >= maxTrackedSources {
			for k := range r.entries {
				delete(r.entries, k)
				break
			}
		}
	}

	e, ok := r.entries[source]
	if !ok || now.Sub(e.windowStart) >= r.window {
		r.entries[source] = &sourceEntry{windowStart: now, count: 1}
		return true
	}

	e.count++
	return e.count <= r.maxHits
}
