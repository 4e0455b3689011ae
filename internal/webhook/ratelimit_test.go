package webhook

import (
	"fmt"
	"testing"
)

func TestRateLimiterBudget(t *testing.T) {
	rl := NewRateLimiter(3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("10.0.0.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("10.0.0.1") {
		t.Error("request over budget should be rejected")
	}
	if !rl.Allow("10.0.0.2") {
		t.Error("other sources have their own budget")
	}
}

func TestRateLimiterTrackingCap(t *testing.T) {
	rl := NewRateLimiter(1)

	// Flood with distinct sources past the cap; the map must not grow
	// unbounded and new sources must still get a verdict.
	for i := 0; i < maxTrackedSources*2; i++ {
		rl.Allow(fmt.Sprintf("198.51.100.%d", i))
	}
	if len(rl.entries) > maxTrackedSources {
		t.Errorf("tracked sources = %d, want <= %d", len(rl.entries), maxTrackedSources)
	}
	if !rl.Allow("203.0.113.1") {
		t.Error("fresh source should be allowed after eviction")
	}
}
