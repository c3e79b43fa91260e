package security

import (
	"sync"
	"time"
)

// rateLimitWindow is the sliding-window length, deliberately not
// golang.org/x/time/rate's token-bucket limiter: a token bucket refills
// continuously and would not reproduce the exact "first N allowed, then
// denied until the window rolls over" behavior wanted here.
const rateLimitWindow = 60 * time.Second

type window struct {
	start time.Time
	count int
}

// rateLimiter tracks a sliding 60s message-count window per agent. It
// guards its own map so it is safe for concurrent use.
type rateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func newRateLimiter(now func() time.Time) *rateLimiter {
	return &rateLimiter{windows: make(map[string]*window), now: now}
}

// allow reports whether agentID may send another message under limit.
// The counter is incremented regardless of outcome; allowed iff the
// resulting count is within limit.
func (rl *rateLimiter) allow(agentID string, limit int) (allowed bool, count int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[agentID]
	if !ok || now.Sub(w.start) > rateLimitWindow {
		w = &window{start: now}
		rl.windows[agentID] = w
	}
	w.count++
	return w.count <= limit, w.count
}
