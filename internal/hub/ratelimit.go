package hub

import (
	"sync"
	"time"
)

// RateLimiter is a per-address sliding-window counter. State is process
// local and not persisted across restarts.
type RateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	now    func() time.Time
	states map[string]*rateState
}

type rateState struct {
	count       int
	windowStart time.Time
}

func NewRateLimiter(window time.Duration, max int) *RateLimiter {
	return newRateLimiterAt(window, max, time.Now)
}

func newRateLimiterAt(window time.Duration, max int, now func() time.Time) *RateLimiter {
	return &RateLimiter{
		window: window,
		max:    max,
		now:    now,
		states: make(map[string]*rateState),
	}
}

// Allow records one action for address and reports whether it is within the
// window budget. The first action of a window always passes.
func (l *RateLimiter) Allow(address string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	st, ok := l.states[address]
	if !ok || now.Sub(st.windowStart) > l.window {
		l.states[address] = &rateState{count: 1, windowStart: now}
		return true
	}
	if st.count < l.max {
		st.count++
		return true
	}
	return false
}
