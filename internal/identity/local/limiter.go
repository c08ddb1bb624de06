package local

import (
	"sync"
	"time"
)

// limiter counts attempts per key in a sliding window. Used to answer
// too-many-requests for repeated credential failures and OTP requests.
// Rate limits are reported to the caller, never worked around.
type limiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	hits   map[string][]time.Time
	nowF   func() time.Time
}

func newLimiter(max int, window time.Duration) *limiter {
	return &limiter{
		max:    max,
		window: window,
		hits:   make(map[string][]time.Time),
		nowF:   func() time.Time { return time.Now().UTC() },
	}
}

// allow records an attempt for key and reports whether it is within the limit.
func (l *limiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.nowF()
	cutoff := now.Add(-l.window)
	kept := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false
	}
	l.hits[key] = append(kept, now)
	return true
}

// reset clears recorded attempts for key, e.g. after a successful login.
func (l *limiter) reset(key string) {
	l.mu.Lock()
	delete(l.hits, key)
	l.mu.Unlock()
}
