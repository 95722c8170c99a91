package notify

import (
	"sync"
	"time"
)

// limiter is a sliding window rate limiter.
type limiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	now    func() time.Time
	sent   []time.Time
}

func newLimiter(max int, window time.Duration) *limiter {
	return &limiter{max: max, window: window, now: time.Now}
}

func (l *limiter) allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.prune(now)
	if len(l.sent) >= l.max {
		return false
	}
	l.sent = append(l.sent, now)
	return true
}

// inWindow reports how many sends currently count against the limit.
func (l *limiter) inWindow() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.sent)
}

func (l *limiter) prune(now time.Time) {
	cut := now.Add(-l.window)
	keep := l.sent[:0]
	for _, t := range l.sent {
		if t.After(cut) {
			keep = append(keep, t)
		}
	}
	l.sent = keep
}
