package migrate

import (
	"context"
	"sync"
	"time"
)

// Limiter is a sliding-window rate limiter gating submission starts so a run
// never exceeds the destination's request budget. Token accounting is safe
// for concurrent callers; the window slides on real timestamps rather than
// fixed intervals so bursts at interval boundaries cannot double the rate.
type Limiter struct {
	mu         sync.Mutex
	timestamps []time.Time
	limit      int
	window     time.Duration
	now        func() time.Time
}

// NewLimiter allows limit starts per window. limit <= 0 disables limiting.
func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{limit: limit, window: window, now: time.Now}
}

// Wait blocks until a submission slot is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.limit <= 0 {
		return nil
	}
	for {
		wait, ok := l.reserve()
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve takes a slot when the window has room, otherwise reports how long
// until the oldest timestamp leaves the window.
func (l *Limiter) reserve() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	i := 0
	for ; i < len(l.timestamps); i++ {
		if l.timestamps[i].After(cutoff) {
			break
		}
	}
	l.timestamps = l.timestamps[i:]

	if len(l.timestamps) < l.limit {
		l.timestamps = append(l.timestamps, now)
		return 0, true
	}
	return l.timestamps[0].Sub(cutoff), false
}
