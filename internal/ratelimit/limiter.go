// Package ratelimit implements the sliding-window admission control applied to every
// request sent to a provider.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/darmiel/insurelink/internal/core"
)

const (
	minuteWindow = time.Minute
	hourWindow   = time.Hour
)

// Limiter tracks the send timestamps of the trailing hour.
// A request is admitted while fewer than RequestsPerMinute sends happened in the last
// minute and fewer than RequestsPerHour sends in the last hour.
type Limiter struct {
	policy core.RateLimitPolicy

	mu     sync.Mutex
	window []time.Time // ascending
}

func New(policy core.RateLimitPolicy) *Limiter {
	return &Limiter{
		policy: policy,
		window: make([]time.Time, 0),
	}
}

// Policy returns the policy the limiter enforces.
func (l *Limiter) Policy() core.RateLimitPolicy {
	return l.policy
}

// CanSend reports whether a request at now would be admitted. It does not mutate state.
func (l *Limiter) CanSend(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.admitLocked(now) == nil
}

// RecordSend appends now to the window and prunes entries older than one hour.
func (l *Limiter) RecordSend(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recordLocked(now)
}

// Acquire checks admission and records the send in one step.
// Every network attempt against a provider goes through Acquire, so concurrent callers
// can never both pass the check before either one is recorded.
func (l *Limiter) Acquire(now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(now)
	if err := l.admitLocked(now); err != nil {
		return err
	}
	l.recordLocked(now)
	return nil
}

// Usage returns the number of sends within the last minute and the last hour.
func (l *Limiter) Usage(now time.Time) (minute, hour int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.countLocked(now, minuteWindow), l.countLocked(now, hourWindow)
}

// Reset drops the whole send history.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.window = make([]time.Time, 0)
}

func (l *Limiter) admitLocked(now time.Time) error {
	if n := l.countLocked(now, minuteWindow); n >= l.policy.RequestsPerMinute {
		return &core.Error{
			Kind: core.KindRateLimitExceeded,
			Msg: fmt.Sprintf("%d requests within the last minute (limit %d), retry in %s",
				n, l.policy.RequestsPerMinute, l.retryAfterLocked(now, minuteWindow, l.policy.RequestsPerMinute)),
		}
	}
	if n := l.countLocked(now, hourWindow); n >= l.policy.RequestsPerHour {
		return &core.Error{
			Kind: core.KindRateLimitExceeded,
			Msg: fmt.Sprintf("%d requests within the last hour (limit %d), retry in %s",
				n, l.policy.RequestsPerHour, l.retryAfterLocked(now, hourWindow, l.policy.RequestsPerHour)),
		}
	}
	return nil
}

func (l *Limiter) recordLocked(now time.Time) {
	// keep the window sorted even if the clock handed us an older timestamp
	idx := len(l.window)
	for idx > 0 && l.window[idx-1].After(now) {
		idx--
	}
	l.window = append(l.window, time.Time{})
	copy(l.window[idx+1:], l.window[idx:])
	l.window[idx] = now

	l.pruneLocked(now)
}

func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-hourWindow)
	drop := 0
	for drop < len(l.window) && !l.window[drop].After(cutoff) {
		drop++
	}
	if drop > 0 {
		l.window = append(l.window[:0], l.window[drop:]...)
	}
}

// countLocked counts the sends in (now-d, now].
func (l *Limiter) countLocked(now time.Time, d time.Duration) int {
	cutoff := now.Add(-d)
	n := 0
	for i := len(l.window) - 1; i >= 0; i-- {
		if !l.window[i].After(cutoff) {
			break
		}
		if l.window[i].After(now) {
			continue
		}
		n++
	}
	return n
}

// retryAfterLocked returns how long it takes until one slot within d becomes free again.
func (l *Limiter) retryAfterLocked(now time.Time, d time.Duration, limit int) time.Duration {
	cutoff := now.Add(-d)
	inWindow := make([]time.Time, 0, limit)
	for _, ts := range l.window {
		if ts.After(cutoff) && !ts.After(now) {
			inWindow = append(inWindow, ts)
		}
	}
	if limit <= 0 || len(inWindow) < limit {
		return 0
	}
	oldest := inWindow[len(inWindow)-limit]
	return oldest.Add(d).Sub(now)
}
