// Package retry holds the failed idempotent-safe operations of a provider and re-executes
// them with exponential backoff.
package retry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/darmiel/insurelink/internal/core"
)

// Policy controls how often and how fast entries are re-executed.
type Policy struct {
	// MaxAttempts is the number of failed re-executions after which an entry is
	// moved to the permanently failed list.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`

	BaseDelay time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay" json:"max_delay"`
}

var DefaultPolicy = Policy{
	MaxAttempts: 5,
	BaseDelay:   time.Second,
	MaxDelay:    5 * time.Minute,
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultPolicy.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultPolicy.MaxDelay
	}
	return p
}

// Backoff returns base * 2^attempts, capped at MaxDelay.
func (p Policy) Backoff(attempts int) time.Duration {
	p = p.withDefaults()
	d := p.BaseDelay
	for i := 0; i < attempts; i++ {
		d *= 2
		if d >= p.MaxDelay || d <= 0 {
			return p.MaxDelay
		}
	}
	return d
}

// Entry is a queued operation.
type Entry struct {
	ID          string              `json:"id"`
	Op          core.RetryOperation `json:"operation"`
	Attempts    int                 `json:"attempts"`
	EnqueuedAt  time.Time           `json:"enqueued_at"`
	NextAttempt time.Time           `json:"next_attempt"`
	LastError   string              `json:"last_error,omitempty"`
	ErrorKind   core.ErrorKind      `json:"error_kind,omitempty"`
}

// Report is the outcome of a drain.
type Report struct {
	ProviderID        string  `json:"provider_id"`
	Succeeded         int     `json:"succeeded"`
	Rescheduled       int     `json:"rescheduled"`
	Skipped           int     `json:"skipped"`
	PermanentlyFailed []Entry `json:"permanently_failed"`
}

// Executor re-executes an operation.
type Executor func(ctx context.Context, op core.RetryOperation) error

// Queue is the retry queue of a single provider.
type Queue struct {
	provider string
	policy   Policy
	now      func() time.Time

	mu       sync.Mutex
	pending  []*Entry
	failed   []Entry
	draining bool
}

func New(provider string, policy Policy) *Queue {
	return &Queue{
		provider: provider,
		policy:   policy.withDefaults(),
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (q *Queue) SetClock(now func() time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.now = now
}

// Enqueue appends op unless an entry for the same logical action is already pending.
// It reports whether a new entry was created.
func (q *Queue) Enqueue(op core.RetryOperation, cause error) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := op.Key()
	for _, e := range q.pending {
		if e.Op.Key() == key {
			if op.Credentials != nil {
				e.Op.Credentials = op.Credentials
			}
			return false
		}
	}

	now := q.now()
	entry := &Entry{
		ID:          uuid.NewString(),
		Op:          op,
		EnqueuedAt:  now,
		NextAttempt: now.Add(q.policy.Backoff(0)),
	}
	if cause != nil {
		entry.LastError = cause.Error()
		entry.ErrorKind = core.KindOf(cause)
	}
	q.pending = append(q.pending, entry)
	return true
}

// Drain re-executes pending entries in FIFO order. Without force, only entries whose
// backoff elapsed are executed. Concurrent drains of the same queue are skipped.
func (q *Queue) Drain(ctx context.Context, exec Executor, force bool) Report {
	report := Report{ProviderID: q.provider, PermanentlyFailed: []Entry{}}

	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return report
	}
	q.draining = true
	now := q.now()
	var due []*Entry
	for _, e := range q.pending {
		if force || !now.Before(e.NextAttempt) {
			due = append(due, e)
		}
	}
	report.Skipped = len(q.pending) - len(due)
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}()

	for _, e := range due {
		if ctx.Err() != nil {
			report.Skipped++
			continue
		}

		err := exec(ctx, e.Op)

		q.mu.Lock()
		switch {
		case err == nil:
			q.remove(e)
			report.Succeeded++
		case ctx.Err() != nil:
			// the caller went away, the entry stays as it was
			report.Skipped++
		default:
			e.Attempts++
			e.LastError = err.Error()
			e.ErrorKind = core.KindOf(err)
			if !retryable(err) || e.Attempts >= q.policy.MaxAttempts {
				q.remove(e)
				q.failed = append(q.failed, *e)
				report.PermanentlyFailed = append(report.PermanentlyFailed, *e)
			} else {
				e.NextAttempt = q.now().Add(q.policy.Backoff(e.Attempts))
				report.Rescheduled++
			}
		}
		q.mu.Unlock()
	}
	return report
}

// remove drops e from the pending list. The caller must hold mu.
func (q *Queue) remove(e *Entry) {
	for i, p := range q.pending {
		if p == e {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

// retryable reports whether executing the operation again can change the outcome.
func retryable(err error) bool {
	switch core.KindOf(err) {
	case core.KindInvalidClaim, core.KindInvalidResponse, core.KindInvalidCredentials,
		core.KindProviderNotFound, core.KindInvalidProviderConfig:
		return false
	}
	return true
}

// Pending returns copies of the queued entries in FIFO order.
func (q *Queue) Pending() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, 0, len(q.pending))
	for _, e := range q.pending {
		out = append(out, *e)
	}
	return out
}

// Failed returns the permanently failed entries.
func (q *Queue) Failed() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Entry{}, q.failed...)
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Purge drops every pending and failed entry.
func (q *Queue) Purge() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
	q.failed = nil
}
