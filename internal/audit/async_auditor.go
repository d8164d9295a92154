package audit

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/insurelink/internal/core"
)

const defaultAsyncBuffer = 1024

// AsyncAuditor forwards entries to another auditor from a background goroutine.
// Log never blocks: when the buffer is full the entry is dropped and counted.
type AsyncAuditor struct {
	next    core.Auditor
	entries chan core.AuditEntry
	dropped atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}
}

func NewAsyncAuditor(next core.Auditor, buffer int) *AsyncAuditor {
	if buffer <= 0 {
		buffer = defaultAsyncBuffer
	}
	a := &AsyncAuditor{
		next:    next,
		entries: make(chan core.AuditEntry, buffer),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncAuditor) run() {
	defer close(a.done)
	for entry := range a.entries {
		if err := a.next.Log(entry); err != nil {
			log.Warn().Err(err).Str("action", entry.Action).Msg("failed to write audit entry")
		}
	}
}

func (a *AsyncAuditor) Log(entry core.AuditEntry) (err error) {
	defer func() {
		// sending on a closed channel after Close
		if recover() != nil {
			a.dropped.Add(1)
		}
	}()
	select {
	case a.entries <- entry:
	default:
		a.dropped.Add(1)
	}
	return nil
}

// Dropped returns the number of entries discarded because the buffer was full.
func (a *AsyncAuditor) Dropped() uint64 {
	return a.dropped.Load()
}

// Close flushes the buffered entries and closes the wrapped auditor.
func (a *AsyncAuditor) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.entries)
		<-a.done
		err = a.next.Close()
	})
	return err
}
