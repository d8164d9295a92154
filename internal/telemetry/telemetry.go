// Package telemetry fans out the outcome of every provider operation to the auditor,
// the metrics collector and the compliance monitor. None of them can fail an operation.
package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/insurelink/internal/core"
	"github.com/darmiel/insurelink/internal/logging"
)

// Event describes a finished operation against a provider.
type Event struct {
	Provider  string
	Operation string
	Started   time.Time
	Err       error

	// CacheHit is set when the result was served from the local cache.
	CacheHit bool

	// Retry is set when the operation was executed by the retry queue.
	Retry bool

	Metadata map[string]any
}

type Emitter struct {
	auditor    core.Auditor
	metrics    core.MetricsCollector
	compliance core.ComplianceMonitor
	now        func() time.Time
}

// New creates an Emitter. Nil sinks are skipped.
func New(auditor core.Auditor, metrics core.MetricsCollector, compliance core.ComplianceMonitor) *Emitter {
	return &Emitter{
		auditor:    auditor,
		metrics:    metrics,
		compliance: compliance,
		now:        time.Now,
	}
}

// SetClock replaces the time source. Operations measure their start with the same clock.
func (e *Emitter) SetClock(now func() time.Time) {
	e.now = now
}

// Operation reports a finished operation to all sinks.
func (e *Emitter) Operation(ctx context.Context, ev Event) {
	if e == nil {
		return
	}
	now := e.now()
	if ev.Started.IsZero() {
		ev.Started = now
	}

	outcome := core.OutcomeSuccess
	switch {
	case ev.Err != nil && core.KindOf(ev.Err) == core.KindRateLimitExceeded:
		outcome = core.OutcomeRateLimited
	case ev.Err != nil:
		outcome = core.OutcomeFailure
	case ev.CacheHit:
		outcome = core.OutcomeCacheHit
	}

	metric := core.MetricEvent{
		Time:      now,
		Provider:  ev.Provider,
		Operation: ev.Operation,
		Outcome:   outcome,
		Duration:  now.Sub(ev.Started),
		Retry:     ev.Retry,
	}
	if ev.Err != nil {
		metric.ErrorKind = core.KindOf(ev.Err)
		metric.Error = ev.Err.Error()
	}
	e.record(metric)

	meta := ev.Metadata
	if ev.CacheHit || ev.Retry {
		meta = copyMeta(meta)
		if ev.CacheHit {
			meta["cache_hit"] = true
		}
		if ev.Retry {
			meta["retry"] = true
		}
	}
	e.audit(ctx, ev.Operation, ev.Provider, ev.Err, meta)

	if ev.Err != nil {
		e.checkImpact(ev.Err, ev.Provider, ev.Operation)
	}
}

// Transition reports an authentication state change of a provider.
func (e *Emitter) Transition(ctx context.Context, provider, from, to string, err error, meta map[string]any) {
	if e == nil {
		return
	}
	meta = copyMeta(meta)
	meta["from"] = from
	meta["to"] = to

	ev := core.MetricEvent{
		Time:      e.now(),
		Provider:  provider,
		Operation: "auth.transition",
		Outcome:   core.OutcomeTransition,
	}
	if err != nil {
		ev.ErrorKind = core.KindOf(err)
		ev.Error = err.Error()
	}
	e.record(ev)
	e.audit(ctx, "auth.transition", provider, err, meta)
}

// Audit writes a single audit entry without touching metrics.
func (e *Emitter) Audit(ctx context.Context, action, provider string, err error, meta map[string]any) {
	if e == nil {
		return
	}
	e.audit(ctx, action, provider, err, meta)
}

func (e *Emitter) audit(ctx context.Context, action, provider string, err error, meta map[string]any) {
	if e.auditor == nil {
		return
	}
	entry := core.AuditEntry{
		ID:       logging.CorrelationCtx(ctx),
		Time:     e.now(),
		Action:   action,
		Provider: provider,
		Success:  err == nil,
		Metadata: meta,
	}
	if err != nil {
		entry.Error = err.Error()
		entry.ErrorKind = core.KindOf(err)
	}
	safely("auditor", func() {
		if err := e.auditor.Log(entry); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("action", action).Msg("failed to write audit log entry")
		}
	})
}

func (e *Emitter) record(ev core.MetricEvent) {
	if e.metrics == nil {
		return
	}
	safely("metrics", func() {
		e.metrics.Record(ev)
	})
}

func (e *Emitter) checkImpact(err error, provider, op string) {
	if e.compliance == nil {
		return
	}
	safely("compliance", func() {
		e.compliance.CheckImpact(err, provider, op)
	})
}

func safely(sink string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("sink", sink).Msg("telemetry sink panicked")
		}
	}()
	fn()
}

func copyMeta(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta)+2)
	for k, v := range meta {
		out[k] = v
	}
	return out
}
