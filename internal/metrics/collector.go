// Package metrics aggregates per-provider request and error counters in memory.
package metrics

import (
	"sync"
	"time"

	"github.com/darmiel/insurelink/internal/core"
)

var _ core.MetricsCollector = (*Collector)(nil)

type providerStats struct {
	api     core.APIMetrics
	errors  core.ErrorStatistics
	latency time.Duration // sum over remote requests
	remote  int64
}

// Collector is the in-memory MetricsCollector.
type Collector struct {
	mu        sync.RWMutex
	providers map[string]*providerStats
}

func NewCollector() *Collector {
	return &Collector{
		providers: make(map[string]*providerStats),
	}
}

func (c *Collector) stats(provider string) *providerStats {
	s, ok := c.providers[provider]
	if !ok {
		s = &providerStats{
			api: core.APIMetrics{ProviderID: provider},
			errors: core.ErrorStatistics{
				ProviderID:  provider,
				ByKind:      make(map[core.ErrorKind]int64),
				ByOperation: make(map[string]int64),
			},
		}
		c.providers[provider] = s
	}
	return s
}

func (c *Collector) Record(ev core.MetricEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats(ev.Provider)
	if ev.Outcome == core.OutcomeTransition {
		s.api.AuthTransitions++
		return
	}
	at := ev.Time
	s.api.LastRequestAt = &at
	if ev.Retry {
		s.api.Retries++
	}

	switch ev.Outcome {
	case core.OutcomeCacheHit:
		s.api.CacheHits++
		return
	case core.OutcomeRateLimited:
		s.api.RateLimited++
	case core.OutcomeSuccess:
		s.api.TotalRequests++
		s.api.SuccessfulRequests++
	case core.OutcomeFailure:
		s.api.TotalRequests++
		s.api.FailedRequests++
	}

	if ev.Outcome == core.OutcomeSuccess || ev.Outcome == core.OutcomeFailure {
		s.remote++
		s.latency += ev.Duration
		s.api.AverageLatency = s.latency / time.Duration(s.remote)
	}

	if ev.Outcome != core.OutcomeSuccess {
		s.errors.TotalErrors++
		kind := ev.ErrorKind
		if kind == "" {
			kind = core.KindNetworkError
		}
		s.errors.ByKind[kind]++
		s.errors.ByOperation[ev.Operation]++
		s.errors.LastError = ev.Error
		s.errors.LastErrorAt = &at
	}
}

// Metrics returns a snapshot of the request counters of provider.
func (c *Collector) Metrics(provider string) core.APIMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.providers[provider]
	if !ok {
		return core.APIMetrics{ProviderID: provider}
	}
	return s.api
}

// Errors returns a snapshot of the error statistics of provider.
func (c *Collector) Errors(provider string) core.ErrorStatistics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.providers[provider]
	if !ok {
		return core.ErrorStatistics{
			ProviderID:  provider,
			ByKind:      map[core.ErrorKind]int64{},
			ByOperation: map[string]int64{},
		}
	}
	out := s.errors
	out.ByKind = make(map[core.ErrorKind]int64, len(s.errors.ByKind))
	for k, v := range s.errors.ByKind {
		out.ByKind[k] = v
	}
	out.ByOperation = make(map[string]int64, len(s.errors.ByOperation))
	for k, v := range s.errors.ByOperation {
		out.ByOperation[k] = v
	}
	return out
}

// Reset forgets everything recorded for provider.
func (c *Collector) Reset(provider string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.providers, provider)
}
