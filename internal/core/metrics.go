package core

import "time"

// APIMetrics summarizes the traffic sent to a provider.
type APIMetrics struct {
	ProviderID         string        `json:"provider_id"`
	TotalRequests      int64         `json:"total_requests"`
	SuccessfulRequests int64         `json:"successful_requests"`
	FailedRequests     int64         `json:"failed_requests"`
	RateLimited        int64         `json:"rate_limited"`
	CacheHits          int64         `json:"cache_hits"`
	Retries            int64         `json:"retries"`
	AuthTransitions    int64         `json:"auth_transitions"`
	AverageLatency     time.Duration `json:"average_latency"`
	LastRequestAt      *time.Time    `json:"last_request_at,omitempty"`
}

// SuccessRate returns the share of successful requests in [0, 1].
func (m APIMetrics) SuccessRate() float64 {
	if m.TotalRequests == 0 {
		return 1
	}
	return float64(m.SuccessfulRequests) / float64(m.TotalRequests)
}

// ErrorStatistics groups the failures recorded for a provider.
type ErrorStatistics struct {
	ProviderID  string              `json:"provider_id"`
	TotalErrors int64               `json:"total_errors"`
	ByKind      map[ErrorKind]int64 `json:"by_kind"`
	ByOperation map[string]int64    `json:"by_operation"`
	LastError   string              `json:"last_error,omitempty"`
	LastErrorAt *time.Time          `json:"last_error_at,omitempty"`
}

// ComplianceViolation is an advisory finding recorded by the ComplianceMonitor.
type ComplianceViolation struct {
	Rule      string    `json:"rule"`
	Severity  string    `json:"severity"`
	Operation string    `json:"operation,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
	Message   string    `json:"message"`
	Time      time.Time `json:"time"`
}

// ComplianceStatus is the advisory compliance view of a provider.
type ComplianceStatus struct {
	ProviderID  string                `json:"provider_id"`
	Compliant   bool                  `json:"compliant"`
	Score       float64               `json:"score"`
	Checks      int64                 `json:"checks"`
	Violations  []ComplianceViolation `json:"violations"`
	LastChecked *time.Time            `json:"last_checked,omitempty"`
}
