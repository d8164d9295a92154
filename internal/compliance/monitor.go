package compliance

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/insurelink/internal/core"
)

var _ core.ComplianceMonitor = (*Monitor)(nil)

// maxViolations is the number of findings kept per provider.
const maxViolations = 100

type providerState struct {
	checks     int64
	violating  int64
	violations []core.ComplianceViolation
	lastCheck  time.Time
}

// Monitor evaluates failures against a rule set that can be swapped at runtime.
type Monitor struct {
	rules atomic.Pointer[[]Rule]
	now   func() time.Time

	mu        sync.Mutex
	providers map[string]*providerState
}

// NewMonitor creates a monitor with already compiled rules.
func NewMonitor(rules []Rule) *Monitor {
	m := &Monitor{
		now:       time.Now,
		providers: make(map[string]*providerState),
	}
	m.rules.Store(&rules)
	return m
}

// SetRules replaces the active rule set.
func (m *Monitor) SetRules(rules []Rule) {
	m.rules.Store(&rules)
}

func (m *Monitor) CheckImpact(err error, providerID, operation string) {
	if err == nil {
		return
	}
	in := Input{
		Kind:      string(core.KindOf(err)),
		Provider:  providerID,
		Operation: operation,
		Message:   err.Error(),
	}
	now := m.now()

	var found []core.ComplianceViolation
	for _, rule := range *m.rules.Load() {
		ok, evalErr := rule.matches(in)
		if evalErr != nil {
			log.Warn().Err(evalErr).Str("rule", rule.Name).Msg("error evaluating compliance rule")
			continue
		}
		if !ok {
			continue
		}
		found = append(found, core.ComplianceViolation{
			Rule:      rule.Name,
			Severity:  rule.Severity,
			Operation: operation,
			ErrorKind: core.KindOf(err),
			Message:   in.Message,
			Time:      now,
		})
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.state(providerID)
	st.checks++
	st.lastCheck = now
	if len(found) == 0 {
		return
	}
	st.violating++
	st.violations = append(st.violations, found...)
	if over := len(st.violations) - maxViolations; over > 0 {
		st.violations = append(st.violations[:0:0], st.violations[over:]...)
	}
	for _, v := range found {
		log.Warn().
			Str("provider", providerID).
			Str("rule", v.Rule).
			Str("severity", v.Severity).
			Str("operation", operation).
			Msg("compliance violation recorded")
	}
}

func (m *Monitor) state(providerID string) *providerState {
	st, ok := m.providers[providerID]
	if !ok {
		st = &providerState{}
		m.providers[providerID] = st
	}
	return st
}

// Status returns the compliance view of a provider. The score is the share of checked
// failures that did not violate any rule, in percent. A provider is compliant as long as
// no high severity violation is retained.
func (m *Monitor) Status(providerID string) core.ComplianceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := core.ComplianceStatus{
		ProviderID: providerID,
		Compliant:  true,
		Score:      100,
		Violations: []core.ComplianceViolation{},
	}
	st, ok := m.providers[providerID]
	if !ok {
		return status
	}
	status.Checks = st.checks
	if st.checks > 0 {
		status.Score = 100 * float64(st.checks-st.violating) / float64(st.checks)
	}
	status.Violations = append(status.Violations, st.violations...)
	for _, v := range st.violations {
		if v.Severity == SeverityHigh {
			status.Compliant = false
			break
		}
	}
	last := st.lastCheck
	status.LastChecked = &last
	return status
}

// Reset forgets all findings of a provider.
func (m *Monitor) Reset(providerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.providers, providerID)
}
