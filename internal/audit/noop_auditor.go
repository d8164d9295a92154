package audit

import "github.com/darmiel/insurelink/internal/core"

// NoopAuditor discards every entry.
type NoopAuditor struct{}

func NewNoopAuditor() *NoopAuditor {
	return &NoopAuditor{}
}

func (n *NoopAuditor) Log(_ core.AuditEntry) error {
	return nil
}

func (n *NoopAuditor) Close() error {
	return nil
}
