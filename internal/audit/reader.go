package audit

import "github.com/darmiel/insurelink/internal/core"

// Reader queries logged entries.
type Reader interface {
	GetRecent(limit int) ([]core.AuditEntry, error)
	Find(filter func(entry core.AuditEntry) bool, limit int) ([]core.AuditEntry, error)
}

var (
	_ Reader = (*InMemoryAuditor)(nil)
	_ Reader = (*FileAuditor)(nil)
)
