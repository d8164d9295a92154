package core

import "time"

type AuditEntry struct {
	// ID is the correlation ID of the request that caused the event, if any.
	ID string `json:"id"`

	// Time is the timestamp of the event
	Time time.Time `json:"time"`

	// Action describing what happened (e.g. "claims.submit", "auth.transition")
	Action string `json:"action"`

	// Provider is the insurance provider the event belongs to
	Provider string `json:"provider,omitempty"`

	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`

	// Metadata contains operation details (claim id, state transition, token fingerprint, ...)
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Auditor interface {
	Log(entry AuditEntry) error
	Close() error
}
