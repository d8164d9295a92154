package core

import (
	"context"
	"time"
)

// Exchange is a single request sent through a Session.
type Exchange struct {
	// Operation names the remote action (e.g. "claims.submit").
	Operation string

	// Token is the access token to authenticate the request with. Empty for token requests.
	Token string

	// TokenType is the scheme of Token, usually "Bearer".
	TokenType string

	// Payload is the encrypted request envelope.
	Payload []byte
}

// Session is the transport to a provider.
// Implementations: HTTPS Session, Stub Session.
type Session interface {
	// Send transmits the encrypted request and returns the encrypted response.
	// Transport failures are returned as NetworkError, a rejected access token as ErrUnauthorized.
	Send(ctx context.Context, ex Exchange) ([]byte, error)

	// Close releases the resources held by the session.
	Close() error
}

// SessionFactory opens a new Session for a provider.
type SessionFactory func(ctx context.Context) (Session, error)

// Codec turns plain request envelopes into the bytes sent to a provider and back.
// All failures are EncryptionErrors.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// MetricsCollector accepts metric events. Record must never block or fail.
type MetricsCollector interface {
	Record(event MetricEvent)
}

// ComplianceMonitor assesses the regulatory impact of failures. It is advisory only.
type ComplianceMonitor interface {
	CheckImpact(err error, providerID, operation string)
}

// Outcome is the result class of a remote operation.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeFailure     Outcome = "failure"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeCacheHit    Outcome = "cache_hit"

	// OutcomeTransition marks an authentication state change, not a remote request.
	OutcomeTransition Outcome = "transition"
)

// MetricEvent describes a single operation against a provider.
type MetricEvent struct {
	Time      time.Time
	Provider  string
	Operation string
	Outcome   Outcome
	ErrorKind ErrorKind
	Error     string
	Duration  time.Duration

	// Retry is set when the operation was executed by the retry queue.
	Retry bool
}
