package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies every error returned by the integration layer.
type ErrorKind string

const (
	KindProviderNotFound      ErrorKind = "ProviderNotFound"
	KindInvalidProviderConfig ErrorKind = "InvalidProviderConfig"
	KindInvalidCredentials    ErrorKind = "InvalidCredentials"
	KindInvalidAuthResponse   ErrorKind = "InvalidAuthResponse"
	KindNoActiveToken         ErrorKind = "NoActiveToken"
	KindNoActiveSession       ErrorKind = "NoActiveSession"
	KindRateLimitExceeded     ErrorKind = "RateLimitExceeded"
	KindInvalidClaim          ErrorKind = "InvalidClaim"
	KindInvalidResponse       ErrorKind = "InvalidResponse"
	KindNetworkError          ErrorKind = "NetworkError"
	KindEncryptionError       ErrorKind = "EncryptionError"
	KindComplianceViolation   ErrorKind = "ComplianceViolation"

	// kindUnauthorized is the remote rejecting an access token. It never leaves the
	// integration layer: it is turned into a refresh attempt or NoActiveToken.
	kindUnauthorized ErrorKind = "Unauthorized"
)

// Error is the typed error of the integration layer.
// Two errors match with errors.Is when their kinds are equal.
type Error struct {
	Kind     ErrorKind
	Provider string
	Op       string
	Msg      string

	// Timeout is set for NetworkErrors caused by an exceeded deadline.
	Timeout bool

	Err error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	if e.Provider != "" {
		sb.WriteString(" [" + e.Provider + "]")
	}
	if e.Op != "" {
		sb.WriteString(" " + e.Op)
	}
	if e.Msg != "" {
		sb.WriteString(": " + e.Msg)
	}
	if e.Err != nil {
		sb.WriteString(": " + e.Err.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrProviderNotFound      = &Error{Kind: KindProviderNotFound}
	ErrInvalidProviderConfig = &Error{Kind: KindInvalidProviderConfig}
	ErrInvalidCredentials    = &Error{Kind: KindInvalidCredentials}
	ErrInvalidAuthResponse   = &Error{Kind: KindInvalidAuthResponse}
	ErrNoActiveToken         = &Error{Kind: KindNoActiveToken}
	ErrNoActiveSession       = &Error{Kind: KindNoActiveSession}
	ErrRateLimitExceeded     = &Error{Kind: KindRateLimitExceeded}
	ErrInvalidClaim          = &Error{Kind: KindInvalidClaim}
	ErrInvalidResponse       = &Error{Kind: KindInvalidResponse}
	ErrNetwork               = &Error{Kind: KindNetworkError}
	ErrEncryption            = &Error{Kind: KindEncryptionError}
	ErrComplianceViolation   = &Error{Kind: KindComplianceViolation}

	// ErrUnauthorized is returned by transports when the remote rejected the access token.
	ErrUnauthorized = &Error{Kind: kindUnauthorized}
)

// NewError creates an Error of the given kind with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapError wraps err into an Error of the given kind.
// If err already is an *Error, its kind is kept.
func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Reclassify wraps err into an Error of the given kind, even if err already is an *Error.
// The original error stays reachable through errors.Is and errors.As.
func Reclassify(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// WithProvider returns a copy of err annotated with provider and operation,
// or err unchanged if it is not an *Error.
func WithProvider(err error, provider, op string) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	cpy := *e
	if cpy.Provider == "" {
		cpy.Provider = provider
	}
	if cpy.Op == "" {
		cpy.Op = op
	}
	return &cpy
}

// KindOf returns the kind of err, or "" if err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsTransient reports whether err may succeed when executed again later.
func IsTransient(err error) bool {
	return KindOf(err) == KindNetworkError
}

// IsTimeout reports whether err was caused by an exceeded deadline.
func IsTimeout(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Timeout
}
