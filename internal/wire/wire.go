// Package wire defines the versioned request/response envelopes exchanged with insurance
// providers and the client that drives a single exchange through a Session.
package wire

import (
	"encoding/json"
	"time"

	"github.com/darmiel/insurelink/internal/core"
)

// SchemaVersion is the version of the envelope layout. Bump it on incompatible changes.
const SchemaVersion = "1"

// Operation is the remote action requested by an envelope.
type Operation string

const (
	OpToken       Operation = "auth.token"
	OpRefresh     Operation = "auth.refresh"
	OpRevoke      Operation = "auth.revoke"
	OpSubmitClaim Operation = "claims.submit"
	OpUpdateClaim Operation = "claims.update"
	OpClaimStatus Operation = "claims.status"
	OpSynchronize Operation = "data.sync"
)

const (
	grantClientCredentials = "client_credentials"
	grantRefreshToken      = "refresh_token"
)

// Operations lists every operation known to this schema version.
var Operations = []Operation{OpToken, OpRefresh, OpRevoke, OpSubmitClaim, OpUpdateClaim, OpClaimStatus, OpSynchronize}

// Request is the plain envelope before it is sealed by the Codec.
type Request struct {
	SchemaVersion string          `json:"schema_version"`
	APIVersion    string          `json:"api_version"`
	Operation     Operation       `json:"operation"`
	Body          json.RawMessage `json:"body,omitempty"`
}

// Response is the plain envelope after it was opened by the Codec.
type Response struct {
	SchemaVersion string          `json:"schema_version"`
	Operation     Operation       `json:"operation"`
	Error         *RemoteError    `json:"error,omitempty"`
	Body          json.RawMessage `json:"body,omitempty"`
}

// Remote error codes.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeUnauthorized       = "unauthorized"
	CodeRateLimited        = "rate_limited"
	CodeInvalidClaim       = "invalid_claim"
	CodeUnavailable        = "unavailable"
	CodeNotFound           = "not_found"
	CodeBadRequest         = "bad_request"
)

// RemoteError is an error reported by the provider inside a response envelope.
type RemoteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// TokenRequest is the body of auth.token and auth.refresh.
type TokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	Scope        string `json:"scope,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// NewCredentialsRequest builds the body of auth.token.
func NewCredentialsRequest(creds core.Credentials) TokenRequest {
	return TokenRequest{
		GrantType:    grantClientCredentials,
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Scope:        creds.Scope,
	}
}

// NewRefreshRequest builds the body of auth.refresh.
func NewRefreshRequest(refreshToken string) TokenRequest {
	return TokenRequest{
		GrantType:    grantRefreshToken,
		RefreshToken: refreshToken,
	}
}

// TokenResponse is the body returned by auth.token and auth.refresh.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type,omitempty"`
}

// AuthToken converts the response into a token expiring relative to now.
func (r TokenResponse) AuthToken(now time.Time) core.AuthToken {
	tokenType := r.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return core.AuthToken{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(r.ExpiresIn) * time.Second),
		TokenType:    tokenType,
	}
}

// RevokeRequest is the body of auth.revoke.
type RevokeRequest struct {
	Token string `json:"token"`
}

// RevokeResponse is the body returned by auth.revoke.
type RevokeResponse struct {
	Revoked bool `json:"revoked"`
}

// ClaimRequest is the body of claims.submit and claims.update.
type ClaimRequest struct {
	Claim core.Claim `json:"claim"`
}

// ClaimResponse is the body returned by claims.submit and claims.update.
type ClaimResponse struct {
	ClaimID     string    `json:"claim_id"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
	Message     string    `json:"message,omitempty"`
}

// ClaimStatusRequest is the body of claims.status.
type ClaimStatusRequest struct {
	ClaimID string `json:"claim_id"`
}

// ClaimStatusResponse is the body returned by claims.status.
type ClaimStatusResponse struct {
	ClaimID     string     `json:"claim_id"`
	Status      string     `json:"status"`
	LastUpdated time.Time  `json:"last_updated"`
	NextUpdate  *time.Time `json:"next_update,omitempty"`
}

// SyncRequest is the body of data.sync.
// Since is the watermark of the last successful synchronization, nil for a full sync.
type SyncRequest struct {
	Since     *time.Time      `json:"since"`
	DataTypes []core.DataType `json:"data_types"`
}

// SyncResponse is the body returned by data.sync.
type SyncResponse struct {
	Data       map[core.DataType]json.RawMessage `json:"data"`
	ServerTime time.Time                         `json:"server_time"`
}
