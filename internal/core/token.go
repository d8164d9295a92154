package core

import "time"

// TokenRefreshMargin is the remaining validity below which a token must be refreshed before use.
const TokenRefreshMargin = 5 * time.Minute

// AuthToken is the access/refresh token pair held for a provider.
type AuthToken struct {
	// AccessToken is sent with every authenticated request.
	AccessToken string `json:"access_token"`

	// RefreshToken is exchanged for a new AuthToken once the access token goes stale.
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresAt indicates when the access token becomes invalid.
	ExpiresAt time.Time `json:"expires_at"`

	// TokenType is usually "Bearer".
	TokenType string `json:"token_type"`
}

// Fresh reports whether the token can be used at now without refreshing first.
// A token stops being fresh once now + TokenRefreshMargin reaches ExpiresAt.
func (t AuthToken) Fresh(now time.Time) bool {
	return now.Add(TokenRefreshMargin).Before(t.ExpiresAt)
}

// Expired reports whether the token is past its expiry at now.
func (t AuthToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// TokenInfo is a redacted view of an AuthToken, safe to return over the API.
type TokenInfo struct {
	Fingerprint string    `json:"fingerprint"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Refreshable bool      `json:"refreshable"`
}
