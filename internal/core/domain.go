package core

import (
	"reflect"
	"time"
)

const (
	// DefaultRequestsPerMinute is applied when a provider config leaves the per-minute limit empty.
	DefaultRequestsPerMinute = 60

	// DefaultRequestsPerHour is applied when a provider config leaves the per-hour limit empty.
	DefaultRequestsPerHour = 1000

	// DefaultTimeout bounds every remote call if the provider does not specify one.
	DefaultTimeout = 30 * time.Second
)

// RateLimitPolicy describes how many requests a provider accepts per sliding window.
type RateLimitPolicy struct {
	RequestsPerMinute int `yaml:"per_minute" json:"per_minute"`
	RequestsPerHour   int `yaml:"per_hour" json:"per_hour"`
}

// TransportConfig selects the Session implementation used to reach a provider.
type TransportConfig struct {
	Type   string         `yaml:"type" json:"type"`       // e.g., "https", "stub"
	Config map[string]any `yaml:",inline" json:"config"` // Capture remaining fields
}

// EncryptionConfig selects the Codec used to seal payloads for a provider.
type EncryptionConfig struct {
	Type   string         `yaml:"type" json:"type"`       // e.g., "plain", "aes-gcm"
	Config map[string]any `yaml:",inline" json:"config"` // Capture remaining fields
}

// ProviderConfig is the registration record of an insurance provider.
// It is immutable once the provider has been registered.
type ProviderConfig struct {
	// ID is the unique identifier of the provider (e.g. "aetna").
	ID string `yaml:"id" json:"id"`

	// Name is a human-readable display name.
	Name string `yaml:"name" json:"name"`

	// Endpoint is the base URL of the provider API. Only https is accepted.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// APIVersion is sent with every request envelope (e.g. "v2").
	APIVersion string `yaml:"api_version" json:"api_version"`

	// RateLimit is the admission policy applied before every remote call.
	RateLimit RateLimitPolicy `yaml:"rate_limit" json:"rate_limit"`

	// AutoConnect opens the transport session right after registration.
	AutoConnect bool `yaml:"auto_connect" json:"auto_connect"`

	// Timeout bounds each remote call. Zero means DefaultTimeout.
	Timeout time.Duration `yaml:"timeout" json:"timeout,omitempty"`

	// SyncInterval enables periodic incremental synchronization when > 0.
	SyncInterval time.Duration `yaml:"sync_interval" json:"sync_interval,omitempty"`

	// SyncTypes are the entity types used by the periodic synchronization.
	SyncTypes []DataType `yaml:"sync_types" json:"sync_types,omitempty"`

	Transport  TransportConfig  `yaml:"transport" json:"transport"`
	Encryption EncryptionConfig `yaml:"encryption" json:"encryption"`
}

// EffectiveTimeout returns the configured timeout or DefaultTimeout.
func (c ProviderConfig) EffectiveTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// EffectiveRateLimit fills empty limits with the defaults.
func (c ProviderConfig) EffectiveRateLimit() RateLimitPolicy {
	p := c.RateLimit
	if p.RequestsPerMinute == 0 {
		p.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if p.RequestsPerHour == 0 {
		p.RequestsPerHour = DefaultRequestsPerHour
	}
	return p
}

// Equal reports whether two configs describe the same registration.
func (c ProviderConfig) Equal(o ProviderConfig) bool {
	return reflect.DeepEqual(c, o)
}

// Credentials are exchanged for an AuthToken. They are never persisted.
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Scope        string `json:"scope,omitempty"`
}

// Empty reports whether the credentials miss the client id or secret.
func (c Credentials) Empty() bool {
	return c.ClientID == "" || c.ClientSecret == ""
}
