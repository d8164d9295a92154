package core

import (
	"encoding/json"
	"time"
)

// DataType is an entity type that can be synchronized from a provider.
type DataType string

const (
	DataClaims      DataType = "claims"
	DataEligibility DataType = "eligibility"
	DataCoverage    DataType = "coverage"
	DataBenefits    DataType = "benefits"
	DataPayments    DataType = "payments"
)

// AllDataTypes is used when a synchronization does not name any types.
var AllDataTypes = []DataType{DataClaims, DataEligibility, DataCoverage, DataBenefits, DataPayments}

func (d DataType) IsValid() bool {
	switch d {
	case DataClaims, DataEligibility, DataCoverage, DataBenefits, DataPayments:
		return true
	default:
		return false
	}
}

// SyncResult is the outcome of a successful synchronization.
type SyncResult struct {
	ProviderID string                       `json:"provider_id"`
	Data       map[DataType]json.RawMessage `json:"data"`
	Timestamp  time.Time                    `json:"timestamp"`
	DataTypes  []DataType                   `json:"data_types"`
}

// SyncStatus is a read of the local session and watermark state of a provider.
type SyncStatus struct {
	ProviderID     string     `json:"provider_id"`
	SessionActive  bool       `json:"session_active"`
	Authenticated  bool       `json:"authenticated"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty"`
	LastSync       *time.Time `json:"last_sync,omitempty"`
	NextSync       *time.Time `json:"next_sync,omitempty"`
}
