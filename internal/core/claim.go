package core

import "time"

// ClaimType is the category of care a claim is filed for.
type ClaimType string

const (
	ClaimMedical        ClaimType = "medical"
	ClaimDental         ClaimType = "dental"
	ClaimVision         ClaimType = "vision"
	ClaimPrescription   ClaimType = "prescription"
	ClaimMentalHealth   ClaimType = "mental_health"
	ClaimRehabilitation ClaimType = "rehabilitation"
)

func (t ClaimType) IsValid() bool {
	switch t {
	case ClaimMedical, ClaimDental, ClaimVision, ClaimPrescription, ClaimMentalHealth, ClaimRehabilitation:
		return true
	default:
		return false
	}
}

// Claim is an insurance claim filed with a provider.
type Claim struct {
	ID            string    `json:"claim_id"`
	PatientID     string    `json:"patient_id"`
	ProviderID    string    `json:"provider_id"`
	Amount        float64   `json:"amount"`
	Description   string    `json:"description,omitempty"`
	DateOfService time.Time `json:"date_of_service"`
	Type          ClaimType `json:"claim_type"`
}

// ClaimResponse is returned by the provider after a claim was submitted or updated.
type ClaimResponse struct {
	ClaimID     string    `json:"claim_id"`
	Status      string    `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`
	Message     string    `json:"message,omitempty"`
}

// ClaimStatus is the last known processing state of a claim.
type ClaimStatus struct {
	ClaimID     string     `json:"claim_id"`
	Status      string     `json:"status"`
	LastUpdated time.Time  `json:"last_updated"`
	NextUpdate  *time.Time `json:"next_update,omitempty"`
}
