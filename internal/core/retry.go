package core

// RetryKind is one of the idempotent-safe operations that may be re-executed.
type RetryKind string

const (
	RetryAuthenticate   RetryKind = "authenticate"
	RetrySubmitClaim    RetryKind = "submit_claim"
	RetryGetClaimStatus RetryKind = "get_claim_status"
)

// RetryOperation is a failed operation waiting to be executed again.
type RetryOperation struct {
	Kind       RetryKind `json:"kind"`
	ProviderID string    `json:"provider_id"`

	// Credentials is set for RetryAuthenticate. It is held in memory only.
	Credentials *Credentials `json:"-"`

	// Claim is set for RetrySubmitClaim.
	Claim *Claim `json:"claim,omitempty"`

	// ClaimID is set for RetryGetClaimStatus.
	ClaimID string `json:"claim_id,omitempty"`
}

// Key identifies the logical action of the operation.
// Two operations with the same key are the same retry.
func (o RetryOperation) Key() string {
	switch o.Kind {
	case RetrySubmitClaim:
		if o.Claim != nil {
			return string(o.Kind) + ":" + o.ProviderID + ":" + o.Claim.ID
		}
	case RetryGetClaimStatus:
		return string(o.Kind) + ":" + o.ProviderID + ":" + o.ClaimID
	}
	return string(o.Kind) + ":" + o.ProviderID
}
