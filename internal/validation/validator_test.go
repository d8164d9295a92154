package validation

import (
	"errors"
	"math"
	"testing"

	"github.com/darmiel/insurelink/internal/core"
)

func TestValidateProviderConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     core.ProviderConfig
		wantErr bool
	}{
		{name: "Valid", cfg: core.ProviderConfig{ID: "acme", Endpoint: "https://api.acme.test"}},
		{name: "Uppercase Scheme", cfg: core.ProviderConfig{ID: "acme", Endpoint: "HTTPS://api.acme.test"}},
		{name: "Empty ID", cfg: core.ProviderConfig{Endpoint: "https://api.acme.test"}, wantErr: true},
		{name: "Blank ID", cfg: core.ProviderConfig{ID: "  ", Endpoint: "https://api.acme.test"}, wantErr: true},
		{name: "Slash In ID", cfg: core.ProviderConfig{ID: "a/b", Endpoint: "https://api.acme.test"}, wantErr: true},
		{name: "Plain HTTP", cfg: core.ProviderConfig{ID: "acme", Endpoint: "http://api.acme.test"}, wantErr: true},
		{name: "No Scheme", cfg: core.ProviderConfig{ID: "acme", Endpoint: "api.acme.test"}, wantErr: true},
		{name: "No Host", cfg: core.ProviderConfig{ID: "acme", Endpoint: "https://"}, wantErr: true},
		{
			name: "Negative Limit",
			cfg: core.ProviderConfig{ID: "acme", Endpoint: "https://api.acme.test",
				RateLimit: core.RateLimitPolicy{RequestsPerMinute: -1}},
			wantErr: true,
		},
		{
			name: "Minute Above Hour",
			cfg: core.ProviderConfig{ID: "acme", Endpoint: "https://api.acme.test",
				RateLimit: core.RateLimitPolicy{RequestsPerMinute: 100, RequestsPerHour: 50}},
			wantErr: true,
		},
		{
			name: "Unknown Sync Type",
			cfg: core.ProviderConfig{ID: "acme", Endpoint: "https://api.acme.test",
				SyncTypes: []core.DataType{"x-rays"}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProviderConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateProviderConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, core.ErrInvalidProviderConfig) {
				t.Fatalf("error kind = %q, want InvalidProviderConfig", core.KindOf(err))
			}
		})
	}
}

func TestValidateClaim(t *testing.T) {
	tests := []struct {
		name    string
		claim   core.Claim
		wantErr bool
	}{
		{name: "Valid", claim: core.Claim{ID: "C1", Amount: 50, Type: core.ClaimDental}},
		{name: "Untyped", claim: core.Claim{ID: "C1", Amount: 0.01}},
		{name: "Empty ID", claim: core.Claim{Amount: 50}, wantErr: true},
		{name: "Zero Amount", claim: core.Claim{ID: "C1"}, wantErr: true},
		{name: "Negative Amount", claim: core.Claim{ID: "C1", Amount: -3}, wantErr: true},
		{name: "NaN Amount", claim: core.Claim{ID: "C1", Amount: math.NaN()}, wantErr: true},
		{name: "Infinite Amount", claim: core.Claim{ID: "C1", Amount: math.Inf(1)}, wantErr: true},
		{name: "Unknown Type", claim: core.Claim{ID: "C1", Amount: 5, Type: "cosmetic"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateClaim(tt.claim)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateClaim() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, core.ErrInvalidClaim) {
				t.Fatalf("error kind = %q, want InvalidClaim", core.KindOf(err))
			}
		})
	}
}

func TestValidateDataTypes(t *testing.T) {
	got, err := ValidateDataTypes([]core.DataType{core.DataClaims, core.DataPayments, core.DataClaims})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != core.DataClaims || got[1] != core.DataPayments {
		t.Fatalf("ValidateDataTypes() = %v", got)
	}
	if _, err := ValidateDataTypes([]core.DataType{"x-rays"}); err == nil {
		t.Fatal("unknown type accepted")
	}
}
