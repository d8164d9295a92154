package validation

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/darmiel/insurelink/internal/core"
)

// ValidateProviderConfig checks a provider config before it is registered.
func ValidateProviderConfig(cfg core.ProviderConfig) error {
	if strings.TrimSpace(cfg.ID) == "" {
		return core.NewError(core.KindInvalidProviderConfig, "provider id must not be empty")
	}
	if strings.ContainsAny(cfg.ID, "/ \t\n") {
		return core.NewError(core.KindInvalidProviderConfig, "provider id '%s' contains invalid characters", cfg.ID)
	}

	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return core.WrapError(core.KindInvalidProviderConfig, err, "provider '%s' has an invalid endpoint", cfg.ID)
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return core.NewError(core.KindInvalidProviderConfig,
			"provider '%s' endpoint must use https, got '%s'", cfg.ID, u.Scheme)
	}
	if u.Host == "" {
		return core.NewError(core.KindInvalidProviderConfig, "provider '%s' endpoint has no host", cfg.ID)
	}

	rl := cfg.RateLimit
	if rl.RequestsPerMinute < 0 || rl.RequestsPerHour < 0 {
		return core.NewError(core.KindInvalidProviderConfig, "provider '%s' has negative rate limits", cfg.ID)
	}
	eff := cfg.EffectiveRateLimit()
	if eff.RequestsPerMinute > eff.RequestsPerHour {
		return core.NewError(core.KindInvalidProviderConfig,
			"provider '%s' allows more requests per minute (%d) than per hour (%d)",
			cfg.ID, eff.RequestsPerMinute, eff.RequestsPerHour)
	}

	if cfg.Timeout < 0 || cfg.SyncInterval < 0 {
		return core.NewError(core.KindInvalidProviderConfig, "provider '%s' has negative durations", cfg.ID)
	}
	if _, err := ValidateDataTypes(cfg.SyncTypes); err != nil {
		return core.WrapError(core.KindInvalidProviderConfig, err, "provider '%s' has invalid sync types", cfg.ID)
	}
	return nil
}

// ValidateClaim checks a claim before anything is sent to a provider.
func ValidateClaim(claim core.Claim) error {
	if strings.TrimSpace(claim.ID) == "" {
		return core.NewError(core.KindInvalidClaim, "claim id must not be empty")
	}
	if !(claim.Amount > 0) || math.IsInf(claim.Amount, 0) {
		return core.NewError(core.KindInvalidClaim, "claim '%s' amount must be a positive finite number, got %v", claim.ID, claim.Amount)
	}
	if claim.Type != "" && !claim.Type.IsValid() {
		return core.NewError(core.KindInvalidClaim, "claim '%s' has unknown type '%s'", claim.ID, claim.Type)
	}
	return nil
}

// ValidateClaimID checks a claim id used for lookups.
func ValidateClaimID(claimID string) error {
	if strings.TrimSpace(claimID) == "" {
		return core.NewError(core.KindInvalidClaim, "claim id must not be empty")
	}
	return nil
}

// ValidateDataTypes rejects unknown types and removes duplicates.
func ValidateDataTypes(types []core.DataType) ([]core.DataType, error) {
	seen := make(map[core.DataType]struct{}, len(types))
	out := make([]core.DataType, 0, len(types))
	for _, dt := range types {
		if !dt.IsValid() {
			return nil, fmt.Errorf("unknown data type '%s'", dt)
		}
		if _, ok := seen[dt]; ok {
			continue
		}
		seen[dt] = struct{}{}
		out = append(out, dt)
	}
	return out, nil
}
