package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/insurelink/internal/core"
	"github.com/darmiel/insurelink/internal/providers"
	"github.com/darmiel/insurelink/internal/telemetry"
	"github.com/darmiel/insurelink/internal/validation"
	"github.com/darmiel/insurelink/internal/wire"
)

// ClaimsService submits claims and tracks their status.
type ClaimsService struct {
	emitter *telemetry.Emitter
}

type callOptions struct {
	enqueue bool
	retry   bool
}

// Submit sends a new claim to the provider.
// Invalid claims are rejected before a token is checked or a permit consumed.
func (s *ClaimsService) Submit(ctx context.Context, inst *providers.Instance, claim core.Claim) (*core.ClaimResponse, error) {
	return s.send(ctx, inst, wire.OpSubmitClaim, claim, callOptions{enqueue: true})
}

// Update overwrites an existing claim at the provider. Failed updates are not queued.
func (s *ClaimsService) Update(ctx context.Context, inst *providers.Instance, claim core.Claim) (*core.ClaimResponse, error) {
	return s.send(ctx, inst, wire.OpUpdateClaim, claim, callOptions{})
}

func (s *ClaimsService) send(
	ctx context.Context,
	inst *providers.Instance,
	op wire.Operation,
	claim core.Claim,
	opts callOptions,
) (_ *core.ClaimResponse, err error) {
	started := inst.Now()
	defer func() {
		s.emitter.Operation(ctx, telemetry.Event{
			Provider:  inst.ID(),
			Operation: string(op),
			Started:   started,
			Err:       err,
			Retry:     opts.retry,
			Metadata:  map[string]any{"claim_id": claim.ID},
		})
	}()

	if err = validation.ValidateClaim(claim); err != nil {
		return nil, err
	}
	switch claim.ProviderID {
	case "":
		claim.ProviderID = inst.ID()
	case inst.ID():
	default:
		err = core.NewError(core.KindInvalidClaim, "claim '%s' belongs to provider '%s'", claim.ID, claim.ProviderID)
		return nil, err
	}

	var resp wire.ClaimResponse
	if err = call(ctx, inst, op, wire.ClaimRequest{Claim: claim}, &resp); err != nil {
		if opts.enqueue && shouldEnqueue(ctx, err) {
			c := claim
			if inst.Retry.Enqueue(core.RetryOperation{
				Kind:       core.RetrySubmitClaim,
				ProviderID: inst.ID(),
				Claim:      &c,
			}, err) {
				log.Ctx(ctx).Info().Str("provider", inst.ID()).Str("claim_id", claim.ID).Msg("claim submission queued for retry")
			}
		}
		return nil, err
	}

	inst.Cache.PutStatus(core.ClaimStatus{
		ClaimID:     resp.ClaimID,
		Status:      resp.Status,
		LastUpdated: resp.SubmittedAt,
	})
	return &core.ClaimResponse{
		ClaimID:     resp.ClaimID,
		Status:      resp.Status,
		SubmittedAt: resp.SubmittedAt,
		Message:     resp.Message,
	}, nil
}

// GetStatus returns the status of a claim, from the cache if present.
func (s *ClaimsService) GetStatus(ctx context.Context, inst *providers.Instance, claimID string) (*core.ClaimStatus, error) {
	if err := validation.ValidateClaimID(claimID); err != nil {
		s.emitter.Operation(ctx, telemetry.Event{Provider: inst.ID(), Operation: string(wire.OpClaimStatus), Err: err})
		return nil, err
	}
	if st, ok := inst.Cache.Status(claimID); ok {
		s.emitter.Operation(ctx, telemetry.Event{
			Provider:  inst.ID(),
			Operation: string(wire.OpClaimStatus),
			CacheHit:  true,
			Metadata:  map[string]any{"claim_id": claimID},
		})
		return &st, nil
	}
	return s.fetchStatus(ctx, inst, claimID, callOptions{enqueue: true})
}

// FetchStatus asks the provider for the status of a claim and updates the cache.
func (s *ClaimsService) FetchStatus(ctx context.Context, inst *providers.Instance, claimID string) (*core.ClaimStatus, error) {
	return s.fetchStatus(ctx, inst, claimID, callOptions{enqueue: true})
}

func (s *ClaimsService) fetchStatus(
	ctx context.Context,
	inst *providers.Instance,
	claimID string,
	opts callOptions,
) (_ *core.ClaimStatus, err error) {
	started := inst.Now()
	defer func() {
		s.emitter.Operation(ctx, telemetry.Event{
			Provider:  inst.ID(),
			Operation: string(wire.OpClaimStatus),
			Started:   started,
			Err:       err,
			Retry:     opts.retry,
			Metadata:  map[string]any{"claim_id": claimID},
		})
	}()

	if err = validation.ValidateClaimID(claimID); err != nil {
		return nil, err
	}

	var resp wire.ClaimStatusResponse
	if err = call(ctx, inst, wire.OpClaimStatus, wire.ClaimStatusRequest{ClaimID: claimID}, &resp); err != nil {
		if opts.enqueue && shouldEnqueue(ctx, err) {
			inst.Retry.Enqueue(core.RetryOperation{
				Kind:       core.RetryGetClaimStatus,
				ProviderID: inst.ID(),
				ClaimID:    claimID,
			}, err)
		}
		return nil, err
	}
	if resp.ClaimID != claimID {
		err = core.NewError(core.KindInvalidResponse, "status for claim '%s' answered for '%s'", claimID, resp.ClaimID)
		return nil, err
	}

	st := core.ClaimStatus{
		ClaimID:     resp.ClaimID,
		Status:      resp.Status,
		LastUpdated: resp.LastUpdated,
		NextUpdate:  resp.NextUpdate,
	}
	inst.Cache.PutStatus(st)
	return &st, nil
}
