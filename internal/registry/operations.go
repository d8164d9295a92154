package registry

import (
	"context"

	"github.com/darmiel/insurelink/internal/audit"
	"github.com/darmiel/insurelink/internal/core"
	"github.com/darmiel/insurelink/internal/providers"
	"github.com/darmiel/insurelink/internal/retry"
	"github.com/darmiel/insurelink/internal/telemetry"
)

// lookup resolves a provider for op. An unknown provider is reported like any other
// failed operation.
func (r *Registry) lookup(ctx context.Context, id, op string) (*providers.Instance, error) {
	inst, err := r.Get(id)
	if err != nil {
		r.emitter.Operation(ctx, telemetry.Event{Provider: id, Operation: op, Err: err})
		return nil, err
	}
	return inst, nil
}

func (r *Registry) Authenticate(ctx context.Context, id string, creds core.Credentials) (core.AuthToken, error) {
	inst, err := r.lookup(ctx, id, "authenticate")
	if err != nil {
		return core.AuthToken{}, err
	}
	tok, err := r.services.Auth.Authenticate(ctx, inst, creds)
	return tok, core.WithProvider(err, id, "authenticate")
}

func (r *Registry) RefreshToken(ctx context.Context, id string) (core.AuthToken, error) {
	inst, err := r.lookup(ctx, id, "refresh")
	if err != nil {
		return core.AuthToken{}, err
	}
	tok, err := r.services.Auth.Refresh(ctx, inst)
	return tok, core.WithProvider(err, id, "refresh")
}

func (r *Registry) RevokeToken(ctx context.Context, id string) error {
	inst, err := r.lookup(ctx, id, "revoke")
	if err != nil {
		return err
	}
	return core.WithProvider(r.services.Auth.Revoke(ctx, inst), id, "revoke")
}

// TokenInfo describes the live token of a provider without exposing it.
func (r *Registry) TokenInfo(id string) (core.TokenInfo, error) {
	inst, err := r.lookup(context.Background(), id, "token_info")
	if err != nil {
		return core.TokenInfo{}, err
	}
	tok, ok := inst.Auth.Token()
	if !ok {
		return core.TokenInfo{}, &core.Error{Kind: core.KindNoActiveToken, Provider: id, Msg: "not authenticated"}
	}
	return audit.DescribeToken(tok), nil
}

func (r *Registry) SubmitClaim(ctx context.Context, id string, claim core.Claim) (*core.ClaimResponse, error) {
	inst, err := r.lookup(ctx, id, "submit_claim")
	if err != nil {
		return nil, err
	}
	resp, err := r.services.Claims.Submit(ctx, inst, claim)
	return resp, core.WithProvider(err, id, "submit_claim")
}

func (r *Registry) GetClaimStatus(ctx context.Context, id, claimID string) (*core.ClaimStatus, error) {
	inst, err := r.lookup(ctx, id, "get_claim_status")
	if err != nil {
		return nil, err
	}
	st, err := r.services.Claims.GetStatus(ctx, inst, claimID)
	return st, core.WithProvider(err, id, "get_claim_status")
}

func (r *Registry) UpdateClaim(ctx context.Context, id string, claim core.Claim) (*core.ClaimResponse, error) {
	inst, err := r.lookup(ctx, id, "update_claim")
	if err != nil {
		return nil, err
	}
	resp, err := r.services.Claims.Update(ctx, inst, claim)
	return resp, core.WithProvider(err, id, "update_claim")
}

func (r *Registry) SynchronizeData(ctx context.Context, id string, types []core.DataType) (*core.SyncResult, error) {
	inst, err := r.lookup(ctx, id, "synchronize")
	if err != nil {
		return nil, err
	}
	res, err := r.services.Sync.Synchronize(ctx, inst, types)
	return res, core.WithProvider(err, id, "synchronize")
}

func (r *Registry) GetSyncStatus(id string) (core.SyncStatus, error) {
	inst, err := r.lookup(context.Background(), id, "sync_status")
	if err != nil {
		return core.SyncStatus{}, err
	}
	return r.services.Sync.Status(inst), nil
}

// RetryFailedOperations drains the retry queue of a provider right away, including
// entries whose backoff has not elapsed.
func (r *Registry) RetryFailedOperations(ctx context.Context, id string) (retry.Report, error) {
	inst, err := r.lookup(ctx, id, "retry")
	if err != nil {
		return retry.Report{}, err
	}
	return r.services.Retry.Drain(ctx, inst, true), nil
}

// PendingRetries lists the queued and the permanently failed operations of a provider.
func (r *Registry) PendingRetries(id string) (pending, failed []retry.Entry, err error) {
	inst, err := r.lookup(context.Background(), id, "pending_retries")
	if err != nil {
		return nil, nil, err
	}
	return inst.Retry.Pending(), inst.Retry.Failed(), nil
}

func (r *Registry) GetMetrics(id string) (core.APIMetrics, error) {
	if _, err := r.lookup(context.Background(), id, "metrics"); err != nil {
		return core.APIMetrics{}, err
	}
	return r.opts.Metrics.Metrics(id), nil
}

func (r *Registry) GetErrorStats(id string) (core.ErrorStatistics, error) {
	if _, err := r.lookup(context.Background(), id, "error_stats"); err != nil {
		return core.ErrorStatistics{}, err
	}
	return r.opts.Metrics.Errors(id), nil
}

func (r *Registry) GetComplianceStatus(id string) (core.ComplianceStatus, error) {
	if _, err := r.lookup(context.Background(), id, "compliance"); err != nil {
		return core.ComplianceStatus{}, err
	}
	return r.opts.Compliance.Status(id), nil
}
