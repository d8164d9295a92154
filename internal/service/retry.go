package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/insurelink/internal/core"
	"github.com/darmiel/insurelink/internal/providers"
	"github.com/darmiel/insurelink/internal/retry"
	"github.com/darmiel/insurelink/internal/telemetry"
	"github.com/darmiel/insurelink/internal/wire"
)

// RetryService re-executes the queued operations of a provider.
type RetryService struct {
	emitter *telemetry.Emitter
	auth    *AuthService
	claims  *ClaimsService
}

// Drain executes the pending operations of inst. With force, entries are executed even if
// their backoff has not elapsed yet.
func (s *RetryService) Drain(ctx context.Context, inst *providers.Instance, force bool) retry.Report {
	report := inst.Retry.Drain(ctx, s.executor(inst), force)

	for _, e := range report.PermanentlyFailed {
		s.emitter.Audit(ctx, "retry.failed", inst.ID(), core.NewError(e.ErrorKind, "%s", e.LastError), map[string]any{
			"retry_id": e.ID,
			"kind":     string(e.Op.Kind),
			"key":      e.Op.Key(),
			"attempts": e.Attempts,
		})
	}
	if report.Succeeded+report.Rescheduled+len(report.PermanentlyFailed) > 0 {
		log.Ctx(ctx).Info().
			Str("provider", inst.ID()).
			Int("succeeded", report.Succeeded).
			Int("rescheduled", report.Rescheduled).
			Int("failed", len(report.PermanentlyFailed)).
			Msg("retry queue drained")
	}
	return report
}

func (s *RetryService) executor(inst *providers.Instance) retry.Executor {
	return func(ctx context.Context, op core.RetryOperation) error {
		switch op.Kind {
		case core.RetryAuthenticate:
			if op.Credentials == nil {
				return core.NewError(core.KindInvalidCredentials, "no credentials held for retry")
			}
			_, err := s.auth.authenticate(ctx, inst, *op.Credentials, false)
			return err
		case core.RetrySubmitClaim:
			if op.Claim == nil {
				return core.NewError(core.KindInvalidClaim, "no claim held for retry")
			}
			_, err := s.claims.send(ctx, inst, wire.OpSubmitClaim, *op.Claim, callOptions{retry: true})
			return err
		case core.RetryGetClaimStatus:
			_, err := s.claims.fetchStatus(ctx, inst, op.ClaimID, callOptions{retry: true})
			return err
		default:
			return core.NewError(core.KindInvalidResponse, "unknown retry operation %q", op.Kind)
		}
	}
}
