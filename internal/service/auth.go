package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/insurelink/internal/core"
	"github.com/darmiel/insurelink/internal/providers"
	"github.com/darmiel/insurelink/internal/telemetry"
)

// AuthService drives the authentication of a provider instance.
type AuthService struct {
	emitter *telemetry.Emitter
}

// Authenticate exchanges credentials for a token. Transport failures queue the
// authentication for re-execution; the credentials stay in memory only.
func (s *AuthService) Authenticate(ctx context.Context, inst *providers.Instance, creds core.Credentials) (core.AuthToken, error) {
	return s.authenticate(ctx, inst, creds, true)
}

func (s *AuthService) authenticate(ctx context.Context, inst *providers.Instance, creds core.Credentials, enqueue bool) (core.AuthToken, error) {
	tok, err := inst.Auth.Authenticate(ctx, creds)
	if err != nil {
		if enqueue && shouldEnqueue(ctx, err) {
			c := creds
			if inst.Retry.Enqueue(core.RetryOperation{
				Kind:        core.RetryAuthenticate,
				ProviderID:  inst.ID(),
				Credentials: &c,
			}, err) {
				log.Ctx(ctx).Info().Str("provider", inst.ID()).Msg("authentication queued for retry")
			}
		}
		return core.AuthToken{}, err
	}
	return tok, nil
}

// Refresh renews a stale token. A fresh token is returned unchanged.
func (s *AuthService) Refresh(ctx context.Context, inst *providers.Instance) (core.AuthToken, error) {
	return inst.Auth.Refresh(ctx)
}

// Revoke invalidates the token at the provider and locally.
func (s *AuthService) Revoke(ctx context.Context, inst *providers.Instance) error {
	return inst.Auth.Revoke(ctx)
}
