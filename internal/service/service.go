// Package service implements the provider operations on top of a provider instance:
// authentication, claims, synchronization and the re-execution of queued retries.
package service

import (
	"context"
	"errors"

	"github.com/darmiel/insurelink/internal/core"
	"github.com/darmiel/insurelink/internal/providers"
	"github.com/darmiel/insurelink/internal/telemetry"
	"github.com/darmiel/insurelink/internal/wire"
)

// Services bundles the operation handlers shared by all providers.
type Services struct {
	Auth   *AuthService
	Claims *ClaimsService
	Sync   *SyncService
	Retry  *RetryService
}

func New(emitter *telemetry.Emitter) *Services {
	s := &Services{
		Auth:   &AuthService{emitter: emitter},
		Claims: &ClaimsService{emitter: emitter},
		Sync:   &SyncService{emitter: emitter},
	}
	s.Retry = &RetryService{emitter: emitter, auth: s.Auth, claims: s.Claims}
	return s
}

// call performs an authenticated exchange. If the provider rejects the access token,
// the token is renewed once and the exchange repeated; a second rejection drops the token.
func call(ctx context.Context, inst *providers.Instance, op wire.Operation, in, out any) error {
	tok, sess, err := inst.Admit(ctx)
	if err != nil {
		return err
	}

	err = inst.Client(sess).Do(ctx, op, tok, in, out)
	if !errors.Is(err, core.ErrUnauthorized) {
		return err
	}

	tok, err = inst.Auth.Reauthorize(ctx, tok.AccessToken)
	if err != nil {
		return &core.Error{Kind: core.KindNoActiveToken, Msg: "access token rejected and could not be renewed", Err: err}
	}
	if err := inst.Limiter.Acquire(inst.Now()); err != nil {
		return err
	}
	err = inst.Client(sess).Do(ctx, op, tok, in, out)
	if errors.Is(err, core.ErrUnauthorized) {
		inst.Auth.Invalidate(ctx, err)
		return core.NewError(core.KindNoActiveToken, "access token rejected after renewal")
	}
	return err
}

// shouldEnqueue reports whether a failed operation is queued for re-execution.
// Infrastructure failures are, unless the caller itself gave up.
func shouldEnqueue(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.Canceled) {
		return false
	}
	switch core.KindOf(err) {
	case core.KindNetworkError, core.KindEncryptionError:
		return true
	}
	return false
}
