package providers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/insurelink/internal/auth"
	"github.com/darmiel/insurelink/internal/cache"
	"github.com/darmiel/insurelink/internal/core"
	"github.com/darmiel/insurelink/internal/encryption"
	"github.com/darmiel/insurelink/internal/ratelimit"
	"github.com/darmiel/insurelink/internal/retry"
	"github.com/darmiel/insurelink/internal/telemetry"
	"github.com/darmiel/insurelink/internal/wire"
)

// Options are shared by all instances built by a registry.
type Options struct {
	Emitter     *telemetry.Emitter
	RetryPolicy retry.Policy

	// Factory replaces the session opener derived from the transport config.
	Factory core.SessionFactory

	Now func() time.Time
}

// Instance is the runtime state of one registered provider. Nothing in it is shared
// with other providers.
type Instance struct {
	Config core.ProviderConfig
	Codec  core.Codec
	Auth   *auth.Manager

	// Limiter admits data requests. Token requests go through a second limiter with
	// the same policy owned by Auth, which doubles the total budget of the provider.
	Limiter *ratelimit.Limiter

	Cache   *cache.Store
	Retry   *retry.Queue
	Emitter *telemetry.Emitter

	now func() time.Time
}

// NewInstance builds a provider instance from a validated config.
func NewInstance(cfg core.ProviderConfig, opts Options) (*Instance, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	codec, err := encryption.FromConfig(cfg.Encryption)
	if err != nil {
		return nil, core.Reclassify(core.KindInvalidProviderConfig, err, "building codec")
	}

	factory := opts.Factory
	if factory == nil {
		if factory, err = NewSessionFactory(cfg, codec); err != nil {
			return nil, err
		}
	}

	policy := cfg.EffectiveRateLimit()
	queue := retry.New(cfg.ID, opts.RetryPolicy)
	queue.SetClock(opts.Now)

	inst := &Instance{
		Config:  cfg,
		Codec:   codec,
		Limiter: ratelimit.New(policy),
		Cache:   cache.New(),
		Retry:   queue,
		Emitter: opts.Emitter,
		now:     opts.Now,
	}
	inst.Auth = auth.New(auth.Options{
		Provider:   cfg.ID,
		Factory:    factory,
		Codec:      codec,
		APIVersion: cfg.APIVersion,
		Timeout:    cfg.EffectiveTimeout(),
		// own window, so re-authentication is never starved by data traffic
		Limiter:    ratelimit.New(policy),
		Emitter:    opts.Emitter,
		Now:        opts.Now,
	})

	log.Debug().
		Str("provider", describe(cfg)).
		Int("per_minute", policy.RequestsPerMinute).
		Int("per_hour", policy.RequestsPerHour).
		Msg("provider instance built")
	return inst, nil
}

func (i *Instance) ID() string {
	return i.Config.ID
}

func (i *Instance) Now() time.Time {
	return i.now()
}

// Admit returns a fresh token and consumes one permit of the data limiter.
// The permit is consumed before any request is sent and is not returned on failure.
func (i *Instance) Admit(ctx context.Context) (core.AuthToken, core.Session, error) {
	tok, err := i.Auth.EnsureFresh(ctx)
	if err != nil {
		return core.AuthToken{}, nil, err
	}
	sess := i.Auth.Session()
	if sess == nil {
		return core.AuthToken{}, nil, core.NewError(core.KindNoActiveSession, "no open session")
	}
	if err := i.Limiter.Acquire(i.now()); err != nil {
		return core.AuthToken{}, nil, err
	}
	return tok, sess, nil
}

// Client returns a wire client bound to sess.
func (i *Instance) Client(sess core.Session) wire.Client {
	return wire.Client{
		Session:    sess,
		Codec:      i.Codec,
		APIVersion: i.Config.APIVersion,
		Timeout:    i.Config.EffectiveTimeout(),
	}
}

// Close closes the session and drops everything held for the provider.
func (i *Instance) Close(ctx context.Context) error {
	err := i.Auth.Close(ctx)
	i.Cache.Purge()
	i.Limiter.Reset()
	i.Auth.Limiter().Reset()
	i.Retry.Purge()
	return err
}
