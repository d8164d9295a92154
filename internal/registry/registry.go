// Package registry is the composition root of the integration layer. It owns one
// provider instance per registered provider and exposes the public operations.
package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/insurelink/internal/audit"
	"github.com/darmiel/insurelink/internal/compliance"
	"github.com/darmiel/insurelink/internal/core"
	"github.com/darmiel/insurelink/internal/logging"
	"github.com/darmiel/insurelink/internal/metrics"
	"github.com/darmiel/insurelink/internal/providers"
	"github.com/darmiel/insurelink/internal/retry"
	"github.com/darmiel/insurelink/internal/service"
	"github.com/darmiel/insurelink/internal/tasks"
	"github.com/darmiel/insurelink/internal/telemetry"
	"github.com/darmiel/insurelink/internal/validation"
)

// DefaultRetryInterval is how often due retry entries are drained in the background.
const DefaultRetryInterval = 30 * time.Second

type Options struct {
	Auditor    core.Auditor
	Metrics    *metrics.Collector
	Compliance *compliance.Monitor

	// Tasks schedules the background retry drain and the periodic synchronization.
	// Without it nothing runs in the background.
	Tasks *tasks.Manager

	RetryPolicy retry.Policy

	// RetryInterval is the period of the background retry drain. Negative disables it.
	RetryInterval time.Duration

	// Sessions may return a session factory for a provider, replacing the one derived
	// from its transport config. Returning nil falls back to the config.
	Sessions func(cfg core.ProviderConfig) core.SessionFactory

	Now func() time.Time
}

// Registry holds the registered providers. Operations on different providers never
// share a lock beyond the short lookup in the provider map.
type Registry struct {
	opts     Options
	emitter  *telemetry.Emitter
	services *service.Services

	mu        sync.RWMutex
	providers map[string]*providers.Instance
}

func New(opts Options) *Registry {
	if opts.Auditor == nil {
		opts.Auditor = audit.NewNoopAuditor()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCollector()
	}
	if opts.Compliance == nil {
		rules, err := compliance.Compile(compliance.DefaultRules())
		if err != nil {
			// the default rules are part of the binary
			panic(fmt.Sprintf("compiling default compliance rules: %v", err))
		}
		opts.Compliance = compliance.NewMonitor(rules)
	}
	if opts.RetryInterval == 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	emitter := telemetry.New(opts.Auditor, opts.Metrics, opts.Compliance)
	emitter.SetClock(opts.Now)
	return &Registry{
		opts:      opts,
		emitter:   emitter,
		services:  service.New(emitter),
		providers: make(map[string]*providers.Instance),
	}
}

func retryTask(id string) string { return "retry:" + id }
func syncTask(id string) string  { return "sync:" + id }

// report audits a registry action. Failures also reach metrics and compliance.
func (r *Registry) report(ctx context.Context, action, id string, err error, meta map[string]any) {
	if err != nil {
		r.emitter.Operation(ctx, telemetry.Event{Provider: id, Operation: action, Err: err, Metadata: meta})
		return
	}
	r.emitter.Audit(ctx, action, id, nil, meta)
}

func notFound(id string) error {
	return &core.Error{Kind: core.KindProviderNotFound, Provider: id, Msg: fmt.Sprintf("provider '%s' is not registered", id)}
}

// Register validates cfg and builds a fresh instance for it.
func (r *Registry) Register(ctx context.Context, cfg core.ProviderConfig) (err error) {
	defer func() {
		r.report(ctx, "provider.register", cfg.ID, err, map[string]any{
			"endpoint":  cfg.Endpoint,
			"transport": cfg.Transport.Type,
		})
	}()

	if err = validation.ValidateProviderConfig(cfg); err != nil {
		return err
	}

	var factory core.SessionFactory
	if r.opts.Sessions != nil {
		factory = r.opts.Sessions(cfg)
	}

	r.mu.Lock()
	if _, ok := r.providers[cfg.ID]; ok {
		r.mu.Unlock()
		return core.NewError(core.KindInvalidProviderConfig, "provider '%s' is already registered", cfg.ID)
	}
	inst, err := providers.NewInstance(cfg, providers.Options{
		Emitter:     r.emitter,
		RetryPolicy: r.opts.RetryPolicy,
		Factory:     factory,
		Now:         r.opts.Now,
	})
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.providers[cfg.ID] = inst
	r.mu.Unlock()

	// drop what was recorded for the id while it was not registered
	r.opts.Metrics.Reset(cfg.ID)
	r.opts.Compliance.Reset(cfg.ID)

	r.schedule(inst)

	if cfg.AutoConnect {
		if cerr := inst.Auth.Connect(ctx); cerr != nil {
			// the session is opened again on the first authentication
			log.Ctx(ctx).Warn().Err(cerr).Str("provider", cfg.ID).Msg("auto-connect failed")
		}
	}

	log.Ctx(ctx).Info().Str("provider", cfg.ID).Str("endpoint", cfg.Endpoint).Msg("provider registered")
	return nil
}

func (r *Registry) schedule(inst *providers.Instance) {
	if r.opts.Tasks == nil {
		return
	}
	id := inst.ID()

	if r.opts.RetryInterval > 0 {
		err := r.opts.Tasks.Register(retryTask(id), r.opts.RetryInterval, 0, func(ctx context.Context, logger logging.InternalLogger) error {
			report := r.services.Retry.Drain(ctx, inst, false)
			if report.Succeeded+report.Rescheduled+len(report.PermanentlyFailed) > 0 {
				logger.Info("retried: %d succeeded, %d rescheduled, %d failed permanently",
					report.Succeeded, report.Rescheduled, len(report.PermanentlyFailed))
			}
			return nil
		})
		if err != nil {
			log.Warn().Err(err).Str("provider", id).Msg("cannot schedule retry drain")
		}
	}

	if interval := inst.Config.SyncInterval; interval > 0 {
		err := r.opts.Tasks.Register(syncTask(id), interval, inst.Config.EffectiveTimeout(), func(ctx context.Context, logger logging.InternalLogger) error {
			if _, ok := inst.Auth.Token(); !ok {
				logger.Debug("not authenticated, skipping synchronization")
				return nil
			}
			res, err := r.services.Sync.Synchronize(ctx, inst, nil)
			if err != nil {
				return err
			}
			logger.Info("synchronized %d data types", len(res.Data))
			return nil
		})
		if err != nil {
			log.Warn().Err(err).Str("provider", id).Msg("cannot schedule synchronization")
		}
	}
}

// Remove closes the session of a provider and drops everything held for it.
func (r *Registry) Remove(ctx context.Context, id string) (err error) {
	defer func() {
		r.report(ctx, "provider.remove", id, err, nil)
	}()

	r.mu.Lock()
	inst, ok := r.providers[id]
	delete(r.providers, id)
	r.mu.Unlock()
	if !ok {
		return notFound(id)
	}

	if r.opts.Tasks != nil {
		_ = r.opts.Tasks.Unregister(retryTask(id))
		_ = r.opts.Tasks.Unregister(syncTask(id))
	}
	if cerr := inst.Close(ctx); cerr != nil {
		log.Ctx(ctx).Warn().Err(cerr).Str("provider", id).Msg("closing provider session")
	}
	r.opts.Metrics.Reset(id)
	r.opts.Compliance.Reset(id)

	log.Ctx(ctx).Info().Str("provider", id).Msg("provider removed")
	return nil
}

// List returns the configs of all providers, ordered by id.
func (r *Registry) List() []core.ProviderConfig {
	r.mu.RLock()
	out := make([]core.ProviderConfig, 0, len(r.providers))
	for _, inst := range r.providers {
		out = append(out, inst.Config)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b core.ProviderConfig) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Get returns the instance of a provider.
func (r *Registry) Get(id string) (*providers.Instance, error) {
	r.mu.RLock()
	inst, ok := r.providers[id]
	r.mu.RUnlock()
	if !ok {
		return nil, notFound(id)
	}
	return inst, nil
}

// Reconcile registers configs that are new, replaces changed ones and removes providers
// that are no longer listed.
func (r *Registry) Reconcile(ctx context.Context, configs []core.ProviderConfig) error {
	wanted := make(map[string]core.ProviderConfig, len(configs))
	for _, cfg := range configs {
		wanted[cfg.ID] = cfg
	}

	var errs []error
	for _, current := range r.List() {
		next, keep := wanted[current.ID]
		if keep && next.Equal(current) {
			delete(wanted, current.ID)
			continue
		}
		if err := r.Remove(ctx, current.ID); err != nil {
			errs = append(errs, err)
		}
	}
	for _, cfg := range configs {
		if _, ok := wanted[cfg.ID]; !ok {
			continue
		}
		if err := r.Register(ctx, cfg); err != nil {
			errs = append(errs, fmt.Errorf("registering provider '%s': %w", cfg.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Close removes every provider.
func (r *Registry) Close(ctx context.Context) error {
	var errs []error
	for _, cfg := range r.List() {
		if err := r.Remove(ctx, cfg.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
