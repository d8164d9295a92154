// Package auth manages the transport session and the access token of a single provider.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/insurelink/internal/audit"
	"github.com/darmiel/insurelink/internal/core"
	"github.com/darmiel/insurelink/internal/ratelimit"
	"github.com/darmiel/insurelink/internal/telemetry"
	"github.com/darmiel/insurelink/internal/wire"
)

type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticating  State = "authenticating"
	StateAuthenticated   State = "authenticated"
	StateRefreshing      State = "refreshing"
	StateRevoked         State = "revoked"
	StateExpired         State = "expired"
)

// Options configure a Manager.
type Options struct {
	Provider   string
	Factory    core.SessionFactory
	Codec      core.Codec
	APIVersion string
	Timeout    time.Duration

	// Limiter admits token requests. It is separate from the limiter of data requests,
	// so with both on the same policy a provider may see up to twice the configured
	// requests per minute and per hour.
	Limiter *ratelimit.Limiter

	Emitter *telemetry.Emitter
	Now     func() time.Time
}

// Manager owns the session and the single live token of a provider.
// Network transitions (authenticate, refresh, revoke) are serialized by opMu,
// the token itself is guarded by mu so that readers never wait for the network.
type Manager struct {
	opts Options

	opMu sync.Mutex

	mu      sync.RWMutex
	state   State
	token   *core.AuthToken
	session core.Session
}

func New(opts Options) *Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.New(core.RateLimitPolicy{
			RequestsPerMinute: core.DefaultRequestsPerMinute,
			RequestsPerHour:   core.DefaultRequestsPerHour,
		})
	}
	return &Manager{
		opts:  opts,
		state: StateUnauthenticated,
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Token returns a copy of the live token.
func (m *Manager) Token() (core.AuthToken, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == nil {
		return core.AuthToken{}, false
	}
	return *m.token, true
}

// Session returns the open session or nil.
func (m *Manager) Session() core.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

func (m *Manager) HasSession() bool {
	return m.Session() != nil
}

// Limiter returns the limiter admitting token requests.
func (m *Manager) Limiter() *ratelimit.Limiter {
	return m.opts.Limiter
}

// Connect opens the transport session if none is open.
func (m *Manager) Connect(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	_, err := m.ensureSession(ctx)
	return err
}

func (m *Manager) ensureSession(ctx context.Context) (core.Session, error) {
	if s := m.Session(); s != nil {
		return s, nil
	}
	if m.opts.Factory == nil {
		return nil, core.NewError(core.KindNoActiveSession, "no session factory")
	}
	s, err := m.opts.Factory(ctx)
	if err != nil {
		return nil, core.WrapError(core.KindNoActiveSession, err, "opening session")
	}
	m.mu.Lock()
	m.session = s
	m.mu.Unlock()

	m.opts.Emitter.Audit(ctx, "session.open", m.opts.Provider, nil, nil)
	return s, nil
}

func (m *Manager) client(s core.Session) wire.Client {
	return wire.Client{
		Session:    s,
		Codec:      m.opts.Codec,
		APIVersion: m.opts.APIVersion,
		Timeout:    m.opts.Timeout,
	}
}

// setState changes the state and emits the transition.
// If tok is not nil it replaces the stored token, clear removes it.
func (m *Manager) setState(ctx context.Context, to State, tok *core.AuthToken, clear bool, cause error) {
	m.mu.Lock()
	from := m.state
	m.state = to
	switch {
	case tok != nil:
		cpy := *tok
		m.token = &cpy
	case clear:
		m.token = nil
	}
	var fingerprint string
	if m.token != nil {
		fingerprint = audit.Fingerprint(m.token.AccessToken)
	}
	m.mu.Unlock()

	meta := map[string]any{}
	if fingerprint != "" {
		meta["token_fingerprint"] = fingerprint
	}
	m.opts.Emitter.Transition(ctx, m.opts.Provider, string(from), string(to), cause, meta)
	log.Ctx(ctx).Debug().
		Str("provider", m.opts.Provider).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("auth state changed")
}

// Authenticate exchanges credentials for a token and stores it as the live token.
func (m *Manager) Authenticate(ctx context.Context, creds core.Credentials) (core.AuthToken, error) {
	if creds.Empty() {
		err := core.NewError(core.KindInvalidCredentials, "client id and secret are required")
		m.opts.Emitter.Operation(ctx, telemetry.Event{Provider: m.opts.Provider, Operation: string(wire.OpToken), Started: m.opts.Now(), Err: err})
		return core.AuthToken{}, err
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	started := m.opts.Now()
	if err := m.opts.Limiter.Acquire(started); err != nil {
		m.opts.Emitter.Operation(ctx, telemetry.Event{Provider: m.opts.Provider, Operation: string(wire.OpToken), Started: started, Err: err})
		return core.AuthToken{}, err
	}

	m.mu.RLock()
	prevState, prevToken := m.state, m.token
	m.mu.RUnlock()
	m.setState(ctx, StateAuthenticating, nil, false, nil)

	tok, err := m.requestToken(ctx, creds)
	m.opts.Emitter.Operation(ctx, telemetry.Event{Provider: m.opts.Provider, Operation: string(wire.OpToken), Started: started, Err: err})
	if err != nil {
		if ctx.Err() != nil || core.IsTransient(err) {
			// nothing was decided by the provider, restore what we had
			m.setState(ctx, prevState, prevToken, prevToken == nil, err)
		} else {
			m.setState(ctx, StateUnauthenticated, nil, true, err)
		}
		return core.AuthToken{}, err
	}

	m.setState(ctx, StateAuthenticated, &tok, false, nil)
	return tok, nil
}

func (m *Manager) requestToken(ctx context.Context, creds core.Credentials) (core.AuthToken, error) {
	sess, err := m.ensureSession(ctx)
	if err != nil {
		return core.AuthToken{}, err
	}

	var resp wire.TokenResponse
	if err := m.client(sess).Do(ctx, wire.OpToken, core.AuthToken{}, wire.NewCredentialsRequest(creds), &resp); err != nil {
		return core.AuthToken{}, authError(err)
	}
	if resp.AccessToken == "" {
		return core.AuthToken{}, core.NewError(core.KindInvalidAuthResponse, "empty access token")
	}
	return resp.AuthToken(m.opts.Now()), nil
}

// authError maps failures of token requests into the authentication taxonomy.
func authError(err error) error {
	switch core.KindOf(err) {
	case core.KindInvalidResponse:
		return &core.Error{Kind: core.KindInvalidAuthResponse, Msg: "invalid token response", Err: err}
	case core.ErrUnauthorized.Kind:
		return core.NewError(core.KindInvalidCredentials, "provider rejected the credentials")
	}
	return err
}

// Refresh renews the live token if it is stale and returns the token in use.
// A fresh token is returned without contacting the provider.
func (m *Manager) Refresh(ctx context.Context) (core.AuthToken, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	tok, ok := m.Token()
	if !ok {
		return core.AuthToken{}, core.NewError(core.KindNoActiveToken, "not authenticated")
	}
	if tok.Fresh(m.opts.Now()) {
		return tok, nil
	}
	return m.refreshLocked(ctx, tok)
}

// Reauthorize renews the token after the provider rejected rejected.
// If the token was already replaced in the meantime, the new one is returned.
func (m *Manager) Reauthorize(ctx context.Context, rejected string) (core.AuthToken, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	tok, ok := m.Token()
	if !ok {
		return core.AuthToken{}, core.NewError(core.KindNoActiveToken, "not authenticated")
	}
	if tok.AccessToken != rejected {
		return tok, nil
	}
	return m.refreshLocked(ctx, tok)
}

// EnsureFresh returns a token that can be used for the next request, refreshing it first
// if it is stale.
func (m *Manager) EnsureFresh(ctx context.Context) (core.AuthToken, error) {
	tok, ok := m.Token()
	if !ok {
		return core.AuthToken{}, core.NewError(core.KindNoActiveToken, "not authenticated")
	}
	if tok.Fresh(m.opts.Now()) {
		return tok, nil
	}
	return m.Refresh(ctx)
}

// refreshLocked exchanges the refresh token of tok. The caller must hold opMu.
func (m *Manager) refreshLocked(ctx context.Context, tok core.AuthToken) (core.AuthToken, error) {
	if tok.RefreshToken == "" {
		m.setState(ctx, StateExpired, nil, true, nil)
		err := core.NewError(core.KindNoActiveToken, "token is stale and cannot be refreshed")
		m.setState(ctx, StateUnauthenticated, nil, true, err)
		return core.AuthToken{}, err
	}

	sess := m.Session()
	if sess == nil {
		err := core.NewError(core.KindNoActiveSession, "no open session to refresh the token")
		m.setState(ctx, StateUnauthenticated, nil, true, err)
		return core.AuthToken{}, err
	}

	started := m.opts.Now()
	if err := m.opts.Limiter.Acquire(started); err != nil {
		m.opts.Emitter.Operation(ctx, telemetry.Event{Provider: m.opts.Provider, Operation: string(wire.OpRefresh), Started: started, Err: err})
		return core.AuthToken{}, err
	}

	m.setState(ctx, StateRefreshing, nil, false, nil)

	var resp wire.TokenResponse
	err := m.client(sess).Do(ctx, wire.OpRefresh, core.AuthToken{}, wire.NewRefreshRequest(tok.RefreshToken), &resp)
	if err == nil && resp.AccessToken == "" {
		err = core.NewError(core.KindInvalidAuthResponse, "empty access token")
	}
	if err != nil {
		err = refreshError(err)
		m.opts.Emitter.Operation(ctx, telemetry.Event{Provider: m.opts.Provider, Operation: string(wire.OpRefresh), Started: started, Err: err})
		m.setState(ctx, StateUnauthenticated, nil, true, err)
		return core.AuthToken{}, err
	}

	next := resp.AuthToken(m.opts.Now())
	if next.RefreshToken == "" {
		// providers without rotation keep the previous refresh token valid
		next.RefreshToken = tok.RefreshToken
	}
	m.opts.Emitter.Operation(ctx, telemetry.Event{Provider: m.opts.Provider, Operation: string(wire.OpRefresh), Started: started})
	m.setState(ctx, StateAuthenticated, &next, false, nil)
	return next, nil
}

// refreshError maps failures of refresh requests. Transport failures leave us without a
// usable session, everything else means the provider did not hand out a valid token.
func refreshError(err error) error {
	var e *core.Error
	if errors.As(err, &e) && (e.Kind == core.KindNetworkError || e.Kind == core.KindNoActiveSession) {
		return &core.Error{Kind: core.KindNoActiveSession, Msg: "refreshing token failed", Timeout: e.Timeout, Err: err}
	}
	if core.KindOf(err) == core.KindInvalidAuthResponse {
		return err
	}
	return &core.Error{Kind: core.KindInvalidAuthResponse, Msg: "refreshing token failed", Err: err}
}

// Revoke invalidates the live token at the provider and clears it locally.
// The local token is cleared even if the provider could not be reached.
func (m *Manager) Revoke(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	tok, ok := m.Token()
	if !ok {
		return core.NewError(core.KindNoActiveToken, "nothing to revoke")
	}
	sess := m.Session()
	if sess == nil {
		return core.NewError(core.KindNoActiveSession, "no open session to revoke the token")
	}

	started := m.opts.Now()
	if err := m.opts.Limiter.Acquire(started); err != nil {
		m.opts.Emitter.Operation(ctx, telemetry.Event{Provider: m.opts.Provider, Operation: string(wire.OpRevoke), Started: started, Err: err})
		return err
	}

	var resp wire.RevokeResponse
	err := m.client(sess).Do(ctx, wire.OpRevoke, tok, wire.RevokeRequest{Token: tok.AccessToken}, &resp)
	if errors.Is(err, core.ErrUnauthorized) {
		// the provider does not know the token anymore
		err = nil
	}
	if err != nil {
		err = &core.Error{Kind: core.KindNoActiveSession, Msg: "provider did not confirm revocation", Err: err}
	}
	m.opts.Emitter.Operation(ctx, telemetry.Event{
		Provider:  m.opts.Provider,
		Operation: string(wire.OpRevoke),
		Started:   started,
		Err:       err,
		Metadata:  map[string]any{"token_fingerprint": audit.Fingerprint(tok.AccessToken)},
	})

	m.setState(ctx, StateRevoked, nil, true, err)
	m.setState(ctx, StateUnauthenticated, nil, true, nil)
	return err
}

// Invalidate drops the live token without contacting the provider.
func (m *Manager) Invalidate(ctx context.Context, cause error) {
	m.mu.RLock()
	had := m.token != nil
	m.mu.RUnlock()
	if !had {
		return
	}
	m.setState(ctx, StateUnauthenticated, nil, true, cause)
}

// Close drops the token and closes the session.
func (m *Manager) Close(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	sess := m.session
	m.session = nil
	hadToken := m.token != nil
	m.token = nil
	m.state = StateUnauthenticated
	m.mu.Unlock()

	if hadToken {
		m.opts.Emitter.Audit(ctx, "auth.transition", m.opts.Provider, nil, map[string]any{"to": string(StateUnauthenticated), "reason": "closed"})
	}
	if sess == nil {
		return nil
	}
	m.opts.Emitter.Audit(ctx, "session.close", m.opts.Provider, nil, nil)
	return sess.Close()
}
