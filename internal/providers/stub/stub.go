// Package stub provides an in-process insurance provider. It speaks the same envelope
// protocol as a real provider and is used for demos, local development and tests.
package stub

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"

	"github.com/darmiel/insurelink/internal/core"
	"github.com/darmiel/insurelink/internal/wire"
)

const Type = "stub"

const (
	defaultTokenTTL      = time.Hour
	defaultInitialStatus = "submitted"
)

// Config holds the options of a stub provider.
type Config struct {
	// ClientID and ClientSecret are the accepted credentials.
	// If empty, any non-empty credentials are accepted.
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`

	// TokenTTL is the lifetime of issued access tokens.
	TokenTTL time.Duration `mapstructure:"token_ttl"`

	// SigningKey signs the issued access tokens. A random key is used if empty.
	SigningKey string `mapstructure:"signing_key"`

	// InitialStatus is the status of newly submitted claims.
	InitialStatus string `mapstructure:"initial_status"`

	// Latency is added to every exchange.
	Latency time.Duration `mapstructure:"latency"`
}

type accessClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
}

type storedClaim struct {
	claim     core.Claim
	status    string
	updatedAt time.Time
}

type fault struct {
	err  error
	code string
}

// Insurer is the simulated provider backend. Sessions opened from the same Insurer
// share its state.
type Insurer struct {
	cfg        Config
	codec      core.Codec
	signingKey []byte
	now        func() time.Time

	mu            sync.Mutex
	refreshTokens map[string]string // refresh token -> subject
	revoked       map[string]struct{}
	claims        map[string]*storedClaim
	calls         map[wire.Operation]int
	faults        map[wire.Operation][]fault
	sessions      atomic.Int32
}

type Option func(*Insurer)

// WithClock replaces the time source of the insurer.
func WithClock(now func() time.Time) Option {
	return func(i *Insurer) {
		i.now = now
	}
}

func New(codec core.Codec, cfg Config, opts ...Option) *Insurer {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.InitialStatus == "" {
		cfg.InitialStatus = defaultInitialStatus
	}
	key := []byte(cfg.SigningKey)
	if len(key) == 0 {
		key = make([]byte, 32)
		_, _ = rand.Read(key)
	}
	i := &Insurer{
		cfg:           cfg,
		codec:         codec,
		signingKey:    key,
		now:           time.Now,
		refreshTokens: make(map[string]string),
		revoked:       make(map[string]struct{}),
		claims:        make(map[string]*storedClaim),
		calls:         make(map[wire.Operation]int),
		faults:        make(map[wire.Operation][]fault),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// NewFromConfig creates an Insurer from the transport section of a provider config.
func NewFromConfig(cfg core.ProviderConfig, codec core.Codec) (*Insurer, error) {
	var conf Config

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:   nil,
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &conf,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder for %s provider '%s': %w", Type, cfg.ID, err)
	}
	if err := decoder.Decode(cfg.Transport.Config); err != nil {
		return nil, fmt.Errorf("failed to decode config for %s provider '%s': %w", Type, cfg.ID, err)
	}
	return New(codec, conf), nil
}

// Factory returns a SessionFactory opening sessions against this insurer.
func (i *Insurer) Factory() core.SessionFactory {
	return func(_ context.Context) (core.Session, error) {
		return i.Session(), nil
	}
}

// Session opens a new session.
func (i *Insurer) Session() core.Session {
	i.sessions.Add(1)
	return &session{insurer: i}
}

// SessionsOpened returns how many sessions were opened so far.
func (i *Insurer) SessionsOpened() int {
	return int(i.sessions.Load())
}

// Calls returns how many exchanges of op reached the insurer.
func (i *Insurer) Calls(op wire.Operation) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.calls[op]
}

// TotalCalls returns how many exchanges reached the insurer.
func (i *Insurer) TotalCalls() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	total := 0
	for _, n := range i.calls {
		total += n
	}
	return total
}

// FailNext makes the next n exchanges of op fail at the transport level with err.
func (i *Insurer) FailNext(op wire.Operation, n int, err error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for ; n > 0; n-- {
		i.faults[op] = append(i.faults[op], fault{err: err})
	}
}

// RejectNext makes the next exchange of op answer with the remote error code.
func (i *Insurer) RejectNext(op wire.Operation, code string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.faults[op] = append(i.faults[op], fault{code: code})
}

// SetClaimStatus changes the status of a stored claim.
func (i *Insurer) SetClaimStatus(claimID, status string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if c, ok := i.claims[claimID]; ok {
		c.status = status
		c.updatedAt = i.now()
	}
}

// RevokeAll invalidates every issued access token.
func (i *Insurer) RevokeAll() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.revoked["*"] = struct{}{}
}

type session struct {
	insurer *Insurer
	closed  atomic.Bool
}

func (s *session) Send(ctx context.Context, ex core.Exchange) ([]byte, error) {
	if s.closed.Load() {
		return nil, core.NewError(core.KindNetworkError, "session closed")
	}
	if d := s.insurer.cfg.Latency; d > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(d):
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.insurer.handle(ctx, ex)
}

func (s *session) Close() error {
	s.closed.Store(true)
	return nil
}

func (i *Insurer) handle(ctx context.Context, ex core.Exchange) ([]byte, error) {
	var req wire.Request
	if err := i.codec.Decode(ex.Payload, &req); err != nil {
		return nil, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.calls[req.Operation]++
	log.Ctx(ctx).Debug().Str("operation", string(req.Operation)).Msg("stub insurer received exchange")

	if queued := i.faults[req.Operation]; len(queued) > 0 {
		f := queued[0]
		i.faults[req.Operation] = queued[1:]
		if f.err != nil {
			return nil, f.err
		}
		return i.respond(req.Operation, nil, &wire.RemoteError{Code: f.code, Message: "injected fault"})
	}

	if req.SchemaVersion != wire.SchemaVersion {
		return i.respond(req.Operation, nil, &wire.RemoteError{
			Code:    wire.CodeBadRequest,
			Message: fmt.Sprintf("unsupported schema version %q", req.SchemaVersion),
		})
	}

	var (
		body   any
		remote *wire.RemoteError
	)
	switch req.Operation {
	case wire.OpToken:
		body, remote = i.handleToken(req.Body)
	case wire.OpRefresh:
		body, remote = i.handleRefresh(req.Body)
	case wire.OpRevoke:
		body, remote = i.withToken(ex.Token, func(c *accessClaims) (any, *wire.RemoteError) {
			return i.handleRevoke(c)
		})
	case wire.OpSubmitClaim, wire.OpUpdateClaim:
		body, remote = i.withToken(ex.Token, func(_ *accessClaims) (any, *wire.RemoteError) {
			return i.handleClaim(req.Operation, req.Body)
		})
	case wire.OpClaimStatus:
		body, remote = i.withToken(ex.Token, func(_ *accessClaims) (any, *wire.RemoteError) {
			return i.handleStatus(req.Body)
		})
	case wire.OpSynchronize:
		body, remote = i.withToken(ex.Token, func(_ *accessClaims) (any, *wire.RemoteError) {
			return i.handleSync(req.Body)
		})
	default:
		remote = &wire.RemoteError{Code: wire.CodeBadRequest, Message: fmt.Sprintf("unknown operation %q", req.Operation)}
	}
	return i.respond(req.Operation, body, remote)
}

func (i *Insurer) respond(op wire.Operation, body any, remote *wire.RemoteError) ([]byte, error) {
	resp := wire.Response{
		SchemaVersion: wire.SchemaVersion,
		Operation:     op,
		Error:         remote,
	}
	if remote == nil && body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding stub response: %w", err)
		}
		resp.Body = raw
	}
	return i.codec.Encode(resp)
}

func (i *Insurer) withToken(token string, fn func(c *accessClaims) (any, *wire.RemoteError)) (any, *wire.RemoteError) {
	claims, err := i.verify(token)
	if err != nil {
		return nil, &wire.RemoteError{Code: wire.CodeUnauthorized, Message: err.Error()}
	}
	return fn(claims)
}

func (i *Insurer) mint(subject, scope string) (wire.TokenResponse, error) {
	now := i.now()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.TokenTTL)),
		},
		Scope: scope,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.signingKey)
	if err != nil {
		return wire.TokenResponse{}, fmt.Errorf("signing access token: %w", err)
	}

	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return wire.TokenResponse{}, fmt.Errorf("generating refresh token: %w", err)
	}
	refresh := hex.EncodeToString(raw)
	i.refreshTokens[refresh] = subject

	return wire.TokenResponse{
		AccessToken:  signed,
		RefreshToken: refresh,
		ExpiresIn:    int64(i.cfg.TokenTTL / time.Second),
		TokenType:    "Bearer",
	}, nil
}

func (i *Insurer) verify(token string) (*accessClaims, error) {
	if token == "" {
		return nil, fmt.Errorf("missing access token")
	}
	var claims accessClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return i.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, fmt.Errorf("invalid access token: %w", err)
	}
	if _, ok := i.revoked["*"]; ok {
		return nil, fmt.Errorf("access token revoked")
	}
	if _, ok := i.revoked[claims.ID]; ok {
		return nil, fmt.Errorf("access token revoked")
	}
	return &claims, nil
}

func (i *Insurer) handleToken(raw json.RawMessage) (any, *wire.RemoteError) {
	var req wire.TokenRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, &wire.RemoteError{Code: wire.CodeBadRequest, Message: err.Error()}
	}
	if req.ClientID == "" || req.ClientSecret == "" {
		return nil, &wire.RemoteError{Code: wire.CodeInvalidCredentials, Message: "missing client credentials"}
	}
	if i.cfg.ClientID != "" && (req.ClientID != i.cfg.ClientID || req.ClientSecret != i.cfg.ClientSecret) {
		return nil, &wire.RemoteError{Code: wire.CodeInvalidCredentials, Message: "unknown client"}
	}
	delete(i.revoked, "*")
	resp, err := i.mint(req.ClientID, req.Scope)
	if err != nil {
		return nil, &wire.RemoteError{Code: wire.CodeUnavailable, Message: err.Error()}
	}
	return resp, nil
}

func (i *Insurer) handleRefresh(raw json.RawMessage) (any, *wire.RemoteError) {
	var req wire.TokenRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, &wire.RemoteError{Code: wire.CodeBadRequest, Message: err.Error()}
	}
	subject, ok := i.refreshTokens[req.RefreshToken]
	if !ok {
		return nil, &wire.RemoteError{Code: wire.CodeInvalidCredentials, Message: "unknown refresh token"}
	}
	// refresh tokens are single use
	delete(i.refreshTokens, req.RefreshToken)
	delete(i.revoked, "*")
	resp, err := i.mint(subject, "")
	if err != nil {
		return nil, &wire.RemoteError{Code: wire.CodeUnavailable, Message: err.Error()}
	}
	return resp, nil
}

func (i *Insurer) handleRevoke(c *accessClaims) (any, *wire.RemoteError) {
	i.revoked[c.ID] = struct{}{}
	for tok, subject := range i.refreshTokens {
		if subject == c.Subject {
			delete(i.refreshTokens, tok)
		}
	}
	return wire.RevokeResponse{Revoked: true}, nil
}

func (i *Insurer) handleClaim(op wire.Operation, raw json.RawMessage) (any, *wire.RemoteError) {
	var req wire.ClaimRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, &wire.RemoteError{Code: wire.CodeBadRequest, Message: err.Error()}
	}
	if req.Claim.ID == "" || req.Claim.Amount <= 0 {
		return nil, &wire.RemoteError{Code: wire.CodeInvalidClaim, Message: "claim id and positive amount required"}
	}

	now := i.now()
	status := i.cfg.InitialStatus
	if op == wire.OpUpdateClaim {
		status = "updated"
	}
	i.claims[req.Claim.ID] = &storedClaim{
		claim:     req.Claim,
		status:    status,
		updatedAt: now,
	}
	return wire.ClaimResponse{
		ClaimID:     req.Claim.ID,
		Status:      status,
		SubmittedAt: now,
		Message:     fmt.Sprintf("claim %s accepted", req.Claim.ID),
	}, nil
}

func (i *Insurer) handleStatus(raw json.RawMessage) (any, *wire.RemoteError) {
	var req wire.ClaimStatusRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, &wire.RemoteError{Code: wire.CodeBadRequest, Message: err.Error()}
	}
	c, ok := i.claims[req.ClaimID]
	if !ok {
		return nil, &wire.RemoteError{Code: wire.CodeNotFound, Message: fmt.Sprintf("claim %s not found", req.ClaimID)}
	}
	next := i.now().Add(24 * time.Hour)
	return wire.ClaimStatusResponse{
		ClaimID:     req.ClaimID,
		Status:      c.status,
		LastUpdated: c.updatedAt,
		NextUpdate:  &next,
	}, nil
}

func (i *Insurer) handleSync(raw json.RawMessage) (any, *wire.RemoteError) {
	var req wire.SyncRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, &wire.RemoteError{Code: wire.CodeBadRequest, Message: err.Error()}
	}

	now := i.now()
	data := make(map[core.DataType]json.RawMessage, len(req.DataTypes))
	for _, dt := range req.DataTypes {
		var records []any
		switch dt {
		case core.DataClaims:
			for _, c := range i.claims {
				if req.Since != nil && !c.updatedAt.After(*req.Since) {
					continue
				}
				records = append(records, map[string]any{
					"claim_id":   c.claim.ID,
					"status":     c.status,
					"amount":     c.claim.Amount,
					"updated_at": c.updatedAt,
				})
			}
		default:
			records = append(records, map[string]any{
				"type":         dt,
				"generated_at": now,
			})
		}
		if records == nil {
			records = []any{}
		}
		encoded, err := json.Marshal(records)
		if err != nil {
			return nil, &wire.RemoteError{Code: wire.CodeUnavailable, Message: err.Error()}
		}
		data[dt] = encoded
	}
	return wire.SyncResponse{Data: data, ServerTime: now}, nil
}
