package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/darmiel/insurelink/internal/audit"
	"github.com/darmiel/insurelink/internal/core"
	"github.com/darmiel/insurelink/internal/encryption"
	"github.com/darmiel/insurelink/internal/metrics"
	"github.com/darmiel/insurelink/internal/providers/stub"
	"github.com/darmiel/insurelink/internal/ratelimit"
	"github.com/darmiel/insurelink/internal/telemetry"
	"github.com/darmiel/insurelink/internal/wire"
)

var creds = core.Credentials{ClientID: "id", ClientSecret: "secret"}

type fixture struct {
	now     time.Time
	insurer *stub.Insurer
	manager *Manager
	auditor *audit.InMemoryAuditor
	metrics *metrics.Collector
	limiter *ratelimit.Limiter
}

func (f *fixture) clock() time.Time { return f.now }

func newFixture(t *testing.T, cfg stub.Config, policy core.RateLimitPolicy) *fixture {
	t.Helper()
	f := &fixture{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	codec := encryption.Plain{}
	f.insurer = stub.New(codec, cfg, stub.WithClock(f.clock))
	f.auditor = audit.NewInMemoryAuditor()
	f.metrics = metrics.NewCollector()
	f.limiter = ratelimit.New(policy)
	f.manager = New(Options{
		Provider: "acme",
		Factory:  f.insurer.Factory(),
		Codec:    codec,
		Timeout:  time.Second,
		Limiter:  f.limiter,
		Emitter:  telemetry.New(f.auditor, f.metrics, nil),
		Now:      f.clock,
	})
	return f
}

var defaultPolicy = core.RateLimitPolicy{RequestsPerMinute: 60, RequestsPerHour: 1000}

func TestManager_Authenticate(t *testing.T) {
	f := newFixture(t, stub.Config{}, defaultPolicy)

	tok, err := f.manager.Authenticate(context.Background(), creds)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if tok.AccessToken == "" || tok.TokenType != "Bearer" {
		t.Fatalf("unexpected token %+v", tok)
	}
	if !tok.ExpiresAt.Equal(f.now.Add(time.Hour)) {
		t.Fatalf("ExpiresAt = %v", tok.ExpiresAt)
	}
	if f.manager.State() != StateAuthenticated || !f.manager.HasSession() {
		t.Fatalf("state = %s, session = %v", f.manager.State(), f.manager.HasSession())
	}

	transitions, _ := f.auditor.Find(func(e core.AuditEntry) bool { return e.Action == "auth.transition" }, 0)
	if len(transitions) != 2 {
		t.Fatalf("got %d transition entries, want 2", len(transitions))
	}
	for _, e := range transitions {
		if fp, ok := e.Metadata["token_fingerprint"]; ok && fp == tok.AccessToken {
			t.Fatal("raw token written to audit log")
		}
	}
}

func TestManager_AuthenticateFailures(t *testing.T) {
	tests := []struct {
		name      string
		cfg       stub.Config
		creds     core.Credentials
		prepare   func(ins *stub.Insurer)
		want      error
		wantCalls int
	}{
		{
			name:  "Empty Credentials",
			creds: core.Credentials{ClientID: "id"},
			want:  core.ErrInvalidCredentials,
		},
		{
			name:      "Rejected Credentials",
			cfg:       stub.Config{ClientID: "id", ClientSecret: "other"},
			creds:     creds,
			want:      core.ErrInvalidCredentials,
			wantCalls: 1,
		},
		{
			name:  "Malformed Response",
			creds: creds,
			prepare: func(ins *stub.Insurer) {
				ins.RejectNext(wire.OpToken, "teapot")
			},
			want:      core.ErrInvalidAuthResponse,
			wantCalls: 1,
		},
		{
			name:  "Transport Failure",
			creds: creds,
			prepare: func(ins *stub.Insurer) {
				ins.FailNext(wire.OpToken, 1, errors.New("connection refused"))
			},
			want:      core.ErrNetwork,
			wantCalls: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.cfg, defaultPolicy)
			if tt.prepare != nil {
				tt.prepare(f.insurer)
			}
			_, err := f.manager.Authenticate(context.Background(), tt.creds)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Authenticate() error = %v, want %v", err, tt.want)
			}
			if _, ok := f.manager.Token(); ok {
				t.Fatal("token stored after failed authentication")
			}
			if f.manager.State() != StateUnauthenticated {
				t.Fatalf("state = %s, want unauthenticated", f.manager.State())
			}
			if got := f.insurer.Calls(wire.OpToken); got != tt.wantCalls {
				t.Fatalf("provider saw %d token requests, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestManager_EmptyCredentialsAreReported(t *testing.T) {
	f := newFixture(t, stub.Config{}, defaultPolicy)

	if _, err := f.manager.Authenticate(context.Background(), core.Credentials{}); !errors.Is(err, core.ErrInvalidCredentials) {
		t.Fatalf("got %v, want InvalidCredentials", err)
	}
	if n := f.metrics.Errors("acme").ByKind[core.KindInvalidCredentials]; n != 1 {
		t.Fatalf("metrics saw %d InvalidCredentials errors, want 1", n)
	}
	entries, _ := f.auditor.Find(func(e core.AuditEntry) bool {
		return e.Action == string(wire.OpToken) && e.ErrorKind == core.KindInvalidCredentials
	}, 0)
	if len(entries) != 1 {
		t.Fatalf("audit entries = %+v", entries)
	}
	if minute, _ := f.limiter.Usage(f.now); minute != 0 {
		t.Fatalf("empty credentials consumed %d permits", minute)
	}
}

func TestManager_AuthenticateRateLimited(t *testing.T) {
	f := newFixture(t, stub.Config{}, core.RateLimitPolicy{RequestsPerMinute: 1, RequestsPerHour: 10})

	if _, err := f.manager.Authenticate(context.Background(), creds); err != nil {
		t.Fatal(err)
	}
	_, err := f.manager.Authenticate(context.Background(), creds)
	if !errors.Is(err, core.ErrRateLimitExceeded) {
		t.Fatalf("got %v, want RateLimitExceeded", err)
	}
	if f.insurer.Calls(wire.OpToken) != 1 {
		t.Fatal("denied authentication reached the provider")
	}
	// the first token survives the denied attempt
	if _, ok := f.manager.Token(); !ok || f.manager.State() != StateAuthenticated {
		t.Fatal("denied authentication dropped the live token")
	}
}

func TestManager_AuthenticateCancelled(t *testing.T) {
	f := newFixture(t, stub.Config{Latency: time.Second}, defaultPolicy)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.manager.Authenticate(ctx, creds)
	if !errors.Is(err, core.ErrNetwork) {
		t.Fatalf("got %v, want NetworkError", err)
	}
	if f.manager.State() != StateUnauthenticated {
		t.Fatalf("state = %s, want unauthenticated", f.manager.State())
	}
	if minute, _ := f.limiter.Usage(f.now); minute != 1 {
		t.Fatalf("cancelled attempt must keep its permit, usage = %d", minute)
	}
}

func TestManager_RefreshFreshTokenIsNoop(t *testing.T) {
	f := newFixture(t, stub.Config{}, defaultPolicy)
	first, _ := f.manager.Authenticate(context.Background(), creds)

	f.now = f.now.Add(54 * time.Minute) // 6 minutes left
	tok, err := f.manager.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if tok.AccessToken != first.AccessToken || f.insurer.Calls(wire.OpRefresh) != 0 {
		t.Fatal("fresh token was refreshed")
	}
}

func TestManager_RefreshStaleToken(t *testing.T) {
	f := newFixture(t, stub.Config{}, defaultPolicy)
	first, _ := f.manager.Authenticate(context.Background(), creds)

	f.now = f.now.Add(56 * time.Minute) // 4 minutes left
	tok, err := f.manager.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if tok.AccessToken == first.AccessToken || tok.RefreshToken == first.RefreshToken {
		t.Fatal("token not replaced")
	}
	if stored, _ := f.manager.Token(); stored.AccessToken != tok.AccessToken {
		t.Fatal("stored token differs from returned token")
	}
	if f.manager.State() != StateAuthenticated {
		t.Fatalf("state = %s", f.manager.State())
	}
}

func TestManager_ConcurrentEnsureFreshRefreshesOnce(t *testing.T) {
	f := newFixture(t, stub.Config{}, defaultPolicy)
	if _, err := f.manager.Authenticate(context.Background(), creds); err != nil {
		t.Fatal(err)
	}
	f.now = f.now.Add(58 * time.Minute)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		tokens = map[string]struct{}{}
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := f.manager.EnsureFresh(context.Background())
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			tokens[tok.AccessToken] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	if got := f.insurer.Calls(wire.OpRefresh); got != 1 {
		t.Fatalf("provider saw %d refreshes, want 1", got)
	}
	if len(tokens) != 1 {
		t.Fatalf("callers observed %d different tokens, want 1", len(tokens))
	}
}

func TestManager_RefreshFailures(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(ins *stub.Insurer)
		want    error
	}{
		{
			name: "Rejected Refresh Token",
			prepare: func(ins *stub.Insurer) {
				ins.RejectNext(wire.OpRefresh, wire.CodeInvalidCredentials)
			},
			want: core.ErrInvalidAuthResponse,
		},
		{
			name: "Transport Failure",
			prepare: func(ins *stub.Insurer) {
				ins.FailNext(wire.OpRefresh, 1, errors.New("connection reset"))
			},
			want: core.ErrNoActiveSession,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, stub.Config{}, defaultPolicy)
			if _, err := f.manager.Authenticate(context.Background(), creds); err != nil {
				t.Fatal(err)
			}
			f.now = f.now.Add(59 * time.Minute)
			tt.prepare(f.insurer)

			_, err := f.manager.Refresh(context.Background())
			if !errors.Is(err, tt.want) {
				t.Fatalf("Refresh() error = %v, want %v", err, tt.want)
			}
			if _, ok := f.manager.Token(); ok {
				t.Fatal("token kept after failed refresh")
			}
			if _, err := f.manager.Refresh(context.Background()); !errors.Is(err, core.ErrNoActiveToken) {
				t.Fatalf("second Refresh() error = %v, want NoActiveToken", err)
			}
		})
	}
}

func TestManager_RefreshWithoutToken(t *testing.T) {
	f := newFixture(t, stub.Config{}, defaultPolicy)
	if _, err := f.manager.Refresh(context.Background()); !errors.Is(err, core.ErrNoActiveToken) {
		t.Fatalf("got %v, want NoActiveToken", err)
	}
	if _, err := f.manager.EnsureFresh(context.Background()); !errors.Is(err, core.ErrNoActiveToken) {
		t.Fatalf("got %v, want NoActiveToken", err)
	}
}

func TestManager_Reauthorize(t *testing.T) {
	f := newFixture(t, stub.Config{}, defaultPolicy)
	first, _ := f.manager.Authenticate(context.Background(), creds)

	second, err := f.manager.Reauthorize(context.Background(), first.AccessToken)
	if err != nil {
		t.Fatalf("Reauthorize() error = %v", err)
	}
	if second.AccessToken == first.AccessToken {
		t.Fatal("rejected token was not replaced")
	}

	// a second caller holding the old token gets the replacement without another refresh
	third, err := f.manager.Reauthorize(context.Background(), first.AccessToken)
	if err != nil || third.AccessToken != second.AccessToken {
		t.Fatalf("Reauthorize() = %v, %v", third, err)
	}
	if f.insurer.Calls(wire.OpRefresh) != 1 {
		t.Fatalf("provider saw %d refreshes, want 1", f.insurer.Calls(wire.OpRefresh))
	}
}

func TestManager_Revoke(t *testing.T) {
	f := newFixture(t, stub.Config{}, defaultPolicy)

	if err := f.manager.Revoke(context.Background()); !errors.Is(err, core.ErrNoActiveToken) {
		t.Fatalf("Revoke() without token = %v, want NoActiveToken", err)
	}

	if _, err := f.manager.Authenticate(context.Background(), creds); err != nil {
		t.Fatal(err)
	}
	if err := f.manager.Revoke(context.Background()); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if _, ok := f.manager.Token(); ok || f.manager.State() != StateUnauthenticated {
		t.Fatal("token kept after revocation")
	}
	if f.insurer.Calls(wire.OpRevoke) != 1 {
		t.Fatal("revocation did not reach the provider")
	}
}

func TestManager_Close(t *testing.T) {
	f := newFixture(t, stub.Config{}, defaultPolicy)
	if _, err := f.manager.Authenticate(context.Background(), creds); err != nil {
		t.Fatal(err)
	}
	if err := f.manager.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.manager.HasSession() {
		t.Fatal("session kept after Close()")
	}
	if _, ok := f.manager.Token(); ok {
		t.Fatal("token kept after Close()")
	}
	if err := f.manager.Revoke(context.Background()); !errors.Is(err, core.ErrNoActiveToken) {
		t.Fatalf("Revoke() after Close() = %v", err)
	}
}
