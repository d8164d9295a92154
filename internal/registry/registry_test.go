package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/darmiel/insurelink/internal/audit"
	"github.com/darmiel/insurelink/internal/core"
	"github.com/darmiel/insurelink/internal/encryption"
	"github.com/darmiel/insurelink/internal/providers/stub"
	"github.com/darmiel/insurelink/internal/tasks"
	"github.com/darmiel/insurelink/internal/wire"
)

var creds = core.Credentials{ClientID: "id", ClientSecret: "secret"}

type fixture struct {
	now      time.Time
	insurers map[string]*stub.Insurer
	registry *Registry
	auditor  *audit.InMemoryAuditor
	tasks    *tasks.Manager
}

func (f *fixture) clock() time.Time { return f.now }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		now:      time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		insurers: make(map[string]*stub.Insurer),
		auditor:  audit.NewInMemoryAuditor(),
		tasks:    tasks.NewManager(),
	}
	t.Cleanup(f.tasks.Close)
	f.registry = New(Options{
		Auditor:       f.auditor,
		Tasks:         f.tasks,
		RetryInterval: time.Hour,
		Sessions: func(cfg core.ProviderConfig) core.SessionFactory {
			ins := stub.New(encryption.Plain{}, stub.Config{}, stub.WithClock(f.clock))
			f.insurers[cfg.ID] = ins
			return ins.Factory()
		},
		Now: f.clock,
	})
	return f
}

func providerConfig(id string, policy core.RateLimitPolicy) core.ProviderConfig {
	return core.ProviderConfig{
		ID:         id,
		Name:       "Provider " + id,
		Endpoint:   "https://" + id + ".example/api",
		APIVersion: "v2",
		RateLimit:  policy,
		Timeout:    time.Second,
	}
}

var defaultPolicy = core.RateLimitPolicy{RequestsPerMinute: 60, RequestsPerHour: 1000}

func (f *fixture) register(t *testing.T, cfg core.ProviderConfig) {
	t.Helper()
	if err := f.registry.Register(context.Background(), cfg); err != nil {
		t.Fatalf("Register(%s) error = %v", cfg.ID, err)
	}
}

func TestRegistry_RegisterValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  core.ProviderConfig
	}{
		{name: "Empty ID", cfg: core.ProviderConfig{Endpoint: "https://p.example"}},
		{name: "Plain HTTP", cfg: core.ProviderConfig{ID: "p", Endpoint: "http://p.example"}},
		{name: "No Scheme", cfg: core.ProviderConfig{ID: "p", Endpoint: "p.example"}},
		{name: "Minute Above Hour", cfg: core.ProviderConfig{
			ID:        "p",
			Endpoint:  "https://p.example",
			RateLimit: core.RateLimitPolicy{RequestsPerMinute: 100, RequestsPerHour: 10},
		}},
		{name: "Short AES Key", cfg: core.ProviderConfig{
			ID:       "p",
			Endpoint: "https://p.example",
			Encryption: core.EncryptionConfig{
				Type:   encryption.TypeAESGCM,
				Config: map[string]any{"key": "c2hvcnQ="},
			},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			err := f.registry.Register(context.Background(), tt.cfg)
			if !errors.Is(err, core.ErrInvalidProviderConfig) {
				t.Fatalf("got %v, want InvalidProviderConfig", err)
			}
			if len(f.registry.List()) != 0 {
				t.Fatal("invalid provider was registered")
			}
		})
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	f := newFixture(t)
	f.register(t, providerConfig("acme", defaultPolicy))

	err := f.registry.Register(context.Background(), providerConfig("acme", defaultPolicy))
	if !errors.Is(err, core.ErrInvalidProviderConfig) {
		t.Fatalf("got %v, want InvalidProviderConfig", err)
	}
	entries, _ := f.auditor.Find(func(e core.AuditEntry) bool { return e.Action == "provider.register" }, 0)
	if len(entries) != 2 || entries[0].Success == entries[1].Success {
		t.Fatalf("register audit entries = %+v", entries)
	}
}

func TestRegistry_UnknownProviderIsReported(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.registry.SubmitClaim(ctx, "ghost", core.Claim{ID: "C1", Amount: 10}); !errors.Is(err, core.ErrProviderNotFound) {
		t.Fatalf("got %v, want ProviderNotFound", err)
	}
	if n := f.registry.opts.Metrics.Errors("ghost").ByKind[core.KindProviderNotFound]; n != 1 {
		t.Fatalf("metrics saw %d ProviderNotFound errors, want 1", n)
	}
	entries, _ := f.auditor.Find(func(e core.AuditEntry) bool {
		return e.Provider == "ghost" && e.Action == "submit_claim" && e.ErrorKind == core.KindProviderNotFound
	}, 0)
	if len(entries) != 1 {
		t.Fatalf("audit entries = %+v", entries)
	}

	// a later registration starts with clean counters
	f.register(t, providerConfig("ghost", defaultPolicy))
	m, err := f.registry.GetMetrics("ghost")
	if err != nil {
		t.Fatal(err)
	}
	if m.TotalRequests != 0 || m.FailedRequests != 0 {
		t.Fatalf("metrics = %+v", m)
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"zeta", "acme", "mid"} {
		f.register(t, providerConfig(id, defaultPolicy))
	}
	list := f.registry.List()
	if len(list) != 3 || list[0].ID != "acme" || list[1].ID != "mid" || list[2].ID != "zeta" {
		t.Fatalf("List() = %+v", list)
	}
}

func TestRegistry_AutoConnect(t *testing.T) {
	f := newFixture(t)
	cfg := providerConfig("acme", defaultPolicy)
	cfg.AutoConnect = true
	f.register(t, cfg)

	if n := f.insurers["acme"].SessionsOpened(); n != 1 {
		t.Fatalf("sessions opened = %d, want 1", n)
	}
	st, err := f.registry.GetSyncStatus("acme")
	if err != nil {
		t.Fatal(err)
	}
	if !st.SessionActive || st.Authenticated {
		t.Fatalf("unexpected sync status %+v", st)
	}
}

func TestRegistry_EndToEndRateLimit(t *testing.T) {
	f := newFixture(t)
	f.register(t, providerConfig("p", core.RateLimitPolicy{RequestsPerMinute: 2, RequestsPerHour: 100}))
	ctx := context.Background()

	if _, err := f.registry.Authenticate(ctx, "p", creds); err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if _, err := f.registry.SubmitClaim(ctx, "p", core.Claim{ID: "C1", Amount: 50}); err != nil {
		t.Fatalf("SubmitClaim(C1) error = %v", err)
	}
	st, err := f.registry.GetClaimStatus(ctx, "p", "C1")
	if err != nil || st.Status != "submitted" {
		t.Fatalf("cached status = %+v, %v", st, err)
	}
	if _, err := f.registry.SubmitClaim(ctx, "p", core.Claim{ID: "C2", Amount: 75}); err != nil {
		t.Fatalf("SubmitClaim(C2) error = %v", err)
	}

	inst, _ := f.registry.Get("p")
	inst.Cache.Purge()
	_, err = f.registry.GetClaimStatus(ctx, "p", "C1")
	if !errors.Is(err, core.ErrRateLimitExceeded) {
		t.Fatalf("got %v, want RateLimitExceeded", err)
	}
	var e *core.Error
	if !errors.As(err, &e) || e.Provider != "p" {
		t.Fatalf("error not annotated with provider: %v", err)
	}

	// the window slides
	f.now = f.now.Add(61 * time.Second)
	if _, err := f.registry.GetClaimStatus(ctx, "p", "C1"); err != nil {
		t.Fatalf("GetClaimStatus() after window error = %v", err)
	}
}

func TestRegistry_StatusServedFromCacheAfterFetch(t *testing.T) {
	f := newFixture(t)
	f.register(t, providerConfig("acme", defaultPolicy))
	ctx := context.Background()

	if _, err := f.registry.Authenticate(ctx, "acme", creds); err != nil {
		t.Fatal(err)
	}
	if _, err := f.registry.SubmitClaim(ctx, "acme", core.Claim{ID: "C1", Amount: 10}); err != nil {
		t.Fatal(err)
	}
	inst, _ := f.registry.Get("acme")
	inst.Cache.Purge()

	for range 2 {
		if _, err := f.registry.GetClaimStatus(ctx, "acme", "C1"); err != nil {
			t.Fatalf("GetClaimStatus() error = %v", err)
		}
	}
	if n := f.insurers["acme"].Calls(wire.OpClaimStatus); n != 1 {
		t.Fatalf("status fetched %d times, want 1", n)
	}
}

func TestRegistry_RemoveCleansUp(t *testing.T) {
	f := newFixture(t)
	cfg := providerConfig("acme", defaultPolicy)
	cfg.SyncInterval = time.Hour
	f.register(t, cfg)
	ctx := context.Background()

	if _, err := f.registry.Authenticate(ctx, "acme", creds); err != nil {
		t.Fatal(err)
	}
	if _, err := f.registry.SubmitClaim(ctx, "acme", core.Claim{ID: "C1", Amount: 10}); err != nil {
		t.Fatal(err)
	}
	if n := len(f.tasks.ListStatus()); n != 2 {
		t.Fatalf("%d tasks scheduled, want 2", n)
	}
	inst, _ := f.registry.Get("acme")

	if err := f.registry.Remove(ctx, "acme"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	checks := map[string]func() error{
		"SubmitClaim": func() error {
			_, err := f.registry.SubmitClaim(ctx, "acme", core.Claim{ID: "C2", Amount: 1})
			return err
		},
		"GetClaimStatus": func() error {
			_, err := f.registry.GetClaimStatus(ctx, "acme", "C1")
			return err
		},
		"Authenticate": func() error {
			_, err := f.registry.Authenticate(ctx, "acme", creds)
			return err
		},
		"GetSyncStatus": func() error {
			_, err := f.registry.GetSyncStatus("acme")
			return err
		},
		"GetMetrics": func() error {
			_, err := f.registry.GetMetrics("acme")
			return err
		},
		"RetryFailedOperations": func() error {
			_, err := f.registry.RetryFailedOperations(ctx, "acme")
			return err
		},
		"Remove": func() error {
			return f.registry.Remove(ctx, "acme")
		},
	}
	for name, fn := range checks {
		t.Run(name, func(t *testing.T) {
			if err := fn(); !errors.Is(err, core.ErrProviderNotFound) {
				t.Fatalf("got %v, want ProviderNotFound", err)
			}
		})
	}

	if inst.Cache.Statuses() != 0 {
		t.Fatal("cached claim data survived removal")
	}
	if _, ok := inst.Auth.Token(); ok {
		t.Fatal("token survived removal")
	}
	if len(f.tasks.ListStatus()) != 0 {
		t.Fatal("background tasks survived removal")
	}

	// a new registration starts from scratch
	f.register(t, providerConfig("acme", defaultPolicy))
	if _, err := f.registry.GetClaimStatus(ctx, "acme", "C1"); !errors.Is(err, core.ErrNoActiveToken) {
		t.Fatalf("got %v, want NoActiveToken", err)
	}
}

func TestRegistry_ProvidersAreIsolated(t *testing.T) {
	f := newFixture(t)
	f.register(t, providerConfig("a", core.RateLimitPolicy{RequestsPerMinute: 1, RequestsPerHour: 10}))
	f.register(t, providerConfig("b", defaultPolicy))
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if _, err := f.registry.Authenticate(ctx, id, creds); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.registry.SubmitClaim(ctx, "a", core.Claim{ID: "C1", Amount: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.registry.SubmitClaim(ctx, "a", core.Claim{ID: "C2", Amount: 1}); !errors.Is(err, core.ErrRateLimitExceeded) {
		t.Fatalf("got %v, want RateLimitExceeded", err)
	}
	if _, err := f.registry.SubmitClaim(ctx, "b", core.Claim{ID: "C2", Amount: 1}); err != nil {
		t.Fatalf("provider b affected by a: %v", err)
	}
	if _, err := f.registry.GetClaimStatus(ctx, "b", "C1"); err == nil {
		t.Fatal("status of a claim of provider a served by b")
	}
}

func TestRegistry_RetryFailedOperations(t *testing.T) {
	f := newFixture(t)
	f.register(t, providerConfig("acme", defaultPolicy))
	ctx := context.Background()

	if _, err := f.registry.Authenticate(ctx, "acme", creds); err != nil {
		t.Fatal(err)
	}
	f.insurers["acme"].FailNext(wire.OpSubmitClaim, 1, errors.New("connection reset"))
	if _, err := f.registry.SubmitClaim(ctx, "acme", core.Claim{ID: "C1", Amount: 10}); !errors.Is(err, core.ErrNetwork) {
		t.Fatalf("got %v, want NetworkError", err)
	}
	pending, _, err := f.registry.PendingRetries("acme")
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending = %+v, %v", pending, err)
	}

	report, err := f.registry.RetryFailedOperations(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if report.Succeeded != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	st, err := f.registry.GetClaimStatus(ctx, "acme", "C1")
	if err != nil || st.Status != "submitted" {
		t.Fatalf("status after retry = %+v, %v", st, err)
	}
}

func TestRegistry_TelemetryViews(t *testing.T) {
	f := newFixture(t)
	f.register(t, providerConfig("acme", defaultPolicy))
	ctx := context.Background()

	if _, err := f.registry.Authenticate(ctx, "acme", core.Credentials{ClientID: "id", ClientSecret: "wrong"}); err != nil {
		t.Fatalf("stub accepts any credentials by default: %v", err)
	}
	f.insurers["acme"].RejectNext(wire.OpSubmitClaim, wire.CodeInvalidClaim)
	_, err := f.registry.SubmitClaim(ctx, "acme", core.Claim{ID: "C1", Amount: 10})
	if !errors.Is(err, core.ErrInvalidClaim) {
		t.Fatalf("got %v, want InvalidClaim", err)
	}

	m, err := f.registry.GetMetrics("acme")
	if err != nil {
		t.Fatal(err)
	}
	if m.TotalRequests != 2 || m.FailedRequests != 1 || m.AuthTransitions == 0 {
		t.Fatalf("metrics = %+v", m)
	}
	stats, err := f.registry.GetErrorStats("acme")
	if err != nil {
		t.Fatal(err)
	}
	if stats.ByKind[core.KindInvalidClaim] != 1 {
		t.Fatalf("error stats = %+v", stats)
	}
	cs, err := f.registry.GetComplianceStatus("acme")
	if err != nil {
		t.Fatal(err)
	}
	if cs.Checks != 1 || !cs.Compliant {
		t.Fatalf("compliance = %+v", cs)
	}

	info, err := f.registry.TokenInfo("acme")
	if err != nil || !info.Refreshable || info.Fingerprint == "" {
		t.Fatalf("token info = %+v, %v", info, err)
	}
}

func TestRegistry_Reconcile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := providerConfig("a", defaultPolicy)
	b := providerConfig("b", defaultPolicy)
	f.register(t, a)
	f.register(t, b)
	instA, _ := f.registry.Get("a")

	changed := b
	changed.APIVersion = "v3"
	c := providerConfig("c", defaultPolicy)
	if err := f.registry.Reconcile(ctx, []core.ProviderConfig{a, changed, c}); err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}

	list := f.registry.List()
	if len(list) != 3 || list[1].APIVersion != "v3" {
		t.Fatalf("List() = %+v", list)
	}
	if got, _ := f.registry.Get("a"); got != instA {
		t.Fatal("unchanged provider was rebuilt")
	}

	if err := f.registry.Reconcile(ctx, []core.ProviderConfig{c}); err != nil {
		t.Fatal(err)
	}
	if list := f.registry.List(); len(list) != 1 || list[0].ID != "c" {
		t.Fatalf("List() = %+v", list)
	}
}

func TestRegistry_Close(t *testing.T) {
	f := newFixture(t)
	f.register(t, providerConfig("a", defaultPolicy))
	f.register(t, providerConfig("b", defaultPolicy))

	if err := f.registry.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(f.registry.List()) != 0 {
		t.Fatal("providers left after Close")
	}
}
