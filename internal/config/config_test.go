package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/darmiel/insurelink/internal/core"
)

const sample = `
providers:
  - id: acme
    name: ACME Health
    endpoint: https://api.acme.example
    api_version: v2
    auto_connect: true
    timeout: 10s
    sync_interval: 15m
    sync_types: [claims, coverage]
    rate_limit:
      per_minute: 30
      per_hour: 500
    transport:
      type: stub
      token_ttl: 1h
audit:
  enabled: true
  type: memory
  capacity: 500
retry:
  max_attempts: 3
  base_delay: 2s
  max_delay: 1m
  interval: 10s
compliance:
  rules:
    - name: slow-provider
      severity: low
      expr: 'kind == "NetworkError" && provider == "acme"'
admin:
  jwt_secret: s3cret
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(cfg.Providers) != 1 {
		t.Fatalf("got %d providers", len(cfg.Providers))
	}
	p := cfg.Providers[0]
	if p.ID != "acme" || !p.AutoConnect || p.Timeout != 10*time.Second || p.SyncInterval != 15*time.Minute {
		t.Fatalf("unexpected provider %+v", p)
	}
	if p.RateLimit != (core.RateLimitPolicy{RequestsPerMinute: 30, RequestsPerHour: 500}) {
		t.Fatalf("RateLimit = %+v", p.RateLimit)
	}
	if len(p.SyncTypes) != 2 || p.SyncTypes[1] != core.DataCoverage {
		t.Fatalf("SyncTypes = %v", p.SyncTypes)
	}
	if p.Transport.Type != "stub" {
		t.Fatalf("Transport.Type = %q", p.Transport.Type)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.BaseDelay != 2*time.Second || cfg.Retry.Interval != 10*time.Second {
		t.Fatalf("Retry = %+v", cfg.Retry)
	}
	if string(cfg.Admin.Secret()) != "s3cret" {
		t.Fatal("admin secret not loaded")
	}

	rules, err := cfg.ComplianceRules()
	if err != nil {
		t.Fatal(err)
	}
	if last := rules[len(rules)-1]; last.Name != "slow-provider" || len(rules) < 2 {
		t.Fatalf("rules = %+v", rules)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "Insecure Endpoint",
			yaml:    "providers:\n  - id: a\n    endpoint: http://a.example\n",
			wantErr: "https",
		},
		{
			name:    "Duplicate Provider",
			yaml:    "providers:\n  - id: a\n    endpoint: https://a.example\n  - id: a\n    endpoint: https://b.example\n",
			wantErr: "more than once",
		},
		{
			name:    "File Audit Without Path",
			yaml:    "audit:\n  enabled: true\n  type: file\n",
			wantErr: "path",
		},
		{
			name:    "Unknown Audit Type",
			yaml:    "audit:\n  enabled: true\n  type: kafka\n",
			wantErr: "unknown audit type",
		},
		{
			name:    "Broken Rule",
			yaml:    "compliance:\n  rules:\n    - name: x\n      expr: 'kind =='\n",
			wantErr: "compliance",
		},
		{
			name:    "Non-Boolean Rule",
			yaml:    "compliance:\n  rules:\n    - name: x\n      expr: 'kind'\n",
			wantErr: "compliance",
		},
		{
			name:    "Negative Retry",
			yaml:    "retry:\n  max_attempts: -1\n",
			wantErr: "retry",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Parse() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestAdminSecretFromEnv(t *testing.T) {
	t.Setenv("INSURELINK_TEST_ADMIN_SECRET", "from-env")
	a := AdminConfig{JWTSecret: "inline", JWTSecretEnv: "INSURELINK_TEST_ADMIN_SECRET"}
	if got := string(a.Secret()); got != "from-env" {
		t.Fatalf("Secret() = %q", got)
	}
	if (AdminConfig{}).Secret() != nil {
		t.Fatal("empty admin config must disable the admin routes")
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "insurelink.yaml")
	if err := os.WriteFile(path, []byte("providers: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c *Config) { changes <- c })
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)

	// invalid content is skipped
	if err := os.WriteFile(path, []byte("providers:\n  - id: a\n    endpoint: http://a\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2 * debounce)
	if err := os.WriteFile(path, []byte(sample), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changes:
		if len(c.Providers) != 1 || c.Providers[0].ID != "acme" {
			t.Fatalf("reloaded config = %+v", c)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
}
