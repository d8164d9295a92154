package cmd

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/darmiel/insurelink/internal/api/middleware"
	"github.com/darmiel/insurelink/internal/audit"
	"github.com/darmiel/insurelink/internal/config"
)

func TestSignAdminToken(t *testing.T) {
	secret := []byte("s3cret")
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	handler := middleware.AdminAuth(secret)(ok)

	tests := []struct {
		name  string
		roles []string
		ttl   time.Duration
		want  int
	}{
		{name: "Admin", roles: []string{"admin"}, ttl: time.Hour, want: http.StatusNoContent},
		{name: "Viewer", roles: []string{"viewer"}, ttl: time.Hour, want: http.StatusForbidden},
		{name: "Expired", roles: []string{"admin"}, ttl: -time.Hour, want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := signAdminToken(secret, "ops", tt.roles, tt.ttl, time.Now())
			if err != nil {
				t.Fatal(err)
			}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestBuildAuditor(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		a, r, err := buildAuditor(config.AuditConfig{})
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := a.(*audit.NoopAuditor); !ok || r != nil {
			t.Fatalf("got %T / %v, want noop without reader", a, r)
		}
	})

	t.Run("Memory", func(t *testing.T) {
		a, r, err := buildAuditor(config.AuditConfig{Enabled: true, Type: "memory"})
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := a.(*audit.InMemoryAuditor); !ok || r == nil {
			t.Fatalf("got %T, want queryable memory auditor", a)
		}
	})

	t.Run("Buffered File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "audit.jsonl")
		a, r, err := buildAuditor(config.AuditConfig{Enabled: true, Type: "file", Path: path, Buffer: 8})
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = a.Close() })
		if _, ok := a.(*audit.AsyncAuditor); !ok {
			t.Fatalf("got %T, want async auditor", a)
		}
		if _, ok := r.(*audit.FileAuditor); !ok {
			t.Fatalf("reader is %T, want the file auditor", r)
		}
	})

	t.Run("Unknown", func(t *testing.T) {
		if _, _, err := buildAuditor(config.AuditConfig{Enabled: true, Type: "kafka"}); err == nil {
			t.Fatal("expected error")
		}
	})
}
