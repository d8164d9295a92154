package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/darmiel/insurelink/internal/logging"
)

func TestProviderFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/v1/providers/acme", want: "acme"},
		{path: "/v1/providers/acme/claims/C1", want: "acme"},
		{path: "/v1/providers", want: ""},
		{path: "/v1/admin/providers/acme", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := providerFromPath(tt.path); got != tt.want {
				t.Fatalf("providerFromPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestCorrelationID(t *testing.T) {
	var seen string
	h := CorrelationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.CorrelationCtx(r.Context())
	}))

	t.Run("Forwarded", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(logging.CorrelationIDHeader, "abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if seen != "abc" || rec.Header().Get(logging.CorrelationIDHeader) != "abc" {
			t.Fatalf("context %q, header %q", seen, rec.Header().Get(logging.CorrelationIDHeader))
		}
	})

	t.Run("Generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if seen == "" || rec.Header().Get(logging.CorrelationIDHeader) != seen {
			t.Fatalf("generated id %q not echoed", seen)
		}
	})
}

func TestRecover(t *testing.T) {
	h := RecoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestStatusWriterCountsBytes(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, statusCode: http.StatusOK}
	sw.WriteHeader(http.StatusAccepted)
	_, _ = sw.Write([]byte("hello"))
	if sw.statusCode != http.StatusAccepted || sw.written != 5 {
		t.Fatalf("status %d, written %d", sw.statusCode, sw.written)
	}
}
