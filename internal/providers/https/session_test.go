package https

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/darmiel/insurelink/internal/core"
)

func TestSession_Send(t *testing.T) {
	var (
		gotPath  string
		gotAuth  string
		gotAgent string
		gotBody  string
		gotCType string
	)
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		gotCType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write([]byte("sealed-response"))
	}))
	defer srv.Close()

	s := New("acme", srv.URL+"/api", "v2", srv.Client())
	out, err := s.Send(context.Background(), core.Exchange{
		Operation: "claims.submit",
		Token:     "tok",
		TokenType: "Bearer",
		Payload:   []byte("sealed-request"),
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if string(out) != "sealed-response" {
		t.Errorf("Send() = %q", out)
	}
	if gotPath != "/api/v2/claims/submit" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotBody != "sealed-request" || gotCType != contentType {
		t.Errorf("body = %q, content type = %q", gotBody, gotCType)
	}
	if !strings.Contains(gotAgent, "provider=acme") {
		t.Errorf("user agent = %q", gotAgent)
	}
}

func TestSession_SendWithoutToken(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	s := New("acme", srv.URL, "", srv.Client())
	if _, err := s.Send(context.Background(), core.Exchange{Operation: "auth.token"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
}

func TestSession_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "Unauthorized", status: http.StatusUnauthorized, want: core.ErrUnauthorized},
		{name: "Too Many Requests", status: http.StatusTooManyRequests, want: core.ErrRateLimitExceeded},
		{name: "Bad Gateway", status: http.StatusBadGateway, want: core.ErrNetwork},
		{name: "Not Found", status: http.StatusNotFound, want: core.ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			s := New("acme", srv.URL, "v1", srv.Client())
			_, err := s.Send(context.Background(), core.Exchange{Operation: "claims.status", Token: "tok"})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Send() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSession_Unreachable(t *testing.T) {
	srv := httptest.NewTLSServer(http.NotFoundHandler())
	url := srv.URL
	client := srv.Client()
	srv.Close()

	s := New("acme", url, "v1", client)
	_, err := s.Send(context.Background(), core.Exchange{Operation: "claims.status"})
	if !errors.Is(err, core.ErrNetwork) {
		t.Fatalf("Send() error = %v, want NetworkError", err)
	}
}

func TestNewFactory(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	defer srv.Close()

	factory, err := NewFactory(core.ProviderConfig{
		ID:         "acme",
		Endpoint:   srv.URL,
		APIVersion: "v3",
		Transport: core.TransportConfig{
			Type:   Type,
			Config: map[string]any{"insecure_skip_verify": true, "path_prefix": "/gateway"},
		},
	})
	if err != nil {
		t.Fatalf("NewFactory() error = %v", err)
	}
	sess, err := factory(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = sess.Close()
	}()

	out, err := sess.Send(context.Background(), core.Exchange{Operation: "data.sync"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if string(out) != "/gateway/v3/data/sync" {
		t.Fatalf("path = %q", out)
	}
}

func TestNewFactory_RejectsPlainHTTP(t *testing.T) {
	_, err := NewFactory(core.ProviderConfig{ID: "acme", Endpoint: "http://insecure.example"})
	if !errors.Is(err, core.ErrInvalidProviderConfig) {
		t.Fatalf("NewFactory() error = %v, want InvalidProviderConfig", err)
	}
}
