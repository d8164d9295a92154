// Package https implements the transport session to providers reachable over HTTPS.
package https

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"golang.org/x/net/http2"
	"golang.org/x/oauth2"

	"github.com/darmiel/insurelink/internal/audit"
	"github.com/darmiel/insurelink/internal/core"
	"github.com/darmiel/insurelink/internal/logging"
)

const Type = "https"

const (
	defaultPathPrefix = "/api"
	contentType       = "application/octet-stream"

	// maxResponseSize bounds the sealed envelope read from a provider.
	maxResponseSize = 16 << 20
)

// Config holds the transport options of an HTTPS provider.
type Config struct {
	// InsecureSkipVerify disables certificate verification. Only meant for local testing.
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`

	// CAFile is an additional PEM bundle trusted for the provider endpoint.
	CAFile string `mapstructure:"ca_file"`

	// PathPrefix is prepended to every operation path (default: /api).
	PathPrefix string `mapstructure:"path_prefix"`

	// DisableHTTP2 forces HTTP/1.1.
	DisableHTTP2 bool `mapstructure:"disable_http2"`
}

// Session sends sealed envelopes as HTTP POST requests.
// Operation "claims.submit" of API version "v2" is posted to <endpoint><prefix>/v2/claims/submit.
type Session struct {
	provider   string
	baseURL    string
	apiVersion string
	httpClient *http.Client
}

// NewFactory returns a SessionFactory for the provider. The transport is built once and
// shared by all sessions of the provider.
func NewFactory(cfg core.ProviderConfig) (core.SessionFactory, error) {
	var conf Config
	if err := mapstructure.Decode(cfg.Transport.Config, &conf); err != nil {
		return nil, fmt.Errorf("failed to decode config for %s provider '%s': %w", Type, cfg.ID, err)
	}
	if !strings.HasPrefix(strings.ToLower(cfg.Endpoint), "https://") {
		return nil, core.NewError(core.KindInvalidProviderConfig, "endpoint of provider '%s' must use https", cfg.ID)
	}

	transport, err := newTransport(conf)
	if err != nil {
		return nil, core.WrapError(core.KindInvalidProviderConfig, err, "building transport for provider '%s'", cfg.ID)
	}
	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.EffectiveTimeout(),
	}

	prefix := conf.PathPrefix
	if prefix == "" {
		prefix = defaultPathPrefix
	}
	base := strings.TrimRight(cfg.Endpoint, "/") + "/" + strings.Trim(prefix, "/")

	return func(_ context.Context) (core.Session, error) {
		return New(cfg.ID, base, cfg.APIVersion, client), nil
	}, nil
}

// New creates a session posting to baseURL with the given client.
func New(provider, baseURL, apiVersion string, client *http.Client) *Session {
	return &Session{
		provider:   provider,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiVersion: apiVersion,
		httpClient: client,
	}
}

func newTransport(conf Config) (*http.Transport, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: conf.InsecureSkipVerify, //nolint:gosec // opt-in for local testing
	}
	if conf.CAFile != "" {
		pem, err := os.ReadFile(conf.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading ca file: %w", err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", conf.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSClientConfig:       tlsConfig,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if conf.DisableHTTP2 {
		transport.TLSNextProto = map[string]func(string, *tls.Conn) http.RoundTripper{}
		return transport, nil
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		return nil, fmt.Errorf("configuring http2: %w", err)
	}
	return transport, nil
}

func (s *Session) url(op string) string {
	path := strings.ReplaceAll(op, ".", "/")
	if s.apiVersion == "" {
		return s.baseURL + "/" + path
	}
	return s.baseURL + "/" + s.apiVersion + "/" + path
}

func (s *Session) Send(ctx context.Context, ex core.Exchange) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url(ex.Operation), bytes.NewReader(ex.Payload))
	if err != nil {
		return nil, core.WrapError(core.KindNetworkError, err, "creating request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentType)

	// inject audit user-agent
	correlationID := logging.CorrelationCtx(ctx)
	req.Header.Set("User-Agent", audit.CreateUserAgent(correlationID, ex.Operation, s.provider))
	if correlationID != "" {
		req.Header.Set(logging.CorrelationIDHeader, correlationID)
	}

	if ex.Token != "" {
		tok := &oauth2.Token{AccessToken: ex.Token, TokenType: ex.TokenType}
		tok.SetAuthHeader(req)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, core.WrapError(core.KindNetworkError, err, "performing request")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &core.Error{Kind: core.ErrUnauthorized.Kind, Msg: "provider rejected access token"}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, core.NewError(core.KindRateLimitExceeded, "provider answered 429 (retry-after %q)",
			resp.Header.Get("Retry-After"))
	case resp.StatusCode != http.StatusOK:
		return nil, core.NewError(core.KindNetworkError, "unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, core.WrapError(core.KindNetworkError, err, "reading response")
	}
	return data, nil
}

func (s *Session) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}
