package wire

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/darmiel/insurelink/internal/core"
	"github.com/darmiel/insurelink/internal/encryption"
)

// scriptedSession answers every exchange with fn.
type scriptedSession struct {
	fn    func(ctx context.Context, req Request) (*Response, error)
	codec core.Codec
	last  core.Exchange
}

func (s *scriptedSession) Send(ctx context.Context, ex core.Exchange) ([]byte, error) {
	s.last = ex
	var req Request
	if err := s.codec.Decode(ex.Payload, &req); err != nil {
		return nil, err
	}
	resp, err := s.fn(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.codec.Encode(resp)
}

func (s *scriptedSession) Close() error { return nil }

func body(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestClient_Do(t *testing.T) {
	codec := encryption.Plain{}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		op       Operation
		respond  func(ctx context.Context, req Request) (*Response, error)
		wantKind core.ErrorKind
	}{
		{
			name: "Success",
			op:   OpSubmitClaim,
			respond: func(_ context.Context, req Request) (*Response, error) {
				return &Response{Operation: req.Operation, Body: body(t, ClaimResponse{ClaimID: "C1", Status: "submitted", SubmittedAt: now})}, nil
			},
		},
		{
			name: "Empty Claim ID",
			op:   OpSubmitClaim,
			respond: func(_ context.Context, req Request) (*Response, error) {
				return &Response{Operation: req.Operation, Body: body(t, ClaimResponse{Status: "submitted"})}, nil
			},
			wantKind: core.KindInvalidResponse,
		},
		{
			name: "Empty Access Token",
			op:   OpToken,
			respond: func(_ context.Context, req Request) (*Response, error) {
				return &Response{Operation: req.Operation, Body: body(t, TokenResponse{ExpiresIn: 3600})}, nil
			},
			wantKind: core.KindInvalidResponse,
		},
		{
			name: "Remote Invalid Credentials",
			op:   OpToken,
			respond: func(_ context.Context, req Request) (*Response, error) {
				return &Response{Operation: req.Operation, Error: &RemoteError{Code: CodeInvalidCredentials, Message: "nope"}}, nil
			},
			wantKind: core.KindInvalidCredentials,
		},
		{
			name: "Transport Failure",
			op:   OpClaimStatus,
			respond: func(_ context.Context, _ Request) (*Response, error) {
				return nil, errors.New("connection reset")
			},
			wantKind: core.KindNetworkError,
		},
		{
			name: "Mismatched Operation",
			op:   OpClaimStatus,
			respond: func(_ context.Context, _ Request) (*Response, error) {
				return &Response{Operation: OpSynchronize}, nil
			},
			wantKind: core.KindInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &scriptedSession{fn: tt.respond, codec: codec}
			c := Client{Session: sess, Codec: codec, APIVersion: "v2", Timeout: time.Second}

			var out json.RawMessage
			err := c.Do(context.Background(), tt.op, core.AuthToken{AccessToken: "tok", TokenType: "Bearer"}, struct{}{}, &out)
			if got := core.KindOf(err); got != tt.wantKind {
				t.Fatalf("Do() error kind = %q (%v), want %q", got, err, tt.wantKind)
			}
			if sess.last.Token != "tok" || sess.last.Operation != string(tt.op) {
				t.Fatalf("exchange metadata not forwarded: %+v", sess.last)
			}
		})
	}
}

func TestClient_DoTimeout(t *testing.T) {
	codec := encryption.Plain{}
	sess := &scriptedSession{codec: codec, fn: func(ctx context.Context, _ Request) (*Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	c := Client{Session: sess, Codec: codec, Timeout: 10 * time.Millisecond}

	err := c.Do(context.Background(), OpClaimStatus, core.AuthToken{}, ClaimStatusRequest{ClaimID: "C1"}, nil)
	if !errors.Is(err, core.ErrNetwork) || !core.IsTimeout(err) {
		t.Fatalf("got %v, want NetworkError timeout", err)
	}
	if !core.IsTransient(err) {
		t.Fatalf("timeouts must be transient")
	}
}

func TestClient_DoUnauthorized(t *testing.T) {
	codec := encryption.Plain{}
	sess := &scriptedSession{codec: codec, fn: func(_ context.Context, req Request) (*Response, error) {
		return &Response{Operation: req.Operation, Error: &RemoteError{Code: CodeUnauthorized}}, nil
	}}
	c := Client{Session: sess, Codec: codec}

	err := c.Do(context.Background(), OpClaimStatus, core.AuthToken{}, ClaimStatusRequest{ClaimID: "C1"}, nil)
	if !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("got %v, want unauthorized signal", err)
	}
}

func TestClient_DoWithoutSession(t *testing.T) {
	c := Client{Codec: encryption.Plain{}}
	err := c.Do(context.Background(), OpToken, core.AuthToken{}, nil, nil)
	if !errors.Is(err, core.ErrNoActiveSession) {
		t.Fatalf("got %v, want NoActiveSession", err)
	}
}
