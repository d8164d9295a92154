package wire

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/darmiel/insurelink/internal/core"
)

// Client performs exchanges with a provider through a Session.
type Client struct {
	Session    core.Session
	Codec      core.Codec
	APIVersion string

	// Timeout bounds each exchange. Zero means core.DefaultTimeout.
	Timeout time.Duration
}

// Do sends in as the body of op and decodes the response body into out.
// token may be empty for operations that do not require authentication.
func (c Client) Do(ctx context.Context, op Operation, token core.AuthToken, in, out any) error {
	if c.Session == nil {
		return core.NewError(core.KindNoActiveSession, "no transport session")
	}

	body, err := json.Marshal(in)
	if err != nil {
		return core.WrapError(core.KindEncryptionError, err, "encoding %s body", op)
	}
	payload, err := c.Codec.Encode(Request{
		SchemaVersion: SchemaVersion,
		APIVersion:    c.APIVersion,
		Operation:     op,
		Body:          body,
	})
	if err != nil {
		return err
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = core.DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := c.Session.Send(callCtx, core.Exchange{
		Operation: string(op),
		Token:     token.AccessToken,
		TokenType: token.TokenType,
		Payload:   payload,
	})
	if err != nil {
		return transportError(callCtx, op, err)
	}

	var resp Response
	if err := c.Codec.Decode(raw, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return remoteError(op, resp.Error)
	}
	if resp.Operation != "" && resp.Operation != op {
		return core.NewError(core.KindInvalidResponse, "response for %q answered %q", op, resp.Operation)
	}
	if err := ValidateResponseBody(op, resp.Body); err != nil {
		return core.WrapError(core.KindInvalidResponse, err, "validating %s response", op)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return core.WrapError(core.KindInvalidResponse, err, "decoding %s response", op)
	}
	return nil
}

// transportError turns a failed Send into a NetworkError unless the transport already
// classified it. Exceeded deadlines are marked as timeouts.
func transportError(ctx context.Context, op Operation, err error) error {
	timedOut := errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
	if timedOut {
		return &core.Error{
			Kind:    core.KindNetworkError,
			Msg:     fmt.Sprintf("%s timed out", op),
			Timeout: true,
			Err:     err,
		}
	}
	if core.KindOf(err) != "" {
		return err
	}
	return core.WrapError(core.KindNetworkError, err, "sending %s", op)
}

func remoteError(op Operation, re *RemoteError) error {
	var kind core.ErrorKind
	switch re.Code {
	case CodeInvalidCredentials:
		kind = core.KindInvalidCredentials
	case CodeUnauthorized:
		return &core.Error{Kind: core.ErrUnauthorized.Kind, Msg: re.Message}
	case CodeRateLimited:
		kind = core.KindRateLimitExceeded
	case CodeInvalidClaim:
		kind = core.KindInvalidClaim
	case CodeUnavailable:
		kind = core.KindNetworkError
	default:
		kind = core.KindInvalidResponse
	}
	return core.NewError(kind, "%s rejected by provider (%s): %s", op, re.Code, re.Message)
}
