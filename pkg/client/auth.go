package client

import (
	"context"

	"github.com/darmiel/insurelink/internal/api"
	"github.com/darmiel/insurelink/internal/core"
)

// Authenticate exchanges creds for a provider token. The token itself stays on the
// server, only its description is returned.
func (c *Client) Authenticate(ctx context.Context, provider string, creds core.Credentials) (*core.TokenInfo, string, error) {
	var res core.TokenInfo
	correlation, err := c.post(ctx, c.url().
		setPath(api.AuthRoute).
		setPathParam("id", provider).
		build(), creds, &res)
	return &res, correlation, err
}

func (c *Client) TokenInfo(ctx context.Context, provider string) (*core.TokenInfo, string, error) {
	var res core.TokenInfo
	correlation, err := c.get(ctx, c.url().
		setPath(api.AuthRoute).
		setPathParam("id", provider).
		build(), &res)
	return &res, correlation, err
}

func (c *Client) RefreshToken(ctx context.Context, provider string) (*core.TokenInfo, string, error) {
	var res core.TokenInfo
	correlation, err := c.post(ctx, c.url().
		setPath(api.RefreshAuthRoute).
		setPathParam("id", provider).
		build(), nil, &res)
	return &res, correlation, err
}

func (c *Client) RevokeToken(ctx context.Context, provider string) (string, error) {
	return c.delete(ctx, c.url().
		setPath(api.AuthRoute).
		setPathParam("id", provider).
		build(), nil)
}
