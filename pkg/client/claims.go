package client

import (
	"context"

	"github.com/darmiel/insurelink/internal/api"
	"github.com/darmiel/insurelink/internal/core"
)

func (c *Client) SubmitClaim(ctx context.Context, provider string, claim core.Claim) (*core.ClaimResponse, string, error) {
	var res core.ClaimResponse
	correlation, err := c.post(ctx, c.url().
		setPath(api.ClaimsRoute).
		setPathParam("id", provider).
		build(), claim, &res)
	return &res, correlation, err
}

func (c *Client) ClaimStatus(ctx context.Context, provider, claimID string) (*core.ClaimStatus, string, error) {
	var res core.ClaimStatus
	correlation, err := c.get(ctx, c.url().
		setPath(api.ClaimRoute).
		setPathParam("id", provider).
		setPathParam("claim", claimID).
		build(), &res)
	return &res, correlation, err
}

func (c *Client) UpdateClaim(ctx context.Context, provider string, claim core.Claim) (*core.ClaimResponse, string, error) {
	var res core.ClaimResponse
	correlation, err := c.put(ctx, c.url().
		setPath(api.ClaimRoute).
		setPathParam("id", provider).
		setPathParam("claim", claim.ID).
		build(), claim, &res)
	return &res, correlation, err
}
