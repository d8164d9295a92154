package client

import (
	"context"

	"github.com/darmiel/insurelink/internal/api"
	"github.com/darmiel/insurelink/internal/core"
)

func (c *Client) ListProviders(ctx context.Context) ([]api.ProviderSummary, string, error) {
	var res []api.ProviderSummary
	correlation, err := c.get(ctx, c.url().
		setPath(api.ProvidersRoute).
		build(), &res)
	return res, correlation, err
}

func (c *Client) GetProvider(ctx context.Context, id string) (*api.ProviderSummary, string, error) {
	var res api.ProviderSummary
	correlation, err := c.get(ctx, c.url().
		setPath(api.ProviderRoute).
		setPathParam("id", id).
		build(), &res)
	return &res, correlation, err
}

// RegisterProvider adds a provider at runtime. Requires an admin token.
func (c *Client) RegisterProvider(ctx context.Context, cfg core.ProviderConfig) (*api.ProviderSummary, string, error) {
	var res api.ProviderSummary
	correlation, err := c.post(ctx, c.url().
		setPath(api.AdminProvidersRoute).
		build(), cfg, &res)
	return &res, correlation, err
}

// RemoveProvider closes and forgets a provider. Requires an admin token.
func (c *Client) RemoveProvider(ctx context.Context, id string) (string, error) {
	return c.delete(ctx, c.url().
		setPath(api.AdminProviderRoute).
		setPathParam("id", id).
		build(), nil)
}
