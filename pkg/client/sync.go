package client

import (
	"context"

	"github.com/darmiel/insurelink/internal/api"
	"github.com/darmiel/insurelink/internal/core"
)

// Synchronize pulls the given data types from a provider. Without types the provider's
// configured set is used.
func (c *Client) Synchronize(ctx context.Context, provider string, types ...core.DataType) (*core.SyncResult, string, error) {
	var res core.SyncResult
	correlation, err := c.post(ctx, c.url().
		setPath(api.SyncRoute).
		setPathParam("id", provider).
		build(), api.SyncPayload{DataTypes: types}, &res)
	return &res, correlation, err
}

func (c *Client) SyncStatus(ctx context.Context, provider string) (*core.SyncStatus, string, error) {
	var res core.SyncStatus
	correlation, err := c.get(ctx, c.url().
		setPath(api.SyncRoute).
		setPathParam("id", provider).
		build(), &res)
	return &res, correlation, err
}
