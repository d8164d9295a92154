package client

import (
	"context"

	"github.com/darmiel/insurelink/internal/api"
	"github.com/darmiel/insurelink/internal/core"
	"github.com/darmiel/insurelink/internal/retry"
)

func (c *Client) ListRetries(ctx context.Context, provider string) (*api.RetriesResponse, string, error) {
	var res api.RetriesResponse
	correlation, err := c.get(ctx, c.url().
		setPath(api.RetriesRoute).
		setPathParam("id", provider).
		build(), &res)
	return &res, correlation, err
}

// RetryFailedOperations drains every queued operation of a provider, due or not.
func (c *Client) RetryFailedOperations(ctx context.Context, provider string) (*retry.Report, string, error) {
	var res retry.Report
	correlation, err := c.post(ctx, c.url().
		setPath(api.RetriesRoute).
		setPathParam("id", provider).
		build(), nil, &res)
	return &res, correlation, err
}

func (c *Client) Metrics(ctx context.Context, provider string) (*core.APIMetrics, string, error) {
	var res core.APIMetrics
	correlation, err := c.get(ctx, c.url().
		setPath(api.MetricsRoute).
		setPathParam("id", provider).
		build(), &res)
	return &res, correlation, err
}

func (c *Client) ErrorStats(ctx context.Context, provider string) (*core.ErrorStatistics, string, error) {
	var res core.ErrorStatistics
	correlation, err := c.get(ctx, c.url().
		setPath(api.ErrorsRoute).
		setPathParam("id", provider).
		build(), &res)
	return &res, correlation, err
}

func (c *Client) Compliance(ctx context.Context, provider string) (*core.ComplianceStatus, string, error) {
	var res core.ComplianceStatus
	correlation, err := c.get(ctx, c.url().
		setPath(api.ComplianceRoute).
		setPathParam("id", provider).
		build(), &res)
	return &res, correlation, err
}
