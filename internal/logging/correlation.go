package logging

import "context"

type correlationKey struct{}

// WithCorrelationID returns a context carrying the correlation id of a request.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationCtx retrieves the correlation ID from the context.
func CorrelationCtx(ctx context.Context) string {
	id, ok := ctx.Value(correlationKey{}).(string)
	if !ok {
		return ""
	}
	return id
}

// CorrelationIDHeader carries the correlation id between services.
const CorrelationIDHeader = "X-Correlation-ID"
