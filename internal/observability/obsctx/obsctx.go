// Package obsctx carries request-scoped correlation identifiers on a context.
package obsctx

import "context"

type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID returns a context carrying the request identifier.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request identifier, or "" when absent.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}
