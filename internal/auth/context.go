// ABOUTME: Request context helpers for the authenticated client identity
// ABOUTME: Provides WithClientID/ClientIDFromContext for propagation via context

package auth

import (
	"context"
)

// clientContextKey is the key type for storing the client id in context.Context.
type clientContextKey struct{}

// WithClientID returns a new context with the authenticated client id attached.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientContextKey{}, clientID)
}

// ClientIDFromContext retrieves the authenticated client id from the context.
// Returns an empty string when the request was not authenticated.
func ClientIDFromContext(ctx context.Context) string {
	val := ctx.Value(clientContextKey{})
	if val == nil {
		return ""
	}
	id, ok := val.(string)
	if !ok {
		return ""
	}
	return id
}
