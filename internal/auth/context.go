package auth

import "context"

type ctxKey struct{}

// WithUserID attaches an authenticated user id to ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	if userID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(ctxKey{}).(string)
	return userID, ok && userID != ""
}
