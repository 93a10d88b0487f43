package principal

import "context"

// principalKey is a private type for the principal context key, preventing
// collisions with other packages.
type principalKey struct{}

// SetContext stores the resolved principal in the request context.
func SetContext(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext retrieves the resolved principal.
// Returns nil if the request is unauthenticated.
func FromContext(ctx context.Context) *Principal {
	if v, ok := ctx.Value(principalKey{}).(*Principal); ok {
		return v
	}
	return nil
}
