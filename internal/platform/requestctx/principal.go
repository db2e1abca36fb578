// Package requestctx carries request-scoped identity through context.
package requestctx

import "context"

// Principal identifies the authenticated actor for a table.
type Principal struct {
	// UserID is the stable identifier minted by the grant issuer.
	UserID string
	// GM reports whether the actor holds the game-master role.
	GM bool
}

// principalContextKey is the context key for the authenticated principal.
type principalContextKey struct{}

// WithPrincipal stores the authenticated principal in context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the principal stored in context, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	value, ok := ctx.Value(principalContextKey{}).(Principal)
	return value, ok
}
