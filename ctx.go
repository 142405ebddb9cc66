package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

var identityCtxKey = &contextKey{"identity"}

type contextKey struct {
	name string
}

// WithIdentity sets the Identity in the given context
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey, identity)
}

// IdentityFromContext finds the identity in the context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	raw, ok := ctx.Value(identityCtxKey).(Identity)
	if !ok || raw.IsZero() {
		return Identity{}, false
	}
	return raw, true
}

// IdentityFromFiber extracts the identity stored by the authorization
// middleware, looking at the fiber locals first and then the user context.
func IdentityFromFiber(c *fiber.Ctx, key string) (Identity, bool) {
	if key == "" {
		key = DefaultContextKey
	}
	if raw, ok := c.Locals(key).(Identity); ok && !raw.IsZero() {
		return raw, true
	}
	return IdentityFromContext(c.UserContext())
}
