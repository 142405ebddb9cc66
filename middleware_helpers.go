package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-auth-guard/middleware/jwtware"
)

// ContextEnricherAdapter stores the jwtware identity in the standard
// context so handlers can call IdentityFromContext.
func ContextEnricherAdapter(c context.Context, identity jwtware.Identity) context.Context {
	id := identityFrom(identity)
	if id.IsZero() {
		return c
	}
	return WithIdentity(c, id)
}

// NewAuthMiddleware builds the authorization filter for cfg, verifying
// tokens with decoder and enforcing policy. Requests to skipPaths and CORS
// preflights bypass the filter entirely.
func NewAuthMiddleware(cfg Config, decoder TokenDecoder, policy *AccessPolicy, logger Logger, skipPaths ...string) fiber.Handler {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[normalizePath(p)] = struct{}{}
	}

	return jwtware.New(jwtware.Config{
		Filter: func(c *fiber.Ctx) bool {
			if c.Method() == fiber.MethodOptions {
				return true
			}
			_, ok := skip[normalizePath(c.Path())]
			return ok
		},
		Validator:       NewTokenValidator(decoder),
		Authorizer:      NewPolicyAuthorizer(policy),
		AuthScheme:      cfg.GetAuthScheme(),
		ContextKey:      cfg.GetContextKey(),
		Logger:          resolveLogger(logger),
		ContextEnricher: ContextEnricherAdapter,
	})
}
