package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTClaims is the payload of every token this package issues. Metadata
// is only set by a ClaimsDecorator.
type JWTClaims struct {
	jwt.RegisteredClaims
	Roles    []string       `json:"roles"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Identity returns the principal described by the claims
func (c *JWTClaims) Identity() Identity {
	if c == nil {
		return Identity{}
	}
	return NewIdentity(c.Subject, c.Roles)
}

// TokenID returns the jti claim
func (c *JWTClaims) TokenID() string {
	if c == nil {
		return ""
	}
	return c.ID
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims == nil || claims.ID != "" {
		return
	}
	claims.ID = uuid.NewString()
}
