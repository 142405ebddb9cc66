package auth

import (
	"time"

	"github.com/goliatone/go-auth-guard/middleware/jwtware"
)

// NewTokenValidator exposes a TokenDecoder to the jwtware middleware
func NewTokenValidator(decoder TokenDecoder) jwtware.TokenValidator {
	return jwtware.TokenValidatorFunc(func(token string, now time.Time) (jwtware.Identity, error) {
		if decoder == nil {
			return nil, ErrTokenMalformed
		}
		identity, err := decoder.Decode(token, now)
		if err != nil {
			return nil, err
		}
		return identity, nil
	})
}

// NewPolicyAuthorizer exposes an AccessPolicy to the jwtware middleware
func NewPolicyAuthorizer(policy *AccessPolicy) jwtware.Authorizer {
	return jwtware.AuthorizerFunc(func(method, path string, identity jwtware.Identity) error {
		return policy.Authorize(method, path, identityFrom(identity))
	})
}

func identityFrom(identity jwtware.Identity) Identity {
	if identity == nil {
		return Identity{}
	}
	if id, ok := identity.(Identity); ok {
		return id
	}
	return NewIdentity(identity.GetSubject(), identity.GetRoles())
}
