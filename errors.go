package auth

import (
	"github.com/goliatone/go-errors"

	"github.com/goliatone/go-auth-guard/middleware/jwtware"
)

const (
	TextCodeTokenSignature = "TOKEN_SIGNATURE_INVALID"
	TextCodeNotFound       = "NOT_FOUND"
	TextCodeAlreadyExists  = "ALREADY_EXISTS"
	TextCodeInvalidConfig  = "INVALID_CONFIG"
	TextCodeInvalidSubject = "INVALID_SUBJECT"
	TextCodeInvalidTTL     = "INVALID_TTL"
	TextCodeImmutableClaim = "IMMUTABLE_CLAIM_MUTATION"
)

var (
	// ErrInvalidCredentials is returned for unknown users and wrong passwords alike
	ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
		WithCode(errors.CodeUnauthorized).
		WithTextCode(errors.TextCodeInvalidCredentials)

	// ErrTokenMalformed token could not be parsed
	ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
		WithCode(errors.CodeUnauthorized).
		WithTextCode(errors.TextCodeTokenMalformed)

	// ErrTokenSignature token signature did not verify or the algorithm is not allowed
	ErrTokenSignature = errors.New("token signature is invalid", errors.CategoryAuth).
		WithCode(errors.CodeUnauthorized).
		WithTextCode(TextCodeTokenSignature)

	// ErrTokenExpired token is past its expiry claim
	ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
		WithCode(errors.CodeUnauthorized).
		WithTextCode(errors.TextCodeTokenExpired)

	// ErrEmptyToken the authorization header has the scheme and nothing else
	ErrEmptyToken = jwtware.ErrEmptyToken

	// ErrUnauthenticated an anonymous request reached a protected route
	ErrUnauthenticated = jwtware.ErrUnauthenticated

	// ErrInsufficientRole the identity holds none of the required roles
	ErrInsufficientRole = jwtware.ErrInsufficientRole

	ErrNotFound = errors.New("record not found", errors.CategoryNotFound).
		WithCode(errors.CodeNotFound).
		WithTextCode(TextCodeNotFound)

	ErrAlreadyExists = errors.New("record already exists", errors.CategoryConflict).
		WithCode(errors.CodeConflict).
		WithTextCode(TextCodeAlreadyExists)

	ErrTooManyAttempts = errors.New("too many login attempts", errors.CategoryRateLimit).
		WithCode(errors.CodeTooManyRequests).
		WithTextCode(errors.TextCodeTooManyAttempts)

	ErrInvalidConfig = errors.New("invalid auth configuration", errors.CategoryInternal).
		WithCode(errors.CodeInternal).
		WithTextCode(TextCodeInvalidConfig)

	ErrInvalidSubject = errors.New("token subject must not be empty", errors.CategoryBadInput).
		WithCode(errors.CodeBadRequest).
		WithTextCode(TextCodeInvalidSubject)

	ErrInvalidTTL = errors.New("token ttl must be positive", errors.CategoryBadInput).
		WithCode(errors.CodeBadRequest).
		WithTextCode(TextCodeInvalidTTL)

	// ErrImmutableClaimMutation a ClaimsDecorator changed a registered claim or the roles
	ErrImmutableClaimMutation = errors.New("immutable claim mutated", errors.CategoryInternal).
		WithCode(errors.CodeInternal).
		WithTextCode(TextCodeImmutableClaim)

	// ErrNoEmptyString password must not be empty
	ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryBadInput).
		WithCode(errors.CodeBadRequest).
		WithTextCode(errors.TextCodeEmptyPassword)
)

// withCause returns a copy of sentinel that unwraps to sentinel and records
// the underlying failure for server side logs.
func withCause(sentinel *errors.Error, cause error) *errors.Error {
	out := sentinel.Clone()
	out.Source = sentinel
	if cause != nil {
		out.WithMetadata(map[string]any{"cause": cause.Error()})
	}
	return out
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	return errors.Is(err, ErrTokenExpired)
}

// IsMalformedError will check for tokens that could not be parsed
func IsMalformedError(err error) bool {
	return errors.Is(err, ErrTokenMalformed)
}

// IsSignatureError will check for forged or mis-signed tokens
func IsSignatureError(err error) bool {
	return errors.Is(err, ErrTokenSignature)
}

// IsTokenError reports whether err is one of the token verification failures.
func IsTokenError(err error) bool {
	return IsTokenExpiredError(err) || IsMalformedError(err) || IsSignatureError(err)
}

// IsNotFound reports whether a user or role lookup found nothing
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
