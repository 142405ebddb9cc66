package auth

import (
	"context"
	"time"
)

// Logger is the logging surface used across the package. Arguments after
// the message are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LoggerProvider hands out named loggers
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetTokenTTL() time.Duration
	GetAuthScheme() string
	GetContextKey() string
	GetIssuer() string
	GetAudience() []string
}

// Credentials is what a CredentialStore knows about an account.
// Roles keep their assignment order.
type Credentials struct {
	Username     string   `json:"username"`
	PasswordHash string   `json:"password_hash"`
	Roles        []string `json:"roles"`
}

// CredentialStore resolves credentials by username. Implementations return
// ErrNotFound when the account does not exist.
type CredentialStore interface {
	FindByUsername(ctx context.Context, username string) (Credentials, error)
}

// CredentialStoreFunc adapts a function to the CredentialStore interface.
type CredentialStoreFunc func(ctx context.Context, username string) (Credentials, error)

// FindByUsername implements CredentialStore.
func (f CredentialStoreFunc) FindByUsername(ctx context.Context, username string) (Credentials, error) {
	return f(ctx, username)
}

// PasswordVerifier is a one way salted hash with constant time comparison
type PasswordVerifier interface {
	Hash(plaintext string) (string, error)
	Matches(plaintext, hash string) bool
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, username, password string, now time.Time) (*LoginResult, error)
}

// TokenDecoder verifies tokens offline
type TokenDecoder interface {
	Decode(token string, now time.Time) (Identity, error)
	Parse(token string, now time.Time) (*JWTClaims, error)
}
