package jwtware

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
)

const (
	DefaultHeader     = fiber.HeaderAuthorization
	DefaultAuthScheme = "Bearer"
	DefaultContextKey = "identity"

	MessageEmptyToken      = "empty token"
	MessageInvalidToken    = "invalid or expired token"
	MessageUnauthenticated = "authentication required"
	MessageForbidden       = "insufficient role"
	MessageInternal        = "internal server error"
)

var (
	// ErrEmptyToken the header carried the scheme but no token
	ErrEmptyToken = errors.New(MessageEmptyToken, errors.CategoryAuth).
		WithCode(errors.CodeUnauthorized).
		WithTextCode("TOKEN_EMPTY")

	// ErrUnauthenticated the route needs an identity and the request has none
	ErrUnauthenticated = errors.New(MessageUnauthenticated, errors.CategoryAuth).
		WithCode(errors.CodeUnauthorized).
		WithTextCode("UNAUTHENTICATED")

	// ErrInsufficientRole the identity lacks every role the route accepts
	ErrInsufficientRole = errors.New(MessageForbidden, errors.CategoryAuthz).
		WithCode(errors.CodeForbidden).
		WithTextCode("INSUFFICIENT_ROLE")
)

// Identity mirrors the auth package identity to avoid import cycles
type Identity interface {
	GetSubject() string
	GetRoles() []string
}

// TokenValidator verifies a raw token at the given instant. It mirrors the
// auth token service so the middleware does not import it.
type TokenValidator interface {
	Validate(token string, now time.Time) (Identity, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(token string, now time.Time) (Identity, error)

func (f TokenValidatorFunc) Validate(token string, now time.Time) (Identity, error) {
	return f(token, now)
}

// Authorizer decides whether identity may call method on path. identity is
// nil for anonymous requests. It returns nil, ErrUnauthenticated, or
// ErrInsufficientRole.
type Authorizer interface {
	Authorize(method, path string, identity Identity) error
}

// AuthorizerFunc adapts a function into an Authorizer.
type AuthorizerFunc func(method, path string, identity Identity) error

func (f AuthorizerFunc) Authorize(method, path string, identity Identity) error {
	return f(method, path, identity)
}

// Logger is satisfied by *slog.Logger
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type Config struct {
	// Filter skips the middleware when it returns true
	Filter         func(*fiber.Ctx) bool
	SuccessHandler fiber.Handler
	ErrorHandler   fiber.ErrorHandler

	// Validator is required
	Validator TokenValidator
	// Authorizer runs for every request, anonymous ones included. Without
	// an Authorizer anonymous requests are rejected.
	Authorizer Authorizer

	Header     string
	AuthScheme string
	ContextKey string
	Now        func() time.Time
	Logger     Logger

	// ContextEnricher propagates the identity to the request user context
	ContextEnricher func(ctx context.Context, identity Identity) context.Context
}

func New(config ...Config) fiber.Handler {
	cfg := GetDefaultConfig(config...)

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		identity, err := cfg.authenticate(c)
		if err != nil {
			cfg.Logger.Warn("authorization filter rejected token",
				"method", c.Method(),
				"path", c.Path(),
				"error", err.Error(),
			)
			return cfg.ErrorHandler(c, err)
		}

		if identity != nil {
			c.Locals(cfg.ContextKey, identity)
			if cfg.ContextEnricher != nil {
				c.SetUserContext(cfg.ContextEnricher(c.UserContext(), identity))
			}
		}

		if err := cfg.authorize(c, identity); err != nil {
			cfg.Logger.Debug("authorization filter denied request",
				"method", c.Method(),
				"path", c.Path(),
				"subject", subjectOf(identity),
				"error", err.Error(),
			)
			return cfg.ErrorHandler(c, err)
		}

		return cfg.SuccessHandler(c)
	}
}

func (cfg Config) authenticate(c *fiber.Ctx) (Identity, error) {
	raw, state := ExtractToken(c.Get(cfg.Header), cfg.AuthScheme)
	switch state {
	case TokenAbsent:
		return nil, nil
	case TokenEmpty:
		return nil, ErrEmptyToken
	}

	identity, err := cfg.Validator.Validate(raw, cfg.Now())
	if err != nil {
		return nil, err
	}
	if identity == nil || identity.GetSubject() == "" {
		return nil, ErrUnauthenticated
	}
	return identity, nil
}

func (cfg Config) authorize(c *fiber.Ctx, identity Identity) error {
	if cfg.Authorizer == nil {
		if identity == nil {
			return ErrUnauthenticated
		}
		return nil
	}
	return cfg.Authorizer.Authorize(c.Method(), c.Path(), identity)
}

func subjectOf(identity Identity) string {
	if identity == nil {
		return ""
	}
	return identity.GetSubject()
}

// TokenState is the outcome of reading the authorization header
type TokenState int

const (
	// TokenAbsent no header, or a header with another scheme
	TokenAbsent TokenState = iota
	// TokenEmpty the scheme is present with nothing after it
	TokenEmpty
	// TokenPresent a token follows the scheme
	TokenPresent
)

// ExtractToken reads "<scheme> <token>" from header. The scheme match is
// case insensitive and the token is trimmed.
func ExtractToken(header, scheme string) (string, TokenState) {
	header = strings.TrimSpace(header)
	scheme = strings.TrimSpace(scheme)
	if header == "" || scheme == "" {
		return "", TokenAbsent
	}

	if strings.EqualFold(header, scheme) {
		return "", TokenEmpty
	}

	l := len(scheme)
	if len(header) <= l || !strings.EqualFold(header[:l], scheme) || header[l] != ' ' {
		return "", TokenAbsent
	}

	token := strings.TrimSpace(header[l+1:])
	if token == "" {
		return "", TokenEmpty
	}
	return token, TokenPresent
}

// PublicError maps err to the status and message a client is allowed to
// see. Token verification failures all collapse to one message.
func PublicError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrEmptyToken):
		return fiber.StatusUnauthorized, MessageEmptyToken
	case errors.Is(err, ErrUnauthenticated):
		return fiber.StatusUnauthorized, MessageUnauthenticated
	case errors.Is(err, ErrInsufficientRole):
		return fiber.StatusForbidden, MessageForbidden
	}

	var rich *errors.Error
	if errors.As(err, &rich) {
		switch {
		case rich.Category == errors.CategoryAuthz:
			return fiber.StatusForbidden, MessageForbidden
		case rich.Code >= fiber.StatusInternalServerError:
			return fiber.StatusInternalServerError, MessageInternal
		}
	}

	return fiber.StatusUnauthorized, MessageInvalidToken
}

func defaultErrorHandler(c *fiber.Ctx, err error) error {
	status, message := PublicError(err)
	return c.Status(status).JSON(fiber.Map{"error": message})
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Validator == nil {
		panic("AUTH: JWT middleware configuration: Validator is required.")
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	if cfg.Header == "" {
		cfg.Header = DefaultHeader
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = DefaultAuthScheme
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return cfg
}
