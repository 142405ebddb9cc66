package auth

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

const (
	// MinSigningKeyLength is the shortest accepted HMAC secret, in bytes
	MinSigningKeyLength = 32
	DefaultAuthScheme   = "Bearer"
	DefaultContextKey   = "identity"
	DefaultTokenTTL     = 24 * time.Hour
)

// Options is the immutable Config implementation. Build it with NewOptions
// and share the value; there are no setters.
type Options struct {
	signingKey    string
	signingMethod string
	tokenTTL      time.Duration
	authScheme    string
	contextKey    string
	issuer        string
	audience      []string
}

var _ Config = Options{}

// Option customizes Options during construction
type Option func(*Options)

// NewOptions returns validated options. An invalid configuration is
// returned as ErrInvalidConfig and should abort process startup.
func NewOptions(signingKey string, opts ...Option) (Options, error) {
	o := Options{
		signingKey:    signingKey,
		signingMethod: jwt.SigningMethodHS256.Alg(),
		tokenTTL:      DefaultTokenTTL,
		authScheme:    DefaultAuthScheme,
		contextKey:    DefaultContextKey,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if err := o.Validate(); err != nil {
		return Options{}, err
	}
	return o, nil
}

func WithSigningMethod(alg string) Option {
	return func(o *Options) { o.signingMethod = alg }
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(o *Options) { o.tokenTTL = ttl }
}

func WithAuthScheme(scheme string) Option {
	return func(o *Options) { o.authScheme = strings.TrimSpace(scheme) }
}

func WithContextKey(key string) Option {
	return func(o *Options) { o.contextKey = key }
}

func WithIssuer(issuer string) Option {
	return func(o *Options) { o.issuer = issuer }
}

func WithAudience(aud ...string) Option {
	return func(o *Options) { o.audience = append([]string(nil), aud...) }
}

// Validate checks the invariants the token service relies on
func (o Options) Validate() error {
	err := validation.Errors{
		"signing_key": validation.Validate(o.signingKey,
			validation.Required,
			validation.Length(MinSigningKeyLength, 0).Error("must be at least 32 bytes long"),
		),
		"signing_method": validation.Validate(o.signingMethod,
			validation.Required,
			validation.In(jwt.SigningMethodHS256.Alg()).Error("only HS256 is supported"),
		),
		"token_ttl": validation.Validate(int64(o.tokenTTL),
			validation.Required.Error("must be positive"),
			validation.Min(int64(1)).Error("must be positive"),
		),
		"auth_scheme": validation.Validate(o.authScheme, validation.Required),
		"context_key": validation.Validate(o.contextKey, validation.Required),
	}.Filter()
	if err == nil {
		return nil
	}

	verr := errors.FromOzzoValidation(err, ErrInvalidConfig.Message)
	verr.Category = ErrInvalidConfig.Category
	verr.Code = ErrInvalidConfig.Code
	verr.TextCode = ErrInvalidConfig.TextCode
	verr.Source = ErrInvalidConfig
	return verr
}

func (o Options) GetSigningKey() string { return o.signingKey }
func (o Options) GetSigningMethod() string { return o.signingMethod }
func (o Options) GetTokenTTL() time.Duration { return o.tokenTTL }
func (o Options) GetAuthScheme() string { return o.authScheme }
func (o Options) GetContextKey() string { return o.contextKey }
func (o Options) GetIssuer() string { return o.issuer }
func (o Options) GetAudience() []string { return append([]string(nil), o.audience...) }
