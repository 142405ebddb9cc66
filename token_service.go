package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenService encodes and decodes HS256 bearer tokens. It holds only
// immutable configuration and is safe for concurrent use.
type TokenService struct {
	signingKey []byte
	method     jwt.SigningMethod
	ttl        time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	decorator  ClaimsDecorator
}

// IssuedToken is a freshly minted token and its expiry
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

var _ TokenDecoder = (*TokenService)(nil)

// NewTokenService creates a new TokenService instance. Any configuration
// problem (short secret, unsupported algorithm, non positive ttl) is
// returned as ErrInvalidConfig.
func NewTokenService(cfg Config) (*TokenService, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}

	opts, err := NewOptions(cfg.GetSigningKey(),
		WithSigningMethod(cfg.GetSigningMethod()),
		WithTokenTTL(cfg.GetTokenTTL()),
		WithAuthScheme(cfg.GetAuthScheme()),
		WithContextKey(cfg.GetContextKey()),
		WithIssuer(cfg.GetIssuer()),
		WithAudience(cfg.GetAudience()...),
	)
	if err != nil {
		return nil, err
	}

	var aud jwt.ClaimStrings
	if len(opts.audience) > 0 {
		aud = append(jwt.ClaimStrings{}, opts.audience...)
	}

	return &TokenService{
		signingKey: []byte(opts.signingKey),
		method:     jwt.GetSigningMethod(opts.signingMethod),
		ttl:        opts.tokenTTL,
		issuer:     opts.issuer,
		audience:   aud,
		logger:     defLogger{},
		decorator:  noopClaimsDecorator{},
	}, nil
}

func (ts *TokenService) WithLogger(logger Logger) *TokenService {
	ts.logger = resolveLogger(logger)
	return ts
}

// WithClaimsDecorator sets the decorator Issue runs before signing. It must
// be called before the service is shared.
func (ts *TokenService) WithClaimsDecorator(d ClaimsDecorator) *TokenService {
	ts.decorator = normalizeClaimsDecorator(d)
	return ts
}

// TTL is the configured token lifetime used by Issue
func (ts *TokenService) TTL() time.Duration {
	return ts.ttl
}

// Issue encodes a token that expires after the configured TTL
func (ts *TokenService) Issue(subject string, roles []string, now time.Time) (IssuedToken, error) {
	claims, err := ts.newClaims(subject, roles, now, ts.ttl)
	if err != nil {
		return IssuedToken{}, err
	}

	if err := ts.decorate(claims); err != nil {
		return IssuedToken{}, err
	}

	token, err := ts.SignClaims(claims)
	if err != nil {
		return IssuedToken{}, err
	}

	return IssuedToken{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Encode produces a signed token for subject whose expiry claim is now+ttl.
// Expiry has second precision and is rounded up, so any positive ttl yields
// a token that is still valid at now.
func (ts *TokenService) Encode(subject string, roles []string, now time.Time, ttl time.Duration) (string, error) {
	claims, err := ts.newClaims(subject, roles, now, ttl)
	if err != nil {
		return "", err
	}
	return ts.SignClaims(claims)
}

func (ts *TokenService) newClaims(subject string, roles []string, now time.Time, ttl time.Duration) (*JWTClaims, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, ErrInvalidSubject
	}

	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   subject,
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiryAfter(now, ttl)),
		},
		Roles: append([]string{}, roles...),
	}

	ensureTokenID(&claims.RegisteredClaims)

	return claims, nil
}

// expiryAfter is now+ttl rounded up to the next whole second
func expiryAfter(now time.Time, ttl time.Duration) time.Time {
	exp := now.Add(ttl)
	if whole := exp.Truncate(time.Second); !whole.Equal(exp) {
		return whole.Add(time.Second)
	}
	return exp
}

func (ts *TokenService) decorate(claims *JWTClaims) error {
	snap := captureImmutableClaims(claims)
	if err := ts.decorator.Decorate(claims.Identity(), claims); err != nil {
		ts.logger.Error("claims decorator failed", "subject", claims.Subject, "error", err)
		return errors.Wrap(err, errors.CategoryInternal, "failed to decorate claims")
	}
	if err := snap.validate(claims); err != nil {
		ts.logger.Error("claims decorator mutated immutable claims", "subject", claims.Subject, "error", err)
		return err
	}
	return nil
}

// SignClaims signs claims with the pinned algorithm and the server secret.
func (ts *TokenService) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(ts.method, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signed, nil
}

// Decode verifies token at the given instant and returns its identity. It
// performs no I/O.
func (ts *TokenService) Decode(token string, now time.Time) (Identity, error) {
	claims, err := ts.Parse(token, now)
	if err != nil {
		return Identity{}, err
	}
	return claims.Identity(), nil
}

// Parse verifies token at the given instant and returns the full claim set.
// Failures are ErrTokenMalformed, ErrTokenSignature, or ErrTokenExpired.
func (ts *TokenService) Parse(token string, now time.Time) (*JWTClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{ts.method.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	claims := &JWTClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		mapped := mapParseError(err)
		ts.logger.Debug("TokenService rejected token", "error", mapped)
		return nil, mapped
	}

	if !parsed.Valid || claims.Subject == "" {
		return nil, withCause(ErrTokenMalformed, fmt.Errorf("token has no subject"))
	}

	return claims, nil
}

// mapParseError folds jwt parser failures into the package taxonomy. Expiry
// is checked before the generic claim failure because jwt reports it joined
// with ErrTokenInvalidClaims.
func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return withCause(ErrTokenSignature, err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return withCause(ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenExpired),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return withCause(ErrTokenExpired, err)
	default:
		return withCause(ErrTokenMalformed, err)
	}
}
