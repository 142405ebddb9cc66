package auth

import (
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type immutableClaimsSnapshot struct {
	subject     string
	issuer      string
	tokenID     string
	audience    []string
	roles       []string
	issuedAt    time.Time
	hasIssuedAt bool
	expiresAt   time.Time
	hasExpires  bool
}

func captureImmutableClaims(claims *JWTClaims) immutableClaimsSnapshot {
	snap := immutableClaimsSnapshot{
		subject:  claims.Subject,
		issuer:   claims.Issuer,
		tokenID:  claims.ID,
		audience: slices.Clone([]string(claims.Audience)),
		roles:    slices.Clone(claims.Roles),
	}

	if claims.IssuedAt != nil {
		snap.issuedAt = claims.IssuedAt.Time
		snap.hasIssuedAt = true
	}

	if claims.ExpiresAt != nil {
		snap.expiresAt = claims.ExpiresAt.Time
		snap.hasExpires = true
	}

	return snap
}

func (snap immutableClaimsSnapshot) validate(claims *JWTClaims) error {
	if claims.Subject != snap.subject {
		return immutableClaimViolation("sub")
	}

	if claims.Issuer != snap.issuer {
		return immutableClaimViolation("iss")
	}

	if claims.ID != snap.tokenID {
		return immutableClaimViolation("jti")
	}

	if !slices.Equal([]string(claims.Audience), snap.audience) {
		return immutableClaimViolation("aud")
	}

	if !slices.Equal(claims.Roles, snap.roles) {
		return immutableClaimViolation("roles")
	}

	if err := compareNumericDate(claims.IssuedAt, snap.issuedAt, snap.hasIssuedAt, "iat"); err != nil {
		return err
	}

	if err := compareNumericDate(claims.ExpiresAt, snap.expiresAt, snap.hasExpires, "exp"); err != nil {
		return err
	}

	return nil
}

func compareNumericDate(date *jwt.NumericDate, expected time.Time, expectedSet bool, field string) error {
	if !expectedSet {
		if date != nil {
			return immutableClaimViolation(field)
		}
		return nil
	}

	if date == nil || !date.Time.Equal(expected) {
		return immutableClaimViolation(field)
	}

	return nil
}

func immutableClaimViolation(field string) error {
	clone := withCause(ErrImmutableClaimMutation, nil)
	clone.Message = fmt.Sprintf("immutable claim mutated: %s", field)
	return clone.WithMetadata(map[string]any{"claim": field})
}
