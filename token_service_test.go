package auth_test

import (
	"encoding/base64"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-guard"
)

func TestNewTokenService(t *testing.T) {
	t.Run("creates token service from valid options", func(t *testing.T) {
		ts, err := auth.NewTokenService(testOptions(t))
		require.NoError(t, err)
		assert.Equal(t, auth.DefaultTokenTTL, ts.TTL())
	})

	t.Run("nil config is invalid", func(t *testing.T) {
		_, err := auth.NewTokenService(nil)
		assert.ErrorIs(t, err, auth.ErrInvalidConfig)
	})
}

func TestTokenService_RoundTrip(t *testing.T) {
	ts := testTokenService(t)

	cases := []struct {
		name  string
		roles []string
	}{
		{name: "single role", roles: []string{"ADMIN"}},
		{name: "ordered roles", roles: []string{"ORDINARY", "ADMIN", "AUDITOR"}},
		{name: "no roles", roles: []string{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token, err := ts.Encode("alice", tc.roles, testNow, time.Hour)
			require.NoError(t, err)

			identity, err := ts.Decode(token, testNow)
			require.NoError(t, err)
			assert.Equal(t, "alice", identity.Subject)
			assert.Equal(t, tc.roles, identity.Roles)
		})
	}
}

func TestTokenService_Expiry(t *testing.T) {
	ts := testTokenService(t)

	token, err := ts.Encode("alice", []string{"ADMIN"}, testNow, time.Hour)
	require.NoError(t, err)

	t.Run("valid one second before expiry", func(t *testing.T) {
		_, err := ts.Decode(token, testNow.Add(time.Hour-time.Second))
		assert.NoError(t, err)
	})

	t.Run("expired at the expiry instant", func(t *testing.T) {
		_, err := ts.Decode(token, testNow.Add(time.Hour))
		assert.ErrorIs(t, err, auth.ErrTokenExpired)
		assert.True(t, auth.IsTokenExpiredError(err))
	})

	t.Run("expired after expiry", func(t *testing.T) {
		_, err := ts.Decode(token, testNow.Add(2*time.Hour))
		assert.ErrorIs(t, err, auth.ErrTokenExpired)
	})
}

func TestTokenService_Issue(t *testing.T) {
	ts := testTokenService(t, auth.WithTokenTTL(30*time.Minute))

	issued, err := ts.Issue("bob", []string{"ORDINARY"}, testNow)
	require.NoError(t, err)
	assert.True(t, testNow.Add(30*time.Minute).Equal(issued.ExpiresAt))

	claims, err := ts.Parse(issued.Token, testNow)
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.Subject)
	assert.Equal(t, []string{"ORDINARY"}, claims.Roles)
	assert.NotEmpty(t, claims.TokenID())
	assert.True(t, testNow.Equal(claims.IssuedAt.Time))
}

func TestTokenService_EncodeRejectsBadInput(t *testing.T) {
	ts := testTokenService(t)

	t.Run("empty subject", func(t *testing.T) {
		_, err := ts.Encode("", nil, testNow, time.Hour)
		assert.ErrorIs(t, err, auth.ErrInvalidSubject)
	})

	t.Run("blank subject", func(t *testing.T) {
		_, err := ts.Encode("   ", nil, testNow, time.Hour)
		assert.ErrorIs(t, err, auth.ErrInvalidSubject)
	})

	t.Run("zero ttl", func(t *testing.T) {
		_, err := ts.Encode("alice", nil, testNow, 0)
		assert.ErrorIs(t, err, auth.ErrInvalidTTL)
	})

	t.Run("negative ttl", func(t *testing.T) {
		_, err := ts.Encode("alice", nil, testNow, -time.Minute)
		assert.ErrorIs(t, err, auth.ErrInvalidTTL)
	})
}

func TestTokenService_SubSecondTTL(t *testing.T) {
	ts := testTokenService(t)
	now := testNow.Add(700 * time.Millisecond)

	for _, ttl := range []time.Duration{time.Millisecond, 200 * time.Millisecond, 900 * time.Millisecond, 1500 * time.Millisecond} {
		t.Run(ttl.String(), func(t *testing.T) {
			token, err := ts.Encode("alice", []string{"ORDINARY"}, now, ttl)
			require.NoError(t, err)

			identity, err := ts.Decode(token, now)
			require.NoError(t, err)
			assert.Equal(t, "alice", identity.Subject)

			claims, err := ts.Parse(token, now)
			require.NoError(t, err)
			assert.False(t, claims.ExpiresAt.Time.Before(now.Add(ttl)))
			assert.Zero(t, claims.ExpiresAt.Time.Nanosecond())

			_, err = ts.Decode(token, claims.ExpiresAt.Time)
			assert.ErrorIs(t, err, auth.ErrTokenExpired)
		})
	}
}

func TestTokenService_RejectsTamperedToken(t *testing.T) {
	ts := testTokenService(t)

	token, err := ts.Encode("alice", []string{"ORDINARY"}, testNow, time.Hour)
	require.NoError(t, err)

	t.Run("flipped signature bit", func(t *testing.T) {
		parts := strings.Split(token, ".")
		require.Len(t, parts, 3)

		sig, err := base64.RawURLEncoding.DecodeString(parts[2])
		require.NoError(t, err)

		for i := range sig {
			for bit := 0; bit < 8; bit++ {
				flipped := append([]byte(nil), sig...)
				flipped[i] ^= 1 << bit
				tampered := parts[0] + "." + parts[1] + "." + base64.RawURLEncoding.EncodeToString(flipped)

				_, err := ts.Decode(tampered, testNow)
				require.ErrorIs(t, err, auth.ErrTokenSignature, "byte %d bit %d", i, bit)
				require.True(t, auth.IsSignatureError(err), "byte %d bit %d", i, bit)
			}
		}
	})

	t.Run("payload swapped for an escalated one", func(t *testing.T) {
		other, err := ts.Encode("alice", []string{"ADMIN"}, testNow, time.Hour)
		require.NoError(t, err)

		parts := strings.Split(token, ".")
		otherParts := strings.Split(other, ".")
		parts[1] = otherParts[1]

		_, err = ts.Decode(strings.Join(parts, "."), testNow)
		assert.ErrorIs(t, err, auth.ErrTokenSignature)
	})

	t.Run("signed with another secret", func(t *testing.T) {
		otherKey, err := auth.NewOptions("ffffffffffffffffffffffffffffffff")
		require.NoError(t, err)
		other, err := auth.NewTokenService(otherKey)
		require.NoError(t, err)

		forged, err := other.Encode("alice", []string{"ADMIN"}, testNow, time.Hour)
		require.NoError(t, err)

		_, err = ts.Decode(forged, testNow)
		assert.ErrorIs(t, err, auth.ErrTokenSignature)
	})
}

func TestTokenService_PinsAlgorithm(t *testing.T) {
	ts := testTokenService(t)

	claims := jwt.MapClaims{
		"sub":   "alice",
		"roles": []string{"ADMIN"},
		"exp":   testNow.Add(time.Hour).Unix(),
	}

	t.Run("none algorithm", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).
			SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = ts.Decode(token, testNow)
		assert.ErrorIs(t, err, auth.ErrTokenSignature)
	})

	t.Run("other hmac algorithm with the same secret", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).
			SignedString([]byte(testSigningKey))
		require.NoError(t, err)

		_, err = ts.Decode(token, testNow)
		assert.ErrorIs(t, err, auth.ErrTokenSignature)
	})
}

func TestTokenService_Malformed(t *testing.T) {
	ts := testTokenService(t)

	cases := map[string]string{
		"empty":           "",
		"garbage":         "not-a-token",
		"two segments":    "aGVhZGVy.cGF5bG9hZA",
		"four segments":   "a.b.c.d",
		"invalid base64":  "!!!.@@@.###",
		"json in payload": "eyJhbGciOiJIUzI1NiJ9.bm90LWpzb24.c2ln",
	}

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ts.Decode(token, testNow)
			assert.ErrorIs(t, err, auth.ErrTokenMalformed)
			assert.True(t, auth.IsTokenError(err))
		})
	}
}

func TestTokenService_MissingExpiry(t *testing.T) {
	ts := testTokenService(t)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "alice"}).
		SignedString([]byte(testSigningKey))
	require.NoError(t, err)

	_, err = ts.Decode(token, testNow)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestTokenService_IssuerAndAudience(t *testing.T) {
	ts := testTokenService(t, auth.WithIssuer("authd"), auth.WithAudience("api"))

	token, err := ts.Encode("alice", nil, testNow, time.Hour)
	require.NoError(t, err)

	_, err = ts.Decode(token, testNow)
	require.NoError(t, err)

	other := testTokenService(t, auth.WithIssuer("someone-else"), auth.WithAudience("api"))
	_, err = other.Decode(token, testNow)
	assert.ErrorIs(t, err, auth.ErrTokenMalformed)
}

func TestTokenService_ConcurrentUse(t *testing.T) {
	ts := testTokenService(t)

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := ts.Encode("alice", []string{"ADMIN"}, testNow, time.Hour)
			if err != nil {
				errs <- err
				return
			}
			if _, err := ts.Decode(token, testNow); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}
