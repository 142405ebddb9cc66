package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/goliatone/go-auth-guard"
)

func TestBcryptVerifier(t *testing.T) {
	v := fastVerifier()

	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{
			name:     "Valid password",
			password: "securePassword123!",
		},
		{
			name:     "Empty password",
			password: "",
			wantErr:  auth.ErrNoEmptyString,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := v.Hash(tt.password)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.NotEqual(t, tt.password, hash)

			cost, err := bcrypt.Cost([]byte(hash))
			require.NoError(t, err)
			assert.Equal(t, bcrypt.MinCost, cost)

			assert.True(t, v.Matches(tt.password, hash))
			assert.False(t, v.Matches(tt.password+"x", hash))
		})
	}
}

func TestBcryptVerifier_SaltsEveryHash(t *testing.T) {
	v := fastVerifier()

	a, err := v.Hash("same-password")
	require.NoError(t, err)
	b, err := v.Hash("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, v.Matches("same-password", a))
	assert.True(t, v.Matches("same-password", b))
}

func TestNewBcryptVerifier(t *testing.T) {
	assert.Equal(t, 10, auth.NewBcryptVerifier(10).Cost)
	assert.Equal(t, auth.DefaultBcryptCost, auth.NewBcryptVerifier(0).Cost)
	assert.Equal(t, auth.DefaultBcryptCost, auth.NewBcryptVerifier(99).Cost)
}

func TestComparePasswordAndHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("testPassword123!"), bcrypt.MinCost)
	require.NoError(t, err)

	assert.NoError(t, auth.ComparePasswordAndHash("testPassword123!", string(hash)))
	assert.ErrorIs(t, auth.ComparePasswordAndHash("wrong", string(hash)), auth.ErrInvalidCredentials)
	assert.Error(t, auth.ComparePasswordAndHash("testPassword123!", "not-a-hash"))
}

func TestRandomPasswordHash(t *testing.T) {
	v := fastVerifier()
	hash := auth.RandomPasswordHash(v)
	require.NotEmpty(t, hash)
	assert.False(t, v.Matches("", hash))
}
