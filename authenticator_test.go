package auth_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-guard"
)

func newMockVerifier() *MockPasswordVerifier {
	v := new(MockPasswordVerifier)
	v.On("Hash", mock.Anything).Return("$dummy$", nil).Maybe()
	return v
}

func TestAuther_Login(t *testing.T) {
	ctx := context.Background()
	creds := auth.Credentials{
		Username:     "alice",
		PasswordHash: "$hash$",
		Roles:        []string{"ORDINARY", "ADMIN"},
	}

	t.Run("successful login issues a token", func(t *testing.T) {
		store := new(MockCredentialStore)
		verifier := newMockVerifier()
		tokens := new(MockTokenIssuer)
		sink := &recordingSink{}

		store.On("FindByUsername", ctx, "alice").Return(creds, nil)
		verifier.On("Matches", "secret", "$hash$").Return(true)
		tokens.On("Issue", "alice", creds.Roles, testNow).
			Return(auth.IssuedToken{Token: "signed", ExpiresAt: testNow.Add(time.Hour)}, nil)

		auther := auth.NewAuthenticator(store, verifier, tokens).WithActivitySink(sink)

		res, err := auther.Login(ctx, "alice", "secret", testNow)
		require.NoError(t, err)
		assert.Equal(t, "signed", res.Token)
		assert.Equal(t, "alice", res.Username)
		assert.Equal(t, creds.Roles, res.Roles)
		assert.Equal(t, testNow.Add(time.Hour), res.ExpiresAt)
		assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventLoginSuccess}, sink.types())

		store.AssertExpectations(t)
		verifier.AssertExpectations(t)
		tokens.AssertExpectations(t)
	})

	t.Run("wrong password", func(t *testing.T) {
		store := new(MockCredentialStore)
		verifier := newMockVerifier()
		tokens := new(MockTokenIssuer)
		sink := &recordingSink{}

		store.On("FindByUsername", ctx, "alice").Return(creds, nil)
		verifier.On("Matches", "wrongpass", "$hash$").Return(false)

		auther := auth.NewAuthenticator(store, verifier, tokens).WithActivitySink(sink)

		res, err := auther.Login(ctx, "alice", "wrongpass", testNow)
		assert.Nil(t, res)
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		require.Len(t, sink.events, 1)
		assert.Equal(t, "bad_password", sink.events[0].Reason)

		tokens.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown user still runs a comparison", func(t *testing.T) {
		store := new(MockCredentialStore)
		verifier := newMockVerifier()
		tokens := new(MockTokenIssuer)

		store.On("FindByUsername", ctx, "nosuchuser").Return(auth.Credentials{}, auth.ErrNotFound)
		verifier.On("Matches", "anything", "$dummy$").Return(false).Once()

		auther := auth.NewAuthenticator(store, verifier, tokens)

		res, err := auther.Login(ctx, "nosuchuser", "anything", testNow)
		assert.Nil(t, res)
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		verifier.AssertExpectations(t)
		tokens.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown user and wrong password are indistinguishable", func(t *testing.T) {
		store := new(MockCredentialStore)
		verifier := newMockVerifier()
		tokens := new(MockTokenIssuer)

		store.On("FindByUsername", ctx, "alice").Return(creds, nil)
		store.On("FindByUsername", ctx, "nosuchuser").Return(auth.Credentials{}, auth.ErrNotFound)
		verifier.On("Matches", mock.Anything, mock.Anything).Return(false)

		auther := auth.NewAuthenticator(store, verifier, tokens)

		_, errWrong := auther.Login(ctx, "alice", "wrongpass", testNow)
		_, errUnknown := auther.Login(ctx, "nosuchuser", "anything", testNow)

		require.Error(t, errWrong)
		require.Error(t, errUnknown)
		assert.Equal(t, errWrong.Error(), errUnknown.Error())
		assert.Same(t, errWrong, errUnknown)
	})

	t.Run("store failure is internal", func(t *testing.T) {
		store := new(MockCredentialStore)
		verifier := newMockVerifier()
		tokens := new(MockTokenIssuer)

		store.On("FindByUsername", ctx, "alice").Return(auth.Credentials{}, fmt.Errorf("connection refused"))

		auther := auth.NewAuthenticator(store, verifier, tokens)

		_, err := auther.Login(ctx, "alice", "secret", testNow)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrInvalidCredentials)
		assert.True(t, errors.IsInternal(err))
		verifier.AssertNotCalled(t, "Matches", mock.Anything, mock.Anything)
	})

	t.Run("issuer failure propagates", func(t *testing.T) {
		store := new(MockCredentialStore)
		verifier := newMockVerifier()
		tokens := new(MockTokenIssuer)

		store.On("FindByUsername", ctx, "alice").Return(creds, nil)
		verifier.On("Matches", "secret", "$hash$").Return(true)
		tokens.On("Issue", "alice", creds.Roles, testNow).Return(auth.IssuedToken{}, auth.ErrInvalidSubject)

		auther := auth.NewAuthenticator(store, verifier, tokens)

		_, err := auther.Login(ctx, "alice", "secret", testNow)
		assert.ErrorIs(t, err, auth.ErrInvalidSubject)
	})
}

func TestAuther_LoginWithTokenService(t *testing.T) {
	ctx := context.Background()
	verifier := fastVerifier()

	hash, err := verifier.Hash("secret")
	require.NoError(t, err)

	store := auth.CredentialStoreFunc(func(_ context.Context, username string) (auth.Credentials, error) {
		if username != "alice" {
			return auth.Credentials{}, auth.ErrNotFound
		}
		return auth.Credentials{Username: "alice", PasswordHash: hash, Roles: []string{"ADMIN"}}, nil
	})

	tokens := testTokenService(t, auth.WithTokenTTL(time.Hour))
	auther := auth.NewAuthenticator(store, verifier, tokens)

	res, err := auther.Login(ctx, "alice", "secret", testNow)
	require.NoError(t, err)

	identity, err := tokens.Decode(res.Token, testNow.Add(59*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, auth.NewIdentity("alice", []string{"ADMIN"}), identity)

	_, err = tokens.Decode(res.Token, testNow.Add(time.Hour))
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}
