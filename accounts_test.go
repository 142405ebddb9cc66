package auth_test

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-guard"
)

func newTestAccounts(t *testing.T) (*auth.AccountService, *recordingSink) {
	t.Helper()
	db := setupTestDB(t)
	sink := &recordingSink{}
	accounts := auth.NewAccountService(
		auth.NewUsersRepository(db),
		auth.NewRolesRepository(db),
		fastVerifier(),
	).WithActivitySink(sink)
	return accounts, sink
}

func TestAccountService_Register(t *testing.T) {
	accounts, sink := newTestAccounts(t)
	ctx := context.Background()

	user, err := accounts.Register(ctx, auth.RegisterInput{
		Username:  "alice",
		Password:  "secret1",
		Email:     "alice@example.com",
		FirstName: "Alice",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{auth.DefaultRole}, user.Roles)
	assert.NotEqual(t, "secret1", user.PasswordHash)
	assert.True(t, fastVerifier().Matches("secret1", user.PasswordHash))

	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventUserRegistered}, sink.types())

	_, err = accounts.Register(ctx, auth.RegisterInput{Username: "alice", Password: "secret1"})
	assert.ErrorIs(t, err, auth.ErrAlreadyExists)
}

func TestAccountService_RegisterValidation(t *testing.T) {
	accounts, _ := newTestAccounts(t)

	tests := []struct {
		name  string
		input auth.RegisterInput
		field string
	}{
		{"missing username", auth.RegisterInput{Password: "secret1"}, "username"},
		{"username with space", auth.RegisterInput{Username: "al ice", Password: "secret1"}, "username"},
		{"username with slash", auth.RegisterInput{Username: "al/ice", Password: "secret1"}, "username"},
		{"missing password", auth.RegisterInput{Username: "alice"}, "password"},
		{"short password", auth.RegisterInput{Username: "alice", Password: "abc"}, "password"},
		{"bad email", auth.RegisterInput{Username: "alice", Password: "secret1", Email: "nope"}, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := accounts.Register(context.Background(), tt.input)
			require.Error(t, err)

			var rich *goerrors.Error
			require.ErrorAs(t, err, &rich)
			assert.Equal(t, goerrors.CategoryValidation, rich.Category)
			assert.Equal(t, 400, rich.Code)
			assert.Contains(t, rich.ValidationMap(), tt.field)
		})
	}
}

func TestAccountService_CreateUser(t *testing.T) {
	accounts, _ := newTestAccounts(t)
	ctx := context.Background()

	admin, err := accounts.CreateUser(ctx, auth.CreateUserInput{
		RegisterInput: auth.RegisterInput{Username: "root", Password: "secret1"},
		Roles:         []string{auth.RoleAdmin, " ADMIN "},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{auth.RoleAdmin}, admin.Roles)

	plain, err := accounts.CreateUser(ctx, auth.CreateUserInput{
		RegisterInput: auth.RegisterInput{Username: "bob", Password: "secret1"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{auth.DefaultRole}, plain.Roles)

	_, err = accounts.CreateUser(ctx, auth.CreateUserInput{
		RegisterInput: auth.RegisterInput{Username: "carol", Password: "secret1"},
		Roles:         []string{"NOPE"},
	})
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestAccountService_ChangePassword(t *testing.T) {
	accounts, sink := newTestAccounts(t)
	ctx := context.Background()

	_, err := accounts.Register(ctx, auth.RegisterInput{Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	err = accounts.ChangePassword(ctx, "alice", auth.ChangePasswordInput{
		CurrentPassword: "wrong-one",
		NewPassword:     "secret2",
	})
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)

	err = accounts.ChangePassword(ctx, "alice", auth.ChangePasswordInput{
		CurrentPassword: "secret1",
		NewPassword:     "abc",
	})
	assert.Error(t, err)

	require.NoError(t, accounts.ChangePassword(ctx, "alice", auth.ChangePasswordInput{
		CurrentPassword: "secret1",
		NewPassword:     "secret2",
	}))

	user, err := accounts.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, fastVerifier().Matches("secret2", user.PasswordHash))
	assert.False(t, fastVerifier().Matches("secret1", user.PasswordHash))

	assert.Equal(t, []auth.ActivityEventType{
		auth.ActivityEventUserRegistered,
		auth.ActivityEventPasswordChanged,
	}, sink.types())

	err = accounts.ChangePassword(ctx, "nosuchuser", auth.ChangePasswordInput{
		CurrentPassword: "secret1",
		NewPassword:     "secret2",
	})
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestAccountService_Roles(t *testing.T) {
	accounts, sink := newTestAccounts(t)
	ctx := context.Background()

	_, err := accounts.Register(ctx, auth.RegisterInput{Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	role, err := accounts.CreateRole(ctx, auth.RoleInput{Name: " AUDITOR "})
	require.NoError(t, err)
	assert.Equal(t, "AUDITOR", role.Name)

	_, err = accounts.CreateRole(ctx, auth.RoleInput{Name: "   "})
	assert.Error(t, err)

	require.NoError(t, accounts.AssignRole(ctx, "root", auth.RoleAssignment{Username: "alice", Role: "AUDITOR"}))

	user, err := accounts.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{auth.RoleOrdinary, "AUDITOR"}, user.Roles)

	require.NoError(t, accounts.RevokeRole(ctx, "root", auth.RoleAssignment{Username: "alice", Role: "AUDITOR"}))
	assert.ErrorIs(t, accounts.RevokeRole(ctx, "root", auth.RoleAssignment{Username: "alice", Role: "AUDITOR"}), auth.ErrNotFound)

	require.Len(t, sink.events, 3)
	assigned := sink.events[1]
	assert.Equal(t, auth.ActivityEventRoleAssigned, assigned.EventType)
	assert.Equal(t, "alice", assigned.Username)
	assert.Equal(t, "root", assigned.Actor)
	assert.Equal(t, "AUDITOR", assigned.Metadata["role"])
	assert.Equal(t, auth.ActivityEventRoleRevoked, sink.events[2].EventType)

	roles, err := accounts.ListRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 3)

	require.NoError(t, accounts.DeleteRole(ctx, "AUDITOR"))
	_, err = accounts.GetRole(ctx, "AUDITOR")
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestAccountService_ProfileAndDelete(t *testing.T) {
	accounts, _ := newTestAccounts(t)
	ctx := context.Background()

	_, err := accounts.Register(ctx, auth.RegisterInput{Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	user, err := accounts.UpdateProfile(ctx, "alice", auth.ProfileInput{Email: "alice@example.com", LastName: "Liddell"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "Liddell", user.LastName)

	_, err = accounts.UpdateProfile(ctx, "alice", auth.ProfileInput{Email: "nope"})
	assert.Error(t, err)

	users, err := accounts.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, accounts.DeleteUser(ctx, "alice"))
	assert.ErrorIs(t, accounts.DeleteUser(ctx, "alice"), auth.ErrNotFound)
}
