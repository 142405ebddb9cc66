package auth

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-errors"
)

const (
	MinPasswordLength = 6
	// MaxPasswordLength is the bcrypt input limit
	MaxPasswordLength = 72
)

// RegisterInput is the self service sign up payload
type RegisterInput struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, usernameRules...),
		validation.Field(&in.Password, passwordRules...),
		validation.Field(&in.Email, is.EmailFormat),
		validation.Field(&in.FirstName, validation.Length(1, 50)),
		validation.Field(&in.LastName, validation.Length(1, 50)),
	)
}

// CreateUserInput is the administrative create payload
type CreateUserInput struct {
	RegisterInput
	Roles []string `json:"roles"`
}

func (in CreateUserInput) Validate() error {
	if err := in.RegisterInput.Validate(); err != nil {
		return err
	}
	return validation.Validate(in.Roles, validation.Each(validation.By(roleNameRule)))
}

// ProfileInput updates the editable profile fields
type ProfileInput struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (in ProfileInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, is.EmailFormat),
		validation.Field(&in.FirstName, validation.Length(1, 50)),
		validation.Field(&in.LastName, validation.Length(1, 50)),
	)
}

// ChangePasswordInput requires the current password
type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (in ChangePasswordInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.CurrentPassword, validation.Required),
		validation.Field(&in.NewPassword, passwordRules...),
	)
}

// RoleAssignment names a user and a role
type RoleAssignment struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (in RoleAssignment) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required),
		validation.Field(&in.Role, validation.By(roleNameRule)),
	)
}

// RoleInput creates a role
type RoleInput struct {
	Name string `json:"name"`
}

func (in RoleInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.By(roleNameRule)),
	)
}

var usernameRules = []validation.Rule{
	validation.Required,
	validation.Length(1, 255),
	validation.By(func(value any) error {
		s, _ := value.(string)
		if strings.TrimSpace(s) != s || strings.ContainsAny(s, "/ \t") {
			return validation.NewError("validation_username", "must not contain spaces or slashes")
		}
		return nil
	}),
}

var passwordRules = []validation.Rule{
	validation.Required,
	validation.By(func(value any) error {
		s, _ := value.(string)
		if len(s) < MinPasswordLength || len(s) > MaxPasswordLength {
			return validation.NewError("validation_password_length", "must be between 6 and 72 bytes")
		}
		return nil
	}),
}

func roleNameRule(value any) error {
	s, _ := value.(string)
	return ValidateRoleName(s)
}

func invalidInput(err error, message string) error {
	return errors.FromOzzoValidation(err, message).WithCode(errors.CodeBadRequest)
}

// AccountService implements account and role management on top of the
// repositories. Every write that can change a login outcome invalidates the
// credential cache.
type AccountService struct {
	users        Users
	roles        Roles
	verifier     PasswordVerifier
	cache        CredentialCache
	logger       Logger
	activitySink ActivitySink
}

func NewAccountService(users Users, roles Roles, verifier PasswordVerifier) *AccountService {
	return &AccountService{
		users:        users,
		roles:        roles,
		verifier:     verifier,
		cache:        noopCredentialCache{},
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *AccountService) WithCache(cache CredentialCache) *AccountService {
	if cache == nil {
		cache = noopCredentialCache{}
	}
	s.cache = cache
	return s
}

func (s *AccountService) WithLogger(logger Logger) *AccountService {
	s.logger = resolveLogger(logger)
	return s
}

func (s *AccountService) WithActivitySink(sink ActivitySink) *AccountService {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// Register creates an account with DefaultRole
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*User, error) {
	if err := in.Validate(); err != nil {
		return nil, invalidInput(err, "invalid registration payload")
	}

	user, err := s.create(ctx, in, []string{DefaultRole})
	if err != nil {
		return nil, err
	}

	emitActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventUserRegistered,
		Username:  user.Username,
		Actor:     user.Username,
	})
	return user, nil
}

// CreateUser creates an account with the given roles, or DefaultRole
func (s *AccountService) CreateUser(ctx context.Context, in CreateUserInput) (*User, error) {
	if err := in.Validate(); err != nil {
		return nil, invalidInput(err, "invalid user payload")
	}

	roles := NormalizeRoles(in.Roles)
	if len(roles) == 0 {
		roles = []string{DefaultRole}
	}
	return s.create(ctx, in.RegisterInput, roles)
}

func (s *AccountService) create(ctx context.Context, in RegisterInput, roles []string) (*User, error) {
	hash, err := s.verifier.Hash(in.Password)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}

	user, err := s.users.Create(ctx, &User{
		Username:     in.Username,
		PasswordHash: hash,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Roles:        roles,
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, user.Username)
	return user, nil
}

func (s *AccountService) GetUser(ctx context.Context, username string) (*User, error) {
	return s.users.Get(ctx, username)
}

func (s *AccountService) ListUsers(ctx context.Context) ([]*User, error) {
	return s.users.List(ctx)
}

func (s *AccountService) UpdateProfile(ctx context.Context, username string, in ProfileInput) (*User, error) {
	if err := in.Validate(); err != nil {
		return nil, invalidInput(err, "invalid profile payload")
	}
	return s.users.UpdateProfile(ctx, username, Profile(in))
}

func (s *AccountService) DeleteUser(ctx context.Context, username string) error {
	if err := s.users.Delete(ctx, username); err != nil {
		return err
	}
	s.invalidate(ctx, username)
	return nil
}

// ChangePassword replaces the password after checking the current one. A
// wrong current password is ErrInvalidCredentials.
func (s *AccountService) ChangePassword(ctx context.Context, username string, in ChangePasswordInput) error {
	if err := in.Validate(); err != nil {
		return invalidInput(err, "invalid password payload")
	}

	user, err := s.users.Get(ctx, username)
	if err != nil {
		return err
	}

	if !s.verifier.Matches(in.CurrentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	hash, err := s.verifier.Hash(in.NewPassword)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}

	if err := s.users.UpdatePassword(ctx, username, hash); err != nil {
		return err
	}

	s.invalidate(ctx, username)
	emitActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventPasswordChanged,
		Username:  username,
		Actor:     username,
	})
	return nil
}

func (s *AccountService) AssignRole(ctx context.Context, actor string, in RoleAssignment) error {
	if err := in.Validate(); err != nil {
		return invalidInput(err, "invalid role assignment")
	}
	if err := s.users.AddRole(ctx, in.Username, in.Role); err != nil {
		return err
	}
	s.invalidate(ctx, in.Username)
	emitActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventRoleAssigned,
		Username:  in.Username,
		Actor:     actor,
		Metadata:  map[string]any{"role": in.Role},
	})
	return nil
}

func (s *AccountService) RevokeRole(ctx context.Context, actor string, in RoleAssignment) error {
	if err := in.Validate(); err != nil {
		return invalidInput(err, "invalid role assignment")
	}
	if err := s.users.RemoveRole(ctx, in.Username, in.Role); err != nil {
		return err
	}
	s.invalidate(ctx, in.Username)
	emitActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventRoleRevoked,
		Username:  in.Username,
		Actor:     actor,
		Metadata:  map[string]any{"role": in.Role},
	})
	return nil
}

func (s *AccountService) CreateRole(ctx context.Context, in RoleInput) (*Role, error) {
	if err := in.Validate(); err != nil {
		return nil, invalidInput(err, "invalid role payload")
	}
	return s.roles.Create(ctx, strings.TrimSpace(in.Name))
}

func (s *AccountService) GetRole(ctx context.Context, name string) (*Role, error) {
	return s.roles.Get(ctx, name)
}

func (s *AccountService) ListRoles(ctx context.Context) ([]*Role, error) {
	return s.roles.List(ctx)
}

// DeleteRole removes the role from every user, so the whole credential
// cache is flushed.
func (s *AccountService) DeleteRole(ctx context.Context, name string) error {
	if err := s.roles.Delete(ctx, name); err != nil {
		return err
	}
	if err := s.cache.Flush(ctx); err != nil {
		s.logger.Warn("credential cache flush failed", "error", err)
	}
	return nil
}

func (s *AccountService) invalidate(ctx context.Context, username string) {
	if err := s.cache.Invalidate(ctx, username); err != nil {
		s.logger.Warn("credential cache invalidation failed", "username", username, "error", err)
	}
}
