package auth

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the bun backed account repository. It also serves as the
// CredentialStore for logins.
type Users interface {
	CredentialStore

	Get(ctx context.Context, username string) (*User, error)
	GetTx(ctx context.Context, tx bun.IDB, username string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Exists(ctx context.Context, username string) (bool, error)
	ExistsTx(ctx context.Context, tx bun.IDB, username string) (bool, error)

	Create(ctx context.Context, user *User) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	UpdateProfile(ctx context.Context, username string, profile Profile) (*User, error)
	UpdatePassword(ctx context.Context, username, passwordHash string) error
	Delete(ctx context.Context, username string) error

	AddRole(ctx context.Context, username, role string) error
	RemoveRole(ctx context.Context, username, role string) error

	RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error
}

// Profile holds the editable, non credential fields of a user
type Profile struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type users struct {
	repo  repository.Repository[*User]
	db    *bun.DB
	roles Roles
	now   func() time.Time
}

var _ Users = (*users)(nil)

// NewUsersRepository returns a Users repository over db
func NewUsersRepository(db *bun.DB) Users {
	return &users{
		repo: repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
			NewRecord: func() *User { return &User{} },
			GetID: func(u *User) uuid.UUID {
				if u == nil {
					return uuid.Nil
				}
				return u.ID
			},
			SetID: func(u *User, id uuid.UUID) {
				if u != nil {
					u.ID = id
				}
			},
			GetIdentifier: func() string {
				return "username"
			},
		}),
		db:    db,
		roles: NewRolesRepository(db),
		now:   time.Now,
	}
}

func (a *users) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	return a.db.RunInTx(ctx, nil, fn)
}

// FindByUsername implements CredentialStore
func (a *users) FindByUsername(ctx context.Context, username string) (Credentials, error) {
	user, err := a.Get(ctx, username)
	if err != nil {
		return Credentials{}, err
	}
	return user.Credentials(), nil
}

func (a *users) Get(ctx context.Context, username string) (*User, error) {
	return a.GetTx(ctx, a.db, username)
}

func (a *users) GetTx(ctx context.Context, tx bun.IDB, username string) (*User, error) {
	user, err := a.repo.GetTx(ctx, tx, repository.SelectBy("username", "=", username))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, notFound("user", username)
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load user")
	}

	roles, err := a.rolesOf(ctx, tx, username)
	if err != nil {
		return nil, err
	}
	user.Roles = roles

	return user, nil
}

func (a *users) rolesOf(ctx context.Context, tx bun.IDB, username string) ([]string, error) {
	roles := make([]string, 0)
	err := tx.NewSelect().
		Model((*UserRole)(nil)).
		Column("role_name").
		Where("ur.username = ?", username).
		OrderExpr("ur.position ASC, ur.role_name ASC").
		Scan(ctx, &roles)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load user roles")
	}
	return roles, nil
}

func (a *users) List(ctx context.Context) ([]*User, error) {
	records, _, err := a.repo.List(ctx, everything(), repository.OrderBy("username ASC"))
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list users")
	}

	links := make([]UserRole, 0)
	err = a.db.NewSelect().
		Model(&links).
		OrderExpr("ur.username ASC, ur.position ASC, ur.role_name ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list user roles")
	}

	byUser := make(map[string][]string, len(records))
	for _, link := range links {
		byUser[link.Username] = append(byUser[link.Username], link.RoleName)
	}

	for _, u := range records {
		u.Roles = byUser[u.Username]
		if u.Roles == nil {
			u.Roles = []string{}
		}
	}

	return records, nil
}

func (a *users) Exists(ctx context.Context, username string) (bool, error) {
	return a.ExistsTx(ctx, a.db, username)
}

func (a *users) ExistsTx(ctx context.Context, tx bun.IDB, username string) (bool, error) {
	ok, err := tx.NewSelect().Model((*User)(nil)).Where("usr.username = ?", username).Exists(ctx)
	if err != nil {
		return false, errors.Wrap(err, errors.CategoryInternal, "failed to check user")
	}
	return ok, nil
}

func (a *users) Create(ctx context.Context, user *User) (*User, error) {
	var out *User
	err := a.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		out, err = a.CreateTx(ctx, tx, user)
		return err
	})
	return out, err
}

// CreateTx inserts user and links user.Roles in order. Every role must
// already exist.
func (a *users) CreateTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	if user == nil || user.Username == "" {
		return nil, errors.New("user must have a username", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}

	exists, err := a.ExistsTx(ctx, tx, user.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, alreadyExists("user", user.Username)
	}

	roles := NormalizeRoles(user.Roles)
	for _, role := range roles {
		if _, err := a.roles.GetTx(ctx, tx, role); err != nil {
			return nil, err
		}
	}

	now := a.now().UTC()
	record := *user
	record.Roles = nil
	record.CreatedAt = &now
	record.UpdatedAt = &now

	if _, err := a.repo.CreateTx(ctx, tx, &record); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to insert user")
	}

	for i, role := range roles {
		link := &UserRole{Username: record.Username, RoleName: role, Position: i}
		if _, err := tx.NewInsert().Model(link).Exec(ctx); err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to assign role")
		}
	}

	record.Roles = roles
	return &record, nil
}

func (a *users) UpdateProfile(ctx context.Context, username string, profile Profile) (*User, error) {
	var out *User
	err := a.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*User)(nil)).
			Set("email = ?", profile.Email).
			Set("first_name = ?", profile.FirstName).
			Set("last_name = ?", profile.LastName).
			Set("updated_at = ?", a.now().UTC()).
			Where("username = ?", username).
			Exec(ctx)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to update user")
		}
		if !affected(res) {
			return notFound("user", username)
		}
		out, err = a.GetTx(ctx, tx, username)
		return err
	})
	return out, err
}

func (a *users) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	now := a.now().UTC()
	record := &User{Username: username, PasswordHash: passwordHash, UpdatedAt: &now}
	_, err := a.repo.Update(ctx, record, repository.UpdateColumns("password_hash", "updated_at"))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return notFound("user", username)
		}
		return errors.Wrap(err, errors.CategoryInternal, "failed to update password")
	}
	return nil
}

func (a *users) Delete(ctx context.Context, username string) error {
	return a.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		user, err := a.GetTx(ctx, tx, username)
		if err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*UserRole)(nil)).Where("username = ?", username).Exec(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to delete user roles")
		}
		if err := a.repo.DeleteTx(ctx, tx, user); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to delete user")
		}
		return nil
	})
}

// AddRole appends role to the user's roles. Adding a role the user already
// holds is a no-op.
func (a *users) AddRole(ctx context.Context, username, role string) error {
	return a.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		exists, err := a.ExistsTx(ctx, tx, username)
		if err != nil {
			return err
		}
		if !exists {
			return notFound("user", username)
		}

		if _, err := a.roles.GetTx(ctx, tx, role); err != nil {
			return err
		}

		held, err := tx.NewSelect().
			Model((*UserRole)(nil)).
			Where("ur.username = ? AND ur.role_name = ?", username, role).
			Exists(ctx)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to check user role")
		}
		if held {
			return nil
		}

		var next int
		err = tx.NewSelect().
			Model((*UserRole)(nil)).
			ColumnExpr("COALESCE(MAX(ur.position), -1) + 1").
			Where("ur.username = ?", username).
			Scan(ctx, &next)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to compute role position")
		}

		link := &UserRole{Username: username, RoleName: role, Position: next}
		if _, err := tx.NewInsert().Model(link).Exec(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to assign role")
		}
		return nil
	})
}

func (a *users) RemoveRole(ctx context.Context, username, role string) error {
	res, err := a.db.NewDelete().
		Model((*UserRole)(nil)).
		Where("username = ? AND role_name = ?", username, role).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to revoke role")
	}
	if !affected(res) {
		return notFound("user role", username+"/"+role)
	}
	return nil
}

func affected(res sql.Result) bool {
	n, err := res.RowsAffected()
	return err == nil && n > 0
}

func notFound(kind, key string) error {
	return withCause(ErrNotFound, nil).WithMetadata(map[string]any{
		"kind": kind,
		"key":  key,
	})
}

func alreadyExists(kind, key string) error {
	return withCause(ErrAlreadyExists, nil).WithMetadata(map[string]any{
		"kind": kind,
		"key":  key,
	})
}
