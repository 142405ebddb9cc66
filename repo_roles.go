package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Roles is the bun backed role repository
type Roles interface {
	Get(ctx context.Context, name string) (*Role, error)
	GetTx(ctx context.Context, tx bun.IDB, name string) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
	Create(ctx context.Context, name string) (*Role, error)
	Delete(ctx context.Context, name string) error
}

type roles struct {
	repo repository.Repository[*Role]
	db   *bun.DB
	now  func() time.Time
}

var _ Roles = (*roles)(nil)

func NewRolesRepository(db *bun.DB) Roles {
	return &roles{
		repo: repository.NewRepository[*Role](db, repository.ModelHandlers[*Role]{
			NewRecord: func() *Role { return &Role{} },
			GetID: func(r *Role) uuid.UUID {
				if r == nil {
					return uuid.Nil
				}
				return r.ID
			},
			SetID: func(r *Role, id uuid.UUID) {
				if r != nil {
					r.ID = id
				}
			},
			GetIdentifier: func() string {
				return "name"
			},
		}),
		db:  db,
		now: time.Now,
	}
}

func (r *roles) Get(ctx context.Context, name string) (*Role, error) {
	return r.GetTx(ctx, r.db, name)
}

func (r *roles) GetTx(ctx context.Context, tx bun.IDB, name string) (*Role, error) {
	role, err := r.repo.GetTx(ctx, tx, repository.SelectBy("name", "=", name))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, notFound("role", name)
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load role")
	}
	return role, nil
}

func (r *roles) List(ctx context.Context) ([]*Role, error) {
	records, _, err := r.repo.List(ctx, everything(), repository.OrderBy("name ASC"))
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list roles")
	}
	return records, nil
}

func (r *roles) Create(ctx context.Context, name string) (*Role, error) {
	var out *Role
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := r.GetTx(ctx, tx, name)
		switch {
		case err == nil:
			return alreadyExists("role", name)
		case !IsNotFound(err):
			return err
		}

		now := r.now().UTC()
		out, err = r.repo.CreateTx(ctx, tx, &Role{Name: name, CreatedAt: &now})
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to insert role")
		}
		return nil
	})
	return out, err
}

// Delete removes the role and every assignment of it
func (r *roles) Delete(ctx context.Context, name string) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		role, err := r.GetTx(ctx, tx, name)
		if err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*UserRole)(nil)).Where("role_name = ?", name).Exec(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to delete role assignments")
		}
		if err := r.repo.DeleteTx(ctx, tx, role); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to delete role")
		}
		return nil
	})
}

// everything lifts the repository's default page size
func everything() repository.SelectCriteria {
	return repository.Paginate(0, 0)
}
