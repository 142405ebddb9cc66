package auth

import (
	"context"

	"github.com/goliatone/go-errors"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// NewMigrations returns the embedded SQL migrations registered with a
// persistence migration set.
func NewMigrations() *persistence.Migrations {
	return (&persistence.Migrations{}).RegisterSQLMigrations(GetMigrationsFS())
}

// Migrate applies pending migrations and returns the names it applied.
func Migrate(ctx context.Context, db *bun.DB) ([]string, error) {
	migrations := NewMigrations()
	if err := migrations.Migrate(ctx, db); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to run migrations")
	}
	return groupNames(migrations.Report()), nil
}

// Rollback reverts the most recently applied migration group and returns
// the names it reverted.
func Rollback(ctx context.Context, db *bun.DB) ([]string, error) {
	migrations := NewMigrations()
	if err := migrations.Rollback(ctx, db); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to roll back migrations")
	}
	return groupNames(migrations.Report()), nil
}

func groupNames(group *migrate.MigrationGroup) []string {
	if group == nil || group.IsZero() {
		return nil
	}
	names := make([]string, 0, len(group.Migrations))
	for _, m := range group.Migrations {
		names = append(names, m.Name+"_"+m.Comment)
	}
	return names
}
