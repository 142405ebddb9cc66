package auth

import (
	"embed"
	"io/fs"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for this package, rooted at
// the migrations directory.
func GetMigrationsFS() fs.FS {
	sub, err := fs.Sub(migrationsFS, "data/sql/migrations")
	if err != nil {
		panic(err)
	}
	return sub
}
