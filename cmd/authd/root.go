package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/goliatone/go-auth-guard"
	"github.com/goliatone/go-auth-guard/activitymap"
)

var rootCmd = &cobra.Command{
	Use:   "authd",
	Short: "Stateless JWT authentication and role based authorization service.",
	Long: `authd issues short lived HS256 bearer tokens for username and password
logins and guards the users, roles, and profile APIs with a per request
authorization filter.

Every flag can also be set through an AUTH_ prefixed environment variable,
for example --signing-key and AUTH_SIGNING_KEY.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return applyEnv(cmd.Flags())
	},
}

func init() {
	bindFlags(rootCmd.PersistentFlags(), serverConfig)
}

// app holds the collaborators shared by the commands
type app struct {
	cfg      *ServerConfig
	logger   *slog.Logger
	db       *bun.DB
	redis    *redis.Client
	repos    auth.RepositoryManager
	users    auth.Users
	verifier auth.BcryptVerifier
	accounts *auth.AccountService
	cache    *auth.CachedCredentialStore
	sink     auth.ActivitySink
}

// openApp connects to the database and runs pending migrations. The redis
// cache is attached when an address is configured.
func openApp(ctx context.Context, cfg *ServerConfig) (*app, error) {
	logger := cfg.Logger()

	db, err := openDB(cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	applied, err := auth.Migrate(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", "migrations", applied)
	}

	repos := auth.NewRepositoryManager(db)
	repos.MustValidate()

	a := &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		repos:    repos,
		users:    repos.Users(),
		verifier: auth.NewBcryptVerifier(cfg.BcryptCost),
	}

	authLogger := auth.NewSlogLogger(logger)

	a.sink = activitymap.NewMapper().Sink(func(ctx context.Context, rec activitymap.Record) error {
		logger.InfoContext(ctx, "auth activity",
			"actor", rec.Actor,
			"verb", rec.Verb,
			"object", rec.Object.Type+":"+rec.Object.ID,
			"outcome", rec.Outcome,
			"reason", rec.Reason,
			"subject", rec.Subject,
		)
		return nil
	})

	a.accounts = auth.NewAccountService(a.users, repos.Roles(), a.verifier).
		WithLogger(authLogger).
		WithActivitySink(a.sink)

	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		a.cache = auth.NewCachedCredentialStore(a.users, a.redis, cfg.CacheTTL).WithLogger(authLogger)
		a.accounts.WithCache(a.cache)
	}

	return a, nil
}

// credentialStore is the cache when one is configured, else the repository
func (a *app) credentialStore() auth.CredentialStore {
	if a.cache != nil {
		return a.cache
	}
	return a.users
}

func (a *app) Close() error {
	if a.redis != nil {
		a.redis.Close()
	}
	return a.db.Close()
}

func openDB(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}
