package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	auth "github.com/goliatone/go-auth-guard"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, serverConfig)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg *ServerConfig) error {
	opts, err := cfg.AuthOptions()
	if err != nil {
		return err
	}

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	authLogger := auth.NewSlogLogger(a.logger)

	tokens, err := auth.NewTokenService(opts)
	if err != nil {
		return err
	}
	tokens.WithLogger(authLogger)

	if err := bootstrapAdmin(ctx, a); err != nil {
		return err
	}

	auther := auth.NewAuthenticator(a.credentialStore(), a.verifier, tokens).
		WithLogger(authLogger).
		WithActivitySink(a.sink)

	server := auth.NewHTTPServer(auth.HTTPDeps{
		Config:       opts,
		Tokens:       tokens,
		Auther:       auther,
		Accounts:     a.accounts,
		Throttle:     auth.NewLoginThrottle(cfg.LoginLimit(), cfg.LoginBurst),
		Logger:       authLogger,
		ActivitySink: a.sink,
		AllowOrigins: cfg.AllowOrigins,
	})

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("authd listening", "addr", cfg.Addr)
		errCh <- server.Serve(cfg.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("authd shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// bootstrapAdmin creates the configured ADMIN account when it is missing
func bootstrapAdmin(ctx context.Context, a *app) error {
	if a.cfg.AdminUser == "" {
		return nil
	}
	if a.cfg.AdminPassword == "" {
		return errors.New("--admin-password is required with --admin-user")
	}

	exists, err := a.users.Exists(ctx, a.cfg.AdminUser)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	_, err = a.accounts.CreateUser(ctx, auth.CreateUserInput{
		RegisterInput: auth.RegisterInput{
			Username: a.cfg.AdminUser,
			Password: a.cfg.AdminPassword,
		},
		Roles: []string{auth.RoleAdmin},
	})
	if err != nil {
		return err
	}

	a.logger.Info("bootstrap admin created", "username", a.cfg.AdminUser)
	return nil
}
