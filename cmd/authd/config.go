package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-print"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	auth "github.com/goliatone/go-auth-guard"
)

// EnvPrefix is prepended to every flag name to find its environment
// variable, e.g. --signing-key reads AUTH_SIGNING_KEY.
const EnvPrefix = "AUTH_"

// ServerConfig is everything authd needs to run. Flags win over the
// environment; the environment wins over defaults.
type ServerConfig struct {
	Addr          string        `json:"addr"`
	DatabaseDSN   string        `json:"database_dsn"`
	RedisAddr     string        `json:"redis_addr,omitempty"`
	CacheTTL      time.Duration `json:"cache_ttl"`
	SigningKey    string        `json:"signing_key"`
	TokenTTL      time.Duration `json:"token_ttl"`
	AuthScheme    string        `json:"auth_scheme"`
	Issuer        string        `json:"issuer,omitempty"`
	Audience      []string      `json:"audience,omitempty"`
	BcryptCost    int           `json:"bcrypt_cost"`
	LoginRate     float64       `json:"login_rate"`
	LoginBurst    int           `json:"login_burst"`
	AllowOrigins  string        `json:"allow_origins,omitempty"`
	AdminUser     string        `json:"admin_user,omitempty"`
	AdminPassword string        `json:"admin_password,omitempty"`
	LogLevel      string        `json:"log_level"`
	LogFormat     string        `json:"log_format"`
}

var serverConfig = &ServerConfig{}

func bindFlags(fs *pflag.FlagSet, cfg *ServerConfig) {
	fs.StringVar(&cfg.Addr, "addr", ":8080", "HTTP listen address")
	fs.StringVar(&cfg.DatabaseDSN, "database-dsn", "file:authd.db?cache=shared", "sqlite DSN")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", "", "redis address for the credential cache, empty disables it")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", auth.DefaultCredentialCacheTTL, "credential cache entry lifetime")
	fs.StringVar(&cfg.SigningKey, "signing-key", "", "HMAC secret, at least 32 bytes")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", auth.DefaultTokenTTL, "issued token lifetime")
	fs.StringVar(&cfg.AuthScheme, "auth-scheme", auth.DefaultAuthScheme, "authorization header scheme")
	fs.StringVar(&cfg.Issuer, "issuer", "", "iss claim, checked when set")
	fs.StringSliceVar(&cfg.Audience, "audience", nil, "aud claim values, checked when set")
	fs.IntVar(&cfg.BcryptCost, "bcrypt-cost", auth.DefaultBcryptCost, "bcrypt work factor")
	fs.Float64Var(&cfg.LoginRate, "login-rate", float64(auth.DefaultLoginRate), "sustained login attempts per second per username")
	fs.IntVar(&cfg.LoginBurst, "login-burst", auth.DefaultLoginBurst, "login attempts allowed in a burst per username")
	fs.StringVar(&cfg.AllowOrigins, "allow-origins", "", "comma separated CORS origins, empty disables CORS")
	fs.StringVar(&cfg.AdminUser, "admin-user", "", "bootstrap ADMIN account created at startup when missing")
	fs.StringVar(&cfg.AdminPassword, "admin-password", "", "password for --admin-user")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "debug, info, warn, or error")
	fs.StringVar(&cfg.LogFormat, "log-format", "text", "text or json")
}

// applyEnv sets every flag the user did not pass from its AUTH_ variable
func applyEnv(fs *pflag.FlagSet) error {
	var firstErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed || firstErr != nil {
			return
		}
		name := EnvPrefix + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		value, ok := os.LookupEnv(name)
		if !ok {
			return
		}
		if err := fs.Set(f.Name, value); err != nil {
			firstErr = fmt.Errorf("invalid %s: %w", name, err)
		}
	})
	return firstErr
}

// AuthOptions builds the validated token configuration
func (c *ServerConfig) AuthOptions() (auth.Options, error) {
	return auth.NewOptions(c.SigningKey,
		auth.WithTokenTTL(c.TokenTTL),
		auth.WithAuthScheme(c.AuthScheme),
		auth.WithIssuer(c.Issuer),
		auth.WithAudience(c.Audience...),
	)
}

func (c *ServerConfig) LoginLimit() rate.Limit {
	return rate.Limit(c.LoginRate)
}

// Masked returns a copy safe to print
func (c ServerConfig) Masked() ServerConfig {
	c.SigningKey = mask(c.SigningKey)
	c.AdminPassword = mask(c.AdminPassword)
	return c
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

func (c *ServerConfig) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets masked.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), print.MaybePrettyJSON(serverConfig.Masked()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
