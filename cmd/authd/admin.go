package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	auth "github.com/goliatone/go-auth-guard"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations, built in roles included.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), serverConfig)
		if err != nil {
			return err
		}
		defer a.Close()
		fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
		return nil
	},
}

var migrateRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Revert the most recently applied migration group.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(serverConfig.DatabaseDSN)
		if err != nil {
			return err
		}
		defer db.Close()

		reverted, err := auth.Rollback(cmd.Context(), db)
		if err != nil {
			return err
		}
		if len(reverted) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "nothing to roll back")
			return nil
		}
		for _, name := range reverted {
			fmt.Fprintln(cmd.OutOrStdout(), "reverted", name)
		}
		return nil
	},
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts.",
}

var (
	userAddPassword string
	userAddRoles    []string
)

var userAddCmd = &cobra.Command{
	Use:     "add [username]",
	Short:   "Create a user account.",
	Example: "authd user add alice --password s3cret --role ADMIN",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), serverConfig)
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := a.accounts.CreateUser(cmd.Context(), auth.CreateUserInput{
			RegisterInput: auth.RegisterInput{
				Username: args[0],
				Password: userAddPassword,
			},
			Roles: userAddRoles,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "created user %s with roles %v\n", user.Username, user.Roles)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List user accounts and their roles.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), serverConfig)
		if err != nil {
			return err
		}
		defer a.Close()

		users, err := a.repos.Users().List(cmd.Context())
		if err != nil {
			return err
		}

		for _, u := range users {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", u.Username, strings.Join(u.Roles, ","))
		}
		return nil
	},
}

var roleCmd = &cobra.Command{
	Use:   "role",
	Short: "Manage roles.",
}

var roleAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Create a role.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), serverConfig)
		if err != nil {
			return err
		}
		defer a.Close()

		role, err := a.accounts.CreateRole(cmd.Context(), auth.RoleInput{Name: args[0]})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "created role %s\n", role.Name)
		return nil
	},
}

var roleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List roles.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), serverConfig)
		if err != nil {
			return err
		}
		defer a.Close()

		roles, err := a.repos.Roles().List(cmd.Context())
		if err != nil {
			return err
		}

		for _, r := range roles {
			fmt.Fprintln(cmd.OutOrStdout(), r.Name)
		}
		return nil
	},
}

var hashCmd = &cobra.Command{
	Use:   "hash [password]",
	Short: "Print a bcrypt hash of password.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.NewBcryptVerifier(serverConfig.BcryptCost).Hash(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

var tokenRoles []string

var tokenCmd = &cobra.Command{
	Use:     "token [subject]",
	Short:   "Mint a token for subject with the configured secret.",
	Example: "AUTH_SIGNING_KEY=... authd token alice --role ADMIN",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := serverConfig.AuthOptions()
		if err != nil {
			return err
		}

		tokens, err := auth.NewTokenService(opts)
		if err != nil {
			return err
		}

		issued, err := tokens.Issue(args[0], auth.NormalizeRoles(tokenRoles), time.Now())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", opts.GetAuthScheme(), issued.Token)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", issued.ExpiresAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	userAddCmd.Flags().StringVar(&userAddPassword, "password", "", "account password")
	userAddCmd.Flags().StringSliceVar(&userAddRoles, "role", nil, "role to assign, repeatable")
	_ = userAddCmd.MarkFlagRequired("password")
	migrateCmd.AddCommand(migrateRollbackCmd)
	userCmd.AddCommand(userAddCmd, userListCmd)

	roleCmd.AddCommand(roleAddCmd, roleListCmd)

	tokenCmd.Flags().StringSliceVar(&tokenRoles, "role", nil, "role claim, repeatable")

	rootCmd.AddCommand(migrateCmd, userCmd, roleCmd, hashCmd, tokenCmd)
}
