// Command proposalctl performs operator tasks against the ProposalKeeper
// database: applying migrations, bootstrapping an admin account, listing
// accounts and issuing temporary passwords.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dmitrijs2005/proposalkeeper/internal/server/config"
	"github.com/dmitrijs2005/proposalkeeper/internal/server/models"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var now = time.Now

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error: reading .env: %v\n", err)
		os.Exit(1)
	}
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:           "proposalctl",
		Short:         "ProposalKeeper operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&dsn, "dsn", "d", "", "database DSN (default from PROPOSALKEEPER_DATABASE_DSN)")

	open := func(ctx context.Context) (adminOps, error) {
		cfg, err := config.FromEnv()
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if dsn != "" {
			cfg.DatabaseDSN = dsn
		}
		return openOps(ctx, cfg)
	}

	cmd.AddCommand(migrateCmd(open))
	cmd.AddCommand(seedAdminCmd(open))
	cmd.AddCommand(listUsersCmd(open))
	cmd.AddCommand(resetPasswordCmd(open))

	return cmd
}

type opener func(ctx context.Context) (adminOps, error)

func migrateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ops, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer ops.Close()

			if err := ops.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
			return nil
		},
	}
}

func seedAdminCmd(open opener) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create an admin account if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				return errors.New("--email is required")
			}
			if password == "" {
				pw, err := promptNewPassword(cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				password = pw
			}

			ops, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer ops.Close()

			created, err := ops.EnsureAdmin(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "Admin %s created.\n", email)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "User %s already exists, nothing to do.\n", email)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "admin email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "admin password (prompted when empty)")
	return cmd
}

func listUsersCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list-users",
		Short: "List accounts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ops, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer ops.Close()

			users, err := ops.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			return printUsers(cmd.OutOrStdout(), users)
		},
	}
}

func resetPasswordCmd(open opener) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Issue a temporary password for an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				return errors.New("--email is required")
			}

			ops, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer ops.Close()

			pw, err := ops.ResetPassword(cmd.Context(), email)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Temporary password for %s: %s\n", email, pw)
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	return cmd
}

func promptNewPassword(w io.Writer) (string, error) {
	fmt.Fprint(w, "Password: ")
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	fmt.Fprint(w, "Repeat password: ")
	again, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	if string(pw) != string(again) {
		return "", errors.New("passwords do not match")
	}
	return string(pw), nil
}

func printUsers(w io.Writer, users []models.UserSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EMAIL\tROLE\tCREATED")
	for _, u := range users {
		role := "user"
		if u.IsAdmin {
			role = "admin"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", u.Email, role, humanize.RelTime(u.CreatedAt, now(), "ago", "from now"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s account(s)\n", humanize.Comma(int64(len(users))))
	return nil
}
