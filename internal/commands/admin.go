package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// EnvAdminPassword supplies the password for `admin create` when the flag is
// omitted, keeping it out of shell history.
const EnvAdminPassword = "TELLER_ADMIN_PASSWORD"

func newAdminCommand(opts *rootOptions) *cobra.Command {
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage staff logins",
	}
	adminCmd.AddCommand(newAdminCreateCommand(opts))
	return adminCmd
}

func newAdminCreateCommand(opts *rootOptions) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin login for the admin portal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv(EnvAdminPassword)
			}
			if password == "" {
				return errors.New("--password or " + EnvAdminPassword + " is required")
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			a, err := opts.openApp(ctx, false, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := a.svc.CreateAdmin(ctx, email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s (%s)\n", u.Email, u.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "login email (required)")
	_ = cmd.MarkFlagRequired("email")
	cmd.Flags().StringVar(&password, "password", "", "login password (or set "+EnvAdminPassword+")")

	return cmd
}
