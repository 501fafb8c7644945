package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
)

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage platform admins",
	}
	var email string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a platform admin or promote an existing user. Password comes from ADMIN_PASSWORD.",
		RunE: func(cmd *cobra.Command, args []string) error {
			password := os.Getenv("ADMIN_PASSWORD")
			if email == "" || password == "" {
				return errors.New("--email and ADMIN_PASSWORD are required")
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()
			u, err := a.auth.EnsureAdmin(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			a.log.Info().Uint("user_id", u.ID).Str("email", u.Email).Msg("admin ready")
			return nil
		},
	}
	create.Flags().StringVar(&email, "email", "", "Admin email")
	cmd.AddCommand(create)
	return cmd
}
