package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tendant/talkonpaper/pkg/talkonpaper"
)

func newUserCommand(ctx *commandContext) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	var email, password, role, tier string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account with an explicit role and tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || password == "" {
				return errors.New("--email and --password are required")
			}
			defer ctx.close()
			svc, err := ctx.service(cmd)
			if err != nil {
				return err
			}
			user, err := svc.CreateUser(cmd.Context(), talkonpaper.CreateUserRequest{
				Email:             email,
				Password:          password,
				Role:              talkonpaper.Role(role),
				SubscriptionLevel: tier,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s, %s)\n", user.ID, user.Email, user.Role, user.SubscriptionLevel)
			return nil
		},
	}
	createCmd.Flags().StringVar(&email, "email", "", "Account email")
	createCmd.Flags().StringVar(&password, "password", "", "Account password (at least 6 characters)")
	createCmd.Flags().StringVar(&role, "role", string(talkonpaper.RoleViewer), "viewer, speaker or admin")
	createCmd.Flags().StringVar(&tier, "tier", "public", "public, registered or academic_premium")

	userCmd.AddCommand(createCmd)
	return userCmd
}
