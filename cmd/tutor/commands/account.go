package commands

import (
	"errors"
	"fmt"
	"music-tutor/internal/models"

	"github.com/spf13/cobra"
)

func NewLoginCmd() *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in on this device",
		Long: `Sign in with an email address. Passing --name registers a new account.

Examples:
  tutor login --email ayse@example.com
  tutor login --email ayse@example.com --name "Ayşe Yılmaz"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var resp *models.LoginResponse
			if name != "" {
				resp, err = a.auth.Register(cmd.Context(), a.cfg.Device, email, name)
			} else {
				resp, err = a.auth.Login(cmd.Context(), a.cfg.Device, email)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", resp.User.Email, resp.User.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&name, "name", "", "full name, registers a new account")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out on this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.auth.Logout(cmd.Context(), a.cfg.Device); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.currentUser(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:     %s\n", user.ID)
			fmt.Fprintf(out, "Email:  %s\n", user.Email)
			if user.FullName != "" {
				fmt.Fprintf(out, "Name:   %s\n", user.FullName)
			}
			fmt.Fprintf(out, "Device: %s\n", a.cfg.Device)
			return nil
		},
	}
}

func NewDeleteAccountCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-account",
		Short: "Delete profile, progress and settings of the signed-in user",
		Long: `Delete every stored record of the signed-in user and sign out.
This cannot be undone, so --yes is required.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete without --yes")
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			user, err := a.currentUser(ctx)
			if err != nil {
				return err
			}
			if err := a.profiles.DeleteAccount(ctx, user.ID); err != nil {
				return err
			}
			if schedules, err := a.schedules(ctx); err == nil {
				if err := schedules.Disable(ctx, user.ID); err != nil {
					a.logger.WithError(err).Warn("Failed to remove reminder schedule")
				}
			}
			if err := a.auth.Logout(ctx, a.cfg.Device); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account %s deleted\n", user.ID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

