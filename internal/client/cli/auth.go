package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/outreach/internal/client/auth"
	"github.com/iudanet/outreach/internal/validation"
)

// readCredentials берёт username из флага или спрашивает, пароль всегда спрашивает
func (c *Cli) readCredentials(username string, confirm bool) (string, string, error) {
	var err error
	if username == "" {
		username, err = c.io.ReadInput("Username: ")
		if err != nil {
			return "", "", fmt.Errorf("failed to read username: %w", err)
		}
	}
	if err := validation.ValidateUsername(username); err != nil {
		return "", "", err
	}

	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return "", "", fmt.Errorf("failed to read password: %w", err)
	}

	if confirm {
		again, err := c.io.ReadPassword("Confirm password: ")
		if err != nil {
			return "", "", fmt.Errorf("failed to read password: %w", err)
		}
		if again != password {
			return "", "", errors.New("passwords do not match")
		}
	}

	return username, password, nil
}

func (c *Cli) registerCommand() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:     "register",
		Short:   "Create an account on the remote store",
		GroupID: "session",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}

			username, password, err := c.readCredentials(username, true)
			if err != nil {
				return err
			}

			resp, err := a.Auth.Register(cmd.Context(), username, password)
			if err != nil {
				return err
			}

			c.io.Printf("Registered %s (user id %s). Run 'outreach login' to start a session.\n", username, resp.UserID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	return cmd
}

func (c *Cli) loginCommand() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:     "login",
		Short:   "Start a session; queued changes are sent once logged in",
		GroupID: "session",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}

			username, password, err := c.readCredentials(username, false)
			if err != nil {
				return err
			}

			session, err := a.Auth.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}

			c.io.Printf("Logged in as %s, session valid until %s\n",
				session.Username, time.Unix(session.ExpiresAt, 0).Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	return cmd
}

func (c *Cli) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "logout",
		Short:   "Forget the local session (queued changes are kept)",
		GroupID: "session",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}

			if err := a.Auth.Logout(cmd.Context()); err != nil {
				if errors.Is(err, auth.ErrNotLoggedIn) {
					c.io.Println("Not logged in")
					return nil
				}
				return err
			}

			c.io.Println("Logged out")
			return nil
		},
	}
}
