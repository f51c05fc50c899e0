package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/logani/storefront"
	"github.com/spf13/cobra"
)

const envPassword = "STOREFRONT_PASSWORD"

func newLoginCmd(g *globalFlags) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv(envPassword)
			}
			if email == "" || password == "" {
				return errors.New("--email and --password (or " + envPassword + ") are required")
			}

			c, done, err := g.openClient()
			if err != nil {
				return err
			}
			defer done()

			sess, err := c.Login(commandContext(cmd), email, password)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s <%s>, token valid until %s\n",
				sess.User.Name, sess.User.Email, time.Unix(sess.ExpiresAt, 0).Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func newLogoutCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Invalidate the session on the server and clear it locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, done, err := g.openClient()
			if err != nil {
				return err
			}
			defer done()

			if err := c.Logout(commandContext(cmd)); err != nil {
				return describe(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func newWhoamiCmd(g *globalFlags) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Print the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, done, err := g.openClient()
			if err != nil {
				return err
			}
			defer done()
			ctx := commandContext(cmd)

			if refresh {
				if _, err := c.EnsureFreshToken(ctx); err != nil {
					return describe(err)
				}
			}
			sess, err := c.Session(ctx)
			if err != nil {
				return describe(err)
			}
			if sess.IsZero() {
				fmt.Fprintln(cmd.OutOrStdout(), "not logged in")
				return nil
			}

			out := map[string]any{
				"user":       sess.User,
				"expires_at": time.Unix(sess.ExpiresAt, 0).Format(time.RFC3339),
				"stale":      time.Until(time.Unix(sess.ExpiresAt, 0)) <= c.Config().Expiry.Margin,
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "refresh the token first if it is stale")
	return cmd
}

// describe turns client errors into a line an operator can act on.
func describe(err error) error {
	switch storefront.KindOf(err) {
	case storefront.KindConfig:
		return fmt.Errorf("%w (set --base-url or %s)", err, storefront.EnvBaseURL)
	case storefront.KindReauth:
		return fmt.Errorf("%w (run: storefront-probe login)", err)
	default:
		return err
	}
}
