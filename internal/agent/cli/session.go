package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newLoginCommand(o *options) *cobra.Command {
	var (
		returnTo  string
		noBrowser bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through the identity provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := o.client()
			if _, err := c.Health(cmd.Context()); err != nil {
				return explain(err)
			}

			target := c.LoginURL(returnTo)
			out := cmd.OutOrStdout()
			if !noBrowser && o.open != nil {
				if err := o.open(target); err == nil {
					fmt.Fprintln(out, "Opened your browser to sign in.")
					return nil
				}
			}
			fmt.Fprintf(out, "Open this URL to sign in:\n  %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVar(&returnTo, "return-to", "", "page to land on after sign-in")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "print the sign-in URL instead of opening it")
	return cmd
}

func newLogoutCommand(o *options) *cobra.Command {
	var noBrowser bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out locally and at the identity provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := o.client().Logout(cmd.Context())
			if err != nil {
				return explain(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Signed out.")
			if resp.LogoutURL == "" {
				return nil
			}
			if !noBrowser && o.open != nil && o.open(resp.LogoutURL) == nil {
				return nil
			}
			fmt.Fprintf(out, "Open this URL to end the provider session:\n  %s\n", resp.LogoutURL)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "print the provider logout URL instead of opening it")
	return cmd
}

func newTokenCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print a fresh access token",
		Long: `Print a bearer token valid for at least the refresh lead, renewing it first
when needed. Use it in scripts:

  curl -H "Authorization: Bearer $(authsession token)" https://api.example.com/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := o.client().Token(cmd.Context())
			if err != nil {
				return explain(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.AccessToken)
			return nil
		},
	}
}

func newWhoamiCommand(o *options) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := o.client().Me(cmd.Context())
			if err != nil {
				return explain(err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(id)
			}

			fmt.Fprintf(out, "Subject:  %s\n", id.Subject)
			if id.Username != "" {
				fmt.Fprintf(out, "Username: %s\n", id.Username)
			}
			if id.DisplayName != "" {
				fmt.Fprintf(out, "Name:     %s\n", id.DisplayName)
			}
			if id.Email != "" {
				fmt.Fprintf(out, "Email:    %s\n", id.Email)
			}
			fmt.Fprintf(out, "Roles:    %s\n", strings.Join(id.Roles, ", "))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newStatusCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show agent and session status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := o.client()
			health, err := c.Health(cmd.Context())
			if err != nil {
				return explain(err)
			}
			st, err := c.Session(cmd.Context())
			if err != nil {
				return explain(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Agent:    %s (%s, up %s)\n", health.Status, health.Version, health.Uptime)

			if st.Authenticated {
				fmt.Fprintf(out, "Session:  signed in as %s\n", st.Subject)
				fmt.Fprintf(out, "Expires:  %s (in %s)\n",
					st.ExpiresAt.Local().Format(time.RFC1123),
					(time.Duration(st.ExpiresIn) * time.Second).String(),
				)
			} else {
				fmt.Fprintln(out, "Session:  signed out")
			}
			if st.LoginURL != "" && !st.Authenticated {
				fmt.Fprintf(out, "Sign in:  %s\n", st.LoginURL)
			}
			if st.LastExpired != nil {
				fmt.Fprintf(out, "Expired:  session of %s ended at %s: %s\n",
					st.LastExpired.Subject, st.LastExpired.At.Local().Format(time.RFC1123), st.LastExpired.Reason)
			}
			if st.StorageDegraded {
				fmt.Fprintln(out, "Warning:  session storage unavailable, the session will not survive a restart")
			}
			return nil
		},
	}
}
