// Package cli is the authsession command line: it runs the session agent and
// talks to a running one.
package cli

import (
	"cmp"
	"errors"
	"fmt"
	"os"

	"github.com/aussiebroadwan/authsession/internal/agent/client"
	"github.com/spf13/cobra"
)

const defaultAgentURL = "http://127.0.0.1:8400"

type options struct {
	configPath string
	agentURL   string
	secret     string

	open func(string) error
}

func (o *options) client() *client.Client {
	return client.New(o.agentURL, o.secret)
}

// NewRootCommand builds the command tree. open launches a URL in the system
// browser.
func NewRootCommand(open func(string) error) *cobra.Command {
	o := &options{open: open}

	root := &cobra.Command{
		Use:   "authsession",
		Short: "Keep an OpenID Connect session alive for local tools",
		Long: `authsession runs a small local agent that signs you in through your
identity provider, renews the access token before it expires and hands out
fresh bearer tokens to scripts and tools.

Start the agent with "authsession serve", then sign in with "authsession login".`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&o.configPath, "config", "", "config file (default $AUTHSESSION_CONFIG)")
	root.PersistentFlags().StringVar(&o.agentURL, "agent",
		cmp.Or(os.Getenv("AUTHSESSION_AGENT_URL"), defaultAgentURL), "URL of the running agent")
	root.PersistentFlags().StringVar(&o.secret, "secret", os.Getenv("AUTHSESSION_AGENT_SECRET"), "agent secret, if one is configured")

	root.AddCommand(
		newServeCommand(o),
		newLoginCommand(o),
		newLogoutCommand(o),
		newTokenCommand(o),
		newWhoamiCommand(o),
		newStatusCommand(o),
	)
	return root
}

// explain turns agent errors into instructions.
func explain(err error) error {
	if errors.Is(err, client.ErrAgentUnavailable) {
		return fmt.Errorf("%w, start it with `authsession serve`", err)
	}

	var ae *client.Error
	if !errors.As(err, &ae) {
		return err
	}
	switch ae.Code {
	case "login_required":
		return errors.New("not signed in, run `authsession login`")
	case "session_expired":
		if ae.LoginURL != "" {
			return fmt.Errorf("session expired, sign in again at %s", ae.LoginURL)
		}
		return errors.New("session expired, run `authsession login`")
	}
	return err
}
