package cli

import (
	"github.com/aussiebroadwan/authsession/internal/agent/app"
	"github.com/spf13/cobra"
)

func newServeCommand(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the session agent",
		Long: `Run the session agent in the foreground.

Configuration comes from the file given with --config (or $AUTHSESSION_CONFIG),
overridden by AUTHSESSION_* environment variables.`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			cfg, err := app.LoadConfig(o.configPath)
			if err != nil {
				return err
			}

			application, err := app.New(cfg)
			if err != nil {
				return err
			}
			return application.Run()
		},
	}
}
