// Package cli defines the shopfeed command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/shopfeed/backend/internal/config"
	"github.com/shopfeed/backend/internal/logging"
)

// NewRootCommand creates the shopfeed root command. Running it without a
// subcommand starts the server.
func NewRootCommand() *cobra.Command {
	cfg := &config.Config{}

	cmd := &cobra.Command{
		Use:           "shopfeed",
		Short:         "shopfeed real-time backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Initialize structured logging (reads LOGGING_LEVEL env var)
			logging.Initialize()

			loaded, err := config.Load()
			if err != nil {
				return err
			}
			*cfg = *loaded
			return nil
		},
	}

	serve := NewServeCommand(cfg)
	cmd.RunE = serve.RunE

	cmd.AddCommand(serve)
	cmd.AddCommand(NewMigrateCommand(cfg))
	cmd.AddCommand(NewTokenCommand(cfg))

	return cmd
}
