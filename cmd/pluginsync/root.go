package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/pluginsync/internal/config"
)

// cli carries state shared by every subcommand.
type cli struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "pluginsync",
		Short: "Keep plugin artifacts in step with their GitHub releases",
		Long: `pluginsync tracks a set of GitHub repositories, installs the newest installable
release asset of each into a plugins directory and keeps backups of replaced files.

Without a subcommand it runs the HTTP API together with the sync scheduler.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			c.cfg = cfg

			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context())
		},
	}

	root.AddCommand(
		c.newServeCmd(),
		c.newSyncCmd(),
		c.newValidateCmd(),
		c.newReleasesCmd(),
		c.newBackupsCmd(),
	)

	return root
}
