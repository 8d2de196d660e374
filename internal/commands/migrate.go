package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tellerline/teller/internal/store"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateOffline(); err != nil {
				return fmt.Errorf("invalid configuration:\n%w", err)
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			version, err := store.Migrate(ctx, cfg.Database.Driver, cfg.Database.DSN)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema at version %d\n", cfg.Database.Driver, version)
			return nil
		},
	}
}
