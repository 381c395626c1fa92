package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the remote grant table if it does not exist",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		remote, err := requireRemote(ctx, cfg.Remote)
		if err != nil {
			return eris.Wrap(err, "migrate")
		}
		defer remote.Close()

		if err := remote.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate")
		}

		zap.L().Info("remote table ready",
			zap.String("driver", cfg.Remote.EffectiveDriver()),
			zap.String("table", cfg.Remote.Table),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
