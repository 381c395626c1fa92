package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/grant-scraper/internal/sink"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upsert data/all_grants.json to the remote table",
	Long: `Read the combined grant file written by earlier scrapes and upsert every
record to the remote table by grant_id. Nothing is fetched.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("push"); err != nil {
			return err
		}

		local, err := sink.NewLocal(cfg.Output.DataDir)
		if err != nil {
			return eris.Wrap(err, "push")
		}
		grants, err := local.LoadCombined()
		if err != nil {
			return eris.Wrap(err, "push")
		}
		if len(grants) == 0 {
			fmt.Fprintln(os.Stderr, "No grants to push.")
			return nil
		}

		remote, err := requireRemote(ctx, cfg.Remote)
		if err != nil {
			return eris.Wrap(err, "push")
		}
		defer remote.Close()

		n, err := remote.Upsert(ctx, grants)
		if err != nil {
			return eris.Wrap(err, "push")
		}

		zap.L().Info("push complete", zap.Int("grants", len(grants)), zap.Int64("upserted", n))
		fmt.Printf("Upserted %d of %d grants.\n", n, len(grants))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pushCmd)
}
