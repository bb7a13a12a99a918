package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/harvest"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Move failed plan units back to pending",
	Long:  "Requeues every failed plan unit so the next harvest run retries it. The pipeline never retries failed units on its own.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		n, err := harvest.NewLedger(st).ResetFailed(ctx)
		if err != nil {
			return eris.Wrap(err, "reset failed units")
		}

		zap.L().Info("failed units reset", zap.Int("units", n))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
