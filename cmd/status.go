package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/harvest"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/quota"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show plan progress, lead counts, and quota",
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

		governor, err := quota.New(st, cfg.Quota)
		if err != nil {
			return err
		}

		snap, err := harvest.Snapshot(ctx, st, governor)
		if err != nil {
			return eris.Wrap(err, "read status")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
