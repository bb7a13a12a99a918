package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/model"
)

// exitPartial signals an incomplete but resumable run. Fatal startup errors
// keep cobra's exit code 1.
const exitPartial = 2

// exitCode is picked up by main after Execute returns, so deferred cleanup
// (store close, logger sync) runs before the process exits.
var exitCode int

func exitCodeFor(outcome model.RunOutcome) int {
	if outcome == model.RunPartial {
		return exitPartial
	}
	return 0
}

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Run the harvest plan (resumes automatically)",
	Long:  "Walks every region/locality/source plan unit that is not yet done, fetching, classifying, and storing leads. Interrupted or quota-paused units stay pending and are picked up by the next run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initHarvest(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.Orchestrator.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "harvest run")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return eris.Wrap(err, "encode summary")
		}

		switch summary.Outcome {
		case model.RunPartial:
			zap.L().Warn("run incomplete, rerun harvest to resume",
				zap.Int("units_left", summary.UnitsLeft))
		case model.RunFailed:
			return eris.New("harvest run failed, no unit completed")
		}
		exitCode = exitCodeFor(summary.Outcome)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(harvestCmd)
}
