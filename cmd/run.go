package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civicsignal/billscan-cli/internal/pipeline"
)

var (
	runForce       bool
	runDryRun      bool
	runBatchSize   int
	runConcurrency int
)

var runCmd = &cobra.Command{
	Use:   "run <bill-id>",
	Short: "Run every annotation stage for a bill",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		billID := args[0]

		env, err := initPipeline(ctx, pipeline.RunnerOptions{
			BatchSize:   runBatchSize,
			Concurrency: runConcurrency,
			Force:       runForce,
			DryRun:      runDryRun,
		})
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Run(ctx, billID)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("run complete",
			zap.String("bill", billID),
			zap.String("outcome", string(result.Outcome)),
			zap.Int("failed_items", result.TotalFailed()),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runForce, "force", false, "re-annotate items that are already complete")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "run every stage but skip persistence")
	runCmd.Flags().IntVar(&runBatchSize, "batch-size", 0, "checkpoint cadence in successful items (default from config)")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "worker pool size per stage (default from config)")
	rootCmd.AddCommand(runCmd)
}
