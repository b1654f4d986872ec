package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/civicsignal/billscan-cli/internal/pipeline"
)

var (
	stageForce       bool
	stageDryRun      bool
	stageBatchSize   int
	stageConcurrency int
)

var stageCmd = &cobra.Command{
	Use:   "stage <name> <bill-id>",
	Short: "Run a single annotation stage for a bill",
	Long:  fmt.Sprintf("Runs one stage with the same prerequisite gate as a full run.\n\nStages: %s", strings.Join(pipeline.StageNames(), ", ")),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		stageName, billID := args[0], args[1]

		env, err := initPipeline(ctx, pipeline.RunnerOptions{
			BatchSize:   stageBatchSize,
			Concurrency: stageConcurrency,
			Force:       stageForce,
			DryRun:      stageDryRun,
		})
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.RunStage(ctx, billID, stageName)
		if err != nil {
			return eris.Wrap(err, "stage run")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	stageCmd.Flags().BoolVar(&stageForce, "force", false, "re-annotate items that are already complete")
	stageCmd.Flags().BoolVar(&stageDryRun, "dry-run", false, "run the stage but skip persistence")
	stageCmd.Flags().IntVar(&stageBatchSize, "batch-size", 0, "checkpoint cadence in successful items (default from config)")
	stageCmd.Flags().IntVar(&stageConcurrency, "concurrency", 0, "worker pool size (default from config)")
	rootCmd.AddCommand(stageCmd)
}
