package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/wins-cli/internal/model"
	"github.com/sells-group/wins-cli/internal/pipeline"
)

var (
	runCountry string
	runMonth   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Extract and finalize stories from imported evidence",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := validateBatchKey(runCountry, runMonth); err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		guard, err := initExtractor()
		if err != nil {
			return err
		}
		guard.Audit = env.Audit

		all, err := env.Store.ListEvidence(ctx)
		if err != nil {
			return err
		}
		var batch []model.Evidence
		for _, ev := range all {
			if ev.Country == runCountry && ev.Month == runMonth {
				batch = append(batch, ev)
			}
		}

		processor := &pipeline.BatchProcessor{
			Store:       env.Store,
			Guard:       guard,
			Rules:       env.Rules,
			Audit:       env.Audit,
			Concurrency: cfg.Batch.MaxConcurrentItems,
			Clock:       time.Now,
		}
		report, err := processor.Run(ctx, runCountry, runMonth, batch)
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

func init() {
	runCmd.Flags().StringVar(&runCountry, "country", "", "two-letter country code (required)")
	runCmd.Flags().StringVar(&runMonth, "month", "", "batch month YYYY-MM (required)")
	_ = runCmd.MarkFlagRequired("country")
	_ = runCmd.MarkFlagRequired("month")
	rootCmd.AddCommand(runCmd)
}
