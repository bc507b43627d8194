package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/wins-cli/internal/pipeline"
)

var rankAsOf string

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Apply business rules to finalized records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		stages := &pipeline.Stages{Store: env.Store, Rules: env.Rules, Audit: env.Audit}
		report, err := stages.Evaluate(ctx)
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Compute ranking scores for evaluated records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Recency scores against --as-of, or the latest record month when
		// unset, so re-running over the same records reproduces the same
		// scores.
		var asOf time.Time
		if rankAsOf != "" {
			t, err := time.Parse("2006-01", rankAsOf)
			if err != nil {
				return eris.Errorf("--as-of must be YYYY-MM, got %q", rankAsOf)
			}
			asOf = t
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		stages := &pipeline.Stages{Store: env.Store, Rules: env.Rules, Audit: env.Audit, AsOf: asOf}
		scores, err := stages.RankAll(ctx)
		if err != nil {
			return err
		}
		return printJSON(scores)
	},
}

func init() {
	rankCmd.Flags().StringVar(&rankAsOf, "as-of", "", "recency reference month YYYY-MM (default: latest record month)")
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(rankCmd)
}
