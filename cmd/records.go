package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/wins-cli/internal/model"
	"github.com/sells-group/wins-cli/internal/store"
)

var (
	recordsStatus        string
	recordsIncludeMerged bool
	snapshotStatuses     []string
	snapshotInternal     bool
	auditKind            string
	auditLimit           int
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect finalized records",
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		recs, err := st.ListRecords(ctx, store.RecordFilter{
			Status:               model.RecordStatus(recordsStatus),
			IncludeMergedSources: recordsIncludeMerged,
		})
		if err != nil {
			return err
		}
		if recs == nil {
			recs = []model.FinalizedRecord{}
		}
		return printJSON(recs)
	},
}

var recordsShowCmd = &cobra.Command{
	Use:   "show <record-id>",
	Short: "Show one record with its evaluations and rank",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rec, err := st.GetRecord(ctx, args[0])
		if err != nil {
			return err
		}
		if rec == nil {
			return eris.Errorf("record not found: %s", args[0])
		}

		evals, err := st.ListEvaluationResults(ctx, args[0])
		if err != nil {
			return err
		}

		return printJSON(map[string]any{
			"record":      rec,
			"evaluations": evals,
		})
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Emit the read-only snapshot for downstream consumers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		statuses := make([]model.RecordStatus, 0, len(snapshotStatuses))
		for _, s := range snapshotStatuses {
			statuses = append(statuses, model.RecordStatus(s))
		}

		recs, err := st.Snapshot(ctx, store.SnapshotFilter{
			Statuses:        statuses,
			IncludeInternal: snapshotInternal,
		})
		if err != nil {
			return err
		}
		if recs == nil {
			recs = []model.FinalizedRecord{}
		}
		return printJSON(recs)
	},
}

var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "List terminal extraction failures",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		fails, err := st.ListExtractionFailures(ctx)
		if err != nil {
			return err
		}
		if fails == nil {
			fails = []model.ExtractionFailure{}
		}
		return printJSON(fails)
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List audit trail events",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		events, err := st.ListAudit(ctx, model.AuditKind(auditKind), auditLimit)
		if err != nil {
			return err
		}
		if events == nil {
			events = []model.AuditEvent{}
		}
		return printJSON(events)
	},
}

var flagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "List duplicate flags",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		flags, err := st.ListDuplicateFlags(ctx)
		if err != nil {
			return err
		}
		if flags == nil {
			flags = []model.DuplicateFlag{}
		}
		return printJSON(flags)
	},
}

func init() {
	recordsListCmd.Flags().StringVar(&recordsStatus, "status", "", "filter by status (pending, evaluated, ranked)")
	recordsListCmd.Flags().BoolVar(&recordsIncludeMerged, "include-merged", false, "include merge-source records")
	recordsCmd.AddCommand(recordsListCmd)
	recordsCmd.AddCommand(recordsShowCmd)

	snapshotCmd.Flags().StringSliceVar(&snapshotStatuses, "status", nil, "statuses to include (default all)")
	snapshotCmd.Flags().BoolVar(&snapshotInternal, "include-internal", false, "include internal-only records")

	auditCmd.Flags().StringVar(&auditKind, "kind", "", "filter by event kind")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 100, "maximum events")

	rootCmd.AddCommand(recordsCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(failuresCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(flagsCmd)
}
