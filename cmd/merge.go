package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/wins-cli/internal/model"
)

var (
	mergeIDs        []string
	mergeReason     string
	mergeApprovedBy string
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge duplicate records into one, preserving lineage",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		merged, err := env.Gate.Merge(ctx, mergeIDs, mergeReason, mergeApprovedBy)
		if err != nil {
			return err
		}
		return printJSON(merged)
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <record-id>",
	Short: "Move a record to the deletion store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		del, err := env.Gate.Delete(ctx, args[0], deleteReason, deleteBy)
		if err != nil {
			return err
		}
		return printJSON(del)
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <record-id>",
	Short: "Restore a deleted record unchanged",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		rec, err := env.Gate.Restore(ctx, args[0], restoreBy)
		if err != nil {
			return err
		}
		return printJSON(rec)
	},
}

var deletedCmd = &cobra.Command{
	Use:   "deleted",
	Short: "List the deletion store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		dels, err := st.ListDeleted(ctx)
		if err != nil {
			return err
		}
		if dels == nil {
			dels = []model.DeletedRecord{}
		}
		return printJSON(dels)
	},
}

var (
	deleteReason string
	deleteBy     string
	restoreBy    string
)

func init() {
	mergeCmd.Flags().StringSliceVar(&mergeIDs, "ids", nil, "record ids to merge (at least 2)")
	mergeCmd.Flags().StringVar(&mergeReason, "reason", "", "merge reason (required)")
	mergeCmd.Flags().StringVar(&mergeApprovedBy, "approved-by", "", "human approver")
	_ = mergeCmd.MarkFlagRequired("ids")
	_ = mergeCmd.MarkFlagRequired("reason")

	deleteCmd.Flags().StringVar(&deleteReason, "reason", "", "deletion reason (required)")
	deleteCmd.Flags().StringVar(&deleteBy, "by", "", "human approver")
	_ = deleteCmd.MarkFlagRequired("reason")

	restoreCmd.Flags().StringVar(&restoreBy, "by", "", "who performs the restore")

	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(deletedCmd)
}
