package gate

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wins-cli/internal/audit"
	"github.com/sells-group/wins-cli/internal/model"
)

// Delete moves a record into the deletion store. The record is removed
// from active listings and snapshots but never physically destroyed. A
// reason is always required; an approver is required when the deletion
// policy demands one.
func (g *Gate) Delete(ctx context.Context, recordID, reason, deletedBy string) (*model.DeletedRecord, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, eris.New("delete: reason is required")
	}
	if g.Rules.DeletionPolicy.RequireApproval && deletedBy == "" {
		return nil, &ApprovalError{Op: "delete"}
	}
	if deletedBy == "" {
		deletedBy = audit.SystemActor
	}

	rec, err := g.Store.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, eris.Errorf("delete: record not found: %s", recordID)
	}
	if rec.MergedInto != "" {
		return nil, eris.Errorf("delete: record %s is a merge source of %s; delete the merged record instead", recordID, rec.MergedInto)
	}

	del := &model.DeletedRecord{
		RecordID:      recordID,
		Original:      *rec,
		DeletedAt:     g.Clock().UTC(),
		DeletedReason: reason,
		DeletedBy:     deletedBy,
	}
	if err := g.Store.MoveToDeleted(ctx, del); err != nil {
		return nil, err
	}

	g.Audit.Record(ctx, model.AuditDelete, deletedBy, []string{recordID}, map[string]any{
		"reason": reason,
	})
	zap.L().Info("record moved to deletion store",
		zap.String("record_id", recordID),
		zap.String("deleted_by", deletedBy),
	)
	return del, nil
}

// Restore re-inserts a deleted record unchanged and marks the deletion
// entry restored. Restoring twice, or restoring when a new record has
// taken the id, is an error.
func (g *Gate) Restore(ctx context.Context, recordID, restoredBy string) (*model.FinalizedRecord, error) {
	if restoredBy == "" {
		restoredBy = audit.SystemActor
	}

	rec, err := g.Store.RestoreRecord(ctx, recordID, restoredBy, g.Clock().UTC())
	if err != nil {
		return nil, err
	}

	g.Audit.Record(ctx, model.AuditRestore, restoredBy, []string{recordID}, nil)
	zap.L().Info("record restored",
		zap.String("record_id", recordID),
		zap.String("restored_by", restoredBy),
	)
	return rec, nil
}
