// Package store persists the durable artifacts of the pipeline: evidence,
// finalized records, duplicate flags, derived evaluation and ranking
// results, the deletion store, extraction failures, and the audit trail.
// Records are append-only: a second write of an existing id is a conflict,
// never a silent overwrite.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sells-group/wins-cli/internal/model"
)

// ConflictError reports an attempt to insert a record id that already
// exists. Callers decide whether the write was an idempotent repeat or a
// genuine identity collision.
type ConflictError struct {
	ID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("record already exists: %s", e.ID)
}

// RecordFilter selects records for listing.
type RecordFilter struct {
	Status model.RecordStatus
	// IncludeMergedSources includes records that have been consumed as
	// merge sources. They remain inspectable but are excluded by default.
	IncludeMergedSources bool
	Limit                int
	Offset               int
}

// SnapshotFilter selects the read-only view for downstream consumers.
type SnapshotFilter struct {
	Statuses        []model.RecordStatus
	IncludeInternal bool
}

// Store is the persistence interface for the wins pipeline.
type Store interface {
	// Evidence: read-only once imported, never mutated.
	InsertEvidence(ctx context.Context, ev model.Evidence) error
	GetEvidence(ctx context.Context, id string) (*model.Evidence, error)
	ListEvidence(ctx context.Context) ([]model.Evidence, error)

	// Finalized records.
	InsertRecord(ctx context.Context, rec *model.FinalizedRecord) error
	GetRecord(ctx context.Context, id string) (*model.FinalizedRecord, error)
	ListRecords(ctx context.Context, f RecordFilter) ([]model.FinalizedRecord, error)
	UpdateRecordStatus(ctx context.Context, id string, status model.RecordStatus) error
	MarkMergedInto(ctx context.Context, sourceID, mergedID string) error

	// Advisory duplicate flags.
	InsertDuplicateFlags(ctx context.Context, flags []model.DuplicateFlag) error
	ListDuplicateFlags(ctx context.Context) ([]model.DuplicateFlag, error)

	// Derived artifacts, replaced wholesale when a closed batch is re-run.
	ReplaceEvaluationResults(ctx context.Context, results []model.EvaluationResult) error
	ListEvaluationResults(ctx context.Context, recordID string) ([]model.EvaluationResult, error)
	ReplaceRankScores(ctx context.Context, scores []model.RankScore) error
	ListRankScores(ctx context.Context) ([]model.RankScore, error)

	// Deletion store: move, never destroy.
	MoveToDeleted(ctx context.Context, del *model.DeletedRecord) error
	GetDeleted(ctx context.Context, recordID string) (*model.DeletedRecord, error)
	ListDeleted(ctx context.Context) ([]model.DeletedRecord, error)
	RestoreRecord(ctx context.Context, recordID, restoredBy string, at time.Time) (*model.FinalizedRecord, error)

	// Terminal extraction failures.
	InsertExtractionFailure(ctx context.Context, f *model.ExtractionFailure) error
	ListExtractionFailures(ctx context.Context) ([]model.ExtractionFailure, error)

	// Append-only audit trail.
	AppendAudit(ctx context.Context, ev model.AuditEvent) error
	ListAudit(ctx context.Context, kind model.AuditKind, limit int) ([]model.AuditEvent, error)

	// Snapshot is the filtered read-only view served to downstream
	// rendering and publishing collaborators.
	Snapshot(ctx context.Context, f SnapshotFilter) ([]model.FinalizedRecord, error)

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}
