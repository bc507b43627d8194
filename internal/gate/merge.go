package gate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wins-cli/internal/model"
	"github.com/sells-group/wins-cli/internal/pipeline"
	"github.com/sells-group/wins-cli/internal/store"
)

// Merge combines two or more records flagged as duplicates into one new
// record. Sources are never modified beyond gaining a merged_into pointer;
// the merged record carries its full lineage. Without an approver the
// operation is rejected unless auto_merge is enabled in the merge policy.
func (g *Gate) Merge(ctx context.Context, ids []string, reason, approvedBy string) (*model.FinalizedRecord, error) {
	if len(ids) < 2 {
		return nil, eris.Errorf("merge: need at least 2 records, got %d", len(ids))
	}
	if strings.TrimSpace(reason) == "" {
		return nil, eris.New("merge: reason is required")
	}
	if approvedBy == "" {
		if !g.Rules.MergePolicy.AutoMerge {
			return nil, &ApprovalError{Op: "merge"}
		}
		approvedBy = AutoMergeActor
	}

	sources := make([]*model.FinalizedRecord, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, eris.Errorf("merge: duplicate source id %s", id)
		}
		seen[id] = true

		rec, err := g.Store.GetRecord(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, eris.Errorf("merge: record not found: %s", id)
		}
		if rec.MergedInto != "" {
			return nil, eris.Errorf("merge: record %s already merged into %s", id, rec.MergedInto)
		}
		sources = append(sources, rec)
	}

	for _, rec := range sources[1:] {
		if rec.Country != sources[0].Country || rec.Month != sources[0].Month {
			return nil, eris.Errorf("merge: records span different country/month: %s vs %s", sources[0].ID, rec.ID)
		}
	}

	now := g.Clock().UTC()
	merged := combine(sources, ids, reason, approvedBy, now)

	if err := g.insertMerged(ctx, merged); err != nil {
		return nil, err
	}
	for _, src := range sources {
		if err := g.Store.MarkMergedInto(ctx, src.ID, merged.ID); err != nil {
			return nil, err
		}
	}

	g.Audit.Record(ctx, model.AuditMerge, approvedBy, append([]string{merged.ID}, ids...), map[string]any{
		"reason": reason,
	})
	zap.L().Info("records merged",
		zap.Strings("sources", ids),
		zap.String("merged_id", merged.ID),
		zap.String("approved_by", approvedBy),
	)
	return merged, nil
}

// maxMergeCollisionSeq bounds the collision sequence for merged ids.
const maxMergeCollisionSeq = 100

// insertMerged writes the merged record, resolving content-id collisions
// with the same -2, -3 sequence used at finalization. A merged record is
// distinct from any colliding record by its lineage, so every collision
// advances the sequence.
func (g *Gate) insertMerged(ctx context.Context, merged *model.FinalizedRecord) error {
	base := merged.ID
	for seq := 1; seq <= maxMergeCollisionSeq; seq++ {
		merged.ID = pipeline.DisambiguatedID(base, seq)

		err := g.Store.InsertRecord(ctx, merged)
		if err == nil {
			return nil
		}
		var conflict *store.ConflictError
		if !errors.As(err, &conflict) {
			return err
		}

		g.Audit.System(ctx, model.AuditIdentityClash, []string{merged.ID}, map[string]any{
			"base_id":  base,
			"next_seq": seq + 1,
		})
		zap.L().Warn("merged record id collision, assigning sequence",
			zap.String("base_id", base),
			zap.Int("next_seq", seq+1),
		)
	}
	return eris.Errorf("merge: collision sequence exhausted for %s", base)
}

// combine builds the merged record: distinct narrative fields joined with
// " | ", metric and tag lists unioned case-insensitively, the highest
// source confidence, internal_only if any source is internal, and the
// union of all source evidence ids.
func combine(sources []*model.FinalizedRecord, ids []string, reason, approvedBy string, now time.Time) *model.FinalizedRecord {
	first := sources[0]

	merged := &model.FinalizedRecord{
		Country:      first.Country,
		Month:        first.Month,
		Customer:     joinDistinct(collect(sources, func(r *model.FinalizedRecord) string { return r.Customer })),
		Context:      joinDistinct(collect(sources, func(r *model.FinalizedRecord) string { return r.Context })),
		Action:       joinDistinct(collect(sources, func(r *model.FinalizedRecord) string { return r.Action })),
		Outcome:      joinDistinct(collect(sources, func(r *model.FinalizedRecord) string { return r.Outcome })),
		Industry:     firstNonEmpty(collect(sources, func(r *model.FinalizedRecord) string { return r.Industry })),
		TeamSize:     firstNonEmpty(collect(sources, func(r *model.FinalizedRecord) string { return r.TeamSize })),
		Status:       model.RecordStatusPending,
		MergedFrom:   append([]string(nil), ids...),
		MergeReason:  reason,
		ApprovedBy:   approvedBy,
		FinalizedAt:  now,
		Confidence:   first.Confidence,
		InternalOnly: false,
	}

	for _, r := range sources {
		merged.Metrics = unionFold(merged.Metrics, r.Metrics)
		merged.Tags = unionFold(merged.Tags, r.Tags)
		merged.SourceEvidenceIDs = unionFold(merged.SourceEvidenceIDs, r.SourceEvidenceIDs)
		if r.Confidence.Rank() > merged.Confidence.Rank() {
			merged.Confidence = r.Confidence
		}
		if r.InternalOnly {
			merged.InternalOnly = true
		}
	}

	merged.ID = pipeline.ContentID(merged.Customer, merged.Context, merged.Action, merged.Outcome, merged.Country, merged.Month)
	return merged
}

func collect(sources []*model.FinalizedRecord, f func(*model.FinalizedRecord) string) []string {
	out := make([]string, 0, len(sources))
	for _, r := range sources {
		out = append(out, f(r))
	}
	return out
}

// joinDistinct joins distinct non-empty values with " | ", preserving
// first-occurrence order. Comparison is case-insensitive.
func joinDistinct(values []string) string {
	var parts []string
	seen := make(map[string]bool)
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		parts = append(parts, v)
	}
	return strings.Join(parts, " | ")
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// unionFold appends items not already present, comparing case-insensitively.
func unionFold(base, add []string) []string {
	seen := make(map[string]bool, len(base))
	for _, v := range base {
		seen[strings.ToLower(v)] = true
	}
	for _, v := range add {
		key := strings.ToLower(v)
		if v == "" || seen[key] {
			continue
		}
		seen[key] = true
		base = append(base, v)
	}
	return base
}
