package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/wins-cli/internal/audit"
	"github.com/sells-group/wins-cli/internal/model"
	"github.com/sells-group/wins-cli/internal/rules"
	"github.com/sells-group/wins-cli/internal/store"
)

// maxDisambiguationSeq bounds the collision sequence; more than this many
// distinct stories hashing identically indicates corrupt input.
const maxDisambiguationSeq = 100

// BatchProcessor drives one run over a closed set of evidence: extract,
// normalize, finalize, persist, then flag duplicates across the batch.
// Item failures are isolated; one bad evidence record never aborts the
// batch.
type BatchProcessor struct {
	Store       store.Store
	Guard       *Guard
	Rules       *rules.RuleSet
	Audit       *audit.Logger
	Concurrency int
	Clock       func() time.Time
}

// BatchReport summarizes one run.
type BatchReport struct {
	Processed     int                       `json:"processed"`
	FinalizedIDs  []string                  `json:"finalized_ids"`
	SkippedRepeat []string                  `json:"skipped_repeat,omitempty"`
	Failures      []model.ExtractionFailure `json:"failures,omitempty"`
	FlagCount     int                       `json:"flag_count"`
}

// Run processes the evidence batch for one country and month. Evidence is
// extracted concurrently; persistence and duplicate flagging run after all
// items settle so the outcome is independent of completion order.
func (b *BatchProcessor) Run(ctx context.Context, country, month string, evidence []model.Evidence) (*BatchReport, error) {
	now := b.Clock().UTC()

	concurrency := b.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var (
		mu       sync.Mutex
		drafts   []model.DraftCandidate
		failures []model.ExtractionFailure
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, ev := range evidence {
		g.Go(func() error {
			ds, failure := b.Guard.Extract(gctx, ev)
			mu.Lock()
			defer mu.Unlock()
			if failure != nil {
				failures = append(failures, *failure)
				return nil
			}
			drafts = append(drafts, ds...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch: extraction")
	}

	for i := range failures {
		if err := b.Store.InsertExtractionFailure(ctx, &failures[i]); err != nil {
			return nil, err
		}
		b.Audit.System(ctx, model.AuditExtractionFail,
			[]string{failures[i].EvidenceID},
			map[string]any{
				"error_type": string(failures[i].ErrorType),
				"retries":    failures[i].RetryCount,
			})
	}

	// Finalize in draft-content order so ids and collision sequences are
	// stable run to run.
	recs := make([]model.FinalizedRecord, 0, len(drafts))
	for _, d := range drafts {
		recs = append(recs, Finalize(NormalizeDraft(d), country, month, now))
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].ID != recs[j].ID {
			return recs[i].ID < recs[j].ID
		}
		return recs[i].SourceEvidenceIDs[0] < recs[j].SourceEvidenceIDs[0]
	})

	report := &BatchReport{Processed: len(evidence), Failures: failures}
	var inserted []model.FinalizedRecord
	for i := range recs {
		rec, repeated, err := b.insertDisambiguated(ctx, recs[i])
		if err != nil {
			return nil, err
		}
		if repeated {
			report.SkippedRepeat = append(report.SkippedRepeat, rec.ID)
			continue
		}
		inserted = append(inserted, *rec)
		report.FinalizedIDs = append(report.FinalizedIDs, rec.ID)
		b.Audit.System(ctx, model.AuditFinalize, []string{rec.ID}, map[string]any{
			"evidence_ids": rec.SourceEvidenceIDs,
		})
	}

	flags, err := FlagDuplicates(inserted, b.Rules.Dedup, now)
	if err != nil {
		return nil, err
	}
	if len(flags) > 0 {
		if err := b.Store.InsertDuplicateFlags(ctx, flags); err != nil {
			return nil, err
		}
		for _, f := range flags {
			b.Audit.System(ctx, model.AuditDuplicateFlag,
				[]string{f.CandidateA, f.CandidateB},
				map[string]any{"similarity": f.SimilarityScore, "method": f.MethodVersion})
		}
	}
	report.FlagCount = len(flags)

	zap.L().Info("batch complete",
		zap.String("country", country),
		zap.String("month", month),
		zap.Int("evidence", len(evidence)),
		zap.Int("finalized", len(report.FinalizedIDs)),
		zap.Int("failures", len(failures)),
		zap.Int("duplicate_flags", report.FlagCount),
	)
	return report, nil
}

// insertDisambiguated writes one record, resolving id collisions. An
// existing record with identical content makes the write an idempotent
// repeat; different content under the same hash gets the next collision
// sequence.
func (b *BatchProcessor) insertDisambiguated(ctx context.Context, rec model.FinalizedRecord) (*model.FinalizedRecord, bool, error) {
	base := rec.ID
	for seq := 1; seq <= maxDisambiguationSeq; seq++ {
		rec.ID = DisambiguatedID(base, seq)

		err := b.Store.InsertRecord(ctx, &rec)
		if err == nil {
			return &rec, false, nil
		}

		var conflict *store.ConflictError
		if !errors.As(err, &conflict) {
			return nil, false, err
		}

		existing, err := b.Store.GetRecord(ctx, rec.ID)
		if err != nil {
			return nil, false, err
		}
		if existing != nil && SameContent(existing, &rec) {
			return existing, true, nil
		}

		b.Audit.System(ctx, model.AuditIdentityClash, []string{rec.ID}, map[string]any{
			"base_id":  base,
			"next_seq": seq + 1,
		})
		zap.L().Warn("content hash collision, assigning sequence",
			zap.String("base_id", base),
			zap.Int("next_seq", seq+1),
		)
	}
	return nil, false, eris.Errorf("batch: collision sequence exhausted for %s", base)
}
