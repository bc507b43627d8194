package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/wins-cli/internal/audit"
	"github.com/sells-group/wins-cli/internal/model"
	"github.com/sells-group/wins-cli/internal/rank"
	"github.com/sells-group/wins-cli/internal/rules"
	"github.com/sells-group/wins-cli/internal/store"
)

// Stages runs the post-finalization lifecycle steps: evaluation and
// ranking. Both produce derived, recomputable artifacts; re-running a
// stage replaces its previous output wholesale and never edits records.
type Stages struct {
	Store store.Store
	Rules *rules.RuleSet
	Audit *audit.Logger
	// AsOf is the reference time for recency scoring. Zero means derive it
	// from the record set, so identical records and config reproduce
	// identical scores regardless of when the stage runs.
	AsOf time.Time
}

// EvalReport summarizes one evaluation run.
type EvalReport struct {
	Evaluated int `json:"evaluated"`
	Accepted  int `json:"accepted"`
	Rejected  int `json:"rejected"`
}

// Evaluate applies the business rules to every active record. Results are
// recomputed for the whole set so stored evaluations always reflect the
// current rule config; records still pending advance to evaluated.
func (s *Stages) Evaluate(ctx context.Context) (*EvalReport, error) {
	recs, err := s.Store.ListRecords(ctx, store.RecordFilter{})
	if err != nil {
		return nil, err
	}

	report := &EvalReport{Evaluated: len(recs)}
	var all []model.EvaluationResult
	for i := range recs {
		results := s.Rules.Evaluate(&recs[i])
		all = append(all, results...)

		accepted := rules.Accepted(results)
		if accepted {
			report.Accepted++
		} else {
			report.Rejected++
		}

		s.Audit.System(ctx, model.AuditEvaluate, []string{recs[i].ID}, map[string]any{
			"accepted":     accepted,
			"rule_version": s.Rules.Version,
		})
	}

	if err := s.Store.ReplaceEvaluationResults(ctx, all); err != nil {
		return nil, err
	}
	for i := range recs {
		if recs[i].Status != model.RecordStatusPending {
			continue
		}
		if err := s.Store.UpdateRecordStatus(ctx, recs[i].ID, model.RecordStatusEvaluated); err != nil {
			return nil, err
		}
	}

	zap.L().Info("evaluation complete",
		zap.Int("records", report.Evaluated),
		zap.Int("accepted", report.Accepted),
		zap.Int("rejected", report.Rejected),
		zap.Int("rule_version", s.Rules.Version),
	)
	return report, nil
}

// RankAll scores every evaluated or ranked record and replaces the stored
// ranking. Every active record past evaluation appears in the output;
// evaluated records advance to ranked.
func (s *Stages) RankAll(ctx context.Context) ([]model.RankScore, error) {
	evaluated, err := s.Store.ListRecords(ctx, store.RecordFilter{Status: model.RecordStatusEvaluated})
	if err != nil {
		return nil, err
	}
	ranked, err := s.Store.ListRecords(ctx, store.RecordFilter{Status: model.RecordStatusRanked})
	if err != nil {
		return nil, err
	}
	recs := append(evaluated, ranked...)

	scores := rank.Rank(recs, s.Rules.Ranking, rankAsOf(s.AsOf, recs))
	if err := s.Store.ReplaceRankScores(ctx, scores); err != nil {
		return nil, err
	}

	for i := range evaluated {
		if err := s.Store.UpdateRecordStatus(ctx, evaluated[i].ID, model.RecordStatusRanked); err != nil {
			return nil, err
		}
	}

	ids := make([]string, len(scores))
	for i, sc := range scores {
		ids[i] = sc.RecordID
	}
	s.Audit.System(ctx, model.AuditRank, ids, map[string]any{
		"method":  rank.Method,
		"records": len(scores),
	})
	return scores, nil
}

// rankAsOf resolves the recency reference time: the explicit override when
// set, otherwise the latest parsable record month. Never the wall clock.
func rankAsOf(asOf time.Time, recs []model.FinalizedRecord) time.Time {
	if !asOf.IsZero() {
		return asOf.UTC()
	}
	var latest time.Time
	for i := range recs {
		t, err := time.Parse("2006-01", recs[i].Month)
		if err != nil {
			continue
		}
		if t.After(latest) {
			latest = t
		}
	}
	return latest
}
