package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/wins-cli/internal/audit"
	"github.com/sells-group/wins-cli/internal/model"
	"github.com/sells-group/wins-cli/internal/rules"
	"github.com/sells-group/wins-cli/internal/store"
)

func newStages(t *testing.T, st store.Store) *Stages {
	t.Helper()
	rs, err := rules.Parse([]byte(testRulesYAML))
	require.NoError(t, err)
	return &Stages{
		Store: st,
		Rules: rs,
		Audit: audit.NewLogger(st),
	}
}

func seedRecord(t *testing.T, st store.Store, id string, conf model.Confidence, metrics []string) {
	t.Helper()
	rec := &model.FinalizedRecord{
		ID:          id,
		Country:     "de",
		Month:       "2026-08",
		Customer:    "Acme",
		Context:     "ctx",
		Action:      "act",
		Outcome:     "out",
		Metrics:     metrics,
		Confidence:  conf,
		Status:      model.RecordStatusPending,
		FinalizedAt: time.Now().UTC(),
	}
	require.NoError(t, st.InsertRecord(context.Background(), rec))
}

func TestStagesEvaluateAdvancesStatus(t *testing.T) {
	st := newPipelineStore(t)
	seedRecord(t, st, "win-a", model.ConfidenceHigh, []string{"90%"})
	seedRecord(t, st, "win-b", model.ConfidenceLow, nil)

	stages := newStages(t, st)
	report, err := stages.Evaluate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Evaluated)
	assert.Equal(t, 2, report.Accepted) // permissive test rules accept both

	recs, err := st.ListRecords(context.Background(), store.RecordFilter{Status: model.RecordStatusEvaluated})
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	results, err := st.ListEvaluationResults(context.Background(), "win-a")
	require.NoError(t, err)
	assert.Len(t, results, len(rules.RuleOrder))
}

func TestStagesEvaluateRejectsBelowThreshold(t *testing.T) {
	st := newPipelineStore(t)
	seedRecord(t, st, "win-a", model.ConfidenceLow, nil)

	stages := newStages(t, st)
	stages.Rules.SuccessEvaluation.MinConfidence = model.ConfidenceHigh

	report, err := stages.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Rejected)

	// Rejected records still advance; acceptance is recorded, not a gate on
	// lifecycle.
	recs, err := st.ListRecords(context.Background(), store.RecordFilter{Status: model.RecordStatusEvaluated})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestStagesRankAllOrdersAndAdvances(t *testing.T) {
	st := newPipelineStore(t)
	seedRecord(t, st, "win-strong", model.ConfidenceHigh, []string{"80% faster", "costs halved", "revenue up"})
	seedRecord(t, st, "win-weak", model.ConfidenceLow, nil)

	stages := newStages(t, st)
	_, err := stages.Evaluate(context.Background())
	require.NoError(t, err)

	scores, err := stages.RankAll(context.Background())
	require.NoError(t, err)
	require.Len(t, scores, 2)

	assert.Equal(t, "win-strong", scores[0].RecordID)
	assert.Equal(t, 1, scores[0].Rank)
	assert.Equal(t, "win-weak", scores[1].RecordID)
	assert.Equal(t, 2, scores[1].Rank)
	assert.Greater(t, scores[0].Score, scores[1].Score)

	ranked, err := st.ListRecords(context.Background(), store.RecordFilter{Status: model.RecordStatusRanked})
	require.NoError(t, err)
	assert.Len(t, ranked, 2)

	// Re-ranking replaces the stored scores and keeps every record.
	again, err := stages.RankAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, scores, again)
}

func TestStagesRankAllReferenceTime(t *testing.T) {
	st := newPipelineStore(t)
	seedRecord(t, st, "win-a", model.ConfidenceHigh, []string{"90%"})

	stages := newStages(t, st)
	_, err := stages.Evaluate(context.Background())
	require.NoError(t, err)

	// Without an override the reference time comes from the record set,
	// never the wall clock: the seeded month scores as current.
	scores, err := stages.RankAll(context.Background())
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), scores[0].ComputedAt)
	assert.Equal(t, 1.0, scores[0].Components["recency"])

	// An explicit reference time shifts recency deterministically.
	stages.AsOf = time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	shifted, err := stages.RankAll(context.Background())
	require.NoError(t, err)
	require.Len(t, shifted, 1)
	assert.Equal(t, stages.AsOf, shifted[0].ComputedAt)
	assert.InDelta(t, 1.0-2.0/12.0, shifted[0].Components["recency"], 0.001)
}
