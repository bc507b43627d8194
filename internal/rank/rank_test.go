package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/wins-cli/internal/model"
	"github.com/sells-group/wins-cli/internal/rules"
)

var testWeights = rules.RankingWeights{
	ConfidenceWeight:   0.3,
	MetricsWeight:      0.25,
	ImpactWeight:       0.2,
	RecencyWeight:      0.15,
	CompletenessWeight: 0.1,
}

var testNow = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

func rankRecord(id string) model.FinalizedRecord {
	return model.FinalizedRecord{
		ID:         id,
		Month:      "2026-08",
		Customer:   "Acme",
		Context:    "slow close",
		Action:     "automated it",
		Outcome:    "close is 80% faster and costs reduced",
		Metrics:    []string{"80% faster", "12 hours saved", "costs halved"},
		Confidence: model.ConfidenceHigh,
		Industry:   "manufacturing",
		TeamSize:   "50",
		Tags:       []string{"automation"},
	}
}

func TestScoreComponents(t *testing.T) {
	rec := rankRecord("win-1")
	sc := Score(&rec, testWeights, testNow)

	assert.Equal(t, "win-1", sc.RecordID)
	assert.Equal(t, Method, sc.RankingMethod)
	assert.Equal(t, 1.0, sc.Components[ComponentConfidence])
	assert.Equal(t, 0.8, sc.Components[ComponentMetrics]) // 3 metrics
	assert.Greater(t, sc.Components[ComponentImpact], 0.0)
	assert.InDelta(t, 1.0-1.0/12.0, sc.Components[ComponentRecency], 0.001) // one month old
	assert.Equal(t, 1.0, sc.Components[ComponentCompleteness])
	assert.Greater(t, sc.Score, 0.0)
	assert.LessOrEqual(t, sc.Score, 1.0)
}

func TestScoreEmptyRecord(t *testing.T) {
	rec := model.FinalizedRecord{ID: "win-empty", Confidence: model.ConfidenceLow, Month: "bogus"}
	sc := Score(&rec, testWeights, testNow)

	assert.Equal(t, 0.2, sc.Components[ComponentConfidence])
	assert.Equal(t, 0.0, sc.Components[ComponentMetrics])
	assert.Equal(t, 0.0, sc.Components[ComponentImpact])
	assert.Equal(t, 0.0, sc.Components[ComponentRecency]) // unparsable month
}

func TestMetricsScoreBands(t *testing.T) {
	assert.Equal(t, 0.0, metricsScore(0))
	assert.Equal(t, 0.5, metricsScore(1))
	assert.Equal(t, 0.5, metricsScore(2))
	assert.Equal(t, 0.8, metricsScore(3))
	assert.Equal(t, 0.8, metricsScore(5))
	assert.Equal(t, 1.0, metricsScore(6))
	assert.Equal(t, 1.0, metricsScore(20))
}

func TestRecencyDecay(t *testing.T) {
	assert.Equal(t, 1.0, recencyScore("2026-09", testNow))
	assert.Equal(t, 1.0, recencyScore("2026-12", testNow)) // future clamps
	assert.Equal(t, 0.0, recencyScore("2025-09", testNow))
	assert.Equal(t, 0.0, recencyScore("2020-01", testNow))
	assert.Greater(t, recencyScore("2026-06", testNow), recencyScore("2026-01", testNow))
}

func TestRankOrderingAndTieBreak(t *testing.T) {
	strong := rankRecord("win-strong")
	weak := rankRecord("win-weak")
	weak.Confidence = model.ConfidenceLow
	weak.Metrics = nil

	// Identical content ties; id breaks the tie.
	tieA := rankRecord("win-tie-a")
	tieB := rankRecord("win-tie-b")

	scores := Rank([]model.FinalizedRecord{weak, tieB, strong, tieA}, testWeights, testNow)
	require.Len(t, scores, 4)

	ids := []string{scores[0].RecordID, scores[1].RecordID, scores[2].RecordID}
	assert.ElementsMatch(t, []string{"win-strong", "win-tie-a", "win-tie-b"}, ids)
	assert.Equal(t, "win-weak", scores[3].RecordID)

	assert.Less(t, indexOf(scores, "win-tie-a"), indexOf(scores, "win-tie-b"))

	for i, sc := range scores {
		assert.Equal(t, i+1, sc.Rank)
	}
}

func TestRankDeterministic(t *testing.T) {
	recs := []model.FinalizedRecord{rankRecord("win-a"), rankRecord("win-b")}
	a := Rank(recs, testWeights, testNow)
	b := Rank(recs, testWeights, testNow)
	assert.Equal(t, a, b)
}

func indexOf(scores []model.RankScore, id string) int {
	for i, sc := range scores {
		if sc.RecordID == id {
			return i
		}
	}
	return -1
}
