// Package rank computes derived, recomputable scores for finalized
// records. Scoring is a pure function of record content, the configured
// weights, and the supplied reference time; identical inputs always
// reproduce identical scores and ordering.
package rank

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/wins-cli/internal/model"
	"github.com/sells-group/wins-cli/internal/rules"
)

// Method versions the scoring formula. Recorded on every score so stored
// rankings stay attributable when the formula changes.
const Method = "weighted/v1"

// Component names as recorded in RankScore.Components.
const (
	ComponentConfidence   = "confidence"
	ComponentMetrics      = "metrics"
	ComponentImpact       = "impact"
	ComponentRecency      = "recency"
	ComponentCompleteness = "completeness"
)

// impactTerms are scanned case-insensitively across outcome and metrics.
var impactTerms = []string{
	"%", "percent", "x faster", "reduced", "increased", "saved",
	"revenue", "cost", "growth", "doubled", "tripled",
}

// Rank scores every record and assigns dense ranks from 1. Ties on score
// break by record id so the ordering is total and reproducible. Every
// input record appears in the output exactly once.
func Rank(recs []model.FinalizedRecord, w rules.RankingWeights, now time.Time) []model.RankScore {
	scores := make([]model.RankScore, 0, len(recs))
	for i := range recs {
		scores = append(scores, Score(&recs[i], w, now))
	}

	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].RecordID < scores[j].RecordID
	})
	for i := range scores {
		scores[i].Rank = i + 1
	}

	zap.L().Info("ranking computed",
		zap.Int("records", len(scores)),
		zap.String("method", Method),
	)
	return scores
}

// Score computes the weighted score for one record.
func Score(rec *model.FinalizedRecord, w rules.RankingWeights, now time.Time) model.RankScore {
	components := map[string]float64{
		ComponentConfidence:   confidenceScore(rec.Confidence),
		ComponentMetrics:      metricsScore(len(rec.Metrics)),
		ComponentImpact:       impactScore(rec),
		ComponentRecency:      recencyScore(rec.Month, now),
		ComponentCompleteness: completenessScore(rec),
	}

	total := w.ConfidenceWeight*components[ComponentConfidence] +
		w.MetricsWeight*components[ComponentMetrics] +
		w.ImpactWeight*components[ComponentImpact] +
		w.RecencyWeight*components[ComponentRecency] +
		w.CompletenessWeight*components[ComponentCompleteness]

	return model.RankScore{
		RecordID:      rec.ID,
		Score:         total,
		RankingMethod: Method,
		Components:    components,
		ComputedAt:    now.UTC(),
	}
}

func confidenceScore(c model.Confidence) float64 {
	switch c {
	case model.ConfidenceHigh:
		return 1.0
	case model.ConfidenceMedium:
		return 0.6
	case model.ConfidenceLow:
		return 0.2
	}
	return 0
}

func metricsScore(n int) float64 {
	switch {
	case n == 0:
		return 0
	case n <= 2:
		return 0.5
	case n <= 5:
		return 0.8
	}
	return 1.0
}

// impactScore scans outcome and metrics for quantified-impact language.
func impactScore(rec *model.FinalizedRecord) float64 {
	text := strings.ToLower(rec.Outcome + " " + strings.Join(rec.Metrics, " "))
	hits := 0
	for _, term := range impactTerms {
		if strings.Contains(text, term) {
			hits++
		}
	}
	switch {
	case hits == 0:
		return 0
	case hits == 1:
		return 0.5
	case hits == 2:
		return 0.8
	}
	return 1.0
}

// recencyScore decays linearly over a year from the record's month.
// An unparsable month scores zero rather than failing the run.
func recencyScore(month string, now time.Time) float64 {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return 0
	}
	ageMonths := (now.Year()-t.Year())*12 + int(now.Month()) - int(t.Month())
	if ageMonths < 0 {
		ageMonths = 0
	}
	if ageMonths >= 12 {
		return 0
	}
	return 1.0 - float64(ageMonths)/12.0
}

// completenessScore is the filled fraction of the narrative and optional
// fields.
func completenessScore(rec *model.FinalizedRecord) float64 {
	fields := []string{
		rec.Customer, rec.Context, rec.Action, rec.Outcome,
		rec.Industry, rec.TeamSize,
	}
	filled := 0
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			filled++
		}
	}
	if len(rec.Metrics) > 0 {
		filled++
	}
	if len(rec.Tags) > 0 {
		filled++
	}
	return float64(filled) / float64(len(fields)+2)
}
