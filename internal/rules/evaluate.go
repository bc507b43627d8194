package rules

import (
	"fmt"
	"strings"

	"github.com/sells-group/wins-cli/internal/model"
)

// Rule names, in application order. Each is a pure predicate over record
// fields; no rule consults mutable external state.
const (
	RuleMinConfidence  = "min_confidence"
	RuleMetricsPresent = "metrics_present"
	RuleActionPresent  = "action_present"
	RuleOutcomePresent = "outcome_present"
	RuleTextSubstance  = "text_substance"
)

// RuleOrder is the documented application order of evaluation rules.
var RuleOrder = []string{
	RuleMinConfidence,
	RuleMetricsPresent,
	RuleActionPresent,
	RuleOutcomePresent,
	RuleTextSubstance,
}

// Evaluate applies every configured rule to the record and returns one
// EvaluationResult per rule, in RuleOrder. The record is not modified.
func (rs *RuleSet) Evaluate(rec *model.FinalizedRecord) []model.EvaluationResult {
	se := rs.SuccessEvaluation
	results := make([]model.EvaluationResult, 0, len(RuleOrder))

	// min_confidence: the record's band must meet the configured floor.
	{
		passed := rec.Confidence.Rank() >= se.MinConfidence.Rank()
		score := 0.0
		if passed {
			score = 1.0
		}
		results = append(results, model.EvaluationResult{
			RecordID: rec.ID,
			RuleName: RuleMinConfidence,
			Passed:   passed,
			Score:    score,
			Evidence: []string{fmt.Sprintf("confidence=%s min=%s", rec.Confidence, se.MinConfidence)},
		})
	}

	// metrics_present: at least min_metrics_count quantifiable metrics.
	{
		n := len(rec.Metrics)
		passed := n >= se.MinMetricsCount
		score := 0.0
		if passed {
			// Scale by count, full score at 3 metrics.
			score = min(float64(n)/3.0, 1.0)
		}
		results = append(results, model.EvaluationResult{
			RecordID: rec.ID,
			RuleName: RuleMetricsPresent,
			Passed:   passed,
			Score:    score,
			Evidence: []string{fmt.Sprintf("metrics=%d min=%d", n, se.MinMetricsCount)},
		})
	}

	// action_present / outcome_present: required narrative fields.
	results = append(results,
		presenceResult(rec.ID, RuleActionPresent, rec.Action, se.RequireAction),
		presenceResult(rec.ID, RuleOutcomePresent, rec.Outcome, se.RequireOutcome),
	)

	// text_substance: key fields meet the minimum length.
	{
		short := shortFields(rec, se.MinTextLength)
		passed := len(short) == 0
		score := 1.0
		if !passed {
			score = 0.5
		}
		ev := []string{fmt.Sprintf("min_text_length=%d", se.MinTextLength)}
		if len(short) > 0 {
			ev = append(ev, "short_fields="+strings.Join(short, ","))
		}
		results = append(results, model.EvaluationResult{
			RecordID: rec.ID,
			RuleName: RuleTextSubstance,
			Passed:   passed,
			Score:    score,
			Evidence: ev,
		})
	}

	return results
}

// Accepted reports whether every rule in results passed.
func Accepted(results []model.EvaluationResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

func presenceResult(recordID, rule, value string, required bool) model.EvaluationResult {
	present := strings.TrimSpace(value) != ""
	passed := present || !required
	score := 0.0
	if present {
		score = 1.0
	}
	return model.EvaluationResult{
		RecordID: recordID,
		RuleName: rule,
		Passed:   passed,
		Score:    score,
		Evidence: []string{fmt.Sprintf("present=%t required=%t", present, required)},
	}
}

func shortFields(rec *model.FinalizedRecord, minLen int) []string {
	var short []string
	for _, f := range []struct {
		name, value string
	}{
		{"context", rec.Context},
		{"action", rec.Action},
		{"outcome", rec.Outcome},
	} {
		trimmed := strings.TrimSpace(f.value)
		if trimmed != "" && len(trimmed) < minLen {
			short = append(short, f.name)
		}
	}
	return short
}
