package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRules = `
version: 3
success_evaluation:
  min_confidence: medium
  min_metrics_count: 1
  require_action: true
  require_outcome: true
  min_text_length: 20
ranking:
  confidence_weight: 0.3
  metrics_weight: 0.25
  impact_weight: 0.2
  recency_weight: 0.15
  completeness_weight: 0.1
dedup:
  method: token_jaccard/v1
  threshold: 0.83
merge_policy:
  auto_merge: false
deletion_policy:
  require_approval: true
`

func TestParseValid(t *testing.T) {
	rs, err := Parse([]byte(validRules))
	require.NoError(t, err)

	assert.Equal(t, 3, rs.Version)
	assert.Equal(t, "medium", string(rs.SuccessEvaluation.MinConfidence))
	assert.Equal(t, 1, rs.SuccessEvaluation.MinMetricsCount)
	assert.True(t, rs.SuccessEvaluation.RequireAction)
	assert.InDelta(t, 1.0, rs.Ranking.Sum(), 0.001)
	assert.Equal(t, 0.83, rs.Dedup.Threshold)
	assert.False(t, rs.MergePolicy.AutoMerge)
	assert.True(t, rs.DeletionPolicy.RequireApproval)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(validRules + "\nbogus_section:\n  x: 1\n"))
	require.Error(t, err)
}

func TestParseMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("version: [unclosed"))
	require.Error(t, err)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RuleSet)
		want   string
	}{
		{"zero version", func(rs *RuleSet) { rs.Version = 0 }, "version"},
		{"bad confidence", func(rs *RuleSet) { rs.SuccessEvaluation.MinConfidence = "huge" }, "min_confidence"},
		{"negative metrics count", func(rs *RuleSet) { rs.SuccessEvaluation.MinMetricsCount = -1 }, "min_metrics_count"},
		{"weights off", func(rs *RuleSet) { rs.Ranking.ConfidenceWeight = 0.9 }, "sum to 1.0"},
		{"negative weight", func(rs *RuleSet) {
			rs.Ranking.ConfidenceWeight = -0.3
			rs.Ranking.MetricsWeight = 0.85
		}, "must be >= 0"},
		{"missing dedup method", func(rs *RuleSet) { rs.Dedup.Method = "" }, "dedup.method"},
		{"threshold out of range", func(rs *RuleSet) { rs.Dedup.Threshold = 1.5 }, "threshold"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := Parse([]byte(validRules))
			require.NoError(t, err)
			tt.mutate(rs)
			err = rs.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("does/not/exist.yaml")
	require.Error(t, err)
}
