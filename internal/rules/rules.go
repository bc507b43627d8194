// Package rules loads and applies the versioned business-rule
// configuration. A malformed or missing rule file is fatal at load time;
// the loaded RuleSet is passed explicitly through call boundaries so a
// run's behavior is reconstructable from its recorded config version.
package rules

import (
	"bytes"
	"math"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/wins-cli/internal/model"
)

// RuleSet is the full business-rule configuration for one run.
type RuleSet struct {
	Version           int               `yaml:"version"`
	SuccessEvaluation SuccessEvaluation `yaml:"success_evaluation"`
	Ranking           RankingWeights    `yaml:"ranking"`
	Dedup             DedupPolicy       `yaml:"dedup"`
	MergePolicy       MergePolicy       `yaml:"merge_policy"`
	DeletionPolicy    DeletionPolicy    `yaml:"deletion_policy"`
}

// SuccessEvaluation holds the named acceptance thresholds.
type SuccessEvaluation struct {
	MinConfidence   model.Confidence `yaml:"min_confidence"`
	MinMetricsCount int              `yaml:"min_metrics_count"`
	RequireAction   bool             `yaml:"require_action"`
	RequireOutcome  bool             `yaml:"require_outcome"`
	MinTextLength   int              `yaml:"min_text_length"`
}

// RankingWeights holds the scoring weights. Weights must sum to 1.
type RankingWeights struct {
	ConfidenceWeight   float64 `yaml:"confidence_weight"`
	MetricsWeight      float64 `yaml:"metrics_weight"`
	ImpactWeight       float64 `yaml:"impact_weight"`
	RecencyWeight      float64 `yaml:"recency_weight"`
	CompletenessWeight float64 `yaml:"completeness_weight"`
}

// Sum returns the total of all ranking weights.
func (w RankingWeights) Sum() float64 {
	return w.ConfidenceWeight + w.MetricsWeight + w.ImpactWeight +
		w.RecencyWeight + w.CompletenessWeight
}

// DedupPolicy names the similarity method and threshold for the flagger.
type DedupPolicy struct {
	Method    string  `yaml:"method"`
	Threshold float64 `yaml:"threshold"`
}

// MergePolicy governs the merge gate. AutoMerge must be explicitly and
// visibly enabled here for unattended merges to be accepted.
type MergePolicy struct {
	AutoMerge bool `yaml:"auto_merge"`
}

// DeletionPolicy governs the deletion store.
type DeletionPolicy struct {
	RequireApproval bool `yaml:"require_approval"`
}

// Load reads and validates the rule file at path. Any structural or value
// error is returned immediately; callers must treat it as fatal for the
// whole run, before any item is processed.
func Load(path string) (*RuleSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "rules: read %s", path)
	}
	return Parse(raw)
}

// Parse decodes and validates a rule file. Unknown fields are rejected so
// a typo in a rule name cannot silently disable it.
func Parse(raw []byte) (*RuleSet, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var rs RuleSet
	if err := dec.Decode(&rs); err != nil {
		return nil, eris.Wrap(err, "rules: decode")
	}

	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// Validate checks the rule set for internal consistency.
func (rs *RuleSet) Validate() error {
	var errs []string

	if rs.Version <= 0 {
		errs = append(errs, "version must be >= 1")
	}

	se := rs.SuccessEvaluation
	if !se.MinConfidence.Valid() {
		errs = append(errs, "success_evaluation.min_confidence must be one of high, medium, low")
	}
	if se.MinMetricsCount < 0 {
		errs = append(errs, "success_evaluation.min_metrics_count must be >= 0")
	}
	if se.MinTextLength < 0 {
		errs = append(errs, "success_evaluation.min_text_length must be >= 0")
	}

	w := rs.Ranking
	for name, v := range map[string]float64{
		"confidence_weight":   w.ConfidenceWeight,
		"metrics_weight":      w.MetricsWeight,
		"impact_weight":       w.ImpactWeight,
		"recency_weight":      w.RecencyWeight,
		"completeness_weight": w.CompletenessWeight,
	} {
		if v < 0 {
			errs = append(errs, "ranking."+name+" must be >= 0")
		}
	}
	if math.Abs(w.Sum()-1.0) > 0.01 {
		errs = append(errs, "ranking weights must sum to 1.0")
	}

	if rs.Dedup.Method == "" {
		errs = append(errs, "dedup.method is required")
	}
	if rs.Dedup.Threshold <= 0 || rs.Dedup.Threshold > 1 {
		errs = append(errs, "dedup.threshold must be in (0, 1]")
	}

	if len(errs) > 0 {
		return eris.Errorf("rules: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
