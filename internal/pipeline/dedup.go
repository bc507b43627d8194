package pipeline

import (
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wins-cli/internal/model"
	"github.com/sells-group/wins-cli/internal/rules"
)

// MethodTokenJaccard is the only similarity method currently implemented:
// case-folded token Jaccard over {customer, action, outcome}. The version
// suffix is recorded on every flag so historical flags stay attributable
// if the method evolves.
const MethodTokenJaccard = "token_jaccard/v1"

// FlagDuplicates computes pairwise similarity across the batch and emits an
// advisory DuplicateFlag for every pair at or above the configured
// threshold. The input is never merged, reordered, or otherwise modified,
// and identical inputs with identical config always produce identical
// flags.
func FlagDuplicates(recs []model.FinalizedRecord, policy rules.DedupPolicy, now time.Time) ([]model.DuplicateFlag, error) {
	if policy.Method != MethodTokenJaccard {
		return nil, eris.Errorf("dedup: unknown similarity method %q", policy.Method)
	}

	// Work over an id-sorted view so pair ordering (and therefore output
	// ordering) is independent of input order.
	ordered := make([]model.FinalizedRecord, len(recs))
	copy(ordered, recs)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	tokens := make([]map[string]bool, len(ordered))
	for i, r := range ordered {
		tokens[i] = tokenSet(r.Customer + " " + r.Action + " " + r.Outcome)
	}

	var flags []model.DuplicateFlag
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			score := jaccard(tokens[i], tokens[j])
			if score < policy.Threshold {
				continue
			}
			flags = append(flags, model.DuplicateFlag{
				CandidateA:      ordered[i].ID,
				CandidateB:      ordered[j].ID,
				SimilarityScore: score,
				MethodVersion:   MethodTokenJaccard,
				FlaggedAt:       now,
			})
			zap.L().Info("flagged possible duplicate",
				zap.String("record_a", ordered[i].ID),
				zap.String("record_b", ordered[j].ID),
				zap.Float64("similarity", score),
				zap.String("method", MethodTokenJaccard),
			)
		}
	}
	return flags, nil
}

// tokenSet splits text into case-folded alphanumeric tokens.
func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	var current []rune
	flush := func() {
		if len(current) > 0 {
			set[canonicalKey(string(current))] = true
			current = current[:0]
		}
	}
	for _, r := range text {
		if isAlphanumeric(r) {
			current = append(current, r)
		} else {
			flush()
		}
	}
	flush()
	return set
}

func isAlphanumeric(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r > 127
}

// jaccard returns |a∩b| / |a∪b|, with 0 for two empty sets.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
