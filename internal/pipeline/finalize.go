package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/wins-cli/internal/model"
)

// ContentID derives the record identifier from normalized core fields.
// The hash covers {customer, context, action, outcome} in their canonical
// comparison form, so identical semantic content yields the identical id
// on every run, independent of processing order, time, or randomness.
//
// ID format: win-{month}-{country}-{hash16}.
func ContentID(customer, context, action, outcome, country, month string) string {
	content := strings.Join([]string{
		canonicalKey(customer),
		canonicalKey(context),
		canonicalKey(action),
		canonicalKey(outcome),
	}, "|")

	sum := sha256.Sum256([]byte(content))
	return fmt.Sprintf("win-%s-%s-%s", month, strings.ToLower(country), hex.EncodeToString(sum[:8]))
}

// DisambiguatedID appends the collision sequence to a base id. Sequence 1
// is the base id itself; genuinely distinct stories that collide on the
// content hash get -2, -3, and so on, assigned monotonically.
func DisambiguatedID(base string, seq int) string {
	if seq <= 1 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, seq)
}

// SameContent reports whether two records carry identical core content in
// canonical form. Used to distinguish an idempotent re-finalization from a
// true hash collision.
func SameContent(a, b *model.FinalizedRecord) bool {
	return canonicalKey(a.Customer) == canonicalKey(b.Customer) &&
		canonicalKey(a.Context) == canonicalKey(b.Context) &&
		canonicalKey(a.Action) == canonicalKey(b.Action) &&
		canonicalKey(a.Outcome) == canonicalKey(b.Outcome)
}

// Finalize converts a validated, normalized draft into the canonical
// record. Provenance is copied verbatim from the source evidence id; no
// field is inferred or fabricated, and empty fields remain empty.
func Finalize(d model.DraftCandidate, country, month string, now time.Time) model.FinalizedRecord {
	return model.FinalizedRecord{
		ID:                ContentID(d.Customer, d.Context, d.Action, d.Outcome, country, month),
		Country:           country,
		Month:             month,
		Customer:          d.Customer,
		Context:           d.Context,
		Action:            d.Action,
		Outcome:           d.Outcome,
		Metrics:           d.Metrics,
		Confidence:        d.Confidence,
		InternalOnly:      d.InternalOnly,
		Tags:              d.Tags,
		Industry:          d.Industry,
		TeamSize:          d.TeamSize,
		Status:            model.RecordStatusPending,
		SourceEvidenceIDs: []string{d.SourceEvidenceID},
		FinalizedAt:       now.UTC(),
	}
}
