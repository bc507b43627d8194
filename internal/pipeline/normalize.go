package pipeline

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/wins-cli/internal/model"
)

// foldCaser performs Unicode case folding for comparison keys.
var foldCaser = cases.Fold()

// NormalizeDraft mechanically canonicalizes candidate field formatting:
// Unicode NFC, trimmed and collapsed whitespace, de-duplicated metric and
// tag lists. No semantic change is made and no field content is invented;
// an empty field stays empty.
func NormalizeDraft(d model.DraftCandidate) model.DraftCandidate {
	d.Customer = canonicalText(d.Customer)
	d.Context = canonicalText(d.Context)
	d.Action = canonicalText(d.Action)
	d.Outcome = canonicalText(d.Outcome)
	d.Industry = canonicalText(d.Industry)
	d.TeamSize = canonicalText(d.TeamSize)
	d.Metrics = dedupeList(d.Metrics)
	d.Tags = dedupeList(d.Tags)
	return d
}

// canonicalText applies NFC normalization, trims, and collapses runs of
// whitespace to a single space.
func canonicalText(s string) string {
	s = norm.NFC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// canonicalKey is the comparison form used for hashing and duplicate
// detection: canonical text, case-folded.
func canonicalKey(s string) string {
	return foldCaser.String(canonicalText(s))
}

// dedupeList canonicalizes entries, drops empties, and removes
// case-insensitive duplicates while preserving first-occurrence order.
func dedupeList(items []string) []string {
	if items == nil {
		return nil
	}
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		c := canonicalText(it)
		if c == "" {
			continue
		}
		key := foldCaser.String(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}
