package model

import "time"

// RecordStatus tracks the forward-only lifecycle of a finalized record.
type RecordStatus string

const (
	RecordStatusPending   RecordStatus = "pending"
	RecordStatusEvaluated RecordStatus = "evaluated"
	RecordStatusRanked    RecordStatus = "ranked"
)

// statusOrder encodes the forward-only progression pending → evaluated → ranked.
var statusOrder = map[RecordStatus]int{
	RecordStatusPending:   1,
	RecordStatusEvaluated: 2,
	RecordStatusRanked:    3,
}

// CanTransition reports whether moving from s to next is a forward step.
func (s RecordStatus) CanTransition(next RecordStatus) bool {
	from, ok := statusOrder[s]
	to, ok2 := statusOrder[next]
	return ok && ok2 && to > from
}

// FinalizedRecord is the canonical success story. Its ID is derived from
// normalized content, never from time or randomness. Once written it only
// changes through explicit merge or delete operations, each of which
// produces new records rather than editing in place.
type FinalizedRecord struct {
	ID           string       `json:"id"` // win-{month}-{country}-{hash}[-{seq}]
	Country      string       `json:"country"`
	Month        string       `json:"month"`
	Customer     string       `json:"customer"`
	Context      string       `json:"context"`
	Action       string       `json:"action"`
	Outcome      string       `json:"outcome"`
	Metrics      []string     `json:"metrics"`
	Confidence   Confidence   `json:"confidence"`
	InternalOnly bool         `json:"internal_only"`
	Tags         []string     `json:"tags,omitempty"`
	Industry     string       `json:"industry,omitempty"`
	TeamSize     string       `json:"team_size,omitempty"`
	Status       RecordStatus `json:"status"`

	// Provenance: evidence ids copied verbatim at finalization.
	SourceEvidenceIDs []string `json:"source_evidence_ids"`

	// Merge lineage. Set only by the merge gate; empty for ordinary records.
	MergedFrom  []string `json:"merged_from,omitempty"`
	MergeReason string   `json:"merge_reason,omitempty"`
	ApprovedBy  string   `json:"approved_by,omitempty"`

	// MergedInto is set on a source record when it participates in a merge.
	// The record itself stays unmodified otherwise and remains inspectable.
	MergedInto string `json:"merged_into,omitempty"`

	FinalizedAt time.Time `json:"finalized_at"`
}

// IsMerged reports whether the record was produced by the merge gate.
func (r *FinalizedRecord) IsMerged() bool { return len(r.MergedFrom) > 0 }

// DeletedRecord wraps a removed record in the deletion store. Nothing is
// physically destroyed; restore re-inserts Original unchanged.
type DeletedRecord struct {
	RecordID      string          `json:"record_id"`
	Original      FinalizedRecord `json:"original"`
	DeletedAt     time.Time       `json:"deleted_at"`
	DeletedReason string          `json:"deleted_reason"`
	DeletedBy     string          `json:"deleted_by"`
	Restored      bool            `json:"restored"`
	RestoredAt    *time.Time      `json:"restored_at,omitempty"`
	RestoredBy    string          `json:"restored_by,omitempty"`
}

// DuplicateFlag is an advisory similarity relation between two candidates
// or records. It carries no merge semantics.
type DuplicateFlag struct {
	CandidateA      string    `json:"candidate_id_a"`
	CandidateB      string    `json:"candidate_id_b"`
	SimilarityScore float64   `json:"similarity_score"`
	MethodVersion   string    `json:"method_version"`
	FlaggedAt       time.Time `json:"flagged_at"`
}

// EvaluationResult is the outcome of applying one named business rule to
// one record. Evidence lists the observed values that drove the outcome.
type EvaluationResult struct {
	RecordID string   `json:"record_id"`
	RuleName string   `json:"rule_name"`
	Passed   bool     `json:"passed"`
	Score    float64  `json:"score"` // 0.0 to 1.0 per-criterion score
	Evidence []string `json:"evidence,omitempty"`
}

// RankScore is a derived, recomputable score for one record. It is never
// the sole source of truth; identical records and config reproduce it.
type RankScore struct {
	RecordID      string             `json:"record_id"`
	Score         float64            `json:"score"`
	Rank          int                `json:"rank"` // 1 = highest
	RankingMethod string             `json:"ranking_method"`
	Components    map[string]float64 `json:"components,omitempty"`
	ComputedAt    time.Time          `json:"computed_at"`
}
