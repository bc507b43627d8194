package model

import "time"

// AuditKind classifies an audit trail event.
type AuditKind string

const (
	AuditExtractionCall  AuditKind = "extraction_call"
	AuditExtractionRetry AuditKind = "extraction_retry"
	AuditExtractionFail  AuditKind = "extraction_failed"
	AuditDuplicateFlag   AuditKind = "duplicate_flag"
	AuditFinalize        AuditKind = "finalize"
	AuditIdentityClash   AuditKind = "identity_collision"
	AuditEvaluate        AuditKind = "evaluate"
	AuditRank            AuditKind = "rank"
	AuditMerge           AuditKind = "merge"
	AuditDelete          AuditKind = "delete"
	AuditRestore         AuditKind = "restore"
)

// AuditEvent is one append-only entry in the audit trail. Subjects carry
// the ids (evidence, record, flag pair) needed to reconstruct the decision
// without re-invoking the model.
type AuditEvent struct {
	ID       string         `json:"id"`
	Kind     AuditKind      `json:"kind"`
	Subjects []string       `json:"subjects"`
	Actor    string         `json:"actor,omitempty"` // human approver or "system"
	Detail   map[string]any `json:"detail,omitempty"`
	At       time.Time      `json:"at"`
}
