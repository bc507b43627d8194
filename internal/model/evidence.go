package model

import "time"

// SourceType identifies the upstream origin of an Evidence record.
type SourceType string

const (
	SourceTypePDF   SourceType = "pdf"
	SourceTypeEmail SourceType = "email"
	SourceTypeTeams SourceType = "teams"
	SourceTypeImage SourceType = "image"
	SourceTypeText  SourceType = "text"
)

// Evidence is one immutable unit of source-derived text produced by the
// ingestion collaborator. It is never mutated after import.
type Evidence struct {
	ID         string         `json:"id"`
	Text       string         `json:"text"`
	SourceType SourceType     `json:"source_type"`
	Filename   string         `json:"filename"`
	Country    string         `json:"country"` // ISO 3166-1 alpha-2
	Month      string         `json:"month"`   // YYYY-MM
	CreatedAt  time.Time      `json:"created_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}
