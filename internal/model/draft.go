package model

import "time"

// Confidence is the extraction confidence band reported by the model.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Valid reports whether c is one of the allowed confidence bands.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// Rank orders confidence bands for threshold comparisons (low=1, high=3).
// Unknown values rank 0.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceLow:
		return 1
	case ConfidenceMedium:
		return 2
	case ConfidenceHigh:
		return 3
	}
	return 0
}

// DraftCandidate is an ephemeral story suggestion extracted from one
// Evidence record. It exists only between extraction and finalization and
// is never persisted as authoritative.
type DraftCandidate struct {
	Customer     string     `json:"customer"`
	Context      string     `json:"context"`
	Action       string     `json:"action"`
	Outcome      string     `json:"outcome"`
	Metrics      []string   `json:"metrics"`
	Confidence   Confidence `json:"confidence"`
	InternalOnly bool       `json:"internal_only"`

	// Optional classification fields.
	Tags     []string `json:"tags,omitempty"`
	Industry string   `json:"industry,omitempty"`
	TeamSize string   `json:"team_size,omitempty"`

	// Traceability back into the evidence store.
	SourceEvidenceID string `json:"source_evidence_id"`

	// Extraction metadata, kept for audit.
	RawModelOutput  string    `json:"raw_model_output,omitempty"`
	ExtractionModel string    `json:"extraction_model,omitempty"`
	ExtractedAt     time.Time `json:"extracted_at,omitempty"`
}

// FailureType classifies why extraction of an Evidence record failed.
type FailureType string

const (
	FailureJSONParse        FailureType = "json_parse_error"
	FailureSchemaValidation FailureType = "schema_validation"
	FailureServiceCall      FailureType = "llm_failure"
	FailureRetryExhausted   FailureType = "retry_exhausted"
)

// ExtractionFailure is the terminal record of an evidence item that could
// not be extracted. The raw model output is preserved for human review.
type ExtractionFailure struct {
	EvidenceID   string      `json:"evidence_id"`
	Filename     string      `json:"filename"`
	ErrorType    FailureType `json:"error_type"`
	ErrorMessage string      `json:"error_message"`
	RawResponse  string      `json:"raw_response"`
	RetryCount   int         `json:"retry_count"`
	AttemptErrs  []string    `json:"attempt_errors,omitempty"`
	FailedAt     time.Time   `json:"failed_at"`
}
