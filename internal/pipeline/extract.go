package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/wins-cli/internal/model"
	"github.com/sells-group/wins-cli/internal/resilience"
	"github.com/sells-group/wins-cli/pkg/llm"
)

// maxEvidenceChars caps the evidence text injected into the prompt.
const maxEvidenceChars = 10000

// Extractor turns one Evidence record into zero or more DraftCandidates.
// The model call is the only source of non-determinism; everything around
// it is pure, with no file I/O or global state mutation.
type Extractor struct {
	Client   llm.Client
	Model    string
	Template *PromptTemplate
	System   string
	Retry    resilience.RetryConfig
}

// Extract calls the model once for the given evidence and parses the
// output under strict schema validation. A structural failure returns a
// *SchemaError carrying the raw output; a service failure is retried with
// bounded backoff and surfaces as a transient error if it persists.
func (e *Extractor) Extract(ctx context.Context, ev model.Evidence) ([]model.DraftCandidate, error) {
	return e.extract(ctx, e.Template.Render(truncateText(ev.Text, maxEvidenceChars), ev.ID), ev)
}

// extractCorrected re-invokes the model with a format-correction prompt.
// Used by the retry guard only; the correction adds no new extraction
// instructions.
func (e *Extractor) extractCorrected(ctx context.Context, prompt string, ev model.Evidence) ([]model.DraftCandidate, error) {
	return e.extract(ctx, prompt, ev)
}

func (e *Extractor) extract(ctx context.Context, prompt string, ev model.Evidence) ([]model.DraftCandidate, error) {
	cfg := e.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("llm", "generate")
	}

	resp, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*llm.GenerateResponse, error) {
		return e.Client.Generate(ctx, llm.GenerateRequest{
			Model:  e.Model,
			Prompt: prompt,
			System: e.System,
			Format: "json",
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "extract: model call for evidence %s", ev.ID)
	}

	drafts, err := ParseDrafts(resp.Text)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for i := range drafts {
		drafts[i].SourceEvidenceID = ev.ID
		drafts[i].RawModelOutput = resp.Text
		drafts[i].ExtractionModel = resp.Model
		drafts[i].ExtractedAt = now
	}

	zap.L().Info("extracted candidates",
		zap.String("evidence_id", ev.ID),
		zap.Int("candidates", len(drafts)),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
	)
	return drafts, nil
}

// draftPayload is the strict wire schema for one extracted candidate.
// Unknown fields are rejected by the decoder.
type draftPayload struct {
	Customer     string   `json:"customer"`
	Context      string   `json:"context"`
	Action       string   `json:"action"`
	Outcome      string   `json:"outcome"`
	Metrics      []string `json:"metrics"`
	Confidence   string   `json:"confidence"`
	InternalOnly *bool    `json:"internal_only"`
	Tags         []string `json:"tags"`
	Industry     string   `json:"industry"`
	TeamSize     string   `json:"team_size"`
}

// requiredDraftKeys must all be present in every candidate object.
var requiredDraftKeys = []string{
	"customer", "context", "action", "outcome",
	"metrics", "confidence", "internal_only",
}

// ParseDrafts parses model output as either a JSON array of candidate
// objects or a single candidate object. Every object is validated against
// the strict draft schema; any violation returns a *SchemaError — never a
// best-effort guess.
func ParseDrafts(text string) ([]model.DraftCandidate, error) {
	cleaned := stripCodeFence(text)

	items, err := splitTopLevel(cleaned)
	if err != nil {
		return nil, &SchemaError{Reason: err.Error(), RawOutput: text}
	}

	drafts := make([]model.DraftCandidate, 0, len(items))
	for i, item := range items {
		d, err := parseDraft(item)
		if err != nil {
			return nil, &SchemaError{
				Reason:    eris.Wrapf(err, "candidate %d", i).Error(),
				RawOutput: text,
			}
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}

// splitTopLevel returns the raw candidate objects from either a top-level
// array or a single object.
func splitTopLevel(cleaned string) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(cleaned)
	if trimmed == "" {
		return nil, eris.New("empty model output")
	}

	if strings.HasPrefix(trimmed, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
			return nil, eris.Wrap(err, "parse array")
		}
		return items, nil
	}

	var single json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &single); err != nil {
		return nil, eris.Wrap(err, "parse object")
	}
	return []json.RawMessage{single}, nil
}

func parseDraft(raw json.RawMessage) (model.DraftCandidate, error) {
	var zero model.DraftCandidate

	// Presence check first: a strict decoder cannot distinguish a missing
	// key from a zero value.
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return zero, eris.Wrap(err, "not a JSON object")
	}
	var missing []string
	for _, k := range requiredDraftKeys {
		if _, ok := keys[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return zero, eris.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var p draftPayload
	if err := dec.Decode(&p); err != nil {
		return zero, eris.Wrap(err, "strict decode")
	}

	conf := model.Confidence(p.Confidence)
	if !conf.Valid() {
		return zero, eris.Errorf("confidence must be one of high, medium, low; got %q", p.Confidence)
	}
	if strings.TrimSpace(p.Customer) == "" {
		return zero, eris.New("customer must be a non-empty string")
	}
	if p.Metrics == nil {
		return zero, eris.New("metrics must be a list")
	}
	if p.InternalOnly == nil {
		return zero, eris.New("internal_only must be a boolean")
	}

	// Empty context/action/outcome stay empty: extraction never infers or
	// fabricates missing narrative.
	return model.DraftCandidate{
		Customer:     p.Customer,
		Context:      p.Context,
		Action:       p.Action,
		Outcome:      p.Outcome,
		Metrics:      p.Metrics,
		Confidence:   conf,
		InternalOnly: *p.InternalOnly,
		Tags:         p.Tags,
		Industry:     p.Industry,
		TeamSize:     p.TeamSize,
	}, nil
}

// stripCodeFence removes a surrounding markdown code fence if present.
func stripCodeFence(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```json")
	t = strings.TrimPrefix(t, "```")
	if idx := strings.LastIndex(t, "```"); idx >= 0 {
		t = t[:idx]
	}
	return strings.TrimSpace(t)
}

func truncateText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "\n\n[Content truncated due to length...]"
}
