package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/wins-cli/internal/audit"
	"github.com/sells-group/wins-cli/internal/model"
	"github.com/sells-group/wins-cli/internal/resilience"
)

// MaxSchemaRetries caps re-invocations after a schema failure. The cap is
// fixed: two retries, then the item is terminal.
const MaxSchemaRetries = 2

// correctionPrompt asks only for format correction. It deliberately adds
// no new extraction instructions, so a retry cannot "try harder"
// semantically.
const correctionPrompt = `The previous JSON response failed validation:

%s

Previous response:
%s

Correct the JSON to match the required schema. Ensure all required fields
are present with correct types. Return ONLY the corrected JSON, no other
text. Do not add, remove, or change any extracted information.`

// Guard wraps an Extractor with the bounded schema-failure retry policy.
// When Audit is set, every model invocation and every schema retry leaves
// a durable audit entry.
type Guard struct {
	Extractor *Extractor
	Audit     *audit.Logger
}

// Extract runs guarded extraction for one evidence record. Schema and
// parse failures are retried at most MaxSchemaRetries times with a
// format-correction prompt; exhaustion or a non-retryable service failure
// returns a terminal ExtractionFailure with the raw output and every
// attempt's error preserved. Exactly one of the return values is non-nil.
func (g *Guard) Extract(ctx context.Context, ev model.Evidence) ([]model.DraftCandidate, *model.ExtractionFailure) {
	var attemptErrs []string

	g.auditEvent(ctx, model.AuditExtractionCall, ev.ID, map[string]any{
		"model": g.Extractor.Model,
	})
	drafts, err := g.Extractor.Extract(ctx, ev)
	for retry := 0; err != nil; retry++ {
		var se *SchemaError
		if !errors.As(err, &se) {
			// Service-level failure: the extractor already applied bounded
			// backoff, so this is terminal for the item.
			return nil, g.failure(ev, model.FailureServiceCall, err, attemptErrs, "", retry)
		}

		attemptErrs = append(attemptErrs, se.Reason)
		if retry >= MaxSchemaRetries {
			return nil, g.failure(ev, model.FailureRetryExhausted,
				errors.New(se.Reason), attemptErrs, se.RawOutput, retry)
		}

		zap.L().Warn("schema validation failed, retrying with correction prompt",
			zap.String("evidence_id", ev.ID),
			zap.Int("attempt", retry+1),
			zap.Int("max_retries", MaxSchemaRetries),
			zap.String("reason", se.Reason),
		)
		g.auditEvent(ctx, model.AuditExtractionRetry, ev.ID, map[string]any{
			"attempt": retry + 1,
			"reason":  se.Reason,
		})

		prompt := fmt.Sprintf(correctionPrompt, se.Reason, truncateText(se.RawOutput, 4000))
		drafts, err = g.Extractor.extractCorrected(ctx, prompt, ev)
	}

	return drafts, nil
}

func (g *Guard) auditEvent(ctx context.Context, kind model.AuditKind, evidenceID string, detail map[string]any) {
	if g.Audit == nil {
		return
	}
	g.Audit.System(ctx, kind, []string{evidenceID}, detail)
}

func (g *Guard) failure(ev model.Evidence, ft model.FailureType, err error, attempts []string, raw string, retries int) *model.ExtractionFailure {
	errType := ft
	if resilience.IsTransient(err) {
		errType = model.FailureServiceCall
	}

	zap.L().Error("extraction failed",
		zap.String("evidence_id", ev.ID),
		zap.String("error_type", string(errType)),
		zap.Int("retries", retries),
		zap.Error(err),
	)

	return &model.ExtractionFailure{
		EvidenceID:   ev.ID,
		Filename:     ev.Filename,
		ErrorType:    errType,
		ErrorMessage: err.Error(),
		RawResponse:  raw,
		RetryCount:   retries,
		AttemptErrs:  attempts,
		FailedAt:     time.Now().UTC(),
	}
}
