package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/wins-cli/internal/model"
)

func TestGuardSucceedsFirstAttempt(t *testing.T) {
	client := &scriptedClient{responses: []string{validDraftJSON}}
	g := &Guard{Extractor: newTestExtractor(client)}

	drafts, failure := g.Extract(context.Background(), testEvidence())
	require.Nil(t, failure)
	assert.Len(t, drafts, 1)
	assert.Len(t, client.prompts, 1)
}

func TestGuardRecoversWithCorrectionPrompt(t *testing.T) {
	client := &scriptedClient{responses: []string{"not json at all", validDraftJSON}}
	g := &Guard{Extractor: newTestExtractor(client)}

	drafts, failure := g.Extract(context.Background(), testEvidence())
	require.Nil(t, failure)
	assert.Len(t, drafts, 1)

	require.Len(t, client.prompts, 2)
	assert.Contains(t, client.prompts[1], "failed validation")
	assert.Contains(t, client.prompts[1], "not json at all")
	assert.Contains(t, client.prompts[1], "Do not add, remove, or change")
}

func TestGuardExhaustsRetries(t *testing.T) {
	client := &scriptedClient{responses: []string{"bad", "still bad", "worse"}}
	g := &Guard{Extractor: newTestExtractor(client)}

	drafts, failure := g.Extract(context.Background(), testEvidence())
	assert.Nil(t, drafts)
	require.NotNil(t, failure)

	// Initial attempt plus exactly MaxSchemaRetries corrections.
	assert.Len(t, client.prompts, 1+MaxSchemaRetries)
	assert.Equal(t, model.FailureRetryExhausted, failure.ErrorType)
	assert.Equal(t, "ev-1", failure.EvidenceID)
	assert.Equal(t, "notes.txt", failure.Filename)
	assert.Equal(t, MaxSchemaRetries, failure.RetryCount)
	assert.Equal(t, "worse", failure.RawResponse)
	assert.Len(t, failure.AttemptErrs, MaxSchemaRetries+1)
}

func TestGuardServiceFailureIsTerminal(t *testing.T) {
	client := &scriptedClient{errs: []error{errors.New("model exploded")}}
	g := &Guard{Extractor: newTestExtractor(client)}

	drafts, failure := g.Extract(context.Background(), testEvidence())
	assert.Nil(t, drafts)
	require.NotNil(t, failure)

	assert.Len(t, client.prompts, 1)
	assert.Equal(t, model.FailureServiceCall, failure.ErrorType)
	assert.Contains(t, failure.ErrorMessage, "model exploded")
}
