// Package llm isolates the language-model service behind a narrow
// prompt-in, text-out interface. It is the only non-deterministic
// dependency of the pipeline; everything downstream of a Generate call is
// pure and testable with a stub client.
package llm

import "context"

// Client performs a single generation call against a model service.
type Client interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest is a provider-neutral generation request. Format "json"
// asks the service to constrain output to a single JSON value where the
// provider supports it.
type GenerateRequest struct {
	Model       string
	Prompt      string
	System      string
	Format      string
	MaxTokens   int64
	Temperature *float64
}

// GenerateResponse is the provider-neutral result of a generation call.
type GenerateResponse struct {
	Model   string
	Text    string
	Done    bool
	Usage   TokenUsage
}

// TokenUsage tracks token consumption for cost attribution.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// Add accumulates usage from another call.
func (u *TokenUsage) Add(o TokenUsage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
}
