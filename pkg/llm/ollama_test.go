package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/wins-cli/internal/resilience"
)

func TestOllamaGenerate(t *testing.T) {
	var got ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		json.NewEncoder(w).Encode(ollamaGenerateResponse{
			Model:           "glm-4:9b",
			Response:        `{"ok": true}`,
			Done:            true,
			PromptEvalCount: 120,
			EvalCount:       34,
		})
	}))
	defer srv.Close()

	client := NewOllama(WithBaseURL(srv.URL), WithModel("glm-4:9b"))
	temp := 0.1
	resp, err := client.Generate(context.Background(), GenerateRequest{
		Prompt:      "extract the stories",
		System:      "you are an analyst",
		Format:      "json",
		MaxTokens:   2048,
		Temperature: &temp,
	})
	require.NoError(t, err)

	assert.Equal(t, "glm-4:9b", got.Model)
	assert.Equal(t, "extract the stories", got.Prompt)
	assert.Equal(t, "you are an analyst", got.System)
	assert.Equal(t, "json", got.Format)
	assert.False(t, got.Stream)
	assert.Equal(t, 0.1, got.Options["temperature"])
	assert.Equal(t, float64(2048), got.Options["num_predict"])

	assert.Equal(t, `{"ok": true}`, resp.Text)
	assert.True(t, resp.Done)
	assert.Equal(t, int64(120), resp.Usage.InputTokens)
	assert.Equal(t, int64(34), resp.Usage.OutputTokens)
}

func TestOllamaGenerateModelDefault(t *testing.T) {
	var got ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "ok", Done: true})
	}))
	defer srv.Close()

	client := NewOllama(WithBaseURL(srv.URL), WithModel("default-model"))
	_, err := client.Generate(context.Background(), GenerateRequest{Prompt: "p", Model: "override"})
	require.NoError(t, err)
	assert.Equal(t, "override", got.Model)

	_, err = client.Generate(context.Background(), GenerateRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "default-model", got.Model)
}

func TestOllamaGenerateServerError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"service unavailable", http.StatusServiceUnavailable, true},
		{"overloaded", http.StatusTooManyRequests, true},
		{"bad request", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "model is busy", tt.status)
			}))
			defer srv.Close()

			client := NewOllama(WithBaseURL(srv.URL))
			_, err := client.Generate(context.Background(), GenerateRequest{Prompt: "p"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "unexpected status")

			var transient *resilience.TransientError
			assert.Equal(t, tt.transient, errors.As(err, &transient))
		})
	}
}

func TestOllamaGenerateConnectionRefused(t *testing.T) {
	// A closed server yields a connection error, which must be retryable.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewOllama(WithBaseURL(srv.URL))
	_, err := client.Generate(context.Background(), GenerateRequest{Prompt: "p"})
	require.Error(t, err)

	var transient *resilience.TransientError
	assert.True(t, errors.As(err, &transient))
}

func TestOllamaTimeoutOption(t *testing.T) {
	c := NewOllama(WithTimeout(5 * time.Second)).(*ollamaClient)
	assert.Equal(t, 5*time.Second, c.http.Timeout)

	// Non-positive keeps the default.
	d := NewOllama(WithTimeout(0)).(*ollamaClient)
	assert.Equal(t, 120*time.Second, d.http.Timeout)
}

func TestTokenUsageAdd(t *testing.T) {
	u := TokenUsage{InputTokens: 10, OutputTokens: 5}
	u.Add(TokenUsage{InputTokens: 3, OutputTokens: 7})
	assert.Equal(t, TokenUsage{InputTokens: 13, OutputTokens: 12}, u)
}
