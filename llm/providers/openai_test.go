package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BaSui01/apibrowse/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAIServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *OpenAIProvider) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewOpenAIProvider(OpenAIConfig{
		APIKey:       "sk-test",
		BaseURL:      srv.URL,
		DefaultModel: "gpt-4o-mini",
	}, nil)
	return srv, p
}

func TestOpenAICompletion(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody openAIChatRequest

	_, p := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"model":   "gpt-4o-mini",
			"created": 1700000000,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": "Use GET /orders."},
			}},
			"usage": map[string]int{"prompt_tokens": 42, "completion_tokens": 7, "total_tokens": 49},
		})
	})

	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "system"},
			{Role: llm.RoleUser, Content: "which endpoint lists orders?"},
		},
		MaxTokens:   256,
		Temperature: 0.2,
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "gpt-4o-mini", gotBody.Model)
	assert.Len(t, gotBody.Messages, 2)
	assert.Equal(t, 256, gotBody.MaxTokens)

	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, "Use GET /orders.", resp.FirstContent())
	assert.Equal(t, 42, resp.Usage.PromptTokens)
	assert.Equal(t, 7, resp.Usage.CompletionTokens)
}

func TestOpenAICompletionModelOverride(t *testing.T) {
	var gotBody openAIChatRequest
	_, p := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": "ok"}}},
		})
	})

	_, err := p.Completion(context.Background(), &llm.ChatRequest{
		Model:    "gpt-4.1",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1", gotBody.Model)
}

func TestOpenAICompletionHTTPErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantCode llm.ErrorCode
	}{
		{"unauthorized", http.StatusUnauthorized, llm.ErrUnauthorized},
		{"rate limited", http.StatusTooManyRequests, llm.ErrRateLimited},
		{"bad request", http.StatusBadRequest, llm.ErrInvalidRequest},
		{"upstream error", http.StatusInternalServerError, llm.ErrUpstreamError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, p := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
			})

			_, err := p.Completion(context.Background(), &llm.ChatRequest{
				Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
			})
			require.Error(t, err)

			llmErr, ok := llm.AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, llmErr.Code)
			assert.Equal(t, "openai", llmErr.Provider)
		})
	}
}

func TestOpenAICompletionNoChoices(t *testing.T) {
	_, p := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)

	llmErr, ok := llm.AsError(err)
	require.True(t, ok)
	assert.Equal(t, llm.ErrInvalidResponse, llmErr.Code)
}

func TestOpenAICompletionTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	p := NewOpenAIProvider(OpenAIConfig{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, nil)

	_, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.True(t, llm.IsTimeout(err))
}

func TestOpenAIHealthCheck(t *testing.T) {
	_, p := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	status, err := p.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)

	_, bad := openAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	status, err = bad.HealthCheck(context.Background())
	require.Error(t, err)
	assert.False(t, status.Healthy)
}
