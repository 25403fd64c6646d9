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

func ollamaServer(t *testing.T, handler http.HandlerFunc) *OllamaProvider {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewOllamaProvider(OllamaConfig{
		BaseURL:      srv.URL,
		DefaultModel: "llama3.1",
	}, nil)
}

func TestOllamaCompletion(t *testing.T) {
	var gotPath string
	var gotBody ollamaChatRequest

	p := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":             "llama3.1",
			"message":           map[string]string{"role": "assistant", "content": "Use GET /orders."},
			"done":              true,
			"prompt_eval_count": 40,
			"eval_count":        9,
			"created_at":        time.Now().Format(time.RFC3339Nano),
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

	assert.Equal(t, "/api/chat", gotPath)
	assert.Equal(t, "llama3.1", gotBody.Model)
	assert.False(t, gotBody.Stream)
	assert.Equal(t, 256, gotBody.Options.NumPredict)
	assert.InDelta(t, 0.2, gotBody.Options.Temperature, 0.001)

	assert.Equal(t, "ollama", resp.Provider)
	assert.Equal(t, "Use GET /orders.", resp.FirstContent())
	assert.Equal(t, 49, resp.Usage.TotalTokens)
}

func TestOllamaCompletionHTTPError(t *testing.T) {
	p := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	})

	_, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)

	llmErr, ok := llm.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "ollama", llmErr.Provider)
}

func TestOllamaCompletionTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	p := NewOllamaProvider(OllamaConfig{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, nil)

	_, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.True(t, llm.IsTimeout(err))
}

func TestOllamaHealthCheck(t *testing.T) {
	p := ollamaServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[]}`))
	})

	status, err := p.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
}

func TestFactorySelectsProvider(t *testing.T) {
	p, err := New(Config{Provider: "openai"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	p, err = New(Config{Provider: "ollama"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())

	_, err = New(Config{Provider: "watson"}, nil)
	require.Error(t, err)
}
