package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/apibrowse/llm"
)

// OllamaConfig configures the Ollama chat adapter. Ollama runs locally and
// needs no credentials.
type OllamaConfig struct {
	// BaseURL defaults to http://localhost:11434.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// DefaultModel is used when the request carries no model.
	DefaultModel string `json:"default_model" yaml:"default_model"`

	// Timeout is the HTTP client timeout. Defaults to 120s; local models
	// can be slow to answer cold.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// OllamaProvider implements llm.Provider against Ollama's /api/chat endpoint.
type OllamaProvider struct {
	cfg    OllamaConfig
	client *http.Client
	logger *zap.Logger
}

// NewOllamaProvider creates the adapter.
func NewOllamaProvider(cfg OllamaConfig, logger *zap.Logger) *OllamaProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "llama3.1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &OllamaProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "ollama_provider")),
	}
}

// Name returns the provider identifier.
func (p *OllamaProvider) Name() string { return "ollama" }

func (p *OllamaProvider) endpoint(path string) string {
	return strings.TrimRight(p.cfg.BaseURL, "/") + path
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  struct {
		Temperature float32 `json:"temperature,omitempty"`
		NumPredict  int     `json:"num_predict,omitempty"`
	} `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool      `json:"done"`
	PromptEvalCount int       `json:"prompt_eval_count"`
	EvalCount       int       `json:"eval_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// Completion performs a synchronous chat completion.
func (p *OllamaProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := chooseModel(req.Model, p.cfg.DefaultModel, "llama3.1")

	body := ollamaChatRequest{
		Model:    model,
		Messages: req.Messages,
		Stream:   false,
	}
	body.Options.Temperature = req.Temperature
	body.Options.NumPredict = req.MaxTokens

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("/api/chat"), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err, p.Name())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg := ReadErrorMessage(resp.Body)
		return nil, MapHTTPError(resp.StatusCode, msg, p.Name())
	}

	var olResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&olResp); err != nil {
		return nil, &llm.Error{
			Code:       llm.ErrInvalidResponse,
			Message:    "failed to decode chat response: " + err.Error(),
			HTTPStatus: http.StatusBadGateway,
			Retryable:  true,
			Provider:   p.Name(),
		}
	}

	out := &llm.ChatResponse{
		Provider:  p.Name(),
		Model:     olResp.Model,
		CreatedAt: olResp.CreatedAt,
		Usage: llm.ChatUsage{
			PromptTokens:     olResp.PromptEvalCount,
			CompletionTokens: olResp.EvalCount,
			TotalTokens:      olResp.PromptEvalCount + olResp.EvalCount,
		},
		Choices: []llm.ChatChoice{{
			Message: llm.Message{
				Role:    llm.Role(olResp.Message.Role),
				Content: olResp.Message.Content,
			},
		}},
	}
	return out, nil
}

// HealthCheck probes the Ollama root endpoint.
func (p *OllamaProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint("/api/tags"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &llm.HealthStatus{Healthy: false, Latency: latency, Message: err.Error()}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &llm.HealthStatus{Healthy: false, Latency: latency},
			fmt.Errorf("ollama health check failed: status=%d", resp.StatusCode)
	}

	return &llm.HealthStatus{Healthy: true, Latency: latency}, nil
}
