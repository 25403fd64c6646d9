package embedding

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BaSui01/apibrowse/llm"
)

// OllamaProvider implements embedding against a local Ollama server using its
// /api/embed endpoint. Ollama embeds one batch per request and needs no auth.
type OllamaProvider struct {
	*BaseProvider
	cfg OllamaConfig
}

// NewOllamaProvider creates a new Ollama embedding provider.
func NewOllamaProvider(cfg OllamaConfig) *OllamaProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 768
	}

	return &OllamaProvider{
		BaseProvider: NewBaseProvider(BaseConfig{
			Name:       "ollama-embedding",
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			MaxBatch:   512,
			Timeout:    cfg.Timeout,
		}),
		cfg: cfg,
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model           string      `json:"model"`
	Embeddings      [][]float64 `json:"embeddings"`
	PromptEvalCount int         `json:"prompt_eval_count"`
}

// Embed generates embeddings for the given inputs.
func (p *OllamaProvider) Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	model := ChooseModel(req.Model, p.cfg.Model, "nomic-embed-text")

	body := ollamaEmbedRequest{
		Model: model,
		Input: req.Input,
	}

	respBody, err := p.DoRequest(ctx, "POST", "/api/embed", body, nil)
	if err != nil {
		return nil, err
	}

	var olResp ollamaEmbedResponse
	if err := json.Unmarshal(respBody, &olResp); err != nil {
		return nil, &llm.Error{
			Code:       llm.ErrInvalidResponse,
			Message:    "failed to decode embeddings response: " + err.Error(),
			HTTPStatus: 502,
			Provider:   p.Name(),
		}
	}

	embeddings := make([]EmbeddingData, len(olResp.Embeddings))
	for i, vec := range olResp.Embeddings {
		embeddings[i] = EmbeddingData{
			Index:     i,
			Embedding: vec,
		}
	}

	return &EmbeddingResponse{
		Provider:   p.Name(),
		Model:      olResp.Model,
		Embeddings: embeddings,
		Usage: EmbeddingUsage{
			PromptTokens: olResp.PromptEvalCount,
			TotalTokens:  olResp.PromptEvalCount,
		},
		CreatedAt: time.Now(),
	}, nil
}

// EmbedQuery embeds a single query.
func (p *OllamaProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	return p.BaseProvider.EmbedQuery(ctx, query, p.Embed)
}

// EmbedDocuments embeds multiple documents.
func (p *OllamaProvider) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	return p.BaseProvider.EmbedDocuments(ctx, documents, p.Embed)
}
