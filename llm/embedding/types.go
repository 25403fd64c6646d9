// Package embedding provides a uniform embedding provider interface together
// with OpenAI-compatible and Ollama implementations.
package embedding

import (
	"context"
	"time"
)

// EmbeddingRequest is one request to generate embeddings.
type EmbeddingRequest struct {
	Input      []string  `json:"input"`                // Texts to embed
	Model      string    `json:"model,omitempty"`      // Model override
	Dimensions int       `json:"dimensions,omitempty"` // Output dimensions, for models that support it
	InputType  InputType `json:"input_type,omitempty"` // query or document
}

// InputType hints what the embedding will be used for. Some models optimize
// query and document embeddings differently.
type InputType string

const (
	InputTypeQuery    InputType = "query"
	InputTypeDocument InputType = "document"
)

// EmbeddingResponse is the provider's reply.
type EmbeddingResponse struct {
	Provider   string          `json:"provider"`
	Model      string          `json:"model"`
	Embeddings []EmbeddingData `json:"embeddings"`
	Usage      EmbeddingUsage  `json:"usage"`
	CreatedAt  time.Time       `json:"created_at,omitempty"`
}

// EmbeddingData is a single embedding result.
type EmbeddingData struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// EmbeddingUsage reports token consumption for the request.
type EmbeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Provider is the uniform embedding interface.
type Provider interface {
	// Embed generates embeddings for the given inputs.
	Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error)

	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, query string) ([]float64, error)

	// EmbedDocuments embeds multiple documents, preserving input order.
	EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error)

	// Name returns the provider name.
	Name() string

	// Dimensions returns the default embedding dimensionality.
	Dimensions() int

	// MaxBatchSize returns the largest supported input batch.
	MaxBatchSize() int
}
