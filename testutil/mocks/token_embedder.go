package mocks

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/BaSui01/apibrowse/llm/embedding"
)

// TokenEmbedder is a bag-of-words embedding.Provider double. Texts sharing
// tokens embed close together, so similarity ranking in tests behaves the way
// a real embedding model would, without calling one.
type TokenEmbedder struct {
	dims int
}

// NewTokenEmbedder creates a token embedder with dims-dimensional output.
func NewTokenEmbedder(dims int) *TokenEmbedder {
	if dims <= 0 {
		dims = 256
	}
	return &TokenEmbedder{dims: dims}
}

// Name implements embedding.Provider.
func (e *TokenEmbedder) Name() string { return "token-embedding" }

// Dimensions implements embedding.Provider.
func (e *TokenEmbedder) Dimensions() int { return e.dims }

// MaxBatchSize implements embedding.Provider.
func (e *TokenEmbedder) MaxBatchSize() int { return 256 }

// Vector maps text to an L2-normalized term-frequency vector. Tokens hash to
// dimensions, so shared words raise cosine similarity.
func (e *TokenEmbedder) Vector(text string) []float64 {
	vec := make([]float64, e.dims)

	cleaner := strings.NewReplacer("/", " ", "{", " ", "}", " ", "[", " ", "]", " ",
		"(", " ", ")", " ", ":", " ", ",", " ", "?", " ", ".", " ", "\"", " ")
	words := strings.Fields(strings.ToLower(cleaner.Replace(text)))
	if len(words) == 0 {
		return vec
	}

	for _, word := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		vec[int(h.Sum32())%e.dims]++
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// Embed implements embedding.Provider.
func (e *TokenEmbedder) Embed(ctx context.Context, req *embedding.EmbeddingRequest) (*embedding.EmbeddingResponse, error) {
	data := make([]embedding.EmbeddingData, len(req.Input))
	for i, text := range req.Input {
		data[i] = embedding.EmbeddingData{Index: i, Embedding: e.Vector(text)}
	}
	return &embedding.EmbeddingResponse{Provider: e.Name(), Model: "token", Embeddings: data}, nil
}

// EmbedQuery implements embedding.Provider.
func (e *TokenEmbedder) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	return e.Vector(query), nil
}

// EmbedDocuments implements embedding.Provider.
func (e *TokenEmbedder) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	out := make([][]float64, len(documents))
	for i, text := range documents {
		out[i] = e.Vector(text)
	}
	return out, nil
}
