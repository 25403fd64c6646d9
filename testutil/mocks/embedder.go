package mocks

import (
	"context"
	"hash/fnv"
	"math"
	"sync"

	"github.com/BaSui01/apibrowse/llm/embedding"
)

// MockEmbedder is a deterministic embedding.Provider double. Each input text
// hashes to a fixed unit vector, so identical texts always embed identically
// and similar tests stay reproducible without a live model.
type MockEmbedder struct {
	mu sync.Mutex

	dims int
	err  error

	queryCalls []string
	docCalls   [][]string
}

// NewMockEmbedder creates an embedder producing dims-dimensional vectors.
func NewMockEmbedder(dims int) *MockEmbedder {
	if dims <= 0 {
		dims = 8
	}
	return &MockEmbedder{dims: dims}
}

// WithError makes every call fail with err.
func (m *MockEmbedder) WithError(err error) *MockEmbedder {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Name implements embedding.Provider.
func (m *MockEmbedder) Name() string { return "mock-embedding" }

// Dimensions implements embedding.Provider.
func (m *MockEmbedder) Dimensions() int { return m.dims }

// MaxBatchSize implements embedding.Provider.
func (m *MockEmbedder) MaxBatchSize() int { return 64 }

// Vector returns the deterministic embedding for text. Exposed so tests can
// precompute expected store contents.
func (m *MockEmbedder) Vector(text string) []float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float64, m.dims)
	var norm float64
	for i := range vec {
		// xorshift64 over the seed gives a stable pseudo-random vector.
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		vec[i] = float64(int64(seed%2000)-1000) / 1000.0
		norm += vec[i] * vec[i]
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// Embed implements embedding.Provider.
func (m *MockEmbedder) Embed(ctx context.Context, req *embedding.EmbeddingRequest) (*embedding.EmbeddingResponse, error) {
	m.mu.Lock()
	err := m.err
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	data := make([]embedding.EmbeddingData, len(req.Input))
	for i, text := range req.Input {
		data[i] = embedding.EmbeddingData{Index: i, Embedding: m.Vector(text)}
	}
	return &embedding.EmbeddingResponse{
		Provider:   m.Name(),
		Model:      "mock",
		Embeddings: data,
	}, nil
}

// EmbedQuery implements embedding.Provider.
func (m *MockEmbedder) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	m.mu.Lock()
	m.queryCalls = append(m.queryCalls, query)
	err := m.err
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.Vector(query), nil
}

// EmbedDocuments implements embedding.Provider.
func (m *MockEmbedder) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	m.mu.Lock()
	batch := make([]string, len(documents))
	copy(batch, documents)
	m.docCalls = append(m.docCalls, batch)
	err := m.err
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([][]float64, len(documents))
	for i, text := range documents {
		out[i] = m.Vector(text)
	}
	return out, nil
}

// QueryCallCount returns how many times EmbedQuery was invoked.
func (m *MockEmbedder) QueryCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queryCalls)
}

// DocumentBatchCount returns how many EmbedDocuments batches were issued.
func (m *MockEmbedder) DocumentBatchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docCalls)
}
