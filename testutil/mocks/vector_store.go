package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/apibrowse/rag"
)

// CountingVectorStore wraps an in-memory store and counts calls, letting
// tests assert that the store was or was not touched.
type CountingVectorStore struct {
	inner *rag.InMemoryVectorStore

	mu          sync.Mutex
	addCalls    int
	searchCalls int
	searchErr   error
}

// NewCountingVectorStore creates an empty counting store.
func NewCountingVectorStore() *CountingVectorStore {
	return &CountingVectorStore{inner: rag.NewInMemoryVectorStore(nil)}
}

// WithSearchError makes every Search fail with err.
func (s *CountingVectorStore) WithSearchError(err error) *CountingVectorStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchErr = err
	return s
}

// AddDocuments implements rag.VectorStore.
func (s *CountingVectorStore) AddDocuments(ctx context.Context, docs []rag.Document) error {
	s.mu.Lock()
	s.addCalls++
	s.mu.Unlock()
	return s.inner.AddDocuments(ctx, docs)
}

// Search implements rag.VectorStore.
func (s *CountingVectorStore) Search(ctx context.Context, queryEmbedding []float64, topK int) ([]rag.VectorSearchResult, error) {
	s.mu.Lock()
	s.searchCalls++
	err := s.searchErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.inner.Search(ctx, queryEmbedding, topK)
}

// DeleteDocuments implements rag.VectorStore.
func (s *CountingVectorStore) DeleteDocuments(ctx context.Context, ids []string) error {
	return s.inner.DeleteDocuments(ctx, ids)
}

// Count implements rag.VectorStore.
func (s *CountingVectorStore) Count(ctx context.Context) (int, error) {
	return s.inner.Count(ctx)
}

// AddCallCount returns how many AddDocuments calls were made.
func (s *CountingVectorStore) AddCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addCalls
}

// SearchCallCount returns how many Search calls were made.
func (s *CountingVectorStore) SearchCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchCalls
}
