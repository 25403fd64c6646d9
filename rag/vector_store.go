package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// VectorStore is the persistence boundary of the index. Implementations must
// treat AddDocuments as an upsert keyed by Document.ID so that re-indexing the
// same catalog never grows the collection.
type VectorStore interface {
	AddDocuments(ctx context.Context, docs []Document) error

	// Search returns up to topK hits ordered by descending Score.
	Search(ctx context.Context, queryEmbedding []float64, topK int) ([]VectorSearchResult, error)

	DeleteDocuments(ctx context.Context, ids []string) error

	Count(ctx context.Context) (int, error)
}

// Clearable is an optional interface for VectorStore implementations that
// support dropping all stored data. Use type assertion to check support:
//
//	if c, ok := store.(Clearable); ok { c.ClearAll(ctx) }
type Clearable interface {
	ClearAll(ctx context.Context) error
}

// InMemoryVectorStore keeps the whole index in process memory with exhaustive
// cosine search. It backs the default deployment and tests; catalogs in the
// hundreds of operations are well within its comfort zone.
type InMemoryVectorStore struct {
	mu     sync.RWMutex
	byID   map[string]Document
	order  []string
	logger *zap.Logger
}

// NewInMemoryVectorStore creates an empty in-memory store.
func NewInMemoryVectorStore(logger *zap.Logger) *InMemoryVectorStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryVectorStore{
		byID:   make(map[string]Document),
		logger: logger.With(zap.String("component", "memory_store")),
	}
}

// AddDocuments upserts by document ID. Adding the same documents twice leaves
// the store unchanged apart from content updates.
func (s *InMemoryVectorStore) AddDocuments(ctx context.Context, docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document has empty id")
		}
		if len(doc.Embedding) == 0 {
			return fmt.Errorf("document %s has no embedding", doc.ID)
		}
		if _, exists := s.byID[doc.ID]; !exists {
			s.order = append(s.order, doc.ID)
		}
		s.byID[doc.ID] = doc
	}

	s.logger.Debug("documents upserted",
		zap.Int("count", len(docs)),
		zap.Int("total", len(s.byID)))
	return nil
}

// Search scans every stored document and returns the topK most similar.
func (s *InMemoryVectorStore) Search(ctx context.Context, queryEmbedding []float64, topK int) ([]VectorSearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if topK <= 0 || len(s.byID) == 0 {
		return []VectorSearchResult{}, nil
	}

	results := make([]VectorSearchResult, 0, len(s.byID))
	for _, id := range s.order {
		doc := s.byID[id]
		if len(doc.Embedding) == 0 {
			continue
		}
		similarity := cosineSimilarity(queryEmbedding, doc.Embedding)
		results = append(results, VectorSearchResult{
			Document: doc,
			Score:    similarity,
			Distance: 1.0 - similarity,
		})
	}

	sortByScore(results)

	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

// DeleteDocuments removes documents by ID. Unknown IDs are ignored.
func (s *InMemoryVectorStore) DeleteDocuments(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for _, id := range ids {
		if _, ok := s.byID[id]; ok {
			delete(s.byID, id)
			deleted++
		}
	}
	if deleted > 0 {
		kept := s.order[:0]
		for _, id := range s.order {
			if _, ok := s.byID[id]; ok {
				kept = append(kept, id)
			}
		}
		s.order = kept
	}

	s.logger.Debug("documents deleted",
		zap.Int("deleted", deleted),
		zap.Int("remaining", len(s.byID)))
	return nil
}

// Count returns the number of stored documents.
func (s *InMemoryVectorStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

// ClearAll removes all documents from the store.
func (s *InMemoryVectorStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]Document)
	s.order = nil
	s.logger.Debug("vector store cleared")
	return nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sortByScore orders results by descending similarity. Sort is stable so that
// equal-score documents keep insertion order, which keeps retrieval output
// deterministic for a fixed store state.
func sortByScore(results []VectorSearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
