package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/apibrowse/llm/embedding"
	"github.com/BaSui01/apibrowse/openapi"
)

// RetrievalConfig tunes candidate selection.
type RetrievalConfig struct {
	// TopK is how many hits to request from the store. Default 5.
	TopK int `json:"top_k" yaml:"top_k"`

	// MinScore drops hits whose cosine similarity falls below it.
	// Zero keeps everything.
	MinScore float64 `json:"min_score" yaml:"min_score"`
}

// RetrievedOperation pairs a catalog descriptor with its similarity score.
type RetrievedOperation struct {
	Operation openapi.OperationDescriptor `json:"operation"`
	Score     float64                     `json:"score"`
}

// Retriever turns a natural-language query into ranked operation candidates.
// Search hits are joined back to the catalog through the operationId metadata
// key; hits whose operation has since left the catalog are skipped rather
// than surfaced as partial records.
type Retriever struct {
	embedder embedding.Provider
	store    VectorStore
	catalog  *openapi.Catalog
	cfg      RetrievalConfig
	logger   *zap.Logger
}

// NewRetriever creates a retriever over the given catalog and store.
func NewRetriever(embedder embedding.Provider, store VectorStore, catalog *openapi.Catalog, cfg RetrievalConfig, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		catalog:  catalog,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "retriever")),
	}
}

// Retrieve returns up to TopK candidates in descending similarity order.
// A blank query returns no candidates without touching the embedder or the
// store.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]RetrievedOperation, error) {
	if strings.TrimSpace(query) == "" {
		return []RetrievedOperation{}, nil
	}

	start := time.Now()

	queryVec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := r.store.Search(ctx, queryVec, r.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	out := make([]RetrievedOperation, 0, len(hits))
	for _, hit := range hits {
		if r.cfg.MinScore > 0 && hit.Score < r.cfg.MinScore {
			continue
		}

		opID := hit.Document.Metadata.OperationID
		if opID == "" {
			opID = hit.Document.ID
		}

		op, ok := r.catalog.FindByID(opID)
		if !ok {
			r.logger.Warn("search hit has no catalog entry, skipping",
				zap.String("operation_id", opID))
			continue
		}

		out = append(out, RetrievedOperation{Operation: op, Score: hit.Score})
	}

	r.logger.Debug("retrieval completed",
		zap.Int("hits", len(hits)),
		zap.Int("candidates", len(out)),
		zap.Duration("elapsed", time.Since(start)))

	return out, nil
}
