package rag

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/apibrowse/llm/embedding"
	"github.com/BaSui01/apibrowse/openapi"
)

// IndexerConfig tunes the indexing pass.
type IndexerConfig struct {
	// BatchSize caps how many documents are embedded per provider call.
	// Clamped to the provider's MaxBatchSize. Default 32.
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// Concurrency bounds how many embedding batches run in parallel.
	// Default 4.
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

// Indexer embeds the catalog's documents and upserts them into the vector
// store. Indexing is idempotent: running it twice against the same catalog
// leaves the store with the same document count.
type Indexer struct {
	mapper   *DocumentMapper
	embedder embedding.Provider
	store    VectorStore
	cfg      IndexerConfig
	logger   *zap.Logger
}

// NewIndexer creates an indexer. embedder and store must be non-nil.
func NewIndexer(embedder embedding.Provider, store VectorStore, cfg IndexerConfig, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Indexer{
		mapper:   NewDocumentMapper(),
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "indexer")),
	}
}

// IndexCatalog maps every operation to a document, embeds the documents in
// bounded parallel batches and upserts them. An empty catalog is a no-op, not
// an error: the query side handles the empty-index case on its own.
func (ix *Indexer) IndexCatalog(ctx context.Context, catalog *openapi.Catalog) (int, error) {
	docs := ix.mapper.ToDocuments(catalog.All())
	if len(docs) == 0 {
		ix.logger.Warn("catalog is empty, nothing to index")
		return 0, nil
	}

	start := time.Now()

	batchSize := ix.cfg.BatchSize
	if max := ix.embedder.MaxBatchSize(); max > 0 && batchSize > max {
		batchSize = max
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.cfg.Concurrency)

	for from := 0; from < len(docs); from += batchSize {
		to := from + batchSize
		if to > len(docs) {
			to = len(docs)
		}
		batch := docs[from:to]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, d := range batch {
				texts[i] = d.Content
			}

			vectors, err := ix.embedder.EmbedDocuments(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed batch of %d documents: %w", len(batch), err)
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("embedding count mismatch: got=%d want=%d", len(vectors), len(batch))
			}

			// Writing into the shared slice is safe: batches never overlap.
			for i := range batch {
				batch[i].Embedding = vectors[i]
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	if err := ix.store.AddDocuments(ctx, docs); err != nil {
		return 0, fmt.Errorf("upsert %d documents: %w", len(docs), err)
	}

	ix.logger.Info("catalog indexed",
		zap.Int("documents", len(docs)),
		zap.String("embedder", ix.embedder.Name()),
		zap.Duration("elapsed", time.Since(start)))

	return len(docs), nil
}
