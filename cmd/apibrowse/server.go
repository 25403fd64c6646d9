package main

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/apibrowse/api/handlers"
	"github.com/BaSui01/apibrowse/browse"
	"github.com/BaSui01/apibrowse/config"
	"github.com/BaSui01/apibrowse/internal/cache"
	"github.com/BaSui01/apibrowse/internal/metrics"
	"github.com/BaSui01/apibrowse/internal/server"
	"github.com/BaSui01/apibrowse/internal/telemetry"
	"github.com/BaSui01/apibrowse/llm/embedding"
	"github.com/BaSui01/apibrowse/llm/providers"
	"github.com/BaSui01/apibrowse/openapi"
	"github.com/BaSui01/apibrowse/rag"
)

// startupState tracks how far the bootstrap sequence has progressed.
// /ready reports unavailable until the terminal stateReady is reached.
type startupState int32

const (
	stateUninitialized startupState = iota
	stateSpecsLoaded
	stateCatalogBuilt
	stateIndexed
	stateReady
)

func (s startupState) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateSpecsLoaded:
		return "specs_loaded"
	case stateCatalogBuilt:
		return "catalog_built"
	case stateIndexed:
		return "indexed"
	case stateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Server wires the whole pipeline: spec loading, catalog, vector index,
// browse service, and the two HTTP listeners.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	state atomic.Int32

	httpManager    *server.Manager
	metricsManager *server.Manager

	catalog     *openapi.Catalog
	vectorStore rag.VectorStore
	answerCache *cache.AnswerCache

	healthHandler     *handlers.HealthHandler
	browseHandler     *handlers.BrowseHandler
	operationsHandler *handlers.OperationsHandler

	collector *metrics.Collector

	otelProviders *telemetry.Providers

	rateLimiterCancel context.CancelFunc
}

// NewServer creates a server around validated config.
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers) *Server {
	return &Server{
		cfg:           cfg,
		logger:        logger,
		otelProviders: otelProviders,
	}
}

func (s *Server) setState(st startupState) {
	s.state.Store(int32(st))
	s.logger.Info("startup state", zap.String("state", st.String()))
}

func (s *Server) currentState() startupState {
	return startupState(s.state.Load())
}

// Start runs the bootstrap sequence and brings up both listeners. The specs
// directory is loaded and indexed before any traffic is accepted as ready.
func (s *Server) Start() error {
	s.collector = metrics.NewCollector("apibrowse", s.logger)

	if err := s.buildPipeline(); err != nil {
		return err
	}

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.setState(stateReady)

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Int("operations", s.catalog.Len()),
	)

	return nil
}

// buildPipeline walks the startup sequence up to stateIndexed and creates
// the handlers.
func (s *Server) buildPipeline() error {
	ctx := context.Background()

	// 1. Load spec documents.
	descriptors, err := openapi.NewLoader(s.logger).LoadDir(ctx, s.cfg.Specs.Dir)
	if err != nil {
		return fmt.Errorf("failed to load specs from %s: %w", s.cfg.Specs.Dir, err)
	}
	s.setState(stateSpecsLoaded)

	// 2. Build the catalog.
	s.catalog = openapi.BuildCatalog(descriptors, s.logger)
	s.setState(stateCatalogBuilt)

	// 3. Select the vector store backend.
	s.vectorStore, err = s.buildVectorStore()
	if err != nil {
		return err
	}

	// 4. Embedding provider.
	embedder, err := embedding.New(s.embeddingFactoryConfig())
	if err != nil {
		return fmt.Errorf("failed to create embedding provider: %w", err)
	}

	// 5. Index the catalog.
	indexer := rag.NewIndexer(embedder, s.vectorStore, rag.IndexerConfig{
		BatchSize:   s.cfg.Indexing.BatchSize,
		Concurrency: s.cfg.Indexing.Concurrency,
	}, s.logger)

	indexStart := time.Now()
	indexed, err := indexer.IndexCatalog(ctx, s.catalog)
	if err != nil {
		return fmt.Errorf("failed to index catalog: %w", err)
	}
	s.collector.RecordIndexing(s.cfg.VectorStore.Backend, indexed, time.Since(indexStart))
	s.setState(stateIndexed)

	// 6. Chat provider.
	provider, err := providers.New(s.llmFactoryConfig(), s.logger)
	if err != nil {
		return fmt.Errorf("failed to create llm provider: %w", err)
	}

	// 7. Optional Redis answer cache.
	var answerCache browse.AnswerCache
	if s.cfg.Cache.Enabled {
		s.answerCache, err = cache.NewAnswerCache(cache.Config{
			Addr:     s.cfg.Cache.Addr,
			Password: s.cfg.Cache.Password,
			DB:       s.cfg.Cache.DB,
			TTL:      s.cfg.Cache.TTL,
		}, s.logger)
		if err != nil {
			return fmt.Errorf("failed to connect answer cache: %w", err)
		}
		answerCache = s.answerCache
	}

	// 8. Browse service and handlers.
	retriever := rag.NewRetriever(embedder, s.vectorStore, s.catalog, rag.RetrievalConfig{
		TopK:     s.cfg.Retrieval.TopK,
		MinScore: s.cfg.Retrieval.MinScore,
	}, s.logger)

	service := browse.NewService(retriever, provider, answerCache, browse.ServiceConfig{
		Model:         s.cfg.LLM.Model,
		Timeout:       s.cfg.LLM.Timeout,
		MaxTokens:     s.cfg.LLM.MaxTokens,
		Temperature:   float32(s.cfg.LLM.Temperature),
		VectorBackend: s.cfg.VectorStore.Backend,
	}, s.logger).WithMetrics(s.collector)

	s.healthHandler = handlers.NewHealthHandler(func() bool {
		return s.currentState() == stateReady
	}, s.logger)
	s.registerHealthChecks()

	s.browseHandler = handlers.NewBrowseHandler(service, s.collector, s.logger)
	s.operationsHandler = handlers.NewOperationsHandler(s.catalog, s.logger)

	return nil
}

func (s *Server) buildVectorStore() (rag.VectorStore, error) {
	switch s.cfg.VectorStore.Backend {
	case "memory", "":
		return rag.NewInMemoryVectorStore(s.logger), nil
	case "qdrant":
		q := s.cfg.VectorStore.Qdrant
		return rag.NewQdrantStore(rag.QdrantConfig{
			Host:                 q.Host,
			Port:                 q.Port,
			APIKey:               q.APIKey,
			Collection:           q.Collection,
			Timeout:              q.Timeout,
			AutoCreateCollection: q.AutoCreateCollection,
			VectorSize:           s.cfg.Embedding.Dimensions,
		}, s.logger), nil
	default:
		return nil, fmt.Errorf("unknown vector store backend %q", s.cfg.VectorStore.Backend)
	}
}

func (s *Server) embeddingFactoryConfig() embedding.FactoryConfig {
	e := s.cfg.Embedding
	return embedding.FactoryConfig{
		Provider: e.Provider,
		OpenAI: embedding.OpenAIConfig{
			BaseURL:    e.BaseURL,
			APIKey:     e.APIKey,
			Model:      e.Model,
			Dimensions: e.Dimensions,
			Timeout:    e.Timeout,
		},
		Ollama: embedding.OllamaConfig{
			BaseURL:    e.BaseURL,
			Model:      e.Model,
			Dimensions: e.Dimensions,
			Timeout:    e.Timeout,
		},
	}
}

func (s *Server) llmFactoryConfig() providers.Config {
	l := s.cfg.LLM
	return providers.Config{
		Provider: l.Provider,
		OpenAI: providers.OpenAIConfig{
			APIKey:       l.APIKey,
			BaseURL:      l.BaseURL,
			DefaultModel: l.Model,
			Timeout:      l.Timeout,
		},
		Ollama: providers.OllamaConfig{
			BaseURL:      l.BaseURL,
			DefaultModel: l.Model,
			Timeout:      l.Timeout,
		},
	}
}

func (s *Server) registerHealthChecks() {
	if s.cfg.Cache.Enabled && s.answerCache != nil {
		s.healthHandler.RegisterCheck(handlers.NewPingHealthCheck("cache", s.answerCache.Ping))
	}
	if s.cfg.VectorStore.Backend == "qdrant" {
		store := s.vectorStore
		s.healthHandler.RegisterCheck(handlers.NewPingHealthCheck("qdrant", func(ctx context.Context) error {
			_, err := store.Count(ctx)
			return err
		}))
	}
}

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealth)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	mux.HandleFunc("/ai/browse", s.browseHandler.HandleBrowse)
	mux.HandleFunc("/ai/operations", s.operationsHandler.HandleList)
	mux.HandleFunc(handlers.OperationsPathPrefix, s.operationsHandler.HandleGet)

	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
		OTelTracing(),
	}
	if s.cfg.Server.RateLimit > 0 {
		middlewares = append(middlewares,
			RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimit, s.cfg.Server.RateLimitBurst, s.logger))
	}
	handler := Chain(mux, middlewares...)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// WaitForShutdown blocks until a shutdown signal, then tears everything down.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown stops the listeners and closes external connections.
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown failed", zap.Error(err))
		}
	}

	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown failed", zap.Error(err))
		}
	}

	if s.answerCache != nil {
		if err := s.answerCache.Close(); err != nil {
			s.logger.Error("Answer cache close failed", zap.Error(err))
		}
	}

	if s.otelProviders != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := s.otelProviders.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("Telemetry shutdown failed", zap.Error(err))
		}
		cancel()
	}

	s.logger.Info("Graceful shutdown complete")
}
