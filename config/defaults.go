package config

import "time"

// DefaultConfig returns a configuration that runs out of the box with a local
// Ollama instance and an in-memory vector store.
func DefaultConfig() *Config {
	return &Config{
		Server:      DefaultServerConfig(),
		Specs:       DefaultSpecsConfig(),
		VectorStore: DefaultVectorStoreConfig(),
		Embedding:   DefaultEmbeddingConfig(),
		LLM:         DefaultLLMConfig(),
		Retrieval:   DefaultRetrievalConfig(),
		Indexing:    DefaultIndexingConfig(),
		Cache:       DefaultCacheConfig(),
		Log:         DefaultLogConfig(),
		Telemetry:   DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig returns the default HTTP server settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimit:       50,
		RateLimitBurst:  100,
	}
}

// DefaultSpecsConfig returns the default spec source location.
func DefaultSpecsConfig() SpecsConfig {
	return SpecsConfig{
		Dir: "./specs",
	}
}

// DefaultVectorStoreConfig returns the default vector store settings.
func DefaultVectorStoreConfig() VectorStoreConfig {
	return VectorStoreConfig{
		Backend: "memory",
		Qdrant: QdrantConfig{
			Host:                 "localhost",
			Port:                 6333,
			Collection:           "api_operations",
			Timeout:              30 * time.Second,
			AutoCreateCollection: true,
		},
	}
}

// DefaultEmbeddingConfig returns the default embedding settings.
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		Provider: "ollama",
		Model:    "nomic-embed-text",
		Timeout:  30 * time.Second,
	}
}

// DefaultLLMConfig returns the default chat provider settings.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:    "ollama",
		Model:       "llama3.1",
		Timeout:     30 * time.Second,
		MaxTokens:   1024,
		Temperature: 0.2,
	}
}

// DefaultRetrievalConfig returns the default candidate selection settings.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TopK:     5,
		MinScore: 0,
	}
}

// DefaultIndexingConfig returns the default indexing settings.
func DefaultIndexingConfig() IndexingConfig {
	return IndexingConfig{
		BatchSize:   32,
		Concurrency: 4,
	}
}

// DefaultCacheConfig returns the default answer cache settings. Disabled by
// default; answers are regenerated per request.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: false,
		Addr:    "localhost:6379",
		TTL:     10 * time.Minute,
	}
}

// DefaultLogConfig returns the default logging settings.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "json",
		OutputPaths:  []string{"stdout"},
		EnableCaller: true,
	}
}

// DefaultTelemetryConfig returns the default tracing settings.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "apibrowse",
		SampleRate:   1.0,
	}
}
