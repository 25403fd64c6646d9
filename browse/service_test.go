package browse

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/BaSui01/apibrowse/openapi"
	"github.com/BaSui01/apibrowse/rag"
	"github.com/BaSui01/apibrowse/testutil/mocks"
)

type mapCache struct {
	mu sync.Mutex
	m  map[string]string
}

func newMapCache() *mapCache { return &mapCache{m: make(map[string]string)} }

func (c *mapCache) Get(ctx context.Context, query string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[query]
	return v, ok
}

func (c *mapCache) Set(ctx context.Context, query, answer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[query] = answer
}

// indexedService builds the full pipeline over the given catalog with a
// token-overlap embedder, so similarity ranking behaves realistically.
func indexedService(t *testing.T, catalog *openapi.Catalog, provider *mocks.MockProvider, cfg ServiceConfig) (*Service, *mocks.CountingVectorStore) {
	t.Helper()

	embedder := mocks.NewTokenEmbedder(256)
	store := mocks.NewCountingVectorStore()

	if catalog.Len() > 0 {
		ix := rag.NewIndexer(embedder, store, rag.IndexerConfig{Concurrency: 1}, nil)
		_, err := ix.IndexCatalog(context.Background(), catalog)
		require.NoError(t, err)
	}

	retriever := rag.NewRetriever(embedder, store, catalog, rag.RetrievalConfig{TopK: 5}, nil)
	return NewService(retriever, provider, nil, cfg, nil), store
}

func indicesCatalog(t *testing.T) *openapi.Catalog {
	t.Helper()
	data, err := os.ReadFile("../openapi/testdata/index-levels.json")
	require.NoError(t, err)

	ops, err := openapi.NewLoader(nil).LoadBytes(context.Background(), data, "index-levels.json")
	require.NoError(t, err)
	return openapi.BuildCatalog(ops, nil)
}

func TestAnswer_EndToEnd_RanksLevelsAboveConstituents(t *testing.T) {
	provider := mocks.NewMockProvider().
		WithResponse("Call GET /indices/{indexName}/levels with indexName=NIFTY 50.")
	svc, _ := indexedService(t, indicesCatalog(t), provider, ServiceConfig{})

	answer, err := svc.Answer(context.Background(), "How do I get index levels for NIFTY 50?")
	require.NoError(t, err)

	assert.NotEmpty(t, answer)
	assert.Contains(t, answer, "GET")
	assert.Contains(t, answer, "/indices/{indexName}/levels")

	// The prompt must list getIndexLevels ahead of getConstituents.
	prompt := provider.LastPrompt()
	require.Contains(t, prompt, "getIndexLevels")
	require.Contains(t, prompt, "getConstituents")
	assert.Less(t,
		strings.Index(prompt, "getIndexLevels"),
		strings.Index(prompt, "getConstituents"))
}

func TestAnswer_BlankQuery_ReturnsGuidanceWithoutAnyCalls(t *testing.T) {
	provider := mocks.NewMockProvider()
	svc, store := indexedService(t, indicesCatalog(t), provider, ServiceConfig{})

	for _, query := range []string{"", "   "} {
		answer, err := svc.Answer(context.Background(), query)
		require.NoError(t, err)
		assert.Equal(t, GuidanceMessage, answer)
	}

	assert.Zero(t, store.SearchCallCount())
	assert.Zero(t, provider.CallCount())
}

func TestAnswer_EmptyCatalog_ReturnsNoMatchWithoutLLM(t *testing.T) {
	provider := mocks.NewMockProvider()
	svc, _ := indexedService(t, openapi.BuildCatalog(nil, nil), provider, ServiceConfig{})

	answer, err := svc.Answer(context.Background(), "How do I get index levels?")
	require.NoError(t, err)
	assert.Equal(t, NoMatchMessage, answer)
	assert.Zero(t, provider.CallCount())
}

func TestAnswer_GenerationTimeout_IsClassified(t *testing.T) {
	provider := mocks.NewMockProvider().WithDelay(200 * time.Millisecond)
	svc, _ := indexedService(t, indicesCatalog(t), provider, ServiceConfig{Timeout: 20 * time.Millisecond})

	answer, err := svc.Answer(context.Background(), "How do I get index levels?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationTimeout)
	assert.Empty(t, answer)
}

func TestAnswer_ProviderFailure_DoesNotLeakDetail(t *testing.T) {
	provider := mocks.NewMockProvider().WithError(errors.New("connection refused to 10.0.0.7:443"))
	svc, _ := indexedService(t, indicesCatalog(t), provider, ServiceConfig{})

	answer, err := svc.Answer(context.Background(), "How do I get index levels?")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Empty(t, answer)
	assert.NotContains(t, err.Error(), "10.0.0.7")
}

func TestAnswer_RetrievalFailure_IsClassified(t *testing.T) {
	embedder := mocks.NewTokenEmbedder(64)
	store := mocks.NewCountingVectorStore().WithSearchError(errors.New("qdrant unreachable"))
	retriever := rag.NewRetriever(embedder, store, indicesCatalog(t), rag.RetrievalConfig{}, nil)
	provider := mocks.NewMockProvider()
	svc := NewService(retriever, provider, nil, ServiceConfig{}, nil)

	_, err := svc.Answer(context.Background(), "index levels")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.NotContains(t, err.Error(), "qdrant")
	assert.Zero(t, provider.CallCount())
}

func TestAnswer_CacheServesRepeatQueries(t *testing.T) {
	embedder := mocks.NewTokenEmbedder(256)
	store := mocks.NewCountingVectorStore()
	catalog := indicesCatalog(t)

	ix := rag.NewIndexer(embedder, store, rag.IndexerConfig{Concurrency: 1}, nil)
	_, err := ix.IndexCatalog(context.Background(), catalog)
	require.NoError(t, err)

	retriever := rag.NewRetriever(embedder, store, catalog, rag.RetrievalConfig{}, nil)
	provider := mocks.NewMockProvider().WithResponse("use the levels endpoint")
	svc := NewService(retriever, provider, newMapCache(), ServiceConfig{}, nil)

	first, err := svc.Answer(context.Background(), "How do I get index levels?")
	require.NoError(t, err)
	second, err := svc.Answer(context.Background(), "How do I get index levels?")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.CallCount())
}

type retrievalSample struct {
	backend    string
	candidates int
}

type llmSample struct {
	provider, model, status        string
	promptTokens, completionTokens int
}

// metricsRecorder is a Metrics double that records every call.
type metricsRecorder struct {
	mu         sync.Mutex
	retrievals []retrievalSample
	llmCalls   []llmSample
	hits       int
	misses     int
}

func (r *metricsRecorder) RecordRetrieval(backend string, candidates int, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retrievals = append(r.retrievals, retrievalSample{backend: backend, candidates: candidates})
}

func (r *metricsRecorder) RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llmCalls = append(r.llmCalls, llmSample{
		provider: provider, model: model, status: status,
		promptTokens: promptTokens, completionTokens: completionTokens,
	})
}

func (r *metricsRecorder) RecordCacheHit(cacheType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hits++
}

func (r *metricsRecorder) RecordCacheMiss(cacheType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.misses++
}

func TestAnswer_RecordsPipelineMetrics(t *testing.T) {
	embedder := mocks.NewTokenEmbedder(256)
	store := mocks.NewCountingVectorStore()
	catalog := indicesCatalog(t)

	ix := rag.NewIndexer(embedder, store, rag.IndexerConfig{Concurrency: 1}, nil)
	_, err := ix.IndexCatalog(context.Background(), catalog)
	require.NoError(t, err)

	retriever := rag.NewRetriever(embedder, store, catalog, rag.RetrievalConfig{TopK: 5}, nil)
	provider := mocks.NewMockProvider().WithResponse("use the levels endpoint")
	rec := &metricsRecorder{}
	svc := NewService(retriever, provider, newMapCache(), ServiceConfig{Model: "gpt-4o-mini"}, nil).
		WithMetrics(rec)

	_, err = svc.Answer(context.Background(), "How do I get index levels?")
	require.NoError(t, err)

	assert.Equal(t, 0, rec.hits)
	assert.Equal(t, 1, rec.misses)

	require.Len(t, rec.retrievals, 1)
	assert.Equal(t, "memory", rec.retrievals[0].backend)
	assert.Positive(t, rec.retrievals[0].candidates)

	require.Len(t, rec.llmCalls, 1)
	assert.Equal(t, "mock", rec.llmCalls[0].provider)
	assert.Equal(t, "gpt-4o-mini", rec.llmCalls[0].model)
	assert.Equal(t, "success", rec.llmCalls[0].status)
	assert.Equal(t, 10, rec.llmCalls[0].promptTokens)
	assert.Equal(t, 20, rec.llmCalls[0].completionTokens)

	// A repeat query is served from the cache: no new retrieval or LLM call.
	_, err = svc.Answer(context.Background(), "How do I get index levels?")
	require.NoError(t, err)

	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 1, rec.misses)
	assert.Len(t, rec.retrievals, 1)
	assert.Len(t, rec.llmCalls, 1)
}

func TestAnswer_GenerationTimeout_RecordsLLMStatus(t *testing.T) {
	provider := mocks.NewMockProvider().WithDelay(200 * time.Millisecond)
	rec := &metricsRecorder{}
	svc, _ := indexedService(t, indicesCatalog(t), provider, ServiceConfig{Timeout: 20 * time.Millisecond})
	svc.WithMetrics(rec)

	_, err := svc.Answer(context.Background(), "How do I get index levels?")
	require.ErrorIs(t, err, ErrGenerationTimeout)

	require.Len(t, rec.llmCalls, 1)
	assert.Equal(t, "timeout", rec.llmCalls[0].status)
	assert.Zero(t, rec.llmCalls[0].promptTokens)
	assert.Zero(t, rec.llmCalls[0].completionTokens)
}

func TestAnswer_EmitsStageSpansAndQueryCounter(t *testing.T) {
	prevTP := otel.GetTracerProvider()
	prevMP := otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	})

	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))

	provider := mocks.NewMockProvider().WithResponse("use the levels endpoint")
	svc, _ := indexedService(t, indicesCatalog(t), provider, ServiceConfig{})

	_, err := svc.Answer(context.Background(), "How do I get index levels?")
	require.NoError(t, err)

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.Contains(t, names, "browse.retrieve")
	assert.Contains(t, names, "browse.generate")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var answered int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "browse.queries" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key("outcome")); ok && v.AsString() == "answered" {
					answered += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(1), answered)
}

func TestAnswer_SystemPromptAndUserPromptAreSent(t *testing.T) {
	provider := mocks.NewMockProvider()
	svc, _ := indexedService(t, indicesCatalog(t), provider, ServiceConfig{Model: "gpt-4o-mini"})

	_, err := svc.Answer(context.Background(), "How do I get index levels?")
	require.NoError(t, err)

	calls := provider.Calls()
	require.Len(t, calls, 1)
	req := calls[0].Request
	assert.Equal(t, "gpt-4o-mini", req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, systemPrompt, req.Messages[0].Content)
	assert.Contains(t, req.Messages[1].Content, "candidate API operations")
}
