package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BaSui01/apibrowse/api"
	"github.com/BaSui01/apibrowse/browse"
	"github.com/BaSui01/apibrowse/openapi"
	"github.com/BaSui01/apibrowse/rag"
	"github.com/BaSui01/apibrowse/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testCatalog(t *testing.T) *openapi.Catalog {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("..", "..", "openapi", "testdata", "orders.json"))
	require.NoError(t, err)

	descriptors, err := openapi.NewLoader(nil).LoadBytes(context.Background(), data, "orders")
	require.NoError(t, err)

	return openapi.BuildCatalog(descriptors, nil)
}

func newBrowseService(t *testing.T, catalog *openapi.Catalog, provider *mocks.MockProvider) *browse.Service {
	t.Helper()

	embedder := mocks.NewTokenEmbedder(256)
	store := rag.NewInMemoryVectorStore(nil)

	indexer := rag.NewIndexer(embedder, store, rag.IndexerConfig{}, zap.NewNop())
	_, err := indexer.IndexCatalog(context.Background(), catalog)
	require.NoError(t, err)

	retriever := rag.NewRetriever(embedder, store, catalog, rag.RetrievalConfig{TopK: 5}, zap.NewNop())
	return browse.NewService(retriever, provider, nil, browse.ServiceConfig{}, zap.NewNop())
}

func postBrowse(t *testing.T, handler *BrowseHandler, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/ai/browse", bytes.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.HandleBrowse(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestBrowseHandlerAnswers(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse("Call GET /orders to list orders.")
	service := newBrowseService(t, testCatalog(t), provider)
	handler := NewBrowseHandler(service, nil, zap.NewNop())

	body, _ := json.Marshal(api.BrowseRequest{Query: "How do I list all orders?"})
	rec := postBrowse(t, handler, body, "application/json")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)

	data, _ := json.Marshal(resp.Data)
	var answer api.BrowseAnswer
	require.NoError(t, json.Unmarshal(data, &answer))
	assert.Equal(t, "Call GET /orders to list orders.", answer.Answer)
	assert.Equal(t, 1, provider.CallCount())
}

func TestBrowseHandlerBlankQuery(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse("unused")
	service := newBrowseService(t, testCatalog(t), provider)
	handler := NewBrowseHandler(service, nil, zap.NewNop())

	body, _ := json.Marshal(api.BrowseRequest{Query: "   "})
	rec := postBrowse(t, handler, body, "application/json")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)

	data, _ := json.Marshal(resp.Data)
	var answer api.BrowseAnswer
	require.NoError(t, json.Unmarshal(data, &answer))
	assert.Equal(t, browse.GuidanceMessage, answer.Answer)
	assert.Zero(t, provider.CallCount())
}

func TestBrowseHandlerTimeout(t *testing.T) {
	provider := mocks.NewMockProvider().
		WithResponse("too late").
		WithDelay(200 * time.Millisecond)
	embedder := mocks.NewTokenEmbedder(256)
	store := rag.NewInMemoryVectorStore(nil)
	catalog := testCatalog(t)

	indexer := rag.NewIndexer(embedder, store, rag.IndexerConfig{}, zap.NewNop())
	_, err := indexer.IndexCatalog(context.Background(), catalog)
	require.NoError(t, err)

	retriever := rag.NewRetriever(embedder, store, catalog, rag.RetrievalConfig{TopK: 5}, zap.NewNop())
	service := browse.NewService(retriever, provider, nil,
		browse.ServiceConfig{Timeout: 20 * time.Millisecond}, zap.NewNop())
	handler := NewBrowseHandler(service, nil, zap.NewNop())

	body, _ := json.Marshal(api.BrowseRequest{Query: "How do I list all orders?"})
	rec := postBrowse(t, handler, body, "application/json")

	require.Equal(t, http.StatusGatewayTimeout, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeGenerationTimeout, resp.Error.Code)
	assert.Equal(t, browse.ErrGenerationTimeout.Error(), resp.Error.Message)
	assert.True(t, resp.Error.Retryable)
}

func TestBrowseHandlerProviderFailure(t *testing.T) {
	provider := mocks.NewMockProvider().WithError(errors.New("connection refused to 10.0.0.7:443"))
	service := newBrowseService(t, testCatalog(t), provider)
	handler := NewBrowseHandler(service, nil, zap.NewNop())

	body, _ := json.Marshal(api.BrowseRequest{Query: "How do I list all orders?"})
	rec := postBrowse(t, handler, body, "application/json")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeGenerationFailed, resp.Error.Code)
	assert.Equal(t, browse.ErrGenerationFailed.Error(), resp.Error.Message)
	assert.NotContains(t, rec.Body.String(), "10.0.0.7")
}

func TestBrowseHandlerRejectsBadRequests(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse("unused")
	service := newBrowseService(t, testCatalog(t), provider)
	handler := NewBrowseHandler(service, nil, zap.NewNop())

	t.Run("wrong method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ai/browse", nil)
		rec := httptest.NewRecorder()
		handler.HandleBrowse(rec, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("wrong content type", func(t *testing.T) {
		rec := postBrowse(t, handler, []byte(`{"query":"x"}`), "text/plain")
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := postBrowse(t, handler, []byte(`{"query":`), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeResponse(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeInvalidRequest, resp.Error.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		rec := postBrowse(t, handler, []byte(`{"question":"x"}`), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	assert.Zero(t, provider.CallCount())
}
