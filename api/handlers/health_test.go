package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHealthHandlerHealth(t *testing.T) {
	handler := NewHealthHandler(func() bool { return false }, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.HandleHealth(rec, req)

	// Liveness is independent of readiness.
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
}

func TestHealthHandlerReadyBeforeStartupFinishes(t *testing.T) {
	var ready atomic.Bool
	handler := NewHealthHandler(ready.Load, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	handler.HandleReady(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"starting"`)

	ready.Store(true)
	rec = httptest.NewRecorder()
	handler.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthHandlerReadyChecks(t *testing.T) {
	handler := NewHealthHandler(nil, zap.NewNop())
	handler.RegisterCheck(NewPingHealthCheck("cache", func(ctx context.Context) error {
		return nil
	}))
	handler.RegisterCheck(NewPingHealthCheck("qdrant", func(ctx context.Context) error {
		return errors.New("connection refused")
	}))

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	handler.HandleReady(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `"unhealthy"`)
	assert.Contains(t, body, `"cache"`)
	assert.Contains(t, body, `"qdrant"`)
	assert.Contains(t, body, "connection refused")
}

func TestHealthHandlerVersion(t *testing.T) {
	handler := NewHealthHandler(nil, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	rec := httptest.NewRecorder()
	handler.HandleVersion("1.2.3", "2026-08-26", "abc1234")(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "1.2.3")
	assert.Contains(t, body, "abc1234")
}
