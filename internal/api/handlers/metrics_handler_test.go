package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/insurance-qa/internal/application/services"
	"github.com/zatekoja/insurance-qa/internal/domain/providers"
)

type stubCacheStats struct {
	stats providers.CacheStats
}

func (s *stubCacheStats) CacheStats() providers.CacheStats { return s.stats }

func TestMetricsHandler_Snapshot(t *testing.T) {
	analytics := services.NewAnalyticsRecorder()
	analytics.Record("query", 200, 10*time.Millisecond)
	analytics.Record("query", 502, 5*time.Millisecond)

	handler := NewMetricsHandler(analytics, &stubCacheStats{stats: providers.CacheStats{Hits: 3, Misses: 7, Size: 2}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil)
	rec := httptest.NewRecorder()
	handler.Snapshot(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body metricsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	require.Contains(t, body.Endpoints, "query")
	assert.Equal(t, uint64(2), body.Endpoints["query"].Count)
	assert.Equal(t, uint64(1), body.Endpoints["query"].Errors)
	assert.Equal(t, uint64(3), body.Cache.Hits)
	assert.Equal(t, uint64(7), body.Cache.Misses)
}

func TestMetricsHandler_Reset(t *testing.T) {
	analytics := services.NewAnalyticsRecorder()
	analytics.Record("query", 200, time.Millisecond)

	handler := NewMetricsHandler(analytics, &stubCacheStats{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/metrics/reset", nil)
	rec := httptest.NewRecorder()
	handler.Reset(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, analytics.Snapshot())
}
