package handlers

import (
	"net/http"

	"github.com/zatekoja/insurance-qa/internal/application/services"
	"github.com/zatekoja/insurance-qa/internal/domain/providers"
)

// CacheStatsSource exposes answer cache counters.
type CacheStatsSource interface {
	CacheStats() providers.CacheStats
}

// MetricsHandler serves the operator-facing metrics snapshot.
type MetricsHandler struct {
	analytics *services.AnalyticsRecorder
	cache     CacheStatsSource
}

// NewMetricsHandler creates a new metrics handler.
func NewMetricsHandler(analytics *services.AnalyticsRecorder, cache CacheStatsSource) *MetricsHandler {
	return &MetricsHandler{analytics: analytics, cache: cache}
}

type metricsResponse struct {
	Endpoints map[string]services.EndpointSnapshot `json:"endpoints"`
	Cache     providers.CacheStats                 `json:"cache"`
}

// Snapshot handles GET /api/v1/metrics
func (h *MetricsHandler) Snapshot(w http.ResponseWriter, _ *http.Request) {
	respondWithJSON(w, http.StatusOK, metricsResponse{
		Endpoints: h.analytics.Snapshot(),
		Cache:     h.cache.CacheStats(),
	})
}

// Reset handles POST /api/v1/metrics/reset. Counters are cleared only by
// this explicit operator action, never by normal traffic.
func (h *MetricsHandler) Reset(w http.ResponseWriter, _ *http.Request) {
	h.analytics.Reset()
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
