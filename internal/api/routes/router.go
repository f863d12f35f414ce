package routes

import (
	"net/http"

	"github.com/zatekoja/insurance-qa/internal/api/handlers"
	"github.com/zatekoja/insurance-qa/internal/api/middleware"
	"github.com/zatekoja/insurance-qa/internal/infrastructure/observability"
)

// Router holds all route handlers

type Router struct {
	mux *http.ServeMux

	queryHandler   *handlers.QueryHandler
	metricsHandler *handlers.MetricsHandler

	metrics *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	queryHandler *handlers.QueryHandler,
	metricsHandler *handlers.MetricsHandler,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:            http.NewServeMux(),
		queryHandler:   queryHandler,
		metricsHandler: metricsHandler,
		metrics:        metrics,
	}
}

// Setup registers all routes and returns the wrapped handler
func (rt *Router) Setup() http.Handler {
	rt.mux.HandleFunc("POST /api/v1/query", rt.queryHandler.Answer)
	rt.mux.HandleFunc("GET /api/v1/metrics", rt.metricsHandler.Snapshot)
	rt.mux.HandleFunc("POST /api/v1/metrics/reset", rt.metricsHandler.Reset)

	rt.mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Observability wraps logging so access logs carry the active trace.
	var handler http.Handler = rt.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(rt.metrics)(handler)
	handler = middleware.CORSMiddleware(handler)
	return handler
}
