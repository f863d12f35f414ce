package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/zatekoja/insurance-qa/internal/domain/entities"
	"github.com/zatekoja/insurance-qa/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/insurance-qa/pkg/errors"
	"github.com/zatekoja/insurance-qa/pkg/normalize"
)

// QueryService defines the pipeline operations used by the handler.
type QueryService interface {
	Answer(ctx context.Context, input normalize.Input) (*entities.AnswerBundle, error)
}

// QueryHandler handles question answering requests.
type QueryHandler struct {
	service QueryService
	metrics *observability.Metrics
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(service QueryService, metrics *observability.Metrics) *QueryHandler {
	return &QueryHandler{service: service, metrics: metrics}
}

// Answer handles POST /api/v1/query
func (h *QueryHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var input normalize.Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	bundle, err := h.service.Answer(r.Context(), input)
	if err != nil {
		respondWithError(w, statusForError(err), err.Error())
		return
	}

	if h.metrics != nil {
		h.recordMetrics(r.Context(), bundle)
	}

	respondWithJSON(w, http.StatusOK, bundle)
}

func (h *QueryHandler) recordMetrics(ctx context.Context, bundle *entities.AnswerBundle) {
	if bundle.Stats.CacheHit {
		observability.RecordCacheHit(ctx, h.metrics)
	} else {
		observability.RecordCacheMiss(ctx, h.metrics)
		observability.RecordStageMetric(ctx, h.metrics, "embedding", time.Duration(bundle.Stats.EmbeddingMs)*time.Millisecond)
		observability.RecordStageMetric(ctx, h.metrics, "retrieval", time.Duration(bundle.Stats.RetrievalMs)*time.Millisecond)
		observability.RecordStageMetric(ctx, h.metrics, "generation", time.Duration(bundle.Stats.GenerationMs)*time.Millisecond)
	}
	if bundle.Stats.EmbeddingFallback {
		observability.RecordFallback(ctx, h.metrics, "embedding")
	}
	if bundle.Stats.GenerationFallback {
		observability.RecordFallback(ctx, h.metrics, "generation")
	}
}

// statusForError maps the error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeRateLimited:
		return http.StatusTooManyRequests
	case apperrors.ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrorTypeProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{"error": message})
}
