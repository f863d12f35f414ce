package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zatekoja/insurance-qa/internal/domain/entities"
	"github.com/zatekoja/insurance-qa/internal/domain/providers"
	"github.com/zatekoja/insurance-qa/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/insurance-qa/pkg/errors"
	"github.com/zatekoja/insurance-qa/pkg/normalize"
)

// Pipeline stage names, also used as analytics endpoints.
const (
	stageNormalize  = "pipeline.normalize"
	stageCacheRead  = "pipeline.cache_lookup"
	stageEmbedding  = "pipeline.embedding"
	stageRetrieval  = "pipeline.retrieval"
	stageGeneration = "pipeline.generation"
	stageCacheWrite = "pipeline.cache_write"
	endpointQuery   = "query"
)

// PipelineService sequences the query stages under one overall deadline:
// normalize, cache lookup, and on a miss embedding, retrieval, generation
// and cache write. Each stage receives the remaining time budget, not a
// fixed per-stage allowance. On failure nothing is written to the cache.
type PipelineService struct {
	normalizer *normalize.Normalizer
	cache      providers.AnswerCache
	embedder   *EmbeddingService
	retriever  *RetrievalService
	generator  *GenerationService
	analytics  *AnalyticsRecorder
	deadline   time.Duration
}

// NewPipelineService wires the orchestrator.
func NewPipelineService(
	normalizer *normalize.Normalizer,
	cache providers.AnswerCache,
	embedder *EmbeddingService,
	retriever *RetrievalService,
	generator *GenerationService,
	analytics *AnalyticsRecorder,
	deadline time.Duration,
) *PipelineService {
	if deadline <= 0 {
		deadline = 10 * time.Second
	}
	return &PipelineService{
		normalizer: normalizer,
		cache:      cache,
		embedder:   embedder,
		retriever:  retriever,
		generator:  generator,
		analytics:  analytics,
		deadline:   deadline,
	}
}

// Answer runs the full pipeline for one raw request.
func (s *PipelineService) Answer(ctx context.Context, input normalize.Input) (*entities.AnswerBundle, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.deadline)
	defer cancel()

	logger := observability.LoggerFromContext(ctx).With().Str("run_id", uuid.NewString()).Logger()

	// NORMALIZING
	req, err := s.normalizer.Normalize(input)
	if err != nil {
		// A rejected request records exactly one sample.
		s.analytics.Record(endpointQuery, statusOf(err), time.Since(start))
		return nil, err
	}
	s.analytics.Record(stageNormalize, 200, time.Since(start))

	// CACHE_LOOKUP
	lookupStart := time.Now()
	if cached, ok := s.cache.Get(ctx, req.Fingerprint); ok {
		s.analytics.Record(stageCacheRead, 200, time.Since(lookupStart))
		hit := cached.CloneForHit()
		hit.Stats.TotalMs = time.Since(start).Milliseconds()
		s.analytics.Record(endpointQuery, 200, time.Since(start))
		logger.Debug().Str("fingerprint", req.Fingerprint).Msg("cache hit")
		return hit, nil
	}
	s.analytics.Record(stageCacheRead, 404, time.Since(lookupStart))

	stats := entities.StageStats{AppliedFilters: req.Filters}

	// EMBEDDING
	if err := s.checkBudget(ctx); err != nil {
		return nil, s.fail(logger, stageEmbedding, start, err)
	}
	embedStart := time.Now()
	embedding := s.embedder.Embed(ctx, req.QueryText)
	stats.EmbeddingMs = time.Since(embedStart).Milliseconds()
	s.analytics.Record(stageEmbedding, outcomeStatus(embedding.Status, embedding.Err), time.Since(embedStart))
	if !embedding.OK() {
		return nil, s.fail(logger, stageEmbedding, start, embedding.Err)
	}
	stats.EmbeddingFallback = embedding.Degraded()

	// RETRIEVING
	if err := s.checkBudget(ctx); err != nil {
		return nil, s.fail(logger, stageRetrieval, start, err)
	}
	retrieveStart := time.Now()
	retrieval := s.retriever.Retrieve(ctx, embedding.Value, req)
	stats.RetrievalMs = time.Since(retrieveStart).Milliseconds()
	s.analytics.Record(stageRetrieval, outcomeStatus(retrieval.Status, retrieval.Err), time.Since(retrieveStart))
	if !retrieval.OK() {
		return nil, s.fail(logger, stageRetrieval, start, retrieval.Err)
	}

	// GENERATING
	if err := s.checkBudget(ctx); err != nil {
		return nil, s.fail(logger, stageGeneration, start, err)
	}
	generateStart := time.Now()
	generation := s.generator.Generate(ctx, req.QueryText, retrieval.Value)
	stats.GenerationMs = time.Since(generateStart).Milliseconds()
	s.analytics.Record(stageGeneration, outcomeStatus(generation.Status, generation.Err), time.Since(generateStart))
	if !generation.OK() {
		return nil, s.fail(logger, stageGeneration, start, generation.Err)
	}
	stats.GenerationFallback = generation.Degraded()

	stats.TotalMs = time.Since(start).Milliseconds()
	bundle := &entities.AnswerBundle{
		Answer:    generation.Value.Answer,
		Sources:   toSources(retrieval.Value),
		Stats:     stats,
		CreatedAt: time.Now(),
	}

	// CACHE_WRITE
	writeStart := time.Now()
	if err := s.cache.Set(ctx, req.Fingerprint, bundle); err != nil {
		// A failed cache write degrades to an uncached answer, not an error.
		logger.Warn().Err(err).Msg("cache write failed")
		s.analytics.Record(stageCacheWrite, 500, time.Since(writeStart))
	} else {
		s.analytics.Record(stageCacheWrite, 200, time.Since(writeStart))
	}

	s.analytics.Record(endpointQuery, 200, time.Since(start))
	return bundle, nil
}

// CacheStats exposes the answer cache counters for the metrics surface.
func (s *PipelineService) CacheStats() providers.CacheStats {
	return s.cache.Stats()
}

// checkBudget short-circuits to a timeout before starting a stage with zero
// remaining budget.
func (s *PipelineService) checkBudget(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewTimeoutError("pipeline deadline exhausted", err)
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= 0 {
		return apperrors.NewTimeoutError("pipeline deadline exhausted", nil)
	}
	return nil
}

// fail records the terminal transition and surfaces a single top-level error.
func (s *PipelineService) fail(logger zerolog.Logger, stage string, start time.Time, err error) error {
	if err == nil {
		err = apperrors.NewInternalError("pipeline stage failed", nil)
	}
	logger.Error().Err(err).Str("stage", stage).Msg("pipeline failed")
	s.analytics.Record(endpointQuery, statusOf(err), time.Since(start))
	return err
}

func toSources(candidates []entities.RetrievalCandidate) []entities.Source {
	sources := make([]entities.Source, 0, len(candidates))
	for _, c := range candidates {
		sources = append(sources, entities.Source{
			FragmentID: c.FragmentID,
			InsurerID:  c.InsurerID,
			Category:   c.Category,
			Similarity: c.Similarity,
			Preview:    preview(c.Text),
		})
	}
	return sources
}

func preview(text string) string {
	const maxPreview = 200
	runes := []rune(text)
	if len(runes) <= maxPreview {
		return text
	}
	return string(runes[:maxPreview]) + "…"
}

// outcomeStatus maps a stage outcome onto a status code for analytics.
func outcomeStatus(status entities.OutcomeStatus, err error) int {
	switch status {
	case entities.OutcomeSuccess:
		return 200
	case entities.OutcomeFallback:
		return 203
	default:
		return statusOf(err)
	}
}

// statusOf maps the error taxonomy onto HTTP-equivalent status codes.
func statusOf(err error) int {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeValidation:
		return 400
	case apperrors.ErrorTypeUnauthorized:
		return 401
	case apperrors.ErrorTypeNotFound:
		return 404
	case apperrors.ErrorTypeRateLimited:
		return 429
	case apperrors.ErrorTypeTimeout:
		return 504
	case apperrors.ErrorTypeProvider:
		return 502
	default:
		return 500
	}
}
