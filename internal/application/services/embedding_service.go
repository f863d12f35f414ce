package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/insurance-qa/internal/domain/entities"
	"github.com/zatekoja/insurance-qa/internal/domain/providers"
	apperrors "github.com/zatekoja/insurance-qa/pkg/errors"
	"github.com/zatekoja/insurance-qa/pkg/retry"
)

const embeddingProviderID = "embedding"

// EmbeddingService turns query text into a vector through the rate-limited
// retry executor. When the real provider is disabled or unreachable it
// degrades to the deterministic hash embedder instead of failing, and the
// degradation is reported through the stage outcome.
type EmbeddingService struct {
	provider providers.EmbeddingProvider
	fallback providers.EmbeddingProvider
	executor *retry.Executor
	maxChars int
}

// NewEmbeddingService creates the embedding stage. provider may be nil when
// the external embedder is disabled; the fallback is always required.
func NewEmbeddingService(provider, fallback providers.EmbeddingProvider, executor *retry.Executor, maxChars int) *EmbeddingService {
	if maxChars <= 0 {
		maxChars = 8000
	}
	return &EmbeddingService{
		provider: provider,
		fallback: fallback,
		executor: executor,
		maxChars: maxChars,
	}
}

// Embed produces the query vector. Over-length input is truncated at a rune
// boundary, never rejected.
func (s *EmbeddingService) Embed(ctx context.Context, text string) entities.Outcome[[]float32] {
	text = s.truncate(text)

	if s.provider == nil {
		vector, err := s.fallback.Embed(ctx, text)
		if err != nil {
			return entities.Failed[[]float32](apperrors.NewInternalError("fallback embedding failed", err))
		}
		return entities.Fallback(vector, "embedding provider disabled")
	}

	var vector []float32
	err := s.executor.Execute(ctx, embeddingProviderID, func(ctx context.Context) error {
		var embedErr error
		vector, embedErr = s.provider.Embed(ctx, text)
		return embedErr
	})
	if err == nil {
		return entities.Success(vector)
	}

	// Deadline and rate-limit exhaustion surface to the caller; everything
	// else degrades to the deterministic embedding.
	if apperrors.IsTimeout(err) || apperrors.IsRateLimited(err) || apperrors.IsValidation(err) {
		return entities.Failed[[]float32](err)
	}

	log.Warn().Err(err).Msg("embedding provider unavailable, using hash fallback")
	vector, fallbackErr := s.fallback.Embed(ctx, text)
	if fallbackErr != nil {
		return entities.Failed[[]float32](apperrors.NewInternalError("fallback embedding failed", fallbackErr))
	}
	return entities.Fallback(vector, "embedding provider unavailable")
}

// truncate bounds the input length at a deterministic rune boundary.
func (s *EmbeddingService) truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= s.maxChars {
		return text
	}
	log.Warn().
		Int("original_chars", len(runes)).
		Int("max_chars", s.maxChars).
		Msg("embedding input truncated")
	return string(runes[:s.maxChars])
}
