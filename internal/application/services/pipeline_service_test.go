package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/insurance-qa/internal/domain/entities"
	"github.com/zatekoja/insurance-qa/internal/domain/providers"
	apperrors "github.com/zatekoja/insurance-qa/pkg/errors"
	"github.com/zatekoja/insurance-qa/pkg/normalize"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) Dimension() int { return len(f.vector) }

type fakeStore struct {
	candidates  []entities.RetrievalCandidate
	err         error
	calls       int
	lastFilters []string
	lastCount   int
}

func (f *fakeStore) Search(_ context.Context, _ []float32, filters []string, count int) ([]entities.RetrievalCandidate, error) {
	f.calls++
	f.lastFilters = filters
	f.lastCount = count
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

func (f *fakeStore) Index(_ context.Context, _ *entities.Fragment) error { return nil }

type fakeCache struct {
	entries map[string]*entities.AnswerBundle
	setErr  error
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*entities.AnswerBundle)}
}

func (f *fakeCache) Get(_ context.Context, fingerprint string) (*entities.AnswerBundle, bool) {
	bundle, ok := f.entries[fingerprint]
	return bundle, ok
}

func (f *fakeCache) Set(_ context.Context, fingerprint string, bundle *entities.AnswerBundle) error {
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[fingerprint] = bundle
	return nil
}

func (f *fakeCache) Stats() providers.CacheStats {
	return providers.CacheStats{Size: len(f.entries)}
}

type pipelineFixture struct {
	pipeline  *PipelineService
	store     *fakeStore
	cache     *fakeCache
	analytics *AnalyticsRecorder
}

func newPipelineFixture(embedProvider providers.EmbeddingProvider, store *fakeStore, llm providers.LLMProvider, deadline time.Duration) *pipelineFixture {
	executor := testExecutor()
	cache := newFakeCache()
	analytics := NewAnalyticsRecorder()

	pipeline := NewPipelineService(
		normalize.NewNormalizer(5, 20, 0.3, 512),
		cache,
		NewEmbeddingService(embedProvider, &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3, 0.4}}, executor, 8000),
		NewRetrievalService(store, executor),
		NewGenerationService(llm, executor, 6000),
		analytics,
		deadline,
	)

	return &pipelineFixture{pipeline: pipeline, store: store, cache: cache, analytics: analytics}
}

func healthCandidates() []entities.RetrievalCandidate {
	return []entities.RetrievalCandidate{
		{FragmentID: "f-1", InsurerID: "allianz", Category: "health", Text: "Dental cleanings are covered twice a year.", Similarity: 0.91},
		{FragmentID: "f-2", InsurerID: "axa", Category: "health", Text: "Routine checkups carry no deductible.", Similarity: 0.74},
	}
}

func TestPipeline_MissThenHit(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3, 0.4}}
	llm := &stubLLM{answer: "Cleanings are covered twice a year."}
	f := newPipelineFixture(embedder, &fakeStore{candidates: healthCandidates()}, llm, time.Second)

	input := normalize.Input{QueryText: "Is dental cleaning covered?"}

	first, err := f.pipeline.Answer(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, llm.answer, first.Answer)
	assert.False(t, first.Stats.CacheHit)
	assert.Equal(t, 1, f.cache.sets)

	second, err := f.pipeline.Answer(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, llm.answer, second.Answer)
	assert.True(t, second.Stats.CacheHit)
	assert.Equal(t, 1, f.store.calls, "a cache hit must not touch the vector store")
	assert.Equal(t, 1, llm.calls, "a cache hit must not call the model")
}

func TestPipeline_FiltersReachStoreAndStats(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3, 0.4}}
	f := newPipelineFixture(embedder, &fakeStore{candidates: healthCandidates()}, &stubLLM{answer: "ok"}, time.Second)

	bundle, err := f.pipeline.Answer(context.Background(), normalize.Input{
		QueryText:      "Is dental cleaning covered?",
		CategoryFilter: []any{"Health"},
		ResultCount:    float64(3),
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"health"}, f.store.lastFilters)
	assert.Equal(t, 3, f.store.lastCount)
	assert.Equal(t, []string{"health"}, bundle.Stats.AppliedFilters)

	require.Len(t, bundle.Sources, 2)
	assert.Equal(t, "f-1", bundle.Sources[0].FragmentID)
	assert.Equal(t, "allianz", bundle.Sources[0].InsurerID)
	assert.InDelta(t, 0.91, bundle.Sources[0].Similarity, 1e-9)
}

func TestPipeline_SimilarityFloorDropsWeakCandidates(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3, 0.4}}
	store := &fakeStore{candidates: []entities.RetrievalCandidate{
		{FragmentID: "f-1", Similarity: 0.9, Text: "strong"},
		{FragmentID: "f-2", Similarity: 0.1, Text: "weak"},
	}}
	f := newPipelineFixture(embedder, store, &stubLLM{answer: "ok"}, time.Second)

	bundle, err := f.pipeline.Answer(context.Background(), normalize.Input{QueryText: "coverage"})

	require.NoError(t, err)
	require.Len(t, bundle.Sources, 1)
	assert.Equal(t, "f-1", bundle.Sources[0].FragmentID)
}

func TestPipeline_ValidationFailureRecordsSingleSample(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3, 0.4}}
	f := newPipelineFixture(embedder, &fakeStore{}, &stubLLM{}, time.Second)

	_, err := f.pipeline.Answer(context.Background(), normalize.Input{QueryText: "   "})

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	assert.Equal(t, 0, f.store.calls)
	assert.Equal(t, 0, f.cache.sets)

	snap := f.analytics.Snapshot()
	require.Len(t, snap, 1, "a rejected request records exactly one sample")
	assert.Equal(t, uint64(1), snap["query"].Count)
	assert.Equal(t, uint64(1), snap["query"].Errors)
}

func TestPipeline_DeadlineExhaustionFailsWithoutCacheWrite(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3, 0.4}}
	f := newPipelineFixture(embedder, &fakeStore{candidates: healthCandidates()}, &stubLLM{answer: "ok"}, time.Nanosecond)

	_, err := f.pipeline.Answer(context.Background(), normalize.Input{QueryText: "coverage"})

	require.Error(t, err)
	assert.True(t, apperrors.IsTimeout(err))
	assert.Equal(t, 0, f.cache.sets, "a failed run must not be cached")
}

func TestPipeline_RetrievalFailureSurfaces(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3, 0.4}}
	store := &fakeStore{err: apperrors.NewProviderError("typesense unreachable", nil)}
	f := newPipelineFixture(embedder, store, &stubLLM{answer: "ok"}, time.Second)

	_, err := f.pipeline.Answer(context.Background(), normalize.Input{QueryText: "coverage"})

	require.Error(t, err)
	assert.True(t, apperrors.IsProvider(err))
	assert.Equal(t, 0, f.cache.sets)

	snap := f.analytics.Snapshot()
	assert.Equal(t, uint64(1), snap["query"].Errors)
}

func TestPipeline_FallbackFlagsInStats(t *testing.T) {
	// Both external providers disabled; the pipeline still answers.
	f := newPipelineFixture(nil, &fakeStore{candidates: healthCandidates()}, nil, time.Second)

	bundle, err := f.pipeline.Answer(context.Background(), normalize.Input{QueryText: "coverage"})

	require.NoError(t, err)
	assert.True(t, bundle.Stats.EmbeddingFallback)
	assert.True(t, bundle.Stats.GenerationFallback)
	assert.Equal(t, 1, f.cache.sets, "degraded answers are still cached")
}

func TestPipeline_EmptyRetrievalIsSuccessfulFallback(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3, 0.4}}
	f := newPipelineFixture(embedder, &fakeStore{}, &stubLLM{answer: "unused"}, time.Second)

	bundle, err := f.pipeline.Answer(context.Background(), normalize.Input{QueryText: "Is skydiving covered?"})

	require.NoError(t, err)
	assert.Empty(t, bundle.Sources)
	assert.True(t, bundle.Stats.GenerationFallback)
	assert.Contains(t, bundle.Answer, "No insurance documents matching")
}

func TestPipeline_CacheWriteFailureDegrades(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3, 0.4}}
	f := newPipelineFixture(embedder, &fakeStore{candidates: healthCandidates()}, &stubLLM{answer: "ok"}, time.Second)
	f.cache.setErr = apperrors.NewProviderError("redis down", nil)

	bundle, err := f.pipeline.Answer(context.Background(), normalize.Input{QueryText: "coverage"})

	require.NoError(t, err, "a failed cache write must not fail the request")
	assert.Equal(t, "ok", bundle.Answer)
}
