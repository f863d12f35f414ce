package services

import (
	"context"

	"github.com/zatekoja/insurance-qa/internal/domain/entities"
	"github.com/zatekoja/insurance-qa/internal/domain/providers"
	"github.com/zatekoja/insurance-qa/pkg/retry"
)

const retrievalProviderID = "retrieval"

// RetrievalService runs the filtered similarity search through the
// rate-limited retry executor and applies the similarity floor on the
// store's ranked result.
type RetrievalService struct {
	store    providers.VectorStore
	executor *retry.Executor
}

// NewRetrievalService creates the retrieval stage.
func NewRetrievalService(store providers.VectorStore, executor *retry.Executor) *RetrievalService {
	return &RetrievalService{store: store, executor: executor}
}

// Retrieve returns ranked candidates at or above the similarity floor. An
// empty result set is a valid, successful outcome.
func (s *RetrievalService) Retrieve(ctx context.Context, vector []float32, req *entities.NormalizedRequest) entities.Outcome[[]entities.RetrievalCandidate] {
	var candidates []entities.RetrievalCandidate
	err := s.executor.Execute(ctx, retrievalProviderID, func(ctx context.Context) error {
		var searchErr error
		candidates, searchErr = s.store.Search(ctx, vector, req.Filters, req.ResultCount)
		return searchErr
	})
	if err != nil {
		return entities.Failed[[]entities.RetrievalCandidate](err)
	}

	// Drop candidates below the floor; the store's order is preserved.
	kept := candidates[:0]
	for _, c := range candidates {
		if c.Similarity >= req.SimilarityFloor {
			kept = append(kept, c)
		}
	}

	return entities.Success(append([]entities.RetrievalCandidate(nil), kept...))
}
