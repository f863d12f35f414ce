package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/zatekoja/insurance-qa/internal/domain/entities"
	"github.com/zatekoja/insurance-qa/internal/domain/providers"
	tsclient "github.com/zatekoja/insurance-qa/internal/infrastructure/clients/typesense"
	apperrors "github.com/zatekoja/insurance-qa/pkg/errors"
)

// TypesenseAdapter implements the vector store on Typesense

type TypesenseAdapter struct {
	client     *tsclient.Client
	collection string
	dimensions int
}

// Ensure TypesenseAdapter implements VectorStore
var _ providers.VectorStore = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client, collection string, dimensions int) *TypesenseAdapter {
	if collection == "" {
		collection = "fragments"
	}
	return &TypesenseAdapter{client: client, collection: collection, dimensions: dimensions}
}

// InitSchema ensures the fragment collection exists
func (a *TypesenseAdapter) InitSchema(ctx context.Context) error {
	_, err := a.client.Client().Collection(a.collection).Retrieve(ctx)
	if err == nil {
		return nil // Collection exists
	}

	schema := &api.CollectionSchema{
		Name: a.collection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "insurer_id", Type: "string", Facet: pointer.True()},
			{Name: "category", Type: "string", Facet: pointer.True()},
			{Name: "text", Type: "string"},
			{Name: "embedding", Type: "float[]", NumDim: pointer.Int(a.dimensions)},
		},
	}

	_, err = a.client.Client().Collections().Create(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create typesense collection: %w", err)
	}

	return nil
}

// Index upserts a fragment into the store
func (a *TypesenseAdapter) Index(ctx context.Context, fragment *entities.Fragment) error {
	document := map[string]interface{}{
		"id":         fragment.ID,
		"insurer_id": fragment.InsurerID,
		"category":   fragment.Category,
		"text":       fragment.Text,
		"embedding":  fragment.Embedding,
	}

	_, err := a.client.Client().Collection(a.collection).Documents().Upsert(ctx, document)
	if err != nil {
		return apperrors.NewProviderError("failed to index fragment", err)
	}

	return nil
}

// Search runs a nearest-neighbor query, restricted to the given categories
// at the store before ranking. Candidates come back in the store's
// similarity order.
func (a *TypesenseAdapter) Search(ctx context.Context, vector []float32, filters []string, count int) ([]entities.RetrievalCandidate, error) {
	if len(vector) != a.dimensions {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("query vector has %d dimensions, store expects %d", len(vector), a.dimensions))
	}

	searchParams := &api.SearchCollectionParams{
		Q:           pointer.String("*"),
		VectorQuery: pointer.String(buildVectorQuery(vector, count)),
		PerPage:     pointer.Int(count),
	}
	if filterBy := buildFilterBy(filters); filterBy != "" {
		searchParams.FilterBy = pointer.String(filterBy)
	}

	result, err := a.client.Client().Collection(a.collection).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, apperrors.NewProviderError("vector store search failed", err)
	}

	if result.Hits == nil {
		return []entities.RetrievalCandidate{}, nil
	}

	candidates := make([]entities.RetrievalCandidate, 0, len(*result.Hits))
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		doc := *hit.Document

		candidate := entities.RetrievalCandidate{}
		if val, ok := doc["id"].(string); ok {
			candidate.FragmentID = val
		}
		if val, ok := doc["insurer_id"].(string); ok {
			candidate.InsurerID = val
		}
		if val, ok := doc["category"].(string); ok {
			candidate.Category = val
		}
		if val, ok := doc["text"].(string); ok {
			candidate.Text = val
		}
		if hit.VectorDistance != nil {
			candidate.Similarity = distanceToSimilarity(float64(*hit.VectorDistance))
		}

		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

// buildVectorQuery renders the typesense vector query expression.
func buildVectorQuery(vector []float32, k int) string {
	var b strings.Builder
	b.WriteString("embedding:([")
	for i, v := range vector {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteString("], k:")
	b.WriteString(strconv.Itoa(k))
	b.WriteString(")")
	return b.String()
}

// buildFilterBy renders a match-any category restriction; empty filters mean
// no restriction.
func buildFilterBy(filters []string) string {
	if len(filters) == 0 {
		return ""
	}
	return fmt.Sprintf("category:=[%s]", strings.Join(filters, ","))
}

// distanceToSimilarity maps cosine distance onto the [0,1] similarity scale
// where 1 means identical.
func distanceToSimilarity(distance float64) float64 {
	similarity := 1 - distance
	if similarity < 0 {
		return 0
	}
	if similarity > 1 {
		return 1
	}
	return similarity
}
