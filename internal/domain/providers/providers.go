// Package providers defines the ports to the external collaborators the
// pipeline depends on. Implementations live under internal/adapters.
package providers

import (
	"context"

	"github.com/zatekoja/insurance-qa/internal/domain/entities"
)

// EmbeddingProvider converts text into a fixed-length numeric vector.
type EmbeddingProvider interface {
	// Embed returns the embedding vector for the given text
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the vector dimensionality agreed at configuration time
	Dimension() int
}

// VectorStore runs a filtered similarity search over indexed fragments.
type VectorStore interface {
	// Search returns ranked candidates for the query vector. An empty filter
	// list means no category restriction; a non-empty list matches any of the
	// listed categories at the store, before ranking.
	Search(ctx context.Context, vector []float32, filters []string, count int) ([]entities.RetrievalCandidate, error)

	// Index upserts a fragment into the store
	Index(ctx context.Context, fragment *entities.Fragment) error
}

// LLMProvider generates an answer from an assembled prompt.
type LLMProvider interface {
	// Complete returns generated text for the prompt
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// CacheStats is a point-in-time snapshot of answer cache counters.
type CacheStats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Size      int    `json:"size"`
}

// AnswerCache maps a request fingerprint to a previously computed answer
// bundle. Implementations must be safe for concurrent use and guarantee
// at most one stored value per fingerprint at any instant.
type AnswerCache interface {
	// Get returns the cached bundle for the fingerprint, or false on a miss.
	// An expired entry is a miss.
	Get(ctx context.Context, fingerprint string) (*entities.AnswerBundle, bool)

	// Set stores the bundle under the fingerprint with the configured TTL.
	// Last write wins for concurrent writers of the same key.
	Set(ctx context.Context, fingerprint string, bundle *entities.AnswerBundle) error

	// Stats returns hit/miss/eviction counters and the current size
	Stats() CacheStats
}
