package entities

import "time"

// NormalizedRequest is the canonical form of an incoming query. It is created
// once by the normalizer and never mutated afterwards; the fingerprint is the
// join key between the cache and a pipeline run.
type NormalizedRequest struct {
	QueryText       string
	Filters         []string
	ResultCount     int
	SimilarityFloor float64
	Fingerprint     string
}

// Fragment is an indexed document fragment in the vector store.
type Fragment struct {
	ID        string    `json:"id"`
	InsurerID string    `json:"insurer_id"`
	Category  string    `json:"category"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// RetrievalCandidate is a ranked fragment returned by the vector store.
// Within one result set candidates are ordered by similarity descending,
// ties broken by store insertion order.
type RetrievalCandidate struct {
	FragmentID string
	InsurerID  string
	Category   string
	Text       string
	Similarity float64
}

// Source is a cited fragment in a final answer.
type Source struct {
	FragmentID string  `json:"fragmentId"`
	InsurerID  string  `json:"insurerId"`
	Category   string  `json:"category"`
	Similarity float64 `json:"similarity"`
	Preview    string  `json:"preview"`
}

// StageStats carries per-stage timings and degradation flags for one request.
type StageStats struct {
	CacheHit           bool     `json:"cacheHit"`
	EmbeddingFallback  bool     `json:"embeddingFallback"`
	GenerationFallback bool     `json:"generationFallback"`
	AppliedFilters     []string `json:"appliedFilters"`
	EmbeddingMs        int64    `json:"embeddingMs"`
	RetrievalMs        int64    `json:"retrievalMs"`
	GenerationMs       int64    `json:"generationMs"`
	TotalMs            int64    `json:"totalMs"`
}

// AnswerBundle is the complete result of one pipeline run. Cached bundles are
// never mutated; a cache hit returns a copy with CacheHit set.
type AnswerBundle struct {
	Answer    string     `json:"answer"`
	Sources   []Source   `json:"sources"`
	Stats     StageStats `json:"stats"`
	CreatedAt time.Time  `json:"createdAt"`
}

// CloneForHit returns a copy of a cached bundle marked as a cache hit.
func (b *AnswerBundle) CloneForHit() *AnswerBundle {
	clone := *b
	clone.Sources = make([]Source, len(b.Sources))
	copy(clone.Sources, b.Sources)
	clone.Stats.CacheHit = true
	return &clone
}
