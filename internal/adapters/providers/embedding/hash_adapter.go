package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/zatekoja/insurance-qa/internal/domain/providers"
)

// HashAdapter produces a deterministic pseudo-embedding from a hash of the
// input text. It keeps the pipeline runnable end-to-end when the real
// embedding provider is disabled; vectors are stable across processes but
// carry no semantic signal, so callers must surface that the fallback ran.
type HashAdapter struct {
	dimensions int
}

var _ providers.EmbeddingProvider = (*HashAdapter)(nil)

// NewHashAdapter creates a fallback embedder with the given dimensionality.
func NewHashAdapter(dimensions int) *HashAdapter {
	if dimensions <= 0 {
		dimensions = 1536
	}
	return &HashAdapter{dimensions: dimensions}
}

// Embed expands a sha256 chain over the text into a unit-length vector.
func (a *HashAdapter) Embed(_ context.Context, text string) ([]float32, error) {
	vector := make([]float32, a.dimensions)

	digest := sha256.Sum256([]byte(text))
	i := 0
	for i < a.dimensions {
		for off := 0; off+8 <= len(digest) && i < a.dimensions; off += 8 {
			bits := binary.BigEndian.Uint64(digest[off : off+8])
			// Map onto [-1, 1)
			vector[i] = float32(float64(int64(bits)) / float64(math.MaxInt64))
			i++
		}
		digest = sha256.Sum256(digest[:])
	}

	normalize(vector)
	return vector, nil
}

// Dimension returns the configured vector dimensionality.
func (a *HashAdapter) Dimension() int {
	return a.dimensions
}

func normalize(vector []float32) {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vector {
		vector[i] /= norm
	}
}
