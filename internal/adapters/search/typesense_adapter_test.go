package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildVectorQuery(t *testing.T) {
	query := buildVectorQuery([]float32{0.5, -0.25, 1}, 5)
	assert.Equal(t, "embedding:([0.5,-0.25,1], k:5)", query)
}

func TestBuildFilterBy(t *testing.T) {
	testCases := []struct {
		name     string
		filters  []string
		expected string
	}{
		{"empty means unrestricted", nil, ""},
		{"single category", []string{"health"}, "category:=[health]"},
		{"multiple categories match any", []string{"auto", "health"}, "category:=[auto,health]"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, buildFilterBy(tc.filters))
		})
	}
}

func TestDistanceToSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, distanceToSimilarity(0))
	assert.Equal(t, 0.75, distanceToSimilarity(0.25))
	assert.Equal(t, 0.0, distanceToSimilarity(1))
	assert.Equal(t, 0.0, distanceToSimilarity(1.5), "distances past 1 clamp to zero similarity")
	assert.Equal(t, 1.0, distanceToSimilarity(-0.1), "negative distances clamp to one")
}
