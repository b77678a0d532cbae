package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarityRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"asyncio", "asyncio", 1.0},
		{"AsyncIO", "asyncio", 1.0},
		{"", "", 1.0},
		{"abc", "", 0.0},
		{"abc", "xyz", 0.0},
		// 2*3/(3+4): "abc" inside "abcd"
		{"abc", "abcd", 6.0 / 7.0},
		{"postgres", "postgresql", 16.0 / 18.0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, SimilarityRatio(tt.a, tt.b), 0.0001, "SimilarityRatio(%q, %q)", tt.a, tt.b)
	}
}

func TestSimilarityRatioSymmetric(t *testing.T) {
	assert.Equal(t, SimilarityRatio("redis", "redis-cluster"), SimilarityRatio("redis-cluster", "redis"))
}

// Pins the 0.85 default threshold behaviour: close variants resolve to
// the same node, unrelated names do not.
func TestSimilarityAgainstDefaultThreshold(t *testing.T) {
	const threshold = 0.85
	assert.GreaterOrEqual(t, SimilarityRatio("postgres", "postgresql"), threshold)
	assert.GreaterOrEqual(t, SimilarityRatio("asyncio", "asyncio"), threshold)
	assert.Less(t, SimilarityRatio("redis", "postgres"), threshold)
	assert.Less(t, SimilarityRatio("go", "golang-migrate"), threshold)
}
