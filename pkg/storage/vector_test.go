package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/driftlab/graphmem/pkg/storage"
)

func TestCosineSimilarity(t *testing.T) {
	a := []float64{1, 0, 0}
	b := []float64{0, 1, 0}

	assert.InDelta(t, 1.0, storage.CosineSimilarity(a, a), 1e-9)
	assert.InDelta(t, 0.0, storage.CosineSimilarity(a, b), 1e-9)
	assert.InDelta(t, -1.0, storage.CosineSimilarity(a, []float64{-1, 0, 0}), 1e-9)
}

func TestCosineSimilarityDegenerate(t *testing.T) {
	assert.Equal(t, 0.0, storage.CosineSimilarity([]float64{1, 0}, []float64{1, 0, 0}))
	assert.Equal(t, 0.0, storage.CosineSimilarity(nil, nil))
	assert.Equal(t, 0.0, storage.CosineSimilarity([]float64{0, 0}, []float64{1, 0}))
}

func TestNormalizeVector(t *testing.T) {
	v := storage.NormalizeVector([]float64{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-9)
	assert.InDelta(t, 0.8, v[1], 1e-9)

	zero := storage.NormalizeVector([]float64{0, 0})
	assert.Equal(t, []float64{0, 0}, zero)
}

func TestPairKeyCanonical(t *testing.T) {
	assert.Equal(t, storage.PairKey("a", "b"), storage.PairKey("b", "a"))
	assert.Equal(t, "a|b", storage.PairKey("b", "a"))
	assert.Equal(t, "x|x", storage.PairKey("x", "x"))
}
