package vector

import (
	"testing"

	"github.com/rushteam/moviematch/feature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vec(xs ...float64) feature.Vector {
	var v feature.Vector
	copy(v[:], xs)
	return v
}

func TestQueryByID_SelfExcluded(t *testing.T) {
	ix, err := Build(
		[]int64{1, 2, 3, 4},
		[]feature.Vector{vec(1, 0), vec(1, 0.1), vec(0, 1), vec(-1, 0)},
	)
	require.NoError(t, err)

	got, ok := ix.QueryByID(1, 2)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Equal(t, int64(3), got[1].ID)
	for _, n := range got {
		assert.NotEqual(t, int64(1), n.ID)
	}
}

func TestQueryByID_DuplicateVectorsStillExcludeSelf(t *testing.T) {
	ix, err := Build([]int64{1, 2, 3}, []feature.Vector{vec(1, 1), vec(1, 1), vec(1, 1)})
	require.NoError(t, err)

	for _, id := range []int64{1, 2, 3} {
		got, ok := ix.QueryByID(id, 5)
		require.True(t, ok)
		assert.Len(t, got, 2)
		for _, n := range got {
			assert.NotEqual(t, id, n.ID)
		}
	}
}

func TestQuery_KCappedToCatalogSize(t *testing.T) {
	ix, err := Build([]int64{1, 2}, []feature.Vector{vec(1), vec(2)})
	require.NoError(t, err)

	assert.Len(t, ix.Query(vec(1), 10), 2)
	got, ok := ix.QueryByID(1, 10)
	require.True(t, ok)
	assert.Len(t, got, 1)
}

func TestQueryByID_Unknown(t *testing.T) {
	ix, err := Build([]int64{1}, []feature.Vector{vec(1)})
	require.NoError(t, err)

	got, ok := ix.QueryByID(99, 3)
	assert.False(t, ok)
	assert.Empty(t, got)
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build([]int64{1, 2}, []feature.Vector{vec(1)})
	assert.Error(t, err)
	_, err = Build([]int64{1, 1}, []feature.Vector{vec(1), vec(2)})
	assert.Error(t, err)
}

func TestSimilarityMonotonic(t *testing.T) {
	distances := []float64{0, 0.1, 0.5, 1, 2}
	for i := 1; i < len(distances); i++ {
		assert.Greater(t, Similarity(distances[i-1]), Similarity(distances[i]))
	}
	assert.Equal(t, 1.0, Similarity(0))
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0.0, CosineDistance(vec(1, 2), vec(2, 4)), 1e-12)
	assert.InDelta(t, 2.0, CosineDistance(vec(1), vec(-1)), 1e-12)
	assert.Equal(t, 1.0, CosineDistance(vec(0), vec(1)))
}

func TestNilIndex(t *testing.T) {
	var ix *Index
	assert.Equal(t, 0, ix.Len())
	assert.Nil(t, ix.Query(vec(1), 3))
	_, ok := ix.QueryByID(1, 1)
	assert.False(t, ok)
}
