package store

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/coder/hnsw"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
)

func randomEmbeddings(n, dims int, seed int64) [][]float32 {
	rng := rand.New(rand.NewSource(seed))
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dims)
		for j := range v {
			v[j] = rng.Float32()
		}
		out[i] = v
	}
	return out
}

func TestVectorIndex_SearchFindsExactMatchFirst(t *testing.T) {
	// Given: an index over 50 random vectors
	embs := randomEmbeddings(50, 8, 1)
	idx := NewVectorIndex(DefaultVectorConfig())
	require.NoError(t, idx.Build(embs))
	require.Equal(t, 50, idx.Count())
	require.Equal(t, 8, idx.Dimensions())

	// When: querying with one of the stored vectors
	results, err := idx.Search(embs[17], 5)
	require.NoError(t, err)

	// Then: that chunk is the nearest with similarity 1
	require.NotEmpty(t, results)
	assert.Equal(t, 17, results[0].ChunkID)
	assert.InDelta(t, 0, results[0].Distance, 1e-6)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)

	// And: results are ordered by distance and the farthest scores 0
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
	assert.InDelta(t, 0.0, results[len(results)-1].Similarity, 1e-6)
}

func TestVectorIndex_SimilarityAllEqualDistances(t *testing.T) {
	// Given: identical vectors, so every distance is zero
	embs := [][]float32{{1, 0}, {1, 0}, {1, 0}}
	idx := NewVectorIndex(DefaultVectorConfig())
	require.NoError(t, idx.Build(embs))

	results, err := idx.Search([]float32{1, 0}, 3)
	require.NoError(t, err)

	// Then: similarity is 1 everywhere instead of dividing by zero
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, 1.0, r.Similarity)
	}
}

func TestVectorIndex_DeterministicAcrossRebuilds(t *testing.T) {
	// Given: the same embeddings rebuilt twenty times
	embs := randomEmbeddings(120, 16, 7)
	query := randomEmbeddings(1, 16, 99)[0]

	first := NewVectorIndex(DefaultVectorConfig())
	require.NoError(t, first.Build(embs))
	want, err := first.Search(query, 5)
	require.NoError(t, err)
	require.Len(t, want, 5)

	for i := 0; i < 20; i++ {
		idx := NewVectorIndex(DefaultVectorConfig())
		require.NoError(t, idx.Build(embs))

		// When: searching with the same query
		got, err := idx.Search(query, 5)
		require.NoError(t, err)

		// Then: the ordering never changes
		assert.Equal(t, want, got, "rebuild %d", i)
	}
}

func TestVectorIndex_EveryVectorFindsItself(t *testing.T) {
	// Given: 120 distinct vectors
	embs := randomEmbeddings(120, 16, 11)
	idx := NewVectorIndex(DefaultVectorConfig())
	require.NoError(t, idx.Build(embs))

	// When: querying each stored vector with k=1
	for id, e := range embs {
		results, err := idx.Search(e, 1)
		require.NoError(t, err)

		// Then: the vector itself comes back
		require.Len(t, results, 1)
		assert.Equal(t, id, results[0].ChunkID)
	}
}

func TestVectorIndex_CandidatePoolIsRescoredExactly(t *testing.T) {
	// Given: an index larger than its exact-scan limit
	cfg := DefaultVectorConfig()
	cfg.ExactLimit = 10
	embs := randomEmbeddings(200, 8, 5)
	idx := NewVectorIndex(cfg)
	require.NoError(t, idx.Build(embs))
	query := randomEmbeddings(1, 8, 6)[0]

	// When: searching through the graph
	results, err := idx.Search(query, 10)
	require.NoError(t, err)

	// Then: distances are the exact ones and ordering is total
	require.NotEmpty(t, results)
	for i, r := range results {
		assert.Equal(t, hnswDistance(query, embs[r.ChunkID]), r.Distance)
		if i > 0 {
			prev := results[i-1]
			assert.True(t, prev.Distance < r.Distance || (prev.Distance == r.Distance && prev.ChunkID < r.ChunkID))
		}
	}
}

func TestVectorIndex_CopiesEmbeddings(t *testing.T) {
	// Given: an index built from a caller's buffer
	buf := [][]float32{{1, 0}, {0, 1}}
	idx := NewVectorIndex(DefaultVectorConfig())
	require.NoError(t, idx.Build(buf))

	// When: the caller reuses the buffer
	buf[0][0], buf[0][1] = 0, 1

	// Then: the index still answers from the original vectors
	results, err := idx.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, results[0].ChunkID)
	assert.InDelta(t, 0, results[0].Distance, 1e-6)
}

func TestVectorIndex_DimensionMismatch(t *testing.T) {
	idx := NewVectorIndex(DefaultVectorConfig())
	require.NoError(t, idx.Build([][]float32{{1, 2, 3}}))

	_, err := idx.Search([]float32{1, 2}, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, docerrors.ErrDimensionMismatch))

	err = idx.Add(1, [][]float32{{1, 2}})
	require.Error(t, err)
	assert.Equal(t, 1, idx.Count())
}

func TestVectorIndex_AddContinuesSequence(t *testing.T) {
	idx := NewVectorIndex(DefaultVectorConfig())
	require.NoError(t, idx.Build([][]float32{{0, 0}, {1, 1}}))

	assert.Error(t, idx.Add(5, [][]float32{{2, 2}}), "gap in keys")
	require.NoError(t, idx.Add(2, [][]float32{{5, 5}}))

	results, err := idx.Search([]float32{5, 5}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].ChunkID)
}

func TestVectorIndex_EmptySearch(t *testing.T) {
	idx := NewVectorIndex(VectorConfig{})
	results, err := idx.Search([]float32{1}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestVectorIndex_ExportImportRoundTrip(t *testing.T) {
	// Given: a built index
	embs := randomEmbeddings(40, 4, 3)
	idx := NewVectorIndex(DefaultVectorConfig())
	require.NoError(t, idx.Build(embs))

	var buf bytes.Buffer
	require.NoError(t, idx.Export(&buf))

	// When: importing into a fresh index
	restored := NewVectorIndex(DefaultVectorConfig())
	require.NoError(t, restored.Import(&buf, embs))

	// Then: it answers like the original
	assert.Equal(t, idx.Count(), restored.Count())
	want, err := idx.Search(embs[3], 3)
	require.NoError(t, err)
	got, err := restored.Search(embs[3], 3)
	require.NoError(t, err)
	assert.Equal(t, want[0].ChunkID, got[0].ChunkID)
}

func TestVectorIndex_ImportRejectsGarbage(t *testing.T) {
	idx := NewVectorIndex(DefaultVectorConfig())
	err := idx.Import(bytes.NewReader([]byte("not a graph")), nil)
	assert.Error(t, err)
}

func TestVectorIndex_ImportRejectsMismatchedEmbeddings(t *testing.T) {
	// Given: a graph over 5 vectors
	embs := randomEmbeddings(5, 4, 2)
	idx := NewVectorIndex(DefaultVectorConfig())
	require.NoError(t, idx.Build(embs))
	var buf bytes.Buffer
	require.NoError(t, idx.Export(&buf))

	// When: importing with only 4 cached embeddings
	err := NewVectorIndex(DefaultVectorConfig()).Import(&buf, embs[:4])

	// Then: the mismatch is reported
	assert.Error(t, err)
}

func TestVectorIndex_CosineMetric(t *testing.T) {
	cfg := DefaultVectorConfig()
	cfg.Metric = "cosine"
	idx := NewVectorIndex(cfg)
	require.NoError(t, idx.Build([][]float32{{1, 0}, {0, 1}, {10, 0.1}}))

	results, err := idx.Search([]float32{2, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 0, results[0].ChunkID)
	assert.Equal(t, 1, results[2].ChunkID)
}

func hnswDistance(a, b []float32) float32 {
	return hnsw.EuclideanDistance(a, b)
}
