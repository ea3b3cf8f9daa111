package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/logging"
	"github.com/Aman-CERP/docrag/internal/store"
)

func newTestEngine() *Engine {
	return NewEngine(Config{}, WithLogger(logging.Discard()))
}

func TestEngine_ExpandedK(t *testing.T) {
	e := newTestEngine()
	assert.Equal(t, 15, e.ExpandedK(5))
	assert.Equal(t, 50, e.ExpandedK(20))
}

func TestEngine_SearchFusesBothSides(t *testing.T) {
	// Given: a corpus where chunk 2 leads both sides
	corpus := newFakeCorpus(6)
	corpus.keyword = []store.KeywordResult{{ChunkID: 2, Score: 4}, {ChunkID: 0, Score: 1}}
	corpus.vector = []store.VectorResult{{ChunkID: 2, Similarity: 1}, {ChunkID: 5, Similarity: 0.6}, {ChunkID: 1, Similarity: 0}}

	// When: searching for the top 2 without rerank
	results, err := newTestEngine().Search(context.Background(), corpus, "query", []float32{1}, Options{TopK: 2})
	require.NoError(t, err)

	// Then: each side was asked for expandedK candidates
	assert.Equal(t, 6, corpus.kwLimit)
	assert.Equal(t, 6, corpus.vecLimit)

	// And: chunk 2 scores 1.0 and chunk 5 scores 0.7*0.6
	require.Len(t, results, 2)
	assert.Equal(t, []int{2, 5}, ids(results))
	assert.InDelta(t, 1.0, results[0].Combined, 1e-9)
	assert.True(t, results[0].InKeyword)
	assert.True(t, results[0].InSemantic)
	assert.InDelta(t, 0.42, results[1].Score, 1e-9)
	assert.Equal(t, "chunk 5", results[1].Chunk.Text)
}

func TestEngine_RerankOnlyWhenCandidatesExceedTopK(t *testing.T) {
	corpus := newFakeCorpus(4)
	corpus.chunks[1].Text = "late fee policy"
	corpus.vector = []store.VectorResult{
		{ChunkID: 0, Similarity: 1},
		{ChunkID: 1, Similarity: 0.9},
		{ChunkID: 2, Similarity: 0},
	}

	// When: three candidates for topK=1 with rerank on
	results, err := newTestEngine().Search(context.Background(), corpus, "late fee", []float32{1}, Options{TopK: 1, Rerank: true})
	require.NoError(t, err)

	// Then: candidates were cut to topK*2 and the covered chunk wins
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Chunk.ID)
	assert.InDelta(t, 0.7*0.9+0.2, results[0].Score, 1e-9)
}

func TestEngine_RerankDisabledKeepsFusedOrder(t *testing.T) {
	// Given: the same corpus where rerank would promote chunk 1
	corpus := newFakeCorpus(4)
	corpus.chunks[1].Text = "late fee policy"
	corpus.vector = []store.VectorResult{
		{ChunkID: 0, Similarity: 1},
		{ChunkID: 1, Similarity: 0.9},
		{ChunkID: 2, Similarity: 0},
	}

	// When: searching with rerank off
	results, err := newTestEngine().Search(context.Background(), corpus, "late fee", []float32{1}, Options{TopK: 1})
	require.NoError(t, err)

	// Then: the best fused chunk wins with its fused score
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].Chunk.ID)
	assert.InDelta(t, results[0].Combined, results[0].Score, 1e-9)
}

func TestEngine_EmptyCorpusReturnsEmpty(t *testing.T) {
	results, err := newTestEngine().Search(context.Background(), newFakeCorpus(0), "anything", []float32{1}, Options{})
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestEngine_EmptyQuery(t *testing.T) {
	_, err := newTestEngine().Search(context.Background(), newFakeCorpus(1), "  ", nil, Options{})
	require.Error(t, err)
	assert.Equal(t, docerrors.ErrCodeQueryEmpty, docerrors.GetCode(err))
}

func TestEngine_OneSideFailing(t *testing.T) {
	corpus := newFakeCorpus(3)
	corpus.keyword = []store.KeywordResult{{ChunkID: 1, Score: 2}}
	corpus.vecErr = errBackend

	results, err := newTestEngine().Search(context.Background(), corpus, "q", []float32{1}, Options{TopK: 3})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, ids(results))
	assert.InDelta(t, 0.3, results[0].Combined, 1e-9)
}

func TestEngine_BothSidesFailing(t *testing.T) {
	corpus := newFakeCorpus(3)
	corpus.kwErr = errBackend
	corpus.vecErr = errBackend

	_, err := newTestEngine().Search(context.Background(), corpus, "q", []float32{1}, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errBackend))
}

func TestEngine_DocumentScope(t *testing.T) {
	// Given: two documents, hits in both
	corpus := newFakeCorpus(6)
	corpus.ranges["a"] = store.FileRecord{DocumentID: "a", StartIndex: 0, EndIndex: 2}
	corpus.ranges["b"] = store.FileRecord{DocumentID: "b", StartIndex: 3, EndIndex: 5}
	corpus.keyword = []store.KeywordResult{{ChunkID: 0, Score: 9}, {ChunkID: 4, Score: 3}, {ChunkID: 5, Score: 1}}
	corpus.vector = []store.VectorResult{{ChunkID: 1, Similarity: 1}, {ChunkID: 5, Similarity: 0.8}, {ChunkID: 4, Similarity: 0.2}}

	// When: scoping to b
	results, err := newTestEngine().Search(context.Background(), corpus, "q", []float32{1}, Options{TopK: 5, DocumentID: "b"})
	require.NoError(t, err)

	// Then: the whole corpus was scanned and only b's chunks remain,
	// normalized within b and weighted 0.4/0.6
	assert.Equal(t, 6, corpus.kwLimit)
	assert.ElementsMatch(t, []int{4, 5}, ids(results))
	for _, r := range results {
		switch r.Chunk.ID {
		case 4:
			assert.InDelta(t, 0.4, r.Combined, 1e-9)
		case 5:
			assert.InDelta(t, 0.6, r.Combined, 1e-9)
		}
	}
	assert.Equal(t, 5, results[0].Chunk.ID)
}

func TestEngine_UnknownDocumentScope(t *testing.T) {
	_, err := newTestEngine().Search(context.Background(), newFakeCorpus(2), "q", nil, Options{DocumentID: "ghost"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, docerrors.ErrNotFound))
}

func TestEngine_KeywordOnlyWithoutVector(t *testing.T) {
	corpus := newFakeCorpus(2)
	corpus.keyword = []store.KeywordResult{{ChunkID: 0, Score: 1}}
	corpus.vector = []store.VectorResult{{ChunkID: 1, Similarity: 1}}

	results, err := newTestEngine().Search(context.Background(), corpus, "q", nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, ids(results))
	assert.Equal(t, 0, corpus.vecLimit)
}
