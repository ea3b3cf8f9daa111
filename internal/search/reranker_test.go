package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docrag/internal/store"
)

func result(id int, combined float64, text string) *Result {
	return &Result{Chunk: store.Chunk{ID: id, Text: text}, Score: combined, Combined: combined}
}

func TestTermCoverageReranker_BoostsByCoverage(t *testing.T) {
	// Given: a candidate at 0.5 holding 2 of 4 distinct query terms
	r := NewTermCoverageReranker(0)
	candidates := []*Result{result(0, 0.5, "The RENT is due monthly")}

	// When: reranking
	out, err := r.Rerank(context.Background(), "rent due late fee rent", candidates, 1)
	require.NoError(t, err)

	// Then: score = 0.5 + 0.5*0.2
	require.Len(t, out, 1)
	assert.InDelta(t, 0.6, out[0].Score, 1e-9)
	assert.InDelta(t, 0.5, out[0].Combined, 1e-9)
}

func TestTermCoverageReranker_ReordersAndTruncates(t *testing.T) {
	r := NewTermCoverageReranker(0.2)
	candidates := []*Result{
		result(0, 0.9, "nothing relevant"),
		result(1, 0.8, "deposit refund"),
		result(2, 0.7, "deposit"),
	}

	out, err := r.Rerank(context.Background(), "deposit refund", candidates, 2)
	require.NoError(t, err)

	// 0: 0.9, 1: 1.0, 2: 0.8
	assert.Equal(t, []int{1, 0}, ids(out))
}

func TestTermCoverageReranker_StableOnTies(t *testing.T) {
	r := NewTermCoverageReranker(0.2)
	candidates := []*Result{
		result(5, 0.4, "alpha"),
		result(2, 0.4, "alpha"),
		result(9, 0.4, "alpha"),
	}

	out, err := r.Rerank(context.Background(), "alpha", candidates, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 2, 9}, ids(out))
}

func TestTermCoverageReranker_EmptyQueryAddsNothing(t *testing.T) {
	r := NewTermCoverageReranker(0.2)
	out, err := r.Rerank(context.Background(), "   ", []*Result{result(0, 0.3, "x")}, 5)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, out[0].Score, 1e-9)
}

func TestNoOpReranker_Truncates(t *testing.T) {
	out, err := NoOpReranker{}.Rerank(context.Background(), "q",
		[]*Result{result(3, 0.1, ""), result(1, 0.9, "")}, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, ids(out))
}

func TestQueryTerms_Distinct(t *testing.T) {
	assert.Equal(t, []string{"rent", "due"}, queryTerms("Rent due RENT"))
}
