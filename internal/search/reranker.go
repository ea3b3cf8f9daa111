package search

import (
	"context"
	"sort"
	"strings"
)

// DefaultRerankBoost is the largest score bump a chunk can get from covering
// every query term.
const DefaultRerankBoost = 0.2

// Reranker reorders fused candidates and returns at most topK of them.
type Reranker interface {
	Rerank(ctx context.Context, query string, results []*Result, topK int) ([]*Result, error)
}

// TermCoverageReranker boosts each candidate by the fraction of distinct
// query terms that occur in its text.
type TermCoverageReranker struct {
	Boost float64
}

// NewTermCoverageReranker returns a reranker with the given boost cap. A
// non-positive boost selects DefaultRerankBoost.
func NewTermCoverageReranker(boost float64) *TermCoverageReranker {
	if boost <= 0 {
		boost = DefaultRerankBoost
	}
	return &TermCoverageReranker{Boost: boost}
}

// Rerank sets Score = Combined + coverage*Boost and sorts stably by Score,
// so candidates with equal scores keep their fused order.
func (r *TermCoverageReranker) Rerank(_ context.Context, query string, results []*Result, topK int) ([]*Result, error) {
	terms := queryTerms(query)
	for _, res := range results {
		res.Score = res.Combined + coverage(terms, res.Chunk.Text)*r.Boost
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return truncate(results, topK), nil
}

// queryTerms returns the distinct lowercase whitespace-separated terms of
// query in first-seen order.
func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]struct{}, len(fields))
	terms := fields[:0]
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}

// coverage is the fraction of terms occurring as substrings of text,
// case-insensitively.
func coverage(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	matched := 0
	for _, t := range terms {
		if strings.Contains(lower, t) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

// NoOpReranker keeps the fused order.
type NoOpReranker struct{}

// Rerank truncates results to topK without changing scores.
func (NoOpReranker) Rerank(_ context.Context, _ string, results []*Result, topK int) ([]*Result, error) {
	return truncate(results, topK), nil
}

func truncate(results []*Result, topK int) []*Result {
	if topK >= 0 && len(results) > topK {
		return results[:topK]
	}
	return results
}

var (
	_ Reranker = (*TermCoverageReranker)(nil)
	_ Reranker = NoOpReranker{}
)
