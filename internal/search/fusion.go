package search

import (
	"sort"

	"github.com/Aman-CERP/docrag/internal/store"
)

// candidate is a chunk seen by at least one side before it is resolved to
// a full Result.
type candidate struct {
	id         int
	keyword    float64
	semantic   float64
	combined   float64
	inKeyword  bool
	inSemantic bool
}

// fuse merges keyword and vector hits into candidates ordered by combined
// score, ties broken by ascending chunk id. Each side is min-max normalized
// on its own; a side whose scores are all equal normalizes to 1.0 and a side
// missing a chunk contributes 0.
func fuse(keyword []store.KeywordResult, vector []store.VectorResult, w Weights) []*candidate {
	byID := make(map[int]*candidate, len(keyword)+len(vector))
	get := func(id int) *candidate {
		c, ok := byID[id]
		if !ok {
			c = &candidate{id: id}
			byID[id] = c
		}
		return c
	}

	kwScores := make([]float64, len(keyword))
	for i, r := range keyword {
		kwScores[i] = r.Score
	}
	kwNorm := minMax(kwScores)
	for i, r := range keyword {
		c := get(r.ChunkID)
		c.keyword = r.Score
		c.inKeyword = true
		c.combined += w.Keyword * kwNorm[i]
	}

	vecScores := make([]float64, len(vector))
	for i, r := range vector {
		vecScores[i] = r.Similarity
	}
	vecNorm := minMax(vecScores)
	for i, r := range vector {
		c := get(r.ChunkID)
		c.semantic = r.Similarity
		c.inSemantic = true
		c.combined += w.Semantic * vecNorm[i]
	}

	out := make([]*candidate, 0, len(byID))
	for _, c := range byID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].combined != out[j].combined {
			return out[i].combined > out[j].combined
		}
		return out[i].id < out[j].id
	})
	return out
}

// minMax rescales scores to [0,1]. When every score is equal (including a
// single score) all of them map to 1.0.
func minMax(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}
	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	span := hi - lo
	for i, s := range scores {
		if span == 0 {
			out[i] = 1.0
			continue
		}
		out[i] = (s - lo) / span
	}
	return out
}
