package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/Aman-CERP/docrag/internal/store"
)

// fakeCorpus serves canned hits and chunks.
type fakeCorpus struct {
	chunks  []store.Chunk
	ranges  map[string]store.FileRecord
	keyword []store.KeywordResult
	vector  []store.VectorResult
	kwErr   error
	vecErr  error

	kwLimit  int
	vecLimit int
}

func newFakeCorpus(n int) *fakeCorpus {
	f := &fakeCorpus{ranges: map[string]store.FileRecord{}}
	for i := 0; i < n; i++ {
		f.chunks = append(f.chunks, store.Chunk{ID: i, Text: fmt.Sprintf("chunk %d", i), Kind: store.KindGeneral})
	}
	return f
}

func (f *fakeCorpus) Len() int { return len(f.chunks) }

func (f *fakeCorpus) Chunk(id int) (store.Chunk, bool) {
	if id < 0 || id >= len(f.chunks) {
		return store.Chunk{}, false
	}
	return f.chunks[id], true
}

func (f *fakeCorpus) DocumentRange(id string) (store.FileRecord, bool) {
	rec, ok := f.ranges[id]
	return rec, ok
}

func (f *fakeCorpus) SearchKeyword(_ context.Context, _ string, limit int) ([]store.KeywordResult, error) {
	f.kwLimit = limit
	if f.kwErr != nil {
		return nil, f.kwErr
	}
	if len(f.keyword) > limit {
		return f.keyword[:limit], nil
	}
	return f.keyword, nil
}

func (f *fakeCorpus) SearchVector(_ []float32, k int) ([]store.VectorResult, error) {
	f.vecLimit = k
	if f.vecErr != nil {
		return nil, f.vecErr
	}
	if len(f.vector) > k {
		return f.vector[:k], nil
	}
	return f.vector, nil
}

var errBackend = errors.New("backend down")

func ids(results []*Result) []int {
	out := make([]int, len(results))
	for i, r := range results {
		out[i] = r.Chunk.ID
	}
	return out
}

func chunkIDs(chunks []store.Chunk) []int {
	out := make([]int, len(chunks))
	for i, c := range chunks {
		out[i] = c.ID
	}
	return out
}
