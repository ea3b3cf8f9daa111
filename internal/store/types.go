// Package store holds the indexed corpus: the positional chunk store, the file
// registry mapping documents to chunk ranges, the vector and keyword indices
// built over those chunks, and the on-disk snapshot of all of them.
//
// Nothing in this package is safe for concurrent mutation. The index manager
// serializes writers and readers with a single lock.
package store

import (
	"time"
)

// ChunkKind classifies how a chunk was cut from its document.
type ChunkKind string

const (
	// KindGeneral is a plain sentence-packed chunk.
	KindGeneral ChunkKind = "general"
	// KindDateContext is a sentence holding a date plus its neighbours.
	KindDateContext ChunkKind = "date_context"
	// KindSection is a numbered section (e.g. "ARTICLE 4").
	KindSection ChunkKind = "section"
)

// Valid reports whether k is a known kind.
func (k ChunkKind) Valid() bool {
	switch k {
	case KindGeneral, KindDateContext, KindSection:
		return true
	}
	return false
}

// ChunkMeta is the per-chunk metadata persisted alongside the chunk text.
type ChunkMeta struct {
	DocumentID    string    `json:"document_id"`
	Kind          ChunkKind `json:"kind"`
	SectionNumber *int      `json:"section_number,omitempty"`
}

// Chunk is one indexed fragment. ID is its current position in the store and
// changes when an earlier document is removed.
type Chunk struct {
	ID            int       `json:"id"`
	Text          string    `json:"text"`
	DocumentID    string    `json:"document_id"`
	Kind          ChunkKind `json:"kind"`
	SectionNumber *int      `json:"section_number,omitempty"`
}

// FileRecord maps a document to its inclusive chunk range.
type FileRecord struct {
	DocumentID string    `json:"-"`
	StartIndex int       `json:"start_index"`
	EndIndex   int       `json:"end_index"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ChunkCount returns the number of chunks in the range.
func (r FileRecord) ChunkCount() int {
	return r.EndIndex - r.StartIndex + 1
}

// VectorResult is one nearest-neighbour hit.
type VectorResult struct {
	ChunkID  int
	Distance float32
	// Similarity is 1 - Distance/max(Distance) over the same result set.
	Similarity float64
}

// KeywordResult is one lexical hit.
type KeywordResult struct {
	ChunkID int
	Score   float64
}

// SectionNumber returns a pointer to n, for building ChunkMeta literals.
func SectionNumber(n int) *int {
	return &n
}
