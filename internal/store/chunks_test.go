package store

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
)

var testTime = time.Date(2024, 8, 9, 10, 0, 0, 0, time.UTC)

// appendDoc adds a document with n general chunks. Each embedding encodes
// the document's position in the store and the chunk's ordinal, so no two
// chunks share a vector.
func appendDoc(t *testing.T, s *ChunkStore, id string, n int) FileRecord {
	t.Helper()
	texts := make([]string, n)
	metas := make([]ChunkMeta, n)
	embs := make([][]float32, n)
	doc := float32(s.Registry().Len() + 1)
	for i := 0; i < n; i++ {
		texts[i] = fmt.Sprintf("%s chunk %d", id, i)
		metas[i] = ChunkMeta{Kind: KindGeneral}
		embs[i] = []float32{doc * 100, float32(i), 1}
	}
	rec, err := s.AppendDocument(id, texts, metas, embs, testTime)
	require.NoError(t, err)
	return rec
}

func rangeOf(t *testing.T, s *ChunkStore, id string) [2]int {
	t.Helper()
	rec, ok := s.Registry().Get(id)
	require.True(t, ok, "document %s missing", id)
	return [2]int{rec.StartIndex, rec.EndIndex}
}

func TestChunkStore_AppendAssignsContiguousRanges(t *testing.T) {
	// Given: an empty store
	s := NewChunkStore()

	// When: appending three documents of 3, 2, and 4 chunks
	appendDoc(t, s, "file1", 3)
	appendDoc(t, s, "file2", 2)
	appendDoc(t, s, "file3", 4)

	// Then: ranges are [0,2], [3,4], [5,8]
	assert.Equal(t, [2]int{0, 2}, rangeOf(t, s, "file1"))
	assert.Equal(t, [2]int{3, 4}, rangeOf(t, s, "file2"))
	assert.Equal(t, [2]int{5, 8}, rangeOf(t, s, "file3"))
	assert.Equal(t, 9, s.Len())
	require.NoError(t, s.Validate())
}

func TestChunkStore_RemoveShiftsFollowingRanges(t *testing.T) {
	// Given: file1 [0,2], file2 [3,4], file3 [5,8]
	s := NewChunkStore()
	appendDoc(t, s, "file1", 3)
	appendDoc(t, s, "file2", 2)
	appendDoc(t, s, "file3", 4)

	// When: removing file2
	res, err := s.RemoveDocument("file2")
	require.NoError(t, err)

	// Then: file1 is untouched, file3 moves down by 2
	assert.Equal(t, [2]int{0, 2}, rangeOf(t, s, "file1"))
	assert.Equal(t, [2]int{3, 6}, rangeOf(t, s, "file3"))
	assert.Equal(t, 7, s.Len())
	assert.Equal(t, 7, s.MetadataLen())
	assert.Equal(t, 7, s.EmbeddingLen())
	assert.Equal(t, []string{"file2 chunk 0", "file2 chunk 1"}, res.Texts)
	assert.Equal(t, []string{"file3"}, res.ShiftedDocuments)
	require.NoError(t, s.Validate())

	// And: the shifted chunks kept their text and ownership
	c, ok := s.Chunk(3)
	require.True(t, ok)
	assert.Equal(t, "file3 chunk 0", c.Text)
	assert.Equal(t, "file3", c.DocumentID)
}

func TestChunkStore_RemoveLastAndFirst(t *testing.T) {
	s := NewChunkStore()
	appendDoc(t, s, "a", 2)
	appendDoc(t, s, "b", 1)
	appendDoc(t, s, "c", 3)

	res, err := s.RemoveDocument("c")
	require.NoError(t, err)
	assert.Empty(t, res.ShiftedDocuments)
	assert.Equal(t, [2]int{2, 2}, rangeOf(t, s, "b"))

	res, err = s.RemoveDocument("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, res.ShiftedDocuments)
	assert.Equal(t, [2]int{0, 0}, rangeOf(t, s, "b"))
	require.NoError(t, s.Validate())

	_, err = s.RemoveDocument("b")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.Dimensions())
}

func TestChunkStore_RemoveMissingIsNoOp(t *testing.T) {
	// Given: a store with two documents
	s := NewChunkStore()
	appendDoc(t, s, "a", 2)
	appendDoc(t, s, "b", 2)

	// When: removing an unknown document
	_, err := s.RemoveDocument("zzz")

	// Then: NotFound carries the known ids and nothing changed
	require.Error(t, err)
	assert.True(t, errors.Is(err, docerrors.ErrNotFound))
	assert.Equal(t, []string{"a", "b"}, docerrors.KnownIDs(err))
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, [2]int{2, 3}, rangeOf(t, s, "b"))
}

func TestChunkStore_AppendRejectsInvalidInput(t *testing.T) {
	s := NewChunkStore()
	appendDoc(t, s, "a", 1)

	tests := []struct {
		name  string
		id    string
		texts []string
		metas []ChunkMeta
		embs  [][]float32
		want  *docerrors.DocError
	}{
		{"duplicate", "a", []string{"x"}, []ChunkMeta{{}}, [][]float32{{1, 1, 1}}, docerrors.ErrDuplicate},
		{"dimension", "b", []string{"x"}, []ChunkMeta{{}}, [][]float32{{1, 1}}, docerrors.ErrDimensionMismatch},
		{"length", "c", []string{"x", "y"}, []ChunkMeta{{}}, [][]float32{{1, 1, 1}}, nil},
		{"empty", "d", nil, nil, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AppendDocument(tt.id, tt.texts, tt.metas, tt.embs, testTime)
			require.Error(t, err)
			if tt.want != nil {
				assert.True(t, errors.Is(err, tt.want))
			}
			assert.Equal(t, 1, s.Len())
		})
	}
}

func TestChunkStore_AppendDefaultsKindAndOwner(t *testing.T) {
	s := NewChunkStore()
	_, err := s.AppendDocument("lease", []string{"ARTICLE 4 ..."},
		[]ChunkMeta{{DocumentID: "ignored", SectionNumber: SectionNumber(4), Kind: "bogus"}},
		[][]float32{{1}}, testTime)
	require.NoError(t, err)

	c, ok := s.Chunk(0)
	require.True(t, ok)
	assert.Equal(t, "lease", c.DocumentID)
	assert.Equal(t, KindGeneral, c.Kind)
	require.NotNil(t, c.SectionNumber)
	assert.Equal(t, 4, *c.SectionNumber)
}

func TestChunkStore_ClearEmptiesEverything(t *testing.T) {
	s := NewChunkStore()
	appendDoc(t, s, "a", 2)
	s.Clear()

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.Registry().Len())
	require.NoError(t, s.Validate())
	appendDoc(t, s, "a", 1)
	assert.Equal(t, [2]int{0, 0}, rangeOf(t, s, "a"))
}

func TestRegistry_ValidateDetectsGapsAndOverlap(t *testing.T) {
	r := NewRegistry()
	r.add(FileRecord{DocumentID: "a", StartIndex: 0, EndIndex: 1})
	r.add(FileRecord{DocumentID: "b", StartIndex: 3, EndIndex: 4})
	assert.Error(t, r.Validate(5), "gap at 2")

	r = NewRegistry()
	r.add(FileRecord{DocumentID: "a", StartIndex: 0, EndIndex: 2})
	r.add(FileRecord{DocumentID: "b", StartIndex: 2, EndIndex: 4})
	assert.Error(t, r.Validate(5), "overlap at 2")

	r = NewRegistry()
	r.add(FileRecord{DocumentID: "a", StartIndex: 0, EndIndex: 2})
	assert.Error(t, r.Validate(4), "short coverage")
	assert.NoError(t, r.Validate(3))
}

func TestRegistry_JSONUsesDocumentKeys(t *testing.T) {
	s := NewChunkStore()
	appendDoc(t, s, "lease-a", 2)

	data, err := s.Registry().MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"lease-a":{"start_index":0,"end_index":1,"uploaded_at":"2024-08-09T10:00:00Z"}}`, string(data))

	decoded := NewRegistry()
	require.NoError(t, decoded.UnmarshalJSON(data))
	rec, ok := decoded.Get("lease-a")
	require.True(t, ok)
	assert.Equal(t, "lease-a", rec.DocumentID)
	assert.Equal(t, 2, rec.ChunkCount())
}

func TestChunkStore_AppendCopiesEmbeddings(t *testing.T) {
	// Given: a document appended from a caller-owned buffer
	s := NewChunkStore()
	buf := [][]float32{{1, 2, 3}}
	_, err := s.AppendDocument("a", []string{"x"}, []ChunkMeta{{}}, buf, testTime)
	require.NoError(t, err)

	// When: the caller overwrites the buffer
	buf[0][0] = 99

	// Then: the cached embedding is unchanged
	assert.Equal(t, []float32{1, 2, 3}, s.Embeddings()[0])
}
