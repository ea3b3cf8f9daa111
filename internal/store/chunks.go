package store

import (
	"fmt"
	"time"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
)

// ChunkStore is the ordered chunk sequence with its metadata, cached
// embeddings, and file registry. A chunk's id is its index in the store.
type ChunkStore struct {
	texts      []string
	meta       []ChunkMeta
	embeddings [][]float32
	dims       int
	registry   *Registry
}

// RemoveResult describes a document excision.
type RemoveResult struct {
	Record           FileRecord
	Texts            []string
	Metadata         []ChunkMeta
	ShiftedDocuments []string
}

// NewChunkStore returns an empty store.
func NewChunkStore() *ChunkStore {
	return &ChunkStore{registry: NewRegistry()}
}

// Len returns the number of chunks.
func (s *ChunkStore) Len() int { return len(s.texts) }

// MetadataLen returns the number of metadata entries.
func (s *ChunkStore) MetadataLen() int { return len(s.meta) }

// EmbeddingLen returns the number of cached embeddings.
func (s *ChunkStore) EmbeddingLen() int { return len(s.embeddings) }

// Dimensions returns the embedding width, or 0 before the first append.
func (s *ChunkStore) Dimensions() int { return s.dims }

// Registry returns the file registry. Callers must not mutate it.
func (s *ChunkStore) Registry() *Registry { return s.registry }

// Texts returns the chunk texts in order. The slice is shared.
func (s *ChunkStore) Texts() []string { return s.texts }

// Metadata returns the metadata in order. The slice is shared.
func (s *ChunkStore) Metadata() []ChunkMeta { return s.meta }

// Embeddings returns the cached embeddings in order. The slice is shared.
func (s *ChunkStore) Embeddings() [][]float32 { return s.embeddings }

// Chunk returns the chunk at position id.
func (s *ChunkStore) Chunk(id int) (Chunk, bool) {
	if id < 0 || id >= len(s.texts) {
		return Chunk{}, false
	}
	m := s.meta[id]
	return Chunk{
		ID:            id,
		Text:          s.texts[id],
		DocumentID:    m.DocumentID,
		Kind:          m.Kind,
		SectionNumber: m.SectionNumber,
	}, true
}

// DocumentChunks returns documentID's chunks in order.
func (s *ChunkStore) DocumentChunks(documentID string) ([]Chunk, error) {
	rec, ok := s.registry.Get(documentID)
	if !ok {
		return nil, docerrors.NotFound(documentID, s.registry.IDs())
	}
	out := make([]Chunk, 0, rec.ChunkCount())
	for id := rec.StartIndex; id <= rec.EndIndex; id++ {
		c, _ := s.Chunk(id)
		out = append(out, c)
	}
	return out, nil
}

// AppendDocument adds a document's chunks at the end of the store and
// registers its range. metas[i].DocumentID is overwritten with documentID.
// The embeddings are copied, so callers may reuse their buffers.
func (s *ChunkStore) AppendDocument(documentID string, texts []string, metas []ChunkMeta, embeddings [][]float32, uploadedAt time.Time) (FileRecord, error) {
	if documentID == "" {
		return FileRecord{}, docerrors.ValidationError("document id must not be empty", nil)
	}
	if _, exists := s.registry.Get(documentID); exists {
		return FileRecord{}, docerrors.Duplicate(documentID)
	}
	if len(texts) == 0 {
		return FileRecord{}, docerrors.ValidationError(fmt.Sprintf("document %q has no chunks", documentID), nil)
	}
	if len(metas) != len(texts) || len(embeddings) != len(texts) {
		return FileRecord{}, docerrors.ValidationError(fmt.Sprintf(
			"document %q: %d chunks, %d metadata, %d embeddings", documentID, len(texts), len(metas), len(embeddings)), nil)
	}

	dims := s.dims
	if dims == 0 {
		dims = len(embeddings[0])
	}
	for _, e := range embeddings {
		if len(e) != dims || dims == 0 {
			return FileRecord{}, docerrors.DimensionMismatch(dims, len(e))
		}
	}

	rec := FileRecord{
		DocumentID: documentID,
		StartIndex: len(s.texts),
		EndIndex:   len(s.texts) + len(texts) - 1,
		UploadedAt: uploadedAt.UTC(),
	}

	for i := range texts {
		m := metas[i]
		m.DocumentID = documentID
		if !m.Kind.Valid() {
			m.Kind = KindGeneral
		}
		s.texts = append(s.texts, texts[i])
		s.meta = append(s.meta, m)
		s.embeddings = append(s.embeddings, append([]float32(nil), embeddings[i]...))
	}
	s.dims = dims
	s.registry.add(rec)
	return rec, nil
}

// RemoveDocument excises documentID's range and shifts every later range
// down by its width.
func (s *ChunkStore) RemoveDocument(documentID string) (RemoveResult, error) {
	rec, ok := s.registry.Get(documentID)
	if !ok {
		return RemoveResult{}, docerrors.NotFound(documentID, s.registry.IDs())
	}

	start, end := rec.StartIndex, rec.EndIndex+1
	res := RemoveResult{
		Record:   rec,
		Texts:    append([]string(nil), s.texts[start:end]...),
		Metadata: append([]ChunkMeta(nil), s.meta[start:end]...),
	}

	s.texts = append(s.texts[:start:start], s.texts[end:]...)
	s.meta = append(s.meta[:start:start], s.meta[end:]...)
	s.embeddings = append(s.embeddings[:start:start], s.embeddings[end:]...)
	_, res.ShiftedDocuments = s.registry.remove(documentID)

	if len(s.texts) == 0 {
		s.dims = 0
	}
	return res, nil
}

// Clear empties the store and registry.
func (s *ChunkStore) Clear() {
	s.texts = nil
	s.meta = nil
	s.embeddings = nil
	s.dims = 0
	s.registry.clear()
}

// Validate checks the length invariants and registry coverage.
func (s *ChunkStore) Validate() error {
	if len(s.meta) != len(s.texts) {
		return docerrors.Inconsistent("%d chunks but %d metadata entries", len(s.texts), len(s.meta))
	}
	if len(s.embeddings) != len(s.texts) {
		return docerrors.Inconsistent("%d chunks but %d embeddings", len(s.texts), len(s.embeddings))
	}
	for i, m := range s.meta {
		rec, ok := s.registry.Get(m.DocumentID)
		if !ok || i < rec.StartIndex || i > rec.EndIndex {
			return docerrors.Inconsistent("chunk %d belongs to %q outside its registered range", i, m.DocumentID)
		}
	}
	return s.registry.Validate(len(s.texts))
}
