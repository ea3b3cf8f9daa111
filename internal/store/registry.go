package store

import (
	"encoding/json"
	"sort"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
)

// Registry maps document ids to their chunk ranges.
type Registry struct {
	records map[string]FileRecord
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]FileRecord)}
}

// Len returns the number of registered documents.
func (r *Registry) Len() int {
	return len(r.records)
}

// Get returns the record for documentID.
func (r *Registry) Get(documentID string) (FileRecord, bool) {
	rec, ok := r.records[documentID]
	return rec, ok
}

// List returns all records ordered by StartIndex.
func (r *Registry) List() []FileRecord {
	out := make([]FileRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartIndex < out[j].StartIndex
	})
	return out
}

// IDs returns the document ids ordered by StartIndex.
func (r *Registry) IDs() []string {
	list := r.List()
	ids := make([]string, len(list))
	for i, rec := range list {
		ids[i] = rec.DocumentID
	}
	return ids
}

func (r *Registry) add(rec FileRecord) {
	r.records[rec.DocumentID] = rec
}

// remove drops documentID and shifts every later range down by the removed
// width. It returns the removed record and the ids whose range moved.
func (r *Registry) remove(documentID string) (FileRecord, []string) {
	rec := r.records[documentID]
	delete(r.records, documentID)

	width := rec.ChunkCount()
	var shifted []string
	for id, other := range r.records {
		if other.StartIndex > rec.EndIndex {
			other.StartIndex -= width
			other.EndIndex -= width
			r.records[id] = other
			shifted = append(shifted, id)
		}
	}
	sort.Strings(shifted)
	return rec, shifted
}

func (r *Registry) clear() {
	r.records = make(map[string]FileRecord)
}

// Validate checks that the ranges are non-empty, non-overlapping, and tile
// [0, total) exactly.
func (r *Registry) Validate(total int) error {
	next := 0
	for _, rec := range r.List() {
		if rec.EndIndex < rec.StartIndex {
			return docerrors.Inconsistent("document %q has empty range [%d,%d]", rec.DocumentID, rec.StartIndex, rec.EndIndex)
		}
		if rec.StartIndex != next {
			return docerrors.Inconsistent("document %q starts at %d, expected %d", rec.DocumentID, rec.StartIndex, next)
		}
		next = rec.EndIndex + 1
	}
	if next != total {
		return docerrors.Inconsistent("registry covers %d chunks, store holds %d", next, total)
	}
	return nil
}

// MarshalJSON encodes the registry as an object keyed by document id.
func (r *Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.records)
}

// UnmarshalJSON decodes an object keyed by document id.
func (r *Registry) UnmarshalJSON(data []byte) error {
	records := make(map[string]FileRecord)
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}
	for id, rec := range records {
		rec.DocumentID = id
		records[id] = rec
	}
	r.records = records
	return nil
}
