// Package index owns the live index: the chunk store, its vector and
// keyword indices, and their persisted snapshot. The Manager serializes all
// mutations behind one lock and keeps the parts in agreement.
package index

import (
	"fmt"
	"time"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/store"
)

// InconsistencyType categorizes a detected issue.
type InconsistencyType int

const (
	// InconsistencyMetadataCount means chunks and metadata differ in length.
	InconsistencyMetadataCount InconsistencyType = iota
	// InconsistencyEmbeddingCount means chunks and cached embeddings differ in length.
	InconsistencyEmbeddingCount
	// InconsistencyVectorCount means the vector index holds a different number of nodes.
	InconsistencyVectorCount
	// InconsistencyKeywordCount means the keyword index holds a different number of chunks.
	InconsistencyKeywordCount
	// InconsistencyRegistry means the file ranges do not tile the chunk store.
	InconsistencyRegistry
)

// String returns a short name for the type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyMetadataCount:
		return "metadata_count"
	case InconsistencyEmbeddingCount:
		return "embedding_count"
	case InconsistencyVectorCount:
		return "vector_count"
	case InconsistencyKeywordCount:
		return "keyword_count"
	case InconsistencyRegistry:
		return "registry"
	default:
		return "unknown"
	}
}

// Inconsistency is one detected issue.
type Inconsistency struct {
	Type    InconsistencyType
	Details string
}

// CheckResult is the outcome of a consistency check.
type CheckResult struct {
	// Checked is the number of chunks verified.
	Checked         int
	Inconsistencies []Inconsistency
	Duration        time.Duration
}

// OK reports whether no issue was found.
func (r *CheckResult) OK() bool {
	return len(r.Inconsistencies) == 0
}

// Err returns an IndexInconsistency error describing the first issue, or nil.
func (r *CheckResult) Err() error {
	if r.OK() {
		return nil
	}
	first := r.Inconsistencies[0]
	return docerrors.Inconsistent("%s: %s", first.Type, first.Details)
}

// CheckConsistency verifies that chunks, metadata, embeddings, vectors, and
// keyword entries agree in count and that the registry tiles the store.
// keyword may be nil to skip its check.
func CheckConsistency(chunks *store.ChunkStore, vectors *store.VectorIndex, keyword *store.KeywordIndex) *CheckResult {
	start := time.Now()
	n := chunks.Len()
	var issues []Inconsistency

	add := func(t InconsistencyType, format string, args ...any) {
		issues = append(issues, Inconsistency{Type: t, Details: fmt.Sprintf(format, args...)})
	}

	if m := chunks.MetadataLen(); m != n {
		add(InconsistencyMetadataCount, "%d chunks, %d metadata entries", n, m)
	}
	if e := chunks.EmbeddingLen(); e != n {
		add(InconsistencyEmbeddingCount, "%d chunks, %d embeddings", n, e)
	}
	if v := vectors.Count(); v != n {
		add(InconsistencyVectorCount, "%d chunks, %d vectors", n, v)
	}
	if keyword != nil {
		if k := keyword.Count(); k != n {
			add(InconsistencyKeywordCount, "%d chunks, %d keyword entries", n, k)
		}
	}
	if len(issues) == 0 {
		if err := chunks.Validate(); err != nil {
			add(InconsistencyRegistry, "%v", err)
		}
	}

	return &CheckResult{
		Checked:         n,
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}
}
