package store

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"sort"

	"github.com/coder/hnsw"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
)

// VectorConfig configures the vector index.
type VectorConfig struct {
	// Metric is "l2" (default) or "cosine".
	Metric   string
	M        int
	EfSearch int
	// Seed drives level generation.
	Seed int64
	// ExactLimit is the largest index answered by an exact scan. Larger
	// indices take an HNSW candidate pool and rescore it exactly.
	ExactLimit int
}

// DefaultVectorConfig returns the default parameters.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{Metric: "l2", M: 16, EfSearch: 64, Seed: 42, ExactLimit: DefaultExactLimit}
}

const (
	// DefaultExactLimit keeps typical document collections on the exact path.
	DefaultExactLimit = 20000

	// minEfSearch keeps the candidate pool at least as large as the biggest
	// expanded query the hybrid scorer issues.
	minEfSearch = 50
)

// VectorIndex is a nearest-neighbour index over chunk embeddings, keyed by
// chunk position. The cached vectors are the ranking authority: distances
// are always computed exactly from them, so identical embeddings give
// identical orderings. The HNSW graph only narrows the candidates once the
// index outgrows ExactLimit. There is no point removal: after a deletion
// the caller rebuilds from the surviving embeddings.
type VectorIndex struct {
	cfg     VectorConfig
	graph   *hnsw.Graph[uint64]
	vectors [][]float32
	dims    int
}

// NewVectorIndex returns an empty index.
func NewVectorIndex(cfg VectorConfig) *VectorIndex {
	if cfg.Metric == "" {
		cfg.Metric = "l2"
	}
	if cfg.M <= 0 {
		cfg.M = 16
	}
	if cfg.EfSearch < minEfSearch {
		cfg.EfSearch = minEfSearch
	}
	if cfg.ExactLimit <= 0 {
		cfg.ExactLimit = DefaultExactLimit
	}
	v := &VectorIndex{cfg: cfg}
	v.graph = v.newGraph()
	return v
}

func (v *VectorIndex) newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = v.distanceFunc()
	g.M = v.cfg.M
	g.EfSearch = v.cfg.EfSearch
	g.Ml = 0.25
	g.Rng = rand.New(rand.NewSource(v.cfg.Seed))
	return g
}

func (v *VectorIndex) distanceFunc() hnsw.DistanceFunc {
	switch v.cfg.Metric {
	case "cosine", "cos":
		return hnsw.CosineDistance
	default:
		return hnsw.EuclideanDistance
	}
}

// Build replaces the index with one built from embeddings; embeddings[i]
// gets key i.
func (v *VectorIndex) Build(embeddings [][]float32) error {
	v.graph = v.newGraph()
	v.vectors = nil
	v.dims = 0
	return v.Add(0, embeddings)
}

// Add inserts embeddings with keys start, start+1, ... This is the cheap
// path for appends; keys must continue the existing sequence.
func (v *VectorIndex) Add(start int, embeddings [][]float32) error {
	if start != len(v.vectors) {
		return fmt.Errorf("vector add at %d but index holds %d vectors", start, len(v.vectors))
	}
	if len(embeddings) == 0 {
		return nil
	}

	dims := v.dims
	if dims == 0 {
		dims = len(embeddings[0])
	}
	for _, e := range embeddings {
		if len(e) != dims || dims == 0 {
			return docerrors.DimensionMismatch(dims, len(e))
		}
	}

	nodes := make([]hnsw.Node[uint64], len(embeddings))
	for i, e := range embeddings {
		vec := make([]float32, len(e))
		copy(vec, e)
		nodes[i] = hnsw.MakeNode(uint64(start+i), vec)
		v.vectors = append(v.vectors, vec)
	}
	v.graph.Add(nodes...)
	v.dims = dims
	return nil
}

// Count returns the number of indexed vectors.
func (v *VectorIndex) Count() int {
	return len(v.vectors)
}

// Dimensions returns the vector width, or 0 when empty.
func (v *VectorIndex) Dimensions() int {
	return v.dims
}

// Search returns up to k neighbours ordered by ascending distance, ties by
// chunk id. Each result's Similarity is normalized against the farthest hit
// in this set.
func (v *VectorIndex) Search(query []float32, k int) ([]VectorResult, error) {
	if k <= 0 || len(v.vectors) == 0 {
		return []VectorResult{}, nil
	}
	if len(query) != v.dims {
		return nil, docerrors.DimensionMismatch(v.dims, len(query))
	}

	distance := v.distanceFunc()
	var results []VectorResult
	if len(v.vectors) <= v.cfg.ExactLimit {
		results = make([]VectorResult, len(v.vectors))
		for id, vec := range v.vectors {
			results[id] = VectorResult{ChunkID: id, Distance: distance(query, vec)}
		}
	} else {
		pool := k
		if pool < v.cfg.EfSearch {
			pool = v.cfg.EfSearch
		}
		nodes := v.graph.Search(query, pool)
		results = make([]VectorResult, 0, len(nodes))
		for _, n := range nodes {
			id := int(n.Key)
			if id < 0 || id >= len(v.vectors) {
				continue
			}
			results = append(results, VectorResult{ChunkID: id, Distance: distance(query, v.vectors[id])})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	if len(results) > k {
		results = results[:k]
	}

	var maxDist float32
	for _, r := range results {
		if r.Distance > maxDist {
			maxDist = r.Distance
		}
	}
	for i := range results {
		if maxDist == 0 {
			results[i].Similarity = 1.0
			continue
		}
		results[i].Similarity = 1 - float64(results[i].Distance/maxDist)
	}
	return results, nil
}

// Export writes the graph as an opaque blob.
func (v *VectorIndex) Export(w io.Writer) error {
	if err := v.graph.Export(w); err != nil {
		return fmt.Errorf("failed to export graph: %w", err)
	}
	return nil
}

// Import replaces the graph with one read from r. embeddings are the cached
// vectors the graph was built from; they must match it node for node.
func (v *VectorIndex) Import(r io.Reader, embeddings [][]float32) error {
	g := v.newGraph()
	// coder/hnsw Import needs an io.ByteReader.
	if err := g.Import(bufio.NewReader(r)); err != nil {
		return fmt.Errorf("failed to import graph: %w", err)
	}
	if g.Len() != len(embeddings) {
		return fmt.Errorf("graph holds %d nodes but %d embeddings are cached", g.Len(), len(embeddings))
	}

	vectors := make([][]float32, len(embeddings))
	dims := 0
	for i, e := range embeddings {
		if dims == 0 {
			dims = len(e)
		}
		if len(e) != dims {
			return docerrors.DimensionMismatch(dims, len(e))
		}
		vectors[i] = append([]float32(nil), e...)
	}
	v.graph = g
	v.vectors = vectors
	v.dims = dims
	return nil
}
