// Package search ranks indexed chunks for a query. Keyword and vector hits
// are min-max normalized per side and fused with fixed weights, then an
// optional term-coverage pass reorders the head of the list. The package also
// holds the document-level sampler used for summaries and the question
// classifier that decides how a question is answered.
package search

import (
	"context"

	"github.com/Aman-CERP/docrag/internal/store"
)

// Corpus is the read view of an index the engine searches. Implementations
// must be safe for concurrent reads for the duration of one Search call.
type Corpus interface {
	// Len returns the number of chunks.
	Len() int
	// Chunk returns the chunk at position id.
	Chunk(id int) (store.Chunk, bool)
	// DocumentRange returns the registered range of documentID.
	DocumentRange(documentID string) (store.FileRecord, bool)
	// SearchKeyword returns lexical hits ordered by descending score.
	SearchKeyword(ctx context.Context, query string, limit int) ([]store.KeywordResult, error)
	// SearchVector returns nearest neighbours ordered by ascending distance.
	SearchVector(query []float32, k int) ([]store.VectorResult, error)
}

// Weights sets the share of the keyword and semantic signals in the
// combined score.
type Weights struct {
	Keyword  float64 `yaml:"keyword" json:"keyword"`
	Semantic float64 `yaml:"semantic" json:"semantic"`
}

// DefaultWeights favours semantic similarity for corpus-wide queries.
func DefaultWeights() Weights {
	return Weights{Keyword: 0.3, Semantic: 0.7}
}

// DocumentWeights gives keywords more say when the search is already scoped
// to one document.
func DocumentWeights() Weights {
	return Weights{Keyword: 0.4, Semantic: 0.6}
}

// Options configures a single search.
type Options struct {
	// TopK is the number of results to return (default: Config.TopK).
	TopK int

	// Weights overrides the configured weights.
	Weights *Weights

	// Rerank enables the term-coverage pass.
	Rerank bool

	// DocumentID restricts candidates to one document's chunks.
	DocumentID string
}

// Result is one ranked chunk.
type Result struct {
	Chunk store.Chunk `json:"chunk"`

	// Score is the final ranking score, including any rerank boost.
	Score float64 `json:"score"`

	// Combined is the weighted sum of the normalized scores.
	Combined float64 `json:"combined"`

	// KeywordScore is the raw keyword score, 0 when absent.
	KeywordScore float64 `json:"keyword_score"`

	// SemanticScore is the raw vector similarity, 0 when absent.
	SemanticScore float64 `json:"semantic_score"`

	InKeyword  bool `json:"in_keyword"`
	InSemantic bool `json:"in_semantic"`
}

// Config holds the engine's tuning knobs.
type Config struct {
	TopK            int
	ExpansionFactor int
	ExpansionCap    int
	RerankBoost     float64
	Weights         Weights
	DocumentWeights Weights
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		TopK:            5,
		ExpansionFactor: 3,
		ExpansionCap:    50,
		RerankBoost:     DefaultRerankBoost,
		Weights:         DefaultWeights(),
		DocumentWeights: DocumentWeights(),
	}
}
