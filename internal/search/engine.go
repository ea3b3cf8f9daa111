package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	docerrors "github.com/Aman-CERP/docrag/internal/errors"
	"github.com/Aman-CERP/docrag/internal/store"
)

// Engine runs hybrid searches against a Corpus. It holds no index state and
// is safe for concurrent use.
type Engine struct {
	cfg      Config
	reranker Reranker
	logger   *slog.Logger
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine creates an engine. Zero-valued config fields take defaults.
func NewEngine(cfg Config, opts ...EngineOption) *Engine {
	def := DefaultConfig()
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.ExpansionFactor <= 0 {
		cfg.ExpansionFactor = def.ExpansionFactor
	}
	if cfg.ExpansionCap <= 0 {
		cfg.ExpansionCap = def.ExpansionCap
	}
	if cfg.RerankBoost <= 0 {
		cfg.RerankBoost = def.RerankBoost
	}
	if cfg.Weights == (Weights{}) {
		cfg.Weights = def.Weights
	}
	if cfg.DocumentWeights == (Weights{}) {
		cfg.DocumentWeights = def.DocumentWeights
	}

	e := &Engine{
		cfg:      cfg,
		reranker: NewTermCoverageReranker(cfg.RerankBoost),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// ExpandedK is the number of candidates requested from each side for a
// query wanting topK results.
func (e *Engine) ExpandedK(topK int) int {
	k := topK * e.cfg.ExpansionFactor
	if k > e.cfg.ExpansionCap {
		k = e.cfg.ExpansionCap
	}
	return k
}

// Search ranks chunks of corpus for query. queryVector is the query's
// embedding and may be nil to run keyword-only. An empty corpus yields an
// empty slice.
//
// Both sides run concurrently. If one side fails the other side's hits are
// still used; only a failure of both is returned.
func (e *Engine) Search(ctx context.Context, corpus Corpus, query string, queryVector []float32, opts Options) ([]*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, docerrors.New(docerrors.ErrCodeQueryEmpty, "query must not be empty", nil)
	}
	if corpus.Len() == 0 {
		return []*Result{}, nil
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = e.cfg.TopK
	}
	weights := e.cfg.Weights
	if opts.DocumentID != "" {
		weights = e.cfg.DocumentWeights
	}
	if opts.Weights != nil {
		weights = *opts.Weights
	}

	var scope *store.FileRecord
	limit := e.ExpandedK(topK)
	if opts.DocumentID != "" {
		rec, ok := corpus.DocumentRange(opts.DocumentID)
		if !ok {
			return nil, docerrors.NotFound(opts.DocumentID, nil)
		}
		scope = &rec
		// Scoped searches score every chunk of the document, so both sides
		// must see the whole corpus before the range filter.
		limit = corpus.Len()
	}

	keyword, vector, err := e.retrieve(ctx, corpus, query, queryVector, limit)
	if err != nil {
		return nil, err
	}
	if scope != nil {
		keyword = filterKeyword(keyword, *scope)
		vector = filterVector(vector, *scope)
	}

	fused := fuse(keyword, vector, weights)
	if len(fused) > topK*2 {
		fused = fused[:topK*2]
	}

	results := make([]*Result, 0, len(fused))
	for _, c := range fused {
		chunk, ok := corpus.Chunk(c.id)
		if !ok {
			continue
		}
		results = append(results, &Result{
			Chunk:         chunk,
			Score:         c.combined,
			Combined:      c.combined,
			KeywordScore:  c.keyword,
			SemanticScore: c.semantic,
			InKeyword:     c.inKeyword,
			InSemantic:    c.inSemantic,
		})
	}

	reranker := e.reranker
	if !opts.Rerank || len(results) <= topK {
		reranker = NoOpReranker{}
	}
	reranked, err := reranker.Rerank(ctx, query, results, topK)
	if err != nil {
		e.logger.Warn("rerank failed, keeping fused order", slog.String("error", err.Error()))
		return truncate(results, topK), nil
	}
	return reranked, nil
}

func (e *Engine) retrieve(ctx context.Context, corpus Corpus, query string, queryVector []float32, limit int) ([]store.KeywordResult, []store.VectorResult, error) {
	var (
		keyword       []store.KeywordResult
		vector        []store.VectorResult
		kwErr, vecErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		keyword, kwErr = corpus.SearchKeyword(gctx, query, limit)
		return nil
	})
	if queryVector != nil {
		g.Go(func() error {
			vector, vecErr = corpus.SearchVector(queryVector, limit)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	switch {
	case kwErr != nil && (vecErr != nil || queryVector == nil):
		if vecErr != nil {
			return nil, nil, fmt.Errorf("keyword search: %v; vector search: %w", kwErr, vecErr)
		}
		return nil, nil, fmt.Errorf("keyword search: %w", kwErr)
	case kwErr != nil:
		e.logger.Warn("keyword search failed, using vector hits only", slog.String("error", kwErr.Error()))
		keyword = nil
	case vecErr != nil:
		e.logger.Warn("vector search failed, using keyword hits only", slog.String("error", vecErr.Error()))
		vector = nil
	}
	return keyword, vector, nil
}

func filterKeyword(in []store.KeywordResult, rec store.FileRecord) []store.KeywordResult {
	out := in[:0:0]
	for _, r := range in {
		if r.ChunkID >= rec.StartIndex && r.ChunkID <= rec.EndIndex {
			out = append(out, r)
		}
	}
	return out
}

func filterVector(in []store.VectorResult, rec store.FileRecord) []store.VectorResult {
	out := in[:0:0]
	for _, r := range in {
		if r.ChunkID >= rec.StartIndex && r.ChunkID <= rec.EndIndex {
			out = append(out, r)
		}
	}
	return out
}
