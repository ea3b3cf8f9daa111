// Package app wires configuration into the running components: embedder,
// index manager, ingestion runner, and answerer. Commands build one Services
// value and pass it around instead of reaching for globals.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/docrag/internal/answer"
	"github.com/Aman-CERP/docrag/internal/async"
	"github.com/Aman-CERP/docrag/internal/chunk"
	"github.com/Aman-CERP/docrag/internal/config"
	"github.com/Aman-CERP/docrag/internal/embed"
	"github.com/Aman-CERP/docrag/internal/extract"
	"github.com/Aman-CERP/docrag/internal/index"
	"github.com/Aman-CERP/docrag/internal/search"
	"github.com/Aman-CERP/docrag/internal/store"
)

// Services holds the wired components for one process.
type Services struct {
	Config   *config.Config
	Logger   *slog.Logger
	Embedder embed.Embedder
	Manager  *index.Manager
	Runner   *async.Runner
	Answerer *answer.Answerer

	extractor extract.Extractor
	chunker   chunk.Chunker
	provider  answer.Provider
	// ownsEmbedder is false for an embedder passed in by WithEmbedder.
	ownsEmbedder bool
}

// Option overrides a component, mostly for tests.
type Option func(*Services)

// WithEmbedder replaces the configured embedder. The caller keeps ownership
// and closes it.
func WithEmbedder(e embed.Embedder) Option {
	return func(s *Services) { s.Embedder = e }
}

// WithExtractor replaces the file extractor.
func WithExtractor(e extract.Extractor) Option {
	return func(s *Services) { s.extractor = e }
}

// WithChunker replaces the document chunker.
func WithChunker(c chunk.Chunker) Option {
	return func(s *Services) { s.chunker = c }
}

// WithAnswerProvider replaces the chat-completions client.
func WithAnswerProvider(p answer.Provider) Option {
	return func(s *Services) { s.provider = p }
}

// New builds every component from cfg and loads the persisted index.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Services{Config: cfg, Logger: logger}
	for _, opt := range opts {
		opt(s)
	}

	if s.Embedder == nil {
		e, err := embed.New(ctx, embed.Config{
			Provider:   embed.ProviderType(cfg.Embedding.Provider),
			Model:      cfg.Embedding.Model,
			Host:       cfg.Embedding.OllamaHost,
			Dimensions: cfg.Embedding.Dimensions,
			BatchSize:  cfg.Embedding.BatchSize,
			CacheSize:  cfg.Embedding.CacheSize,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		s.Embedder = e
		s.ownsEmbedder = true
	}
	if s.extractor == nil {
		s.extractor = extract.NewFileExtractor()
	}
	if s.chunker == nil {
		s.chunker = chunk.NewDocumentChunker(chunk.Options{})
	}
	if s.provider == nil {
		s.provider = answer.NewChatClient(answer.Config{
			Endpoint: cfg.Answer.Endpoint,
			Model:    cfg.Answer.Model,
			APIKey:   cfg.Answer.APIKey,
			Timeout:  cfg.Answer.Timeout,
		})
	}

	s.Manager = index.NewManager(ManagerConfig(cfg), s.Embedder, index.WithLogger(logger))
	if err := s.Manager.Open(ctx); err != nil {
		if s.ownsEmbedder {
			_ = s.Embedder.Close()
		}
		return nil, err
	}

	s.Runner = async.NewRunner(async.RunnerConfig{
		Workers:   cfg.Ingest.Workers,
		Retention: cfg.Ingest.TaskRetention,
	}, s.ingest, async.WithLogger(logger))

	s.Answerer = answer.NewAnswerer(answer.NewSoft(s.provider, cfg.Answer.Timeout, logger))
	return s, nil
}

// ManagerConfig maps the file configuration onto the index manager's.
func ManagerConfig(cfg *config.Config) index.Config {
	return index.Config{
		DataDir: cfg.DataDir,
		Vector: store.VectorConfig{
			Metric:     strings.ToLower(cfg.Vector.Metric),
			M:          cfg.Vector.M,
			EfSearch:   cfg.Vector.EfSearch,
			Seed:       cfg.Vector.Seed,
			ExactLimit: cfg.Vector.ExactLimit,
		},
		MaxVocabulary: cfg.Keyword.MaxVocabulary,
		Search: search.Config{
			TopK:            cfg.Search.TopK,
			ExpansionFactor: cfg.Search.ExpansionFactor,
			ExpansionCap:    cfg.Search.ExpansionCap,
			RerankBoost:     cfg.Search.RerankBoost,
			Weights: search.Weights{
				Keyword:  cfg.Search.KeywordWeight,
				Semantic: cfg.Search.SemanticWeight,
			},
			DocumentWeights: search.Weights{
				Keyword:  cfg.Search.DocumentKeywordWeight,
				Semantic: cfg.Search.DocumentSemanticWeight,
			},
		},
		Rerank:        cfg.Search.Rerank,
		SummaryChunks: cfg.Search.SummaryChunks,
	}
}

// Submit queues path for ingestion. An empty documentID defaults to the
// file's base name.
func (s *Services) Submit(path, documentID string) (async.TaskSnapshot, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return async.TaskSnapshot{}, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if documentID == "" {
		documentID = filepath.Base(abs)
	}
	return s.Runner.Submit(documentID, abs)
}

// Ask classifies question, gathers its context, and answers it. Answer
// provider failures come back as the answer text.
func (s *Services) Ask(ctx context.Context, question string) (string, *search.Retrieval, error) {
	r, err := s.Manager.Retrieve(ctx, question)
	if err != nil {
		return "", nil, err
	}
	return s.Answerer.Answer(ctx, r), r, nil
}

// Close stops the runner, waits for running jobs, and releases the index and
// the embedder New created.
func (s *Services) Close() error {
	var firstErr error
	if s.Runner != nil {
		if err := s.Runner.Close(); err != nil {
			firstErr = err
		}
	}
	if s.Manager != nil {
		if err := s.Manager.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.Embedder != nil && s.ownsEmbedder {
		if err := s.Embedder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
