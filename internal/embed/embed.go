// Package embed turns chunk and query text into vectors.
//
// Two providers exist: a hash-based static embedder that works offline and
// an HTTP client for a local Ollama server. Either can be wrapped in an LRU
// cache so repeated queries skip the provider.
package embed

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

// ProviderType names an embedding provider.
type ProviderType string

const (
	// ProviderStatic hashes tokens into a fixed-size vector.
	ProviderStatic ProviderType = "static"
	// ProviderOllama calls Ollama's /api/embed.
	ProviderOllama ProviderType = "ollama"
)

// DefaultBatchSize is the number of texts sent per provider request.
const DefaultBatchSize = 32

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding width.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the provider can serve requests.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// Config selects and configures a provider.
type Config struct {
	Provider   ProviderType
	Model      string
	Host       string
	Dimensions int
	BatchSize  int
	CacheSize  int
	Timeout    time.Duration
}

// New builds the configured embedder. A positive CacheSize wraps it in a
// CachedEmbedder.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Embedder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		e   Embedder
		err error
	)
	switch ProviderType(strings.ToLower(string(cfg.Provider))) {
	case ProviderStatic, "":
		e = NewStaticEmbedder(cfg.Dimensions)
	case ProviderOllama:
		e, err = NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.Host,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.Timeout,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	logger.Debug("embedder ready",
		slog.String("provider", string(cfg.Provider)),
		slog.String("model", e.ModelName()),
		slog.Int("dimensions", e.Dimensions()))

	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(e, cfg.CacheSize), nil
	}
	return e, nil
}

// normalizeVector scales v to unit length. Zero vectors are returned as-is.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
