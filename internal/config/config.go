package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/docrag/internal/logging"
)

// ProjectFile is the per-directory configuration file name.
const ProjectFile = ".docrag.yaml"

// Config represents the complete docrag configuration.
type Config struct {
	// DataDir holds the index snapshot, logs, and the lock file.
	DataDir   string          `yaml:"data_dir" json:"data_dir"`
	Embedding EmbeddingConfig `yaml:"embedding" json:"embedding"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	Vector    VectorConfig    `yaml:"vector" json:"vector"`
	Keyword   KeywordConfig   `yaml:"keyword" json:"keyword"`
	Ingest    IngestConfig    `yaml:"ingest" json:"ingest"`
	Answer    AnswerConfig    `yaml:"answer" json:"answer"`
	Logging   logging.Config  `yaml:"logging" json:"logging"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	// Provider is "static" (offline hashing) or "ollama".
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
}

// SearchConfig configures hybrid scoring.
type SearchConfig struct {
	KeywordWeight          float64 `yaml:"keyword_weight" json:"keyword_weight"`
	SemanticWeight         float64 `yaml:"semantic_weight" json:"semantic_weight"`
	DocumentKeywordWeight  float64 `yaml:"document_keyword_weight" json:"document_keyword_weight"`
	DocumentSemanticWeight float64 `yaml:"document_semantic_weight" json:"document_semantic_weight"`
	RerankBoost            float64 `yaml:"rerank_boost" json:"rerank_boost"`
	Rerank                 bool    `yaml:"rerank" json:"rerank"`
	ExpansionFactor        int     `yaml:"expansion_factor" json:"expansion_factor"`
	ExpansionCap           int     `yaml:"expansion_cap" json:"expansion_cap"`
	TopK                   int     `yaml:"top_k" json:"top_k"`
	SummaryChunks          int     `yaml:"summary_chunks" json:"summary_chunks"`
}

// VectorConfig configures the HNSW graph.
type VectorConfig struct {
	// Metric is "l2" or "cosine".
	Metric   string `yaml:"metric" json:"metric"`
	M        int    `yaml:"m" json:"m"`
	EfSearch int    `yaml:"ef_search" json:"ef_search"`
	Seed     int64  `yaml:"seed" json:"seed"`
	// ExactLimit is the largest index searched by exact scan.
	ExactLimit int `yaml:"exact_limit" json:"exact_limit"`
}

// KeywordConfig configures the lexical index.
type KeywordConfig struct {
	MaxVocabulary int `yaml:"max_vocabulary" json:"max_vocabulary"`
}

// IngestConfig configures the ingestion task runner.
type IngestConfig struct {
	Workers       int           `yaml:"workers" json:"workers"`
	TaskRetention time.Duration `yaml:"task_retention" json:"task_retention"`
	GCInterval    time.Duration `yaml:"gc_interval" json:"gc_interval"`
	// Inbox is watched by 'docrag serve'; new files are ingested.
	Inbox    string        `yaml:"inbox" json:"inbox"`
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
}

// AnswerConfig configures the chat-completions endpoint used by 'docrag ask'.
type AnswerConfig struct {
	Endpoint string        `yaml:"endpoint" json:"endpoint"`
	Model    string        `yaml:"model" json:"model"`
	APIKey   string        `yaml:"-" json:"-"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
}

// NewConfig returns the default configuration.
func NewConfig() *Config {
	return &Config{
		DataDir: ".docrag",
		Embedding: EmbeddingConfig{
			Provider:   "static",
			Model:      "nomic-embed-text",
			Dimensions: 256,
			OllamaHost: "http://localhost:11434",
			BatchSize:  32,
			CacheSize:  1024,
		},
		Search: SearchConfig{
			KeywordWeight:          0.3,
			SemanticWeight:         0.7,
			DocumentKeywordWeight:  0.4,
			DocumentSemanticWeight: 0.6,
			RerankBoost:            0.2,
			Rerank:                 true,
			ExpansionFactor:        3,
			ExpansionCap:           50,
			TopK:                   5,
			SummaryChunks:          10,
		},
		Vector: VectorConfig{
			Metric:     "l2",
			M:          16,
			EfSearch:   64,
			Seed:       42,
			ExactLimit: 20000,
		},
		Keyword: KeywordConfig{MaxVocabulary: 5000},
		Ingest: IngestConfig{
			Workers:       2,
			TaskRetention: 24 * time.Hour,
			GCInterval:    time.Hour,
			Inbox:         "inbox",
			Debounce:      500 * time.Millisecond,
		},
		Answer: AnswerConfig{
			Endpoint: "https://api.openai.com/v1",
			Model:    "gpt-4o-mini",
			Timeout:  30 * time.Second,
		},
		Logging: logging.DefaultConfig(),
	}
}

// GetUserConfigPath returns the user configuration file:
// $XDG_CONFIG_HOME/docrag/config.yaml, or ~/.config/docrag/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docrag", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "docrag", "config.yaml")
	}
	return filepath.Join(home, ".config", "docrag", "config.yaml")
}

// LoadOptions adjusts Load for command-line flags.
type LoadOptions struct {
	// File replaces the project .docrag.yaml.
	File string
	// DataDir overrides every other data_dir source.
	DataDir string
}

// Load loads configuration for dir. Precedence, lowest first:
//  1. Defaults
//  2. User config (~/.config/docrag/config.yaml)
//  3. Project config (.docrag.yaml in dir)
//  4. .env in dir (never overrides variables already set)
//  5. DOCRAG_* environment variables
//
// A relative DataDir and Inbox are resolved against dir.
func Load(dir string) (*Config, error) {
	return LoadWith(dir, LoadOptions{})
}

// LoadWith is Load with flag overrides applied.
func LoadWith(dir string, opts LoadOptions) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadYAML(GetUserConfigPath()); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	project := filepath.Join(dir, ProjectFile)
	if opts.File != "" {
		if _, err := os.Stat(opts.File); err != nil {
			return nil, fmt.Errorf("config file %s: %w", opts.File, err)
		}
		project = opts.File
	}
	if err := cfg.loadYAML(project); err != nil {
		return nil, err
	}

	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg.applyEnvOverrides()
	if opts.DataDir != "" {
		cfg.DataDir = opts.DataDir
	}

	cfg.resolvePaths(dir)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadYAML decodes path over the current values. Keys absent from the file
// keep their previous value; a missing file is not an error.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setWeight := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			if w, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && w >= 0 && w <= 1 {
				*dst = w
			}
		}
	}

	setString("DOCRAG_DATA_DIR", &c.DataDir)
	setString("DOCRAG_EMBEDDING_PROVIDER", &c.Embedding.Provider)
	setString("DOCRAG_EMBEDDING_MODEL", &c.Embedding.Model)
	setString("DOCRAG_OLLAMA_HOST", &c.Embedding.OllamaHost)
	setWeight("DOCRAG_KEYWORD_WEIGHT", &c.Search.KeywordWeight)
	setWeight("DOCRAG_SEMANTIC_WEIGHT", &c.Search.SemanticWeight)
	setString("DOCRAG_INBOX", &c.Ingest.Inbox)
	setString("DOCRAG_ANSWER_ENDPOINT", &c.Answer.Endpoint)
	setString("DOCRAG_ANSWER_MODEL", &c.Answer.Model)
	setString("OPENAI_API_KEY", &c.Answer.APIKey)
	setString("DOCRAG_ANSWER_API_KEY", &c.Answer.APIKey)
	setString("DOCRAG_LOG_LEVEL", &c.Logging.Level)

	if v := os.Getenv("DOCRAG_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Ingest.Workers = n
		}
	}
	if v := os.Getenv("DOCRAG_RERANK"); v != "" {
		c.Search.Rerank = strings.EqualFold(v, "true") || v == "1"
	}
}

func (c *Config) resolvePaths(dir string) {
	if c.DataDir != "" && !filepath.IsAbs(c.DataDir) {
		c.DataDir = filepath.Join(dir, c.DataDir)
	}
	if c.Ingest.Inbox != "" && !filepath.IsAbs(c.Ingest.Inbox) {
		c.Ingest.Inbox = filepath.Join(c.DataDir, c.Ingest.Inbox)
	}
}

// Validate checks value ranges and cross-field constraints.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir must not be empty")
	}
	if err := validateWeights("keyword_weight", c.Search.KeywordWeight, "semantic_weight", c.Search.SemanticWeight); err != nil {
		return err
	}
	if err := validateWeights("document_keyword_weight", c.Search.DocumentKeywordWeight,
		"document_semantic_weight", c.Search.DocumentSemanticWeight); err != nil {
		return err
	}
	if c.Search.RerankBoost < 0 {
		return fmt.Errorf("rerank_boost must be non-negative, got %f", c.Search.RerankBoost)
	}
	if c.Search.ExpansionFactor < 1 || c.Search.ExpansionCap < 1 {
		return fmt.Errorf("expansion_factor and expansion_cap must be positive, got %d and %d",
			c.Search.ExpansionFactor, c.Search.ExpansionCap)
	}
	if c.Search.TopK < 1 {
		return fmt.Errorf("top_k must be positive, got %d", c.Search.TopK)
	}
	if c.Keyword.MaxVocabulary < 1 {
		return fmt.Errorf("keyword.max_vocabulary must be positive, got %d", c.Keyword.MaxVocabulary)
	}
	if c.Ingest.Workers < 1 {
		return fmt.Errorf("ingest.workers must be positive, got %d", c.Ingest.Workers)
	}

	switch strings.ToLower(c.Vector.Metric) {
	case "l2", "cosine":
	default:
		return fmt.Errorf("vector.metric must be 'l2' or 'cosine', got %s", c.Vector.Metric)
	}

	switch strings.ToLower(c.Embedding.Provider) {
	case "static", "ollama":
	default:
		return fmt.Errorf("embedding.provider must be 'static' or 'ollama', got %s", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions < 1 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	return nil
}

func validateWeights(kName string, k float64, sName string, s float64) error {
	if k < 0 || k > 1 {
		return fmt.Errorf("%s must be between 0 and 1, got %f", kName, k)
	}
	if s < 0 || s > 1 {
		return fmt.Errorf("%s must be between 0 and 1, got %f", sName, s)
	}
	if sum := k + s; math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("%s + %s must equal 1.0, got %.2f", kName, sName, sum)
	}
	return nil
}
