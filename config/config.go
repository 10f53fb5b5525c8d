// Package config loads the YAML application configuration used by the
// conceptrag command. Library packages are configured with functional
// options; this package only maps a file onto them.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/poiesic/conceptrag/ai"
	"github.com/poiesic/conceptrag/chunking"
	"github.com/poiesic/conceptrag/core"
	"github.com/poiesic/conceptrag/ingestion"
	"github.com/poiesic/conceptrag/matching"
	"github.com/poiesic/conceptrag/reconstruct"
	"github.com/poiesic/conceptrag/routing"
	"github.com/poiesic/conceptrag/search"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// Storage backends.
const (
	BackendBadger = "badger"
	BackendJSON   = "json"
)

// DefaultPath is the config file read when no --config flag is given.
const DefaultPath = "conceptrag.yaml"

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// ChunkerConfig sizes chunks in characters.
type ChunkerConfig struct {
	TargetSize int `yaml:"target_size"`
	Overlap    int `yaml:"overlap"`
}

// ExtractionConfig controls per-chunk analysis.
type ExtractionConfig struct {
	Mode             string `yaml:"mode"`
	Keywords         int    `yaml:"keywords"`
	SummarySentences int    `yaml:"summary_sentences"`
}

// MatcherConfig controls concept matching.
type MatcherConfig struct {
	Threshold float64 `yaml:"threshold"`
	TopK      int     `yaml:"top_k"`
}

// SearchConfig controls the vector search fallback.
type SearchConfig struct {
	MinSimilarity float32 `yaml:"min_similarity"`
}

// ReconstructionConfig controls context assembly around matched chunks.
type ReconstructionConfig struct {
	Window        int  `yaml:"window"`
	Passages      int  `yaml:"passages"`
	Annotate      bool `yaml:"annotate"`
	NeighborLimit int  `yaml:"neighbor_limit"`
}

// RouterConfig holds the routing thresholds.
type RouterConfig struct {
	MinConceptWeight float64 `yaml:"min_concept_weight"`
	MinQueryLength   int     `yaml:"min_query_length"`
}

// IngestionConfig controls the ingestion worker pool.
type IngestionConfig struct {
	PoolSize int `yaml:"pool_size"`
}

// AIConfig points at an OpenAI-compatible endpoint. The API key is never
// stored in the file; it is read from the environment variable APIKeyEnv.
type AIConfig struct {
	Enabled         bool    `yaml:"enabled"`
	Embeddings      bool    `yaml:"embeddings"`
	EmbeddingHost   string  `yaml:"embedding_host"`
	GenerationHost  string  `yaml:"generation_host"`
	EmbeddingModel  string  `yaml:"embedding_model"`
	GenerationModel string  `yaml:"generation_model"`
	APIKeyEnv       string  `yaml:"api_key_env"`
	Temperature     float64 `yaml:"temperature"`
}

// MaintenanceConfig controls the reindex and reembed jobs.
type MaintenanceConfig struct {
	BatchSize  int           `yaml:"batch_size"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Storage        StorageConfig        `yaml:"storage"`
	Chunker        ChunkerConfig        `yaml:"chunker"`
	Extraction     ExtractionConfig     `yaml:"extraction"`
	Matcher        MatcherConfig        `yaml:"matcher"`
	Search         SearchConfig         `yaml:"search"`
	Reconstruction ReconstructionConfig `yaml:"reconstruction"`
	Router         RouterConfig         `yaml:"router"`
	Ingestion      IngestionConfig      `yaml:"ingestion"`
	AI             AIConfig             `yaml:"ai"`
	Maintenance    MaintenanceConfig    `yaml:"maintenance"`
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	aiDefaults := ai.DefaultConfig()
	return &AppConfig{
		Storage: StorageConfig{Backend: BackendBadger, Path: "conceptrag.db"},
		Chunker: ChunkerConfig{TargetSize: chunking.DefaultTargetSize, Overlap: chunking.DefaultOverlap},
		Extraction: ExtractionConfig{
			Mode:             string(core.ModeHybrid),
			Keywords:         ingestion.DefaultKeywords,
			SummarySentences: ingestion.DefaultSummarySentences,
		},
		Matcher: MatcherConfig{Threshold: matching.DefaultThreshold, TopK: matching.DefaultTopK},
		Search:  SearchConfig{MinSimilarity: search.DefaultMinSimilarity},
		Reconstruction: ReconstructionConfig{
			Window:        reconstruct.DefaultWindow,
			Passages:      3,
			Annotate:      true,
			NeighborLimit: reconstruct.DefaultNeighborLimit,
		},
		Router: RouterConfig{
			MinConceptWeight: routing.DefaultMinConceptWeight,
			MinQueryLength:   routing.DefaultMinQueryLength,
		},
		AI: AIConfig{
			EmbeddingHost:   aiDefaults.EmbeddingHost,
			GenerationHost:  aiDefaults.GenerationHost,
			EmbeddingModel:  aiDefaults.EmbeddingModel,
			GenerationModel: aiDefaults.GenerationModel,
			APIKeyEnv:       "OPENAI_API_KEY",
			Temperature:     aiDefaults.Temperature,
		},
		Maintenance: MaintenanceConfig{BatchSize: 50, MaxRetries: 3, RetryDelay: time.Second},
	}
}

// Load reads a config from path over the defaults. If the file does not
// exist, it returns the defaults.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the settings that are not validated by the packages they
// configure.
func (c *AppConfig) Validate() error {
	switch c.Storage.Backend {
	case BackendBadger, BackendJSON:
	default:
		return fmt.Errorf("%w: storage.backend %q (want %s or %s)", ErrInvalidConfig, c.Storage.Backend, BackendBadger, BackendJSON)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("%w: storage.path is empty", ErrInvalidConfig)
	}
	switch core.ProcessingMode(c.Extraction.Mode) {
	case core.ModeKeywords, core.ModeSummary, core.ModeHybrid:
	default:
		return fmt.Errorf("%w: extraction.mode %q", ErrInvalidConfig, c.Extraction.Mode)
	}
	if c.Reconstruction.Passages < 1 {
		return fmt.Errorf("%w: reconstruction.passages must be at least 1", ErrInvalidConfig)
	}
	if c.Maintenance.BatchSize < 1 || c.Maintenance.MaxRetries < 1 {
		return fmt.Errorf("%w: maintenance.batch_size and max_retries must be positive", ErrInvalidConfig)
	}
	return nil
}

// APIKey returns the key from the configured environment variable.
func (c *AIConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// AIOptions converts the section into ai.Config options.
func (c *AIConfig) AIOptions() []ai.ConfigOption {
	return []ai.ConfigOption{
		ai.WithEmbeddingHost(c.EmbeddingHost),
		ai.WithGenerationHost(c.GenerationHost),
		ai.WithEmbeddingModel(c.EmbeddingModel),
		ai.WithGenerationModel(c.GenerationModel),
		ai.WithAPIKey(c.APIKey()),
		ai.WithTemperature(c.Temperature),
	}
}
