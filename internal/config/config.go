// Package config loads and validates localrag configuration.
//
// Configuration is resolved in three layers, later wins:
//  1. built-in defaults,
//  2. .localrag.yaml at the watch root,
//  3. LOCALRAG_* environment variables (weights only).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/localrag/localrag/internal/errors"
)

// ConfigFileName is the per-corpus config file looked up at the watch root.
const ConfigFileName = ".localrag.yaml"

// Config represents the complete localrag configuration.
type Config struct {
	Version    int              `yaml:"version"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Search     SearchConfig     `yaml:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Store      StoreConfig      `yaml:"store"`
	Watch      WatchConfig      `yaml:"watch"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ChunkingConfig configures the text splitter.
type ChunkingConfig struct {
	// Size is the segment length in characters.
	Size int `yaml:"size"`
	// Overlap is how many characters consecutive segments share.
	// Must be strictly less than Size.
	Overlap int `yaml:"overlap"`
}

// SearchConfig configures hybrid search scoring.
// VectorWeight and TextWeight are the exposed knobs of the hybrid score:
// score = vector_weight * vectorSimilarity + text_weight * lexicalRank.
type SearchConfig struct {
	VectorWeight float64 `yaml:"vector_weight"`
	TextWeight   float64 `yaml:"text_weight"`
	MaxResults   int     `yaml:"max_results"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the backend: "ollama" (default) or "static" (offline).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Host is the Ollama API endpoint.
	Host string `yaml:"host"`
	// Dimensions is the expected vector size; 0 means auto-detect.
	Dimensions int `yaml:"dimensions"`
	// BatchSize caps how many chunks are embedded concurrently.
	BatchSize int `yaml:"batch_size"`
	// CacheSize is the LRU embedding cache capacity (entries).
	CacheSize int `yaml:"cache_size"`
}

// StoreConfig selects index backends.
type StoreConfig struct {
	// DataDir is where per-corpus index data lives. Default: ~/.localrag.
	DataDir string `yaml:"data_dir"`
	// LexicalBackend is "fts5" (default) or "bleve".
	LexicalBackend string `yaml:"lexical_backend"`
	// VectorBackend is "exact" (default, scores every chunk) or "hnsw"
	// (approximate nearest-neighbor, faster on large corpora).
	VectorBackend string `yaml:"vector_backend"`
}

// WatchConfig configures the filesystem watcher.
type WatchConfig struct {
	// Ignore lists directory names skipped during watching and scanning,
	// in addition to dotted directories which are always skipped.
	Ignore []string `yaml:"ignore"`
}

// LoggingConfig configures the log sink.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Search: SearchConfig{
			VectorWeight: 0.7,
			TextWeight:   0.3,
			MaxResults:   10,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "ollama",
			Model:     "snowflake-arctic-embed2",
			Host:      "http://localhost:11434",
			BatchSize: 8,
			CacheSize: 1000,
		},
		Store: StoreConfig{
			LexicalBackend: "fts5",
			VectorBackend:  "exact",
		},
		Watch: WatchConfig{
			Ignore: []string{"node_modules", "vendor", "target", "__pycache__"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load resolves the configuration for a watch root: defaults, overlaid with
// .localrag.yaml if present, overlaid with environment variables.
func Load(root string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(root, ConfigFileName)
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Zero-config is the normal case.
	case err != nil:
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfigInvalid,
				fmt.Errorf("parse %s: %w", path, err))
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies LOCALRAG_* environment overrides.
func (c *Config) applyEnv() {
	if v, ok := floatEnv("LOCALRAG_VECTOR_WEIGHT"); ok {
		c.Search.VectorWeight = v
	}
	if v, ok := floatEnv("LOCALRAG_TEXT_WEIGHT"); ok {
		c.Search.TextWeight = v
	}
	if v := os.Getenv("LOCALRAG_OLLAMA_HOST"); v != "" {
		c.Embeddings.Host = v
	}
}

func floatEnv(key string) (float64, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// DataDir returns the configured data directory, defaulting to ~/.localrag.
func (c *Config) DataDir() string {
	if c.Store.DataDir != "" {
		return c.Store.DataDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".localrag")
	}
	return filepath.Join(home, ".localrag")
}

// CorpusDir returns the data directory for one corpus.
func (c *Config) CorpusDir(corpusID string) string {
	return filepath.Join(c.DataDir(), corpusID)
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"chunking.overlap must be in [0, size), got overlap=%d size=%d",
			c.Chunking.Overlap, c.Chunking.Size)
	}
	if c.Search.VectorWeight < 0 || c.Search.TextWeight < 0 {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"search weights must be non-negative, got vector=%v text=%v",
			c.Search.VectorWeight, c.Search.TextWeight)
	}
	if c.Search.MaxResults <= 0 {
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"search.max_results must be positive, got %d", c.Search.MaxResults)
	}
	switch c.Store.LexicalBackend {
	case "fts5", "bleve":
	default:
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"store.lexical_backend must be fts5 or bleve, got %q", c.Store.LexicalBackend)
	}
	switch c.Store.VectorBackend {
	case "exact", "hnsw":
	default:
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"store.vector_backend must be exact or hnsw, got %q", c.Store.VectorBackend)
	}
	switch c.Embeddings.Provider {
	case "ollama", "static":
	default:
		return errors.Newf(errors.ErrCodeConfigInvalid,
			"embeddings.provider must be ollama or static, got %q", c.Embeddings.Provider)
	}
	return nil
}
