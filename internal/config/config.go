// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (DOCENT_* prefix, plus DATABASE_URL)
//  2. Config file (~/.docent/config.yaml or ./config.yaml)
//  3. Default values
//
// Configuration categories:
//   - Backends: Ollama host, embedding model, generation model
//   - Chunking: chunk size bounds and overlap
//   - Retrieval: top-k, minimum similarity, context budget
//   - Storage: PostgreSQL connection (see storage.go)
//
// Validation is fail-fast: Load() returns a sentinel error (checkable
// with errors.Is) before any component sees an invalid value. Invalid
// chunking or store parameters are configuration faults, fatal at
// startup, never worked around at runtime.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidOllamaHost indicates the Ollama base URL is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidModelName indicates the generation model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedModel indicates the embedding model name is invalid.
	ErrInvalidEmbedModel = errors.New("invalid embedding model")

	// ErrInvalidTemperature indicates the sampling temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidChunkBounds indicates chunk_min_size/chunk_max_size are
	// inconsistent (min > max, or non-positive sizes).
	ErrInvalidChunkBounds = errors.New("invalid chunk size bounds")

	// ErrInvalidOverlap indicates the chunk overlap is negative or not
	// smaller than the maximum chunk size.
	ErrInvalidOverlap = errors.New("invalid chunk overlap")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid top_k")

	// ErrInvalidMinSimilarity indicates the similarity threshold is out of range.
	ErrInvalidMinSimilarity = errors.New("invalid min_similarity")

	// ErrInvalidContextBudget indicates the prompt token budget is out of range.
	ErrInvalidContextBudget = errors.New("invalid context_budget")

	// ErrInvalidEmbedDimension indicates the embedding dimensionality is invalid.
	ErrInvalidEmbedDimension = errors.New("invalid embed_dimension")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// Defaults mirroring the corpus this assistant was built for: local
// Ollama with nomic-embed-text (768 dimensions) for embeddings and a
// small instruct model for generation.
const (
	// DefaultEmbedModel is the default Ollama embedding model.
	DefaultEmbedModel = "nomic-embed-text"

	// DefaultGenerateModel is the default Ollama generation model.
	DefaultGenerateModel = "llama3.2"

	// DefaultEmbedDimension is the output dimensionality of
	// nomic-embed-text. The pgvector schema pins the same value; see
	// internal/database/migrations.
	DefaultEmbedDimension = 768

	// DefaultContextBudget is the default prompt token budget for
	// retrieved context plus conversation history.
	DefaultContextBudget = 2048
)

// Config stores application configuration.
type Config struct {
	// Backend configuration
	OllamaHost      string  `mapstructure:"ollama_host"`
	EmbedModel      string  `mapstructure:"embed_model"`
	GenerateModel   string  `mapstructure:"generate_model"`
	Temperature     float32 `mapstructure:"temperature"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens"`
	EmbedDimension  int     `mapstructure:"embed_dimension"`

	// Chunking configuration
	ChunkMinSize int `mapstructure:"chunk_min_size"`
	ChunkMaxSize int `mapstructure:"chunk_max_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`

	// Retrieval configuration
	TopK          int     `mapstructure:"top_k"`
	MinSimilarity float32 `mapstructure:"min_similarity"`
	ContextBudget int     `mapstructure:"context_budget"`

	// Corpus configuration
	CorpusDir string `mapstructure:"corpus_dir"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".docent")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".") // Also support current directory

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// Backend defaults
	v.SetDefault("ollama_host", "http://localhost:11434")
	v.SetDefault("embed_model", DefaultEmbedModel)
	v.SetDefault("generate_model", DefaultGenerateModel)
	v.SetDefault("temperature", 0.2)
	v.SetDefault("max_output_tokens", 1024)
	v.SetDefault("embed_dimension", DefaultEmbedDimension)

	// Chunking defaults (500-char chunks with 50-char overlap)
	v.SetDefault("chunk_min_size", 100)
	v.SetDefault("chunk_max_size", 500)
	v.SetDefault("chunk_overlap", 50)

	// Retrieval defaults
	v.SetDefault("top_k", 5)
	v.SetDefault("min_similarity", 0.0)
	v.SetDefault("context_budget", DefaultContextBudget)

	// Corpus defaults
	v.SetDefault("corpus_dir", "./documents")

	// PostgreSQL defaults (matching docker-compose.yml)
	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "docent")
	v.SetDefault("postgres_password", "docent_dev_password")
	v.SetDefault("postgres_db_name", "docent")
	v.SetDefault("postgres_ssl_mode", "disable")
}

// bindEnvVariables binds environment variables explicitly so that every
// supported override is discoverable here, not via naming convention.
func bindEnvVariables(v *viper.Viper) {
	v.SetEnvPrefix("DOCENT")

	// Explicit binds; errors only occur for empty keys, which these are not.
	for _, key := range []string{
		"ollama_host",
		"embed_model",
		"generate_model",
		"temperature",
		"max_output_tokens",
		"embed_dimension",
		"chunk_min_size",
		"chunk_max_size",
		"chunk_overlap",
		"top_k",
		"min_similarity",
		"context_budget",
		"corpus_dir",
		"postgres_host",
		"postgres_port",
		"postgres_user",
		"postgres_password",
		"postgres_db_name",
		"postgres_ssl_mode",
	} {
		_ = v.BindEnv(key)
	}
}
