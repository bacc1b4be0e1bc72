package config

import (
	"fmt"
	"net/url"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. Backend validation
	if err := validateBaseURL(c.OllamaHost); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOllamaHost, err)
	}
	if c.EmbedModel == "" {
		return fmt.Errorf("%w: embed_model cannot be empty", ErrInvalidEmbedModel)
	}
	if c.GenerateModel == "" {
		return fmt.Errorf("%w: generate_model cannot be empty", ErrInvalidModelName)
	}

	// Temperature range: 0.0 (deterministic) to 2.0
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	if c.EmbedDimension < 1 || c.EmbedDimension > 8192 {
		return fmt.Errorf("%w: must be between 1 and 8192, got %d", ErrInvalidEmbedDimension, c.EmbedDimension)
	}

	// 2. Chunking validation. These are startup-fatal: a chunker built
	// from inconsistent bounds would silently produce broken indexes.
	if c.ChunkMinSize < 1 {
		return fmt.Errorf("%w: chunk_min_size must be positive, got %d", ErrInvalidChunkBounds, c.ChunkMinSize)
	}
	if c.ChunkMaxSize < c.ChunkMinSize {
		return fmt.Errorf("%w: chunk_min_size (%d) exceeds chunk_max_size (%d)",
			ErrInvalidChunkBounds, c.ChunkMinSize, c.ChunkMaxSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkMaxSize {
		return fmt.Errorf("%w: must be in [0, chunk_max_size), got %d with chunk_max_size %d",
			ErrInvalidOverlap, c.ChunkOverlap, c.ChunkMaxSize)
	}

	// 3. Retrieval validation
	if c.TopK < 1 || c.TopK > 100 {
		return fmt.Errorf("%w: must be between 1 and 100, got %d", ErrInvalidTopK, c.TopK)
	}
	if c.MinSimilarity < 0.0 || c.MinSimilarity > 1.0 {
		return fmt.Errorf("%w: must be between 0.0 and 1.0, got %.2f", ErrInvalidMinSimilarity, c.MinSimilarity)
	}
	if c.ContextBudget < 128 {
		return fmt.Errorf("%w: must be at least 128 tokens, got %d", ErrInvalidContextBudget, c.ContextBudget)
	}

	// 4. PostgreSQL validation
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	// Modern SSL modes only; allow/prefer are deprecated.
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}

// validateBaseURL checks that s parses as an absolute http(s) URL.
func validateBaseURL(s string) error {
	if s == "" {
		return fmt.Errorf("cannot be empty")
	}
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
