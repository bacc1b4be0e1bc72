// Package ollama wraps the HTTP API of a locally hosted Ollama instance,
// exposing the two backend contracts docent depends on: text embedding
// and grounded text generation (optionally streamed).
//
// Responses are validated at this boundary and converted into typed
// values; malformed payloads are rejected immediately with ErrEmbedding
// or ErrGeneration rather than propagated unchecked. An unreachable
// backend is ErrBackendUnavailable, a transient condition the caller
// surfaces as "service offline".
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/docent-ai/docent/internal/log"
)

var (
	// ErrBackendUnavailable indicates the Ollama service cannot be
	// reached. Recoverable: retry later.
	ErrBackendUnavailable = errors.New("ollama backend unavailable")

	// ErrEmbedding indicates the embedding endpoint responded with
	// malformed or dimension-mismatched output.
	ErrEmbedding = errors.New("embedding failed")

	// ErrGeneration indicates the generation endpoint rejected the
	// prompt or responded with malformed output.
	ErrGeneration = errors.New("generation failed")

	// ErrPromptTooLong indicates the model rejected the prompt as
	// exceeding its context window. Always also matches ErrGeneration.
	ErrPromptTooLong = errors.New("prompt too long")
)

// Config holds client configuration for both backend contracts.
type Config struct {
	// BaseURL is the Ollama base URL, e.g. "http://localhost:11434".
	BaseURL string

	// EmbedModel is the embedding model name (e.g. "nomic-embed-text").
	EmbedModel string

	// GenerateModel is the generation model name (e.g. "llama3.2").
	GenerateModel string

	// EmbedDimension, when positive, is the expected embedding
	// dimensionality. Vectors of any other length are rejected with
	// ErrEmbedding at this boundary.
	EmbedDimension int

	// Temperature is the sampling temperature passed to generation.
	Temperature float32

	// MaxOutputTokens bounds the generated answer length (0 = model default).
	MaxOutputTokens int

	// Timeout bounds a single embedding request. Generation is bounded
	// by the caller's context instead, since streams are long-lived.
	Timeout time.Duration

	// Retry configures bounded retry on transient failures.
	Retry RetryConfig
}

// Client talks to a single Ollama instance.
// Safe for concurrent use.
type Client struct {
	baseURL         string
	embedModel      string
	generateModel   string
	embedDimension  int
	temperature     float32
	maxOutputTokens int
	retry           RetryConfig
	httpClient      *http.Client
	logger          log.Logger
}

// DefaultTimeout bounds a single embedding request.
const DefaultTimeout = 30 * time.Second

// New creates a Client. A nil logger falls back to a no-op logger.
func New(cfg Config, logger log.Logger) *Client {
	if logger == nil {
		logger = log.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retry := cfg.Retry
	if retry.MaxRetries == 0 && retry.InitialInterval == 0 {
		retry = DefaultRetryConfig()
	}
	return &Client{
		baseURL:         cfg.BaseURL,
		embedModel:      cfg.EmbedModel,
		generateModel:   cfg.GenerateModel,
		embedDimension:  cfg.EmbedDimension,
		temperature:     cfg.Temperature,
		maxOutputTokens: cfg.MaxOutputTokens,
		retry:           retry,
		httpClient:      &http.Client{Timeout: timeout},
		logger:          logger,
	}
}

// Healthy reports whether the backend answers at all. Used by readiness
// probes; failures are ErrBackendUnavailable.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/version", nil)
	if err != nil {
		return fmt.Errorf("building health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrBackendUnavailable, resp.StatusCode)
	}
	return nil
}
