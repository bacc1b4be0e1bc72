package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"strings"
)

type generateOptions struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateChunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// Generate produces a complete answer for prompt. It retries transient
// backend failures; prompt rejections are returned as ErrGeneration
// (ErrPromptTooLong when the model's context window is exceeded).
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var answer string
	err := c.withRetry(ctx, "generate", func(ctx context.Context) error {
		var sb strings.Builder
		for fragment, err := range c.stream(ctx, prompt) {
			if err != nil {
				return err
			}
			sb.WriteString(fragment)
		}
		answer = sb.String()
		return nil
	})
	if err != nil {
		return "", err
	}
	return answer, nil
}

// GenerateStream produces the answer incrementally, yielding each
// fragment as the model emits it. The sequence ends after the final
// fragment, or early with a non-nil error. Cancelling ctx or breaking
// out of the range stops the stream and releases the connection; no
// partial answer is retained anywhere.
//
// Streams are not retried: once fragments have been yielded the answer
// is already partially delivered, so a mid-stream failure surfaces as
// an error instead of a silent restart.
func (c *Client) GenerateStream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return c.stream(ctx, prompt)
}

func (c *Client) stream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		body, err := json.Marshal(generateRequest{
			Model:  c.generateModel,
			Prompt: prompt,
			Stream: true,
			Options: generateOptions{
				Temperature: c.temperature,
				NumPredict:  c.maxOutputTokens,
			},
		})
		if err != nil {
			yield("", fmt.Errorf("%w: encoding request: %v", ErrGeneration, err))
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
		if err != nil {
			yield("", fmt.Errorf("%w: building request: %v", ErrGeneration, err))
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				yield("", fmt.Errorf("generation aborted: %w", ctx.Err()))
				return
			}
			yield("", fmt.Errorf("%w: %v", ErrBackendUnavailable, err))
			return
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			yield("", generateStatusError(resp.StatusCode, readErrorBody(resp.Body)))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var chunk generateChunk
			if err := json.Unmarshal(line, &chunk); err != nil {
				yield("", fmt.Errorf("%w: decoding stream: %v", ErrGeneration, err))
				return
			}
			if chunk.Error != "" {
				yield("", generateMessageError(chunk.Error))
				return
			}
			if chunk.Response != "" && !yield(chunk.Response, nil) {
				return
			}
			if chunk.Done {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			if ctx.Err() != nil {
				yield("", fmt.Errorf("generation aborted: %w", ctx.Err()))
				return
			}
			yield("", fmt.Errorf("%w: reading stream: %v", ErrGeneration, err))
		}
	}
}

func generateStatusError(status int, message string) error {
	if status >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d: %s", ErrBackendUnavailable, status, message)
	}
	return generateMessageError(fmt.Sprintf("status %d: %s", status, message))
}

// generateMessageError classifies a model rejection. Context-window
// overruns get the dedicated sentinel so callers can shrink the prompt
// and retry; everything else is a plain generation failure.
func generateMessageError(message string) error {
	lower := strings.ToLower(message)
	if strings.Contains(lower, "context length") ||
		strings.Contains(lower, "context window") ||
		strings.Contains(lower, "too long") {
		return fmt.Errorf("%w: %w: %s", ErrGeneration, ErrPromptTooLong, message)
	}
	return fmt.Errorf("%w: %s", ErrGeneration, message)
}
