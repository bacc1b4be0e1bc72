// Package testutil provides in-process fakes for docent's backends.
package testutil

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/http/httptest"
	"sync"
)

// FakeOllama is an in-process stand-in for an Ollama instance, serving
// /api/embed and /api/generate over httptest. Embeddings are
// deterministic functions of the input text so tests can assert order
// preservation and idempotence. Zero-value fields mean "behave
// normally"; set the failure knobs to exercise error paths.
type FakeOllama struct {
	mu sync.Mutex

	// Dimension is the embedding dimensionality (default 8).
	Dimension int

	// EmbedStatus, when nonzero, makes /api/embed respond with that
	// HTTP status and EmbedError as the error payload.
	EmbedStatus int
	EmbedError  string

	// TruncateBatch, when true, drops the last vector from every
	// embedding response.
	TruncateBatch bool

	// Fragments is the generation output, one stream event per entry.
	// Empty means a single "ok" fragment.
	Fragments []string

	// GenerateStatus, when nonzero, makes /api/generate respond with
	// that HTTP status and GenerateError as the error payload.
	// GenerateError alone injects an in-stream error event instead.
	GenerateStatus int
	GenerateError  string

	embedCalls    int
	generateCalls int
	lastPrompt    string
	lastInputs    []string

	server *httptest.Server
}

// NewFakeOllama starts the fake server. Callers must Close it.
func NewFakeOllama() *FakeOllama {
	f := &FakeOllama{Dimension: 8}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/embed", f.handleEmbed)
	mux.HandleFunc("POST /api/generate", f.handleGenerate)
	mux.HandleFunc("GET /api/version", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"version": "0.0.0-fake"})
	})
	f.server = httptest.NewServer(mux)
	return f
}

// URL returns the fake's base URL.
func (f *FakeOllama) URL() string { return f.server.URL }

// Close shuts the fake down.
func (f *FakeOllama) Close() { f.server.Close() }

// EmbedCalls returns how many embedding requests have been served.
func (f *FakeOllama) EmbedCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.embedCalls
}

// GenerateCalls returns how many generation requests have been served.
func (f *FakeOllama) GenerateCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generateCalls
}

// LastPrompt returns the prompt of the most recent generation request.
func (f *FakeOllama) LastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPrompt
}

// LastInputs returns the texts of the most recent embedding request.
func (f *FakeOllama) LastInputs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lastInputs...)
}

// EmbedText computes the deterministic vector the fake would return for
// text, so tests can compare against client output.
func EmbedText(text string, dimension int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dimension)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(seed%2000)/1000 - 1
	}
	return vec
}

func (f *FakeOllama) handleEmbed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.embedCalls++
	f.lastInputs = append([]string(nil), req.Input...)
	status, errMsg := f.EmbedStatus, f.EmbedError
	dimension, truncate := f.Dimension, f.TruncateBatch
	f.mu.Unlock()

	if status != 0 {
		writeOllamaError(w, status, errMsg)
		return
	}

	embeddings := make([][]float32, 0, len(req.Input))
	for _, text := range req.Input {
		embeddings = append(embeddings, EmbedText(text, dimension))
	}
	if truncate && len(embeddings) > 0 {
		embeddings = embeddings[:len(embeddings)-1]
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
}

func (f *FakeOllama) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.generateCalls++
	f.lastPrompt = req.Prompt
	status, errMsg := f.GenerateStatus, f.GenerateError
	fragments := append([]string(nil), f.Fragments...)
	f.mu.Unlock()

	if status != 0 {
		writeOllamaError(w, status, errMsg)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	flusher, _ := w.(http.Flusher)

	if errMsg != "" {
		_ = enc.Encode(map[string]any{"error": errMsg})
		return
	}
	if len(fragments) == 0 {
		fragments = []string{"ok"}
	}
	for _, fragment := range fragments {
		_ = enc.Encode(map[string]any{"response": fragment, "done": false})
		if flusher != nil {
			flusher.Flush()
		}
	}
	_ = enc.Encode(map[string]any{"response": "", "done": true})
}

func writeOllamaError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		message = fmt.Sprintf("fake failure (status %d)", status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
