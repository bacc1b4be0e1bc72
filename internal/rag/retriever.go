// Package rag implements the question answering core: retrieve
// relevant chunks, assemble a grounded prompt under a token budget,
// and generate an answer with cited sources.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/docent-ai/docent/internal/knowledge"
	"github.com/docent-ai/docent/internal/log"
)

// ErrEmptyQuestion indicates a blank or whitespace-only question.
var ErrEmptyQuestion = errors.New("question must not be empty")

// Embedder turns a query into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher serves similarity queries over stored chunks.
type Searcher interface {
	Query(ctx context.Context, embedding []float32, topK int) ([]knowledge.Result, error)
}

// Retriever finds the chunks most similar to a question.
type Retriever struct {
	embedder      Embedder
	store         Searcher
	topK          int
	minSimilarity float64
	logger        log.Logger
}

// NewRetriever creates a Retriever returning at most topK chunks, with
// results below minSimilarity discarded. A nil logger falls back to a
// no-op logger.
func NewRetriever(embedder Embedder, store Searcher, topK int, minSimilarity float64, logger log.Logger) *Retriever {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Retriever{
		embedder:      embedder,
		store:         store,
		topK:          topK,
		minSimilarity: minSimilarity,
		logger:        logger,
	}
}

// Retrieve embeds the question and returns matching chunks, best
// first. Backend failures propagate with their class intact so callers
// can distinguish an offline embedding service from a store fault.
// No matches is not an error: the caller gets an empty result set.
func (r *Retriever) Retrieve(ctx context.Context, question string) ([]knowledge.Result, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	embedding, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	results, err := r.store.Query(ctx, embedding, r.topK)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}

	if r.minSimilarity > 0 {
		kept := results[:0]
		for _, res := range results {
			if res.Similarity >= r.minSimilarity {
				kept = append(kept, res)
			}
		}
		results = kept
	}

	r.logger.Debug("retrieved chunks", "count", len(results), "top_k", r.topK)
	return results, nil
}
