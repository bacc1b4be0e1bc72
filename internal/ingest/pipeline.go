package ingest

import (
	"context"
	"fmt"

	"github.com/docent-ai/docent/internal/chunker"
	"github.com/docent-ai/docent/internal/knowledge"
	"github.com/docent-ai/docent/internal/log"
)

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Store synchronizes the persisted chunks of a document.
type Store interface {
	SyncDocument(ctx context.Context, documentID string, records []knowledge.Record) (knowledge.SyncReport, error)
}

// DocumentError records a document that failed to ingest.
type DocumentError struct {
	DocumentID string
	Source     string
	Err        error
}

func (e DocumentError) Error() string {
	return fmt.Sprintf("ingesting %s: %v", e.Source, e.Err)
}

func (e DocumentError) Unwrap() error { return e.Err }

// Report summarizes one ingestion run.
type Report struct {
	Documents     int
	ChunksAdded   int
	ChunksUpdated int
	ChunksRemoved int

	// Errors holds one entry per failed document. Failed documents do
	// not abort the run; the rest of the corpus still ingests.
	Errors []DocumentError
}

// Pipeline indexes documents into the knowledge store.
type Pipeline struct {
	chunker  *chunker.Chunker
	embedder Embedder
	store    Store
	logger   log.Logger
}

// NewPipeline creates a Pipeline. A nil logger falls back to a no-op
// logger.
func NewPipeline(c *chunker.Chunker, embedder Embedder, store Store, logger log.Logger) *Pipeline {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Pipeline{
		chunker:  c,
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// Ingest indexes each document in turn: chunk, embed the chunk batch,
// and synchronize the stored state. Documents fail independently; a
// bad document is reported and skipped. Ingest stops early only when
// ctx is cancelled.
func (p *Pipeline) Ingest(ctx context.Context, docs []Document) (Report, error) {
	var report Report

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("ingestion aborted: %w", err)
		}

		sync, err := p.ingestOne(ctx, doc)
		if err != nil {
			p.logger.Error("document ingestion failed",
				"document_id", doc.ID,
				"source", doc.Source,
				"error", err)
			report.Errors = append(report.Errors, DocumentError{
				DocumentID: doc.ID,
				Source:     doc.Source,
				Err:        err,
			})
			continue
		}

		report.Documents++
		report.ChunksAdded += sync.Added
		report.ChunksUpdated += sync.Updated
		report.ChunksRemoved += sync.Removed

		p.logger.Info("ingested document",
			"source", doc.Source,
			"added", sync.Added,
			"updated", sync.Updated,
			"removed", sync.Removed)
	}

	return report, nil
}

func (p *Pipeline) ingestOne(ctx context.Context, doc Document) (knowledge.SyncReport, error) {
	chunks := p.chunker.SplitAll(doc.Content)

	// An empty document still syncs, clearing any previously stored
	// chunks for it.
	if len(chunks) == 0 {
		return p.store.SyncDocument(ctx, doc.ID, nil)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return knowledge.SyncReport{}, fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return knowledge.SyncReport{}, fmt.Errorf("embedder returned %d vectors for %d chunks",
			len(vectors), len(chunks))
	}

	records := make([]knowledge.Record, len(chunks))
	for i, ch := range chunks {
		records[i] = knowledge.Record{
			ChunkID:    chunkID(doc.ID, ch.Start, ch.End),
			DocumentID: doc.ID,
			Source:     doc.Source,
			Content:    ch.Text,
			Start:      ch.Start,
			End:        ch.End,
			Embedding:  vectors[i],
		}
	}

	return p.store.SyncDocument(ctx, doc.ID, records)
}
