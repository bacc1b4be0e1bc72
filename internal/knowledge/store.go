package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/docent-ai/docent/internal/log"
)

// searchTimeout bounds a single similarity query so a degraded index
// cannot block request handling indefinitely.
const searchTimeout = 10 * time.Second

// Store manages chunk records in PostgreSQL + pgvector.
//
// Reads run concurrently through the connection pool. Writes are
// serialized per document: two syncs of the same document queue behind
// each other, while syncs of different documents proceed in parallel.
// Each sync is a single transaction, so readers observe either the
// previous state of a document or the new one, never a mix.
type Store struct {
	pool      *pgxpool.Pool
	dimension int
	logger    log.Logger

	mu       sync.Mutex
	docLocks map[string]*sync.Mutex
}

// NewStore creates a Store bound to the given pool and embedding
// dimension. A nil logger falls back to a no-op logger.
func NewStore(pool *pgxpool.Pool, dimension int, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		pool:      pool,
		dimension: dimension,
		logger:    logger,
		docLocks:  make(map[string]*sync.Mutex),
	}
}

// Dimension returns the embedding dimension the store enforces.
func (s *Store) Dimension() int { return s.dimension }

// Init verifies the configured dimension against the dimension the
// store was first created with, recording it on first use. A schema
// created for one embedding model cannot be reused with another; that
// surfaces here as ErrDimensionMismatch instead of as garbage
// similarity scores later.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO store_meta (id, embed_dimension) VALUES (1, $1) ON CONFLICT (id) DO NOTHING`,
		s.dimension)
	if err != nil {
		return fmt.Errorf("recording store dimension: %w", err)
	}

	var stored int
	if err := s.pool.QueryRow(ctx,
		`SELECT embed_dimension FROM store_meta WHERE id = 1`).Scan(&stored); err != nil {
		return fmt.Errorf("reading store dimension: %w", err)
	}
	if stored != s.dimension {
		return fmt.Errorf("%w: store holds %d-dimensional vectors, configured for %d",
			ErrDimensionMismatch, stored, s.dimension)
	}
	return nil
}

// SyncDocument makes the stored state of a document match records
// exactly: stale chunks are removed, existing chunks are updated in
// place, new chunks are inserted. The whole sync is one transaction.
// Syncing with no records removes the document entirely.
func (s *Store) SyncDocument(ctx context.Context, documentID string, records []Record) (SyncReport, error) {
	var report SyncReport

	for i, rec := range records {
		if len(rec.Embedding) != s.dimension {
			return report, fmt.Errorf("%w: chunk %d of document %q has dimension %d, want %d",
				ErrDimensionMismatch, i, documentID, len(rec.Embedding), s.dimension)
		}
	}

	lock := s.lockFor(documentID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return report, fmt.Errorf("beginning sync for document %q: %w", documentID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	keep := make([]string, 0, len(records))
	for _, rec := range records {
		keep = append(keep, rec.ChunkID)
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM chunks WHERE document_id = $1 AND NOT (chunk_id = ANY($2))`,
		documentID, keep)
	if err != nil {
		return report, fmt.Errorf("removing stale chunks of document %q: %w", documentID, err)
	}
	report.Removed = int(tag.RowsAffected())

	const upsert = `
		INSERT INTO chunks (chunk_id, document_id, source, content, start_offset, end_offset, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (chunk_id) DO UPDATE SET
			document_id  = EXCLUDED.document_id,
			source       = EXCLUDED.source,
			content      = EXCLUDED.content,
			start_offset = EXCLUDED.start_offset,
			end_offset   = EXCLUDED.end_offset,
			embedding    = EXCLUDED.embedding`

	for _, rec := range records {
		// xmax = 0 distinguishes a fresh insert from an update of an
		// existing row, so re-ingesting unchanged content reports
		// updates rather than growth.
		var inserted bool
		err := tx.QueryRow(ctx, upsert+` RETURNING (xmax = 0)`,
			rec.ChunkID, rec.DocumentID, rec.Source, rec.Content,
			rec.Start, rec.End, pgvector.NewVector(rec.Embedding),
		).Scan(&inserted)
		if err != nil {
			return report, fmt.Errorf("upserting chunk %q: %w", rec.ChunkID, err)
		}
		if inserted {
			report.Added++
		} else {
			report.Updated++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return report, fmt.Errorf("committing sync for document %q: %w", documentID, err)
	}

	s.logger.Debug("synced document",
		"document_id", documentID,
		"added", report.Added,
		"updated", report.Updated,
		"removed", report.Removed)
	return report, nil
}

// Query returns the topK chunks closest to embedding by cosine
// similarity, best first. Distance ties break on insertion order, so
// identical stores answer identical queries identically.
func (s *Store) Query(ctx context.Context, embedding []float32, topK int) ([]Result, error) {
	if len(embedding) != s.dimension {
		return nil, fmt.Errorf("%w: query vector has dimension %d, want %d",
			ErrDimensionMismatch, len(embedding), s.dimension)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	rows, err := s.pool.Query(queryCtx, `
		SELECT chunk_id, document_id, source, content, start_offset, end_offset,
		       1 - (embedding <=> $1) AS similarity
		FROM chunks
		ORDER BY embedding <=> $1, seq
		LIMIT $2`,
		pgvector.NewVector(embedding), topK)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("similarity query timeout: %w", err)
		}
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.Source, &r.Content,
			&r.Start, &r.End, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scanning similarity row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading similarity rows: %w", err)
	}
	return results, nil
}

// DeleteDocument removes every chunk of a document and returns how
// many were removed. Deleting an unknown document removes zero.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	lock := s.lockFor(documentID)
	lock.Lock()
	defer lock.Unlock()

	tag, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, fmt.Errorf("deleting document %q: %w", documentID, err)
	}

	removed := int(tag.RowsAffected())
	if removed > 0 {
		s.logger.Debug("deleted document", "document_id", documentID, "chunks", removed)
	}
	return removed, nil
}

// Count returns the total number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// Ping reports whether the database answers. Used by readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// lockFor returns the mutex serializing writes to one document.
// The lock map grows with the set of documents ever written in this
// process, which is bounded by corpus size.
func (s *Store) lockFor(documentID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.docLocks[documentID]
	if !ok {
		lock = &sync.Mutex{}
		s.docLocks[documentID] = lock
	}
	return lock
}
