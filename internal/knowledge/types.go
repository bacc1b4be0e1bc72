// Package knowledge persists document chunks and their embedding
// vectors in PostgreSQL with pgvector, and serves cosine-similarity
// retrieval over them.
package knowledge

import "errors"

// ErrDimensionMismatch indicates an embedding whose dimensionality
// disagrees with the dimension the store was initialized with. The
// store never silently truncates or pads vectors.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Record is one stored chunk: stable identity, provenance, the chunk
// text with its character offsets in the source document, and the
// embedding vector.
type Record struct {
	// ChunkID identifies the chunk across re-ingestions of the same
	// document. Derived from document ID and chunk offsets.
	ChunkID string

	// DocumentID identifies the source document.
	DocumentID string

	// Source is the human-readable provenance (file path or name)
	// cited back to users alongside answers.
	Source string

	// Content is the chunk text.
	Content string

	// Start and End are the chunk's rune offsets in the source
	// document, End exclusive.
	Start int
	End   int

	// Embedding is the chunk's vector, length equal to the store
	// dimension.
	Embedding []float32
}

// Result is a retrieved chunk with its similarity to the query.
type Result struct {
	Record

	// Similarity is cosine similarity in [-1, 1]; higher is closer.
	Similarity float64
}

// SyncReport summarizes one document synchronization.
type SyncReport struct {
	Added   int
	Updated int
	Removed int
}
