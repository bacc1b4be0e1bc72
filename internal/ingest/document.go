// Package ingest loads corpus documents and indexes them into the
// knowledge store: split into chunks, embed, and synchronize.
package ingest

import (
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Document is one ingestible source text.
type Document struct {
	// ID is the stable document identity, derived from the source
	// path. Re-ingesting the same path targets the same stored
	// document.
	ID string

	// Source is the human-readable provenance cited in answers.
	Source string

	// Content is the full document text.
	Content string
}

// NewDocument builds a Document with an ID derived from source.
func NewDocument(source, content string) Document {
	return Document{
		ID:      documentID(source),
		Source:  source,
		Content: content,
	}
}

// documentID derives a stable identity from the source path.
func documentID(source string) string {
	sum := sha256.Sum256([]byte(source))
	return fmt.Sprintf("%x", sum[:8])
}

// chunkID derives a stable chunk identity from the document and the
// chunk's offsets. A chunk whose text and position are unchanged keeps
// its ID across re-ingestions.
func chunkID(documentID string, start, end int) string {
	return fmt.Sprintf("%s:%d-%d", documentID, start, end)
}

// LoadDir reads every .txt and .md file under dir (recursively) into
// Documents, sources relative to dir, in deterministic path order.
func LoadDir(dir string) ([]Document, error) {
	var docs []Document

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !loadableFile(d.Name()) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		docs = append(docs, NewDocument(filepath.ToSlash(rel), string(content)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading corpus from %s: %w", dir, err)
	}
	return docs, nil
}

func loadableFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".md":
		return true
	default:
		return false
	}
}
