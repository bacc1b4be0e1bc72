// Package chunker splits raw document text into bounded, overlapping
// segments sized for embedding and retrieval.
//
// Splitting prefers natural boundaries (paragraph break, sentence end,
// whitespace) and falls back to a fixed-width cut when a window contains
// none. Chunking is deterministic: the same text with the same
// configuration always yields the same chunk sequence.
package chunker

import (
	"errors"
	"fmt"
	"iter"
)

var (
	// ErrInvalidBounds indicates min/max chunk sizes are inconsistent.
	ErrInvalidBounds = errors.New("invalid chunk size bounds")

	// ErrInvalidOverlap indicates the overlap is negative or not smaller
	// than the maximum chunk size.
	ErrInvalidOverlap = errors.New("invalid chunk overlap")
)

// Chunk is a contiguous slice of a document's text.
//
// Start and End are rune offsets into the source text (End exclusive),
// so offsets stay meaningful for non-ASCII corpora. Text always equals
// the source runes in [Start, End).
type Chunk struct {
	Index int    // Position within the document's chunk sequence (0-based)
	Start int    // Rune offset of the first rune
	End   int    // Rune offset one past the last rune
	Text  string // The chunk content
}

// Config holds chunking parameters.
type Config struct {
	MinSize int // Minimum chunk length in runes
	MaxSize int // Maximum chunk length in runes
	Overlap int // Runes shared between consecutive chunks
}

// Chunker splits text into overlapping chunks.
// Safe for concurrent use: it holds only immutable configuration.
type Chunker struct {
	minSize int
	maxSize int
	overlap int
}

// New creates a Chunker, validating the configuration.
// Invalid parameters are a startup fault, returned as sentinel errors.
func New(cfg Config) (*Chunker, error) {
	if cfg.MinSize < 1 {
		return nil, fmt.Errorf("%w: min size must be positive, got %d", ErrInvalidBounds, cfg.MinSize)
	}
	if cfg.MinSize > cfg.MaxSize {
		return nil, fmt.Errorf("%w: min %d exceeds max %d", ErrInvalidBounds, cfg.MinSize, cfg.MaxSize)
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.MaxSize {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidOverlap, cfg.Overlap, cfg.MaxSize)
	}
	return &Chunker{
		minSize: cfg.MinSize,
		maxSize: cfg.MaxSize,
		overlap: cfg.Overlap,
	}, nil
}

// Split returns a lazy, restartable sequence of chunks for text.
// Ranging over the result twice yields identical chunks.
//
// Every chunk except possibly the last has a length in
// [MinSize, MaxSize]; a document (or final tail) shorter than MinSize
// still produces one chunk rather than being dropped. Consecutive
// chunks share exactly Overlap runes.
func (c *Chunker) Split(text string) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		runes := []rune(text)
		if len(trimSpace(runes)) == 0 {
			return
		}

		index := 0
		start := 0
		for start < len(runes) {
			end := start + c.maxSize
			if end >= len(runes) {
				end = len(runes)
			} else {
				end = c.snap(runes, start, end)
			}

			if !yield(Chunk{
				Index: index,
				Start: start,
				End:   end,
				Text:  string(runes[start:end]),
			}) {
				return
			}

			if end == len(runes) {
				return
			}
			index++
			next := end - c.overlap
			if next <= start {
				// A snapped chunk shorter than the overlap must still
				// advance the window.
				next = end
			}
			start = next
		}
	}
}

// SplitAll collects the full chunk sequence for text.
func (c *Chunker) SplitAll(text string) []Chunk {
	var chunks []Chunk
	for chunk := range c.Split(text) {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// snap moves a window end backward onto the best natural boundary in
// [start+minSize, end]: paragraph break first, then sentence end, then
// whitespace. Returns end unchanged (fixed-width cut) when the window
// has no boundary past the minimum size.
func (c *Chunker) snap(runes []rune, start, end int) int {
	floor := start + c.minSize

	if i := lastParagraphBreak(runes, floor, end); i > 0 {
		return i
	}
	if i := lastSentenceEnd(runes, floor, end); i > 0 {
		return i
	}
	if i := lastWhitespace(runes, floor, end); i > 0 {
		return i
	}
	return end
}

// lastParagraphBreak finds the cut position just after the last "\n\n"
// in [floor, end), or 0 if none.
func lastParagraphBreak(runes []rune, floor, end int) int {
	for i := end - 1; i > floor; i-- {
		if runes[i] == '\n' && runes[i-1] == '\n' {
			return i + 1
		}
	}
	return 0
}

// lastSentenceEnd finds the cut position just after the last sentence
// terminator followed by a space or newline in [floor, end), or 0.
func lastSentenceEnd(runes []rune, floor, end int) int {
	for i := end - 1; i > floor; i-- {
		if !isSpace(runes[i]) {
			continue
		}
		switch runes[i-1] {
		case '.', '!', '?':
			return i + 1
		}
	}
	return 0
}

// lastWhitespace finds the cut position just after the last whitespace
// rune in [floor, end), or 0.
func lastWhitespace(runes []rune, floor, end int) int {
	for i := end - 1; i > floor; i-- {
		if isSpace(runes[i]) {
			return i + 1
		}
	}
	return 0
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r':
		return true
	}
	return false
}

// trimSpace strips leading and trailing whitespace runes.
func trimSpace(runes []rune) []rune {
	lo := 0
	for lo < len(runes) && isSpace(runes[lo]) {
		lo++
	}
	hi := len(runes)
	for hi > lo && isSpace(runes[hi-1]) {
		hi--
	}
	return runes[lo:hi]
}
