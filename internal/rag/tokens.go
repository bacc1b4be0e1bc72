package rag

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter measures prompt text against the context budget.
//
// It uses the cl100k_base encoding when available and falls back to a
// rune-count heuristic (~4 chars per token for English prose) when the
// encoding cannot be loaded. Either way the count is deterministic, so
// the same inputs always assemble the same prompt.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter creates a TokenCounter.
func NewTokenCounter() *TokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return &TokenCounter{}
	}
	return &TokenCounter{enc: enc}
}

// Count returns the token count of text.
func (t *TokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	if t.enc != nil {
		return len(t.enc.Encode(text, nil, nil))
	}
	return utf8.RuneCountInString(text)/4 + 1
}
