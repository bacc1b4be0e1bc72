package rag

import (
	"fmt"
	"slices"
	"strings"

	"github.com/docent-ai/docent/internal/knowledge"
	"github.com/docent-ai/docent/internal/log"
	"github.com/docent-ai/docent/internal/session"
)

// Prompt is an assembled generation prompt with its provenance.
type Prompt struct {
	// Text is the full prompt handed to the generation model.
	Text string

	// Sources lists the distinct sources of the included chunks, in
	// inclusion order. These are cited back to the user.
	Sources []string

	// Included holds the chunks that made it into the prompt, best
	// first.
	Included []knowledge.Result
}

// Assembler builds prompts under a token budget.
//
// Retrieved chunks are packed greedily in similarity order, then
// conversation history fills what remains, newest turns first. When
// the budget forces a choice, history is dropped before chunks: a
// grounded answer to the current question beats continuity with an old
// one. Assembly is deterministic.
type Assembler struct {
	counter *TokenCounter
	budget  int
	logger  log.Logger
}

// NewAssembler creates an Assembler with the given token budget.
// A nil logger falls back to a no-op logger.
func NewAssembler(counter *TokenCounter, budget int, logger log.Logger) *Assembler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Assembler{
		counter: counter,
		budget:  budget,
		logger:  logger,
	}
}

// Budget returns the configured token budget.
func (a *Assembler) Budget() int { return a.budget }

// Assemble builds the prompt for question within the configured budget.
func (a *Assembler) Assemble(question string, results []knowledge.Result, history []session.Turn) Prompt {
	return a.AssembleWithin(question, results, history, a.budget)
}

// AssembleWithin builds the prompt within an explicit budget, used
// when a prompt has to be rebuilt smaller after a model rejection.
func (a *Assembler) AssembleWithin(question string, results []knowledge.Result, history []session.Turn, budget int) Prompt {
	question = strings.TrimSpace(question)
	results = dedupeOverlapping(results)

	questionBlock := questionPrefix + question + "\n" + answerCue
	remaining := budget -
		a.counter.Count(systemInstructions) -
		a.counter.Count(contextHeader) -
		a.counter.Count(historyHeader) -
		a.counter.Count(questionBlock)

	// Chunks first, in similarity order.
	var included []knowledge.Result
	var chunkBlocks []string
	for _, res := range results {
		block := fmt.Sprintf("[Source: %s]\n%s", res.Source, res.Content)
		cost := a.counter.Count(block)
		if cost > remaining {
			continue
		}
		remaining -= cost
		included = append(included, res)
		chunkBlocks = append(chunkBlocks, block)
	}

	if len(chunkBlocks) == 0 {
		remaining -= a.counter.Count(emptyContextNotice)
	}

	// Then history, newest first, rendered oldest first.
	var kept []session.Turn
	for i := len(history) - 1; i >= 0; i-- {
		line := renderTurn(history[i])
		cost := a.counter.Count(line)
		if cost > remaining {
			break
		}
		remaining -= cost
		kept = append(kept, history[i])
	}
	slices.Reverse(kept)

	var sb strings.Builder
	sb.WriteString(systemInstructions)
	sb.WriteString("\n\n")
	sb.WriteString(contextHeader)
	sb.WriteString("\n")
	if len(chunkBlocks) == 0 {
		sb.WriteString(emptyContextNotice)
	} else {
		for _, block := range chunkBlocks {
			sb.WriteString(block)
			sb.WriteString("\n\n")
		}
	}
	if len(kept) > 0 {
		sb.WriteString("\n")
		sb.WriteString(historyHeader)
		sb.WriteString("\n")
		for _, turn := range kept {
			sb.WriteString(renderTurn(turn))
		}
	}
	sb.WriteString("\n")
	sb.WriteString(questionBlock)

	if len(kept) < len(history) || len(included) < len(results) {
		a.logger.Debug("prompt truncated to budget",
			"budget", budget,
			"chunks_included", len(included),
			"chunks_retrieved", len(results),
			"turns_kept", len(kept),
			"turns_total", len(history))
	}

	return Prompt{
		Text:     sb.String(),
		Sources:  sourceList(included),
		Included: included,
	}
}

func renderTurn(turn session.Turn) string {
	switch turn.Role {
	case session.RoleAssistant:
		return "Assistant: " + turn.Text + "\n"
	default:
		return "User: " + turn.Text + "\n"
	}
}

// dedupeOverlapping drops chunks whose offset range overlaps an
// already kept chunk of the same document. Results arrive best first,
// so the kept chunk is always the higher scoring one.
func dedupeOverlapping(results []knowledge.Result) []knowledge.Result {
	if len(results) < 2 {
		return results
	}

	kept := make([]knowledge.Result, 0, len(results))
	for _, res := range results {
		overlaps := false
		for _, prev := range kept {
			if res.DocumentID == prev.DocumentID && res.Start < prev.End && prev.Start < res.End {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, res)
		}
	}
	return kept
}

func sourceList(included []knowledge.Result) []string {
	var sources []string
	seen := make(map[string]struct{}, len(included))
	for _, res := range included {
		if _, ok := seen[res.Source]; ok {
			continue
		}
		seen[res.Source] = struct{}{}
		sources = append(sources, res.Source)
	}
	return sources
}
