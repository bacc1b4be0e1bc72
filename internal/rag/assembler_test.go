package rag

import (
	"fmt"
	"strings"
	"testing"

	"github.com/docent-ai/docent/internal/knowledge"
	"github.com/docent-ai/docent/internal/session"
)

func result(docID, source, content string, start, end int, similarity float64) knowledge.Result {
	return knowledge.Result{
		Record: knowledge.Record{
			ChunkID:    fmt.Sprintf("%s:%d-%d", docID, start, end),
			DocumentID: docID,
			Source:     source,
			Content:    content,
			Start:      start,
			End:        end,
		},
		Similarity: similarity,
	}
}

func sampleResults() []knowledge.Result {
	return []knowledge.Result{
		result("doc-uno", "uno.txt", "The Arduino UNO is based on the ATmega328P microcontroller.", 0, 60, 0.93),
		result("doc-uno", "uno.txt", "The UNO offers 14 digital pins and 6 analog inputs.", 60, 112, 0.81),
		result("doc-mega", "mega.txt", "The Arduino MEGA is built around the ATmega2560.", 0, 48, 0.64),
	}
}

func sampleHistory() []session.Turn {
	return []session.Turn{
		{Role: session.RoleUser, Text: "What is a good beginner board?"},
		{Role: session.RoleAssistant, Text: "The Arduino UNO is the usual recommendation for beginners."},
		{Role: session.RoleUser, Text: "How much memory does it have?"},
		{Role: session.RoleAssistant, Text: "The UNO has 32 KB of flash and 2 KB of SRAM."},
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	a := NewAssembler(NewTokenCounter(), 2048, nil)

	first := a.Assemble("Which microcontroller?", sampleResults(), sampleHistory())
	second := a.Assemble("Which microcontroller?", sampleResults(), sampleHistory())

	if first.Text != second.Text {
		t.Error("identical inputs assembled different prompts")
	}
	if len(first.Sources) != len(second.Sources) {
		t.Error("identical inputs cited different sources")
	}
}

func TestAssemble_IncludesChunksAndHistory(t *testing.T) {
	a := NewAssembler(NewTokenCounter(), 4096, nil)

	prompt := a.Assemble("Which microcontroller does the UNO use?", sampleResults(), sampleHistory())

	if len(prompt.Included) != 3 {
		t.Fatalf("included %d chunks, want 3", len(prompt.Included))
	}
	for _, res := range sampleResults() {
		if !strings.Contains(prompt.Text, res.Content) {
			t.Errorf("prompt missing chunk %q", res.ChunkID)
		}
	}
	if !strings.Contains(prompt.Text, "How much memory does it have?") {
		t.Error("prompt missing history turn")
	}
	if !strings.Contains(prompt.Text, "Question: Which microcontroller does the UNO use?") {
		t.Error("prompt missing question")
	}

	wantSources := []string{"uno.txt", "mega.txt"}
	if len(prompt.Sources) != len(wantSources) {
		t.Fatalf("sources = %v, want %v", prompt.Sources, wantSources)
	}
	for i := range wantSources {
		if prompt.Sources[i] != wantSources[i] {
			t.Errorf("sources[%d] = %q, want %q", i, prompt.Sources[i], wantSources[i])
		}
	}
}

func TestAssemble_EmptyContext(t *testing.T) {
	a := NewAssembler(NewTokenCounter(), 2048, nil)

	prompt := a.Assemble("What is quantum chromodynamics?", nil, nil)

	if !strings.Contains(prompt.Text, "No relevant documents were found.") {
		t.Error("empty retrieval should state that no documents were found")
	}
	if len(prompt.Sources) != 0 {
		t.Errorf("sources = %v, want none", prompt.Sources)
	}
}

func TestAssemble_HistoryDroppedBeforeChunks(t *testing.T) {
	counter := NewTokenCounter()
	a := NewAssembler(counter, 2048, nil)

	question := "Which microcontroller does the UNO use?"
	chunk := sampleResults()[:1]

	// A budget with room for the skeleton and the chunk but nothing
	// else: the chunk must survive and all history must go.
	block := fmt.Sprintf("[Source: %s]\n%s", chunk[0].Source, chunk[0].Content)
	questionBlock := questionPrefix + question + "\n" + answerCue
	budget := counter.Count(systemInstructions) +
		counter.Count(contextHeader) +
		counter.Count(historyHeader) +
		counter.Count(questionBlock) +
		counter.Count(block)

	prompt := a.AssembleWithin(question, chunk, sampleHistory(), budget)

	if len(prompt.Included) != 1 {
		t.Fatalf("included %d chunks, want 1", len(prompt.Included))
	}
	if strings.Contains(prompt.Text, historyHeader) {
		t.Error("history should be dropped before chunks under a tight budget")
	}
}

func TestAssemble_NewestHistoryKeptFirst(t *testing.T) {
	counter := NewTokenCounter()
	a := NewAssembler(counter, 2048, nil)

	question := "And the MEGA?"
	history := sampleHistory()

	// Room for the skeleton plus exactly the newest history turn.
	questionBlock := questionPrefix + question + "\n" + answerCue
	budget := counter.Count(systemInstructions) +
		counter.Count(contextHeader) +
		counter.Count(historyHeader) +
		counter.Count(questionBlock) +
		counter.Count("No relevant documents were found.\n") +
		counter.Count(renderTurn(history[len(history)-1]))

	prompt := a.AssembleWithin(question, nil, history, budget)

	newest := history[len(history)-1].Text
	oldest := history[0].Text
	if !strings.Contains(prompt.Text, newest) {
		t.Errorf("newest turn %q missing from prompt", newest)
	}
	if strings.Contains(prompt.Text, oldest) {
		t.Errorf("oldest turn %q should have been dropped", oldest)
	}
}

func TestDedupeOverlapping(t *testing.T) {
	results := []knowledge.Result{
		result("doc-a", "a.txt", "high scoring chunk", 0, 100, 0.9),
		result("doc-a", "a.txt", "overlaps the first", 50, 150, 0.7),
		result("doc-a", "a.txt", "disjoint chunk", 150, 250, 0.6),
		result("doc-b", "b.txt", "same offsets, other doc", 0, 100, 0.5),
	}

	kept := dedupeOverlapping(results)
	if len(kept) != 3 {
		t.Fatalf("kept %d results, want 3", len(kept))
	}
	if kept[0].Similarity != 0.9 {
		t.Errorf("overlap winner similarity = %f, want 0.9", kept[0].Similarity)
	}
	for _, res := range kept {
		if res.Content == "overlaps the first" {
			t.Error("lower scoring overlapping chunk survived")
		}
	}
}

func TestTokenCounter(t *testing.T) {
	counter := NewTokenCounter()

	if got := counter.Count(""); got != 0 {
		t.Errorf("Count(\"\") = %d, want 0", got)
	}

	short := counter.Count("The Arduino UNO.")
	long := counter.Count(strings.Repeat("The Arduino UNO is a microcontroller board. ", 20))
	if short <= 0 {
		t.Errorf("short count = %d, want positive", short)
	}
	if long <= short {
		t.Errorf("longer text counted %d tokens, shorter %d", long, short)
	}

	if counter.Count("deterministic input") != counter.Count("deterministic input") {
		t.Error("token counting is not deterministic")
	}
}

// An empty retrieval must still leave room to answer from history.
func TestAssemble_BlankBudgetEdge(t *testing.T) {
	a := NewAssembler(NewTokenCounter(), 128, nil)
	prompt := a.Assemble("short?", nil, nil)
	if !strings.Contains(prompt.Text, "short?") {
		t.Error("question missing even at minimum budget")
	}
}
