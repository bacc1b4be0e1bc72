package rag

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/docent-ai/docent/internal/log"
	"github.com/docent-ai/docent/internal/ollama"
	"github.com/docent-ai/docent/internal/session"
)

// Generator produces model answers for an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateStream(ctx context.Context, prompt string) iter.Seq2[string, error]
}

// Answer is a generated answer with the sources that grounded it.
type Answer struct {
	Text    string   `json:"answer"`
	Sources []string `json:"sources"`
}

// StreamAnswer carries the cited sources up front and the answer as a
// fragment stream.
type StreamAnswer struct {
	Sources   []string
	Fragments iter.Seq2[string, error]
}

// Answerer runs the full question answering flow:
// retrieve, assemble, generate.
type Answerer struct {
	retriever *Retriever
	assembler *Assembler
	generator Generator
	logger    log.Logger
}

// NewAnswerer creates an Answerer. A nil logger falls back to a no-op
// logger.
func NewAnswerer(retriever *Retriever, assembler *Assembler, generator Generator, logger log.Logger) *Answerer {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Answerer{
		retriever: retriever,
		assembler: assembler,
		generator: generator,
		logger:    logger,
	}
}

// Ask answers a question grounded in the stored corpus, with history
// providing conversational context. When the model rejects the prompt
// as too long despite the budget, the prompt is rebuilt at half budget
// and retried once.
func (a *Answerer) Ask(ctx context.Context, question string, history []session.Turn) (Answer, error) {
	prompt, err := a.prepare(ctx, question, history)
	if err != nil {
		return Answer{}, err
	}

	text, err := a.generator.Generate(ctx, prompt.Text)
	if errors.Is(err, ollama.ErrPromptTooLong) {
		a.logger.Warn("prompt rejected as too long, rebuilding at half budget",
			"budget", a.assembler.Budget())
		prompt = a.assembler.AssembleWithin(question, prompt.Included, history, a.assembler.Budget()/2)
		text, err = a.generator.Generate(ctx, prompt.Text)
	}
	if err != nil {
		return Answer{}, fmt.Errorf("generating answer: %w", err)
	}

	return Answer{Text: text, Sources: prompt.Sources}, nil
}

// AskStream is Ask with a streamed answer. The cited sources are known
// as soon as the prompt is assembled and returned before the first
// fragment. Stream failures surface in the fragment sequence; there is
// no mid-stream retry.
func (a *Answerer) AskStream(ctx context.Context, question string, history []session.Turn) (StreamAnswer, error) {
	prompt, err := a.prepare(ctx, question, history)
	if err != nil {
		return StreamAnswer{}, err
	}

	return StreamAnswer{
		Sources:   prompt.Sources,
		Fragments: a.generator.GenerateStream(ctx, prompt.Text),
	}, nil
}

func (a *Answerer) prepare(ctx context.Context, question string, history []session.Turn) (Prompt, error) {
	results, err := a.retriever.Retrieve(ctx, question)
	if err != nil {
		return Prompt{}, err
	}

	prompt := a.assembler.Assemble(question, results, history)
	a.logger.Debug("assembled prompt",
		"chunks", len(prompt.Included),
		"sources", len(prompt.Sources))
	return prompt, nil
}
