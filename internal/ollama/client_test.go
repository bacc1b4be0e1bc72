package ollama

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/docent-ai/docent/internal/log"
	"github.com/docent-ai/docent/internal/testutil"
)

func newTestClient(t *testing.T, fake *testutil.FakeOllama) *Client {
	t.Helper()
	return New(Config{
		BaseURL:        fake.URL(),
		EmbedModel:     "nomic-embed-text",
		GenerateModel:  "llama3.2",
		EmbedDimension: fake.Dimension,
		Retry: RetryConfig{
			MaxRetries:      2,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
	}, log.NewNop())
}

func TestEmbedBatch(t *testing.T) {
	fake := testutil.NewFakeOllama()
	defer fake.Close()
	client := newTestClient(t, fake)

	texts := []string{"first chunk", "second chunk", "third chunk"}
	vectors, err := client.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vectors), len(texts))
	}
	for i, text := range texts {
		want := testutil.EmbedText(text, fake.Dimension)
		if !reflect.DeepEqual(vectors[i], want) {
			t.Errorf("vector %d does not match input order", i)
		}
	}
}

func TestEmbedBatch_Empty(t *testing.T) {
	fake := testutil.NewFakeOllama()
	defer fake.Close()
	client := newTestClient(t, fake)

	vectors, err := client.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch(nil) error = %v", err)
	}
	if vectors != nil {
		t.Errorf("EmbedBatch(nil) = %v, want nil", vectors)
	}
	if fake.EmbedCalls() != 0 {
		t.Errorf("empty batch reached the backend")
	}
}

func TestEmbedBatch_WrongDimension(t *testing.T) {
	fake := testutil.NewFakeOllama()
	defer fake.Close()

	client := New(Config{
		BaseURL:        fake.URL(),
		EmbedModel:     "nomic-embed-text",
		EmbedDimension: fake.Dimension + 1,
	}, log.NewNop())

	_, err := client.EmbedBatch(context.Background(), []string{"text"})
	if !errors.Is(err, ErrEmbedding) {
		t.Errorf("error = %v, want ErrEmbedding", err)
	}
}

func TestEmbedBatch_TruncatedResponse(t *testing.T) {
	fake := testutil.NewFakeOllama()
	defer fake.Close()
	fake.TruncateBatch = true
	client := newTestClient(t, fake)

	_, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
	if !errors.Is(err, ErrEmbedding) {
		t.Errorf("error = %v, want ErrEmbedding", err)
	}
}

func TestEmbedBatch_BackendDown(t *testing.T) {
	fake := testutil.NewFakeOllama()
	fake.Close()
	client := newTestClient(t, fake)

	_, err := client.EmbedBatch(context.Background(), []string{"text"})
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("error = %v, want ErrBackendUnavailable", err)
	}
}

func TestEmbedBatch_RetriesServerErrors(t *testing.T) {
	fake := testutil.NewFakeOllama()
	defer fake.Close()
	fake.EmbedStatus = 500
	client := newTestClient(t, fake)

	_, err := client.EmbedBatch(context.Background(), []string{"text"})
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("error = %v, want ErrBackendUnavailable", err)
	}
	if got := fake.EmbedCalls(); got != 3 {
		t.Errorf("backend saw %d calls, want 3 (1 attempt + 2 retries)", got)
	}
}

func TestEmbedBatch_NoRetryOnRejection(t *testing.T) {
	fake := testutil.NewFakeOllama()
	defer fake.Close()
	fake.EmbedStatus = 400
	fake.EmbedError = "unknown model"
	client := newTestClient(t, fake)

	_, err := client.EmbedBatch(context.Background(), []string{"text"})
	if !errors.Is(err, ErrEmbedding) {
		t.Fatalf("error = %v, want ErrEmbedding", err)
	}
	if got := fake.EmbedCalls(); got != 1 {
		t.Errorf("backend saw %d calls, want 1 (rejections are permanent)", got)
	}
}

func TestGenerate(t *testing.T) {
	fake := testutil.NewFakeOllama()
	defer fake.Close()
	fake.Fragments = []string{"The Arduino ", "UNO uses the ", "ATmega328P."}
	client := newTestClient(t, fake)

	answer, err := client.Generate(context.Background(), "Which microcontroller does the UNO use?")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	want := "The Arduino UNO uses the ATmega328P."
	if answer != want {
		t.Errorf("Generate() = %q, want %q", answer, want)
	}
}

func TestGenerate_PromptTooLong(t *testing.T) {
	fake := testutil.NewFakeOllama()
	defer fake.Close()
	fake.GenerateError = "prompt exceeds the model context length"
	client := newTestClient(t, fake)

	_, err := client.Generate(context.Background(), "oversized prompt")
	if !errors.Is(err, ErrPromptTooLong) {
		t.Errorf("error = %v, want ErrPromptTooLong", err)
	}
	if !errors.Is(err, ErrGeneration) {
		t.Errorf("ErrPromptTooLong should also match ErrGeneration, got %v", err)
	}
}

func TestGenerate_BackendError(t *testing.T) {
	fake := testutil.NewFakeOllama()
	defer fake.Close()
	fake.GenerateError = "model crashed"
	client := newTestClient(t, fake)

	_, err := client.Generate(context.Background(), "question")
	if !errors.Is(err, ErrGeneration) {
		t.Errorf("error = %v, want ErrGeneration", err)
	}
	if errors.Is(err, ErrPromptTooLong) {
		t.Errorf("plain failure should not match ErrPromptTooLong")
	}
}

func TestGenerateStream(t *testing.T) {
	fake := testutil.NewFakeOllama()
	defer fake.Close()
	fake.Fragments = []string{"one", "two", "three"}
	client := newTestClient(t, fake)

	var got []string
	for fragment, err := range client.GenerateStream(context.Background(), "question") {
		if err != nil {
			t.Fatalf("stream error = %v", err)
		}
		got = append(got, fragment)
	}
	if !reflect.DeepEqual(got, []string{"one", "two", "three"}) {
		t.Errorf("fragments = %v", got)
	}
}

func TestGenerateStream_EarlyBreak(t *testing.T) {
	fake := testutil.NewFakeOllama()
	defer fake.Close()
	fake.Fragments = []string{"one", "two", "three"}
	client := newTestClient(t, fake)

	var count int
	for _, err := range client.GenerateStream(context.Background(), "question") {
		if err != nil {
			t.Fatalf("stream error = %v", err)
		}
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Errorf("consumed %d fragments, want 2", count)
	}
}

func TestGenerateStream_Cancelled(t *testing.T) {
	fake := testutil.NewFakeOllama()
	defer fake.Close()
	client := newTestClient(t, fake)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var streamErr error
	for _, err := range client.GenerateStream(ctx, "question") {
		streamErr = err
	}
	if streamErr == nil {
		t.Fatal("expected an error from a cancelled stream")
	}
}

func TestHealthy(t *testing.T) {
	fake := testutil.NewFakeOllama()
	client := newTestClient(t, fake)

	if err := client.Healthy(context.Background()); err != nil {
		t.Errorf("Healthy() error = %v", err)
	}

	fake.Close()
	if err := client.Healthy(context.Background()); !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("Healthy() after shutdown = %v, want ErrBackendUnavailable", err)
	}
}
