package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/docent-ai/docent/internal/log"
	"github.com/docent-ai/docent/internal/ollama"
	"github.com/docent-ai/docent/internal/rag"
	"github.com/docent-ai/docent/internal/session"
)

type stubAnswerer struct {
	answer     rag.Answer
	err        error
	fragments  []string
	streamErr  error
	lastTurns  int
	questioned string
}

func (s *stubAnswerer) Ask(_ context.Context, question string, history []session.Turn) (rag.Answer, error) {
	s.questioned = question
	s.lastTurns = len(history)
	return s.answer, s.err
}

func (s *stubAnswerer) AskStream(_ context.Context, question string, history []session.Turn) (rag.StreamAnswer, error) {
	s.questioned = question
	s.lastTurns = len(history)
	if s.err != nil {
		return rag.StreamAnswer{}, s.err
	}
	return rag.StreamAnswer{
		Sources: s.answer.Sources,
		Fragments: func(yield func(string, error) bool) {
			for _, f := range s.fragments {
				if !yield(f, nil) {
					return
				}
			}
			if s.streamErr != nil {
				yield("", s.streamErr)
			}
		},
	}, nil
}

var _ Answerer = (*stubAnswerer)(nil)

func testServer(answerer Answerer) (*Server, *session.Manager) {
	sessions := session.NewManager()
	return NewServer(nil, nil, sessions, answerer, log.NewNop()), sessions
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAskEndpoint(t *testing.T) {
	answerer := &stubAnswerer{answer: rag.Answer{
		Text:    "The UNO uses the ATmega328P.",
		Sources: []string{"uno.txt"},
	}}
	server, _ := testServer(answerer)
	handler := server.mux

	rec := doJSON(t, handler, http.MethodPost, "/api/ask",
		`{"question": "Which microcontroller does the UNO use?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp AskResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != "The UNO uses the ATmega328P." {
		t.Errorf("answer = %q", resp.Answer)
	}
	if len(resp.Sources) != 1 || resp.Sources[0] != "uno.txt" {
		t.Errorf("sources = %v", resp.Sources)
	}
	if resp.SessionID == "" {
		t.Error("response missing session_id")
	}

	// A follow-up in the same session carries the history forward.
	followUp := fmt.Sprintf(`{"question": "How many pins?", "session_id": %q}`, resp.SessionID)
	rec = doJSON(t, handler, http.MethodPost, "/api/ask", followUp)
	if rec.Code != http.StatusOK {
		t.Fatalf("follow-up status = %d, body %s", rec.Code, rec.Body)
	}
	if answerer.lastTurns != 2 {
		t.Errorf("follow-up saw %d history turns, want 2", answerer.lastTurns)
	}
}

func TestAskEndpoint_Validation(t *testing.T) {
	server, _ := testServer(&stubAnswerer{})
	handler := server.mux

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"malformed body", `{"question": `, http.StatusBadRequest, "invalid_request"},
		{"empty question", `{"question": "   "}`, http.StatusBadRequest, "missing_question"},
		{"oversized question", fmt.Sprintf(`{"question": %q}`, strings.Repeat("a", MaxQuestionLength+1)),
			http.StatusBadRequest, "question_too_long"},
		{"bad session id", `{"question": "q", "session_id": "nope"}`, http.StatusBadRequest, "invalid_session_id"},
		{"unknown session", `{"question": "q", "session_id": "3b241101-e2bb-4255-8caf-4136c566a962"}`,
			http.StatusNotFound, "session_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPost, "/api/ask", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if resp.Error != tt.wantCode {
				t.Errorf("error code = %q, want %q", resp.Error, tt.wantCode)
			}
		})
	}
}

func TestAskEndpoint_BackendUnavailable(t *testing.T) {
	answerer := &stubAnswerer{err: fmt.Errorf("embedding question: %w",
		errBackendDown())}
	server, _ := testServer(answerer)

	rec := doJSON(t, server.mux, http.MethodPost, "/api/ask", `{"question": "q"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if resp.Error != "backend_unavailable" {
		t.Errorf("error code = %q", resp.Error)
	}
	if !strings.Contains(resp.Message, "try again") {
		t.Errorf("message = %q, want a try-again hint", resp.Message)
	}
}

func TestAskStreamEndpoint(t *testing.T) {
	answerer := &stubAnswerer{
		answer:    rag.Answer{Sources: []string{"uno.txt"}},
		fragments: []string{"The UNO ", "uses the ATmega328P."},
	}
	server, sessions := testServer(answerer)

	rec := doJSON(t, server.mux, http.MethodPost, "/api/ask/stream", `{"question": "q"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "event: chunk") {
		t.Error("no chunk events in stream")
	}
	if !strings.Contains(body, "event: done") {
		t.Fatalf("no done event in stream: %s", body)
	}

	done := parseDoneEvent(t, body)
	if done.Answer != "The UNO uses the ATmega328P." {
		t.Errorf("final answer = %q", done.Answer)
	}
	if len(done.Sources) != 1 || done.Sources[0] != "uno.txt" {
		t.Errorf("sources = %v", done.Sources)
	}

	// The completed exchange lands in the session transcript.
	sess, err := sessions.Get(done.SessionID)
	if err != nil {
		t.Fatalf("session lookup: %v", err)
	}
	if sess.Len() != 2 {
		t.Errorf("session turns = %d, want 2", sess.Len())
	}
}

func TestAskStreamEndpoint_Error(t *testing.T) {
	answerer := &stubAnswerer{
		fragments: []string{"partial "},
		streamErr: errBackendDown(),
	}
	server, sessions := testServer(answerer)

	rec := doJSON(t, server.mux, http.MethodPost, "/api/ask/stream", `{"question": "q"}`)
	body := rec.Body.String()
	if !strings.Contains(body, "event: error") {
		t.Fatalf("no error event in stream: %s", body)
	}
	if strings.Contains(body, "event: done") {
		t.Error("failed stream must not emit done")
	}

	// A failed answer leaves no partial transcript behind.
	for _, s := range sessions.List() {
		if s.Len() != 0 {
			t.Errorf("failed stream appended %d turns", s.Len())
		}
	}
}

func parseDoneEvent(t *testing.T, body string) SSEDoneData {
	t.Helper()
	for _, block := range strings.Split(body, "\n\n") {
		if !strings.HasPrefix(block, "event: done") {
			continue
		}
		_, data, ok := strings.Cut(block, "data: ")
		if !ok {
			t.Fatalf("done event without data: %q", block)
		}
		var done SSEDoneData
		if err := json.Unmarshal([]byte(data), &done); err != nil {
			t.Fatalf("decode done event: %v", err)
		}
		return done
	}
	t.Fatal("no done event found")
	return SSEDoneData{}
}

func errBackendDown() error {
	return fmt.Errorf("connection refused: %w", ollama.ErrBackendUnavailable)
}
