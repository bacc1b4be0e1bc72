package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/docent-ai/docent/internal/log"
	"github.com/docent-ai/docent/internal/ollama"
	"github.com/docent-ai/docent/internal/rag"
	"github.com/docent-ai/docent/internal/session"
)

// MaxQuestionLength bounds the accepted question size.
const MaxQuestionLength = 8192

// AskHandler handles question answering endpoints.
//
// Endpoints:
//   - POST /api/ask        - synchronous answer (JSON)
//   - POST /api/ask/stream - streamed answer (SSE)
type AskHandler struct {
	answerer Answerer
	sessions *session.Manager
	logger   log.Logger
}

// NewAskHandler creates an ask handler.
func NewAskHandler(answerer Answerer, sessions *session.Manager, logger log.Logger) *AskHandler {
	return &AskHandler{answerer: answerer, sessions: sessions, logger: logger}
}

// RegisterRoutes registers ask routes on the given mux.
func (h *AskHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/ask", h.ask)
	mux.HandleFunc("POST /api/ask/stream", h.askStream)
}

// AskRequest is the request body for both ask endpoints. An empty
// session_id starts a fresh session.
type AskRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

// AskResponse is the synchronous answer payload.
type AskResponse struct {
	Answer    string   `json:"answer"`
	Sources   []string `json:"sources"`
	SessionID string   `json:"session_id"`
}

func (h *AskHandler) ask(w http.ResponseWriter, r *http.Request) {
	req, sess, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	history := sess.History()
	answer, err := h.answerer.Ask(r.Context(), req.Question, history)
	if err != nil {
		h.writeAnswerError(w, err)
		return
	}

	sess.AppendUser(req.Question)
	sess.AppendAssistant(answer.Text)

	if answer.Sources == nil {
		answer.Sources = []string{}
	}
	writeJSON(w, http.StatusOK, AskResponse{
		Answer:    answer.Text,
		Sources:   answer.Sources,
		SessionID: sess.ID().String(),
	})
}

// SSEEvent types emitted by the streaming endpoint.
type (
	// SSEChunkData is the data for "chunk" events.
	SSEChunkData struct {
		Text string `json:"text"`
	}

	// SSEDoneData is the data for "done" events.
	SSEDoneData struct {
		Answer    string   `json:"answer"`
		Sources   []string `json:"sources"`
		SessionID string   `json:"session_id"`
	}

	// SSEErrorData is the data for "error" events.
	SSEErrorData struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
)

// askStream answers over Server-Sent Events.
//
// Event types:
//   - chunk: partial answer text {"text": "..."}
//   - done:  final answer {"answer": "...", "sources": [...], "session_id": "..."}
//   - error: failure {"code": "...", "message": "..."}
//
// A cancelled request stops generation; nothing is appended to the
// session unless the answer completed.
func (h *AskHandler) askStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("streaming not supported by response writer")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	req, sess, okReq := h.parseRequest(w, r)
	if !okReq {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ctx := r.Context()
	stream, err := h.answerer.AskStream(ctx, req.Question, sess.History())
	if err != nil {
		code, _, message := classifyAnswerError(err)
		h.writeSSEError(w, flusher, code, message)
		return
	}

	var sb strings.Builder
	for fragment, err := range stream.Fragments {
		if ctx.Err() != nil {
			h.logger.Info("client disconnected mid-stream", "session_id", sess.ID())
			return
		}
		if err != nil {
			code, _, message := classifyAnswerError(err)
			h.writeSSEError(w, flusher, code, message)
			return
		}
		sb.WriteString(fragment)
		h.writeSSEChunk(w, flusher, fragment)
	}

	answer := sb.String()
	sess.AppendUser(req.Question)
	sess.AppendAssistant(answer)

	sources := stream.Sources
	if sources == nil {
		sources = []string{}
	}
	h.writeSSEDone(w, flusher, SSEDoneData{
		Answer:    answer,
		Sources:   sources,
		SessionID: sess.ID().String(),
	})
}

// parseRequest decodes and validates the request body and resolves the
// session. On failure it writes the error response and returns ok=false.
func (h *AskHandler) parseRequest(w http.ResponseWriter, r *http.Request) (AskRequest, *session.Session, bool) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return req, nil, false
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "missing_question", "question is required")
		return req, nil, false
	}
	if len(req.Question) > MaxQuestionLength {
		writeError(w, http.StatusBadRequest, "question_too_long",
			fmt.Sprintf("question exceeds %d bytes", MaxQuestionLength))
		return req, nil, false
	}

	sess, err := h.sessions.GetOrCreate(req.SessionID)
	if err != nil {
		writeSessionError(w, err)
		return req, nil, false
	}
	return req, sess, true
}

func (h *AskHandler) writeAnswerError(w http.ResponseWriter, err error) {
	code, status, message := classifyAnswerError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("question answering failed", "error", err)
	}
	writeError(w, status, code, message)
}

// classifyAnswerError maps pipeline failures to HTTP semantics. An
// unreachable backend is a temporary outage, not a server bug.
func classifyAnswerError(err error) (code string, status int, message string) {
	switch {
	case errors.Is(err, rag.ErrEmptyQuestion):
		return "missing_question", http.StatusBadRequest, "question is required"
	case errors.Is(err, ollama.ErrBackendUnavailable):
		return "backend_unavailable", http.StatusServiceUnavailable,
			"the model backend is offline, try again later"
	case errors.Is(err, ollama.ErrEmbedding), errors.Is(err, ollama.ErrGeneration):
		return "model_error", http.StatusBadGateway, "the model backend returned an error"
	default:
		return "internal_error", http.StatusInternalServerError, "internal server error"
	}
}

func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "invalid_session_id", "session_id is not a valid UUID")
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", "no such session")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func (h *AskHandler) writeSSEChunk(w http.ResponseWriter, flusher http.Flusher, text string) {
	data, _ := json.Marshal(SSEChunkData{Text: text})
	fmt.Fprintf(w, "event: chunk\ndata: %s\n\n", data)
	flusher.Flush()
}

func (h *AskHandler) writeSSEDone(w http.ResponseWriter, flusher http.Flusher, done SSEDoneData) {
	data, _ := json.Marshal(done)
	fmt.Fprintf(w, "event: done\ndata: %s\n\n", data)
	flusher.Flush()
}

func (h *AskHandler) writeSSEError(w http.ResponseWriter, flusher http.Flusher, code, message string) {
	data, _ := json.Marshal(SSEErrorData{Code: code, Message: message})
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
	flusher.Flush()
}
