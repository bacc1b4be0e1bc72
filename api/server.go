// Package api exposes the question answering assistant over HTTP.
//
// Endpoints:
//
//	GET  /health          - liveness probe
//	GET  /ready           - readiness probe (database + model backend)
//	GET  /api/sessions    - list sessions
//	POST /api/sessions    - create session
//	POST /api/ask         - answer a question (JSON)
//	POST /api/ask/stream  - answer a question (SSE stream)
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: logging and panic recovery
//   - ratelimit.go: per-IP rate limiting
//   - health.go: probes
//   - session.go: session endpoints
//   - ask.go: question answering endpoints
//   - response.go: JSON response helpers
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docent-ai/docent/internal/log"
	"github.com/docent-ai/docent/internal/rag"
	"github.com/docent-ai/docent/internal/session"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds request header reads.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout bounds reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout bounds writing the response. Generous because
	// streamed answers stay open while the model produces text.
	WriteTimeout = 5 * time.Minute

	// IdleTimeout bounds keep-alive connections between requests.
	IdleTimeout = 120 * time.Second

	// defaultRatePerSecond and defaultBurst shape the per-IP limiter.
	defaultRatePerSecond = 5
	defaultBurst         = 10
)

// Answerer is the question answering flow the API fronts.
type Answerer interface {
	Ask(ctx context.Context, question string, history []session.Turn) (rag.Answer, error)
	AskStream(ctx context.Context, question string, history []session.Turn) (rag.StreamAnswer, error)
}

// BackendChecker reports whether the model backend is reachable.
type BackendChecker interface {
	Healthy(ctx context.Context) error
}

// Server is the HTTP server for the assistant's REST API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	limiter *rateLimiter

	health  *HealthHandler
	session *SessionHandler
	ask     *AskHandler
}

// NewServer creates a server with all routes registered.
func NewServer(pool *pgxpool.Pool, backend BackendChecker, sessions *session.Manager, answerer Answerer, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNop()
	}
	mux := http.NewServeMux()

	s := &Server{
		mux:     mux,
		logger:  logger,
		limiter: newRateLimiter(defaultRatePerSecond, defaultBurst),
		health:  NewHealthHandler(pool, backend, logger),
		session: NewSessionHandler(sessions, logger),
		ask:     NewAskHandler(answerer, sessions, logger),
	}

	s.health.RegisterRoutes(mux)
	s.session.RegisterRoutes(mux)
	s.ask.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → rate limit → logging → handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		rateLimitMiddleware(s.limiter, s.logger),
		loggingMiddleware(s.logger),
	)
}

// Run starts the server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
