package api

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docent-ai/docent/internal/log"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	pool    *pgxpool.Pool
	backend BackendChecker
	logger  log.Logger
}

// NewHealthHandler creates a health handler. pool and backend feed the
// readiness check.
func NewHealthHandler(pool *pgxpool.Pool, backend BackendChecker, logger log.Logger) *HealthHandler {
	return &HealthHandler{pool: pool, backend: backend, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /ready", h.readiness)
}

// liveness returns 200 while the process is alive.
func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness returns 200 only when both the database and the model
// backend answer.
func (h *HealthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	if h.pool == nil {
		http.Error(w, "database pool not configured", http.StatusServiceUnavailable)
		return
	}
	if err := h.pool.Ping(r.Context()); err != nil {
		h.logger.Error("readiness check failed", "dependency", "database", "error", err)
		http.Error(w, "database not ready", http.StatusServiceUnavailable)
		return
	}
	if h.backend != nil {
		if err := h.backend.Healthy(r.Context()); err != nil {
			h.logger.Error("readiness check failed", "dependency", "model backend", "error", err)
			http.Error(w, "model backend not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
