package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/obrasai/vigia/pkg/engine"
	"github.com/obrasai/vigia/pkg/model"
	"github.com/obrasai/vigia/pkg/storage"
)

// Server exposes the deviation engine over a JSON HTTP API.
type Server struct {
	store        storage.Storage
	orchestrator *engine.Orchestrator
	lifecycle    *engine.LifecycleManager
	stats        *engine.StatsAggregator
	mux          *http.ServeMux
	logger       *slog.Logger
}

// NewServer creates an API server.
func NewServer(store storage.Storage, orchestrator *engine.Orchestrator, lifecycle *engine.LifecycleManager, stats *engine.StatsAggregator, logger *slog.Logger) *Server {
	s := &Server{
		store:        store,
		orchestrator: orchestrator,
		lifecycle:    lifecycle,
		stats:        stats,
		mux:          http.NewServeMux(),
		logger:       logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /api/v1/desvios/calcular", s.handleCalcular)
	s.mux.HandleFunc("POST /api/v1/desvios/executar", s.handleExecutar)

	s.mux.HandleFunc("GET /api/v1/alertas", s.handleListAlertas)
	s.mux.HandleFunc("GET /api/v1/alertas/{id}", s.handleGetAlerta)
	s.mux.HandleFunc("POST /api/v1/alertas/status", s.handleAlertaStatus)
	s.mux.HandleFunc("POST /api/v1/alertas/visualizar", s.handleVisualizar)
	s.mux.HandleFunc("POST /api/v1/alertas/limpar", s.handleLimpar)

	s.mux.HandleFunc("GET /api/v1/obras/{obra_id}/configuracao", s.handleGetConfig)
	s.mux.HandleFunc("PUT /api/v1/obras/{obra_id}/configuracao", s.handlePutConfig)
	s.mux.HandleFunc("DELETE /api/v1/obras/{obra_id}/configuracao", s.handleDeleteConfig)

	s.mux.HandleFunc("GET /api/v1/estatisticas", s.handleEstatisticas)
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError maps the engine error taxonomy onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrDataUnavailable):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrConfigInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, model.ErrWriteConflict):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}

	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "corpo JSON inválido"})
		return false
	}
	return true
}
