package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/obrasai/vigia/pkg/model"
)

// CalcularRequest triggers a single-project deviation calculation.
type CalcularRequest struct {
	ObraID      string            `json:"obra_id"`
	TenantID    string            `json:"tenant_id"`
	TriggerType model.TriggerType `json:"trigger_type"`
}

// CalcularResponse mirrors the calculation trigger wire format.
type CalcularResponse struct {
	Success           bool               `json:"success"`
	AlertasGerados    int                `json:"alertas_gerados"`
	AlertasResolvidos int                `json:"alertas_resolvidos"`
	DesviosCalculados *desviosCalculados `json:"desvios_calculados,omitempty"`
	Error             string             `json:"error,omitempty"`
}

type desviosCalculados struct {
	Geral        model.ScopeDeviation   `json:"geral"`
	PorCategoria []model.ScopeDeviation `json:"por_categoria"`
}

func (s *Server) handleCalcular(w http.ResponseWriter, r *http.Request) {
	var req CalcularRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.ObraID == "" {
		s.writeJSON(w, http.StatusBadRequest, CalcularResponse{Success: false, Error: "obra_id é obrigatório"})
		return
	}
	if req.TriggerType == "" {
		req.TriggerType = model.TriggerManual
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	run, err := s.orchestrator.RunForObra(ctx, req.ObraID, req.TenantID, req.TriggerType)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, model.ErrDataUnavailable) {
			status = http.StatusNotFound
		}
		s.writeJSON(w, status, CalcularResponse{Success: false, Error: err.Error()})
		return
	}

	s.writeJSON(w, http.StatusOK, CalcularResponse{
		Success:           true,
		AlertasGerados:    run.AlertsCreated,
		AlertasResolvidos: run.AlertsResolved,
		DesviosCalculados: &desviosCalculados{
			Geral:        run.Result.Geral,
			PorCategoria: run.Result.PorCategoria,
		},
	})
}

// ExecutarRequest triggers a batch sweep over eligible projects.
type ExecutarRequest struct {
	AsOf time.Time `json:"as_of,omitempty"`
}

func (s *Server) handleExecutar(w http.ResponseWriter, r *http.Request) {
	var req ExecutarRequest
	if r.ContentLength > 0 && !s.decode(w, r, &req) {
		return
	}
	if req.AsOf.IsZero() {
		req.AsOf = time.Now().UTC()
	}

	// Batch runs complete to exhaustion; detach from the request context
	// so a closed connection does not abort a half-finished sweep.
	summary, err := s.orchestrator.RunForEligible(context.WithoutCancel(r.Context()), req.AsOf)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleListAlertas(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAlertFilter(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	alerts, err := s.lifecycle.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if alerts == nil {
		alerts = []model.DeviationAlert{}
	}

	s.writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleGetAlerta(w http.ResponseWriter, r *http.Request) {
	alert, err := s.lifecycle.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, alert)
}

// StatusRequest mutates an alert's lifecycle status.
type StatusRequest struct {
	AlertaID   string            `json:"alerta_id"`
	NovoStatus model.AlertStatus `json:"novo_status"`
}

func (s *Server) handleAlertaStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.AlertaID == "" || req.NovoStatus == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "alerta_id e novo_status são obrigatórios"})
		return
	}

	if err := s.lifecycle.Transition(r.Context(), req.AlertaID, req.NovoStatus); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// VisualizarRequest bulk-acknowledges ATIVO alerts.
type VisualizarRequest struct {
	AlertaIDs []string `json:"alerta_ids"`
}

func (s *Server) handleVisualizar(w http.ResponseWriter, r *http.Request) {
	var req VisualizarRequest
	if !s.decode(w, r, &req) {
		return
	}

	updated, err := s.lifecycle.Acknowledge(r.Context(), req.AlertaIDs)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]int64{"atualizados": updated})
}

func (s *Server) handleLimpar(w http.ResponseWriter, r *http.Request) {
	removed, err := s.lifecycle.Prune(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"removidos": removed})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.GetActiveAlertConfig(r.Context(), r.PathValue("obra_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var cfg model.AlertConfig
	if !s.decode(w, r, &cfg) {
		return
	}
	cfg.ObraID = r.PathValue("obra_id")

	if err := cfg.Validate(); err != nil {
		s.writeError(w, err)
		return
	}

	err := s.store.SaveAlertConfig(r.Context(), &cfg)
	if errors.Is(err, model.ErrWriteConflict) {
		// a concurrent save committed first; the retry lands as an update
		err = s.store.SaveAlertConfig(r.Context(), &cfg)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeactivateAlertConfig(r.Context(), r.PathValue("obra_id")); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleEstatisticas(w http.ResponseWriter, r *http.Request) {
	filter, err := parseStatsFilter(r)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	stats, err := s.stats.Estatisticas(r.Context(), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

func parseAlertFilter(r *http.Request) (model.AlertFilter, error) {
	q := r.URL.Query()
	filter := model.AlertFilter{ObraID: q.Get("obra_id")}

	for _, raw := range splitCSV(q.Get("status")) {
		status := model.AlertStatus(raw)
		if !model.ValidStatus(status) {
			return filter, errors.New("status desconhecido: " + raw)
		}
		filter.Status = append(filter.Status, status)
	}
	for _, raw := range splitCSV(q.Get("tipo_alerta")) {
		tier := model.Severity(raw)
		if !model.ValidSeverity(tier) {
			return filter, errors.New("tipo_alerta desconhecido: " + raw)
		}
		filter.TipoAlerta = append(filter.TipoAlerta, tier)
	}

	var err error
	if filter.DataInicio, err = parseDate(q.Get("data_inicio")); err != nil {
		return filter, err
	}
	if filter.DataFim, err = parseDate(q.Get("data_fim")); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseStatsFilter(r *http.Request) (model.StatsFilter, error) {
	q := r.URL.Query()
	filter := model.StatsFilter{ObraID: q.Get("obra_id")}

	var err error
	if filter.DataInicio, err = parseDate(q.Get("data_inicio")); err != nil {
		return filter, err
	}
	if filter.DataFim, err = parseDate(q.Get("data_fim")); err != nil {
		return filter, err
	}
	return filter, nil
}

// parseDate accepts RFC 3339 timestamps or bare dates.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, errors.New("data inválida: " + s)
	}
	return t, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
