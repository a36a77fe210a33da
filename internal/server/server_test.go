package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obrasai/vigia/internal/server"
	"github.com/obrasai/vigia/pkg/engine"
	"github.com/obrasai/vigia/pkg/model"
	"github.com/obrasai/vigia/pkg/storage"
)

type testEnv struct {
	srv   *server.Server
	store storage.Storage
	obra  *model.Obra
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	calc := engine.NewCalculator(store, logger)
	lifecycle := engine.NewLifecycleManager(store, nil, logger)
	pipe := engine.NewPipeline(store, calc, lifecycle, model.DefaultThresholds(), logger)
	orch := engine.NewOrchestrator(store, pipe, engine.OrchestratorConfig{BatchPause: time.Millisecond}, logger)
	stats := engine.NewStatsAggregator(store)

	obra := &model.Obra{
		TenantID:   "tenant-1",
		Nome:       "Residencial Aurora",
		DataInicio: time.Now().UTC().AddDate(0, -3, 0),
	}
	require.NoError(t, store.CreateObra(t.Context(), obra))
	require.NoError(t, store.AddBudgetItem(t.Context(), &model.BudgetItem{
		ObraID: obra.ID, Categoria: "estrutura", Valor: 100000,
	}))
	require.NoError(t, store.RecordExpense(t.Context(), &model.Expense{
		ObraID: obra.ID, Categoria: "estrutura", Valor: 125000,
	}))

	return &testEnv{
		srv:   server.NewServer(store, orch, lifecycle, stats, logger),
		store: store,
		obra:  obra,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func (e *testEnv) calcular(t *testing.T) server.CalcularResponse {
	t.Helper()
	w := e.do(t, "POST", "/api/v1/desvios/calcular", map[string]string{"obra_id": e.obra.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp server.CalcularResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestServer_Health(t *testing.T) {
	env := setupServer(t)

	w := env.do(t, "GET", "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestServer_Calcular(t *testing.T) {
	env := setupServer(t)

	resp := env.calcular(t)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.AlertasGerados) // GERAL + estrutura
	require.NotNil(t, resp.DesviosCalculados)
	assert.InDelta(t, 25.0, resp.DesviosCalculados.Geral.Percentual, 0.001)
	require.Len(t, resp.DesviosCalculados.PorCategoria, 1)
	assert.Equal(t, "estrutura", resp.DesviosCalculados.PorCategoria[0].Categoria)
}

func TestServer_Calcular_ObraDesconhecida(t *testing.T) {
	env := setupServer(t)

	w := env.do(t, "POST", "/api/v1/desvios/calcular", map[string]string{"obra_id": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp server.CalcularResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestServer_Calcular_SemObraID(t *testing.T) {
	env := setupServer(t)

	w := env.do(t, "POST", "/api/v1/desvios/calcular", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_Executar(t *testing.T) {
	env := setupServer(t)

	w := env.do(t, "POST", "/api/v1/desvios/executar", nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var summary model.RunSummary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&summary))
	assert.Equal(t, 1, summary.Attempted)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 2, summary.AlertsCreated)
}

func TestServer_ListAlertas(t *testing.T) {
	env := setupServer(t)
	env.calcular(t)

	w := env.do(t, "GET", "/api/v1/alertas", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var alerts []model.DeviationAlert
	require.NoError(t, json.NewDecoder(w.Body).Decode(&alerts))
	assert.Len(t, alerts, 2)

	// filtered by status
	w = env.do(t, "GET", "/api/v1/alertas?status=RESOLVIDO", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&alerts))
	assert.Empty(t, alerts)

	// unknown status value is rejected
	w = env.do(t, "GET", "/api/v1/alertas?status=PENDENTE", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_GetAlerta(t *testing.T) {
	env := setupServer(t)
	env.calcular(t)

	alerts, err := env.store.ListAlerts(t.Context(), model.AlertFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, alerts)

	w := env.do(t, "GET", "/api/v1/alertas/"+alerts[0].ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var got model.DeviationAlert
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, alerts[0].ID, got.ID)
	assert.Equal(t, "Residencial Aurora", got.ObraNome)

	w = env.do(t, "GET", "/api/v1/alertas/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_AlertaStatus(t *testing.T) {
	env := setupServer(t)
	env.calcular(t)

	alerts, err := env.store.ListAlerts(t.Context(), model.AlertFilter{})
	require.NoError(t, err)
	id := alerts[0].ID

	w := env.do(t, "POST", "/api/v1/alertas/status", map[string]string{
		"alerta_id": id, "novo_status": "RESOLVIDO",
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// terminal state rejects further moves
	w = env.do(t, "POST", "/api/v1/alertas/status", map[string]string{
		"alerta_id": id, "novo_status": "VISUALIZADO",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, "POST", "/api/v1/alertas/status", map[string]string{
		"alerta_id": "missing", "novo_status": "RESOLVIDO",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_Visualizar(t *testing.T) {
	env := setupServer(t)
	env.calcular(t)

	alerts, err := env.store.ListAlerts(t.Context(), model.AlertFilter{})
	require.NoError(t, err)

	ids := make([]string, 0, len(alerts))
	for _, a := range alerts {
		ids = append(ids, a.ID)
	}

	w := env.do(t, "POST", "/api/v1/alertas/visualizar", map[string]any{"alerta_ids": ids})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]int64
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, int64(len(ids)), resp["atualizados"])
}

func TestServer_Configuracao(t *testing.T) {
	env := setupServer(t)
	path := fmt.Sprintf("/api/v1/obras/%s/configuracao", env.obra.ID)

	w := env.do(t, "GET", path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	body := map[string]any{
		"threshold_baixo":     10,
		"threshold_medio":     20,
		"threshold_alto":      30,
		"threshold_critico":   50,
		"notificar_email":     true,
		"notificar_dashboard": true,
	}
	w = env.do(t, "PUT", path, body)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, "GET", path, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var cfg model.AlertConfig
	require.NoError(t, json.NewDecoder(w.Body).Decode(&cfg))
	assert.InDelta(t, 50, cfg.Critico, 0.001)

	// misordered thresholds are rejected
	body["threshold_medio"] = 5
	w = env.do(t, "PUT", path, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "DELETE", path, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "GET", path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// configConflictStore fails the first config save with a write conflict, as a
// concurrent save committing first would.
type configConflictStore struct {
	storage.Storage
	calls int
}

func (s *configConflictStore) SaveAlertConfig(ctx context.Context, cfg *model.AlertConfig) error {
	s.calls++
	if s.calls == 1 {
		return fmt.Errorf("save alert config: %w", model.ErrWriteConflict)
	}
	return s.Storage.SaveAlertConfig(ctx, cfg)
}

func TestServer_PutConfigRetriesWriteConflict(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	base, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { base.Close() })

	obra := &model.Obra{
		TenantID:   "tenant-1",
		Nome:       "Residencial Aurora",
		DataInicio: time.Now().UTC().AddDate(0, -3, 0),
	}
	require.NoError(t, base.CreateObra(t.Context(), obra))

	store := &configConflictStore{Storage: base}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	calc := engine.NewCalculator(store, logger)
	lifecycle := engine.NewLifecycleManager(store, nil, logger)
	pipe := engine.NewPipeline(store, calc, lifecycle, model.DefaultThresholds(), logger)
	orch := engine.NewOrchestrator(store, pipe, engine.OrchestratorConfig{BatchPause: time.Millisecond}, logger)
	env := &testEnv{
		srv:   server.NewServer(store, orch, lifecycle, engine.NewStatsAggregator(store), logger),
		store: store,
		obra:  obra,
	}

	cfg := model.DefaultAlertConfig(obra.ID)
	w := env.do(t, "PUT", fmt.Sprintf("/api/v1/obras/%s/configuracao", obra.ID), cfg)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 2, store.calls)

	saved, err := base.GetActiveAlertConfig(t.Context(), obra.ID)
	require.NoError(t, err)
	assert.InDelta(t, model.DefaultThresholds().Critico, saved.Critico, 0.001)
}

func TestServer_Estatisticas(t *testing.T) {
	env := setupServer(t)
	env.calcular(t)

	w := env.do(t, "GET", "/api/v1/estatisticas", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var stats model.EstatisticasAlertas
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	assert.Equal(t, 2, stats.TotalAlertas)
	assert.Equal(t, 1, stats.ObrasComAlertas)
	assert.Equal(t, 2, stats.AlertasPorTipo[model.SeverityHigh])
}

func TestServer_Limpar(t *testing.T) {
	env := setupServer(t)

	w := env.do(t, "POST", "/api/v1/alertas/limpar", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]int64
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, int64(0), resp["removidos"])
}
