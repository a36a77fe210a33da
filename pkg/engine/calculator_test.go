package engine_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obrasai/vigia/pkg/engine"
	"github.com/obrasai/vigia/pkg/model"
	"github.com/obrasai/vigia/pkg/storage"
)

func newTestStore(t *testing.T) storage.Storage {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := storage.NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func seedObra(t *testing.T, store storage.Storage, nome string) *model.Obra {
	t.Helper()
	obra := &model.Obra{
		TenantID:   "tenant-1",
		Nome:       nome,
		DataInicio: time.Now().UTC().AddDate(0, -6, 0),
	}
	require.NoError(t, store.CreateObra(context.Background(), obra))
	return obra
}

func seedBudget(t *testing.T, store storage.Storage, obraID, categoria string, valor float64) {
	t.Helper()
	require.NoError(t, store.AddBudgetItem(context.Background(), &model.BudgetItem{
		ObraID: obraID, Categoria: categoria, Valor: valor,
	}))
}

func seedExpense(t *testing.T, store storage.Storage, obraID, categoria string, valor float64) {
	t.Helper()
	require.NoError(t, store.RecordExpense(context.Background(), &model.Expense{
		ObraID: obraID, Categoria: categoria, Valor: valor,
	}))
}

func TestCalculator_OverallDeviation(t *testing.T) {
	store := newTestStore(t)
	obra := seedObra(t, store, "Residencial Aurora")

	seedBudget(t, store, obra.ID, "estrutura", 100000)
	seedExpense(t, store, obra.ID, "estrutura", 125000)

	calc := engine.NewCalculator(store, testLogger())
	result, err := calc.Calculate(context.Background(), obra.ID, "")
	require.NoError(t, err)

	assert.InDelta(t, 25.0, result.Geral.Percentual, 0.001)
	assert.InDelta(t, 100000, result.Geral.ValorOrcado, 0.001)
	assert.InDelta(t, 125000, result.Geral.ValorRealizado, 0.001)
	assert.InDelta(t, 25000, result.Geral.ValorDesvio, 0.001)
	assert.False(t, result.Partial())
}

func TestCalculator_PerCategoria(t *testing.T) {
	store := newTestStore(t)
	obra := seedObra(t, store, "Residencial Aurora")

	seedBudget(t, store, obra.ID, "estrutura", 50000)
	seedBudget(t, store, obra.ID, "acabamento", 30000)
	seedExpense(t, store, obra.ID, "estrutura", 60000) // +20%
	seedExpense(t, store, obra.ID, "acabamento", 24000) // -20%

	calc := engine.NewCalculator(store, testLogger())
	result, err := calc.Calculate(context.Background(), obra.ID, "")
	require.NoError(t, err)

	require.Len(t, result.PorCategoria, 2)
	// categories come back sorted
	assert.Equal(t, "acabamento", result.PorCategoria[0].Categoria)
	assert.InDelta(t, -20.0, result.PorCategoria[0].Percentual, 0.001)
	assert.Equal(t, "estrutura", result.PorCategoria[1].Categoria)
	assert.InDelta(t, 20.0, result.PorCategoria[1].Percentual, 0.001)

	// overall: 80k budget, 84k realized = +5%
	assert.InDelta(t, 5.0, result.Geral.Percentual, 0.001)
}

func TestCalculator_ExpensesAccumulate(t *testing.T) {
	store := newTestStore(t)
	obra := seedObra(t, store, "Obra Centro")

	seedBudget(t, store, obra.ID, "fundacao", 10000)
	seedExpense(t, store, obra.ID, "fundacao", 4000)
	seedExpense(t, store, obra.ID, "fundacao", 7000)

	calc := engine.NewCalculator(store, testLogger())
	result, err := calc.Calculate(context.Background(), obra.ID, "")
	require.NoError(t, err)

	assert.InDelta(t, 10.0, result.Geral.Percentual, 0.001)
}

func TestCalculator_MissingBudgetLine(t *testing.T) {
	store := newTestStore(t)
	obra := seedObra(t, store, "Obra Centro")

	seedBudget(t, store, obra.ID, "estrutura", 50000)
	seedExpense(t, store, obra.ID, "estrutura", 50000)
	seedExpense(t, store, obra.ID, "paisagismo", 8000) // no budget line

	calc := engine.NewCalculator(store, testLogger())
	result, err := calc.Calculate(context.Background(), obra.ID, "")
	require.NoError(t, err)

	assert.True(t, result.Partial())
	assert.Equal(t, []string{"paisagismo"}, result.MissingCategories)

	// unbudgeted categoria is skipped per-categoria but still counts overall
	require.Len(t, result.PorCategoria, 1)
	assert.Equal(t, "estrutura", result.PorCategoria[0].Categoria)
	assert.InDelta(t, 16.0, result.Geral.Percentual, 0.001) // 58k over 50k
}

func TestCalculator_ZeroBudgetZeroRealized(t *testing.T) {
	store := newTestStore(t)
	obra := seedObra(t, store, "Obra Nova")

	calc := engine.NewCalculator(store, testLogger())
	result, err := calc.Calculate(context.Background(), obra.ID, "")
	require.NoError(t, err)

	assert.InDelta(t, 0.0, result.Geral.Percentual, 0.001)
	assert.False(t, result.Geral.Unbounded)
}

func TestCalculator_ZeroBudgetWithSpend(t *testing.T) {
	store := newTestStore(t)
	obra := seedObra(t, store, "Obra Nova")

	seedExpense(t, store, obra.ID, "estrutura", 1500)

	calc := engine.NewCalculator(store, testLogger())
	result, err := calc.Calculate(context.Background(), obra.ID, "")
	require.NoError(t, err)

	assert.True(t, result.Geral.Unbounded)
	assert.InDelta(t, engine.UnboundedPercent, result.Geral.Percentual, 0.001)
}

func TestCalculator_ObraNotFound(t *testing.T) {
	store := newTestStore(t)

	calc := engine.NewCalculator(store, testLogger())
	_, err := calc.Calculate(context.Background(), "nope", "")
	assert.ErrorIs(t, err, model.ErrDataUnavailable)
}

func TestCalculator_TenantMismatch(t *testing.T) {
	store := newTestStore(t)
	obra := seedObra(t, store, "Obra Alheia")

	calc := engine.NewCalculator(store, testLogger())
	_, err := calc.Calculate(context.Background(), obra.ID, "outro-tenant")
	assert.ErrorIs(t, err, model.ErrDataUnavailable)
}
