package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/obrasai/vigia/pkg/model"
	"github.com/obrasai/vigia/pkg/storage"
)

// UnboundedPercent is the percentage recorded for a scope whose budget is
// zero but realized cost is not. The true ratio is undefined; this finite
// stand-in keeps storage and JSON well behaved while still classifying as
// CRITICO under any sane threshold set.
const UnboundedPercent = 100000.0

// Calculator computes budget-vs-actual deviations for a project. It is a
// pure read-and-compute step with no side effects on the store.
type Calculator struct {
	store  storage.Storage
	logger *slog.Logger
}

// NewCalculator creates a deviation calculator.
func NewCalculator(store storage.Storage, logger *slog.Logger) *Calculator {
	return &Calculator{store: store, logger: logger}
}

// Calculate fetches budgeted and realized amounts for the project and
// returns the overall and per-category deviation. Categories with realized
// cost but no budget line are skipped and reported in MissingCategories;
// the calculation proceeds with the rest.
func (c *Calculator) Calculate(ctx context.Context, obraID, tenantID string) (*model.DeviationResult, error) {
	obra, err := c.store.GetObra(ctx, obraID)
	if err != nil {
		return nil, fmt.Errorf("%w: carregar obra %s: %v", model.ErrDataUnavailable, obraID, err)
	}
	if tenantID != "" && obra.TenantID != tenantID {
		return nil, fmt.Errorf("%w: obra %s não pertence ao tenant %s", model.ErrDataUnavailable, obraID, tenantID)
	}

	budget, err := c.store.BudgetByCategoria(ctx, obraID)
	if err != nil {
		return nil, fmt.Errorf("%w: carregar orçamento de %s: %v", model.ErrDataUnavailable, obraID, err)
	}
	realized, err := c.store.RealizedByCategoria(ctx, obraID)
	if err != nil {
		return nil, fmt.Errorf("%w: carregar despesas de %s: %v", model.ErrDataUnavailable, obraID, err)
	}

	result := &model.DeviationResult{
		ObraID:   obraID,
		TenantID: obra.TenantID,
	}

	var totalBudget, totalRealized float64
	for _, v := range budget {
		totalBudget += v
	}
	for _, v := range realized {
		totalRealized += v
	}
	result.Geral = computeScope(model.ScopeOverall, totalBudget, totalRealized)

	categorias := make([]string, 0, len(budget))
	for categoria := range budget {
		categorias = append(categorias, categoria)
	}
	sort.Strings(categorias)

	for _, categoria := range categorias {
		result.PorCategoria = append(result.PorCategoria,
			computeScope(categoria, budget[categoria], realized[categoria]))
	}

	for categoria := range realized {
		if _, ok := budget[categoria]; !ok {
			result.MissingCategories = append(result.MissingCategories, categoria)
		}
	}
	sort.Strings(result.MissingCategories)

	if result.Partial() {
		c.logger.Warn("despesas sem linha de orçamento, categorias puladas",
			"obra_id", obraID,
			"categorias", result.MissingCategories,
		)
	}

	return result, nil
}

// computeScope derives the deviation figures for one scope. The percentage
// is (realized-budgeted)/budgeted*100 for a positive budget; a zero budget
// with zero realized cost is a zero deviation, and a zero budget with
// realized cost is an unbounded deviation.
func computeScope(categoria string, budgeted, realized float64) model.ScopeDeviation {
	dev := model.ScopeDeviation{
		Categoria:      categoria,
		ValorOrcado:    budgeted,
		ValorRealizado: realized,
		ValorDesvio:    realized - budgeted,
	}

	switch {
	case budgeted > 0:
		dev.Percentual = (realized - budgeted) / budgeted * 100
	case realized == 0:
		dev.Percentual = 0
	default:
		dev.Percentual = UnboundedPercent
		dev.Unbounded = true
	}
	return dev
}
