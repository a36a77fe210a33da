package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/obrasai/vigia/pkg/model"
	"github.com/obrasai/vigia/pkg/storage"
)

// Pipeline runs the per-project calculation chain: Calculator → Classifier
// → LifecycleManager. Ordering within one project is strict; concurrency
// only ever happens across projects.
type Pipeline struct {
	store      storage.Storage
	calculator *Calculator
	lifecycle  *LifecycleManager
	defaults   model.Thresholds
	logger     *slog.Logger
}

// NewPipeline wires the calculation chain. The defaults thresholds are
// substituted for projects without an active configuration.
func NewPipeline(store storage.Storage, calculator *Calculator, lifecycle *LifecycleManager, defaults model.Thresholds, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		store:      store,
		calculator: calculator,
		lifecycle:  lifecycle,
		defaults:   defaults,
		logger:     logger,
	}
}

// RunResult is the outcome of one pipeline pass over a single project.
type RunResult struct {
	Result         *model.DeviationResult
	AlertsCreated  int
	AlertsResolved int
}

// Run executes one calculation pass for a project: computes deviations for
// the overall scope and every budgeted category, classifies each, and
// reconciles the alert store. Triggered either by the orchestrator or
// directly by a manual request.
func (p *Pipeline) Run(ctx context.Context, obraID, tenantID string, trigger model.TriggerType) (*RunResult, error) {
	obra, err := p.store.GetObra(ctx, obraID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", model.ErrDataUnavailable, err)
		}
		return nil, err
	}

	result, err := p.calculator.Calculate(ctx, obraID, tenantID)
	if err != nil {
		return nil, err
	}

	cfg := p.resolveConfig(ctx, obraID)

	run := &RunResult{Result: result}
	scopes := append([]model.ScopeDeviation{result.Geral}, result.PorCategoria...)
	for _, dev := range scopes {
		tier := Classify(dev, cfg.Thresholds)
		created, resolved, err := p.lifecycle.Apply(ctx, obra, cfg, dev, tier)
		if err != nil {
			return nil, err
		}
		if created {
			run.AlertsCreated++
		}
		if resolved {
			run.AlertsResolved++
		}
	}

	p.logger.Info("cálculo de desvio concluído",
		"obra_id", obraID,
		"trigger", trigger,
		"percentual_geral", result.Geral.Percentual,
		"alertas_gerados", run.AlertsCreated,
		"alertas_resolvidos", run.AlertsResolved,
	)

	return run, nil
}

// resolveConfig loads the project's active threshold configuration, falling
// back to the system defaults when none exists or the read fails.
func (p *Pipeline) resolveConfig(ctx context.Context, obraID string) *model.AlertConfig {
	cfg, err := p.store.GetActiveAlertConfig(ctx, obraID)
	if err == nil {
		return cfg
	}
	if !errors.Is(err, model.ErrNotFound) {
		p.logger.Warn("falha ao carregar configuração, usando padrão",
			"obra_id", obraID,
			"error", err,
		)
	}

	cfg = model.DefaultAlertConfig(obraID)
	cfg.Thresholds = p.defaults
	return cfg
}
