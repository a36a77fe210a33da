package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/obrasai/vigia/pkg/model"
	"github.com/obrasai/vigia/pkg/storage"
)

// Orchestrator batch-processes eligible projects through the calculation
// pipeline. Projects are partitioned into fixed-size batches; each batch
// runs concurrently, then the orchestrator pauses before the next one.
// Sequential batches of parallel tasks keep peak load on the calculation
// backend bounded without an adaptive rate limiter.
type Orchestrator struct {
	store    storage.Storage
	pipeline *Pipeline
	logger   *slog.Logger

	batchSize   int
	batchPause  time.Duration
	obraTimeout time.Duration
}

// OrchestratorConfig tunes batch processing. Zero values fall back to
// the defaults (batch of 5, 1s pause, 30s per-project timeout).
type OrchestratorConfig struct {
	BatchSize   int
	BatchPause  time.Duration
	ObraTimeout time.Duration
}

// NewOrchestrator creates a batch orchestrator.
func NewOrchestrator(store storage.Storage, pipeline *Pipeline, cfg OrchestratorConfig, logger *slog.Logger) *Orchestrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.BatchPause <= 0 {
		cfg.BatchPause = time.Second
	}
	if cfg.ObraTimeout <= 0 {
		cfg.ObraTimeout = 30 * time.Second
	}
	return &Orchestrator{
		store:       store,
		pipeline:    pipeline,
		logger:      logger,
		batchSize:   cfg.BatchSize,
		batchPause:  cfg.BatchPause,
		obraTimeout: cfg.ObraTimeout,
	}
}

// RunForEligible sweeps every project whose start date is on or before
// asOf. Per-project failures are recorded in the summary and never abort
// sibling pipelines or the run. A context cancellation is honored between
// batches; a started batch always runs to completion.
func (o *Orchestrator) RunForEligible(ctx context.Context, asOf time.Time) (*model.RunSummary, error) {
	started := time.Now()

	obras, err := o.store.ListObrasStartedBy(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("listar obras elegíveis: %w", err)
	}

	summary := &model.RunSummary{AsOf: asOf, Attempted: len(obras)}
	if len(obras) == 0 {
		o.logger.Info("nenhuma obra elegível para varredura", "as_of", asOf)
		return summary, nil
	}

	o.logger.Info("varredura de desvios iniciada",
		"obras", len(obras),
		"batch_size", o.batchSize,
		"as_of", asOf,
	)

	var mu sync.Mutex
	for start := 0; start < len(obras); start += o.batchSize {
		end := min(start+o.batchSize, len(obras))
		batch := obras[start:end]

		var g errgroup.Group
		for _, obra := range batch {
			g.Go(func() error {
				octx, cancel := context.WithTimeout(ctx, o.obraTimeout)
				defer cancel()

				run, err := o.pipeline.Run(octx, obra.ID, obra.TenantID, model.TriggerScheduled)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					summary.Failed++
					summary.Errors = append(summary.Errors, model.ObraError{
						ObraID: obra.ID,
						Nome:   obra.Nome,
						Err:    err.Error(),
					})
					o.logger.Error("pipeline da obra falhou",
						"obra_id", obra.ID,
						"error", err,
					)
					return nil // one failed project never aborts the batch
				}
				summary.Succeeded++
				summary.AlertsCreated += run.AlertsCreated
				summary.AlertsResolved += run.AlertsResolved
				return nil
			})
		}
		_ = g.Wait()

		if end < len(obras) {
			select {
			case <-time.After(o.batchPause):
			case <-ctx.Done():
				summary.Duration = time.Since(started)
				return summary, ctx.Err()
			}
		}
	}

	summary.Duration = time.Since(started)
	o.logger.Info("varredura de desvios concluída",
		"attempted", summary.Attempted,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"alertas_gerados", summary.AlertsCreated,
		"alertas_resolvidos", summary.AlertsResolved,
		"duration", summary.Duration,
	)

	return summary, nil
}

// RunForObra recalculates a single project on demand, bypassing batching
// and pacing. The call is synchronous and honors the caller's context
// deadline.
func (o *Orchestrator) RunForObra(ctx context.Context, obraID, tenantID string, trigger model.TriggerType) (*RunResult, error) {
	return o.pipeline.Run(ctx, obraID, tenantID, trigger)
}
