// Package scheduler periodically sweeps active projects through the
// deviation pipeline when a schedule interval is configured.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/obrasai/vigia/pkg/engine"
)

// Scheduler drives recurring orchestrator sweeps on a fixed interval.
type Scheduler struct {
	orchestrator *engine.Orchestrator
	interval     time.Duration
	logger       *slog.Logger
}

func New(orchestrator *engine.Orchestrator, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		orchestrator: orchestrator,
		interval:     interval,
		logger:       logger,
	}
}

// Run blocks until ctx is cancelled, triggering a sweep every interval.
// An interval of zero disables scheduling and returns immediately.
func (s *Scheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("agendamento desabilitado")
		return
	}

	s.logger.Info("agendador iniciado", "intervalo", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("agendador encerrado")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	summary, err := s.orchestrator.RunForEligible(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("varredura agendada interrompida", "error", err)
		return
	}
	s.logger.Info("varredura agendada concluída",
		"tentadas", summary.Attempted,
		"sucesso", summary.Succeeded,
		"falhas", summary.Failed,
	)
}
