package engine

import (
	"context"
	"fmt"

	"github.com/obrasai/vigia/pkg/model"
	"github.com/obrasai/vigia/pkg/storage"
)

// StatsAggregator computes dashboard summaries over the alert store.
// Read-only; dashboards tolerate eventual consistency, so there is no
// caching beyond what the store provides.
type StatsAggregator struct {
	store storage.Storage
}

// NewStatsAggregator creates a statistics aggregator.
func NewStatsAggregator(store storage.Storage) *StatsAggregator {
	return &StatsAggregator{store: store}
}

// Estatisticas returns alert counts, rates and extremes for the matched
// alert set. Percentages are reported with two decimal places.
func (s *StatsAggregator) Estatisticas(ctx context.Context, filter model.StatsFilter) (*model.EstatisticasAlertas, error) {
	stats, err := s.store.AlertStats(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("agregar estatísticas: %w", err)
	}

	stats.MediaDesvio = round2(stats.MediaDesvio)
	stats.MaiorDesvio.Percentual = round2(stats.MaiorDesvio.Percentual)

	// Every known tier and status appears in the maps, even at zero, so
	// dashboard clients never key-miss.
	for _, tier := range []model.Severity{
		model.SeverityLow, model.SeverityMedium, model.SeverityHigh, model.SeverityCritical,
	} {
		if _, ok := stats.AlertasPorTipo[tier]; !ok {
			stats.AlertasPorTipo[tier] = 0
		}
	}
	for _, status := range []model.AlertStatus{
		model.StatusActive, model.StatusAcknowledged, model.StatusResolved, model.StatusDismissed,
	} {
		if _, ok := stats.AlertasPorStatus[status]; !ok {
			stats.AlertasPorStatus[status] = 0
		}
	}

	return stats, nil
}
