package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/obrasai/vigia/pkg/model"
	"github.com/obrasai/vigia/pkg/notify"
	"github.com/obrasai/vigia/pkg/storage"
)

// terminalRetention is how long RESOLVIDO/IGNORADO alerts are kept before
// they become eligible for pruning.
const terminalRetention = 90 * 24 * time.Hour

// LifecycleManager owns the durable alert records: it creates and refreshes
// ATIVO alerts, auto-resolves stale ones, enforces the status transition
// table, and answers read projections.
type LifecycleManager struct {
	store     storage.Storage
	notifiers []notify.Notifier
	logger    *slog.Logger
}

// NewLifecycleManager creates a lifecycle manager. Notifiers may be nil.
func NewLifecycleManager(store storage.Storage, notifiers []notify.Notifier, logger *slog.Logger) *LifecycleManager {
	return &LifecycleManager{
		store:     store,
		notifiers: notifiers,
		logger:    logger,
	}
}

// Apply reconciles the alert state for one (obra, scope) with a freshly
// classified deviation. A tier of SeverityNone resolves any existing ATIVO
// alert for the scope; otherwise the ATIVO alert is refreshed in place or a
// new one is created. A write conflict from a concurrent run is retried
// once; by then the other run has materialized the row and the retry lands
// as an update.
func (m *LifecycleManager) Apply(ctx context.Context, obra *model.Obra, cfg *model.AlertConfig, dev model.ScopeDeviation, tier model.Severity) (created, resolved bool, err error) {
	if tier == model.SeverityNone {
		resolved, err = m.store.ResolveActiveAlert(ctx, obra.ID, dev.Categoria)
		if err != nil {
			return false, false, fmt.Errorf("auto-resolver alerta: %w", err)
		}
		if resolved {
			m.logger.Info("desvio normalizado, alerta resolvido",
				"obra_id", obra.ID,
				"categoria", dev.Categoria,
			)
		}
		return false, resolved, nil
	}

	alert := &model.DeviationAlert{
		ObraID:           obra.ID,
		TipoAlerta:       tier,
		PercentualDesvio: round2(dev.Percentual),
		ValorOrcado:      dev.ValorOrcado,
		ValorRealizado:   dev.ValorRealizado,
		ValorDesvio:      dev.ValorDesvio,
		Categoria:        dev.Categoria,
		Descricao:        describeDeviation(dev, tier),
	}

	created, err = m.store.UpsertActiveAlert(ctx, alert)
	if errors.Is(err, model.ErrWriteConflict) {
		created, err = m.store.UpsertActiveAlert(ctx, alert)
	}
	if err != nil {
		return false, false, fmt.Errorf("upsert alerta: %w", err)
	}

	if created {
		m.logger.Warn("alerta de desvio criado",
			"obra_id", obra.ID,
			"categoria", dev.Categoria,
			"tipo", tier,
			"percentual", alert.PercentualDesvio,
		)
	}

	if created && cfg.NotificarEmail {
		m.dispatch(ctx, notify.Event{Alerta: *alert, ObraNome: obra.Nome, Novo: true})
	}

	return created, false, nil
}

// Transition moves an alert to a new lifecycle status, enforcing the
// transition table. RESOLVIDO and IGNORADO are terminal; an illegal move
// fails with ErrInvalidTransition and leaves state unchanged. A concurrent
// status change is retried once against the fresh state.
func (m *LifecycleManager) Transition(ctx context.Context, alertID string, newStatus model.AlertStatus) error {
	if !model.ValidStatus(newStatus) {
		return fmt.Errorf("status %q desconhecido: %w", newStatus, model.ErrInvalidTransition)
	}

	for attempt := 0; ; attempt++ {
		alert, err := m.store.GetAlert(ctx, alertID)
		if err != nil {
			return err
		}

		if !model.CanTransition(alert.Status, newStatus) {
			return fmt.Errorf("%s → %s: %w", alert.Status, newStatus, model.ErrInvalidTransition)
		}

		err = m.store.UpdateAlertStatus(ctx, alertID, alert.Status, newStatus)
		if errors.Is(err, model.ErrWriteConflict) && attempt == 0 {
			continue
		}
		if err != nil {
			return err
		}

		m.logger.Info("status do alerta atualizado",
			"alerta_id", alertID,
			"de", alert.Status,
			"para", newStatus,
		)
		return nil
	}
}

// Get retrieves one alert with joined project metadata.
func (m *LifecycleManager) Get(ctx context.Context, alertID string) (*model.DeviationAlert, error) {
	return m.store.GetAlert(ctx, alertID)
}

// List returns alerts matching the filter, newest first.
func (m *LifecycleManager) List(ctx context.Context, filter model.AlertFilter) ([]model.DeviationAlert, error) {
	return m.store.ListAlerts(ctx, filter)
}

// ListByObra returns all alerts for one project.
func (m *LifecycleManager) ListByObra(ctx context.Context, obraID string) ([]model.DeviationAlert, error) {
	return m.store.ListAlerts(ctx, model.AlertFilter{ObraID: obraID})
}

// ListActive returns all ATIVO alerts.
func (m *LifecycleManager) ListActive(ctx context.Context) ([]model.DeviationAlert, error) {
	return m.store.ListAlerts(ctx, model.AlertFilter{Status: []model.AlertStatus{model.StatusActive}})
}

// ListByTier returns ATIVO alerts of one severity tier.
func (m *LifecycleManager) ListByTier(ctx context.Context, tier model.Severity) ([]model.DeviationAlert, error) {
	return m.store.ListAlerts(ctx, model.AlertFilter{
		Status:     []model.AlertStatus{model.StatusActive},
		TipoAlerta: []model.Severity{tier},
	})
}

// Acknowledge marks a batch of ATIVO alerts as VISUALIZADO and returns how
// many rows changed. Alerts in any other status are skipped.
func (m *LifecycleManager) Acknowledge(ctx context.Context, alertIDs []string) (int64, error) {
	return m.store.MarkAlertsAcknowledged(ctx, alertIDs)
}

// Prune deletes terminal alerts past the retention window and returns the
// number removed.
func (m *LifecycleManager) Prune(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-terminalRetention)
	removed, err := m.store.PruneTerminalAlerts(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("limpar alertas antigos: %w", err)
	}
	if removed > 0 {
		m.logger.Info("alertas antigos removidos", "removidos", removed)
	}
	return removed, nil
}

func (m *LifecycleManager) dispatch(ctx context.Context, event notify.Event) {
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, event); err != nil {
			m.logger.Error("falha ao notificar alerta",
				"notifier", notifier.Name(),
				"alerta_id", event.Alerta.ID,
				"error", err,
			)
		}
	}
}

// describeDeviation builds the human-readable alert description stored on
// the record.
func describeDeviation(dev model.ScopeDeviation, tier model.Severity) string {
	escopo := "no orçamento geral"
	if dev.Categoria != model.ScopeOverall {
		escopo = fmt.Sprintf("na categoria %s", dev.Categoria)
	}
	if dev.Unbounded {
		return fmt.Sprintf("Custo realizado de R$ %.2f %s sem valor orçado (desvio %s)",
			dev.ValorRealizado, escopo, tier)
	}
	return fmt.Sprintf("Desvio orçamentário de %.1f%% %s (orçado R$ %.2f, realizado R$ %.2f, desvio %s)",
		dev.Percentual, escopo, dev.ValorOrcado, dev.ValorRealizado, tier)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
