package storage

import (
	"context"
	"time"

	"github.com/obrasai/vigia/pkg/model"
)

// Storage defines the persistence layer for projects, cost ledgers,
// threshold configurations and deviation alerts.
type Storage interface {
	// CreateObra registers a project.
	CreateObra(ctx context.Context, obra *model.Obra) error

	// GetObra retrieves a project by id. Returns model.ErrNotFound when absent.
	GetObra(ctx context.Context, id string) (*model.Obra, error)

	// ListObrasStartedBy returns projects whose start date is on or before
	// asOf, the eligibility rule for batch runs.
	ListObrasStartedBy(ctx context.Context, asOf time.Time) ([]model.Obra, error)

	// AddBudgetItem persists a budgeted amount for one (obra, categoria).
	AddBudgetItem(ctx context.Context, item *model.BudgetItem) error

	// RecordExpense persists a realized cost entry.
	RecordExpense(ctx context.Context, expense *model.Expense) error

	// BudgetByCategoria returns budgeted totals keyed by categoria.
	BudgetByCategoria(ctx context.Context, obraID string) (map[string]float64, error)

	// RealizedByCategoria returns summed realized cost keyed by categoria.
	RealizedByCategoria(ctx context.Context, obraID string) (map[string]float64, error)

	// SaveAlertConfig creates or updates the active threshold configuration
	// for a project, keyed on obra_id.
	SaveAlertConfig(ctx context.Context, cfg *model.AlertConfig) error

	// GetActiveAlertConfig retrieves the active configuration for a project.
	// Returns model.ErrNotFound when none is active.
	GetActiveAlertConfig(ctx context.Context, obraID string) (*model.AlertConfig, error)

	// DeactivateAlertConfig soft-deletes the active configuration.
	DeactivateAlertConfig(ctx context.Context, obraID string) error

	// UpsertActiveAlert refreshes the ATIVO alert for (obra, categoria) or
	// inserts a new one, atomically. The partial unique index on the ATIVO
	// status backs the one-active-alert-per-scope invariant; a concurrent
	// collision surfaces model.ErrWriteConflict.
	UpsertActiveAlert(ctx context.Context, alert *model.DeviationAlert) (created bool, err error)

	// ResolveActiveAlert transitions the ATIVO alert for (obra, categoria)
	// to RESOLVIDO, if one exists. Reports whether an alert was resolved.
	ResolveActiveAlert(ctx context.Context, obraID, categoria string) (bool, error)

	// UpdateAlertStatus moves an alert from one status to another as a
	// conditional write. Returns model.ErrWriteConflict when the row was
	// not in the expected status anymore.
	UpdateAlertStatus(ctx context.Context, id string, from, to model.AlertStatus) error

	// GetAlert retrieves one alert with joined project metadata.
	GetAlert(ctx context.Context, id string) (*model.DeviationAlert, error)

	// ListAlerts returns alerts matching the filter, newest first, with
	// joined project metadata.
	ListAlerts(ctx context.Context, filter model.AlertFilter) ([]model.DeviationAlert, error)

	// MarkAlertsAcknowledged moves the given ATIVO alerts to VISUALIZADO.
	// Rows in any other status are left untouched.
	MarkAlertsAcknowledged(ctx context.Context, ids []string) (int64, error)

	// PruneTerminalAlerts deletes RESOLVIDO/IGNORADO alerts whose terminal
	// transition predates the cutoff and returns the number removed.
	PruneTerminalAlerts(ctx context.Context, cutoff time.Time) (int64, error)

	// AlertStats aggregates dashboard statistics over the alert store.
	AlertStats(ctx context.Context, filter model.StatsFilter) (*model.EstatisticasAlertas, error)

	// Close releases resources.
	Close() error
}
