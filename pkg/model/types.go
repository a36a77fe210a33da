package model

import "time"

// Severity classifies how far a project has drifted over budget.
// Wire values follow the alertas_desvio schema.
type Severity string

const (
	SeverityLow      Severity = "BAIXO"
	SeverityMedium   Severity = "MEDIO"
	SeverityHigh     Severity = "ALTO"
	SeverityCritical Severity = "CRITICO"

	// SeverityNone means the deviation is below the lowest threshold and
	// no alert should exist for the scope.
	SeverityNone Severity = ""
)

// AlertStatus is the lifecycle state of a deviation alert.
type AlertStatus string

const (
	StatusActive       AlertStatus = "ATIVO"
	StatusAcknowledged AlertStatus = "VISUALIZADO"
	StatusResolved     AlertStatus = "RESOLVIDO"
	StatusDismissed    AlertStatus = "IGNORADO"
)

// ScopeOverall is the categoria value for a project-wide alert, as opposed
// to one scoped to a single cost category.
const ScopeOverall = ""

// TriggerType identifies what initiated a deviation calculation.
type TriggerType string

const (
	TriggerManual    TriggerType = "manual"
	TriggerAutomatic TriggerType = "automatic"
	TriggerScheduled TriggerType = "scheduled"
)

// Obra is a construction project as seen by the engine. The record is owned
// by the CRUD subsystem; the engine only reads it.
type Obra struct {
	ID         string    `json:"id" db:"id"`
	TenantID   string    `json:"tenant_id" db:"tenant_id"`
	Nome       string    `json:"nome" db:"nome"`
	Status     string    `json:"status" db:"status"`
	DataInicio time.Time `json:"data_inicio" db:"data_inicio"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// BudgetItem is a budgeted amount for one cost category of a project.
type BudgetItem struct {
	ID        string  `json:"id" db:"id"`
	ObraID    string  `json:"obra_id" db:"obra_id"`
	Categoria string  `json:"categoria" db:"categoria"`
	Valor     float64 `json:"valor" db:"valor"`
}

// Expense is a single realized cost entry recorded against a project.
type Expense struct {
	ID          string    `json:"id" db:"id"`
	ObraID      string    `json:"obra_id" db:"obra_id"`
	Categoria   string    `json:"categoria" db:"categoria"`
	Valor       float64   `json:"valor" db:"valor"`
	Descricao   string    `json:"descricao,omitempty" db:"descricao"`
	DataDespesa time.Time `json:"data_despesa" db:"data_despesa"`
}

// Thresholds holds the four ordered severity boundaries, in percent.
// Invariant: Baixo < Medio < Alto < Critico.
type Thresholds struct {
	Baixo   float64 `json:"threshold_baixo" yaml:"baixo" mapstructure:"baixo" validate:"gt=0"`
	Medio   float64 `json:"threshold_medio" yaml:"medio" mapstructure:"medio" validate:"gtfield=Baixo"`
	Alto    float64 `json:"threshold_alto" yaml:"alto" mapstructure:"alto" validate:"gtfield=Medio"`
	Critico float64 `json:"threshold_critico" yaml:"critico" mapstructure:"critico" validate:"gtfield=Alto"`
}

// DefaultThresholds are substituted when a project has no active
// configuration. Values mirror the product defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{Baixo: 5, Medio: 15, Alto: 25, Critico: 40}
}

// AlertConfig is the per-project threshold configuration. At most one active
// row exists per obra; deactivation flips Ativo instead of deleting so the
// audit history survives.
type AlertConfig struct {
	ID                 string    `json:"id,omitempty" db:"id"`
	ObraID             string    `json:"obra_id" db:"obra_id" validate:"required"`
	Thresholds         `yaml:",inline"`
	NotificarEmail     bool      `json:"notificar_email" db:"notificar_email"`
	NotificarDashboard bool      `json:"notificar_dashboard" db:"notificar_dashboard"`
	Ativo              bool      `json:"ativo" db:"ativo"`
	CreatedAt          time.Time `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// DefaultAlertConfig returns the system fallback configuration for an obra.
func DefaultAlertConfig(obraID string) *AlertConfig {
	return &AlertConfig{
		ObraID:             obraID,
		Thresholds:         DefaultThresholds(),
		NotificarEmail:     true,
		NotificarDashboard: true,
		Ativo:              true,
	}
}

// DeviationAlert is the persisted alert record. At most one ATIVO row exists
// per (obra, categoria) at any time; the store enforces this with a partial
// unique index.
type DeviationAlert struct {
	ID               string      `json:"id" db:"id"`
	ObraID           string      `json:"obra_id" db:"obra_id"`
	TipoAlerta       Severity    `json:"tipo_alerta" db:"tipo_alerta"`
	PercentualDesvio float64     `json:"percentual_desvio" db:"percentual_desvio"`
	ValorOrcado      float64     `json:"valor_orcado" db:"valor_orcado"`
	ValorRealizado   float64     `json:"valor_realizado" db:"valor_realizado"`
	ValorDesvio      float64     `json:"valor_desvio" db:"valor_desvio"`
	Categoria        string      `json:"categoria,omitempty" db:"categoria"`
	Descricao        string      `json:"descricao" db:"descricao"`
	Status           AlertStatus `json:"status" db:"status"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at" db:"updated_at"`

	// ObraNome and ObraStatus carry joined project metadata on read APIs.
	ObraNome   string `json:"obra_nome,omitempty" db:"obra_nome"`
	ObraStatus string `json:"obra_status,omitempty" db:"obra_status"`
}

// ScopeDeviation is the computed budget-vs-actual drift for one scope
// (overall project or a single categoria).
type ScopeDeviation struct {
	Categoria      string  `json:"categoria,omitempty"`
	Percentual     float64 `json:"percentual"`
	ValorOrcado    float64 `json:"valor_orcado"`
	ValorRealizado float64 `json:"valor_realizado"`
	ValorDesvio    float64 `json:"valor_desvio"`

	// Unbounded marks a scope with zero budget and non-zero realized cost.
	// The percentage is not meaningful; classification is CRITICO.
	Unbounded bool `json:"-"`
}

// DeviationResult is the outcome of one calculation run for a project.
// It is ephemeral: the classifier and lifecycle manager consume it
// immediately and only alerts are persisted.
type DeviationResult struct {
	ObraID       string           `json:"obra_id"`
	TenantID     string           `json:"tenant_id"`
	Geral        ScopeDeviation   `json:"geral"`
	PorCategoria []ScopeDeviation `json:"por_categoria"`

	// MissingCategories lists categories that had realized cost but no
	// budget line. The calculation proceeds without them.
	MissingCategories []string `json:"categorias_sem_orcamento,omitempty"`
}

// Partial reports whether the result was computed from an incomplete
// category set.
func (r *DeviationResult) Partial() bool { return len(r.MissingCategories) > 0 }

// ObraError records a single project failure inside a batch run.
type ObraError struct {
	ObraID string `json:"obra_id"`
	Nome   string `json:"nome,omitempty"`
	Err    string `json:"error"`
}

// RunSummary aggregates the outcome of one orchestrator sweep.
type RunSummary struct {
	AsOf           time.Time     `json:"as_of"`
	Attempted      int           `json:"attempted"`
	Succeeded      int           `json:"succeeded"`
	Failed         int           `json:"failed"`
	AlertsCreated  int           `json:"alertas_gerados"`
	AlertsResolved int           `json:"alertas_resolvidos"`
	Errors         []ObraError   `json:"errors,omitempty"`
	Duration       time.Duration `json:"-"`
}

// AlertFilter narrows alert list queries. Zero values mean "no filter".
type AlertFilter struct {
	Status     []AlertStatus `json:"status,omitempty"`
	TipoAlerta []Severity    `json:"tipo_alerta,omitempty"`
	ObraID     string        `json:"obra_id,omitempty"`
	DataInicio time.Time     `json:"data_inicio,omitempty"`
	DataFim    time.Time     `json:"data_fim,omitempty"`
}

// StatsFilter narrows statistics queries.
type StatsFilter struct {
	ObraID     string    `json:"obra_id,omitempty"`
	DataInicio time.Time `json:"data_inicio,omitempty"`
	DataFim    time.Time `json:"data_fim,omitempty"`
}

// MaiorDesvio identifies the single largest deviation among matched alerts.
type MaiorDesvio struct {
	ObraNome   string  `json:"obra_nome"`
	Percentual float64 `json:"percentual"`
	Valor      float64 `json:"valor"`
}

// EstatisticasAlertas is the dashboard summary over the alert store.
type EstatisticasAlertas struct {
	TotalAlertas     int                 `json:"total_alertas"`
	AlertasPorTipo   map[Severity]int    `json:"alertas_por_tipo"`
	AlertasPorStatus map[AlertStatus]int `json:"alertas_por_status"`
	ObrasComAlertas  int                 `json:"obras_com_alertas"`
	MediaDesvio      float64             `json:"media_desvio"`
	MaiorDesvio      MaiorDesvio         `json:"maior_desvio"`
}
