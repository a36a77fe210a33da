package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/obrasai/vigia/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLite implements the Storage interface using an SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) CreateObra(ctx context.Context, obra *model.Obra) error {
	if obra.ID == "" {
		obra.ID = uuid.New().String()
	}
	if obra.CreatedAt.IsZero() {
		obra.CreatedAt = time.Now().UTC()
	}
	if obra.Status == "" {
		obra.Status = "ativa"
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO obras (id, tenant_id, nome, status, data_inicio, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		obra.ID, obra.TenantID, obra.Nome, obra.Status, obra.DataInicio, obra.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert obra: %w", err)
	}
	return nil
}

func (s *SQLite) GetObra(ctx context.Context, id string) (*model.Obra, error) {
	var o model.Obra
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, nome, status, data_inicio, created_at
		 FROM obras WHERE id = ?`, id,
	).Scan(&o.ID, &o.TenantID, &o.Nome, &o.Status, &o.DataInicio, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("obra %q: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get obra: %w", err)
	}
	return &o, nil
}

func (s *SQLite) ListObrasStartedBy(ctx context.Context, asOf time.Time) ([]model.Obra, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, nome, status, data_inicio, created_at
		 FROM obras WHERE data_inicio <= ? ORDER BY data_inicio`, asOf,
	)
	if err != nil {
		return nil, fmt.Errorf("list obras: %w", err)
	}
	defer rows.Close()

	var obras []model.Obra
	for rows.Next() {
		var o model.Obra
		if err := rows.Scan(&o.ID, &o.TenantID, &o.Nome, &o.Status, &o.DataInicio, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan obra row: %w", err)
		}
		obras = append(obras, o)
	}
	return obras, rows.Err()
}

func (s *SQLite) AddBudgetItem(ctx context.Context, item *model.BudgetItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orcamento_itens (id, obra_id, categoria, valor)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(obra_id, categoria) DO UPDATE SET valor = excluded.valor`,
		item.ID, item.ObraID, item.Categoria, item.Valor,
	)
	if err != nil {
		return fmt.Errorf("insert budget item: %w", err)
	}
	return nil
}

func (s *SQLite) RecordExpense(ctx context.Context, expense *model.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.DataDespesa.IsZero() {
		expense.DataDespesa = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO despesas (id, obra_id, categoria, valor, descricao, data_despesa)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.ObraID, expense.Categoria, expense.Valor, expense.Descricao, expense.DataDespesa,
	)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

func (s *SQLite) BudgetByCategoria(ctx context.Context, obraID string) (map[string]float64, error) {
	return s.sumByCategoria(ctx,
		`SELECT categoria, COALESCE(SUM(valor), 0) FROM orcamento_itens WHERE obra_id = ? GROUP BY categoria`,
		obraID)
}

func (s *SQLite) RealizedByCategoria(ctx context.Context, obraID string) (map[string]float64, error) {
	return s.sumByCategoria(ctx,
		`SELECT categoria, COALESCE(SUM(valor), 0) FROM despesas WHERE obra_id = ? GROUP BY categoria`,
		obraID)
}

func (s *SQLite) sumByCategoria(ctx context.Context, query, obraID string) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx, query, obraID)
	if err != nil {
		return nil, fmt.Errorf("sum by categoria: %w", err)
	}
	defer rows.Close()

	result := make(map[string]float64)
	for rows.Next() {
		var categoria string
		var total float64
		if err := rows.Scan(&categoria, &total); err != nil {
			return nil, fmt.Errorf("scan categoria sum: %w", err)
		}
		result[categoria] = total
	}
	return result, rows.Err()
}

func (s *SQLite) SaveAlertConfig(ctx context.Context, cfg *model.AlertConfig) error {
	now := time.Now().UTC()
	cfg.UpdatedAt = now
	cfg.Ativo = true

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin config upsert: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE configuracoes_alerta SET
			threshold_baixo = ?, threshold_medio = ?, threshold_alto = ?, threshold_critico = ?,
			notificar_email = ?, notificar_dashboard = ?, updated_at = ?
		 WHERE obra_id = ? AND ativo = 1`,
		cfg.Baixo, cfg.Medio, cfg.Alto, cfg.Critico,
		cfg.NotificarEmail, cfg.NotificarDashboard, cfg.UpdatedAt, cfg.ObraID,
	)
	if err != nil {
		return fmt.Errorf("update alert config: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check config rows affected: %w", err)
	}

	if affected == 0 {
		if cfg.ID == "" {
			cfg.ID = uuid.New().String()
		}
		if cfg.CreatedAt.IsZero() {
			cfg.CreatedAt = now
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO configuracoes_alerta (
				id, obra_id, threshold_baixo, threshold_medio, threshold_alto, threshold_critico,
				notificar_email, notificar_dashboard, ativo, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			cfg.ID, cfg.ObraID, cfg.Baixo, cfg.Medio, cfg.Alto, cfg.Critico,
			cfg.NotificarEmail, cfg.NotificarDashboard, cfg.CreatedAt, cfg.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("save alert config: %w", model.ErrWriteConflict)
			}
			return fmt.Errorf("insert alert config: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit config upsert: %w", err)
	}
	return nil
}

func (s *SQLite) GetActiveAlertConfig(ctx context.Context, obraID string) (*model.AlertConfig, error) {
	var c model.AlertConfig
	err := s.db.QueryRowContext(ctx,
		`SELECT id, obra_id, threshold_baixo, threshold_medio, threshold_alto, threshold_critico,
			notificar_email, notificar_dashboard, ativo, created_at, updated_at
		 FROM configuracoes_alerta WHERE obra_id = ? AND ativo = 1`, obraID,
	).Scan(&c.ID, &c.ObraID, &c.Baixo, &c.Medio, &c.Alto, &c.Critico,
		&c.NotificarEmail, &c.NotificarDashboard, &c.Ativo, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("config for obra %q: %w", obraID, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get alert config: %w", err)
	}
	return &c, nil
}

func (s *SQLite) DeactivateAlertConfig(ctx context.Context, obraID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE configuracoes_alerta SET ativo = 0, updated_at = ?
		 WHERE obra_id = ? AND ativo = 1`,
		time.Now().UTC(), obraID,
	)
	if err != nil {
		return fmt.Errorf("deactivate alert config: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("config for obra %q: %w", obraID, model.ErrNotFound)
	}
	return nil
}

func (s *SQLite) UpsertActiveAlert(ctx context.Context, alert *model.DeviationAlert) (bool, error) {
	now := time.Now().UTC()
	alert.Status = model.StatusActive
	alert.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin alert upsert: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE alertas_desvio SET
			tipo_alerta = ?, percentual_desvio = ?, valor_orcado = ?,
			valor_realizado = ?, valor_desvio = ?, descricao = ?, updated_at = ?
		 WHERE obra_id = ? AND categoria = ? AND status = 'ATIVO'`,
		alert.TipoAlerta, alert.PercentualDesvio, alert.ValorOrcado,
		alert.ValorRealizado, alert.ValorDesvio, alert.Descricao, alert.UpdatedAt,
		alert.ObraID, alert.Categoria,
	)
	if err != nil {
		return false, fmt.Errorf("refresh active alert: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check alert rows affected: %w", err)
	}

	created := false
	if affected == 0 {
		if alert.ID == "" {
			alert.ID = uuid.New().String()
		}
		if alert.CreatedAt.IsZero() {
			alert.CreatedAt = now
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO alertas_desvio (
				id, obra_id, tipo_alerta, percentual_desvio, valor_orcado,
				valor_realizado, valor_desvio, categoria, descricao, status,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 'ATIVO', ?, ?)`,
			alert.ID, alert.ObraID, alert.TipoAlerta, alert.PercentualDesvio, alert.ValorOrcado,
			alert.ValorRealizado, alert.ValorDesvio, alert.Categoria, alert.Descricao,
			alert.CreatedAt, alert.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return false, fmt.Errorf("upsert active alert: %w", model.ErrWriteConflict)
			}
			return false, fmt.Errorf("insert alert: %w", err)
		}
		created = true
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return false, fmt.Errorf("upsert active alert: %w", model.ErrWriteConflict)
		}
		return false, fmt.Errorf("commit alert upsert: %w", err)
	}
	return created, nil
}

func (s *SQLite) ResolveActiveAlert(ctx context.Context, obraID, categoria string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alertas_desvio SET status = 'RESOLVIDO', updated_at = ?
		 WHERE obra_id = ? AND categoria = ? AND status = 'ATIVO'`,
		time.Now().UTC(), obraID, categoria,
	)
	if err != nil {
		return false, fmt.Errorf("resolve active alert: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}
	return affected > 0, nil
}

func (s *SQLite) UpdateAlertStatus(ctx context.Context, id string, from, to model.AlertStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alertas_desvio SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		to, time.Now().UTC(), id, from,
	)
	if err != nil {
		return fmt.Errorf("update alert status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if affected == 0 {
		// The row either vanished or changed status under us.
		var current string
		err := s.db.QueryRowContext(ctx,
			`SELECT status FROM alertas_desvio WHERE id = ?`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("alerta %q: %w", id, model.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("check alert status: %w", err)
		}
		return fmt.Errorf("alerta %q mudou de %s para %s: %w", id, from, current, model.ErrWriteConflict)
	}
	return nil
}

const alertColumns = `
	a.id, a.obra_id, a.tipo_alerta, a.percentual_desvio, a.valor_orcado,
	a.valor_realizado, a.valor_desvio, a.categoria, a.descricao, a.status,
	a.created_at, a.updated_at, o.nome, o.status`

func scanAlert(row interface{ Scan(...any) error }) (*model.DeviationAlert, error) {
	var a model.DeviationAlert
	err := row.Scan(
		&a.ID, &a.ObraID, &a.TipoAlerta, &a.PercentualDesvio, &a.ValorOrcado,
		&a.ValorRealizado, &a.ValorDesvio, &a.Categoria, &a.Descricao, &a.Status,
		&a.CreatedAt, &a.UpdatedAt, &a.ObraNome, &a.ObraStatus,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *SQLite) GetAlert(ctx context.Context, id string) (*model.DeviationAlert, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+alertColumns+`
		 FROM alertas_desvio a JOIN obras o ON o.id = a.obra_id
		 WHERE a.id = ?`, id)

	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("alerta %q: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return a, nil
}

func (s *SQLite) ListAlerts(ctx context.Context, filter model.AlertFilter) ([]model.DeviationAlert, error) {
	query := `SELECT ` + alertColumns + `
		FROM alertas_desvio a JOIN obras o ON o.id = a.obra_id`
	where, args := buildAlertWhere(filter)
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY a.created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []model.DeviationAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

func (s *SQLite) MarkAlertsAcknowledged(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, 0, len(ids)+1)
	args = append(args, time.Now().UTC())
	for _, id := range ids {
		args = append(args, id)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE alertas_desvio SET status = 'VISUALIZADO', updated_at = ?
		 WHERE id IN (`+placeholders+`) AND status = 'ATIVO'`, args...)
	if err != nil {
		return 0, fmt.Errorf("mark alerts acknowledged: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLite) PruneTerminalAlerts(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM alertas_desvio
		 WHERE status IN ('RESOLVIDO', 'IGNORADO') AND updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune terminal alerts: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLite) AlertStats(ctx context.Context, filter model.StatsFilter) (*model.EstatisticasAlertas, error) {
	where, args := buildStatsWhere(filter)

	stats := &model.EstatisticasAlertas{
		AlertasPorTipo:   make(map[model.Severity]int),
		AlertasPorStatus: make(map[model.AlertStatus]int),
	}

	query := `SELECT COUNT(*), COUNT(DISTINCT a.obra_id), COALESCE(AVG(ABS(a.percentual_desvio)), 0)
		FROM alertas_desvio a` + where
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.TotalAlertas, &stats.ObrasComAlertas, &stats.MediaDesvio,
	); err != nil {
		return nil, fmt.Errorf("aggregate alerts: %w", err)
	}

	tierQuery := `SELECT a.tipo_alerta, COUNT(*) FROM alertas_desvio a` + where
	if where == "" {
		tierQuery += ` WHERE a.status = 'ATIVO'`
	} else {
		tierQuery += ` AND a.status = 'ATIVO'`
	}
	tierQuery += ` GROUP BY a.tipo_alerta`
	rows, err := s.db.QueryContext(ctx, tierQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate by tier: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tier model.Severity
		var count int
		if err := rows.Scan(&tier, &count); err != nil {
			return nil, fmt.Errorf("scan tier aggregate: %w", err)
		}
		stats.AlertasPorTipo[tier] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	statusQuery := `SELECT a.status, COUNT(*) FROM alertas_desvio a` + where + ` GROUP BY a.status`
	rows, err = s.db.QueryContext(ctx, statusQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status model.AlertStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status aggregate: %w", err)
		}
		stats.AlertasPorStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	maxQuery := `SELECT o.nome, a.percentual_desvio, a.valor_desvio
		FROM alertas_desvio a JOIN obras o ON o.id = a.obra_id` + where + `
		ORDER BY ABS(a.percentual_desvio) DESC LIMIT 1`
	err = s.db.QueryRowContext(ctx, maxQuery, args...).Scan(
		&stats.MaiorDesvio.ObraNome, &stats.MaiorDesvio.Percentual, &stats.MaiorDesvio.Valor,
	)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("find largest deviation: %w", err)
	}

	return stats, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// buildAlertWhere constructs a SQL WHERE clause from an AlertFilter.
func buildAlertWhere(filter model.AlertFilter) (string, []any) {
	var conditions []string
	var args []any

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, st := range filter.Status {
			placeholders[i] = "?"
			args = append(args, st)
		}
		conditions = append(conditions, "a.status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if len(filter.TipoAlerta) > 0 {
		placeholders := make([]string, len(filter.TipoAlerta))
		for i, tier := range filter.TipoAlerta {
			placeholders[i] = "?"
			args = append(args, tier)
		}
		conditions = append(conditions, "a.tipo_alerta IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.ObraID != "" {
		conditions = append(conditions, "a.obra_id = ?")
		args = append(args, filter.ObraID)
	}
	if !filter.DataInicio.IsZero() {
		conditions = append(conditions, "a.created_at >= ?")
		args = append(args, filter.DataInicio)
	}
	if !filter.DataFim.IsZero() {
		conditions = append(conditions, "a.created_at <= ?")
		args = append(args, filter.DataFim)
	}

	return strings.Join(conditions, " AND "), args
}

// buildStatsWhere mirrors buildAlertWhere for the statistics filter,
// returning a leading " WHERE ..." fragment or an empty string.
func buildStatsWhere(filter model.StatsFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.ObraID != "" {
		conditions = append(conditions, "a.obra_id = ?")
		args = append(args, filter.ObraID)
	}
	if !filter.DataInicio.IsZero() {
		conditions = append(conditions, "a.created_at >= ?")
		args = append(args, filter.DataInicio)
	}
	if !filter.DataFim.IsZero() {
		conditions = append(conditions, "a.created_at <= ?")
		args = append(args, filter.DataFim)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
