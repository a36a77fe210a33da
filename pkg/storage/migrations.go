package storage

import (
	"database/sql"
	"fmt"
)

var migrations = []string{
	// Migration 1: Initial schema
	`CREATE TABLE IF NOT EXISTS obras (
		id          TEXT PRIMARY KEY,
		tenant_id   TEXT NOT NULL,
		nome        TEXT NOT NULL,
		status      TEXT NOT NULL DEFAULT 'ativa',
		data_inicio DATETIME NOT NULL,
		created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_obras_data_inicio ON obras(data_inicio);

	CREATE TABLE IF NOT EXISTS orcamento_itens (
		id        TEXT PRIMARY KEY,
		obra_id   TEXT NOT NULL REFERENCES obras(id),
		categoria TEXT NOT NULL,
		valor     REAL NOT NULL DEFAULT 0.0,
		UNIQUE(obra_id, categoria)
	);

	CREATE TABLE IF NOT EXISTS despesas (
		id           TEXT PRIMARY KEY,
		obra_id      TEXT NOT NULL REFERENCES obras(id),
		categoria    TEXT NOT NULL,
		valor        REAL NOT NULL DEFAULT 0.0,
		descricao    TEXT NOT NULL DEFAULT '',
		data_despesa DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_despesas_obra ON despesas(obra_id);

	CREATE TABLE IF NOT EXISTS configuracoes_alerta (
		id                  TEXT PRIMARY KEY,
		obra_id             TEXT NOT NULL REFERENCES obras(id),
		threshold_baixo     REAL NOT NULL DEFAULT 5.0,
		threshold_medio     REAL NOT NULL DEFAULT 15.0,
		threshold_alto      REAL NOT NULL DEFAULT 25.0,
		threshold_critico   REAL NOT NULL DEFAULT 40.0,
		notificar_email     INTEGER NOT NULL DEFAULT 1,
		notificar_dashboard INTEGER NOT NULL DEFAULT 1,
		ativo               INTEGER NOT NULL DEFAULT 1,
		created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_config_ativa_por_obra
		ON configuracoes_alerta(obra_id) WHERE ativo = 1;

	CREATE TABLE IF NOT EXISTS alertas_desvio (
		id                TEXT PRIMARY KEY,
		obra_id           TEXT NOT NULL REFERENCES obras(id),
		tipo_alerta       TEXT NOT NULL CHECK(tipo_alerta IN ('BAIXO', 'MEDIO', 'ALTO', 'CRITICO')),
		percentual_desvio REAL NOT NULL DEFAULT 0.0,
		valor_orcado      REAL NOT NULL DEFAULT 0.0,
		valor_realizado   REAL NOT NULL DEFAULT 0.0,
		valor_desvio      REAL NOT NULL DEFAULT 0.0,
		categoria         TEXT NOT NULL DEFAULT '',
		descricao         TEXT NOT NULL DEFAULT '',
		status            TEXT NOT NULL DEFAULT 'ATIVO' CHECK(status IN ('ATIVO', 'VISUALIZADO', 'RESOLVIDO', 'IGNORADO')),
		created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_alerta_ativo_por_escopo
		ON alertas_desvio(obra_id, categoria) WHERE status = 'ATIVO';
	CREATE INDEX IF NOT EXISTS idx_alertas_obra ON alertas_desvio(obra_id);
	CREATE INDEX IF NOT EXISTS idx_alertas_status ON alertas_desvio(status);
	CREATE INDEX IF NOT EXISTS idx_alertas_created ON alertas_desvio(created_at);

	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
}

// runMigrations applies pending schema migrations.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	var currentVersion int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("check migration version: %w", err)
	}

	for i := currentVersion; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("run migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", i+1); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}

	return nil
}
