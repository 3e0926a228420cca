package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Classification rules",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					enabled BOOLEAN NOT NULL DEFAULT 1,
					priority INTEGER NOT NULL DEFAULT 0,
					sequence INTEGER NOT NULL UNIQUE,
					is_system_rule BOOLEAN NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_rules_order ON rules(enabled, priority DESC, sequence ASC)`,
				`CREATE UNIQUE INDEX idx_rules_system_name ON rules(name) WHERE is_system_rule = 1`,

				`CREATE TABLE IF NOT EXISTS rule_conditions (
					rule_id INTEGER NOT NULL,
					position INTEGER NOT NULL,
					field TEXT NOT NULL,
					operator TEXT NOT NULL,
					value TEXT NOT NULL DEFAULT '',
					logical_operator TEXT NOT NULL DEFAULT '',
					PRIMARY KEY (rule_id, position),
					FOREIGN KEY (rule_id) REFERENCES rules(id) ON DELETE CASCADE
				)`,

				`CREATE TABLE IF NOT EXISTS rule_actions (
					rule_id INTEGER NOT NULL,
					position INTEGER NOT NULL,
					action_type TEXT NOT NULL,
					value TEXT NOT NULL DEFAULT '',
					PRIMARY KEY (rule_id, position),
					FOREIGN KEY (rule_id) REFERENCES rules(id) ON DELETE CASCADE
				)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Receipts and extracted fields",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS receipts (
					id TEXT PRIMARY KEY,
					hash TEXT UNIQUE NOT NULL,
					status TEXT NOT NULL DEFAULT 'PENDING',
					rule_id INTEGER,
					category TEXT NOT NULL DEFAULT '',
					sub_category TEXT NOT NULL DEFAULT '',
					expense_type TEXT NOT NULL DEFAULT '',
					department TEXT NOT NULL DEFAULT '',
					project TEXT NOT NULL DEFAULT '',
					archive_path TEXT NOT NULL DEFAULT '',
					archive_number TEXT NOT NULL DEFAULT '',
					created_at DATETIME NOT NULL,
					classified_at DATETIME,
					FOREIGN KEY (rule_id) REFERENCES rules(id) ON DELETE SET NULL
				)`,
				`CREATE INDEX idx_receipts_status ON receipts(status)`,
				`CREATE UNIQUE INDEX idx_receipts_archive_number ON receipts(archive_number) WHERE archive_number != ''`,

				`CREATE TABLE IF NOT EXISTS receipt_fields (
					receipt_id TEXT NOT NULL,
					field TEXT NOT NULL,
					kind TEXT NOT NULL,
					value TEXT NOT NULL,
					PRIMARY KEY (receipt_id, field),
					FOREIGN KEY (receipt_id) REFERENCES receipts(id) ON DELETE CASCADE
				)`,

				`CREATE TABLE IF NOT EXISTS receipt_tags (
					receipt_id TEXT NOT NULL,
					tag TEXT NOT NULL,
					PRIMARY KEY (receipt_id, tag),
					FOREIGN KEY (receipt_id) REFERENCES receipts(id) ON DELETE CASCADE
				)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Archive number sequences",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS archive_sequences (
					period TEXT NOT NULL,
					code TEXT NOT NULL,
					last_value INTEGER NOT NULL,
					updated_at DATETIME NOT NULL,
					PRIMARY KEY (period, code)
				)`,
			})
		},
	},
	{
		Version:     4,
		Description: "Operation log for classification diagnostics",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS operation_log (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					receipt_id TEXT NOT NULL DEFAULT '',
					rule_id INTEGER,
					kind TEXT NOT NULL,
					message TEXT NOT NULL,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_operation_log_created ON operation_log(created_at)`,
			})
		},
	},
}

// SchemaVersion returns the version recorded in the database.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
