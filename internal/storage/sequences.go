package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// NextSequence increments and returns the archive counter for (period, code).
// The first call for a key returns 1.
func (s *SQLiteStorage) NextSequence(ctx context.Context, period, code string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(period, "period"); err != nil {
		return 0, err
	}
	if err := validateString(code, "code"); err != nil {
		return 0, err
	}

	var next int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO archive_sequences (period, code, last_value, updated_at)
			VALUES (?, ?, 1, ?)
			ON CONFLICT(period, code) DO UPDATE SET
				last_value = last_value + 1,
				updated_at = excluded.updated_at`,
			period, code, s.now(),
		); err != nil {
			return fmt.Errorf("failed to advance sequence: %w", mapSQLiteError(err))
		}
		if err := tx.QueryRowContext(ctx,
			`SELECT last_value FROM archive_sequences WHERE period = ? AND code = ?`, period, code,
		).Scan(&next); err != nil {
			return fmt.Errorf("failed to read sequence: %w", mapSQLiteError(err))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}
