package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Veraticus/receipt-sorter/internal/model"
)

// AppendOperationLog stores entries in one transaction.
func (s *SQLiteStorage) AppendOperationLog(ctx context.Context, entries []model.LogEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO operation_log (receipt_id, rule_id, kind, message, created_at)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		now := s.now()
		for i := range entries {
			if entries[i].CreatedAt.IsZero() {
				entries[i].CreatedAt = now
			}
			e := entries[i]
			result, err := stmt.ExecContext(ctx, e.ReceiptID, e.RuleID, e.Kind, e.Message, e.CreatedAt)
			if err != nil {
				return fmt.Errorf("failed to append log entry: %w", mapSQLiteError(err))
			}
			if id, err := result.LastInsertId(); err == nil {
				entries[i].ID = id
			}
		}
		return nil
	})
}

// GetOperationLog returns the most recent entries, newest first.
func (s *SQLiteStorage) GetOperationLog(ctx context.Context, limit int) ([]model.LogEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, receipt_id, rule_id, kind, message, created_at
		FROM operation_log
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.LogEntry
	for rows.Next() {
		var (
			e      model.LogEntry
			ruleID sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.ReceiptID, &ruleID, &e.Kind, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		if ruleID.Valid {
			id := ruleID.Int64
			e.RuleID = &id
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
