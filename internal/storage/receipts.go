package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Veraticus/receipt-sorter/internal/common"
	"github.com/Veraticus/receipt-sorter/internal/model"
)

// ErrReceiptNotFound is returned when a receipt is not found.
var ErrReceiptNotFound = fmt.Errorf("receipt %w", common.ErrNotFound)

const receiptColumns = `id, hash, status, rule_id, category, sub_category, expense_type, department, project,
	archive_path, archive_number, created_at, classified_at`

// attributeColumns maps directive attributes onto receipt columns.
var attributeColumns = []struct {
	attr   model.Attribute
	column string
}{
	{model.AttrCategory, "category"},
	{model.AttrSubCategory, "sub_category"},
	{model.AttrExpenseType, "expense_type"},
	{model.AttrDepartment, "department"},
	{model.AttrProject, "project"},
}

// SaveReceipt stores a new receipt with its field bag. The content hash is
// computed here; saving the same fields twice returns common.ErrDuplicateEntry.
func (s *SQLiteStorage) SaveReceipt(ctx context.Context, receipt *model.Receipt) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateReceipt(receipt); err != nil {
		return err
	}

	receipt.Hash = receipt.GenerateHash()
	if receipt.ID == "" {
		receipt.ID = "rcpt_" + receipt.Hash[:16]
	}
	if receipt.Status == "" {
		receipt.Status = model.StatusPending
	}
	receipt.CreatedAt = s.now()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		attrs := receipt.Attributes
		_, err := tx.ExecContext(ctx, `
			INSERT INTO receipts (id, hash, status, rule_id, category, sub_category, expense_type,
				department, project, archive_path, archive_number, created_at, classified_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			receipt.ID, receipt.Hash, string(receipt.Status), receipt.RuleID,
			attrs[model.AttrCategory], attrs[model.AttrSubCategory], attrs[model.AttrExpenseType],
			attrs[model.AttrDepartment], attrs[model.AttrProject],
			receipt.ArchivePath, receipt.ArchiveNumber, receipt.CreatedAt, receipt.ClassifiedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save receipt: %w", mapSQLiteError(err))
		}

		for f, v := range receipt.Fields {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO receipt_fields (receipt_id, field, kind, value) VALUES (?, ?, ?, ?)`,
				receipt.ID, string(f), string(v.Kind()), v.Text(),
			); err != nil {
				return fmt.Errorf("failed to save field %s: %w", f, err)
			}
		}
		return replaceTags(ctx, tx, receipt.ID, receipt.Tags)
	})
}

// GetReceipt retrieves a receipt by ID.
func (s *SQLiteStorage) GetReceipt(ctx context.Context, id string) (*model.Receipt, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	found, err := loadReceipts(ctx, s.db, `SELECT `+receiptColumns+` FROM receipts WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrReceiptNotFound, id)
	}
	return &found[0], nil
}

// ListReceipts returns receipts oldest first. An empty status lists every
// receipt; limit <= 0 means no limit.
func (s *SQLiteStorage) ListReceipts(ctx context.Context, status model.ClassificationStatus, limit int) ([]model.Receipt, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateStatus(status); err != nil {
		return nil, err
	}

	query := `SELECT ` + receiptColumns + ` FROM receipts`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at ASC, id ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return loadReceipts(ctx, s.db, query, args...)
}

// GetPendingReceipts returns every receipt that has not been classified yet.
func (s *SQLiteStorage) GetPendingReceipts(ctx context.Context) ([]model.Receipt, error) {
	return s.ListReceipts(ctx, model.StatusPending, 0)
}

// ApplyClassification persists a directive produced by the engine. A nil
// ruleID marks the receipt UNCLASSIFIED; otherwise it is CLASSIFIED_BY_RULE.
// archiveNumber is stored when non-empty. Only PENDING receipts are written;
// anything else returns common.ErrNotPending and is left untouched.
func (s *SQLiteStorage) ApplyClassification(ctx context.Context, receiptID string, ruleID *int64, directive model.Directive, archiveNumber string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(receiptID, "receiptID"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		found, err := loadReceipts(ctx, tx, `SELECT `+receiptColumns+` FROM receipts WHERE id = ?`, receiptID)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return fmt.Errorf("%w: %s", ErrReceiptNotFound, receiptID)
		}
		receipt := found[0]
		if receipt.Status != model.StatusPending {
			return fmt.Errorf("%w: %s is %s", common.ErrNotPending, receiptID, receipt.Status)
		}

		receipt.Apply(directive)
		if archiveNumber != "" {
			receipt.ArchiveNumber = archiveNumber
		}
		receipt.RuleID = ruleID
		receipt.Status = model.StatusUnclassified
		if ruleID != nil {
			receipt.Status = model.StatusClassifiedByRule
		}
		now := s.now()
		receipt.ClassifiedAt = &now

		if err := updateReceiptRow(ctx, tx, &receipt); err != nil {
			return err
		}
		return replaceTags(ctx, tx, receipt.ID, receipt.Tags)
	})
}

// UpdateReceiptAttributes records a manual correction and marks the receipt USER_MODIFIED.
func (s *SQLiteStorage) UpdateReceiptAttributes(ctx context.Context, receiptID string, attrs map[model.Attribute]string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(attrs) == 0 {
		return fmt.Errorf("%w: attributes", ErrEmptySlice)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		found, err := loadReceipts(ctx, tx, `SELECT `+receiptColumns+` FROM receipts WHERE id = ?`, receiptID)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return fmt.Errorf("%w: %s", ErrReceiptNotFound, receiptID)
		}
		receipt := found[0]

		d := model.NewDirective()
		for attr, v := range attrs {
			d.Assign(attr, v)
		}
		receipt.Apply(d)
		receipt.Status = model.StatusUserModified
		now := s.now()
		receipt.ClassifiedAt = &now
		return updateReceiptRow(ctx, tx, &receipt)
	})
}

func updateReceiptRow(ctx context.Context, tx *sql.Tx, r *model.Receipt) error {
	attrs := r.Attributes
	_, err := tx.ExecContext(ctx, `
		UPDATE receipts SET status = ?, rule_id = ?, category = ?, sub_category = ?, expense_type = ?,
			department = ?, project = ?, archive_path = ?, archive_number = ?, classified_at = ?
		WHERE id = ?`,
		string(r.Status), r.RuleID,
		attrs[model.AttrCategory], attrs[model.AttrSubCategory], attrs[model.AttrExpenseType],
		attrs[model.AttrDepartment], attrs[model.AttrProject],
		r.ArchivePath, r.ArchiveNumber, r.ClassifiedAt, r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update receipt %s: %w", r.ID, mapSQLiteError(err))
	}
	return nil
}

func replaceTags(ctx context.Context, tx *sql.Tx, receiptID string, tags []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM receipt_tags WHERE receipt_id = ?`, receiptID); err != nil {
		return fmt.Errorf("failed to clear tags: %w", err)
	}
	for _, tag := range tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO receipt_tags (receipt_id, tag) VALUES (?, ?)`, receiptID, tag,
		); err != nil {
			return fmt.Errorf("failed to save tag %q: %w", tag, err)
		}
	}
	return nil
}

func loadReceipts(ctx context.Context, q queryer, query string, args ...any) ([]model.Receipt, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []model.Receipt
	for rows.Next() {
		var (
			r            model.Receipt
			status       string
			ruleID       sql.NullInt64
			classifiedAt sql.NullTime
			values       = make([]string, len(attributeColumns))
		)
		if err := rows.Scan(&r.ID, &r.Hash, &status, &ruleID,
			&values[0], &values[1], &values[2], &values[3], &values[4],
			&r.ArchivePath, &r.ArchiveNumber, &r.CreatedAt, &classifiedAt); err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		r.Status = model.ClassificationStatus(status)
		if ruleID.Valid {
			id := ruleID.Int64
			r.RuleID = &id
		}
		if classifiedAt.Valid {
			t := classifiedAt.Time
			r.ClassifiedAt = &t
		}
		for i, col := range attributeColumns {
			if values[i] == "" {
				continue
			}
			if r.Attributes == nil {
				r.Attributes = make(map[model.Attribute]string)
			}
			r.Attributes[col.attr] = values[i]
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating receipts: %w", err)
	}

	for i := range result {
		if err := loadReceiptDetail(ctx, q, &result[i]); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// loadReceiptDetail attaches fields and tags.
func loadReceiptDetail(ctx context.Context, q queryer, r *model.Receipt) error {
	rows, err := q.QueryContext(ctx, `SELECT field, kind, value FROM receipt_fields WHERE receipt_id = ?`, r.ID)
	if err != nil {
		return fmt.Errorf("failed to query receipt fields: %w", err)
	}
	r.Fields = make(model.FieldBag)
	for rows.Next() {
		var field, kind, text string
		if err := rows.Scan(&field, &kind, &text); err != nil {
			_ = rows.Close()
			return fmt.Errorf("failed to scan receipt field: %w", err)
		}
		f, err := model.ParseField(field)
		if err != nil {
			_ = rows.Close()
			return fmt.Errorf("%w: receipt %s: %w", common.ErrDatabaseCorrupted, r.ID, err)
		}
		v, err := model.ParseValue(model.ValueKind(kind), text)
		if err != nil {
			_ = rows.Close()
			return fmt.Errorf("%w: receipt %s field %s: %w", common.ErrDatabaseCorrupted, r.ID, f, err)
		}
		r.Fields[f] = v
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("error iterating receipt fields: %w", err)
	}
	_ = rows.Close()

	tagRows, err := q.QueryContext(ctx, `SELECT tag FROM receipt_tags WHERE receipt_id = ? ORDER BY tag`, r.ID)
	if err != nil {
		return fmt.Errorf("failed to query receipt tags: %w", err)
	}
	defer func() { _ = tagRows.Close() }()
	for tagRows.Next() {
		var tag string
		if err := tagRows.Scan(&tag); err != nil {
			return fmt.Errorf("failed to scan receipt tag: %w", err)
		}
		r.Tags = append(r.Tags, tag)
	}
	return tagRows.Err()
}

// CountReceiptsByStatus returns receipt counts keyed by status.
func (s *SQLiteStorage) CountReceiptsByStatus(ctx context.Context) (map[model.ClassificationStatus]int, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM receipts GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count receipts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[model.ClassificationStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[model.ClassificationStatus(status)] = n
	}
	return counts, rows.Err()
}
