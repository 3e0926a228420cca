package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/receipt-sorter/internal/common"
	"github.com/Veraticus/receipt-sorter/internal/model"
	"github.com/Veraticus/receipt-sorter/internal/rules"
)

// ErrRuleNotFound is returned when a rule is not found.
var ErrRuleNotFound = fmt.Errorf("rule %w", common.ErrNotFound)

// PriorityStep is the gap left between neighbours when rules are renumbered.
const PriorityStep = 10

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const ruleColumns = `id, name, description, enabled, priority, sequence, is_system_rule, created_at, updated_at`

// CreateRule validates and stores a new rule, assigning its ID and insertion sequence.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if err := rules.Validate(*rule); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.createRuleTx(ctx, tx, rule)
	})
}

func (s *SQLiteStorage) createRuleTx(ctx context.Context, tx *sql.Tx, rule *model.Rule) error {
	var next int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(sequence), 0) + 1 FROM rules`).Scan(&next); err != nil {
		return fmt.Errorf("failed to allocate rule sequence: %w", err)
	}

	now := s.now()
	result, err := tx.ExecContext(ctx, `
		INSERT INTO rules (name, description, enabled, priority, sequence, is_system_rule, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.Name, rule.Description, rule.Enabled, rule.Priority, next, rule.IsSystemRule, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", mapSQLiteError(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get rule ID: %w", err)
	}

	if err := insertRuleBody(ctx, tx, id, rule); err != nil {
		return err
	}

	rule.ID = id
	rule.Sequence = next
	rule.CreatedAt = now
	rule.UpdatedAt = now
	return nil
}

// insertRuleBody writes conditions and actions with their list positions.
func insertRuleBody(ctx context.Context, tx *sql.Tx, ruleID int64, rule *model.Rule) error {
	for i, c := range rule.Conditions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rule_conditions (rule_id, position, field, operator, value, logical_operator)
			VALUES (?, ?, ?, ?, ?, ?)`,
			ruleID, i, string(c.Field), string(c.Operator), c.Value, string(c.Logical),
		); err != nil {
			return fmt.Errorf("failed to save condition %d: %w", i+1, err)
		}
	}
	for i, a := range rule.Actions {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rule_actions (rule_id, position, action_type, value)
			VALUES (?, ?, ?, ?)`,
			ruleID, i, string(a.Type), a.Value,
		); err != nil {
			return fmt.Errorf("failed to save action %d: %w", i+1, err)
		}
	}
	return nil
}

// GetRule retrieves a rule by ID.
func (s *SQLiteStorage) GetRule(ctx context.Context, id int64) (*model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	found, err := s.loadRules(ctx, s.db, `SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %d", ErrRuleNotFound, id)
	}
	return &found[0], nil
}

// ListRules returns every rule, enabled or not, in evaluation order.
func (s *SQLiteStorage) ListRules(ctx context.Context) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.loadRules(ctx, s.db, `SELECT `+ruleColumns+` FROM rules ORDER BY priority DESC, sequence ASC`)
}

// GetEnabledRules returns enabled rules in evaluation order. Callers classifying
// a batch should call this once and reuse the result as their snapshot.
func (s *SQLiteStorage) GetEnabledRules(ctx context.Context) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.loadRules(ctx, s.db, `SELECT `+ruleColumns+` FROM rules WHERE enabled = 1 ORDER BY priority DESC, sequence ASC`)
}

// UpdateRule replaces a rule's attributes, conditions and actions. The
// system flag and insertion sequence are never changed by an update.
func (s *SQLiteStorage) UpdateRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if err := rules.Validate(*rule); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.now()
		result, err := tx.ExecContext(ctx, `
			UPDATE rules SET name = ?, description = ?, enabled = ?, priority = ?, updated_at = ?
			WHERE id = ?`,
			rule.Name, rule.Description, rule.Enabled, rule.Priority, now, rule.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update rule: %w", mapSQLiteError(err))
		}
		if err := requireAffected(result, rule.ID); err != nil {
			return err
		}

		for _, table := range []string{"rule_conditions", "rule_actions"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE rule_id = ?`, rule.ID); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		if err := insertRuleBody(ctx, tx, rule.ID, rule); err != nil {
			return err
		}

		rule.UpdatedAt = now
		return nil
	})
}

// SetRuleEnabled toggles a rule without touching its body.
func (s *SQLiteStorage) SetRuleEnabled(ctx context.Context, id int64, enabled bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx, `UPDATE rules SET enabled = ?, updated_at = ? WHERE id = ?`, enabled, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", mapSQLiteError(err))
	}
	return requireAffected(result, id)
}

// DeleteRule deletes a user rule. System rules return common.ErrSystemRule.
func (s *SQLiteStorage) DeleteRule(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var system bool
		err := tx.QueryRowContext(ctx, `SELECT is_system_rule FROM rules WHERE id = ?`, id).Scan(&system)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %d", ErrRuleNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("failed to get rule: %w", err)
		}
		if system {
			return fmt.Errorf("%w: rule %d", common.ErrSystemRule, id)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete rule: %w", mapSQLiteError(err))
		}
		return nil
	})
}

// ReorderRules renumbers priorities so rules are evaluated in the order of ids.
// ids must name every rule exactly once; the first gets the highest priority
// and neighbours are PriorityStep apart, so no two rules share a priority
// afterwards.
func (s *SQLiteStorage) ReorderRules(ctx context.Context, ids []int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var total int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM rules`).Scan(&total); err != nil {
			return fmt.Errorf("failed to count rules: %w", err)
		}
		if len(ids) != total {
			return fmt.Errorf("%w: got %d ids for %d rules", common.ErrBadOrdering, len(ids), total)
		}

		seen := make(map[int64]bool, len(ids))
		now := s.now()
		for i, id := range ids {
			if seen[id] {
				return fmt.Errorf("%w: rule %d listed twice", common.ErrBadOrdering, id)
			}
			seen[id] = true

			priority := (len(ids) - i) * PriorityStep
			result, err := tx.ExecContext(ctx, `UPDATE rules SET priority = ?, updated_at = ? WHERE id = ?`, priority, now, id)
			if err != nil {
				return fmt.Errorf("failed to renumber rule %d: %w", id, mapSQLiteError(err))
			}
			if err := requireAffected(result, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// MoveRule moves one rule to position (0 = evaluated first) and renumbers the rest.
func (s *SQLiteStorage) MoveRule(ctx context.Context, id int64, position int) error {
	all, err := s.ListRules(ctx)
	if err != nil {
		return err
	}

	ids := make([]int64, 0, len(all))
	found := false
	for _, r := range all {
		if r.ID == id {
			found = true
			continue
		}
		ids = append(ids, r.ID)
	}
	if !found {
		return fmt.Errorf("%w: %d", ErrRuleNotFound, id)
	}

	position = max(0, min(position, len(ids)))
	ids = append(ids[:position], append([]int64{id}, ids[position:]...)...)
	return s.ReorderRules(ctx, ids)
}

// SeedSystemRules inserts any built-in rule that is not present yet and
// returns how many were added. Existing system rules are left as the user
// configured them.
func (s *SQLiteStorage) SeedSystemRules(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	added := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, rule := range rules.SystemRules() {
			var count int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM rules WHERE is_system_rule = 1 AND name = ?`, rule.Name,
			).Scan(&count); err != nil {
				return fmt.Errorf("failed to check system rule %q: %w", rule.Name, err)
			}
			if count > 0 {
				continue
			}
			if err := s.createRuleTx(ctx, tx, &rule); err != nil {
				return fmt.Errorf("failed to seed system rule %q: %w", rule.Name, err)
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// loadRules runs a rule query and attaches ordered conditions and actions.
func (s *SQLiteStorage) loadRules(ctx context.Context, q queryer, query string, args ...any) ([]model.Rule, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []model.Rule
	index := make(map[int64]int)
	for rows.Next() {
		var r model.Rule
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.Enabled, &r.Priority,
			&r.Sequence, &r.IsSystemRule, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		index[r.ID] = len(result)
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	if len(result) == 0 {
		return result, nil
	}

	ids := make([]any, 0, len(result))
	for _, r := range result {
		ids = append(ids, r.ID)
	}
	in := "(" + strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + ")"

	if err := loadConditions(ctx, q, in, ids, result, index); err != nil {
		return nil, err
	}
	if err := loadActions(ctx, q, in, ids, result, index); err != nil {
		return nil, err
	}
	return result, nil
}

func loadConditions(ctx context.Context, q queryer, in string, ids []any, result []model.Rule, index map[int64]int) error {
	rows, err := q.QueryContext(ctx, `
		SELECT rule_id, field, operator, value, logical_operator
		FROM rule_conditions WHERE rule_id IN `+in+`
		ORDER BY rule_id, position`, ids...)
	if err != nil {
		return fmt.Errorf("failed to query conditions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			ruleID                    int64
			field, op, value, logical string
		)
		if err := rows.Scan(&ruleID, &field, &op, &value, &logical); err != nil {
			return fmt.Errorf("failed to scan condition: %w", err)
		}
		f, err := model.ParseField(field)
		if err != nil {
			return fmt.Errorf("%w: rule %d: %w", common.ErrDatabaseCorrupted, ruleID, err)
		}
		i := index[ruleID]
		result[i].Conditions = append(result[i].Conditions, model.Condition{
			Field:    f,
			Operator: model.Operator(op),
			Value:    value,
			Logical:  model.LogicalOperator(logical),
		})
	}
	return rows.Err()
}

func loadActions(ctx context.Context, q queryer, in string, ids []any, result []model.Rule, index map[int64]int) error {
	rows, err := q.QueryContext(ctx, `
		SELECT rule_id, action_type, value
		FROM rule_actions WHERE rule_id IN `+in+`
		ORDER BY rule_id, position`, ids...)
	if err != nil {
		return fmt.Errorf("failed to query actions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			ruleID     int64
			typ, value string
		)
		if err := rows.Scan(&ruleID, &typ, &value); err != nil {
			return fmt.Errorf("failed to scan action: %w", err)
		}
		i := index[ruleID]
		result[i].Actions = append(result[i].Actions, model.Action{
			Type:  model.ActionType(typ),
			Value: value,
		})
	}
	return rows.Err()
}

func requireAffected(result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrRuleNotFound, id)
	}
	return nil
}
