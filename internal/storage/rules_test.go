package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/receipt-sorter/internal/common"
	"github.com/Veraticus/receipt-sorter/internal/model"
	"github.com/Veraticus/receipt-sorter/internal/rules"
)

func TestCreateRule_RoundTripsOrder(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	rule := &model.Rule{
		Name:        "Business dinners",
		Description: "Meals over 100 at restaurants",
		Priority:    20,
		Enabled:     true,
		Conditions: []model.Condition{
			{Field: model.FieldSellerName, Operator: model.OpContains, Value: "Restaurant", Logical: model.LogicalOr},
			{Field: model.FieldRemarks, Operator: model.OpContains, Value: "dinner", Logical: model.LogicalAnd},
			{Field: model.FieldAmount, Operator: model.OpGreaterThan, Value: "100"},
		},
		Actions: []model.Action{
			{Type: model.ActionSetCategory, Value: "EXPENSE"},
			{Type: model.ActionSetSubCategory, Value: "MEAL"},
			{Type: model.ActionAddTag, Value: "client"},
			{Type: model.ActionGenerateArchiveNumber},
		},
	}
	require.NoError(t, store.CreateRule(ctx, rule))
	assert.NotZero(t, rule.ID)
	assert.Equal(t, int64(1), rule.Sequence)
	assert.False(t, rule.CreatedAt.IsZero())

	got, err := store.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, rule.Name, got.Name)
	assert.Equal(t, rule.Description, got.Description)
	assert.Equal(t, rule.Priority, got.Priority)
	assert.True(t, got.Enabled)
	assert.Equal(t, rule.Conditions, got.Conditions)
	assert.Equal(t, rule.Actions, got.Actions)
}

func TestCreateRule_AssignsIncreasingSequence(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	a, b := testRule("A", 1), testRule("B", 1)
	require.NoError(t, store.CreateRule(ctx, a))
	require.NoError(t, store.CreateRule(ctx, b))
	assert.Less(t, a.Sequence, b.Sequence)
}

func TestCreateRule_Invalid(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	rule := testRule("bad", 1)
	rule.Conditions[0].Operator = model.OpGreaterThan // not valid on text

	err := store.CreateRule(ctx, rule)
	assert.ErrorIs(t, err, common.ErrInvalidRule)

	all, err := store.ListRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	assert.ErrorIs(t, store.CreateRule(ctx, nil), ErrNilParameter)
}

func TestGetRule_NotFound(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	_, err := store.GetRule(context.Background(), 42)
	assert.ErrorIs(t, err, ErrRuleNotFound)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestListRules_EvaluationOrder(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	for _, r := range []*model.Rule{testRule("A", 10), testRule("B", 20), testRule("C", 10)} {
		require.NoError(t, store.CreateRule(ctx, r))
	}
	disabled := testRule("D", 99)
	disabled.Enabled = false
	require.NoError(t, store.CreateRule(ctx, disabled))

	all, err := store.ListRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"D", "B", "A", "C"}, ruleNames(all))

	enabled, err := store.GetEnabledRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "C"}, ruleNames(enabled))
}

func TestUpdateRule(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	rule := testRule("Original", 5)
	require.NoError(t, store.CreateRule(ctx, rule))

	rule.Name = "Renamed"
	rule.Conditions = []model.Condition{
		{Field: model.FieldAmount, Operator: model.OpLessOrEqual, Value: "50", Logical: model.LogicalAnd},
		{Field: model.FieldDate, Operator: model.OpGreaterOrEqual, Value: "2024-01-01"},
	}
	rule.Actions = []model.Action{{Type: model.ActionAddTag, Value: "small"}}
	rule.IsSystemRule = true // ignored by updates
	require.NoError(t, store.UpdateRule(ctx, rule))

	got, err := store.GetRule(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, rule.Conditions, got.Conditions)
	assert.Equal(t, rule.Actions, got.Actions)
	assert.False(t, got.IsSystemRule)
	assert.Equal(t, rule.Sequence, got.Sequence)

	missing := testRule("Missing", 1)
	missing.ID = 999
	assert.ErrorIs(t, store.UpdateRule(ctx, missing), ErrRuleNotFound)
}

func TestSetRuleEnabled(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	rule := testRule("Toggle", 1)
	require.NoError(t, store.CreateRule(ctx, rule))
	require.NoError(t, store.SetRuleEnabled(ctx, rule.ID, false))

	enabled, err := store.GetEnabledRules(ctx)
	require.NoError(t, err)
	assert.Empty(t, enabled)

	assert.ErrorIs(t, store.SetRuleEnabled(ctx, 999, true), ErrRuleNotFound)
}

func TestDeleteRule(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	rule := testRule("Doomed", 1)
	require.NoError(t, store.CreateRule(ctx, rule))
	require.NoError(t, store.DeleteRule(ctx, rule.ID))

	_, err := store.GetRule(ctx, rule.ID)
	assert.ErrorIs(t, err, ErrRuleNotFound)

	// Child rows go with the rule.
	var count int
	require.NoError(t, store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rule_conditions WHERE rule_id = ?`, rule.ID).Scan(&count))
	assert.Zero(t, count)

	assert.ErrorIs(t, store.DeleteRule(ctx, rule.ID), ErrRuleNotFound)
}

func TestDeleteRule_SystemRule(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.SeedSystemRules(ctx)
	require.NoError(t, err)

	all, err := store.ListRules(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, all)

	err = store.DeleteRule(ctx, all[0].ID)
	assert.ErrorIs(t, err, common.ErrSystemRule)

	// Disabling is still allowed.
	assert.NoError(t, store.SetRuleEnabled(ctx, all[0].ID, false))
}

func TestSeedSystemRules_Idempotent(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	added, err := store.SeedSystemRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(rules.SystemRules()), added)

	added, err = store.SeedSystemRules(ctx)
	require.NoError(t, err)
	assert.Zero(t, added)

	all, err := store.ListRules(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(rules.SystemRules()))
	for _, r := range all {
		assert.True(t, r.IsSystemRule, r.Name)
	}
}

func TestReorderRules(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	a, b, c := testRule("A", 0), testRule("B", 0), testRule("C", 0)
	for _, r := range []*model.Rule{a, b, c} {
		require.NoError(t, store.CreateRule(ctx, r))
	}

	require.NoError(t, store.ReorderRules(ctx, []int64{c.ID, a.ID, b.ID}))

	all, err := store.ListRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, ruleNames(all))
	assert.Equal(t, 3*PriorityStep, all[0].Priority)
	assert.Equal(t, PriorityStep, all[2].Priority)

	t.Run("missing rule", func(t *testing.T) {
		err := store.ReorderRules(ctx, []int64{a.ID, b.ID})
		assert.ErrorIs(t, err, common.ErrBadOrdering)
	})

	t.Run("duplicate id", func(t *testing.T) {
		err := store.ReorderRules(ctx, []int64{a.ID, a.ID, b.ID})
		assert.ErrorIs(t, err, common.ErrBadOrdering)
	})

	t.Run("unknown id", func(t *testing.T) {
		err := store.ReorderRules(ctx, []int64{a.ID, b.ID, 999})
		assert.ErrorIs(t, err, ErrRuleNotFound)

		// The failed reorder rolled back.
		all, err := store.ListRules(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"C", "A", "B"}, ruleNames(all))
	})
}

func TestMoveRule(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	a, b, c := testRule("A", 30), testRule("B", 20), testRule("C", 10)
	for _, r := range []*model.Rule{a, b, c} {
		require.NoError(t, store.CreateRule(ctx, r))
	}

	require.NoError(t, store.MoveRule(ctx, c.ID, 0))
	all, err := store.ListRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, ruleNames(all))

	// Positions past the end clamp to last.
	require.NoError(t, store.MoveRule(ctx, c.ID, 100))
	all, err = store.ListRules(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, ruleNames(all))

	assert.ErrorIs(t, store.MoveRule(ctx, 999, 0), ErrRuleNotFound)
}

func TestLoadRules_CorruptField(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	rule := testRule("A", 1)
	require.NoError(t, store.CreateRule(ctx, rule))
	_, err := store.db.ExecContext(ctx, `UPDATE rule_conditions SET field = 'colour' WHERE rule_id = ?`, rule.ID)
	require.NoError(t, err)

	_, err = store.GetRule(ctx, rule.ID)
	assert.ErrorIs(t, err, common.ErrDatabaseCorrupted)
}

func ruleNames(rs []model.Rule) []string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = r.Name
	}
	return names
}
