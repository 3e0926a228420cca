package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/receipt-sorter/internal/model"
)

func rule(id int64, priority int, conds []model.Condition, actions ...model.Action) model.Rule {
	return model.Rule{
		ID:         id,
		Sequence:   id,
		Name:       "rule",
		Priority:   priority,
		Enabled:    true,
		Conditions: conds,
		Actions:    actions,
	}
}

func TestOrder(t *testing.T) {
	disabled := rule(4, 100, chain("T"))
	disabled.Enabled = false
	in := []model.Rule{
		rule(3, 10, chain("T")),
		rule(1, 10, chain("T")),
		rule(2, 20, chain("T")),
		disabled,
	}

	out := Order(in)

	ids := make([]int64, len(out))
	for i, r := range out {
		ids[i] = r.ID
	}
	assert.Equal(t, []int64{2, 1, 3}, ids)
	assert.Equal(t, int64(3), in[0].ID, "input is not reordered")
}

func TestResolve_FirstMatchWins(t *testing.T) {
	bag := bagOf(t, map[string]string{"receipt_type": "TAXI"})
	rules := []model.Rule{
		rule(1, 10, chain("T")),
		rule(2, 50, chain("F")),
		rule(3, 10, chain("T")),
		rule(4, 30, chain("T")),
	}

	got, ok := Resolve(rules, bag, &Report{})
	require.True(t, ok)
	assert.Equal(t, int64(4), got.ID)
}

func TestResolve_TieBrokenByInsertionOrder(t *testing.T) {
	bag := bagOf(t, map[string]string{"receipt_type": "TAXI"})
	rules := []model.Rule{rule(9, 10, chain("T")), rule(5, 10, chain("T"))}

	got, ok := Resolve(rules, bag, &Report{})
	require.True(t, ok)
	assert.Equal(t, int64(5), got.ID)
}

func TestResolve_NoMatch(t *testing.T) {
	bag := bagOf(t, map[string]string{"receipt_type": "TAXI"})

	_, ok := Resolve([]model.Rule{rule(1, 10, chain("F"))}, bag, &Report{})
	assert.False(t, ok)

	_, ok = Resolve(nil, bag, &Report{})
	assert.False(t, ok)
}

func TestResolve_DisabledRulesNeverWin(t *testing.T) {
	bag := bagOf(t, map[string]string{"receipt_type": "TAXI"})
	r := rule(1, 10, chain("T"))
	r.Enabled = false

	_, ok := Resolve([]model.Rule{r}, bag, &Report{})
	assert.False(t, ok)
}

func TestResolve_SkipsMalformedRules(t *testing.T) {
	bag := bagOf(t, map[string]string{"receipt_type": "TAXI", "seller_name": "Cab"})
	bad := rule(1, 100, []model.Condition{cond(model.FieldSellerName, model.OpGreaterThan, "A")})
	empty := rule(2, 90, nil)
	good := rule(3, 10, chain("T"))

	report := &Report{}
	got, ok := Resolve([]model.Rule{bad, empty, good}, bag, report)
	require.True(t, ok)
	assert.Equal(t, int64(3), got.ID)

	diags := report.Diagnostics()
	require.Len(t, diags, 2)
	assert.Equal(t, model.DiagMalformedRule, diags[0].Kind)
	assert.Equal(t, int64(1), diags[0].RuleID)
	assert.Equal(t, int64(2), diags[1].RuleID)
}

func TestResolve_PriorityThenInsertionOrder(t *testing.T) {
	a := rule(1, 5, chain("T"))
	a.Name = "A"
	b := rule(2, 5, chain("T"))
	b.Name = "B"
	c := rule(3, 10, []model.Condition{cond(model.FieldSellerName, model.OpEquals, "Airport Cab")})
	c.Name = "C"
	rules := []model.Rule{a, b, c}

	got, ok := Resolve(rules, bagOf(t, map[string]string{"receipt_type": "TAXI", "seller_name": "Airport Cab"}), &Report{})
	require.True(t, ok)
	assert.Equal(t, "C", got.Name)

	got, ok = Resolve(rules, bagOf(t, map[string]string{"receipt_type": "TAXI", "seller_name": "City Cab"}), &Report{})
	require.True(t, ok)
	assert.Equal(t, "A", got.Name)
}

func TestResolve_InvalidRegexDoesNotBlockLaterRules(t *testing.T) {
	bag := bagOf(t, map[string]string{"receipt_type": "TAXI", "seller_name": "City Cab"})
	broken := rule(2, 50, []model.Condition{cond(model.FieldSellerName, model.OpRegex, "(Cab")})
	fallback := rule(1, 10, chain("T"))

	report := &Report{}
	got, ok := Resolve([]model.Rule{broken, fallback}, bag, report)
	require.True(t, ok)
	assert.Equal(t, int64(1), got.ID)

	require.Equal(t, 1, report.Len())
	d := report.Diagnostics()[0]
	assert.Equal(t, int64(2), d.RuleID)
	assert.Equal(t, model.DiagMalformedPredicate, d.Kind)
}
