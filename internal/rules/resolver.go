package rules

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/Veraticus/receipt-sorter/internal/model"
)

// Order returns the enabled rules in evaluation order: priority descending,
// then insertion sequence ascending. The input slice is not modified.
func Order(rules []model.Rule) []model.Rule {
	enabled := make([]model.Rule, 0, len(rules))
	for _, r := range rules {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	slices.SortStableFunc(enabled, func(a, b model.Rule) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.Sequence, b.Sequence)
	})
	return enabled
}

// Resolve returns the first enabled rule, in evaluation order, whose
// conditions match the receipt. Only one rule ever wins. Malformed rules are
// skipped with a diagnostic so they cannot block the rest of the pass.
func Resolve(rules []model.Rule, bag model.FieldBag, report *Report) (model.Rule, bool) {
	for _, rule := range Order(rules) {
		if err := checkEvaluable(rule); err != nil {
			report.add(rule.ID, model.DiagMalformedRule, "skipped: %v", err)
			continue
		}
		if Combine(rule.ID, rule.Conditions, bag, report) {
			return rule, true
		}
	}
	return model.Rule{}, false
}

// checkEvaluable catches malformed rules that slipped past authoring-time
// validation. Unknown fields are not reported here: Field.Kind panics on them.
func checkEvaluable(rule model.Rule) error {
	if len(rule.Conditions) == 0 {
		return fmt.Errorf("rule has no conditions")
	}
	for i, c := range rule.Conditions {
		kind := c.Field.Kind()
		if !c.Operator.Valid() {
			return fmt.Errorf("condition %d: unknown operator %q", i+1, c.Operator)
		}
		if !c.Operator.SupportsKind(kind) {
			return fmt.Errorf("condition %d: operator %s not valid on %s field %s", i+1, c.Operator, kind, c.Field)
		}
	}
	return nil
}
