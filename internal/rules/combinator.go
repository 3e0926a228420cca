package rules

import "github.com/Veraticus/receipt-sorter/internal/model"

// Combine folds a rule's conditions left to right. Each condition after the
// first is joined by the logical operator of the condition before it, with no
// precedence: [a AND, b OR, c] is ((a AND b) OR c). The last condition's
// operator joins nothing and is ignored.
//
// A condition is skipped only when the accumulator already decides the step
// (false AND x, true OR x); later conditions are still visited because an OR
// further along can flip the result. An empty list never matches.
func Combine(ruleID int64, conditions []model.Condition, bag model.FieldBag, report *Report) bool {
	if len(conditions) == 0 {
		return false
	}

	acc := Evaluate(ruleID, conditions[0], bag, report)
	for i := 1; i < len(conditions); i++ {
		switch conditions[i-1].Logical {
		case model.LogicalOr:
			if acc {
				continue
			}
			acc = Evaluate(ruleID, conditions[i], bag, report)
		default:
			if !acc {
				continue
			}
			acc = Evaluate(ruleID, conditions[i], bag, report)
		}
	}
	return acc
}
