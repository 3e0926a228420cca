package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/receipt-sorter/internal/common"
	"github.com/Veraticus/receipt-sorter/internal/model"
)

// Validate checks a rule at authoring time. Every problem is reported, joined
// into one error wrapping common.ErrInvalidRule.
func Validate(rule model.Rule) error {
	var errs []error

	if strings.TrimSpace(rule.Name) == "" {
		errs = append(errs, fmt.Errorf("name is required"))
	}
	if len(rule.Conditions) == 0 {
		errs = append(errs, fmt.Errorf("at least one condition is required"))
	}

	for i, c := range rule.Conditions {
		if err := validateCondition(c, i == len(rule.Conditions)-1); err != nil {
			errs = append(errs, fmt.Errorf("condition %d: %w", i+1, err))
		}
	}

	for i, a := range rule.Actions {
		if !a.Type.Valid() {
			errs = append(errs, fmt.Errorf("action %d: unknown action type %q", i+1, a.Type))
			continue
		}
		if _, err := normalizeActionValue(a); err != nil {
			errs = append(errs, fmt.Errorf("action %d (%s): %w", i+1, a.Type, err))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w %q: %w", common.ErrInvalidRule, rule.Name, errors.Join(errs...))
}

func validateCondition(c model.Condition, last bool) error {
	if !c.Field.Valid() {
		return fmt.Errorf("unknown field %q", c.Field)
	}
	if !c.Operator.Valid() {
		return fmt.Errorf("unknown operator %q", c.Operator)
	}
	kind := c.Field.Kind()
	if !c.Operator.SupportsKind(kind) {
		return fmt.Errorf("operator %s is not valid on %s field %s", c.Operator, kind, c.Field)
	}
	if !last && !c.Logical.Valid() {
		return fmt.Errorf("logical operator must be AND or OR, got %q", c.Logical)
	}
	if last && c.Logical != "" && !c.Logical.Valid() {
		return fmt.Errorf("logical operator must be AND or OR, got %q", c.Logical)
	}

	switch {
	case c.Operator == model.OpRegex:
		if err := common.ValidateRegex(c.Value); err != nil {
			return fmt.Errorf("invalid pattern: %w", err)
		}
	case c.Operator == model.OpInList:
		if strings.TrimSpace(c.Value) == "" {
			return fmt.Errorf("list must not be empty")
		}
		if kind == model.KindNumber {
			for _, item := range strings.Split(c.Value, ",") {
				if _, err := model.ParseDecimal(item); err != nil {
					return err
				}
			}
		}
	case kind == model.KindNumber:
		if _, err := model.ParseDecimal(c.Value); err != nil {
			return err
		}
	case kind == model.KindDate:
		if _, err := model.ParseDate(c.Value); err != nil {
			return err
		}
	}
	return nil
}
