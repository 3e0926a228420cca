package rules

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/receipt-sorter/internal/common"
	"github.com/Veraticus/receipt-sorter/internal/model"
)

// Evaluate tests one condition against a receipt.
//
// A missing field is unknown rather than different, so every operator
// (negated ones included) evaluates to false against it. Values that cannot be
// interpreted (bad numbers, bad dates, bad patterns) also evaluate to false and
// leave a diagnostic on report.
func Evaluate(ruleID int64, cond model.Condition, bag model.FieldBag, report *Report) bool {
	v, ok := Extract(cond.Field, bag)
	if !ok {
		return false
	}
	kind := cond.Field.Kind()

	switch cond.Operator {
	case model.OpEquals:
		eq, valid := equals(ruleID, cond, kind, v, report)
		return valid && eq
	case model.OpNotEquals:
		eq, valid := equals(ruleID, cond, kind, v, report)
		return valid && !eq
	case model.OpContains:
		return strings.Contains(v.Text(), cond.Value)
	case model.OpNotContains:
		return !strings.Contains(v.Text(), cond.Value)
	case model.OpStartsWith:
		return strings.HasPrefix(v.Text(), cond.Value)
	case model.OpEndsWith:
		return strings.HasSuffix(v.Text(), cond.Value)
	case model.OpGreaterThan:
		c, valid := compare(ruleID, cond, kind, v, report)
		return valid && c > 0
	case model.OpLessThan:
		c, valid := compare(ruleID, cond, kind, v, report)
		return valid && c < 0
	case model.OpGreaterOrEqual:
		c, valid := compare(ruleID, cond, kind, v, report)
		return valid && c >= 0
	case model.OpLessOrEqual:
		c, valid := compare(ruleID, cond, kind, v, report)
		return valid && c <= 0
	case model.OpRegex:
		matched, err := common.MatchRegex(cond.Value, v.Text())
		if err != nil {
			report.add(ruleID, model.DiagMalformedPredicate, "invalid pattern %q on %s: %v", cond.Value, cond.Field, err)
			return false
		}
		return matched
	case model.OpInList:
		return inList(ruleID, cond, kind, v, report)
	}

	report.add(ruleID, model.DiagMalformedPredicate, "unknown operator %q on %s", cond.Operator, cond.Field)
	return false
}

// equals compares by the field's kind. valid is false when either side could
// not be interpreted as that kind.
func equals(ruleID int64, cond model.Condition, kind model.FieldKind, v model.Value, report *Report) (eq, valid bool) {
	switch kind {
	case model.KindNumber, model.KindDate:
		c, ok := compare(ruleID, cond, kind, v, report)
		return c == 0, ok
	case model.KindText:
	}
	return v.Text() == cond.Value, true
}

// compare orders the receipt value against the comparison value.
func compare(ruleID int64, cond model.Condition, kind model.FieldKind, v model.Value, report *Report) (int, bool) {
	switch kind {
	case model.KindNumber:
		want, err := model.ParseDecimal(cond.Value)
		if err != nil {
			report.add(ruleID, model.DiagMalformedPredicate, "%s %s: %v", cond.Field, cond.Operator, err)
			return 0, false
		}
		got, ok := v.Number()
		if !ok {
			report.add(ruleID, model.DiagMalformedPredicate, "%s: receipt value %q is not a number", cond.Field, v.Text())
			return 0, false
		}
		return got.Cmp(want), true
	case model.KindDate:
		want, err := model.ParseDate(cond.Value)
		if err != nil {
			report.add(ruleID, model.DiagMalformedPredicate, "%s %s: %v", cond.Field, cond.Operator, err)
			return 0, false
		}
		got, ok := v.Date()
		if !ok {
			report.add(ruleID, model.DiagMalformedPredicate, "%s: receipt value %q is not a date", cond.Field, v.Text())
			return 0, false
		}
		return got.Compare(want), true
	case model.KindText:
	}
	report.add(ruleID, model.DiagMalformedPredicate, "operator %s cannot order text field %s", cond.Operator, cond.Field)
	return 0, false
}

// inList tests membership in a comma separated literal list. Elements are
// trimmed; numeric fields compare as decimals so "12.5" matches "12.50".
// Unparsable numbers on either side are reported and never match.
func inList(ruleID int64, cond model.Condition, kind model.FieldKind, v model.Value, report *Report) bool {
	var got decimal.Decimal
	if kind == model.KindNumber {
		n, ok := v.Number()
		if !ok {
			report.add(ruleID, model.DiagMalformedPredicate, "%s: receipt value %q is not a number", cond.Field, v.Text())
			return false
		}
		got = n
	}

	for _, item := range strings.Split(cond.Value, ",") {
		item = strings.TrimSpace(item)
		if kind == model.KindNumber {
			want, err := model.ParseDecimal(item)
			if err != nil {
				report.add(ruleID, model.DiagMalformedPredicate, "%s %s: %v", cond.Field, cond.Operator, err)
				continue
			}
			if got.Equal(want) {
				return true
			}
			continue
		}
		if v.Text() == item {
			return true
		}
	}
	return false
}
