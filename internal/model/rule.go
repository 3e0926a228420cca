// Package model defines the core data structures for the receipt sorter.
package model

import (
	"time"
)

// Operator is the comparison a condition applies to a field value.
type Operator string

// Condition operators.
const (
	OpEquals         Operator = "EQUALS"
	OpNotEquals      Operator = "NOT_EQUALS"
	OpContains       Operator = "CONTAINS"
	OpNotContains    Operator = "NOT_CONTAINS"
	OpGreaterThan    Operator = "GREATER_THAN"
	OpLessThan       Operator = "LESS_THAN"
	OpGreaterOrEqual Operator = "GREATER_OR_EQUAL"
	OpLessOrEqual    Operator = "LESS_OR_EQUAL"
	OpStartsWith     Operator = "STARTS_WITH"
	OpEndsWith       Operator = "ENDS_WITH"
	OpRegex          Operator = "REGEX"
	OpInList         Operator = "IN_LIST"
)

// AllOperators returns every operator.
func AllOperators() []Operator {
	return []Operator{
		OpEquals, OpNotEquals, OpContains, OpNotContains,
		OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual,
		OpStartsWith, OpEndsWith, OpRegex, OpInList,
	}
}

// Valid reports whether op is a known operator.
func (op Operator) Valid() bool {
	for _, o := range AllOperators() {
		if o == op {
			return true
		}
	}
	return false
}

// IsOrdering reports whether op compares magnitudes.
func (op Operator) IsOrdering() bool {
	switch op {
	case OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual:
		return true
	}
	return false
}

// SupportsKind reports whether op may be used on a field of the given kind.
func (op Operator) SupportsKind(kind FieldKind) bool {
	switch kind {
	case KindText:
		switch op {
		case OpEquals, OpNotEquals, OpContains, OpNotContains,
			OpStartsWith, OpEndsWith, OpRegex, OpInList:
			return true
		}
	case KindNumber:
		switch op {
		case OpEquals, OpNotEquals, OpGreaterThan, OpLessThan,
			OpGreaterOrEqual, OpLessOrEqual, OpInList:
			return true
		}
	case KindDate:
		switch op {
		case OpEquals, OpNotEquals, OpGreaterThan, OpLessThan,
			OpGreaterOrEqual, OpLessOrEqual:
			return true
		}
	}
	return false
}

// LogicalOperator joins a condition to the one that follows it.
type LogicalOperator string

// Logical operators.
const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// Valid reports whether l is AND or OR.
func (l LogicalOperator) Valid() bool {
	return l == LogicalAnd || l == LogicalOr
}

// Condition is a single predicate over one receipt field.
type Condition struct {
	Field    Field           `json:"field" yaml:"field"`
	Operator Operator        `json:"operator" yaml:"operator"`
	Value    string          `json:"value" yaml:"value"`
	Logical  LogicalOperator `json:"logical,omitempty" yaml:"logical,omitempty"` // joins with the next condition
}

// ActionType selects what an action does when its rule wins.
type ActionType string

// Action types.
const (
	ActionSetCategory           ActionType = "SET_CATEGORY"
	ActionSetSubCategory        ActionType = "SET_SUB_CATEGORY"
	ActionSetExpenseType        ActionType = "SET_EXPENSE_TYPE"
	ActionSetDepartment         ActionType = "SET_DEPARTMENT"
	ActionSetProject            ActionType = "SET_PROJECT"
	ActionAddTag                ActionType = "ADD_TAG"
	ActionArchive               ActionType = "ARCHIVE"
	ActionGenerateArchiveNumber ActionType = "GENERATE_ARCHIVE_NUMBER"
)

// AllActionTypes returns every action type.
func AllActionTypes() []ActionType {
	return []ActionType{
		ActionSetCategory, ActionSetSubCategory, ActionSetExpenseType,
		ActionSetDepartment, ActionSetProject, ActionAddTag,
		ActionArchive, ActionGenerateArchiveNumber,
	}
}

// Valid reports whether t is a known action type.
func (t ActionType) Valid() bool {
	for _, a := range AllActionTypes() {
		if a == t {
			return true
		}
	}
	return false
}

// Action is one mutation a rule requests.
type Action struct {
	Type  ActionType `json:"type" yaml:"type"`
	Value string     `json:"value" yaml:"value"`
}

// Rule is a named, prioritized bundle of conditions and actions.
type Rule struct {
	CreatedAt    time.Time   `json:"created_at" yaml:"-"`
	UpdatedAt    time.Time   `json:"updated_at" yaml:"-"`
	Name         string      `json:"name" yaml:"name"`
	Description  string      `json:"description,omitempty" yaml:"description,omitempty"`
	Conditions   []Condition `json:"conditions" yaml:"conditions"`
	Actions      []Action    `json:"actions" yaml:"actions"`
	ID           int64       `json:"id" yaml:"-"`
	Sequence     int64       `json:"sequence" yaml:"-"` // insertion order, breaks priority ties
	Priority     int         `json:"priority" yaml:"priority"`
	Enabled      bool        `json:"enabled" yaml:"enabled"`
	IsSystemRule bool        `json:"is_system_rule" yaml:"system,omitempty"`
}

// Clone returns a deep copy so callers can snapshot a rule set.
func (r Rule) Clone() Rule {
	c := r
	c.Conditions = append([]Condition(nil), r.Conditions...)
	c.Actions = append([]Action(nil), r.Actions...)
	return c
}
