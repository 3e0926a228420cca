package model

import (
	"fmt"
	"sort"
)

// Attribute is a single-valued classification attribute a directive may assign.
type Attribute string

// Assignable attributes.
const (
	AttrCategory    Attribute = "category"
	AttrSubCategory Attribute = "sub_category"
	AttrExpenseType Attribute = "expense_type"
	AttrDepartment  Attribute = "department"
	AttrProject     Attribute = "project"
)

// AllAttributes returns the assignable attributes in display order.
func AllAttributes() []Attribute {
	return []Attribute{AttrCategory, AttrSubCategory, AttrExpenseType, AttrDepartment, AttrProject}
}

// ParseAttribute validates an attribute name.
func ParseAttribute(s string) (Attribute, error) {
	for _, a := range AllAttributes() {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown attribute %q", s)
}

// SideEffectKind names a request the caller must carry out after applying a directive.
type SideEffectKind string

// Side-effect kinds.
const (
	SideEffectArchive               SideEffectKind = "archive"
	SideEffectGenerateArchiveNumber SideEffectKind = "generate_archive_number"
)

// SideEffect is a deferred request; Value is the archive path or the category code override.
type SideEffect struct {
	Kind  SideEffectKind `json:"kind"`
	Value string         `json:"value,omitempty"`
}

// Directive describes what should change on a receipt. It never refers to storage.
// Diagnostics are those raised while building the directive; resolution
// diagnostics travel separately with the classification result.
type Directive struct {
	Assignments map[Attribute]string `json:"assignments,omitempty"`
	Tags        []string             `json:"tags,omitempty"` // sorted set
	SideEffects []SideEffect         `json:"side_effects,omitempty"`
	Diagnostics []Diagnostic         `json:"diagnostics,omitempty"`
}

// NewDirective returns an empty directive.
func NewDirective() Directive {
	return Directive{Assignments: make(map[Attribute]string)}
}

// Empty reports whether the directive changes nothing.
func (d Directive) Empty() bool {
	return len(d.Assignments) == 0 && len(d.Tags) == 0 && len(d.SideEffects) == 0
}

// Assign sets a single-valued attribute, replacing any earlier value.
func (d *Directive) Assign(attr Attribute, value string) {
	if d.Assignments == nil {
		d.Assignments = make(map[Attribute]string)
	}
	d.Assignments[attr] = value
}

// AddTag unions tag into the tag set.
func (d *Directive) AddTag(tag string) {
	i := sort.SearchStrings(d.Tags, tag)
	if i < len(d.Tags) && d.Tags[i] == tag {
		return
	}
	d.Tags = append(d.Tags, "")
	copy(d.Tags[i+1:], d.Tags[i:])
	d.Tags[i] = tag
}

// Request records a side effect; a later request of the same kind replaces the earlier one.
func (d *Directive) Request(kind SideEffectKind, value string) {
	for i := range d.SideEffects {
		if d.SideEffects[i].Kind == kind {
			d.SideEffects[i].Value = value
			return
		}
	}
	d.SideEffects = append(d.SideEffects, SideEffect{Kind: kind, Value: value})
}

// SideEffect returns the request of the given kind, if any.
func (d Directive) SideEffect(kind SideEffectKind) (SideEffect, bool) {
	for _, se := range d.SideEffects {
		if se.Kind == kind {
			return se, true
		}
	}
	return SideEffect{}, false
}

// Category returns the assigned category, if any.
func (d Directive) Category() (Category, bool) {
	v, ok := d.Assignments[AttrCategory]
	return Category(v), ok
}

// DiagnosticKind classifies a non-fatal problem found during evaluation.
type DiagnosticKind string

// Diagnostic kinds.
const (
	DiagMalformedRule      DiagnosticKind = "malformed_rule"
	DiagMalformedPredicate DiagnosticKind = "malformed_predicate"
	DiagMalformedAction    DiagnosticKind = "malformed_action"
)

// Diagnostic is an informational (rule, message) pair surfaced by an evaluation call.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Message string         `json:"message"`
	RuleID  int64          `json:"rule_id"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("rule %d: %s: %s", d.RuleID, d.Kind, d.Message)
}
