package rules

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/Veraticus/receipt-sorter/internal/model"
)

var archiveCodePattern = regexp.MustCompile(`^[A-Z0-9]{1,8}$`)

// Apply folds a rule's actions, in declared order, into one directive. Later
// actions overwrite earlier ones for single-valued attributes, tags are a set
// union, and archive / archive-number actions become side-effect requests for
// the caller. An action with an invalid value is reported and left out; the
// remaining actions still apply. Applying the same list twice yields the same
// directive. The directive carries only the diagnostics raised here.
func Apply(ruleID int64, actions []model.Action, report *Report) model.Directive {
	start := report.Len()
	d := model.NewDirective()
	for i, a := range actions {
		value, err := normalizeActionValue(a)
		if err != nil {
			report.add(ruleID, model.DiagMalformedAction, "action %d (%s): %v", i+1, a.Type, err)
			continue
		}

		switch a.Type {
		case model.ActionSetCategory:
			d.Assign(model.AttrCategory, value)
		case model.ActionSetSubCategory:
			d.Assign(model.AttrSubCategory, value)
		case model.ActionSetExpenseType:
			d.Assign(model.AttrExpenseType, value)
		case model.ActionSetDepartment:
			d.Assign(model.AttrDepartment, value)
		case model.ActionSetProject:
			d.Assign(model.AttrProject, value)
		case model.ActionAddTag:
			d.AddTag(value)
		case model.ActionArchive:
			d.Request(model.SideEffectArchive, value)
		case model.ActionGenerateArchiveNumber:
			d.Request(model.SideEffectGenerateArchiveNumber, value)
		}
	}
	d.Diagnostics = report.since(start)
	return d
}

// normalizeActionValue checks an action's payload against its type and
// returns the form stored in the directive.
func normalizeActionValue(a model.Action) (string, error) {
	value := strings.TrimSpace(a.Value)

	switch a.Type {
	case model.ActionSetCategory:
		c, err := model.ParseCategory(value)
		return string(c), err
	case model.ActionSetSubCategory:
		sc, err := model.ParseSubCategory(value)
		return string(sc), err
	case model.ActionSetExpenseType, model.ActionSetDepartment, model.ActionSetProject:
		if value == "" {
			return "", fmt.Errorf("value is required")
		}
		return value, nil
	case model.ActionAddTag:
		if value == "" {
			return "", fmt.Errorf("tag is required")
		}
		if strings.Contains(value, ",") {
			return "", fmt.Errorf("tag %q must not contain commas", value)
		}
		return value, nil
	case model.ActionArchive:
		return cleanArchivePath(value)
	case model.ActionGenerateArchiveNumber:
		if value == "" {
			return "", nil
		}
		if c, err := model.ParseCategory(value); err == nil {
			return c.Code(), nil
		}
		if !archiveCodePattern.MatchString(value) {
			return "", fmt.Errorf("archive code %q must be a category or 1-8 upper-case letters/digits", value)
		}
		return value, nil
	}
	return "", fmt.Errorf("unknown action type %q", a.Type)
}

// cleanArchivePath keeps archive paths relative to the archive root.
func cleanArchivePath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("archive path is required")
	}
	p = strings.ReplaceAll(p, `\`, "/")
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("archive path %q must be relative", p)
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("archive path %q escapes the archive root", p)
	}
	return clean, nil
}
