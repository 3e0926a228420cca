// Package rules evaluates classification rules against receipt field bags and
// turns the winning rule's actions into a mutation directive.
package rules

import (
	"context"
	"fmt"

	"github.com/Veraticus/receipt-sorter/internal/model"
)

// ArchiveNumberGenerator hands out archive numbers. Implementations must be
// unique and monotonically increasing per (period, category) key and must
// serialize their own writers; the engine holds no lock.
type ArchiveNumberGenerator interface {
	Next(ctx context.Context, periodKey, categoryCode string) (string, error)
}

// Report collects diagnostics for one evaluation call.
type Report struct {
	items []model.Diagnostic
}

func (r *Report) add(ruleID int64, kind model.DiagnosticKind, format string, args ...any) {
	if r == nil {
		return
	}
	r.items = append(r.items, model.Diagnostic{
		RuleID:  ruleID,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	})
}

// Diagnostics returns the collected diagnostics in the order they were raised.
func (r *Report) Diagnostics() []model.Diagnostic {
	if r == nil {
		return nil
	}
	return append([]model.Diagnostic(nil), r.items...)
}

// since returns the diagnostics raised after the first n.
func (r *Report) since(n int) []model.Diagnostic {
	if r == nil || n >= len(r.items) {
		return nil
	}
	return append([]model.Diagnostic(nil), r.items[n:]...)
}

// Len returns the number of diagnostics collected.
func (r *Report) Len() int {
	if r == nil {
		return 0
	}
	return len(r.items)
}
