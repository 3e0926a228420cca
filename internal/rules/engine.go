package rules

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/receipt-sorter/internal/model"
	"golang.org/x/sync/errgroup"
)

// FallbackArchiveCode is used for numbering when neither the action nor the
// directive names a category.
const FallbackArchiveCode = "GEN"

// PeriodLayout formats the period half of an archive number key.
const PeriodLayout = "200601"

// Result is the outcome of classifying one receipt.
type Result struct {
	Err           error
	Rule          *model.Rule
	ReceiptID     string
	ArchiveNumber string
	Directive     model.Directive
	Diagnostics   []model.Diagnostic
}

// Matched reports whether a rule won.
func (r Result) Matched() bool {
	return r.Rule != nil
}

// Engine classifies receipts against a caller-supplied rule snapshot. It keeps
// no state between calls; the only collaborator it touches is the archive
// number generator, and only after the directive is complete.
type Engine struct {
	generator ArchiveNumberGenerator
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithGenerator sets the archive number generator. Without one, numbering
// requests stay on the directive and no number is produced.
func WithGenerator(g ArchiveNumberGenerator) Option {
	return func(e *Engine) { e.generator = g }
}

// WithLogger sets the logger used for skipped rules and bad actions.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock sets the clock used when a receipt has no date.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Classify resolves the winning rule for receipt, builds its directive and,
// when the rule asks for one, draws an archive number. A generator failure is
// returned as the error; the directive is still filled in.
func (e *Engine) Classify(ctx context.Context, rules []model.Rule, receipt model.Receipt) (Result, error) {
	report := &Report{}
	result := Result{ReceiptID: receipt.ID}

	rule, ok := Resolve(rules, receipt.Fields, report)
	if ok {
		result.Rule = &rule
		result.Directive = Apply(rule.ID, rule.Actions, report)
	} else {
		result.Directive = model.NewDirective()
	}
	result.Diagnostics = report.Diagnostics()
	e.logDiagnostics(receipt.ID, result.Diagnostics)

	if !ok || e.generator == nil {
		return result, nil
	}
	req, wants := result.Directive.SideEffect(model.SideEffectGenerateArchiveNumber)
	if !wants {
		return result, nil
	}

	period := e.periodKey(receipt.Fields)
	code := archiveCode(req, result.Directive)
	number, err := e.generator.Next(ctx, period, code)
	if err != nil {
		result.Err = fmt.Errorf("failed to generate archive number for %s/%s: %w", period, code, err)
		return result, result.Err
	}
	result.ArchiveNumber = number

	return result, nil
}

// ClassifyBatch classifies receipts in parallel against one snapshot of rules
// taken before any work starts, so edits made during the batch are not seen.
// Results are returned in input order. Per-receipt generator failures are
// carried on each Result; cancelling ctx stops scheduling the remaining
// receipts and returns the context error.
func (e *Engine) ClassifyBatch(ctx context.Context, rules []model.Rule, receipts []model.Receipt, workers int) ([]Result, error) {
	snapshot := make([]model.Rule, len(rules))
	for i, r := range rules {
		snapshot[i] = r.Clone()
	}
	if workers <= 0 {
		workers = 1
	}

	results := make([]Result, len(receipts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range receipts {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, _ := e.Classify(gctx, snapshot, receipts[i])
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func (e *Engine) periodKey(bag model.FieldBag) string {
	if v, ok := Extract(model.FieldDate, bag); ok {
		if t, ok := v.Date(); ok {
			return t.Format(PeriodLayout)
		}
	}
	return e.now().Format(PeriodLayout)
}

func archiveCode(req model.SideEffect, d model.Directive) string {
	if req.Value != "" {
		return req.Value
	}
	if c, ok := d.Category(); ok && c.Code() != "" {
		return c.Code()
	}
	return FallbackArchiveCode
}

func (e *Engine) logDiagnostics(receiptID string, diags []model.Diagnostic) {
	for _, d := range diags {
		e.logger.Debug("rule diagnostic",
			"receipt_id", receiptID,
			"rule_id", d.RuleID,
			"kind", d.Kind,
			"message", d.Message)
	}
}
