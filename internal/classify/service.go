// Package classify runs the rule engine over stored receipts and persists
// what it decides.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/receipt-sorter/internal/archive"
	"github.com/Veraticus/receipt-sorter/internal/common"
	"github.com/Veraticus/receipt-sorter/internal/metrics"
	"github.com/Veraticus/receipt-sorter/internal/model"
	"github.com/Veraticus/receipt-sorter/internal/rules"
	"github.com/Veraticus/receipt-sorter/internal/service"
)

// DefaultWorkers is the batch parallelism used when none is configured.
const DefaultWorkers = 4

// Store is the persistence the service needs.
type Store interface {
	GetEnabledRules(ctx context.Context) ([]model.Rule, error)
	GetPendingReceipts(ctx context.Context) ([]model.Receipt, error)
	ApplyClassification(ctx context.Context, receiptID string, ruleID *int64, directive model.Directive, archiveNumber string) error
	service.SequenceStore
	service.OperationLog
}

// Options tunes one ClassifyPending run.
type Options struct {
	// Progress is called after each receipt is persisted.
	Progress func(done, total int)
	// Limit caps how many pending receipts are processed; 0 means all.
	Limit int
}

// Summary reports what a run did.
type Summary struct {
	Total          int
	Classified     int
	Unclassified   int
	Failed         int
	Skipped        int
	ArchiveNumbers int
	Diagnostics    int
	Duration       time.Duration
}

// Service classifies pending receipts.
type Service struct {
	store     Store
	engine    *rules.Engine
	preview   *rules.Engine
	metrics   *metrics.Collector
	logger    *slog.Logger
	generator rules.ArchiveNumberGenerator
	now       func() time.Time
	workers   int
}

// Option configures a Service.
type Option func(*Service)

// WithWorkers sets batch parallelism.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithMetrics records outcomes on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Service) { s.metrics = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithGenerator replaces the sequence-store generator.
func WithGenerator(g rules.ArchiveNumberGenerator) Option {
	return func(s *Service) { s.generator = g }
}

// WithClock sets the clock used for period keys of undated receipts.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a classification service. Archive numbers are drawn from
// store unless WithGenerator says otherwise.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  slog.Default(),
		now:     time.Now,
		workers: DefaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.generator == nil {
		s.generator = archive.NewStoreGenerator(store)
	}

	s.engine = rules.NewEngine(
		rules.WithGenerator(s.generator),
		rules.WithLogger(s.logger),
		rules.WithClock(s.now),
	)
	s.preview = rules.NewEngine(
		rules.WithLogger(s.logger),
		rules.WithClock(s.now),
	)
	return s
}

// ClassifyPending classifies every pending receipt against one snapshot of the
// enabled rules and persists each directive. Receipts no rule claims are
// marked UNCLASSIFIED. A receipt whose archive number could not be drawn is
// left pending and counted as failed. common.ErrNoReceipts is returned when
// there is nothing to do.
func (s *Service) ClassifyPending(ctx context.Context, opts Options) (Summary, error) {
	start := time.Now()
	var summary Summary

	snapshot, err := s.store.GetEnabledRules(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to load rules: %w", err)
	}
	s.observeRules(len(snapshot))

	receipts, err := s.store.GetPendingReceipts(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to load pending receipts: %w", err)
	}
	if opts.Limit > 0 && len(receipts) > opts.Limit {
		receipts = receipts[:opts.Limit]
	}
	if len(receipts) == 0 {
		return summary, common.ErrNoReceipts
	}
	summary.Total = len(receipts)

	common.LogInfo("Starting classification", common.Fields{
		"receipts": len(receipts),
		"rules":    len(snapshot),
		"workers":  s.workers,
	})

	results, batchErr := s.engine.ClassifyBatch(ctx, snapshot, receipts, s.workers)

	// Finished results are kept after an interrupt; their archive numbers are
	// already drawn.
	persistCtx := context.WithoutCancel(ctx)
	var persistErrs []error
	for i, res := range results {
		// Receipts never scheduled after cancellation have no ID.
		if res.ReceiptID == "" {
			continue
		}
		if err := s.persist(persistCtx, res, &summary); err != nil {
			persistErrs = append(persistErrs, err)
		}
		if opts.Progress != nil {
			opts.Progress(i+1, len(results))
		}
	}

	summary.Duration = time.Since(start)
	if s.metrics != nil {
		s.metrics.ObserveBatch(summary.Duration)
	}

	common.LogInfo("Classification finished", common.Fields{
		"classified":   summary.Classified,
		"unclassified": summary.Unclassified,
		"failed":       summary.Failed,
		"skipped":      summary.Skipped,
		"duration":     summary.Duration,
	})

	if batchErr != nil {
		return summary, fmt.Errorf("classification interrupted: %w", batchErr)
	}
	if len(persistErrs) > 0 {
		return summary, fmt.Errorf("%w: %w", common.ErrClassificationFailed, errors.Join(persistErrs...))
	}
	return summary, nil
}

func (s *Service) persist(ctx context.Context, res rules.Result, summary *Summary) error {
	entries := diagnosticEntries(res)
	summary.Diagnostics += len(res.Diagnostics)
	for _, d := range res.Diagnostics {
		s.recordDiagnostic(string(d.Kind))
	}

	if res.Err != nil {
		summary.Failed++
		s.recordOutcome(metrics.OutcomeFailed, "")
		entries = append(entries, model.LogEntry{
			ReceiptID: res.ReceiptID,
			RuleID:    ruleIDOf(res),
			Kind:      model.LogKindFailed,
			Message:   res.Err.Error(),
		})
		s.appendLog(ctx, entries)
		common.LogError(res.Err, "Receipt left pending", common.Fields{"receipt_id": res.ReceiptID})
		return nil
	}

	ruleID := ruleIDOf(res)
	if err := s.store.ApplyClassification(ctx, res.ReceiptID, ruleID, res.Directive, res.ArchiveNumber); err != nil {
		if errors.Is(err, common.ErrNotPending) {
			// Edited by hand while the batch ran.
			summary.Skipped++
			entries = append(entries, model.LogEntry{
				ReceiptID: res.ReceiptID,
				RuleID:    ruleID,
				Kind:      model.LogKindSkipped,
				Message:   "receipt changed during classification; result discarded",
			})
			s.appendLog(ctx, entries)
			common.LogInfo("Receipt no longer pending", common.Fields{"receipt_id": res.ReceiptID})
			return nil
		}
		summary.Failed++
		s.recordOutcome(metrics.OutcomeFailed, "")
		return fmt.Errorf("receipt %s: %w", res.ReceiptID, err)
	}

	if res.Matched() {
		summary.Classified++
		s.recordOutcome(metrics.OutcomeMatched, res.Rule.Name)
		entries = append(entries, model.LogEntry{
			ReceiptID: res.ReceiptID,
			RuleID:    ruleID,
			Kind:      model.LogKindClassified,
			Message:   fmt.Sprintf("matched rule %q", res.Rule.Name),
		})
	} else {
		summary.Unclassified++
		s.recordOutcome(metrics.OutcomeUnclassified, "")
		entries = append(entries, model.LogEntry{
			ReceiptID: res.ReceiptID,
			Kind:      model.LogKindUnclassified,
			Message:   "no rule matched",
		})
	}
	common.LogDebug("Receipt classified", common.Fields{
		"receipt_id":     res.ReceiptID,
		"matched":        res.Matched(),
		"archive_number": res.ArchiveNumber,
	})
	if res.ArchiveNumber != "" {
		summary.ArchiveNumbers++
		if s.metrics != nil {
			s.metrics.ArchiveNumberIssued()
		}
	}

	s.appendLog(ctx, entries)
	return nil
}

// Preview classifies a field bag against the current enabled rules without
// drawing an archive number or writing anything.
func (s *Service) Preview(ctx context.Context, bag model.FieldBag) (rules.Result, error) {
	snapshot, err := s.store.GetEnabledRules(ctx)
	if err != nil {
		return rules.Result{}, fmt.Errorf("failed to load rules: %w", err)
	}
	return s.preview.Classify(ctx, snapshot, model.Receipt{Fields: bag})
}

// appendLog is best effort; a failed write is logged and classification continues.
func (s *Service) appendLog(ctx context.Context, entries []model.LogEntry) {
	if err := s.store.AppendOperationLog(ctx, entries); err != nil {
		common.LogError(err, "Failed to write operation log", common.Fields{"entries": len(entries)})
	}
}

func (s *Service) observeRules(n int) {
	if s.metrics != nil {
		s.metrics.SetRulesLoaded(n)
	}
}

func (s *Service) recordOutcome(outcome, rule string) {
	if s.metrics != nil {
		s.metrics.RecordOutcome(outcome, rule)
	}
}

func (s *Service) recordDiagnostic(kind string) {
	if s.metrics != nil {
		s.metrics.RecordDiagnostic(kind)
	}
}

func diagnosticEntries(res rules.Result) []model.LogEntry {
	entries := make([]model.LogEntry, 0, len(res.Diagnostics)+1)
	for _, d := range res.Diagnostics {
		id := d.RuleID
		entries = append(entries, model.LogEntry{
			ReceiptID: res.ReceiptID,
			RuleID:    &id,
			Kind:      string(d.Kind),
			Message:   d.Message,
		})
	}
	return entries
}

func ruleIDOf(res rules.Result) *int64 {
	if res.Rule == nil {
		return nil
	}
	id := res.Rule.ID
	return &id
}
