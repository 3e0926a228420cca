// Package metrics exposes classification counters in Prometheus format.
package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sorter"

// Classification outcomes used as the outcome label.
const (
	OutcomeMatched      = "matched"
	OutcomeUnclassified = "unclassified"
	OutcomeFailed       = "failed"
)

// Collector owns a private registry so tests and multiple servers do not
// collide on the global one.
type Collector struct {
	registry       *prometheus.Registry
	receipts       *prometheus.CounterVec
	ruleMatches    *prometheus.CounterVec
	diagnostics    *prometheus.CounterVec
	archiveNumbers prometheus.Counter
	batchDuration  prometheus.Histogram
	rulesLoaded    prometheus.Gauge
	logger         *slog.Logger
}

// NewCollector registers every metric on a fresh registry.
func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		receipts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipts_classified_total",
			Help:      "Receipts processed by the rule engine, by outcome",
		}, []string{"outcome"}),
		ruleMatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_matches_total",
			Help:      "Receipts won by each rule",
		}, []string{"rule"}),
		diagnostics: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_diagnostics_total",
			Help:      "Diagnostics raised while evaluating rules, by kind",
		}, []string{"kind"}),
		archiveNumbers: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_numbers_issued_total",
			Help:      "Archive numbers drawn from the sequence store",
		}),
		batchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classify_batch_duration_seconds",
			Help:      "Time taken to classify and persist one batch",
			Buckets:   prometheus.DefBuckets,
		}),
		rulesLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rules_enabled",
			Help:      "Enabled rules in the most recent snapshot",
		}),
		logger: logger,
	}
}

// RecordOutcome counts one receipt. rule is the winning rule's name and is
// ignored unless outcome is OutcomeMatched.
func (c *Collector) RecordOutcome(outcome, rule string) {
	c.receipts.WithLabelValues(outcome).Inc()
	if outcome == OutcomeMatched && rule != "" {
		c.ruleMatches.WithLabelValues(rule).Inc()
	}
}

// RecordDiagnostic counts one diagnostic.
func (c *Collector) RecordDiagnostic(kind string) {
	c.diagnostics.WithLabelValues(kind).Inc()
}

// ArchiveNumberIssued counts one generated archive number.
func (c *Collector) ArchiveNumberIssued() {
	c.archiveNumbers.Inc()
}

// ObserveBatch records how long a batch took.
func (c *Collector) ObserveBatch(d time.Duration) {
	c.batchDuration.Observe(d.Seconds())
}

// SetRulesLoaded records the size of the rule snapshot.
func (c *Collector) SetRulesLoaded(n int) {
	c.rulesLoaded.Set(float64(n))
}

// Handler serves the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(c.logger.Handler(), slog.LevelError),
	})
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
