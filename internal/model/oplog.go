package model

import "time"

// LogEntry is one operation log record. Classification outcomes and
// diagnostics are appended here so they survive the process.
type LogEntry struct {
	CreatedAt time.Time
	RuleID    *int64
	ReceiptID string
	Kind      string
	Message   string
	ID        int64
}

// Operation log kinds besides the diagnostic kinds.
const (
	LogKindClassified   = "classified"
	LogKindUnclassified = "unclassified"
	LogKindFailed       = "failed"
	LogKindSkipped      = "skipped"
)
