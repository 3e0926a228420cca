// Package service defines the interfaces for all application services.
package service

import (
	"context"

	"github.com/Veraticus/receipt-sorter/internal/model"
)

// RuleStore persists classification rules.
type RuleStore interface {
	CreateRule(ctx context.Context, rule *model.Rule) error
	GetRule(ctx context.Context, id int64) (*model.Rule, error)
	ListRules(ctx context.Context) ([]model.Rule, error)
	GetEnabledRules(ctx context.Context) ([]model.Rule, error)
	UpdateRule(ctx context.Context, rule *model.Rule) error
	SetRuleEnabled(ctx context.Context, id int64, enabled bool) error
	DeleteRule(ctx context.Context, id int64) error
	ReorderRules(ctx context.Context, ids []int64) error
	MoveRule(ctx context.Context, id int64, position int) error
	SeedSystemRules(ctx context.Context) (int, error)
}

// ReceiptStore persists receipts and their classification state.
type ReceiptStore interface {
	SaveReceipt(ctx context.Context, receipt *model.Receipt) error
	GetReceipt(ctx context.Context, id string) (*model.Receipt, error)
	ListReceipts(ctx context.Context, status model.ClassificationStatus, limit int) ([]model.Receipt, error)
	GetPendingReceipts(ctx context.Context) ([]model.Receipt, error)
	ApplyClassification(ctx context.Context, receiptID string, ruleID *int64, directive model.Directive, archiveNumber string) error
	UpdateReceiptAttributes(ctx context.Context, receiptID string, attrs map[model.Attribute]string) error
	CountReceiptsByStatus(ctx context.Context) (map[model.ClassificationStatus]int, error)
}

// SequenceStore hands out archive number sequences.
type SequenceStore interface {
	NextSequence(ctx context.Context, period, code string) (int64, error)
}

// OperationLog records classification outcomes and diagnostics.
type OperationLog interface {
	AppendOperationLog(ctx context.Context, entries []model.LogEntry) error
	GetOperationLog(ctx context.Context, limit int) ([]model.LogEntry, error)
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	RuleStore
	ReceiptStore
	SequenceStore
	OperationLog

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}
