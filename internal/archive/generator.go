// Package archive produces archive numbers for classified receipts.
//
// An archive number is <period>-<code>-<sequence>, for example 202403-TRV-0007.
// Sequences are scoped by (period, code), start at 1 and only grow. Both
// generators here serialize writers themselves so the rule engine can call
// them from parallel workers without holding a lock.
package archive

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/Veraticus/receipt-sorter/internal/common"
)

var (
	periodPattern = regexp.MustCompile(`^[0-9]{6}$`)
	codePattern   = regexp.MustCompile(`^[A-Z0-9]{1,8}$`)
)

// Format renders an archive number.
func Format(period, code string, seq int64) string {
	return fmt.Sprintf("%s-%s-%04d", period, code, seq)
}

func validateKey(period, code string) error {
	if !periodPattern.MatchString(period) {
		return fmt.Errorf("invalid period key %q: want YYYYMM", period)
	}
	if !codePattern.MatchString(code) {
		return fmt.Errorf("invalid category code %q", code)
	}
	return nil
}

// MemoryGenerator keeps counters in process memory, one mutex per key.
type MemoryGenerator struct {
	counters map[string]*counter
	mu       sync.Mutex
}

type counter struct {
	mu  sync.Mutex
	seq int64
}

// NewMemoryGenerator creates an empty in-memory generator.
func NewMemoryGenerator() *MemoryGenerator {
	return &MemoryGenerator{counters: make(map[string]*counter)}
}

// Next returns the next archive number for the key.
func (g *MemoryGenerator) Next(_ context.Context, period, code string) (string, error) {
	if err := validateKey(period, code); err != nil {
		return "", err
	}

	key := period + "/" + code
	g.mu.Lock()
	c, ok := g.counters[key]
	if !ok {
		c = &counter{}
		g.counters[key] = c
	}
	g.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return Format(period, code, c.seq), nil
}

// SequenceStore persists counters. NextSequence must increment and return the
// counter for the key atomically.
type SequenceStore interface {
	NextSequence(ctx context.Context, period, code string) (int64, error)
}

// StoreGenerator draws sequences from persistent storage. Writers in this
// process are serialized by a mutex; contention from other processes surfaces
// as common.ErrBusy and is retried.
type StoreGenerator struct {
	store SequenceStore
	retry common.RetryOptions
	mu    sync.Mutex
}

// NewStoreGenerator creates a generator backed by store.
func NewStoreGenerator(store SequenceStore) *StoreGenerator {
	return &StoreGenerator{
		store: store,
		retry: common.RetryOptions{MaxAttempts: 5},
	}
}

// Next returns the next archive number for the key.
func (g *StoreGenerator) Next(ctx context.Context, period, code string) (string, error) {
	if err := validateKey(period, code); err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var seq int64
	err := common.WithRetry(ctx, func() error {
		var err error
		seq, err = g.store.NextSequence(ctx, period, code)
		return err
	}, g.retry)
	if err != nil {
		return "", fmt.Errorf("failed to draw sequence: %w", err)
	}
	return Format(period, code, seq), nil
}
