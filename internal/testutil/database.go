// Package testutil provides test helpers shared across packages.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/receipt-sorter/internal/model"
	"github.com/Veraticus/receipt-sorter/internal/storage"
)

// TestDB wraps an in-memory database for a single test.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup     func(context.Context, *storage.SQLiteStorage) error
	Rules           []model.Rule
	Receipts        []map[string]string
	SeedSystemRules bool
}

// SetupTestDB creates a new migrated in-memory test database.
// It is closed automatically when the test ends.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{})
}

// SetupTestDBWithOptions creates a test database with custom options.
//
// Example:
//
//	db := testutil.SetupTestDBWithOptions(t, testutil.TestDBOptions{
//		Rules:    []model.Rule{taxiRule},
//		Receipts: []map[string]string{{"receipt_type": "TAXI"}},
//	})
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	if opts.SeedSystemRules {
		if _, err := store.SeedSystemRules(ctx); err != nil {
			t.Fatalf("failed to seed system rules: %v", err)
		}
	}

	db := &TestDB{Storage: store, t: t}
	for i := range opts.Rules {
		db.MustCreateRule(opts.Rules[i])
	}
	for _, fields := range opts.Receipts {
		db.MustSaveReceipt(fields)
	}

	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	return db
}

// MustCreateRule stores rule or fails the test.
func (db *TestDB) MustCreateRule(rule model.Rule) model.Rule {
	db.t.Helper()
	if err := db.Storage.CreateRule(context.Background(), &rule); err != nil {
		db.t.Fatalf("failed to create rule %q: %v", rule.Name, err)
	}
	return rule
}

// MustSaveReceipt stores a receipt built from raw fields or fails the test.
func (db *TestDB) MustSaveReceipt(fields map[string]string) model.Receipt {
	db.t.Helper()
	bag, err := model.NewFieldBag(fields)
	if err != nil {
		db.t.Fatalf("invalid receipt fields: %v", err)
	}
	r := model.Receipt{Fields: bag}
	if err := db.Storage.SaveReceipt(context.Background(), &r); err != nil {
		db.t.Fatalf("failed to save receipt: %v", err)
	}
	return r
}

// MustGetReceipt loads a receipt or fails the test.
func (db *TestDB) MustGetReceipt(id string) *model.Receipt {
	db.t.Helper()
	r, err := db.Storage.GetReceipt(context.Background(), id)
	if err != nil {
		db.t.Fatalf("failed to get receipt %s: %v", id, err)
	}
	return r
}
