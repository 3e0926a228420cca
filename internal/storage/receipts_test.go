package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/receipt-sorter/internal/common"
	"github.com/Veraticus/receipt-sorter/internal/model"
)

func TestSaveReceipt(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	r := testReceipt(t, map[string]string{
		"receipt_type": "TAXI",
		"amount":       "1,234.50",
		"date":         "2024-03-15",
		"seller_name":  "City Cabs",
	})
	require.NoError(t, store.SaveReceipt(ctx, r))
	assert.NotEmpty(t, r.ID)
	assert.NotEmpty(t, r.Hash)
	assert.Equal(t, model.StatusPending, r.Status)

	got, err := store.GetReceipt(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Equal(t, r.Hash, got.Hash)
	require.Len(t, got.Fields, 4)
	assert.Equal(t, model.ValueNumber, got.Fields[model.FieldAmount].Kind())
	assert.Equal(t, "1234.5", got.Fields[model.FieldAmount].Text())
	assert.Equal(t, model.ValueDate, got.Fields[model.FieldDate].Kind())
	assert.Equal(t, "City Cabs", got.Fields[model.FieldSellerName].Text())
	assert.Nil(t, got.RuleID)
	assert.Nil(t, got.ClassifiedAt)
}

func TestSaveReceipt_Duplicate(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	fields := map[string]string{"seller_name": "Shop", "amount": "10"}
	require.NoError(t, store.SaveReceipt(ctx, testReceipt(t, fields)))

	err := store.SaveReceipt(ctx, testReceipt(t, fields))
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)
}

func TestGetReceipt_NotFound(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	_, err := store.GetReceipt(context.Background(), "rcpt_missing")
	assert.ErrorIs(t, err, ErrReceiptNotFound)
}

func TestListReceipts(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	for _, seller := range []string{"A", "B", "C"} {
		require.NoError(t, store.SaveReceipt(ctx, testReceipt(t, map[string]string{"seller_name": seller})))
	}

	all, err := store.ListReceipts(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := store.ListReceipts(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	pending, err := store.GetPendingReceipts(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	_, err = store.ListReceipts(ctx, "BOGUS", 0)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestApplyClassification(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	rule := testRule("Cabs", 1)
	require.NoError(t, store.CreateRule(ctx, rule))

	r := testReceipt(t, map[string]string{"seller_name": "Cabs", "date": "2024-03-01"})
	r.Tags = []string{"imported"}
	require.NoError(t, store.SaveReceipt(ctx, r))

	d := model.NewDirective()
	d.Assign(model.AttrCategory, "TRAVEL")
	d.Assign(model.AttrSubCategory, "TAXI")
	d.AddTag("transport")
	d.Request(model.SideEffectArchive, "travel/2024")

	require.NoError(t, store.ApplyClassification(ctx, r.ID, &rule.ID, d, "202403-TRV-0001"))

	got, err := store.GetReceipt(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusClassifiedByRule, got.Status)
	require.NotNil(t, got.RuleID)
	assert.Equal(t, rule.ID, *got.RuleID)
	assert.Equal(t, "TRAVEL", got.Attributes[model.AttrCategory])
	assert.Equal(t, "TAXI", got.Attributes[model.AttrSubCategory])
	assert.Equal(t, []string{"imported", "transport"}, got.Tags)
	assert.Equal(t, "travel/2024", got.ArchivePath)
	assert.Equal(t, "202403-TRV-0001", got.ArchiveNumber)
	assert.NotNil(t, got.ClassifiedAt)

	pending, err := store.GetPendingReceipts(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestApplyClassification_NoMatch(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	r := testReceipt(t, map[string]string{"seller_name": "Nobody"})
	require.NoError(t, store.SaveReceipt(ctx, r))
	require.NoError(t, store.ApplyClassification(ctx, r.ID, nil, model.NewDirective(), ""))

	got, err := store.GetReceipt(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnclassified, got.Status)
	assert.Nil(t, got.RuleID)
	assert.Empty(t, got.Attributes)
}

func TestApplyClassification_ArchiveNumberUnique(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	a := testReceipt(t, map[string]string{"seller_name": "A"})
	b := testReceipt(t, map[string]string{"seller_name": "B"})
	require.NoError(t, store.SaveReceipt(ctx, a))
	require.NoError(t, store.SaveReceipt(ctx, b))

	require.NoError(t, store.ApplyClassification(ctx, a.ID, nil, model.NewDirective(), "202401-GEN-0001"))
	err := store.ApplyClassification(ctx, b.ID, nil, model.NewDirective(), "202401-GEN-0001")
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)
}

func TestApplyClassification_DeletedRuleClearsReference(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	rule := testRule("Temp", 1)
	require.NoError(t, store.CreateRule(ctx, rule))
	r := testReceipt(t, map[string]string{"seller_name": "Temp"})
	require.NoError(t, store.SaveReceipt(ctx, r))
	require.NoError(t, store.ApplyClassification(ctx, r.ID, &rule.ID, model.NewDirective(), ""))

	require.NoError(t, store.DeleteRule(ctx, rule.ID))

	got, err := store.GetReceipt(ctx, r.ID)
	require.NoError(t, err)
	assert.Nil(t, got.RuleID)
	assert.Equal(t, model.StatusClassifiedByRule, got.Status)
}

func TestApplyClassification_KeepsManualEdit(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	r := testReceipt(t, map[string]string{"seller_name": "Stationer"})
	require.NoError(t, store.SaveReceipt(ctx, r))

	pending, err := store.GetPendingReceipts(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, store.UpdateReceiptAttributes(ctx, r.ID, map[model.Attribute]string{
		model.AttrCategory: "OFFICE",
	}))

	d := model.NewDirective()
	d.Assign(model.AttrCategory, "OTHER")
	err = store.ApplyClassification(ctx, pending[0].ID, nil, d, "")
	assert.ErrorIs(t, err, common.ErrNotPending)

	got, err := store.GetReceipt(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUserModified, got.Status)
	assert.Equal(t, "OFFICE", got.Attributes[model.AttrCategory])
	assert.Nil(t, got.RuleID)
}

func TestApplyClassification_AlreadyClassified(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	r := testReceipt(t, map[string]string{"seller_name": "Twice"})
	require.NoError(t, store.SaveReceipt(ctx, r))
	require.NoError(t, store.ApplyClassification(ctx, r.ID, nil, model.NewDirective(), ""))

	err := store.ApplyClassification(ctx, r.ID, nil, model.NewDirective(), "202401-GEN-0001")
	assert.ErrorIs(t, err, common.ErrNotPending)

	got, err := store.GetReceipt(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ArchiveNumber)
}

func TestUpdateReceiptAttributes(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	r := testReceipt(t, map[string]string{"seller_name": "Manual"})
	require.NoError(t, store.SaveReceipt(ctx, r))
	require.NoError(t, store.UpdateReceiptAttributes(ctx, r.ID, map[model.Attribute]string{
		model.AttrProject: "apollo",
	}))

	got, err := store.GetReceipt(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUserModified, got.Status)
	assert.Equal(t, "apollo", got.Attributes[model.AttrProject])

	assert.ErrorIs(t, store.UpdateReceiptAttributes(ctx, "rcpt_missing",
		map[model.Attribute]string{model.AttrProject: "x"}), ErrReceiptNotFound)
}

func TestCountReceiptsByStatus(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	a := testReceipt(t, map[string]string{"seller_name": "A"})
	b := testReceipt(t, map[string]string{"seller_name": "B"})
	require.NoError(t, store.SaveReceipt(ctx, a))
	require.NoError(t, store.SaveReceipt(ctx, b))
	require.NoError(t, store.ApplyClassification(ctx, a.ID, nil, model.NewDirective(), ""))

	counts, err := store.CountReceiptsByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[model.StatusPending])
	assert.Equal(t, 1, counts[model.StatusUnclassified])
}
