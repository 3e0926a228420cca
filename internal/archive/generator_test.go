package archive

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/receipt-sorter/internal/common"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "202403-TRV-0007", Format("202403", "TRV", 7))
	assert.Equal(t, "202403-TRV-12345", Format("202403", "TRV", 12345))
}

func TestMemoryGenerator_PerKeySequences(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGenerator()

	for _, want := range []string{"202401-EXP-0001", "202401-EXP-0002"} {
		got, err := g.Next(ctx, "202401", "EXP")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := g.Next(ctx, "202402", "EXP")
	require.NoError(t, err)
	assert.Equal(t, "202402-EXP-0001", got)

	got, err = g.Next(ctx, "202401", "TRV")
	require.NoError(t, err)
	assert.Equal(t, "202401-TRV-0001", got)
}

func TestMemoryGenerator_Concurrent(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGenerator()

	const n = 100
	results := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := g.Next(ctx, "202403", "GEN")
			assert.NoError(t, err)
			results[i] = num
		}()
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, r := range results {
		seen[r] = true
	}
	assert.Len(t, seen, n)
	assert.True(t, seen["202403-GEN-0100"])
}

func TestValidateKey(t *testing.T) {
	g := NewMemoryGenerator()
	ctx := context.Background()

	_, err := g.Next(ctx, "2024-03", "TRV")
	assert.Error(t, err)
	_, err = g.Next(ctx, "202403", "trv")
	assert.Error(t, err)
	_, err = g.Next(ctx, "202403", "")
	assert.Error(t, err)
}

type flakyStore struct {
	err      error
	failures int
	calls    int
	seq      int64
}

func (s *flakyStore) NextSequence(_ context.Context, _, _ string) (int64, error) {
	s.calls++
	if s.calls <= s.failures {
		return 0, s.err
	}
	s.seq++
	return s.seq, nil
}

func TestStoreGenerator_RetriesBusy(t *testing.T) {
	store := &flakyStore{err: common.ErrBusy, failures: 2}
	g := NewStoreGenerator(store)

	got, err := g.Next(context.Background(), "202403", "OFC")
	require.NoError(t, err)
	assert.Equal(t, "202403-OFC-0001", got)
	assert.Equal(t, 3, store.calls)
}

func TestStoreGenerator_DoesNotRetryOtherErrors(t *testing.T) {
	boom := errors.New("disk on fire")
	store := &flakyStore{err: boom, failures: 10}
	g := NewStoreGenerator(store)

	_, err := g.Next(context.Background(), "202403", "OFC")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, store.calls)
}
