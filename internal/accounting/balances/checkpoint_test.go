package balances

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/accounting/accounts"
)

func newCheckpointStore(t *testing.T) *CheckpointStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewCheckpointStore(client, time.Minute)
	store.WithNow(func() time.Time { return time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC) })
	return store
}

func TestCheckpointRoundTrip(t *testing.T) {
	store := newCheckpointStore(t)
	ctx := context.Background()
	monthEnd := time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)

	_, hit, err := store.Get(ctx, 1, monthEnd)
	require.NoError(t, err)
	require.False(t, hit)

	require.NoError(t, store.Set(ctx, 1, monthEnd, 1234.56))

	got, hit, err := store.Get(ctx, 1, monthEnd)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, 1234.56, got)
}

func TestCheckpointInvalidateFrom(t *testing.T) {
	store := newCheckpointStore(t)
	ctx := context.Background()

	jan := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Set(ctx, 1, jan, 10))
	require.NoError(t, store.Set(ctx, 1, feb, 20))
	require.NoError(t, store.Set(ctx, 1, mar, 30))

	// A posting dated in February invalidates February onward.
	require.NoError(t, store.InvalidateFrom(ctx, []int64{1}, time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)))

	_, hit, err := store.Get(ctx, 1, jan)
	require.NoError(t, err)
	require.True(t, hit)
	_, hit, err = store.Get(ctx, 1, feb)
	require.NoError(t, err)
	require.False(t, hit)
	_, hit, err = store.Get(ctx, 1, mar)
	require.NoError(t, err)
	require.False(t, hit)
}

func TestBalanceAtPopulatesCheckpoint(t *testing.T) {
	store := newCheckpointStore(t)
	opening := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{
		accounts: map[int64]AccountInfo{1: {ID: 1, Code: "11011", Nature: accounts.NatureDebit, OpeningBalance: 100, OpeningDate: &opening}},
		lines: []Line{
			{LineID: 1, EntryID: 1, EntryDate: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), AccountID: 1, Debit: 400},
			{LineID: 2, EntryID: 2, EntryDate: time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC), AccountID: 1, Credit: 50},
		},
	}
	engine := NewEngine(src, store)

	got, err := engine.BalanceAt(context.Background(), 1, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 450.0, got)

	// February's checkpoint should now hold the pre-March balance.
	cached, hit, err := store.Get(context.Background(), 1, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, 500.0, cached)

	// Second read is served from the checkpoint and stays consistent.
	again, err := engine.BalanceAt(context.Background(), 1, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 450.0, again)
}
