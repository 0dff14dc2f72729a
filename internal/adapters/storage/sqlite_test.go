package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/predmarket/internal/adapters/storage"
	"github.com/alejandrodnm/predmarket/internal/domain"
)

func makeTrade(id string, price float64) domain.Trade {
	return domain.Trade{
		ID:        id,
		MarketID:  "mkt-1",
		Outcome:   "YES",
		BuyerID:   "alice",
		SellerID:  "bob",
		Price:     price,
		Quantity:  10,
		Timestamp: time.Now().UTC().Truncate(time.Second),
	}
}

func TestSQLiteJournal_SaveMarketAndResolve(t *testing.T) {
	j, err := storage.NewSQLiteJournal(":memory:")
	require.NoError(t, err)
	defer j.Close()

	market := domain.NewMarket("mkt-1", "Will X happen?", "desc",
		[]string{"YES", "NO"}, time.Now().Add(time.Hour), "creator")

	ctx := context.Background()
	require.NoError(t, j.SaveMarket(ctx, market))

	// El upsert no duplica
	market.TotalVolume = 50
	require.NoError(t, j.SaveMarket(ctx, market))

	require.NoError(t, j.MarkResolved(ctx, "mkt-1", "YES"))
}

func TestSQLiteJournal_AppendAndReadTrades(t *testing.T) {
	j, err := storage.NewSQLiteJournal(":memory:")
	require.NoError(t, err)
	defer j.Close()

	ctx := context.Background()
	trades := []domain.Trade{
		makeTrade("t1", 0.60),
		makeTrade("t2", 0.65),
	}
	require.NoError(t, j.AppendTrades(ctx, trades))

	got, err := j.RecentTrades(ctx, "mkt-1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "mkt-1", got[0].MarketID)
	assert.Equal(t, "alice", got[0].BuyerID)
	assert.Equal(t, "bob", got[0].SellerID)
}

func TestSQLiteJournal_AppendEmptySlice(t *testing.T) {
	j, err := storage.NewSQLiteJournal(":memory:")
	require.NoError(t, err)
	defer j.Close()

	assert.NoError(t, j.AppendTrades(context.Background(), nil))
}

func TestSQLiteJournal_RecentTradesLimit(t *testing.T) {
	j, err := storage.NewSQLiteJournal(":memory:")
	require.NoError(t, err)
	defer j.Close()

	ctx := context.Background()
	trades := []domain.Trade{
		makeTrade("t1", 0.60),
		makeTrade("t2", 0.61),
		makeTrade("t3", 0.62),
	}
	require.NoError(t, j.AppendTrades(ctx, trades))

	got, err := j.RecentTrades(ctx, "mkt-1", 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// Mercado sin trades
	got, err = j.RecentTrades(ctx, "other", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
