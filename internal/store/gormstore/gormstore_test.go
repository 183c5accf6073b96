package gormstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoden/internal/grid"
	"cryptoden/internal/signal"
	"cryptoden/internal/trade"
)

func testStore(t *testing.T) *GormStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTrade(id, symbol string) trade.Trade {
	return trade.Trade{
		ID: id, Symbol: symbol, Direction: signal.Long,
		EntryPrice: 100, Quantity: 0.5, StopLoss: 99.5, TakeProfit: 100.3,
		Trailing: trade.TrailingState{Activated: true, BestPrice: 100.4, StopPrice: 100.2},
		Profile:  trade.WorkerTrailing,
		Source:   "worker", Status: trade.StatusOpen,
		OpenedAt: time.Now().UTC().Truncate(time.Second),
		MaxHold:  24 * time.Hour,
	}
}

func TestOpenTradeRoundTrip(t *testing.T) {
	s := testStore(t)
	original := sampleTrade("t-1", "BTCUSDT")
	require.NoError(t, s.SaveOpenTrade(original))

	listed, err := s.ListOpenTrades()
	require.NoError(t, err)
	require.Len(t, listed, 1)

	got := listed[0]
	assert.Equal(t, original.ID, got.ID)
	assert.Equal(t, original.Direction, got.Direction)
	assert.Equal(t, original.MaxHold, got.MaxHold)
	assert.Equal(t, original.Trailing, got.Trailing)
	assert.Equal(t, original.Profile, got.Profile)
}

func TestSaveOpenTradeUpserts(t *testing.T) {
	s := testStore(t)
	tr := sampleTrade("t-1", "BTCUSDT")
	require.NoError(t, s.SaveOpenTrade(tr))

	tr.LastPrice = 101
	tr.Trailing.BestPrice = 101
	require.NoError(t, s.SaveOpenTrade(tr))

	listed, err := s.ListOpenTrades()
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.InDelta(t, 101.0, listed[0].LastPrice, 1e-9)
}

func TestDeleteOpenTrade(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.SaveOpenTrade(sampleTrade("t-1", "BTCUSDT")))
	require.NoError(t, s.DeleteOpenTrade("t-1"))

	listed, err := s.ListOpenTrades()
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestClosedHistoryAppendOnly(t *testing.T) {
	s := testStore(t)
	closed := sampleTrade("t-1", "BTCUSDT")
	closed.Status = trade.StatusClosed
	closed.ClosedAt = time.Now().UTC().Truncate(time.Second)
	closed.ClosePrice = 100.3
	closed.CloseReason = trade.CloseTakeProfit
	closed.RealizedPnL = 0.15
	require.NoError(t, s.AppendClosedTrade(closed))

	// Same trade id appended again stays a separate history row.
	closed.RealizedPnL = 0.2
	require.NoError(t, s.AppendClosedTrade(closed))

	history, err := s.ListClosedTrades(0)
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Equal(t, trade.CloseTakeProfit, history[0].CloseReason)

	limited, err := s.ListClosedTrades(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGridLevelsReplaceWholesale(t *testing.T) {
	s := testStore(t)
	first := []grid.Level{
		{ID: "a", Symbol: "BTCUSDT", Side: grid.SideBuy, Price: 99, Quantity: 0.5, Status: grid.StatusOpen, CreatedAt: time.Now().UTC()},
		{ID: "b", Symbol: "BTCUSDT", Side: grid.SideSell, Price: 101, Quantity: 0.5, Status: grid.StatusOpen, LinkedLevelID: "a", ExpectedProfit: 1, CreatedAt: time.Now().UTC()},
	}
	require.NoError(t, s.SaveGridLevels("BTCUSDT", first))

	replacement := []grid.Level{
		{ID: "c", Symbol: "BTCUSDT", Side: grid.SideBuy, Price: 98, Quantity: 0.5, Status: grid.StatusPending, CreatedAt: time.Now().UTC()},
	}
	require.NoError(t, s.SaveGridLevels("BTCUSDT", replacement))

	loaded, err := s.LoadGridLevels("BTCUSDT")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "c", loaded[0].ID)
}

func TestGridLevelMetaSurvives(t *testing.T) {
	s := testStore(t)
	levels := []grid.Level{
		{ID: "s1", Symbol: "ETHUSDT", Side: grid.SideSell, Price: 2020, Quantity: 0.1,
			Status: grid.StatusPending, LinkedLevelID: "b1", ExpectedProfit: 2.0, CreatedAt: time.Now().UTC()},
	}
	require.NoError(t, s.SaveGridLevels("ETHUSDT", levels))

	loaded, err := s.LoadGridLevels("ETHUSDT")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "b1", loaded[0].LinkedLevelID)
	assert.InDelta(t, 2.0, loaded[0].ExpectedProfit, 1e-9)
}
