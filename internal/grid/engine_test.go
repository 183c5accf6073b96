package grid

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cryptoden/internal/market"
)

type mockPlacer struct{ mock.Mock }

func (m *mockPlacer) PlaceLimitOrder(ctx context.Context, symbol string, side Side, price, quantity float64) (string, error) {
	args := m.Called(ctx, symbol, side, price, quantity)
	return args.String(0), args.Error(1)
}

func (m *mockPlacer) CancelOrder(ctx context.Context, symbol, orderID string) error {
	return m.Called(ctx, symbol, orderID).Error(0)
}

func (m *mockPlacer) GetOrderStatus(ctx context.Context, symbol, orderID string) (string, error) {
	args := m.Called(ctx, symbol, orderID)
	return args.String(0), args.Error(1)
}

func (m *mockPlacer) ListOpenOrders(ctx context.Context, symbol string) ([]string, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockPlacer) GetBalance(ctx context.Context, asset string) (float64, error) {
	args := m.Called(ctx, asset)
	return args.Get(0).(float64), args.Error(1)
}

var _ OrderPlacer = (*mockPlacer)(nil)

func TestConfigDefaultsIdempotent(t *testing.T) {
	once := Config{}.withDefaults()
	assert.Equal(t, 8, once.GridCount)
	assert.InDelta(t, 0.5, once.GridStepPercent, 1e-9)
	assert.InDelta(t, 50.0, once.OrderSizeUSDT, 1e-9)
	assert.InDelta(t, 0.3, once.ProfitPerGridPercent, 1e-9)
	assert.Equal(t, 20, once.MaxOpenOrders)

	twice := once.withDefaults()
	assert.Equal(t, once, twice)

	partial := Config{GridCount: 12, OrderSizeUSDT: 75}.withDefaults()
	assert.Equal(t, 12, partial.GridCount)
	assert.InDelta(t, 75.0, partial.OrderSizeUSDT, 1e-9)
	assert.InDelta(t, 0.5, partial.GridStepPercent, 1e-9)
	assert.Equal(t, partial, partial.withDefaults())
}

func TestSetupBuildsLadderAroundPrice(t *testing.T) {
	e := NewEngine(Config{}, true, nil)
	require.NoError(t, e.Setup("btcusdt", 100))

	levels := e.Levels("BTCUSDT")
	require.Len(t, levels, 8)
	for _, lv := range levels {
		assert.Equal(t, StatusOpen, lv.Status)
		assert.NotEmpty(t, lv.OrderID)
		if lv.Side == SideBuy {
			assert.Less(t, lv.Price, 100.0)
		} else {
			assert.Greater(t, lv.Price, 100.0)
		}
	}
}

func TestSetupRejectsBadPrice(t *testing.T) {
	e := NewEngine(Config{}, true, nil)
	assert.ErrorIs(t, e.Setup("BTCUSDT", 0), market.ErrDataUnavailable)
	assert.ErrorIs(t, e.Setup("BTCUSDT", -5), market.ErrDataUnavailable)
}

func TestPaperFillOnceAndPairedSell(t *testing.T) {
	e := NewEngine(Config{GridCount: 2, GridStepPercent: 1}, true, nil)
	require.NoError(t, e.Setup("BTCUSDT", 100))
	// Ladder: one buy at 99, one sell at 101.

	fills := e.CheckFills("BTCUSDT", 98.5)
	require.Len(t, fills, 1)
	assert.Equal(t, SideBuy, fills[0].Side)
	assert.InDelta(t, 99.0, fills[0].Price, 1e-9)

	// Same tick again: the level stays filled, no double fill.
	assert.Empty(t, e.CheckFills("BTCUSDT", 98.5))

	// The fill spawned a linked sell one step above the buy.
	var paired *Level
	for _, lv := range e.Levels("BTCUSDT") {
		if lv.LinkedLevelID == fills[0].ID {
			pairedCopy := lv
			paired = &pairedCopy
		}
	}
	require.NotNil(t, paired)
	assert.Equal(t, SideSell, paired.Side)
	assert.InDelta(t, 99.0*1.01, paired.Price, 1e-9)
	assert.Equal(t, StatusOpen, paired.Status)
	assert.InDelta(t, fills[0].Quantity, paired.Quantity, 1e-12)
}

func TestPaperRoundTripProfit(t *testing.T) {
	e := NewEngine(Config{GridCount: 2, GridStepPercent: 1, OrderSizeUSDT: 99}, true, nil)
	require.NoError(t, e.Setup("BTCUSDT", 100))

	fills := e.CheckFills("BTCUSDT", 99)
	require.Len(t, fills, 1)
	buy := fills[0]

	fills = e.CheckFills("BTCUSDT", buy.Price*1.01)
	var sell *Level
	for i := range fills {
		if fills[i].LinkedLevelID == buy.ID {
			sell = &fills[i]
		}
	}
	require.NotNil(t, sell)

	trips := e.RoundTrips(0)
	require.Len(t, trips, 1)
	assert.InDelta(t, buy.Price, trips[0].BuyPrice, 1e-9)
	assert.InDelta(t, sell.Price, trips[0].SellPrice, 1e-9)
	expected := decimal.NewFromFloat(buy.Quantity).
		Mul(decimal.NewFromFloat(sell.Price).Sub(decimal.NewFromFloat(buy.Price)))
	assert.True(t, trips[0].ProfitUSDT.Equal(expected),
		"profit %s != expected %s", trips[0].ProfitUSDT, expected)

	stats := e.Stats()
	assert.Equal(t, 1, stats.TotalTrades)
	assert.Equal(t, 1, stats.TodayTrades)
	assert.True(t, stats.TotalProfitUSDT.GreaterThan(decimal.Zero))
}

func TestRealModePlacementFailureLeavesPending(t *testing.T) {
	ex := &mockPlacer{}
	ex.On("GetBalance", mock.Anything, "USDT").Return(10000.0, nil)
	ex.On("PlaceLimitOrder", mock.Anything, "BTCUSDT", SideBuy, mock.Anything, mock.Anything).
		Return("", errors.New("exchange down"))
	ex.On("PlaceLimitOrder", mock.Anything, "BTCUSDT", SideSell, mock.Anything, mock.Anything).
		Return("ord-1", nil)

	e := NewEngine(Config{GridCount: 2, GridStepPercent: 1}, false, ex)
	require.NoError(t, e.Setup("BTCUSDT", 100))

	placed, err := e.PlaceOrders(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 1, placed)

	pending, open := 0, 0
	for _, lv := range e.Levels("BTCUSDT") {
		switch lv.Status {
		case StatusPending:
			pending++
		case StatusOpen:
			open++
		}
	}
	assert.Equal(t, 1, pending)
	assert.Equal(t, 1, open)
}

func TestRealModeSyncResolvesVanishedOrders(t *testing.T) {
	ex := &mockPlacer{}
	ex.On("GetBalance", mock.Anything, "USDT").Return(10000.0, nil)
	ex.On("PlaceLimitOrder", mock.Anything, "BTCUSDT", mock.Anything, mock.Anything, mock.Anything).
		Return("ord-buy", nil).Once()
	ex.On("PlaceLimitOrder", mock.Anything, "BTCUSDT", mock.Anything, mock.Anything, mock.Anything).
		Return("ord-sell", nil).Once()

	e := NewEngine(Config{GridCount: 2, GridStepPercent: 1}, false, ex)
	require.NoError(t, e.Setup("BTCUSDT", 100))
	_, err := e.PlaceOrders(context.Background(), "BTCUSDT")
	require.NoError(t, err)

	// The buy's order vanished and resolved filled; the sell was cancelled.
	ex.On("ListOpenOrders", mock.Anything, "BTCUSDT").Return([]string{}, nil)
	ex.On("GetOrderStatus", mock.Anything, "BTCUSDT", "ord-buy").Return("FILLED", nil)
	ex.On("GetOrderStatus", mock.Anything, "BTCUSDT", "ord-sell").Return("CANCELED", nil)

	filled, err := e.SyncWithExchange(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, filled, 1)
	assert.Equal(t, SideBuy, filled[0].Side)

	var sawFilled, sawReset, sawSpawned bool
	for _, lv := range e.Levels("BTCUSDT") {
		switch {
		case lv.Status == StatusFilled && lv.Side == SideBuy:
			sawFilled = true
		case lv.Status == StatusPending && lv.Side == SideSell && lv.OrderID == "" && lv.LinkedLevelID == "":
			sawReset = true
		case lv.Status == StatusPending && lv.Side == SideSell && lv.LinkedLevelID != "":
			sawSpawned = true
		}
	}
	assert.True(t, sawFilled, "buy level should be filled")
	assert.True(t, sawReset, "cancelled sell should be pending again without order id")
	assert.True(t, sawSpawned, "filled buy should spawn a linked sell")
}

func TestCancelAll(t *testing.T) {
	e := NewEngine(Config{GridCount: 4, GridStepPercent: 1}, true, nil)
	require.NoError(t, e.Setup("BTCUSDT", 100))

	n, err := e.CancelAll(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	for _, lv := range e.Levels("BTCUSDT") {
		assert.Equal(t, StatusCancelled, lv.Status)
	}
}
