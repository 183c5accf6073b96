package director

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"cryptoden/internal/market"
	"cryptoden/internal/signal"
	"cryptoden/internal/trade"
)

type mockExchange struct{ mock.Mock }

func (m *mockExchange) GetPrice(ctx context.Context, symbol string) (float64, bool, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Bool(1), args.Error(2)
}

func (m *mockExchange) GetBalance(ctx context.Context, asset string) (float64, error) {
	args := m.Called(ctx, asset)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockExchange) PlaceMarketOrder(ctx context.Context, symbol string, direction signal.Direction, quantity float64) (string, error) {
	args := m.Called(ctx, symbol, direction, quantity)
	return args.String(0), args.Error(1)
}

var _ Exchange = (*mockExchange)(nil)

func TestShouldTakeControlPriority(t *testing.T) {
	o := NewOverrideTrader(Options{}, nil, nil, nil)

	// Satisfies both the panic-fear condition and the overheated-funding
	// condition; the earlier entry must win.
	snap := market.Snapshot{
		FearGreed:         14,
		LongRatio:         71,
		ShortRatio:        29,
		FundingRate:       0.2,
		CriticalNewsCount: 1,
		NewsSentiment:     market.Sentiment{Bullish: 3, Bearish: 1},
	}
	take, direction, reason := o.ShouldTakeControl(snap)
	require.True(t, take)
	assert.Equal(t, signal.Long, direction)
	assert.Equal(t, overrideConditions[0].reason, reason)
}

func TestShouldTakeControlNoMatch(t *testing.T) {
	o := NewOverrideTrader(Options{}, nil, nil, nil)
	take, _, _ := o.ShouldTakeControl(market.Snapshot{FearGreed: 50, LongRatio: 50, ShortRatio: 50})
	assert.False(t, take)
}

func TestShouldTakeControlEachCondition(t *testing.T) {
	o := NewOverrideTrader(Options{}, nil, nil, nil)
	cases := []struct {
		name      string
		snap      market.Snapshot
		direction signal.Direction
	}{
		{"liquidated longs into fear", market.Snapshot{LiquidationsLongUSD: 60e6, FearGreed: 20}, signal.Long},
		{"liquidated shorts into greed", market.Snapshot{LiquidationsShortUSD: 60e6, FearGreed: 80}, signal.Short},
		{"hot funding crowded longs", market.Snapshot{FundingRate: 0.15, LongRatio: 72, ShortRatio: 28}, signal.Short},
		{"negative funding crowded shorts", market.Snapshot{FundingRate: -0.15, LongRatio: 28, ShortRatio: 72}, signal.Long},
		{"capitulation", market.Snapshot{FearGreed: 10, LongRatio: 30, ShortRatio: 70}, signal.Long},
		{"euphoria", market.Snapshot{FearGreed: 90, LongRatio: 70, ShortRatio: 30}, signal.Short},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			take, direction, _ := o.ShouldTakeControl(tc.snap)
			require.True(t, take)
			assert.Equal(t, tc.direction, direction)
		})
	}
}

func TestExecuteSizesAndBrackets(t *testing.T) {
	ex := &mockExchange{}
	ex.On("GetPrice", mock.Anything, "BTCUSDT").Return(50000.0, true, nil)
	ex.On("GetBalance", mock.Anything, "USDT").Return(10000.0, nil)
	ex.On("PlaceMarketOrder", mock.Anything, "BTCUSDT", signal.Long, mock.Anything).Return("ord-1", nil)

	o := NewOverrideTrader(Options{MonitorInterval: time.Hour}, ex, nil, nil)
	tr, err := o.Execute(context.Background(), "btcusdt", signal.Long, "test entry")
	require.NoError(t, err)
	defer o.Stop()

	// 20% of 10k at 50k -> 0.04 BTC.
	assert.InDelta(t, 0.04, tr.Quantity, 1e-9)
	assert.InDelta(t, 49000, tr.StopLoss, 1e-6)   // -2%
	assert.InDelta(t, 52000, tr.TakeProfit, 1e-6) // +4%
	assert.Equal(t, "director", tr.Source)
	assert.True(t, o.IsControlling())
}

func TestExecuteRejectsSmallBalance(t *testing.T) {
	ex := &mockExchange{}
	ex.On("GetPrice", mock.Anything, "BTCUSDT").Return(50000.0, true, nil)
	ex.On("GetBalance", mock.Anything, "USDT").Return(100.0, nil)

	o := NewOverrideTrader(Options{}, ex, nil, nil)
	_, err := o.Execute(context.Background(), "BTCUSDT", signal.Long, "test")
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.False(t, o.IsControlling())
	ex.AssertNotCalled(t, "PlaceMarketOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExecuteRejectsMissingPrice(t *testing.T) {
	ex := &mockExchange{}
	ex.On("GetPrice", mock.Anything, "LINKUSDT").Return(0.0, false, nil)

	o := NewOverrideTrader(Options{}, ex, nil, nil)
	_, err := o.Execute(context.Background(), "LINKUSDT", signal.Long, "test")
	assert.ErrorIs(t, err, market.ErrDataUnavailable)
}

func TestExecutePerSymbolLimit(t *testing.T) {
	ex := &mockExchange{}
	ex.On("GetPrice", mock.Anything, "BTCUSDT").Return(50000.0, true, nil)
	ex.On("GetBalance", mock.Anything, "USDT").Return(10000.0, nil)
	ex.On("PlaceMarketOrder", mock.Anything, "BTCUSDT", mock.Anything, mock.Anything).Return("ord-1", nil)

	o := NewOverrideTrader(Options{MonitorInterval: time.Hour}, ex, nil, nil)
	defer o.Stop()
	_, err := o.Execute(context.Background(), "BTCUSDT", signal.Long, "first")
	require.NoError(t, err)
	_, err = o.Execute(context.Background(), "BTCUSDT", signal.Short, "second")
	assert.ErrorIs(t, err, trade.ErrSymbolLimit)
}

func TestExecuteReportsUntrackedFill(t *testing.T) {
	ex := &mockExchange{}
	ex.On("GetPrice", mock.Anything, "BTCUSDT").Return(50000.0, true, nil)
	ex.On("GetBalance", mock.Anything, "USDT").Return(10000.0, nil)

	o := NewOverrideTrader(Options{MaxTrades: 1, MonitorInterval: time.Hour}, ex, nil, nil)
	defer o.Stop()

	// A trade lands between the limit pre-check and tracking, so the
	// manager rejects the open after the market order already filled.
	ex.On("PlaceMarketOrder", mock.Anything, "BTCUSDT", signal.Long, mock.Anything).
		Run(func(mock.Arguments) {
			other := trade.New(signal.New("ETHUSDT", signal.Short, 3000, "director"), 1, trade.DirectorTrailing, time.Hour)
			o.trades.Restore([]trade.Trade{*other})
		}).
		Return("ord-1", nil)

	_, err := o.Execute(context.Background(), "BTCUSDT", signal.Long, "test entry")
	require.ErrorIs(t, err, trade.ErrTradeLimit)
	assert.ErrorContains(t, err, "after fill")
	ex.AssertCalled(t, "PlaceMarketOrder", mock.Anything, "BTCUSDT", signal.Long, mock.Anything)
}

func TestThesisInvalidation(t *testing.T) {
	long := trade.Trade{Direction: signal.Long}
	short := trade.Trade{Direction: signal.Short}

	assert.True(t, thesisInvalidated(long, market.Snapshot{LongRatio: 76, ShortRatio: 24}))
	assert.False(t, thesisInvalidated(long, market.Snapshot{LongRatio: 60, ShortRatio: 40}))
	assert.True(t, thesisInvalidated(short, market.Snapshot{LongRatio: 24, ShortRatio: 76}))
	assert.True(t, thesisInvalidated(long, market.Snapshot{LongRatio: 50, ShortRatio: 50, OIChange1h: -11}))
}

func TestNewsAgainst(t *testing.T) {
	long := trade.Trade{Direction: signal.Long}

	hotBearish := market.Snapshot{
		AlertLevel:    market.AlertWarning,
		NewsSentiment: market.Sentiment{Bearish: 5, Bullish: 1},
	}
	assert.True(t, newsAgainst(long, hotBearish))

	calmBearish := market.Snapshot{
		NewsSentiment: market.Sentiment{Bearish: 5, Bullish: 1},
	}
	assert.False(t, newsAgainst(long, calmBearish))
}
