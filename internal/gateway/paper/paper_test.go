package paper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoden/internal/gateway/exchange"
	"cryptoden/internal/signal"
)

func TestPriceLifecycle(t *testing.T) {
	e := New(0)
	ctx := context.Background()

	_, ok, err := e.GetPrice(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.False(t, ok)

	e.UpdatePrice("btcusdt", 50000)
	price, ok, err := e.GetPrice(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 50000.0, price, 1e-9)
}

func TestMarketOrderNeedsPrice(t *testing.T) {
	e := New(0)
	_, err := e.PlaceMarketOrder(context.Background(), "BTCUSDT", signal.Long, 0.1)
	assert.Error(t, err)

	e.UpdatePrice("BTCUSDT", 50000)
	id, err := e.PlaceMarketOrder(context.Background(), "BTCUSDT", signal.Long, 0.1)
	require.NoError(t, err)

	status, err := e.GetOrderStatus(context.Background(), "BTCUSDT", id)
	require.NoError(t, err)
	assert.Equal(t, exchange.OrderStatusFilled, status)
}

func TestLimitOrderFillsOnCross(t *testing.T) {
	e := New(0)
	ctx := context.Background()
	e.UpdatePrice("BTCUSDT", 50000)

	buyID, err := e.PlaceLimitOrder(ctx, "BTCUSDT", "buy", 49000, 0.1)
	require.NoError(t, err)
	sellID, err := e.PlaceLimitOrder(ctx, "BTCUSDT", "sell", 51000, 0.1)
	require.NoError(t, err)

	open, err := e.ListOpenOrders(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Len(t, open, 2)

	e.UpdatePrice("BTCUSDT", 48900)
	status, err := e.GetOrderStatus(ctx, "BTCUSDT", buyID)
	require.NoError(t, err)
	assert.Equal(t, exchange.OrderStatusFilled, status)

	status, err = e.GetOrderStatus(ctx, "BTCUSDT", sellID)
	require.NoError(t, err)
	assert.Equal(t, exchange.OrderStatusNew, status)
}

func TestCancelOnlyOpenOrders(t *testing.T) {
	e := New(0)
	ctx := context.Background()
	e.UpdatePrice("BTCUSDT", 50000)

	id, err := e.PlaceLimitOrder(ctx, "BTCUSDT", "buy", 49000, 0.1)
	require.NoError(t, err)
	require.NoError(t, e.CancelOrder(ctx, "BTCUSDT", id))
	assert.Error(t, e.CancelOrder(ctx, "BTCUSDT", id))

	status, err := e.GetOrderStatus(ctx, "BTCUSDT", id)
	require.NoError(t, err)
	assert.Equal(t, exchange.OrderStatusCancelled, status)
}

func TestBalance(t *testing.T) {
	e := New(2500)
	bal, err := e.GetBalance(context.Background(), "usdt")
	require.NoError(t, err)
	assert.InDelta(t, 2500.0, bal, 1e-9)
}
