package trade

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoden/internal/signal"
)

func longTrade(entry, sl, tp float64, profile TrailingProfile) *Trade {
	rec := signal.New("BTCUSDT", signal.Long, entry, "test")
	rec.StopLoss = sl
	rec.TakeProfit = tp
	return New(rec, 1, profile, 24*time.Hour)
}

func shortTrade(entry, sl, tp float64, profile TrailingProfile) *Trade {
	rec := signal.New("BTCUSDT", signal.Short, entry, "test")
	rec.StopLoss = sl
	rec.TakeProfit = tp
	return New(rec, 1, profile, 24*time.Hour)
}

func TestUpdatePriceRejectsInvalidPrices(t *testing.T) {
	tr := longTrade(100, 98, 104, WorkerTrailing)
	before := *tr
	for _, bad := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		reason, closed := tr.UpdatePrice(bad, time.Now())
		assert.False(t, closed)
		assert.Empty(t, reason)
	}
	assert.Equal(t, before.LastPrice, tr.LastPrice)
	assert.Equal(t, before.Trailing, tr.Trailing)
	assert.True(t, tr.IsOpen())
}

func TestStopLossLong(t *testing.T) {
	tr := longTrade(100, 98, 104, WorkerTrailing)
	reason, closed := tr.UpdatePrice(97.9, time.Now())
	require.True(t, closed)
	assert.Equal(t, CloseStopLoss, reason)
	assert.Equal(t, StatusClosed, tr.Status)
	assert.InDelta(t, -2.1, tr.RealizedPnL, 1e-9)
}

func TestTakeProfitShort(t *testing.T) {
	tr := shortTrade(100, 102, 96, WorkerTrailing)
	reason, closed := tr.UpdatePrice(95.5, time.Now())
	require.True(t, closed)
	assert.Equal(t, CloseTakeProfit, reason)
	assert.InDelta(t, 4.5, tr.RealizedPnL, 1e-9)
}

func TestStopLossBeatsTimeLimit(t *testing.T) {
	tr := longTrade(100, 98, 104, WorkerTrailing)
	tr.OpenedAt = time.Now().Add(-48 * time.Hour)

	reason, closed := tr.UpdatePrice(97, time.Now())
	require.True(t, closed)
	assert.Equal(t, CloseStopLoss, reason)
}

func TestTimeLimitAlone(t *testing.T) {
	tr := longTrade(100, 90, 120, WorkerTrailing)
	tr.OpenedAt = time.Now().Add(-25 * time.Hour)

	reason, closed := tr.UpdatePrice(100.1, time.Now())
	require.True(t, closed)
	assert.Equal(t, CloseTimeLimit, reason)
}

func TestTrailingStopNeverLoosens(t *testing.T) {
	tr := longTrade(100, 90, 120, WorkerTrailing)
	now := time.Now()

	// Below activation threshold: no trailing state yet.
	tr.UpdatePrice(100.1, now)
	assert.False(t, tr.Trailing.Activated)

	// +0.3% arms the trail.
	tr.UpdatePrice(100.3, now)
	require.True(t, tr.Trailing.Activated)
	firstStop := tr.Trailing.StopPrice
	assert.InDelta(t, 100.3*0.998, firstStop, 1e-9)

	// Higher price ratchets the stop up.
	tr.UpdatePrice(101, now)
	secondStop := tr.Trailing.StopPrice
	assert.Greater(t, secondStop, firstStop)

	// A dip that does not hit the stop must not loosen it.
	tr.UpdatePrice(100.9, now)
	assert.Equal(t, secondStop, tr.Trailing.StopPrice)
	assert.True(t, tr.IsOpen())

	// Falling through the stop closes with trailing_stop.
	reason, closed := tr.UpdatePrice(secondStop-0.01, now)
	require.True(t, closed)
	assert.Equal(t, CloseTrailingStop, reason)
}

func TestTrailingActivatesAtExactThreshold(t *testing.T) {
	now := time.Now()

	// (100.3-100)/100*100 rounds to just under 0.3 in float64; the
	// threshold comparison must still arm the trail.
	long := longTrade(100, 90, 120, WorkerTrailing)
	long.UpdatePrice(100.3, now)
	assert.True(t, long.Trailing.Activated)

	short := shortTrade(100, 110, 80, DirectorTrailing)
	short.UpdatePrice(99.5, now)
	assert.True(t, short.Trailing.Activated)
}

func TestTrailingShortMirror(t *testing.T) {
	tr := shortTrade(100, 110, 80, DirectorTrailing)
	now := time.Now()

	tr.UpdatePrice(99.5, now) // -0.5% arms the director profile
	require.True(t, tr.Trailing.Activated)
	firstStop := tr.Trailing.StopPrice
	assert.InDelta(t, 99.5*1.003, firstStop, 1e-9)

	tr.UpdatePrice(99, now)
	assert.Less(t, tr.Trailing.StopPrice, firstStop)
}

func TestScenarioTakeProfitBeforeStops(t *testing.T) {
	// entry=100, SL=99.5, TP=100.3, worker profile; path 100 -> 100.6 -> 100.2.
	// TP fires on the first upward move before any stop can trigger.
	tr := longTrade(100, 99.5, 100.3, WorkerTrailing)
	now := time.Now()

	reason, closed := tr.UpdatePrice(100.0, now)
	assert.False(t, closed)

	reason, closed = tr.UpdatePrice(100.6, now)
	require.True(t, closed)
	assert.Equal(t, CloseTakeProfit, reason)

	// Closed exactly once: the later tick is ignored.
	reason, closed = tr.UpdatePrice(100.2, now)
	assert.False(t, closed)
	assert.Empty(t, reason)
	assert.Equal(t, CloseTakeProfit, tr.CloseReason)
}

func TestForceCloseOnlyOnce(t *testing.T) {
	tr := longTrade(100, 0, 0, WorkerTrailing)
	now := time.Now()
	require.True(t, tr.ForceClose(101, CloseManual, now))
	assert.False(t, tr.ForceClose(102, CloseManual, now))
	assert.InDelta(t, 1.0, tr.RealizedPnL, 1e-9)
}

func TestForceCloseFallsBackToLastPrice(t *testing.T) {
	tr := longTrade(100, 0, 0, WorkerTrailing)
	tr.UpdatePrice(103, time.Now())
	require.True(t, tr.ForceClose(0, CloseNewsExit, time.Now()))
	assert.InDelta(t, 103.0, tr.ClosePrice, 1e-9)
}
