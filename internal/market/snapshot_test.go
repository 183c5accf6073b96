package market

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFillsNeutralDefaults(t *testing.T) {
	snap := Snapshot{}.Normalize()
	assert.Equal(t, 50, snap.FearGreed)
	assert.InDelta(t, 50.0, snap.LongRatio, 1e-9)
	assert.InDelta(t, 50.0, snap.ShortRatio, 1e-9)
	assert.Equal(t, ModeNormal, snap.MarketMode)
	assert.Equal(t, AlertCalm, snap.AlertLevel)
	assert.False(t, snap.CapturedAt.IsZero())
}

func TestNormalizeKeepsSetValues(t *testing.T) {
	snap := Snapshot{
		FearGreed:  12,
		LongRatio:  80,
		ShortRatio: 20,
		MarketMode: "news_alert",
		AlertLevel: "CRITICAL",
	}.Normalize()
	assert.Equal(t, 12, snap.FearGreed)
	assert.InDelta(t, 80.0, snap.LongRatio, 1e-9)
	assert.Equal(t, ModeNewsAlert, snap.MarketMode)
	assert.Equal(t, AlertCritical, snap.AlertLevel)
}

func TestNormalizeKeepsReportedZeroFearGreed(t *testing.T) {
	// Index 0 is maximum fear, not missing data. Only the unreported zero
	// value defaults to neutral.
	reported := Snapshot{FearGreed: 0, FearGreedSet: true}.Normalize()
	assert.Equal(t, 0, reported.FearGreed)

	unreported := Snapshot{FearGreed: 0}.Normalize()
	assert.Equal(t, 50, unreported.FearGreed)

	garbage := Snapshot{FearGreed: -50, FearGreedSet: true}.Normalize()
	assert.Equal(t, 50, garbage.FearGreed)
}

type mockMetrics struct{ mock.Mock }

func (m *mockMetrics) FundingRate(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockMetrics) LongShortRatio(ctx context.Context, symbol string) (float64, float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Get(1).(float64), args.Error(2)
}

func (m *mockMetrics) OpenInterestChange(ctx context.Context, symbol string) (float64, float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Get(1).(float64), args.Error(2)
}

func (m *mockMetrics) LiquidationVolumes(ctx context.Context, symbol string) (float64, float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Get(1).(float64), args.Error(2)
}

var _ MetricsSource = (*mockMetrics)(nil)

func TestSnapshotServiceRefreshCadence(t *testing.T) {
	metrics := &mockMetrics{}
	metrics.On("FundingRate", mock.Anything, "BTCUSDT").Return(0.01, nil)
	metrics.On("LongShortRatio", mock.Anything, "BTCUSDT").Return(62.0, 38.0, nil)
	metrics.On("OpenInterestChange", mock.Anything, "BTCUSDT").Return(1.5, 4.0, nil)
	metrics.On("LiquidationVolumes", mock.Anything, "BTCUSDT").Return(0.0, 0.0, nil)

	svc := NewSnapshotService(metrics, nil, nil, 5)

	snap := svc.Refresh(context.Background(), "btcusdt", 0)
	assert.InDelta(t, 62.0, snap.LongRatio, 1e-9)

	// Cycles 1-4 serve the cache; cycle 5 hits the feeds again.
	for cycle := 1; cycle <= 4; cycle++ {
		svc.Refresh(context.Background(), "BTCUSDT", cycle)
	}
	metrics.AssertNumberOfCalls(t, "FundingRate", 1)
	svc.Refresh(context.Background(), "BTCUSDT", 5)
	metrics.AssertNumberOfCalls(t, "FundingRate", 2)
}

func TestSnapshotServiceDegradesOnFeedError(t *testing.T) {
	metrics := &mockMetrics{}
	metrics.On("FundingRate", mock.Anything, "ETHUSDT").Return(0.0, ErrDataUnavailable)
	metrics.On("LongShortRatio", mock.Anything, "ETHUSDT").Return(0.0, 0.0, ErrDataUnavailable)
	metrics.On("OpenInterestChange", mock.Anything, "ETHUSDT").Return(0.0, 0.0, ErrDataUnavailable)
	metrics.On("LiquidationVolumes", mock.Anything, "ETHUSDT").Return(0.0, 0.0, ErrDataUnavailable)

	svc := NewSnapshotService(metrics, nil, nil, 5)
	snap := svc.Refresh(context.Background(), "ETHUSDT", 0)

	// Feeds failed, yet the snapshot is total and neutral.
	require.Equal(t, 50, snap.FearGreed)
	assert.InDelta(t, 50.0, snap.LongRatio, 1e-9)
	assert.Equal(t, ModeNormal, snap.MarketMode)

	cached, ok := svc.Get("ETHUSDT")
	require.True(t, ok)
	assert.Equal(t, ModeNormal, cached.MarketMode)
}
