package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoden/internal/config"
	"cryptoden/internal/director"
	"cryptoden/internal/gateway/paper"
	"cryptoden/internal/market"
	"cryptoden/internal/signal"
	"cryptoden/internal/trade"
)

// fakeMetrics returns a fixed dislocated derivatives picture.
type fakeMetrics struct {
	funding   float64
	longRatio float64
	oi1h      float64
}

func (f fakeMetrics) FundingRate(context.Context, string) (float64, error) {
	return f.funding, nil
}

func (f fakeMetrics) LongShortRatio(context.Context, string) (float64, float64, error) {
	return f.longRatio, 100 - f.longRatio, nil
}

func (f fakeMetrics) OpenInterestChange(context.Context, string) (float64, float64, error) {
	return f.oi1h, 0, nil
}

func (f fakeMetrics) LiquidationVolumes(context.Context, string) (float64, float64, error) {
	return 0, 0, nil
}

type fakeNews struct {
	alert market.AlertLevel
}

func (f fakeNews) Sentiment(context.Context) (market.Sentiment, error) {
	return market.Sentiment{Neutral: 1}, nil
}

func (f fakeNews) MarketState(context.Context) (market.MarketState, error) {
	return market.MarketState{Mode: market.ModeNormal, AlertLevel: f.alert}, nil
}

func testConfig(directorEnabled bool) *config.Config {
	return &config.Config{
		App:      config.AppConfig{LoopIntervalSeconds: 60},
		Exchange: config.ExchangeConfig{Mode: "paper"},
		Director: config.DirectorConfig{Enabled: directorEnabled},
		Worker:   config.WorkerConfig{MaxOpenTrades: 3},
	}
}

func testApp(t *testing.T, cfg *config.Config, metrics market.MetricsSource, news market.NewsSource) (*App, *paper.Exchange) {
	t.Helper()
	pe := paper.New(10_000)
	pe.UpdatePrice("BTCUSDT", 100)
	a := newWithDeps(cfg, Deps{
		Exchange: pe,
		Metrics:  metrics,
		News:     news,
	})
	a.paperEx = pe
	a.applySettings(config.SettingsSnapshot{
		Version: 1,
		Symbols: []string{"BTCUSDT"},
		Modules: map[string]config.ModuleSettings{
			"worker": {Enabled: true, Mode: "signal"},
		},
	})
	return a, pe
}

func openWorkerTrade(t *testing.T, a *App) *trade.Trade {
	t.Helper()
	rec := signal.New("BTCUSDT", signal.Long, 100, "worker")
	rec.StopLoss = 90
	rec.TakeProfit = 120
	tr, err := a.workerTrades.OpenFromSignal(rec, 1, trade.WorkerTrailing, time.Hour)
	require.NoError(t, err)
	return tr
}

func TestExtremeRiskFlattensAndLocksDown(t *testing.T) {
	// Critical alert (+40) plus hard skew (+20) plus hot funding (+15)
	// lands well past the extreme boundary.
	metrics := fakeMetrics{funding: 0.2, longRatio: 80, oi1h: 6}
	a, _ := testApp(t, testConfig(false), metrics, fakeNews{alert: market.AlertCritical})
	openWorkerTrade(t, a)

	a.tick(context.Background())

	reading := a.RiskReading()
	assert.Equal(t, director.RiskExtreme, reading.Level)

	view := a.AuthorityView()
	assert.Equal(t, director.ModeManual, view.Mode)
	assert.False(t, view.CanOpen(signal.Long))
	assert.False(t, view.CanOpen(signal.Short))

	assert.Equal(t, 0, a.workerTrades.ActiveCount())
	history := a.workerTrades.History(0)
	require.Len(t, history, 1)
	assert.Equal(t, trade.CloseManual, history[0].CloseReason)
}

func TestOverrideControlIdlesModules(t *testing.T) {
	metrics := fakeMetrics{funding: 0.2, longRatio: 80, oi1h: 6}
	a, pe := testApp(t, testConfig(true), metrics, fakeNews{alert: market.AlertCritical})
	defer a.override.Stop()

	_, err := a.override.Execute(context.Background(), "BTCUSDT", signal.Long, "test dislocation")
	require.NoError(t, err)
	require.True(t, a.Controlling())

	openWorkerTrade(t, a)
	pe.UpdatePrice("BTCUSDT", 85)
	a.tick(context.Background())

	// While the director holds control the tick skips arbitration and the
	// modules, but open worker trades are still managed: the stop at 90
	// fires even though the extreme reading is never computed.
	assert.Equal(t, 0, a.workerTrades.ActiveCount())
	history := a.workerTrades.History(0)
	require.Len(t, history, 1)
	assert.Equal(t, trade.CloseStopLoss, history[0].CloseReason)

	assert.Empty(t, a.SignalsToday())
	assert.Equal(t, 0, a.RiskReading().Score)
}

func TestHaltedAuthorityKeepsGridIdle(t *testing.T) {
	metrics := fakeMetrics{funding: 0.2, longRatio: 80, oi1h: 6}
	a, _ := testApp(t, testConfig(false), metrics, fakeNews{alert: market.AlertCritical})
	a.applySettings(config.SettingsSnapshot{
		Version: 2,
		Symbols: []string{"BTCUSDT"},
		Modules: map[string]config.ModuleSettings{
			"grid": {Enabled: true},
		},
	})

	a.tick(context.Background())

	// Manual mode stops the ladder before setup: no levels, no orders.
	assert.Equal(t, director.ModeManual, a.AuthorityView().Mode)
	assert.Empty(t, a.gridEngine.Levels("BTCUSDT"))
}

func TestCalmAuthorityBuildsGridLadder(t *testing.T) {
	a, _ := testApp(t, testConfig(false), fakeMetrics{longRatio: 50}, fakeNews{alert: market.AlertCalm})
	a.applySettings(config.SettingsSnapshot{
		Version: 2,
		Symbols: []string{"BTCUSDT"},
		Modules: map[string]config.ModuleSettings{
			"grid": {Enabled: true},
		},
	})

	a.tick(context.Background())

	assert.Equal(t, director.ModeAuto, a.AuthorityView().Mode)
	assert.NotEmpty(t, a.gridEngine.Levels("BTCUSDT"))
}

func TestOverlappingTickSkipped(t *testing.T) {
	a, _ := testApp(t, testConfig(false), fakeMetrics{longRatio: 50}, fakeNews{alert: market.AlertCalm})

	a.inFlight.Store(true)
	a.tick(context.Background())
	assert.Equal(t, 0, a.cycle)

	a.inFlight.Store(false)
	a.tick(context.Background())
	assert.Equal(t, 1, a.cycle)
}

func TestNormalRiskKeepsTrading(t *testing.T) {
	a, _ := testApp(t, testConfig(false), fakeMetrics{longRatio: 50}, fakeNews{alert: market.AlertCalm})
	tr := openWorkerTrade(t, a)

	a.tick(context.Background())

	view := a.AuthorityView()
	assert.Equal(t, director.ModeAuto, view.Mode)
	assert.True(t, view.CanOpen(signal.Long))
	assert.Equal(t, 1, a.workerTrades.ActiveCount())
	assert.Equal(t, "BTCUSDT", tr.Symbol)
}
