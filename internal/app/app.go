// Package app wires the modules together and drives the arbitration loop.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"cryptoden/internal/config"
	"cryptoden/internal/director"
	"cryptoden/internal/gateway/binance"
	"cryptoden/internal/gateway/exchange"
	"cryptoden/internal/gateway/notifier"
	"cryptoden/internal/gateway/paper"
	"cryptoden/internal/grid"
	"cryptoden/internal/logger"
	"cryptoden/internal/market"
	"cryptoden/internal/module"
	"cryptoden/internal/oracle"
	"cryptoden/internal/signal"
	"cryptoden/internal/store"
	"cryptoden/internal/store/gormstore"
	"cryptoden/internal/strategy"
	"cryptoden/internal/trade"
	httpapi "cryptoden/internal/transport/http"
)

// Fraction of the USDT balance committed to one worker trade before the
// authority size multiplier is applied.
const workerBalanceFraction = 0.05

const workerMaxHold = 24 * time.Hour

var defaultSymbols = []string{"BTCUSDT", "ETHUSDT"}

// CandleSource serves kline history for the worker's indicators.
type CandleSource interface {
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error)
}

// Deps carries the injectable edges of the orchestrator. Production wiring
// fills all of them from config; tests substitute fakes.
type Deps struct {
	Exchange  exchange.Client
	Candles   CandleSource
	Metrics   market.MetricsSource
	News      market.NewsSource
	FearGreed *market.FearGreedService
	Store     store.Store
	Notifier  notifier.TextNotifier
	Confirmer oracle.Confirmer
	Settings  *config.SettingsLoader
}

// App owns every long-lived component and the tick loop.
type App struct {
	cfg  *config.Config
	deps Deps

	paperEx      *paper.Exchange
	snapshots    *market.SnapshotService
	arbiter      *director.Arbiter
	authority    *director.Authority
	override     *director.OverrideTrader
	workerTrades *trade.Manager
	gridEngine   *grid.Engine
	gridDefaults grid.Config
	modules      []module.Module
	server       *httpapi.Server

	inFlight atomic.Bool
	cycle    int

	mu           sync.Mutex
	settingsSnap config.SettingsSnapshot
	lastRisk     director.RiskReading
	signalDay    string
	signals      []signal.Record
}

// New builds a fully wired App from config.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	deps := Deps{}

	source := binance.New(binance.Config{
		APIKey:    cfg.Exchange.APIKey,
		APISecret: cfg.Exchange.APISecret,
		Testnet:   cfg.Exchange.Testnet,
	})
	deps.Candles = source
	deps.Metrics = source
	deps.FearGreed = market.NewFearGreedService()

	var paperEx *paper.Exchange
	if cfg.Exchange.IsLive() {
		deps.Exchange = source
	} else {
		paperEx = paper.New(0)
		deps.Exchange = paperEx
	}

	if path := strings.TrimSpace(cfg.Store.Path); path != "" {
		st, err := gormstore.New(path)
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
		deps.Store = st
	}

	if cfg.Notify.Telegram.Enabled {
		deps.Notifier = notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
	} else {
		deps.Notifier = notifier.Nop{}
	}

	if cfg.Oracle.Enabled {
		deps.Confirmer = oracle.NewClient(cfg.Oracle.APIURL, cfg.Oracle.APIKey,
			cfg.Oracle.Model, time.Duration(cfg.Oracle.TimeoutSeconds)*time.Second)
	}

	if path := strings.TrimSpace(cfg.App.SettingsPath); path != "" {
		loader, err := config.NewSettingsLoader(path)
		if err != nil {
			return nil, fmt.Errorf("loading settings: %w", err)
		}
		deps.Settings = loader
	}

	a := newWithDeps(cfg, deps)
	a.paperEx = paperEx
	if err := a.restore(); err != nil {
		return nil, err
	}
	return a, nil
}

func newWithDeps(cfg *config.Config, deps Deps) *App {
	if deps.Notifier == nil {
		deps.Notifier = notifier.Nop{}
	}

	snapshots := market.NewSnapshotService(deps.Metrics, deps.News, deps.FearGreed, cfg.Market.RefreshCycles)

	workerTrades := trade.NewManager(trade.Limits{
		MaxOpen:      cfg.Worker.MaxOpenTrades,
		MaxPerSymbol: cfg.Worker.MaxPerSymbol,
	}, persisterOrNil(deps.Store))

	override := director.NewOverrideTrader(director.Options{
		BalanceFraction:   cfg.Director.BalanceFraction,
		MinNotionalUSD:    cfg.Director.MinNotionalUSD,
		StopLossPercent:   cfg.Director.StopLossPercent,
		TakeProfitPercent: cfg.Director.TakeProfitPercent,
		MaxTrades:         cfg.Director.MaxTrades,
		MaxPerSymbol:      cfg.Director.MaxPerSymbol,
		MonitorInterval:   time.Duration(cfg.Director.MonitorIntervalSeconds) * time.Second,
		NewsCheckInterval: time.Duration(cfg.Director.NewsCheckIntervalSeconds) * time.Second,
		MaxHold:           time.Duration(cfg.Director.MaxHoldHours) * time.Hour,
	}, deps.Exchange, snapshots, persisterOrNil(deps.Store))

	gridDefaults := grid.Config{
		GridCount:            cfg.Grid.GridCount,
		GridStepPercent:      cfg.Grid.GridStepPercent,
		OrderSizeUSDT:        cfg.Grid.OrderSizeUSDT,
		ProfitPerGridPercent: cfg.Grid.ProfitPerGridPercent,
		MaxOpenOrders:        cfg.Grid.MaxOpenOrders,
		MinProfitUSDT:        cfg.Grid.MinProfitUSDT,
		Enabled:              cfg.Grid.Enabled,
	}
	gridEngine := grid.NewEngine(gridDefaults, !cfg.Exchange.IsLive(), gridPlacer{ex: deps.Exchange})

	engine := strategy.NewEngine(nil, strategy.Options{
		Cooldown:       time.Duration(cfg.Worker.CooldownMinutes) * time.Minute,
		DailySignalCap: cfg.Worker.DailySignalCap,
		SignalTTL:      time.Duration(cfg.Worker.SignalTTLMinutes) * time.Minute,
	})

	a := &App{
		cfg:          cfg,
		deps:         deps,
		snapshots:    snapshots,
		arbiter:      director.NewArbiter(director.NewAssessor(), time.Duration(cfg.Director.CommandTTLMinutes)*time.Minute),
		authority:    director.NewAuthority(time.Duration(cfg.Director.ManualHoldMinutes) * time.Minute),
		override:     override,
		workerTrades: workerTrades,
		gridEngine:   gridEngine,
		gridDefaults: gridDefaults,
		modules: []module.Module{
			module.NewGrid(gridEngine, !cfg.Exchange.IsLive()),
			module.NewWorker(engine),
		},
	}
	a.server = httpapi.NewServer(cfg.App.HTTPAddr, a)

	override.OnClose(a.notifyClosed)

	if deps.Settings != nil {
		deps.Settings.Subscribe(a.applySettings)
	}
	return a
}

func persisterOrNil(st store.Store) trade.Persister {
	if st == nil {
		return nil
	}
	return st
}

// restore reloads open trades and grid ladders from the store.
func (a *App) restore() error {
	if a.deps.Store == nil {
		return nil
	}
	open, err := a.deps.Store.ListOpenTrades()
	if err != nil {
		return fmt.Errorf("restoring open trades: %w", err)
	}
	var worker, overrides []trade.Trade
	for _, t := range open {
		if t.Source == "director" {
			overrides = append(overrides, t)
		} else {
			worker = append(worker, t)
		}
	}
	a.workerTrades.Restore(worker)
	if len(overrides) > 0 {
		logger.Warnf("found %d persisted director trades; they resume under worker management", len(overrides))
		a.workerTrades.Restore(overrides)
	}

	for _, symbol := range a.symbols() {
		levels, err := a.deps.Store.LoadGridLevels(symbol)
		if err != nil {
			return fmt.Errorf("restoring grid %s: %w", symbol, err)
		}
		a.gridEngine.Restore(levels)
	}
	if len(open) > 0 {
		logger.Infof("restored %d open trades from store", len(open))
	}
	return nil
}

// applySettings installs a fresh settings snapshot and rebuilds the
// per-symbol grid overrides on top of the file defaults.
func (a *App) applySettings(snap config.SettingsSnapshot) {
	a.mu.Lock()
	a.settingsSnap = snap
	a.mu.Unlock()

	for symbol, ov := range snap.Grid {
		cfg := a.gridDefaults
		if ov.GridCount > 0 {
			cfg.GridCount = ov.GridCount
		}
		if ov.GridStepPercent > 0 {
			cfg.GridStepPercent = ov.GridStepPercent
		}
		if ov.OrderSizeUSDT > 0 {
			cfg.OrderSizeUSDT = ov.OrderSizeUSDT
		}
		if ov.ProfitPerGridPercent > 0 {
			cfg.ProfitPerGridPercent = ov.ProfitPerGridPercent
		}
		if ov.MaxOpenOrders > 0 {
			cfg.MaxOpenOrders = ov.MaxOpenOrders
		}
		a.gridEngine.SetConfig(symbol, cfg)
	}
	logger.Infof("settings v%d applied: %d symbols", snap.Version, len(snap.Symbols))
}

func (a *App) settings() config.SettingsSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settingsSnap
}

func (a *App) symbols() []string {
	snap := a.settings()
	if len(snap.Symbols) > 0 {
		return snap.Symbols
	}
	return defaultSymbols
}

// Run drives the tick loop and the status server until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.server.Run(ctx) })
	g.Go(func() error { return a.loop(ctx) })
	err := g.Wait()
	a.override.Stop()
	if a.deps.Store != nil {
		if cerr := a.deps.Store.Close(); cerr != nil {
			logger.Errorf("closing store: %v", cerr)
		}
	}
	return err
}

func (a *App) loop(ctx context.Context) error {
	interval := time.Duration(a.cfg.App.LoopIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Infof("loop stopping")
			return nil
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

// gridPlacer narrows the exchange client to the ladder's order surface.
type gridPlacer struct {
	ex exchange.Client
}

func (p gridPlacer) PlaceLimitOrder(ctx context.Context, symbol string, side grid.Side, price, quantity float64) (string, error) {
	if p.ex == nil {
		return "", fmt.Errorf("no exchange configured")
	}
	return p.ex.PlaceLimitOrder(ctx, symbol, strings.ToUpper(string(side)), price, quantity)
}

func (p gridPlacer) CancelOrder(ctx context.Context, symbol, orderID string) error {
	if p.ex == nil {
		return fmt.Errorf("no exchange configured")
	}
	return p.ex.CancelOrder(ctx, symbol, orderID)
}

func (p gridPlacer) GetOrderStatus(ctx context.Context, symbol, orderID string) (string, error) {
	if p.ex == nil {
		return "", fmt.Errorf("no exchange configured")
	}
	return p.ex.GetOrderStatus(ctx, symbol, orderID)
}

func (p gridPlacer) ListOpenOrders(ctx context.Context, symbol string) ([]string, error) {
	if p.ex == nil {
		return nil, fmt.Errorf("no exchange configured")
	}
	return p.ex.ListOpenOrders(ctx, symbol)
}

func (p gridPlacer) GetBalance(ctx context.Context, asset string) (float64, error) {
	if p.ex == nil {
		return 0, fmt.Errorf("no exchange configured")
	}
	return p.ex.GetBalance(ctx, asset)
}
