package director

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"cryptoden/internal/logger"
	"cryptoden/internal/market"
	"cryptoden/internal/signal"
	"cryptoden/internal/trade"
)

// ErrInsufficientBalance means the sized order would fall under the venue
// minimum, so no override trade is opened.
var ErrInsufficientBalance = errors.New("balance below minimum order size")

// Exchange is the venue slice the override trader needs.
type Exchange interface {
	GetPrice(ctx context.Context, symbol string) (float64, bool, error)
	GetBalance(ctx context.Context, asset string) (float64, error)
	PlaceMarketOrder(ctx context.Context, symbol string, direction signal.Direction, quantity float64) (string, error)
}

// SnapshotProvider serves cached market snapshots for exit re-checks.
type SnapshotProvider interface {
	Get(symbol string) (market.Snapshot, bool)
}

type overrideCondition struct {
	direction signal.Direction
	reason    string
	match     func(market.Snapshot) bool
}

// The take-control table. Order is priority: the first match wins even when
// several conditions hold at once.
var overrideConditions = []overrideCondition{
	{
		direction: signal.Long,
		reason:    "panic fear with bullish news and critical alerts",
		match: func(s market.Snapshot) bool {
			return s.FearGreed < 20 && s.NewsSentiment.Tone() == market.ToneBullish && s.CriticalNewsCount > 0
		},
	},
	{
		direction: signal.Short,
		reason:    "euphoric greed with bearish news and critical alerts",
		match: func(s market.Snapshot) bool {
			return s.FearGreed > 80 && s.NewsSentiment.Tone() == market.ToneBearish && s.CriticalNewsCount > 0
		},
	},
	{
		direction: signal.Long,
		reason:    "long liquidation cascade into deep fear",
		match: func(s market.Snapshot) bool {
			return s.LiquidationsLongUSD > 50e6 && s.FearGreed < 25
		},
	},
	{
		direction: signal.Short,
		reason:    "short liquidation cascade into greed",
		match: func(s market.Snapshot) bool {
			return s.LiquidationsShortUSD > 50e6 && s.FearGreed > 75
		},
	},
	{
		direction: signal.Short,
		reason:    "overheated funding with crowded longs",
		match: func(s market.Snapshot) bool {
			return s.FundingRate > 0.1 && s.LongRatio > 70
		},
	},
	{
		direction: signal.Long,
		reason:    "deeply negative funding with crowded shorts",
		match: func(s market.Snapshot) bool {
			return s.FundingRate < -0.1 && s.LongRatio < 30
		},
	},
	{
		direction: signal.Long,
		reason:    "capitulation fear with longs washed out",
		match: func(s market.Snapshot) bool {
			return s.FearGreed < 15 && s.LongRatio < 35
		},
	},
	{
		direction: signal.Short,
		reason:    "extreme greed with one-sided longs",
		match: func(s market.Snapshot) bool {
			return s.FearGreed > 85 && s.LongRatio > 65
		},
	},
}

// Options tunes the override trader. Zero fields take the documented
// defaults.
type Options struct {
	BalanceFraction   float64
	MinNotionalUSD    float64
	StopLossPercent   float64
	TakeProfitPercent float64
	MaxTrades         int
	MaxPerSymbol      int
	MonitorInterval   time.Duration
	NewsCheckInterval time.Duration
	MaxHold           time.Duration
}

func (o Options) withDefaults() Options {
	if o.BalanceFraction <= 0 || o.BalanceFraction > 1 {
		o.BalanceFraction = 0.2
	}
	if o.MinNotionalUSD <= 0 {
		o.MinNotionalUSD = 50
	}
	if o.StopLossPercent <= 0 {
		o.StopLossPercent = 2
	}
	if o.TakeProfitPercent <= 0 {
		o.TakeProfitPercent = 4
	}
	if o.MaxTrades <= 0 {
		o.MaxTrades = 3
	}
	if o.MaxPerSymbol <= 0 {
		o.MaxPerSymbol = 1
	}
	if o.MonitorInterval <= 0 {
		o.MonitorInterval = 10 * time.Second
	}
	if o.NewsCheckInterval <= 0 {
		o.NewsCheckInterval = time.Minute
	}
	if o.MaxHold <= 0 {
		o.MaxHold = 24 * time.Hour
	}
	return o
}

// OverrideTrader takes direct control of trading when one of the fixed
// market dislocations appears. Its trades are owned exclusively by its own
// monitor loops; the orchestrator only observes IsControlling.
type OverrideTrader struct {
	opts      Options
	exchange  Exchange
	snapshots SnapshotProvider
	trades    *trade.Manager
	onClose   func(trade.Trade)

	mu       sync.Mutex
	monitors map[string]context.CancelFunc
	wg       sync.WaitGroup
}

func NewOverrideTrader(opts Options, exchange Exchange, snapshots SnapshotProvider, persister trade.Persister) *OverrideTrader {
	opts = opts.withDefaults()
	return &OverrideTrader{
		opts:      opts,
		exchange:  exchange,
		snapshots: snapshots,
		trades: trade.NewManager(trade.Limits{
			MaxOpen:      opts.MaxTrades,
			MaxPerSymbol: opts.MaxPerSymbol,
		}, persister),
		monitors: make(map[string]context.CancelFunc),
	}
}

// OnClose registers a callback invoked once per finished override trade.
func (o *OverrideTrader) OnClose(fn func(trade.Trade)) {
	o.onClose = fn
}

// ShouldTakeControl evaluates the take-control table against the snapshot.
func (o *OverrideTrader) ShouldTakeControl(snap market.Snapshot) (bool, signal.Direction, string) {
	snap = snap.Normalize()
	for _, cond := range overrideConditions {
		if cond.match(snap) {
			return true, cond.direction, cond.reason
		}
	}
	return false, "", ""
}

// IsControlling reports whether any override trade is open. The
// orchestrator snapshots this once per tick.
func (o *OverrideTrader) IsControlling() bool {
	return o.trades.ActiveCount() > 0
}

// ActiveTrades returns copies of the open override trades.
func (o *OverrideTrader) ActiveTrades() []trade.Trade {
	return o.trades.Active()
}

// Execute opens an override trade sized at the configured balance fraction
// and hands it to a dedicated monitor loop.
func (o *OverrideTrader) Execute(ctx context.Context, symbol string, direction signal.Direction, reason string) (*trade.Trade, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if o.trades.ActiveCount() >= o.opts.MaxTrades {
		return nil, trade.ErrTradeLimit
	}
	if o.trades.HasOpenForSymbol(symbol) {
		return nil, trade.ErrSymbolLimit
	}

	price, ok, err := o.exchange.GetPrice(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("price for %s: %w", symbol, err)
	}
	if !ok || price <= 0 {
		return nil, fmt.Errorf("price for %s: %w", symbol, market.ErrDataUnavailable)
	}
	balance, err := o.exchange.GetBalance(ctx, "USDT")
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	notional := balance * o.opts.BalanceFraction
	if notional < o.opts.MinNotionalUSD {
		return nil, fmt.Errorf("%w: %.2f < %.2f", ErrInsufficientBalance, notional, o.opts.MinNotionalUSD)
	}
	quantity := notional / price

	if _, err := o.exchange.PlaceMarketOrder(ctx, symbol, direction, quantity); err != nil {
		return nil, fmt.Errorf("placing override order: %w", err)
	}

	rec := signal.New(symbol, direction, price, "director")
	rec.Reason = reason
	if direction == signal.Long {
		rec.StopLoss = price * (1 - o.opts.StopLossPercent/100)
		rec.TakeProfit = price * (1 + o.opts.TakeProfitPercent/100)
	} else {
		rec.StopLoss = price * (1 + o.opts.StopLossPercent/100)
		rec.TakeProfit = price * (1 - o.opts.TakeProfitPercent/100)
	}

	t, err := o.trades.OpenFromSignal(rec, quantity, trade.DirectorTrailing, o.opts.MaxHold)
	if err != nil {
		// The market order already filled. The exchange holds a position
		// this process is not tracking; the operator must reconcile it.
		logger.Errorf("override %s %s: order filled for qty %.6f but trade not tracked: %v",
			symbol, direction, quantity, err)
		return nil, fmt.Errorf("tracking override trade after fill: %w", err)
	}
	logger.Warnf("director taking control: %s %s (%s)", symbol, direction, reason)
	o.startMonitor(t)
	return t, nil
}

func (o *OverrideTrader) startMonitor(t *trade.Trade) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, running := o.monitors[t.ID]; running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	o.monitors[t.ID] = cancel
	o.wg.Add(1)
	go o.monitor(ctx, t.ID, t.Symbol)
}

func (o *OverrideTrader) stopMonitor(id string) {
	o.mu.Lock()
	cancel, ok := o.monitors[id]
	delete(o.monitors, id)
	o.mu.Unlock()
	if ok {
		cancel()
	}
}

// Stop cancels all monitor loops and waits for them to exit.
func (o *OverrideTrader) Stop() {
	o.mu.Lock()
	for id, cancel := range o.monitors {
		cancel()
		delete(o.monitors, id)
	}
	o.mu.Unlock()
	o.wg.Wait()
}

func (o *OverrideTrader) monitor(ctx context.Context, tradeID, symbol string) {
	defer o.wg.Done()
	ticker := time.NewTicker(o.opts.MonitorInterval)
	defer ticker.Stop()
	lastNewsCheck := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		price, ok, err := o.exchange.GetPrice(ctx, symbol)
		if err != nil || !ok || price <= 0 {
			logger.Debugf("override monitor %s: price unavailable", symbol)
			continue
		}
		for _, closed := range o.trades.UpdatePrices(map[string]float64{symbol: price}) {
			o.finish(closed)
		}
		current, open := o.findOpen(tradeID)
		if !open {
			o.stopMonitor(tradeID)
			return
		}

		snap, haveSnap := market.Snapshot{}, false
		if o.snapshots != nil {
			snap, haveSnap = o.snapshots.Get(symbol)
		}
		if haveSnap {
			if thesisInvalidated(current, snap) {
				o.forceExit(tradeID, price, trade.CloseWhaleExit)
				return
			}
			if time.Since(lastNewsCheck) >= o.opts.NewsCheckInterval {
				lastNewsCheck = time.Now()
				if newsAgainst(current, snap) {
					o.forceExit(tradeID, price, trade.CloseNewsExit)
					return
				}
			}
		}
	}
}

func (o *OverrideTrader) findOpen(id string) (trade.Trade, bool) {
	for _, t := range o.trades.Active() {
		if t.ID == id {
			return t, true
		}
	}
	return trade.Trade{}, false
}

func (o *OverrideTrader) forceExit(id string, price float64, reason trade.CloseReason) {
	closed, err := o.trades.ForceClose(id, price, reason)
	if err != nil {
		logger.Errorf("override exit %s failed: %v", id, err)
		o.stopMonitor(id)
		return
	}
	o.finish(*closed)
	o.stopMonitor(id)
}

func (o *OverrideTrader) finish(t trade.Trade) {
	o.stopMonitor(t.ID)
	if o.onClose != nil {
		o.onClose(t)
	}
}

// Stats exposes the override trade history summary.
func (o *OverrideTrader) Stats() trade.Stats {
	return o.trades.Stats()
}

// thesisInvalidated exits when positioning swings hard against the trade or
// open interest moves violently.
func thesisInvalidated(t trade.Trade, snap market.Snapshot) bool {
	snap = snap.Normalize()
	if math.Abs(snap.OIChange1h) > 10 {
		return true
	}
	if t.Direction == signal.Long {
		return snap.LongRatio > 75
	}
	return snap.LongRatio < 25
}

// newsAgainst exits when hot news flow turns against the position.
func newsAgainst(t trade.Trade, snap market.Snapshot) bool {
	snap = snap.Normalize()
	hot := snap.AlertLevel == market.AlertCritical ||
		snap.AlertLevel == market.AlertWarning ||
		snap.CriticalNewsCount > 0
	if !hot {
		return false
	}
	tone := snap.NewsSentiment.Tone()
	if t.Direction == signal.Long {
		return tone == market.ToneBearish
	}
	return tone == market.ToneBullish
}
