package grid

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"cryptoden/internal/logger"
	"cryptoden/internal/market"
)

// OrderPlacer is the slice of exchange behavior the ladder needs in real
// mode. Paper mode never touches it.
type OrderPlacer interface {
	PlaceLimitOrder(ctx context.Context, symbol string, side Side, price, quantity float64) (string, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	GetOrderStatus(ctx context.Context, symbol, orderID string) (string, error)
	ListOpenOrders(ctx context.Context, symbol string) ([]string, error)
	GetBalance(ctx context.Context, asset string) (float64, error)
}

// Exchange min notional; orders below this are rejected before placement.
const minOrderNotionalUSDT = 5.0

// Engine owns every symbol's ladder. All mutation goes through the mutex;
// exchange calls in real mode happen outside it.
type Engine struct {
	paper    bool
	exchange OrderPlacer

	mu       sync.Mutex
	defaults Config
	configs  map[string]Config
	levels   []*Level
	trips    []RoundTrip

	day         string
	totalTrades int
	totalProfit decimal.Decimal
	todayTrades int
	todayProfit decimal.Decimal
	lastTradeAt time.Time
}

func NewEngine(defaults Config, paper bool, exchange OrderPlacer) *Engine {
	if !paper && exchange == nil {
		logger.Warnf("grid: real mode without an exchange, falling back to paper")
		paper = true
	}
	return &Engine{
		paper:    paper,
		exchange: exchange,
		defaults: defaults.withDefaults(),
		configs:  make(map[string]Config),
	}
}

// SetConfig installs a per-symbol override. Missing fields are defaulted,
// so a partially-specified override is always fully valid.
func (e *Engine) SetConfig(symbol string, cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.configs[normalize(symbol)] = cfg.withDefaults()
}

func (e *Engine) configFor(symbol string) Config {
	if cfg, ok := e.configs[symbol]; ok {
		return cfg
	}
	return e.defaults
}

// Setup rebuilds the ladder around refPrice: GridCount/2 buy levels
// strictly below, GridCount/2 sell levels strictly above, one step apart.
// Existing unfilled levels for the symbol are discarded; filled ones stay
// for profit accounting.
func (e *Engine) Setup(symbol string, refPrice float64) error {
	if refPrice <= 0 || math.IsNaN(refPrice) || math.IsInf(refPrice, 0) {
		return fmt.Errorf("grid %s: reference price %v: %w", symbol, refPrice, market.ErrDataUnavailable)
	}
	symbol = normalize(symbol)

	e.mu.Lock()
	defer e.mu.Unlock()

	cfg := e.configFor(symbol)
	kept := e.levels[:0]
	for _, lv := range e.levels {
		if lv.Symbol != symbol || lv.Status == StatusFilled {
			kept = append(kept, lv)
		}
	}
	e.levels = kept

	step := cfg.GridStepPercent / 100
	now := time.Now()
	for i := 1; i <= cfg.GridCount/2; i++ {
		buyPrice := refPrice * (1 - step*float64(i))
		sellPrice := refPrice * (1 + step*float64(i))
		e.addLevelLocked(&Level{
			ID: newLevelID(), Symbol: symbol, Side: SideBuy,
			Price: buyPrice, Quantity: cfg.OrderSizeUSDT / buyPrice,
			Status: StatusPending, CreatedAt: now,
		})
		e.addLevelLocked(&Level{
			ID: newLevelID(), Symbol: symbol, Side: SideSell,
			Price: sellPrice, Quantity: cfg.OrderSizeUSDT / sellPrice,
			Status: StatusPending, CreatedAt: now,
		})
	}
	logger.Infof("grid %s: ladder rebuilt around %.4f (%d levels, step %.2f%%)",
		symbol, refPrice, (cfg.GridCount/2)*2, cfg.GridStepPercent)
	return nil
}

func (e *Engine) addLevelLocked(lv *Level) {
	if e.paper {
		lv.OrderID = "paper-" + lv.ID
		lv.Status = StatusOpen
	}
	e.levels = append(e.levels, lv)
}

// PlaceOrders submits every pending level for the symbol. Real mode only;
// in paper mode levels open at creation. A placement failure leaves the
// level pending for the next cycle.
func (e *Engine) PlaceOrders(ctx context.Context, symbol string) (int, error) {
	if e.paper {
		return 0, nil
	}
	symbol = normalize(symbol)

	e.mu.Lock()
	cfg := e.configFor(symbol)
	var pending []*Level
	active := 0
	for _, lv := range e.levels {
		if lv.Symbol != symbol {
			continue
		}
		switch lv.Status {
		case StatusPending:
			pending = append(pending, lv)
		case StatusOpen:
			active++
		}
	}
	e.mu.Unlock()

	if len(pending) == 0 {
		return 0, nil
	}
	if cfg.OrderSizeUSDT < minOrderNotionalUSDT {
		logger.Warnf("grid %s: order size %.2f below min notional, skipping placement", symbol, cfg.OrderSizeUSDT)
		return 0, nil
	}
	balance, err := e.exchange.GetBalance(ctx, "USDT")
	if err != nil {
		return 0, fmt.Errorf("grid %s: balance check: %w", symbol, err)
	}

	placed := 0
	for _, lv := range pending {
		if active+placed >= cfg.MaxOpenOrders {
			logger.Warnf("grid %s: max open orders (%d) reached, %d levels left pending",
				symbol, cfg.MaxOpenOrders, len(pending)-placed)
			break
		}
		if balance < cfg.OrderSizeUSDT*float64(placed+1) {
			logger.Warnf("grid %s: balance %.2f exhausted, %d levels left pending",
				symbol, balance, len(pending)-placed)
			break
		}
		orderID, err := e.exchange.PlaceLimitOrder(ctx, symbol, lv.Side, lv.Price, lv.Quantity)
		if err != nil {
			logger.Warnf("grid %s: place %s @ %.4f failed, will retry: %v", symbol, lv.Side, lv.Price, err)
			continue
		}
		e.mu.Lock()
		lv.OrderID = orderID
		lv.Status = StatusOpen
		e.mu.Unlock()
		placed++
	}
	return placed, nil
}

// SyncWithExchange reconciles open levels against the exchange's live
// order set. A level whose order vanished is resolved by its terminal
// status: filled spawns the counter-level, cancelled or rejected resets
// the level to pending for re-placement. Returns the levels resolved as
// filled. Real mode only.
func (e *Engine) SyncWithExchange(ctx context.Context, symbol string) ([]Level, error) {
	if e.paper {
		return nil, nil
	}
	symbol = normalize(symbol)

	openIDs, err := e.exchange.ListOpenOrders(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("grid %s: list open orders: %w", symbol, err)
	}
	live := make(map[string]bool, len(openIDs))
	for _, id := range openIDs {
		live[id] = true
	}

	e.mu.Lock()
	var stale []*Level
	for _, lv := range e.levels {
		if lv.Symbol == symbol && lv.Status == StatusOpen && lv.OrderID != "" && !live[lv.OrderID] {
			stale = append(stale, lv)
		}
	}
	e.mu.Unlock()

	var filled []Level
	for _, lv := range stale {
		status, err := e.exchange.GetOrderStatus(ctx, symbol, lv.OrderID)
		if err != nil {
			logger.Warnf("grid %s: status of order %s: %v", symbol, lv.OrderID, err)
			continue
		}
		e.mu.Lock()
		switch strings.ToUpper(status) {
		case "FILLED":
			e.fillLocked(lv, time.Now())
			filled = append(filled, *lv)
		case "CANCELED", "CANCELLED", "REJECTED", "EXPIRED":
			lv.Status = StatusPending
			lv.OrderID = ""
		}
		e.mu.Unlock()
	}
	return filled, nil
}

// CheckFills simulates fills against the latest tick: a buy level fills
// when price drops to or below it, a sell when price rises to or above.
// Fills are immediate and whole; each level fills at most once. Returns
// the levels filled by this tick. Paper mode only.
func (e *Engine) CheckFills(symbol string, price float64) []Level {
	if !e.paper || price <= 0 || math.IsNaN(price) {
		return nil
	}
	symbol = normalize(symbol)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	var fills []Level
	// Counter-levels spawned by a fill sit a full step away from the
	// filled price, so they cannot also cross on the same tick.
	snapshot := e.levels
	for _, lv := range snapshot {
		if lv.Symbol != symbol || lv.Status != StatusOpen {
			continue
		}
		crossed := (lv.Side == SideBuy && price <= lv.Price) ||
			(lv.Side == SideSell && price >= lv.Price)
		if !crossed {
			continue
		}
		e.fillLocked(lv, now)
		fills = append(fills, *lv)
	}
	return fills
}

// fillLocked marks the level filled and spawns its counter-level one grid
// step away: a filled buy spawns the linked sell that will realize the
// pair's profit; a filled sell with a link completes a round trip, and
// also re-seeds a fresh buy below to keep the ladder cycling.
func (e *Engine) fillLocked(lv *Level, now time.Time) {
	lv.Status = StatusFilled
	lv.FilledAt = now
	logger.Infof("grid %s: %s filled @ %.4f", lv.Symbol, strings.ToUpper(string(lv.Side)), lv.Price)

	cfg := e.configFor(lv.Symbol)
	step := cfg.GridStepPercent / 100
	if lv.Side == SideBuy {
		sellPrice := lv.Price * (1 + step)
		e.addLevelLocked(&Level{
			ID: newLevelID(), Symbol: lv.Symbol, Side: SideSell,
			Price: sellPrice, Quantity: lv.Quantity,
			Status: StatusPending, LinkedLevelID: lv.ID,
			ExpectedProfit: lv.Quantity * (sellPrice - lv.Price),
			CreatedAt:      now,
		})
		return
	}

	if lv.LinkedLevelID != "" {
		e.recordTripLocked(lv, now)
	}
	e.addLevelLocked(&Level{
		ID: newLevelID(), Symbol: lv.Symbol, Side: SideBuy,
		Price: lv.Price * (1 - step), Quantity: lv.Quantity,
		Status: StatusPending, CreatedAt: now,
	})
}

func (e *Engine) recordTripLocked(sell *Level, now time.Time) {
	var buy *Level
	for _, lv := range e.levels {
		if lv.ID == sell.LinkedLevelID {
			buy = lv
			break
		}
	}
	if buy == nil {
		logger.Warnf("grid %s: sell %s references missing buy %s", sell.Symbol, sell.ID, sell.LinkedLevelID)
		return
	}

	qty := decimal.NewFromFloat(sell.Quantity)
	profit := qty.Mul(decimal.NewFromFloat(sell.Price).Sub(decimal.NewFromFloat(buy.Price)))
	trip := RoundTrip{
		ID:            newLevelID(),
		Symbol:        sell.Symbol,
		BuyPrice:      buy.Price,
		SellPrice:     sell.Price,
		Quantity:      sell.Quantity,
		ProfitUSDT:    profit,
		ProfitPercent: (sell.Price - buy.Price) / buy.Price * 100,
		OpenedAt:      buy.FilledAt,
		ClosedAt:      now,
	}
	e.trips = append(e.trips, trip)

	e.rollDayLocked(now)
	e.totalTrades++
	e.totalProfit = e.totalProfit.Add(profit)
	e.todayTrades++
	e.todayProfit = e.todayProfit.Add(profit)
	e.lastTradeAt = now
	logger.Infof("grid %s: round trip closed %.4f -> %.4f, +%s USDT",
		sell.Symbol, buy.Price, sell.Price, profit.StringFixed(4))
}

func (e *Engine) rollDayLocked(now time.Time) {
	day := now.UTC().Format("2006-01-02")
	if day == e.day {
		return
	}
	e.day = day
	e.todayTrades = 0
	e.todayProfit = decimal.Zero
}

// CancelAll cancels every open and pending level for the symbol; with an
// empty symbol, for all symbols. Returns the number of levels cancelled.
func (e *Engine) CancelAll(ctx context.Context, symbol string) (int, error) {
	symbol = normalize(symbol)

	e.mu.Lock()
	var targets []*Level
	for _, lv := range e.levels {
		if symbol != "" && lv.Symbol != symbol {
			continue
		}
		if lv.Status == StatusOpen || lv.Status == StatusPending {
			targets = append(targets, lv)
		}
	}
	e.mu.Unlock()

	cancelled := 0
	for _, lv := range targets {
		if !e.paper && lv.OrderID != "" {
			if err := e.exchange.CancelOrder(ctx, lv.Symbol, lv.OrderID); err != nil {
				logger.Warnf("grid %s: cancel order %s: %v", lv.Symbol, lv.OrderID, err)
				continue
			}
		}
		e.mu.Lock()
		lv.Status = StatusCancelled
		e.mu.Unlock()
		cancelled++
	}
	if cancelled > 0 {
		logger.Infof("grid: cancelled %d levels", cancelled)
	}
	return cancelled, nil
}

// Levels returns copies of the symbol's current ladder.
func (e *Engine) Levels(symbol string) []Level {
	symbol = normalize(symbol)
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []Level
	for _, lv := range e.levels {
		if lv.Symbol == symbol {
			out = append(out, *lv)
		}
	}
	return out
}

// Restore seeds the ladder from persisted levels at startup.
func (e *Engine) Restore(levels []Level) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range levels {
		lv := levels[i]
		e.levels = append(e.levels, &lv)
	}
}

// RoundTrips returns the most recent completed cycles, newest last.
func (e *Engine) RoundTrips(limit int) []RoundTrip {
	e.mu.Lock()
	defer e.mu.Unlock()
	if limit <= 0 || limit > len(e.trips) {
		limit = len(e.trips)
	}
	out := make([]RoundTrip, limit)
	copy(out, e.trips[len(e.trips)-limit:])
	return out
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rollDayLocked(time.Now())

	s := Stats{
		TotalTrades:     e.totalTrades,
		TotalProfitUSDT: e.totalProfit,
		TodayTrades:     e.todayTrades,
		TodayProfitUSDT: e.todayProfit,
		LastTradeAt:     e.lastTradeAt,
	}
	for _, lv := range e.levels {
		switch lv.Status {
		case StatusPending:
			s.PendingLevels++
		case StatusOpen:
			s.OpenLevels++
		}
	}
	return s
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func newLevelID() string {
	return uuid.NewString()[:8]
}
