package trade

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"cryptoden/internal/signal"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// CloseReason identifies what ended a trade.
type CloseReason string

const (
	CloseStopLoss     CloseReason = "stop_loss"
	CloseTakeProfit   CloseReason = "take_profit"
	CloseTrailingStop CloseReason = "trailing_stop"
	CloseTimeLimit    CloseReason = "time_limit"
	CloseManual       CloseReason = "manual"
	CloseNewsExit     CloseReason = "news_exit"
	CloseWhaleExit    CloseReason = "whale_exit"
)

// TrailingProfile sets when a trailing stop arms and how far it trails,
// both in percent of entry price.
type TrailingProfile struct {
	ActivationPercent float64
	DistancePercent   float64
}

var (
	// WorkerTrailing is the profile for strategy-engine trades.
	WorkerTrailing = TrailingProfile{ActivationPercent: 0.3, DistancePercent: 0.2}
	// DirectorTrailing trails wider for override trades.
	DirectorTrailing = TrailingProfile{ActivationPercent: 0.5, DistancePercent: 0.3}
)

// TrailingState is the per-trade trailing sub-state. Once armed, the stop
// price only ever tightens.
type TrailingState struct {
	Activated bool    `json:"activated"`
	BestPrice float64 `json:"best_price"`
	StopPrice float64 `json:"stop_price"`
}

// Trade is one open or closed position under lifecycle management.
type Trade struct {
	ID         string           `json:"id"`
	Symbol     string           `json:"symbol"`
	Direction  signal.Direction `json:"direction"`
	EntryPrice float64          `json:"entry_price"`
	Quantity   float64          `json:"quantity"`
	StopLoss   float64          `json:"stop_loss"`
	TakeProfit float64          `json:"take_profit"`
	Trailing   TrailingState    `json:"trailing"`
	Profile    TrailingProfile  `json:"-"`
	Source     string           `json:"source"`
	Status     Status           `json:"status"`
	OpenedAt   time.Time        `json:"opened_at"`
	MaxHold    time.Duration    `json:"max_hold"`

	LastPrice     float64 `json:"last_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`

	ClosedAt    time.Time   `json:"closed_at,omitempty"`
	ClosePrice  float64     `json:"close_price,omitempty"`
	CloseReason CloseReason `json:"close_reason,omitempty"`
	RealizedPnL float64     `json:"realized_pnl,omitempty"`
}

// New opens a trade from a signal record.
func New(rec signal.Record, quantity float64, profile TrailingProfile, maxHold time.Duration) *Trade {
	return &Trade{
		ID:         uuid.NewString(),
		Symbol:     strings.ToUpper(strings.TrimSpace(rec.Symbol)),
		Direction:  rec.Direction,
		EntryPrice: rec.EntryPrice,
		Quantity:   quantity,
		StopLoss:   rec.StopLoss,
		TakeProfit: rec.TakeProfit,
		Profile:    profile,
		Source:     rec.Source,
		Status:     StatusOpen,
		OpenedAt:   time.Now(),
		MaxHold:    maxHold,
		LastPrice:  rec.EntryPrice,
	}
}

func (t *Trade) IsOpen() bool {
	return t != nil && t.Status == StatusOpen
}

func (t *Trade) pnlAt(price float64) float64 {
	if t.Direction == signal.Short {
		return (t.EntryPrice - price) * t.Quantity
	}
	return (price - t.EntryPrice) * t.Quantity
}

// UpdatePrice folds one price observation into the trade. Invalid prices
// leave the trade untouched. When a close condition fires the trade
// transitions to closed exactly once and the winning reason is returned;
// condition order is stop loss, take profit, trailing stop, time limit.
func (t *Trade) UpdatePrice(price float64, now time.Time) (CloseReason, bool) {
	if !t.IsOpen() || price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return "", false
	}
	t.LastPrice = price
	t.UnrealizedPnL = t.pnlAt(price)
	t.updateTrailing(price)

	if reason, hit := t.closeTrigger(price, now); hit {
		t.close(price, reason, now)
		return reason, true
	}
	return "", false
}

// Profit at exactly the activation threshold must arm the trail; the
// division by entry can land a hair under the exact percentage.
const activationEpsilon = 1e-9

func (t *Trade) updateTrailing(price float64) {
	p := t.Profile
	if p.ActivationPercent <= 0 || p.DistancePercent <= 0 || t.EntryPrice <= 0 {
		return
	}
	dist := p.DistancePercent / 100
	if t.Direction == signal.Long {
		profitPct := (price - t.EntryPrice) / t.EntryPrice * 100
		if !t.Trailing.Activated {
			if profitPct+activationEpsilon < p.ActivationPercent {
				return
			}
			t.Trailing.Activated = true
			t.Trailing.BestPrice = price
			t.Trailing.StopPrice = price * (1 - dist)
			return
		}
		if price > t.Trailing.BestPrice {
			t.Trailing.BestPrice = price
			if stop := price * (1 - dist); stop > t.Trailing.StopPrice {
				t.Trailing.StopPrice = stop
			}
		}
		return
	}
	profitPct := (t.EntryPrice - price) / t.EntryPrice * 100
	if !t.Trailing.Activated {
		if profitPct+activationEpsilon < p.ActivationPercent {
			return
		}
		t.Trailing.Activated = true
		t.Trailing.BestPrice = price
		t.Trailing.StopPrice = price * (1 + dist)
		return
	}
	if price < t.Trailing.BestPrice {
		t.Trailing.BestPrice = price
		if stop := price * (1 + dist); stop < t.Trailing.StopPrice {
			t.Trailing.StopPrice = stop
		}
	}
}

func (t *Trade) closeTrigger(price float64, now time.Time) (CloseReason, bool) {
	long := t.Direction == signal.Long
	if t.StopLoss > 0 {
		if (long && price <= t.StopLoss) || (!long && price >= t.StopLoss) {
			return CloseStopLoss, true
		}
	}
	if t.TakeProfit > 0 {
		if (long && price >= t.TakeProfit) || (!long && price <= t.TakeProfit) {
			return CloseTakeProfit, true
		}
	}
	if t.Trailing.Activated {
		if (long && price <= t.Trailing.StopPrice) || (!long && price >= t.Trailing.StopPrice) {
			return CloseTrailingStop, true
		}
	}
	if t.MaxHold > 0 && now.Sub(t.OpenedAt) >= t.MaxHold {
		return CloseTimeLimit, true
	}
	return "", false
}

func (t *Trade) close(price float64, reason CloseReason, now time.Time) {
	t.Status = StatusClosed
	t.ClosedAt = now
	t.ClosePrice = price
	t.CloseReason = reason
	t.RealizedPnL = t.pnlAt(price)
	t.UnrealizedPnL = 0
}

// ForceClose closes the trade at price for an externally supplied reason.
// It is a no-op on an already closed trade.
func (t *Trade) ForceClose(price float64, reason CloseReason, now time.Time) bool {
	if !t.IsOpen() {
		return false
	}
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		price = t.LastPrice
	}
	t.close(price, reason, now)
	return true
}
