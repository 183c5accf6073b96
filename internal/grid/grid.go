// Package grid implements the per-symbol price-ladder market maker: buy
// levels below a reference price, sell levels above, each fill spawning
// the paired counter-level one step away so every buy/sell pair captures
// one grid step of profit.
package grid

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config tunes one symbol's ladder. A zero value is usable: withDefaults
// fills every field, and applying it twice yields the same result.
type Config struct {
	GridCount            int     `json:"grid_count" mapstructure:"grid_count"`
	GridStepPercent      float64 `json:"grid_step_percent" mapstructure:"grid_step_percent"`
	OrderSizeUSDT        float64 `json:"order_size_usdt" mapstructure:"order_size_usdt"`
	ProfitPerGridPercent float64 `json:"profit_per_grid_percent" mapstructure:"profit_per_grid_percent"`
	MaxOpenOrders        int     `json:"max_open_orders" mapstructure:"max_open_orders"`
	MinProfitUSDT        float64 `json:"min_profit_usdt" mapstructure:"min_profit_usdt"`
	Enabled              bool    `json:"enabled" mapstructure:"enabled"`
}

func (c Config) withDefaults() Config {
	if c.GridCount <= 0 {
		c.GridCount = 8
	}
	if c.GridStepPercent <= 0 {
		c.GridStepPercent = 0.5
	}
	if c.OrderSizeUSDT <= 0 {
		c.OrderSizeUSDT = 50
	}
	if c.ProfitPerGridPercent <= 0 {
		c.ProfitPerGridPercent = 0.3
	}
	if c.MaxOpenOrders <= 0 {
		c.MaxOpenOrders = 20
	}
	if c.MinProfitUSDT <= 0 {
		c.MinProfitUSDT = 0.1
	}
	return c
}

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusOpen      Status = "open"
	StatusFilled    Status = "filled"
	StatusCancelled Status = "cancelled"
)

// Level is one rung of a symbol's ladder. OrderID is empty until the
// level is placed; LinkedLevelID points a spawned sell back at the buy
// whose fill created it.
type Level struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Side           Side      `json:"side"`
	Price          float64   `json:"price"`
	Quantity       float64   `json:"quantity"`
	Status         Status    `json:"status"`
	OrderID        string    `json:"order_id,omitempty"`
	LinkedLevelID  string    `json:"linked_level_id,omitempty"`
	ExpectedProfit float64   `json:"expected_profit"`
	CreatedAt      time.Time `json:"created_at"`
	FilledAt       time.Time `json:"filled_at,omitempty"`
}

// RoundTrip is one completed buy-low/sell-high cycle.
type RoundTrip struct {
	ID            string          `json:"id"`
	Symbol        string          `json:"symbol"`
	BuyPrice      float64         `json:"buy_price"`
	SellPrice     float64         `json:"sell_price"`
	Quantity      float64         `json:"quantity"`
	ProfitUSDT    decimal.Decimal `json:"profit_usdt"`
	ProfitPercent float64         `json:"profit_percent"`
	OpenedAt      time.Time       `json:"opened_at"`
	ClosedAt      time.Time       `json:"closed_at"`
}

// Stats aggregates realized results across all symbols. Today counters
// reset on UTC date change.
type Stats struct {
	TotalTrades     int             `json:"total_trades"`
	TotalProfitUSDT decimal.Decimal `json:"total_profit_usdt"`
	TodayTrades     int             `json:"today_trades"`
	TodayProfitUSDT decimal.Decimal `json:"today_profit_usdt"`
	PendingLevels   int             `json:"pending_levels"`
	OpenLevels      int             `json:"open_levels"`
	LastTradeAt     time.Time       `json:"last_trade_at,omitempty"`
}
