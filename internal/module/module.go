// Package module gives every signal source one shape so the orchestrator
// iterates a list instead of branching on names.
package module

import (
	"context"

	"cryptoden/internal/market"
	"cryptoden/internal/signal"
)

// MarketView is the per-tick slice of market state handed to each module.
// Maps are keyed by symbol; a module must tolerate missing entries.
type MarketView struct {
	Prices    map[string]float64
	Candles   map[string][]market.Candle
	Snapshots map[string]market.Snapshot
}

// Module is one independently-evaluated signal source. Evaluate returns
// candidate signals only; acting on them (notify vs execute) is the
// orchestrator's call.
type Module interface {
	Name() string
	Evaluate(ctx context.Context, view MarketView) ([]signal.Record, error)
}
