package module

import (
	"context"
	"fmt"
	"sort"

	"cryptoden/internal/grid"
	"cryptoden/internal/logger"
	"cryptoden/internal/signal"
)

// Grid adapts the ladder engine. Each tick it lazily sets up missing
// ladders, reconciles or simulates fills, and reports fills as signals
// so the notification path sees grid activity like any other module.
type Grid struct {
	engine *grid.Engine
	paper  bool
}

func NewGrid(engine *grid.Engine, paper bool) *Grid {
	return &Grid{engine: engine, paper: paper}
}

func (g *Grid) Name() string { return "grid" }

func (g *Grid) Evaluate(ctx context.Context, view MarketView) ([]signal.Record, error) {
	symbols := make([]string, 0, len(view.Prices))
	for symbol := range view.Prices {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	var out []signal.Record
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		price := view.Prices[symbol]

		if len(g.engine.Levels(symbol)) == 0 {
			if err := g.engine.Setup(symbol, price); err != nil {
				logger.Warnf("grid %s: setup skipped: %v", symbol, err)
				continue
			}
		}

		var fills []grid.Level
		if g.paper {
			fills = g.engine.CheckFills(symbol, price)
		} else {
			if _, err := g.engine.PlaceOrders(ctx, symbol); err != nil {
				logger.Warnf("grid %s: placement: %v", symbol, err)
			}
			synced, err := g.engine.SyncWithExchange(ctx, symbol)
			if err != nil {
				logger.Warnf("grid %s: sync: %v", symbol, err)
				continue
			}
			fills = synced
		}

		for _, lv := range fills {
			out = append(out, fillRecord(lv))
		}
	}
	return out, nil
}

func fillRecord(lv grid.Level) signal.Record {
	direction := signal.Long
	if lv.Side == grid.SideSell {
		direction = signal.Short
	}
	rec := signal.New(lv.Symbol, direction, lv.Price, "grid")
	rec.Reason = fmt.Sprintf("grid %s filled @ %.4f", lv.Side, lv.Price)
	rec.GeneratedAt = lv.FilledAt
	return rec
}
