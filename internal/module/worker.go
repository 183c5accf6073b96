package module

import (
	"context"
	"errors"
	"sort"

	"cryptoden/internal/analysis/indicator"
	"cryptoden/internal/logger"
	"cryptoden/internal/market"
	"cryptoden/internal/signal"
	"cryptoden/internal/strategy"
)

// Worker adapts the autonomous strategy engine. Per-symbol evaluation
// failures are demoted to log lines; one bad feed never blocks the rest
// of the view.
type Worker struct {
	engine *strategy.Engine
}

func NewWorker(engine *strategy.Engine) *Worker {
	return &Worker{engine: engine}
}

func (w *Worker) Name() string { return "worker" }

func (w *Worker) Evaluate(ctx context.Context, view MarketView) ([]signal.Record, error) {
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
		rec, err := w.engine.Evaluate(ctx, symbol, view.Candles[symbol], view.Prices[symbol])
		switch {
		case err == nil:
		case errors.Is(err, strategy.ErrRateLimited):
			logger.Debugf("worker %s: rate limited", symbol)
			continue
		case errors.Is(err, indicator.ErrInsufficientData):
			logger.Debugf("worker %s: insufficient candle history", symbol)
			continue
		case errors.Is(err, market.ErrDataUnavailable):
			logger.Warnf("worker %s: data unavailable, skipping", symbol)
			continue
		default:
			logger.Warnf("worker %s: evaluation failed: %v", symbol, err)
			continue
		}
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}
