package strategy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"cryptoden/internal/analysis/indicator"
	"cryptoden/internal/logger"
	"cryptoden/internal/market"
	"cryptoden/internal/signal"
)

// ErrRateLimited marks an evaluation blocked by cooldown or a daily cap.
var ErrRateLimited = errors.New("signal rate limited")

// Options tunes engine-wide rate limiting.
type Options struct {
	Cooldown       time.Duration
	DailySignalCap int
	SignalTTL      time.Duration
}

func (o Options) withDefaults() Options {
	if o.Cooldown <= 0 {
		o.Cooldown = time.Hour
	}
	if o.DailySignalCap <= 0 {
		o.DailySignalCap = 15
	}
	if o.SignalTTL <= 0 {
		o.SignalTTL = 30 * time.Minute
	}
	return o
}

// Engine evaluates the definition table against live candles. Long setups
// are tried before short ones; the first fully satisfied definition wins.
type Engine struct {
	defs []Definition
	opts Options

	mu        sync.Mutex
	day       string
	total     int
	perDef    map[string]int
	lastFired map[string]time.Time
}

func NewEngine(defs []Definition, opts Options) *Engine {
	if len(defs) == 0 {
		defs = BuiltinDefinitions()
	}
	return &Engine{
		defs:      defs,
		opts:      opts.withDefaults(),
		perDef:    make(map[string]int),
		lastFired: make(map[string]time.Time),
	}
}

// Evaluate runs the setup table for one symbol. A nil record with a nil
// error means no setup matched; ErrRateLimited and ErrInsufficientData
// distinguish the other non-signal outcomes, and an invalid price reports
// ErrDataUnavailable without evaluating anything.
func (e *Engine) Evaluate(ctx context.Context, symbol string, candles []market.Candle, price float64) (*signal.Record, error) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return nil, fmt.Errorf("%s price: %w", symbol, market.ErrDataUnavailable)
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	now := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rollDayLocked(now)

	if e.total >= e.opts.DailySignalCap {
		return nil, fmt.Errorf("engine daily cap %d: %w", e.opts.DailySignalCap, ErrRateLimited)
	}

	rateLimited := false
	skipped := 0
	evaluated := 0
	for _, direction := range []signal.Direction{signal.Long, signal.Short} {
		for _, def := range e.defs {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !def.Enabled || def.Symbol != symbol || def.Direction != direction {
				continue
			}
			if reason := e.rateLimitLocked(def, now); reason != "" {
				logger.Debugf("%s skipped: %s", def.ID, reason)
				rateLimited = true
				continue
			}
			matched, err := e.matches(def, candles, price)
			if err != nil {
				if errors.Is(err, indicator.ErrInsufficientData) {
					skipped++
					continue
				}
				logger.Warnf("definition %s unusable: %v", def.ID, err)
				continue
			}
			evaluated++
			if !matched {
				continue
			}
			rec := e.buildRecordLocked(def, price, now)
			logger.Infof("signal fired: %s %s %s entry=%.6f", def.ID, def.Symbol, def.Direction, price)
			return &rec, nil
		}
	}

	switch {
	case rateLimited:
		return nil, ErrRateLimited
	case skipped > 0 && evaluated == 0:
		return nil, indicator.ErrInsufficientData
	default:
		return nil, nil
	}
}

func (e *Engine) rollDayLocked(now time.Time) {
	day := now.UTC().Format("2006-01-02")
	if day == e.day {
		return
	}
	e.day = day
	e.total = 0
	e.perDef = make(map[string]int)
}

func (e *Engine) rateLimitLocked(def Definition, now time.Time) string {
	if e.perDef[def.ID] >= maxPerDay(def) {
		return "definition daily cap reached"
	}
	cooldown := e.opts.Cooldown
	if def.CooldownMinutes > 0 {
		cooldown = time.Duration(def.CooldownMinutes) * time.Minute
	}
	key := def.Symbol + "|" + string(def.Direction)
	if last, ok := e.lastFired[key]; ok && now.Sub(last) < cooldown {
		return "cooldown active"
	}
	return ""
}

func maxPerDay(def Definition) int {
	if def.MaxSignalsPerDay > 0 {
		return def.MaxSignalsPerDay
	}
	return 3
}

func (e *Engine) matches(def Definition, candles []market.Candle, price float64) (bool, error) {
	for _, cond := range def.Conditions {
		ok, err := evalCondition(cond, candles, price)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return len(def.Conditions) > 0, nil
}

func (e *Engine) buildRecordLocked(def Definition, price float64, now time.Time) signal.Record {
	rec := signal.New(def.Symbol, def.Direction, price, "worker")
	rec.Reason = def.Name
	rec.Confidence = def.WinRate / 100
	rec.ExpiresAt = now.Add(e.opts.SignalTTL)
	if def.Direction == signal.Long {
		rec.StopLoss = price * (1 - def.SLPercent/100)
		rec.TakeProfit = price * (1 + def.TPPercent/100)
	} else {
		rec.StopLoss = price * (1 + def.SLPercent/100)
		rec.TakeProfit = price * (1 - def.TPPercent/100)
	}
	e.total++
	e.perDef[def.ID]++
	e.lastFired[def.Symbol+"|"+string(def.Direction)] = now
	return rec
}

func evalCondition(c Condition, candles []market.Candle, price float64) (bool, error) {
	switch c.Indicator {
	case "rsi":
		v, err := indicator.RSI(candles, c.Period)
		if err != nil {
			return false, err
		}
		return compare(v, c.Operator, c.Threshold), nil
	case "price_vs_ema":
		ema, err := indicator.EMA(candles, c.Period)
		if err != nil {
			return false, err
		}
		return compare(price-ema, c.Operator, c.Threshold), nil
	case "stoch_k":
		v, err := indicator.StochK(candles, c.Period)
		if err != nil {
			return false, err
		}
		return compare(v, c.Operator, c.Threshold), nil
	case "stoch_overbought":
		v, err := indicator.StochK(candles, 14)
		if err != nil {
			return false, err
		}
		return v > c.Threshold, nil
	case "stoch_falling":
		curr, err := indicator.StochK(candles, 14)
		if err != nil {
			return false, err
		}
		prev, err := indicator.StochKPrev(candles, 14)
		if err != nil {
			return false, err
		}
		return boolMatch(curr < prev, c), nil
	case "macd_cross":
		dir, err := indicator.MACDCrossDirection(candles)
		if err != nil {
			return false, err
		}
		return compare(crossSign(dir), c.Operator, c.Threshold), nil
	case "macd_bearish":
		_, _, hist, err := indicator.MACD(candles)
		if err != nil {
			return false, err
		}
		return boolMatch(hist < 0, c), nil
	case "volume_spike":
		spike, err := indicator.VolumeSpike(candles, 20, c.Multiplier)
		if err != nil {
			return false, err
		}
		return boolMatch(spike, c), nil
	default:
		return false, fmt.Errorf("unknown indicator %q", c.Indicator)
	}
}

func compare(value float64, operator string, threshold float64) bool {
	switch operator {
	case "<":
		return value < threshold
	case ">":
		return value > threshold
	case "==":
		return value == threshold
	default:
		return false
	}
}

func boolMatch(actual bool, c Condition) bool {
	return actual == (c.Threshold != 0)
}

func crossSign(dir indicator.CrossDirection) float64 {
	switch dir {
	case indicator.CrossUp:
		return 1
	case indicator.CrossDown:
		return -1
	default:
		return 0
	}
}
