package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"cryptoden/internal/director"
	"cryptoden/internal/logger"
	"cryptoden/internal/market"
	"cryptoden/internal/module"
	"cryptoden/internal/oracle"
	"cryptoden/internal/signal"
	"cryptoden/internal/trade"
)

const confirmThreshold = 0.5

// tick is one full pass: gather the market view, arbitrate, then let the
// modules speak. A tick that overruns the interval makes the next one a
// no-op instead of stacking up.
func (a *App) tick(ctx context.Context) {
	if !a.inFlight.CompareAndSwap(false, true) {
		logger.Warnf("tick skipped: previous tick still running")
		return
	}
	defer a.inFlight.Store(false)

	a.cycle++
	symbols := a.symbols()
	view := a.buildView(ctx, symbols)
	if len(view.Prices) == 0 {
		logger.Warnf("tick %d: no prices available, skipping", a.cycle)
		return
	}

	// Open worker trades are managed every tick. Stops, targets, trailing
	// and time limits keep running no matter who holds authority.
	for _, closed := range a.workerTrades.UpdatePrices(view.Prices) {
		a.notifyClosed(closed)
	}

	// One controlling snapshot governs the rest of the tick. Director
	// trades are owned by their monitor loops; arbitration and signal
	// evaluation stand down while the director is in control.
	if a.override.IsControlling() {
		logger.Infof("tick %d: director in control, modules idle", a.cycle)
		a.persistGrid(symbols)
		return
	}

	primary := symbols[0]
	snap, haveSnap := view.Snapshots[primary]
	if haveSnap {
		cmd := a.arbiter.Decide(snap, a.positionSummary())
		authView := a.authority.Apply(cmd)
		a.recordRisk(cmd.Reading)
		a.actOnDecision(cmd, view.Prices)
		logger.Debugf("tick %d: %s (%s), mode=%s size=%.2f",
			a.cycle, cmd.Decision, cmd.Reason, authView.Mode, authView.SizeMultiplier)

		if a.maybeTakeControl(ctx, view) {
			a.persistGrid(symbols)
			return
		}
	} else {
		logger.Warnf("tick %d: no snapshot for %s, keeping last authority state", a.cycle, primary)
	}

	a.runModules(ctx, view)
	a.persistGrid(symbols)
}

// buildView assembles the per-tick market view. A symbol with no price is
// left out; modules tolerate the gap.
func (a *App) buildView(ctx context.Context, symbols []string) module.MarketView {
	view := module.MarketView{
		Prices:    make(map[string]float64, len(symbols)),
		Candles:   make(map[string][]market.Candle, len(symbols)),
		Snapshots: make(map[string]market.Snapshot, len(symbols)),
	}
	interval := a.cfg.Market.KlineInterval
	if interval == "" {
		interval = "1h"
	}
	limit := a.cfg.Market.KlineLimit
	if limit <= 0 {
		limit = 100
	}

	for _, symbol := range symbols {
		if a.deps.Exchange != nil {
			price, ok, err := a.deps.Exchange.GetPrice(ctx, symbol)
			if err != nil {
				logger.Warnf("price %s: %v", symbol, err)
			} else if ok && price > 0 {
				view.Prices[symbol] = price
			}
		}
		if _, have := view.Prices[symbol]; !have && a.deps.Candles != nil {
			// paper mode quotes from the data feed until a price is seeded
			if candles, err := a.deps.Candles.FetchCandles(ctx, symbol, interval, 1); err == nil && len(candles) > 0 {
				view.Prices[symbol] = candles[len(candles)-1].Close
			}
		}
		if price, have := view.Prices[symbol]; have && a.paperEx != nil {
			a.paperEx.UpdatePrice(symbol, price)
		}

		if a.deps.Candles != nil {
			candles, err := a.deps.Candles.FetchCandles(ctx, symbol, interval, limit)
			if err != nil {
				logger.Warnf("candles %s: %v", symbol, err)
			} else {
				view.Candles[symbol] = candles
			}
		}
		view.Snapshots[symbol] = a.snapshots.Refresh(ctx, symbol, a.cycle)
	}
	return view
}

func (a *App) positionSummary() director.PositionSummary {
	var sum director.PositionSummary
	for _, t := range a.workerTrades.Active() {
		if t.Direction == signal.Long {
			sum.Longs++
		} else {
			sum.Shorts++
		}
	}
	return sum
}

func (a *App) actOnDecision(cmd director.Command, prices map[string]float64) {
	var closed []trade.Trade
	switch cmd.Decision {
	case director.DecisionCloseAll:
		closed = a.workerTrades.ForceCloseAll(prices, trade.CloseManual)
	case director.DecisionCloseLongs:
		closed = a.workerTrades.ForceCloseDirection(signal.Long, prices, trade.CloseManual)
	case director.DecisionCloseShorts:
		closed = a.workerTrades.ForceCloseDirection(signal.Short, prices, trade.CloseManual)
	default:
		return
	}
	for _, t := range closed {
		a.notifyClosed(t)
	}
	if len(closed) > 0 {
		a.notifyText(fmt.Sprintf("⚠️ %s: closed %d trades (%s)", cmd.Decision, len(closed), cmd.Reason))
	}
}

// maybeTakeControl scans every snapshot against the override table and
// opens a director trade on the first confirmed match. Returns true when
// the director ends the tick in control.
func (a *App) maybeTakeControl(ctx context.Context, view module.MarketView) bool {
	if !a.cfg.Director.Enabled {
		return false
	}
	for _, symbol := range sortedSymbols(view.Prices) {
		snap, ok := view.Snapshots[symbol]
		if !ok {
			continue
		}
		take, direction, reason := a.override.ShouldTakeControl(snap)
		if !take {
			continue
		}
		if !a.confirmed(ctx, overridePrompt(symbol, direction, reason, snap), symbol) {
			continue
		}
		t, err := a.override.Execute(ctx, symbol, direction, reason)
		if err != nil {
			logger.Warnf("override %s %s rejected: %v", symbol, direction, err)
			continue
		}
		a.notifyText(fmt.Sprintf("🚨 director took control: %s %s @ %.4f\n%s",
			t.Symbol, t.Direction, t.EntryPrice, reason))
		return true
	}
	return a.override.IsControlling()
}

// runModules evaluates each module in order and routes its candidates
// through the authority filter and the per-module mode.
func (a *App) runModules(ctx context.Context, view module.MarketView) {
	settings := a.settings()
	authView := a.authority.View()

	for _, m := range a.modules {
		ms := settings.Module(m.Name())
		if !ms.Enabled {
			continue
		}
		// Grid evaluation places and fills orders; a halted authority
		// must stop it before it acts, not after.
		if m.Name() == "grid" && authView.Halted() {
			logger.Infof("grid idle: authority mode=%s", authView.Mode)
			continue
		}
		records, err := m.Evaluate(ctx, view)
		if err != nil {
			logger.Warnf("module %s: %v", m.Name(), err)
		}
		for _, rec := range records {
			a.recordSignal(rec)

			if rec.Source == "grid" {
				// grid fills already executed inside the ladder engine
				a.notifySignal(rec)
				continue
			}

			if !authView.CanOpen(rec.Direction) {
				logger.Infof("signal %s %s suppressed: authority mode=%s", rec.Symbol, rec.Direction, authView.Mode)
				continue
			}
			a.notifySignal(rec)
			if !ms.AutoTrade() {
				continue
			}
			if !a.confirmed(ctx, signalPrompt(rec, view.Snapshots[rec.Symbol]), rec.Symbol) {
				continue
			}
			a.openFromSignal(ctx, rec, authView)
		}
	}
}

func (a *App) openFromSignal(ctx context.Context, rec signal.Record, authView director.AuthorityView) {
	price, have := rec.EntryPrice, rec.EntryPrice > 0
	if !have {
		logger.Warnf("signal %s has no entry price, dropped", rec.Symbol)
		return
	}
	balance, err := a.deps.Exchange.GetBalance(ctx, "USDT")
	if err != nil {
		logger.Warnf("balance unavailable, signal %s not executed: %v", rec.Symbol, err)
		return
	}
	notional := balance * workerBalanceFraction * authView.SizeMultiplier
	if notional < 10 {
		logger.Infof("signal %s not executed: sized notional %.2f below minimum", rec.Symbol, notional)
		return
	}
	quantity := notional / price

	if _, err := a.deps.Exchange.PlaceMarketOrder(ctx, rec.Symbol, rec.Direction, quantity); err != nil {
		logger.Errorf("order %s %s failed: %v", rec.Symbol, rec.Direction, err)
		return
	}
	t, err := a.workerTrades.OpenFromSignal(rec, quantity, trade.WorkerTrailing, workerMaxHold)
	if err != nil {
		logger.Errorf("trade open %s failed after fill: %v", rec.Symbol, err)
		return
	}
	a.notifyText(fmt.Sprintf("✅ opened %s %s qty=%.6f @ %.4f", t.Symbol, t.Direction, t.Quantity, t.EntryPrice))
}

// confirmed asks the oracle to vet a proposed action. A missing confirmer
// approves everything; any oracle failure counts as "no confirmation" and
// only skips this symbol for this tick.
func (a *App) confirmed(ctx context.Context, prompt oracle.Prompt, symbol string) bool {
	if a.deps.Confirmer == nil {
		return true
	}
	conf, err := a.deps.Confirmer.Confirm(ctx, prompt)
	if err != nil {
		logger.Warnf("oracle unavailable for %s, skipping this tick: %v", symbol, err)
		return false
	}
	approved := false
	switch strings.ToLower(strings.TrimSpace(conf.Action)) {
	case "confirm", "approve", "open", "execute", "yes":
		approved = conf.Confidence >= confirmThreshold
	}
	if !approved {
		logger.Infof("oracle declined %s: action=%s confidence=%.2f (%s)",
			symbol, conf.Action, conf.Confidence, conf.Reasoning)
	}
	return approved
}

func (a *App) persistGrid(symbols []string) {
	if a.deps.Store == nil {
		return
	}
	for _, symbol := range symbols {
		if err := a.deps.Store.SaveGridLevels(symbol, a.gridEngine.Levels(symbol)); err != nil {
			logger.Errorf("persisting grid %s: %v", symbol, err)
		}
	}
}

func overridePrompt(symbol string, direction signal.Direction, reason string, snap market.Snapshot) oracle.Prompt {
	return oracle.Prompt{
		System: "You are a risk reviewer for a crypto futures trading system. " +
			"Reply with a JSON object {\"action\": \"confirm\"|\"reject\", \"confidence\": 0-1, \"reasoning\": \"...\"} and nothing else.",
		User: fmt.Sprintf(
			"The system wants to open an emergency %s position on %s.\nTrigger: %s\nFear&Greed: %d\nFunding rate: %.4f%%\nLong ratio: %.1f%%\nShould it proceed?",
			direction, symbol, reason, snap.FearGreed, snap.FundingRate, snap.LongRatio),
	}
}

func signalPrompt(rec signal.Record, snap market.Snapshot) oracle.Prompt {
	return oracle.Prompt{
		System: "You are a risk reviewer for a crypto futures trading system. " +
			"Reply with a JSON object {\"action\": \"confirm\"|\"reject\", \"confidence\": 0-1, \"reasoning\": \"...\"} and nothing else.",
		User: fmt.Sprintf(
			"Proposed trade: %s %s entry=%.4f stop=%.4f target=%.4f\nSetup: %s\nFear&Greed: %d\nFunding rate: %.4f%%\nLong ratio: %.1f%%\nShould it proceed?",
			rec.Symbol, rec.Direction, rec.EntryPrice, rec.StopLoss, rec.TakeProfit,
			rec.Reason, snap.FearGreed, snap.FundingRate, snap.LongRatio),
	}
}

func sortedSymbols(prices map[string]float64) []string {
	out := make([]string, 0, len(prices))
	for symbol := range prices {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}
