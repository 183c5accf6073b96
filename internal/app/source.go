package app

import (
	"fmt"
	"time"

	"cryptoden/internal/director"
	"cryptoden/internal/gateway/notifier"
	"cryptoden/internal/grid"
	"cryptoden/internal/logger"
	"cryptoden/internal/signal"
	"cryptoden/internal/trade"
)

// The app itself backs the read-only HTTP API.

func (a *App) AuthorityView() director.AuthorityView {
	return a.authority.View()
}

func (a *App) RiskReading() director.RiskReading {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastRisk
}

func (a *App) Controlling() bool {
	return a.override.IsControlling()
}

func (a *App) ActiveTrades() []trade.Trade {
	out := a.workerTrades.Active()
	return append(out, a.override.ActiveTrades()...)
}

func (a *App) ClosedTrades(limit int) []trade.Trade {
	if a.deps.Store != nil {
		if closed, err := a.deps.Store.ListClosedTrades(limit); err == nil {
			return closed
		}
	}
	return a.workerTrades.History(limit)
}

func (a *App) GridLevels(symbol string) []grid.Level {
	return a.gridEngine.Levels(symbol)
}

func (a *App) GridStats() grid.Stats {
	return a.gridEngine.Stats()
}

func (a *App) SignalsToday() []signal.Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.signalDay != dayKey(time.Now()) {
		return nil
	}
	out := make([]signal.Record, len(a.signals))
	copy(out, a.signals)
	return out
}

func (a *App) recordRisk(reading director.RiskReading) {
	a.mu.Lock()
	a.lastRisk = reading
	a.mu.Unlock()
}

func (a *App) recordSignal(rec signal.Record) {
	day := dayKey(time.Now())
	a.mu.Lock()
	if a.signalDay != day {
		a.signalDay = day
		a.signals = a.signals[:0]
	}
	a.signals = append(a.signals, rec)
	a.mu.Unlock()
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func (a *App) notifyText(text string) {
	if err := a.deps.Notifier.SendText(text); err != nil {
		logger.Errorf("notification failed: %v", err)
	}
}

func (a *App) notifySignal(rec signal.Record) {
	icon := "📈"
	if rec.Direction == signal.Short {
		icon = "📉"
	}
	msg := notifier.StructuredMessage{
		Icon:  icon,
		Title: fmt.Sprintf("%s signal: %s %s", rec.Source, rec.Symbol, rec.Direction),
		Sections: []notifier.MessageSection{{
			Title: "Levels",
			Lines: []string{
				fmt.Sprintf("entry  %.4f", rec.EntryPrice),
				fmt.Sprintf("stop   %.4f", rec.StopLoss),
				fmt.Sprintf("target %.4f", rec.TakeProfit),
			},
		}},
		Footer:    rec.Reason,
		Timestamp: rec.GeneratedAt,
	}
	a.notifyText(msg.RenderMarkdown())
}

func (a *App) notifyClosed(t trade.Trade) {
	icon := "🟢"
	if t.RealizedPnL < 0 {
		icon = "🔴"
	}
	a.notifyText(fmt.Sprintf("%s closed %s %s reason=%s pnl=%.4f",
		icon, t.Symbol, t.Direction, t.CloseReason, t.RealizedPnL))
}
