// Package strategy implements the autonomous signal engine: a fixed table
// of per-symbol indicator conditions validated by backtest, evaluated
// against live candles under daily rate limits.
package strategy

import "cryptoden/internal/signal"

// Condition is one indicator comparison. Boolean indicators (volume_spike,
// stoch_falling, macd_bearish) treat Threshold != 0 as "expected true";
// macd_cross uses Threshold +1 for an upward cross and -1 for downward.
type Condition struct {
	Indicator  string  `json:"indicator"`
	Period     int     `json:"period,omitempty"`
	Operator   string  `json:"operator"`
	Threshold  float64 `json:"threshold"`
	Multiplier float64 `json:"multiplier,omitempty"`
}

// Definition is one tradeable setup. Read-only at runtime.
type Definition struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Symbol           string           `json:"symbol"`
	Direction        signal.Direction `json:"direction"`
	Conditions       []Condition      `json:"conditions"`
	TPPercent        float64          `json:"tp_percent"`
	SLPercent        float64          `json:"sl_percent"`
	Enabled          bool             `json:"enabled"`
	MaxSignalsPerDay int              `json:"max_signals_per_day"`
	CooldownMinutes  int              `json:"cooldown_minutes"`
	WinRate          float64          `json:"win_rate"`
}

// BuiltinDefinitions is the validated setup table. Percentages and
// thresholds come straight from backtest validation; treat as data.
func BuiltinDefinitions() []Definition {
	return []Definition{
		{
			ID: "btc_rsi_ema", Name: "RSI(14) < 30 + Price > EMA(21)",
			Symbol: "BTCUSDT", Direction: signal.Long,
			Conditions: []Condition{
				{Indicator: "rsi", Period: 14, Operator: "<", Threshold: 30},
				{Indicator: "price_vs_ema", Period: 21, Operator: ">", Threshold: 0},
			},
			TPPercent: 0.3, SLPercent: 0.5, Enabled: true,
			MaxSignalsPerDay: 2, WinRate: 65.0,
		},
		{
			ID: "eth_rsi_ema50", Name: "RSI(14) < 35 + Price > EMA(50)",
			Symbol: "ETHUSDT", Direction: signal.Long,
			Conditions: []Condition{
				{Indicator: "rsi", Period: 14, Operator: "<", Threshold: 35},
				{Indicator: "price_vs_ema", Period: 50, Operator: ">", Threshold: 0},
			},
			TPPercent: 0.3, SLPercent: 0.5, Enabled: true,
			MaxSignalsPerDay: 2, WinRate: 63.1,
		},
		{
			ID: "bnb_rsi_ema_volume", Name: "RSI<30 + Price>EMA50 + Volume Spike",
			Symbol: "BNBUSDT", Direction: signal.Long,
			Conditions: []Condition{
				{Indicator: "rsi", Period: 14, Operator: "<", Threshold: 30},
				{Indicator: "price_vs_ema", Period: 50, Operator: ">", Threshold: 0},
				{Indicator: "volume_spike", Operator: "==", Threshold: 1, Multiplier: 1.5},
			},
			TPPercent: 0.3, SLPercent: 0.5, Enabled: true,
			MaxSignalsPerDay: 3, WinRate: 71.5,
		},
		{
			ID: "sol_rsi_overbought", Name: "RSI(21) > 80",
			Symbol: "SOLUSDT", Direction: signal.Short,
			Conditions: []Condition{
				{Indicator: "rsi", Period: 21, Operator: ">", Threshold: 80},
			},
			TPPercent: 0.3, SLPercent: 0.5, Enabled: true,
			MaxSignalsPerDay: 2, WinRate: 65.0,
		},
		{
			ID: "xrp_rsi_overbought", Name: "RSI(14) > 80",
			Symbol: "XRPUSDT", Direction: signal.Short,
			Conditions: []Condition{
				{Indicator: "rsi", Period: 14, Operator: ">", Threshold: 80},
			},
			TPPercent: 0.3, SLPercent: 0.5, Enabled: true,
			MaxSignalsPerDay: 3, WinRate: 63.3,
		},
		{
			ID: "ada_rsi_ema", Name: "RSI(14) < 30 + Price > EMA(21)",
			Symbol: "ADAUSDT", Direction: signal.Long,
			Conditions: []Condition{
				{Indicator: "rsi", Period: 14, Operator: "<", Threshold: 30},
				{Indicator: "price_vs_ema", Period: 21, Operator: ">", Threshold: 0},
			},
			TPPercent: 0.3, SLPercent: 0.5, Enabled: true,
			MaxSignalsPerDay: 2, WinRate: 70.5,
		},
		{
			ID: "doge_stoch_macd", Name: "Stoch(14) < 25 + MACD Cross Up",
			Symbol: "DOGEUSDT", Direction: signal.Long,
			Conditions: []Condition{
				{Indicator: "stoch_k", Period: 14, Operator: "<", Threshold: 25},
				{Indicator: "macd_cross", Operator: "==", Threshold: 1},
			},
			TPPercent: 0.3, SLPercent: 0.5, Enabled: true,
			MaxSignalsPerDay: 3, WinRate: 67.6,
		},
		{
			ID: "matic_rsi_ema50", Name: "RSI(14) < 30 + Price > EMA(50)",
			Symbol: "MATICUSDT", Direction: signal.Long,
			Conditions: []Condition{
				{Indicator: "rsi", Period: 14, Operator: "<", Threshold: 30},
				{Indicator: "price_vs_ema", Period: 50, Operator: ">", Threshold: 0},
			},
			TPPercent: 0.3, SLPercent: 0.5,
			// no fresh validation data
			Enabled:          false,
			MaxSignalsPerDay: 2, WinRate: 68.8,
		},
		{
			ID: "link_rsi_ema50", Name: "RSI(14) < 30 + Price > EMA(50)",
			Symbol: "LINKUSDT", Direction: signal.Long,
			Conditions: []Condition{
				{Indicator: "rsi", Period: 14, Operator: "<", Threshold: 30},
				{Indicator: "price_vs_ema", Period: 50, Operator: ">", Threshold: 0},
			},
			TPPercent: 0.3, SLPercent: 0.5, Enabled: true,
			MaxSignalsPerDay: 2, WinRate: 66.7,
		},
		{
			ID: "avax_rsi_ema", Name: "RSI(14) < 30 + Price > EMA(21)",
			Symbol: "AVAXUSDT", Direction: signal.Long,
			Conditions: []Condition{
				{Indicator: "rsi", Period: 14, Operator: "<", Threshold: 30},
				{Indicator: "price_vs_ema", Period: 21, Operator: ">", Threshold: 0},
			},
			TPPercent: 0.3, SLPercent: 0.5, Enabled: true,
			MaxSignalsPerDay: 3, WinRate: 71.3,
		},

		{
			ID: "btc_stoch_reversal", Name: "Stoch Reversal Short",
			Symbol: "BTCUSDT", Direction: signal.Short,
			Conditions: []Condition{
				{Indicator: "stoch_overbought", Operator: ">", Threshold: 80},
				{Indicator: "stoch_falling", Operator: "==", Threshold: 1},
				{Indicator: "price_vs_ema", Period: 50, Operator: "<", Threshold: 0},
			},
			TPPercent: 0.3, SLPercent: 0.5, Enabled: true,
			MaxSignalsPerDay: 2, WinRate: 63.9,
		},
		{
			ID: "eth_stoch_reversal", Name: "Stoch Reversal Short",
			Symbol: "ETHUSDT", Direction: signal.Short,
			Conditions: []Condition{
				{Indicator: "stoch_overbought", Operator: ">", Threshold: 80},
				{Indicator: "stoch_falling", Operator: "==", Threshold: 1},
				{Indicator: "price_vs_ema", Period: 50, Operator: "<", Threshold: 0},
			},
			TPPercent: 0.3, SLPercent: 0.5, Enabled: true,
			MaxSignalsPerDay: 2, WinRate: 62.7,
		},
		{
			ID: "sol_stoch_reversal", Name: "Stoch Reversal Short",
			Symbol: "SOLUSDT", Direction: signal.Short,
			Conditions: []Condition{
				{Indicator: "stoch_overbought", Operator: ">", Threshold: 80},
				{Indicator: "stoch_falling", Operator: "==", Threshold: 1},
				{Indicator: "price_vs_ema", Period: 50, Operator: "<", Threshold: 0},
			},
			TPPercent: 0.3, SLPercent: 0.5, Enabled: true,
			MaxSignalsPerDay: 2, WinRate: 67.2,
		},
		{
			ID: "ada_stoch_reversal", Name: "Stoch Reversal Short",
			Symbol: "ADAUSDT", Direction: signal.Short,
			Conditions: []Condition{
				{Indicator: "stoch_overbought", Operator: ">", Threshold: 80},
				{Indicator: "stoch_falling", Operator: "==", Threshold: 1},
				{Indicator: "price_vs_ema", Period: 50, Operator: "<", Threshold: 0},
			},
			TPPercent: 0.3, SLPercent: 0.5, Enabled: true,
			MaxSignalsPerDay: 2, WinRate: 69.4,
		},
		{
			ID: "link_stoch_macd", Name: "Stoch + MACD Short",
			Symbol: "LINKUSDT", Direction: signal.Short,
			Conditions: []Condition{
				{Indicator: "stoch_overbought", Operator: ">", Threshold: 80},
				{Indicator: "macd_bearish", Operator: "==", Threshold: 1},
			},
			TPPercent: 0.3, SLPercent: 0.5, Enabled: true,
			MaxSignalsPerDay: 3, WinRate: 65.7,
		},
		{
			ID: "avax_stoch_reversal", Name: "Stoch Reversal Short",
			Symbol: "AVAXUSDT", Direction: signal.Short,
			Conditions: []Condition{
				{Indicator: "stoch_overbought", Operator: ">", Threshold: 80},
				{Indicator: "stoch_falling", Operator: "==", Threshold: 1},
				{Indicator: "price_vs_ema", Period: 50, Operator: "<", Threshold: 0},
			},
			TPPercent: 0.3, SLPercent: 0.5, Enabled: true,
			MaxSignalsPerDay: 2, WinRate: 65.9,
		},
		{
			ID: "bnb_rsi_macd", Name: "RSI>70 + MACD Short",
			Symbol: "BNBUSDT", Direction: signal.Short,
			Conditions: []Condition{
				{Indicator: "rsi", Period: 14, Operator: ">", Threshold: 70},
				{Indicator: "macd_bearish", Operator: "==", Threshold: 1},
			},
			TPPercent: 0.3, SLPercent: 0.5, Enabled: true,
			MaxSignalsPerDay: 2, WinRate: 66.2,
		},
	}
}
