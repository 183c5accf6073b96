package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Exchange.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Director.validate(); err != nil {
		return err
	}
	if err := c.Worker.validate(); err != nil {
		return err
	}
	if err := c.Grid.validate(); err != nil {
		return err
	}
	if err := c.Oracle.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	if a.LoopIntervalSeconds < 5 {
		return fmt.Errorf("app.loop_interval_seconds must be >= 5")
	}
	return nil
}

func (e *ExchangeConfig) validate() error {
	switch e.Mode {
	case "paper":
		return nil
	case "live":
		if strings.TrimSpace(e.APIKey) == "" || strings.TrimSpace(e.APISecret) == "" {
			return fmt.Errorf("exchange.mode=live requires api_key and api_secret")
		}
		return nil
	default:
		return fmt.Errorf("exchange.mode only supports 'paper' or 'live', got %s", e.Mode)
	}
}

func (m *MarketConfig) validate() error {
	if m.RefreshCycles <= 0 {
		return fmt.Errorf("market.refresh_cycles must be > 0")
	}
	if !IsValidInterval(m.KlineInterval) {
		return fmt.Errorf("market.kline_interval is invalid: %s", m.KlineInterval)
	}
	if m.KlineLimit < 50 || m.KlineLimit > 1000 {
		return fmt.Errorf("market.kline_limit must be in [50,1000]")
	}
	return nil
}

func (d *DirectorConfig) validate() error {
	if d.BalanceFraction <= 0 || d.BalanceFraction > 1 {
		return fmt.Errorf("director.balance_fraction must be in (0, 1]")
	}
	if d.StopLossPercent <= 0 || d.TakeProfitPercent <= 0 {
		return fmt.Errorf("director stop/take-profit percents must be > 0")
	}
	if d.MaxPerSymbol > d.MaxTrades {
		return fmt.Errorf("director.max_per_symbol cannot exceed director.max_trades")
	}
	return nil
}

func (w *WorkerConfig) validate() error {
	if w.MaxPerSymbol > w.MaxOpenTrades {
		return fmt.Errorf("worker.max_per_symbol cannot exceed worker.max_open_trades")
	}
	return nil
}

func (g *GridConfig) validate() error {
	if g.GridStepPercent <= 0 || g.GridStepPercent >= 100 {
		return fmt.Errorf("grid.grid_step_percent must be in (0, 100)")
	}
	if g.ProfitPerGridPercent <= 0 {
		return fmt.Errorf("grid.profit_per_grid_percent must be > 0")
	}
	return nil
}

func (o *OracleConfig) validate() error {
	if !o.Enabled {
		return nil
	}
	if strings.TrimSpace(o.APIURL) == "" {
		return fmt.Errorf("oracle.api_url cannot be empty when enabled")
	}
	if strings.TrimSpace(o.Model) == "" {
		return fmt.Errorf("oracle.model cannot be empty when enabled")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == "" {
			return fmt.Errorf("telegram notification enabled but missing bot_token or chat_id")
		}
	}
	return nil
}

// IsValidInterval accepts digits followed by one of m/h/d/w.
func IsValidInterval(s string) bool {
	if len(s) < 2 {
		return false
	}
	suf := s[len(s)-1]
	if suf != 'm' && suf != 'h' && suf != 'd' && suf != 'w' {
		return false
	}
	for i := 0; i < len(s)-1; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
