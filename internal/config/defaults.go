package config

import "strings"

const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultAppHTTPAddr     = ":8642"
	defaultAppLogPath      = "data/logs/cryptoden.log"
	defaultAppLoopSeconds  = 60
	defaultAppSettingsPath = "configs/settings.yaml"

	defaultExchangeMode = "paper"

	defaultMarketRefreshCycles = 5
	defaultMarketKlineInterval = "15m"
	defaultMarketKlineLimit    = 100

	defaultDirectorBalanceFraction = 0.2
	defaultDirectorMinNotional     = 50
	defaultDirectorStopLossPct     = 2
	defaultDirectorTakeProfitPct   = 4
	defaultDirectorMaxTrades       = 3
	defaultDirectorMaxPerSymbol    = 1
	defaultDirectorMonitorSeconds  = 10
	defaultDirectorNewsSeconds     = 60
	defaultDirectorMaxHoldHours    = 24
	defaultDirectorManualMinutes   = 60
	defaultDirectorCommandTTL      = 30

	defaultWorkerMaxOpenTrades  = 5
	defaultWorkerMaxPerSymbol   = 1
	defaultWorkerDailySignalCap = 15
	defaultWorkerCooldownMins   = 60
	defaultWorkerSignalTTLMins  = 30

	defaultGridCount      = 8
	defaultGridStepPct    = 0.5
	defaultGridOrderSize  = 50
	defaultGridProfitPct  = 0.3
	defaultGridMaxOrders  = 20

	defaultOracleTimeout = 30

	defaultStorePath = "data/cryptoden.db"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Exchange.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Director.applyDefaults(keys)
	c.Worker.applyDefaults(keys)
	c.Grid.applyDefaults(keys)
	c.Oracle.applyDefaults(keys)
	c.Store.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		stringFieldDefault("app.settings_path", &a.SettingsPath, defaultAppSettingsPath),
		fieldDefault{
			key:   "app.loop_interval_seconds",
			need:  func() bool { return a.LoopIntervalSeconds <= 0 },
			apply: func() { a.LoopIntervalSeconds = defaultAppLoopSeconds },
		},
	)
}

func (e *ExchangeConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("exchange.mode", &e.Mode, defaultExchangeMode),
	)
	e.Mode = strings.ToLower(strings.TrimSpace(e.Mode))
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("market.kline_interval", &m.KlineInterval, defaultMarketKlineInterval),
		fieldDefault{
			key:   "market.refresh_cycles",
			need:  func() bool { return m.RefreshCycles <= 0 },
			apply: func() { m.RefreshCycles = defaultMarketRefreshCycles },
		},
		fieldDefault{
			key:   "market.kline_limit",
			need:  func() bool { return m.KlineLimit <= 0 },
			apply: func() { m.KlineLimit = defaultMarketKlineLimit },
		},
	)
}

func (d *DirectorConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("director.enabled", &d.Enabled, true),
		fieldDefault{
			key:   "director.balance_fraction",
			need:  func() bool { return d.BalanceFraction <= 0 || d.BalanceFraction > 1 },
			apply: func() { d.BalanceFraction = defaultDirectorBalanceFraction },
		},
		fieldDefault{
			key:   "director.min_notional_usd",
			need:  func() bool { return d.MinNotionalUSD <= 0 },
			apply: func() { d.MinNotionalUSD = defaultDirectorMinNotional },
		},
		fieldDefault{
			key:   "director.stop_loss_percent",
			need:  func() bool { return d.StopLossPercent <= 0 },
			apply: func() { d.StopLossPercent = defaultDirectorStopLossPct },
		},
		fieldDefault{
			key:   "director.take_profit_percent",
			need:  func() bool { return d.TakeProfitPercent <= 0 },
			apply: func() { d.TakeProfitPercent = defaultDirectorTakeProfitPct },
		},
		fieldDefault{
			key:   "director.max_trades",
			need:  func() bool { return d.MaxTrades <= 0 },
			apply: func() { d.MaxTrades = defaultDirectorMaxTrades },
		},
		fieldDefault{
			key:   "director.max_per_symbol",
			need:  func() bool { return d.MaxPerSymbol <= 0 },
			apply: func() { d.MaxPerSymbol = defaultDirectorMaxPerSymbol },
		},
		fieldDefault{
			key:   "director.monitor_interval_seconds",
			need:  func() bool { return d.MonitorIntervalSeconds <= 0 },
			apply: func() { d.MonitorIntervalSeconds = defaultDirectorMonitorSeconds },
		},
		fieldDefault{
			key:   "director.news_check_interval_seconds",
			need:  func() bool { return d.NewsCheckIntervalSeconds <= 0 },
			apply: func() { d.NewsCheckIntervalSeconds = defaultDirectorNewsSeconds },
		},
		fieldDefault{
			key:   "director.max_hold_hours",
			need:  func() bool { return d.MaxHoldHours <= 0 },
			apply: func() { d.MaxHoldHours = defaultDirectorMaxHoldHours },
		},
		fieldDefault{
			key:   "director.manual_hold_minutes",
			need:  func() bool { return d.ManualHoldMinutes <= 0 },
			apply: func() { d.ManualHoldMinutes = defaultDirectorManualMinutes },
		},
		fieldDefault{
			key:   "director.command_ttl_minutes",
			need:  func() bool { return d.CommandTTLMinutes <= 0 },
			apply: func() { d.CommandTTLMinutes = defaultDirectorCommandTTL },
		},
	)
}

func (w *WorkerConfig) applyDefaults(keys keySet) {
	if w == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "worker.max_open_trades",
			need:  func() bool { return w.MaxOpenTrades <= 0 },
			apply: func() { w.MaxOpenTrades = defaultWorkerMaxOpenTrades },
		},
		fieldDefault{
			key:   "worker.max_per_symbol",
			need:  func() bool { return w.MaxPerSymbol <= 0 },
			apply: func() { w.MaxPerSymbol = defaultWorkerMaxPerSymbol },
		},
		fieldDefault{
			key:   "worker.daily_signal_cap",
			need:  func() bool { return w.DailySignalCap <= 0 },
			apply: func() { w.DailySignalCap = defaultWorkerDailySignalCap },
		},
		fieldDefault{
			key:   "worker.cooldown_minutes",
			need:  func() bool { return w.CooldownMinutes <= 0 },
			apply: func() { w.CooldownMinutes = defaultWorkerCooldownMins },
		},
		fieldDefault{
			key:   "worker.signal_ttl_minutes",
			need:  func() bool { return w.SignalTTLMinutes <= 0 },
			apply: func() { w.SignalTTLMinutes = defaultWorkerSignalTTLMins },
		},
	)
}

func (g *GridConfig) applyDefaults(keys keySet) {
	if g == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "grid.grid_count",
			need:  func() bool { return g.GridCount <= 0 },
			apply: func() { g.GridCount = defaultGridCount },
		},
		fieldDefault{
			key:   "grid.grid_step_percent",
			need:  func() bool { return g.GridStepPercent <= 0 },
			apply: func() { g.GridStepPercent = defaultGridStepPct },
		},
		fieldDefault{
			key:   "grid.order_size_usdt",
			need:  func() bool { return g.OrderSizeUSDT <= 0 },
			apply: func() { g.OrderSizeUSDT = defaultGridOrderSize },
		},
		fieldDefault{
			key:   "grid.profit_per_grid_percent",
			need:  func() bool { return g.ProfitPerGridPercent <= 0 },
			apply: func() { g.ProfitPerGridPercent = defaultGridProfitPct },
		},
		fieldDefault{
			key:   "grid.max_open_orders",
			need:  func() bool { return g.MaxOpenOrders <= 0 },
			apply: func() { g.MaxOpenOrders = defaultGridMaxOrders },
		},
	)
	if g.MinProfitUSDT < 0 {
		g.MinProfitUSDT = 0
	}
}

func (o *OracleConfig) applyDefaults(keys keySet) {
	if o == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "oracle.timeout_seconds",
			need:  func() bool { return o.TimeoutSeconds <= 0 },
			apply: func() { o.TimeoutSeconds = defaultOracleTimeout },
		},
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.path", &s.Path, defaultStorePath),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
