package config

import "strings"

// Config is the main configuration carrier for cryptoden.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Market   MarketConfig   `mapstructure:"market"`
	Director DirectorConfig `mapstructure:"director"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Grid     GridConfig     `mapstructure:"grid"`
	Oracle   OracleConfig   `mapstructure:"oracle"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Store    StoreConfig    `mapstructure:"store"`
}

type AppConfig struct {
	Env                 string `mapstructure:"env"`
	LogLevel            string `mapstructure:"log_level"`
	HTTPAddr            string `mapstructure:"http_addr"`
	LogPath             string `mapstructure:"log_path"`
	LoopIntervalSeconds int    `mapstructure:"loop_interval_seconds"`
	SettingsPath        string `mapstructure:"settings_path"`
}

// ExchangeConfig selects the execution venue. Mode "paper" runs against the
// in-memory exchange; "live" talks to Binance futures.
type ExchangeConfig struct {
	Mode      string `mapstructure:"mode"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	Testnet   bool   `mapstructure:"testnet"`
}

func (e ExchangeConfig) IsLive() bool {
	return strings.EqualFold(strings.TrimSpace(e.Mode), "live")
}

type MarketConfig struct {
	RefreshCycles int    `mapstructure:"refresh_cycles"`
	KlineInterval string `mapstructure:"kline_interval"`
	KlineLimit    int    `mapstructure:"kline_limit"`
}

// DirectorConfig tunes the override trader and the authority arbiter.
type DirectorConfig struct {
	Enabled                  bool    `mapstructure:"enabled"`
	BalanceFraction          float64 `mapstructure:"balance_fraction"`
	MinNotionalUSD           float64 `mapstructure:"min_notional_usd"`
	StopLossPercent          float64 `mapstructure:"stop_loss_percent"`
	TakeProfitPercent        float64 `mapstructure:"take_profit_percent"`
	MaxTrades                int     `mapstructure:"max_trades"`
	MaxPerSymbol             int     `mapstructure:"max_per_symbol"`
	MonitorIntervalSeconds   int     `mapstructure:"monitor_interval_seconds"`
	NewsCheckIntervalSeconds int     `mapstructure:"news_check_interval_seconds"`
	MaxHoldHours             int     `mapstructure:"max_hold_hours"`
	ManualHoldMinutes        int     `mapstructure:"manual_hold_minutes"`
	CommandTTLMinutes        int     `mapstructure:"command_ttl_minutes"`
}

// WorkerConfig tunes the autonomous strategy engine and its trade manager.
type WorkerConfig struct {
	MaxOpenTrades    int `mapstructure:"max_open_trades"`
	MaxPerSymbol     int `mapstructure:"max_per_symbol"`
	DailySignalCap   int `mapstructure:"daily_signal_cap"`
	CooldownMinutes  int `mapstructure:"cooldown_minutes"`
	SignalTTLMinutes int `mapstructure:"signal_ttl_minutes"`
}

// GridConfig holds file-level grid defaults; per-symbol overrides come from
// the hot-reloaded settings document.
type GridConfig struct {
	Enabled              bool    `mapstructure:"enabled"`
	GridCount            int     `mapstructure:"grid_count"`
	GridStepPercent      float64 `mapstructure:"grid_step_percent"`
	OrderSizeUSDT        float64 `mapstructure:"order_size_usdt"`
	ProfitPerGridPercent float64 `mapstructure:"profit_per_grid_percent"`
	MaxOpenOrders        int     `mapstructure:"max_open_orders"`
	MinProfitUSDT        float64 `mapstructure:"min_profit_usdt"`
}

type OracleConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	APIURL         string `mapstructure:"api_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// keySet tracks the field paths explicitly present in the config file, so
// defaults never clobber an intentional zero value.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes the defaulting rule for a single field.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
