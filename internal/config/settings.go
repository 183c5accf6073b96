package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cryptoden/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ModuleSettings is the per-module runtime switch from the settings document.
// Mode "signal" only notifies; "auto" also opens positions.
type ModuleSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Mode    string `mapstructure:"mode"`
}

func (m ModuleSettings) AutoTrade() bool {
	return strings.EqualFold(strings.TrimSpace(m.Mode), "auto")
}

// GridOverride carries per-symbol grid parameter overrides. Zero fields fall
// back to the file-level grid defaults.
type GridOverride struct {
	GridCount            int     `mapstructure:"grid_count"`
	GridStepPercent      float64 `mapstructure:"grid_step_percent"`
	OrderSizeUSDT        float64 `mapstructure:"order_size_usdt"`
	ProfitPerGridPercent float64 `mapstructure:"profit_per_grid_percent"`
	MaxOpenOrders        int     `mapstructure:"max_open_orders"`
}

type settingsFile struct {
	Modules map[string]ModuleSettings `mapstructure:"modules"`
	Symbols []string                  `mapstructure:"symbols"`
	Grid    map[string]GridOverride   `mapstructure:"grid"`
}

// SettingsSnapshot is the read-only view handed to subscribers. Reload
// replaces the whole document; there is no partial apply.
type SettingsSnapshot struct {
	Version  int64
	LoadedAt time.Time
	Modules  map[string]ModuleSettings
	Symbols  []string
	Grid     map[string]GridOverride
}

// Module returns the settings for name, defaulting to disabled when absent.
func (s SettingsSnapshot) Module(name string) ModuleSettings {
	if len(s.Modules) == 0 {
		return ModuleSettings{}
	}
	return s.Modules[strings.ToLower(strings.TrimSpace(name))]
}

type SettingsListener func(SettingsSnapshot)

// SettingsLoader loads the module settings document and watches it for
// changes via fsnotify.
type SettingsLoader struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	snapshot  SettingsSnapshot
	listeners []SettingsListener
}

func NewSettingsLoader(path string) (*SettingsLoader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("settings loader requires path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read settings file failed: %w", err)
	}
	loader := &SettingsLoader{path: path, v: v}
	if err := loader.reload(); err != nil {
		return nil, err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := loader.reload(); err != nil {
			logger.Errorf("settings reload failed (%s): %v", evt.Name, err)
			return
		}
		loader.notify()
	})
	v.WatchConfig()
	return loader, nil
}

// Snapshot returns the current settings snapshot.
func (l *SettingsLoader) Snapshot() SettingsSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneSettings(l.snapshot)
}

// Subscribe registers a listener and immediately delivers the current
// snapshot to it.
func (l *SettingsLoader) Subscribe(fn SettingsListener) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.listeners = append(l.listeners, fn)
	snap := cloneSettings(l.snapshot)
	l.mu.Unlock()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("settings listener panic: %v", r)
			}
		}()
		fn(snap)
	}()
}

func (l *SettingsLoader) notify() {
	l.mu.RLock()
	snap := cloneSettings(l.snapshot)
	listeners := append([]SettingsListener(nil), l.listeners...)
	l.mu.RUnlock()
	for _, fn := range listeners {
		if fn == nil {
			continue
		}
		go func(cb SettingsListener) {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("settings listener panic: %v", r)
				}
			}()
			cb(snap)
		}(fn)
	}
}

func (l *SettingsLoader) reload() error {
	var file settingsFile
	if err := l.v.Unmarshal(&file); err != nil {
		return fmt.Errorf("parse settings file failed: %w", err)
	}
	modules := make(map[string]ModuleSettings, len(file.Modules))
	for name, ms := range file.Modules {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if strings.TrimSpace(ms.Mode) == "" {
			ms.Mode = "signal"
		}
		modules[key] = ms
	}
	grid := make(map[string]GridOverride, len(file.Grid))
	for sym, ov := range file.Grid {
		key := strings.ToUpper(strings.TrimSpace(sym))
		if key == "" {
			continue
		}
		grid[key] = ov
	}
	symbols := normalizeSymbols(file.Symbols)
	l.mu.Lock()
	l.snapshot = SettingsSnapshot{
		Version:  l.snapshot.Version + 1,
		LoadedAt: time.Now(),
		Modules:  modules,
		Symbols:  symbols,
		Grid:     grid,
	}
	l.mu.Unlock()
	logger.Infof("settings reloaded: %d modules, %d symbols (%s)",
		len(modules), len(symbols), filepath.Base(l.path))
	return nil
}

func normalizeSymbols(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, sym := range in {
		s := strings.ToUpper(strings.TrimSpace(sym))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func cloneSettings(src SettingsSnapshot) SettingsSnapshot {
	dst := SettingsSnapshot{
		Version:  src.Version,
		LoadedAt: src.LoadedAt,
		Modules:  make(map[string]ModuleSettings, len(src.Modules)),
		Symbols:  append([]string(nil), src.Symbols...),
		Grid:     make(map[string]GridOverride, len(src.Grid)),
	}
	for k, v := range src.Modules {
		dst.Modules[k] = v
	}
	for k, v := range src.Grid {
		dst.Grid[k] = v
	}
	return dst
}
