package trade

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cryptoden/internal/logger"
	"cryptoden/internal/signal"
)

var (
	// ErrTradeLimit means the global open-trade cap is reached.
	ErrTradeLimit = errors.New("open trade limit reached")
	// ErrSymbolLimit means the per-symbol cap is reached.
	ErrSymbolLimit = errors.New("symbol trade limit reached")
	// ErrSignalExpired means the signal's validity window has passed.
	ErrSignalExpired = errors.New("signal expired")
)

// Persister is the slice of the store the manager needs. A nil persister
// keeps everything in memory.
type Persister interface {
	SaveOpenTrade(t Trade) error
	DeleteOpenTrade(id string) error
	AppendClosedTrade(t Trade) error
}

type Limits struct {
	MaxOpen      int
	MaxPerSymbol int
}

// Stats summarizes closed-trade performance.
type Stats struct {
	Closed   int     `json:"closed"`
	Wins     int     `json:"wins"`
	Losses   int     `json:"losses"`
	TotalPnL float64 `json:"total_pnl"`
	WinRate  float64 `json:"win_rate"`
}

// Manager owns the active trade set and the closed history.
type Manager struct {
	limits    Limits
	persister Persister

	mu      sync.Mutex
	active  map[string]*Trade
	history []Trade
}

func NewManager(limits Limits, persister Persister) *Manager {
	if limits.MaxOpen <= 0 {
		limits.MaxOpen = 5
	}
	if limits.MaxPerSymbol <= 0 {
		limits.MaxPerSymbol = 1
	}
	return &Manager{
		limits:    limits,
		persister: persister,
		active:    make(map[string]*Trade),
	}
}

// Restore seeds the active set from persisted open trades at startup.
func (m *Manager) Restore(trades []Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range trades {
		t := trades[i]
		if t.Status != StatusOpen {
			continue
		}
		cp := t
		m.active[cp.ID] = &cp
	}
}

// OpenFromSignal opens a trade when limits and the signal's validity allow.
func (m *Manager) OpenFromSignal(rec signal.Record, quantity float64, profile TrailingProfile, maxHold time.Duration) (*Trade, error) {
	if rec.Expired(time.Now()) {
		return nil, ErrSignalExpired
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be > 0")
	}
	symbol := strings.ToUpper(strings.TrimSpace(rec.Symbol))

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.active) >= m.limits.MaxOpen {
		return nil, ErrTradeLimit
	}
	if m.countSymbolLocked(symbol) >= m.limits.MaxPerSymbol {
		return nil, ErrSymbolLimit
	}
	t := New(rec, quantity, profile, maxHold)
	m.active[t.ID] = t
	m.persistOpen(t)
	logger.Infof("trade opened: %s %s %s qty=%.6f entry=%.4f sl=%.4f tp=%.4f src=%s",
		t.ID[:8], t.Symbol, t.Direction, t.Quantity, t.EntryPrice, t.StopLoss, t.TakeProfit, t.Source)
	return t, nil
}

func (m *Manager) countSymbolLocked(symbol string) int {
	n := 0
	for _, t := range m.active {
		if t.Symbol == symbol {
			n++
		}
	}
	return n
}

// UpdatePrices folds the latest prices into every open trade and returns
// the trades closed by this pass. Symbols without a price are skipped.
func (m *Manager) UpdatePrices(prices map[string]float64) []Trade {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	var closed []Trade
	for id, t := range m.active {
		price, ok := prices[t.Symbol]
		if !ok {
			continue
		}
		if reason, done := t.UpdatePrice(price, now); done {
			logger.Infof("trade closed: %s %s %s reason=%s pnl=%.4f",
				id[:8], t.Symbol, t.Direction, reason, t.RealizedPnL)
			closed = append(closed, *t)
			m.retireLocked(t)
		}
	}
	return closed
}

// ForceClose closes one trade by id for an external reason.
func (m *Manager) ForceClose(id string, price float64, reason CloseReason) (*Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.active[id]
	if !ok {
		return nil, fmt.Errorf("trade not found: %s", id)
	}
	if !t.ForceClose(price, reason, time.Now()) {
		return nil, fmt.Errorf("trade already closed: %s", id)
	}
	logger.Infof("trade force-closed: %s %s reason=%s pnl=%.4f", id[:8], t.Symbol, reason, t.RealizedPnL)
	m.retireLocked(t)
	return t, nil
}

// ForceCloseDirection closes every open trade on one side. Trades whose
// symbols lack a price close at their last observed price.
func (m *Manager) ForceCloseDirection(direction signal.Direction, prices map[string]float64, reason CloseReason) []Trade {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	var closed []Trade
	for _, t := range m.active {
		if t.Direction != direction {
			continue
		}
		price := prices[t.Symbol]
		if t.ForceClose(price, reason, now) {
			closed = append(closed, *t)
			m.retireLocked(t)
		}
	}
	if len(closed) > 0 {
		logger.Infof("force-closed %d %s trades, reason=%s", len(closed), direction, reason)
	}
	return closed
}

// ForceCloseAll closes every open trade.
func (m *Manager) ForceCloseAll(prices map[string]float64, reason CloseReason) []Trade {
	longs := m.ForceCloseDirection(signal.Long, prices, reason)
	shorts := m.ForceCloseDirection(signal.Short, prices, reason)
	return append(longs, shorts...)
}

func (m *Manager) retireLocked(t *Trade) {
	delete(m.active, t.ID)
	m.history = append(m.history, *t)
	if m.persister != nil {
		if err := m.persister.DeleteOpenTrade(t.ID); err != nil {
			logger.Errorf("delete open trade %s failed: %v", t.ID, err)
		}
		if err := m.persister.AppendClosedTrade(*t); err != nil {
			logger.Errorf("append closed trade %s failed: %v", t.ID, err)
		}
	}
}

func (m *Manager) persistOpen(t *Trade) {
	if m.persister == nil {
		return
	}
	if err := m.persister.SaveOpenTrade(*t); err != nil {
		logger.Errorf("save open trade %s failed: %v", t.ID, err)
	}
}

// Active returns copies of the open trades.
func (m *Manager) Active() []Trade {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Trade, 0, len(m.active))
	for _, t := range m.active {
		out = append(out, *t)
	}
	return out
}

func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

func (m *Manager) HasOpenForSymbol(symbol string) bool {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countSymbolLocked(symbol) > 0
}

// History returns up to limit most recent closed trades, newest last.
func (m *Manager) History(limit int) []Trade {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.history) {
		limit = len(m.history)
	}
	out := make([]Trade, limit)
	copy(out, m.history[len(m.history)-limit:])
	return out
}

// Stats aggregates the closed history.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Stats{Closed: len(m.history)}
	for _, t := range m.history {
		s.TotalPnL += t.RealizedPnL
		if t.RealizedPnL > 0 {
			s.Wins++
		} else if t.RealizedPnL < 0 {
			s.Losses++
		}
	}
	if s.Closed > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Closed)
	}
	return s
}
