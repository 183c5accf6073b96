package director

import (
	"sync"
	"time"

	"cryptoden/internal/signal"
)

type Mode string

const (
	ModeAuto       Mode = "AUTO"
	ModeSupervised Mode = "SUPERVISED"
	ModeManual     Mode = "MANUAL"
	ModePaused     Mode = "PAUSED"
)

// AuthorityView is the read side of the authority state.
type AuthorityView struct {
	Mode           Mode      `json:"mode"`
	AllowNewLongs  bool      `json:"allow_new_longs"`
	AllowNewShorts bool      `json:"allow_new_shorts"`
	SizeMultiplier float64   `json:"size_multiplier"`
	Reason         string    `json:"reason"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Halted reports whether all new market activity is shut off, regardless
// of direction.
func (v AuthorityView) Halted() bool {
	return v.Mode == ModeManual || v.Mode == ModePaused || v.SizeMultiplier <= 0
}

func (v AuthorityView) CanOpen(direction signal.Direction) bool {
	if v.Halted() {
		return false
	}
	if direction == signal.Long {
		return v.AllowNewLongs
	}
	return v.AllowNewShorts
}

// Authority holds the single authoritative trading-permission state.
// Only the orchestrator writes it, by applying arbiter commands; everyone
// else reads snapshots. Manual mode sticks for manualHold before lower-risk
// commands can move the mode again.
type Authority struct {
	manualHold time.Duration

	mu          sync.RWMutex
	view        AuthorityView
	manualUntil time.Time
}

func NewAuthority(manualHold time.Duration) *Authority {
	if manualHold <= 0 {
		manualHold = time.Hour
	}
	return &Authority{
		manualHold: manualHold,
		view: AuthorityView{
			Mode:           ModeAuto,
			AllowNewLongs:  true,
			AllowNewShorts: true,
			SizeMultiplier: 1,
			UpdatedAt:      time.Now(),
		},
	}
}

// Apply folds an arbiter command into the state and returns the new view.
func (a *Authority) Apply(cmd Command) AuthorityView {
	now := time.Now()
	a.mu.Lock()
	defer a.mu.Unlock()

	held := a.view.Mode == ModeManual && now.Before(a.manualUntil)
	mode := modeFor(cmd.Reading.Level)
	if held && mode != ModeManual {
		// manual control window still open; keep the lockdown
		a.view.UpdatedAt = now
		return a.view
	}
	if mode == ModeManual {
		a.manualUntil = now.Add(a.manualHold)
	} else {
		a.manualUntil = time.Time{}
	}
	a.view = AuthorityView{
		Mode:           mode,
		AllowNewLongs:  cmd.AllowNewLongs,
		AllowNewShorts: cmd.AllowNewShorts,
		SizeMultiplier: cmd.SizeMultiplier,
		Reason:         cmd.Reason,
		UpdatedAt:      now,
	}
	return a.view
}

// Pause suspends all trading until Resume, regardless of risk level.
func (a *Authority) Pause(reason string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.view = AuthorityView{
		Mode:      ModePaused,
		Reason:    reason,
		UpdatedAt: time.Now(),
	}
}

func (a *Authority) Resume() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.manualUntil = time.Time{}
	a.view = AuthorityView{
		Mode:           ModeAuto,
		AllowNewLongs:  true,
		AllowNewShorts: true,
		SizeMultiplier: 1,
		Reason:         "resumed",
		UpdatedAt:      time.Now(),
	}
}

// View returns the current state snapshot.
func (a *Authority) View() AuthorityView {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.view
}

func modeFor(level RiskLevel) Mode {
	switch level {
	case RiskExtreme:
		return ModeManual
	case RiskHigh, RiskElevated:
		return ModeSupervised
	default:
		return ModeAuto
	}
}
