package director

import (
	"time"

	"cryptoden/internal/market"
)

type Decision string

const (
	DecisionContinue        Decision = "CONTINUE"
	DecisionCloseAll        Decision = "CLOSE_ALL"
	DecisionCloseLongs      Decision = "CLOSE_LONGS"
	DecisionCloseShorts     Decision = "CLOSE_SHORTS"
	DecisionPauseNew        Decision = "PAUSE_NEW"
	DecisionReduceSize      Decision = "REDUCE_SIZE"
	DecisionAggressiveLong  Decision = "AGGRESSIVE_LONG"
	DecisionAggressiveShort Decision = "AGGRESSIVE_SHORT"
)

// Command is one arbitration outcome. It stays actionable until ValidUntil.
type Command struct {
	Decision       Decision    `json:"decision"`
	Reason         string      `json:"reason"`
	Reading        RiskReading `json:"reading"`
	SizeMultiplier float64     `json:"size_multiplier"`
	AllowNewLongs  bool        `json:"allow_new_longs"`
	AllowNewShorts bool        `json:"allow_new_shorts"`
	IssuedAt       time.Time   `json:"issued_at"`
	ValidUntil     time.Time   `json:"valid_until"`
}

func (c Command) Valid(now time.Time) bool {
	return !c.ValidUntil.IsZero() && now.Before(c.ValidUntil)
}

// PositionSummary is the open-position view the arbiter decides against.
type PositionSummary struct {
	Longs  int
	Shorts int
}

// Arbiter maps risk readings onto system-wide trading commands.
type Arbiter struct {
	assessor   *Assessor
	commandTTL time.Duration
}

func NewArbiter(assessor *Assessor, commandTTL time.Duration) *Arbiter {
	if assessor == nil {
		assessor = NewAssessor()
	}
	if commandTTL <= 0 {
		commandTTL = 30 * time.Minute
	}
	return &Arbiter{assessor: assessor, commandTTL: commandTTL}
}

// Decide is deterministic: risk level drives the decision, with directional
// bias from funding sign and positioning skew at high risk, and a widened
// size under a rare contrarian opportunity at normal risk.
func (a *Arbiter) Decide(snap market.Snapshot, positions PositionSummary) Command {
	snap = snap.Normalize()
	reading := a.assessor.Assess(snap)
	now := time.Now()
	cmd := Command{
		Reading:        reading,
		SizeMultiplier: 1,
		AllowNewLongs:  true,
		AllowNewShorts: true,
		IssuedAt:       now,
		ValidUntil:     now.Add(a.commandTTL),
	}

	switch reading.Level {
	case RiskExtreme:
		cmd.Decision = DecisionCloseAll
		cmd.Reason = "extreme risk, flattening all exposure"
		cmd.SizeMultiplier = 0
		cmd.AllowNewLongs = false
		cmd.AllowNewShorts = false

	case RiskHigh:
		cmd.SizeMultiplier = 0
		cmd.AllowNewLongs = false
		cmd.AllowNewShorts = false
		switch {
		case snap.FundingRate > 0 && snap.LongRatio > 60 && positions.Longs > 0:
			cmd.Decision = DecisionCloseLongs
			cmd.Reason = "high risk with crowded longs paying funding"
		case snap.FundingRate < 0 && snap.LongRatio < 40 && positions.Shorts > 0:
			cmd.Decision = DecisionCloseShorts
			cmd.Reason = "high risk with crowded shorts paying funding"
		default:
			cmd.Decision = DecisionPauseNew
			cmd.Reason = "high risk, holding existing positions only"
		}

	case RiskElevated:
		cmd.Decision = DecisionReduceSize
		cmd.Reason = "elevated risk, halving position size"
		cmd.SizeMultiplier = 0.5

	default:
		switch {
		case snap.FearGreed < 25 && snap.LongRatio < 40:
			cmd.Decision = DecisionAggressiveLong
			cmd.Reason = "deep fear with thin long positioning"
			cmd.SizeMultiplier = 1.5
		case snap.FearGreed > 75 && snap.LongRatio > 60:
			cmd.Decision = DecisionAggressiveShort
			cmd.Reason = "greed with crowded long positioning"
			cmd.SizeMultiplier = 1.5
		default:
			cmd.Decision = DecisionContinue
			cmd.Reason = "risk normal"
		}
	}
	return cmd
}
