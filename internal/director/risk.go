// Package director implements the decision authority: risk scoring, the
// trading-mode arbiter and the override trader.
package director

import (
	"fmt"
	"math"

	"cryptoden/internal/market"
)

type RiskLevel string

const (
	RiskNormal   RiskLevel = "normal"
	RiskElevated RiskLevel = "elevated"
	RiskHigh     RiskLevel = "high"
	RiskExtreme  RiskLevel = "extreme"
)

// Score contributions and bucket boundaries. These values are load-bearing
// and verified by tests; do not tune casually.
const (
	scoreAlertCritical  = 40
	scoreAlertWarning   = 25
	scoreAlertAttention = 10

	scoreSkewHard = 20
	scoreSkewSoft = 15

	scoreFearHard = 15
	scoreFearSoft = 8

	scoreEventSoon = 20
	scoreWaitEvent = 15
	scoreNewsAlert = 10

	scoreFundingHard = 15
	scoreFundingMid  = 10
	scoreFundingSoft = 5

	scoreOIFast = 10
	scoreOISlow = 5

	bucketElevated = 25
	bucketHigh     = 45
	bucketExtreme  = 60
)

// RiskReading is the per-cycle risk assessment. Score is additive and not
// clamped; anything past the extreme boundary reads as "at least this bad".
type RiskReading struct {
	Score   int       `json:"score"`
	Level   RiskLevel `json:"level"`
	Factors []string  `json:"factors,omitempty"`
}

// Assessor converts snapshots into risk readings. Stateless.
type Assessor struct{}

func NewAssessor() *Assessor { return &Assessor{} }

// Assess is pure and total: the snapshot is normalized first, so missing
// fields read as neutral and no input can panic.
func (a *Assessor) Assess(snap market.Snapshot) RiskReading {
	snap = snap.Normalize()
	score := 0
	var factors []string
	add := func(points int, format string, args ...any) {
		score += points
		factors = append(factors, fmt.Sprintf("+%d "+format, append([]any{points}, args...)...))
	}

	switch snap.AlertLevel {
	case market.AlertCritical:
		add(scoreAlertCritical, "critical market alert")
	case market.AlertWarning:
		add(scoreAlertWarning, "warning market alert")
	case market.AlertAttention:
		add(scoreAlertAttention, "attention market alert")
	}

	switch {
	case snap.LongRatio > 75 || snap.LongRatio < 25:
		add(scoreSkewHard, "long/short skew %.1f%%", snap.LongRatio)
	case snap.LongRatio > 70 || snap.LongRatio < 30:
		add(scoreSkewSoft, "long/short skew %.1f%%", snap.LongRatio)
	}

	switch {
	case snap.FearGreed < 15 || snap.FearGreed > 85:
		add(scoreFearHard, "fear & greed %d", snap.FearGreed)
	case snap.FearGreed < 25 || snap.FearGreed > 75:
		add(scoreFearSoft, "fear & greed %d", snap.FearGreed)
	}

	switch {
	case snap.ImportantEventSoon:
		add(scoreEventSoon, "important event imminent: %s", snap.EventName)
	case snap.MarketMode == market.ModeWaitEvent:
		add(scoreWaitEvent, "waiting on scheduled event")
	case snap.MarketMode == market.ModeNewsAlert:
		add(scoreNewsAlert, "news alert mode")
	}

	funding := math.Abs(snap.FundingRate)
	switch {
	case funding > 0.15:
		add(scoreFundingHard, "funding rate %.3f%%", snap.FundingRate)
	case funding > 0.1:
		add(scoreFundingMid, "funding rate %.3f%%", snap.FundingRate)
	case funding > 0.05:
		add(scoreFundingSoft, "funding rate %.3f%%", snap.FundingRate)
	}

	oi := math.Abs(snap.OIChange1h)
	switch {
	case oi > 5:
		add(scoreOIFast, "open interest %+.1f%%/1h", snap.OIChange1h)
	case oi > 3:
		add(scoreOISlow, "open interest %+.1f%%/1h", snap.OIChange1h)
	}

	return RiskReading{Score: score, Level: bucket(score), Factors: factors}
}

func bucket(score int) RiskLevel {
	switch {
	case score >= bucketExtreme:
		return RiskExtreme
	case score >= bucketHigh:
		return RiskHigh
	case score >= bucketElevated:
		return RiskElevated
	default:
		return RiskNormal
	}
}
