package director

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoden/internal/market"
	"cryptoden/internal/signal"
)

func TestDecideExtremeClosesAll(t *testing.T) {
	arb := NewArbiter(nil, 0)
	snap := market.Snapshot{
		AlertLevel: market.AlertCritical, // 40
		LongRatio:  80,                   // 20
		ShortRatio: 20,
	}
	cmd := arb.Decide(snap, PositionSummary{Longs: 2})
	assert.Equal(t, DecisionCloseAll, cmd.Decision)
	assert.Equal(t, RiskExtreme, cmd.Reading.Level)
	assert.Zero(t, cmd.SizeMultiplier)
	assert.False(t, cmd.AllowNewLongs)
	assert.False(t, cmd.AllowNewShorts)
	assert.True(t, cmd.Valid(time.Now()))
	assert.False(t, cmd.Valid(time.Now().Add(31*time.Minute)))
}

func TestDecideHighBiasesAgainstCrowdedSide(t *testing.T) {
	arb := NewArbiter(nil, 0)
	snap := market.Snapshot{
		AlertLevel:  market.AlertWarning, // 25
		LongRatio:   76,                  // 20
		ShortRatio:  24,
		FundingRate: 0.08, // 5 -> score 50, high
	}
	cmd := arb.Decide(snap, PositionSummary{Longs: 1})
	require.Equal(t, RiskHigh, cmd.Reading.Level)
	assert.Equal(t, DecisionCloseLongs, cmd.Decision)

	// Same risk but no open longs: nothing to close, just pause.
	cmd = arb.Decide(snap, PositionSummary{})
	assert.Equal(t, DecisionPauseNew, cmd.Decision)
}

func TestDecideElevatedHalvesSize(t *testing.T) {
	arb := NewArbiter(nil, 0)
	snap := market.Snapshot{
		AlertLevel: market.AlertWarning, // 25 -> elevated
	}
	cmd := arb.Decide(snap, PositionSummary{})
	require.Equal(t, RiskElevated, cmd.Reading.Level)
	assert.Equal(t, DecisionReduceSize, cmd.Decision)
	assert.InDelta(t, 0.5, cmd.SizeMultiplier, 1e-9)
	assert.True(t, cmd.AllowNewLongs)
	assert.True(t, cmd.AllowNewShorts)
}

func TestDecideNormalAndAggressiveOverride(t *testing.T) {
	arb := NewArbiter(nil, 0)

	cmd := arb.Decide(market.Snapshot{FearGreed: 50, LongRatio: 50, ShortRatio: 50}, PositionSummary{})
	assert.Equal(t, DecisionContinue, cmd.Decision)
	assert.InDelta(t, 1.0, cmd.SizeMultiplier, 1e-9)

	// Deep fear with thin longs at otherwise normal risk widens size.
	cmd = arb.Decide(market.Snapshot{FearGreed: 24, LongRatio: 38, ShortRatio: 62}, PositionSummary{})
	require.Equal(t, RiskNormal, cmd.Reading.Level)
	assert.Equal(t, DecisionAggressiveLong, cmd.Decision)
	assert.InDelta(t, 1.5, cmd.SizeMultiplier, 1e-9)
}

func TestAuthorityManualHold(t *testing.T) {
	auth := NewAuthority(time.Hour)
	arb := NewArbiter(nil, 0)

	extreme := arb.Decide(market.Snapshot{
		AlertLevel: market.AlertCritical,
		LongRatio:  80, ShortRatio: 20,
	}, PositionSummary{})
	view := auth.Apply(extreme)
	require.Equal(t, ModeManual, view.Mode)
	assert.False(t, view.CanOpen(signal.Long))
	assert.False(t, view.CanOpen(signal.Short))

	// Risk back to normal within the hold window: manual mode sticks.
	calm := arb.Decide(market.Snapshot{FearGreed: 50, LongRatio: 50, ShortRatio: 50}, PositionSummary{})
	view = auth.Apply(calm)
	assert.Equal(t, ModeManual, view.Mode)
}

func TestAuthorityHoldExpires(t *testing.T) {
	auth := NewAuthority(time.Millisecond)
	arb := NewArbiter(nil, 0)

	extreme := arb.Decide(market.Snapshot{
		AlertLevel: market.AlertCritical,
		LongRatio:  80, ShortRatio: 20,
	}, PositionSummary{})
	auth.Apply(extreme)
	time.Sleep(5 * time.Millisecond)

	calm := arb.Decide(market.Snapshot{FearGreed: 50, LongRatio: 50, ShortRatio: 50}, PositionSummary{})
	view := auth.Apply(calm)
	assert.Equal(t, ModeAuto, view.Mode)
	assert.True(t, view.CanOpen(signal.Long))
}

func TestAuthorityPauseBlocksEverything(t *testing.T) {
	auth := NewAuthority(0)
	auth.Pause("operator stop")
	view := auth.View()
	assert.Equal(t, ModePaused, view.Mode)
	assert.False(t, view.CanOpen(signal.Long))
	auth.Resume()
	assert.True(t, auth.View().CanOpen(signal.Short))
}
