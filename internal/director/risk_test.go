package director

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoden/internal/market"
)

func TestAssessIsPureAndTotal(t *testing.T) {
	a := NewAssessor()

	// Empty snapshot reads as neutral everywhere.
	empty := a.Assess(market.Snapshot{})
	assert.Equal(t, 0, empty.Score)
	assert.Equal(t, RiskNormal, empty.Level)

	snap := market.Snapshot{
		FearGreed:   12,
		LongRatio:   78,
		ShortRatio:  22,
		FundingRate: 0.2,
		OIChange1h:  6,
		AlertLevel:  market.AlertCritical,
	}
	first := a.Assess(snap)
	second := a.Assess(snap)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Level, second.Level)
}

func TestAssessSurvivesExtremeInputs(t *testing.T) {
	a := NewAssessor()
	hostile := []market.Snapshot{
		{FearGreed: -50, LongRatio: -10, FundingRate: math.NaN()},
		{FearGreed: 100000, LongRatio: 100000, FundingRate: math.Inf(1), OIChange1h: math.Inf(-1)},
		{AlertLevel: "garbage", MarketMode: "garbage"},
	}
	for _, snap := range hostile {
		assert.NotPanics(t, func() { a.Assess(snap) })
	}
}

func TestAssessComponentScores(t *testing.T) {
	a := NewAssessor()
	cases := []struct {
		name  string
		snap  market.Snapshot
		score int
	}{
		{"critical alert", market.Snapshot{AlertLevel: market.AlertCritical}, 40},
		{"warning alert", market.Snapshot{AlertLevel: market.AlertWarning}, 25},
		{"attention alert", market.Snapshot{AlertLevel: market.AlertAttention}, 10},
		{"hard skew", market.Snapshot{LongRatio: 76, ShortRatio: 24}, 20},
		{"soft skew", market.Snapshot{LongRatio: 71, ShortRatio: 29}, 15},
		{"hard fear", market.Snapshot{FearGreed: 14}, 15},
		{"max fear", market.Snapshot{FearGreed: 0, FearGreedSet: true}, 15},
		{"soft greed", market.Snapshot{FearGreed: 76}, 8},
		{"event soon", market.Snapshot{ImportantEventSoon: true}, 20},
		{"wait event", market.Snapshot{MarketMode: market.ModeWaitEvent}, 15},
		{"news alert", market.Snapshot{MarketMode: market.ModeNewsAlert}, 10},
		{"hard funding", market.Snapshot{FundingRate: 0.16}, 15},
		{"mid funding", market.Snapshot{FundingRate: -0.12}, 10},
		{"soft funding", market.Snapshot{FundingRate: 0.06}, 5},
		{"fast oi", market.Snapshot{OIChange1h: 5.5}, 10},
		{"slow oi", market.Snapshot{OIChange1h: 3.5}, 5},
		{"fast oi collapse", market.Snapshot{OIChange1h: -8}, 10},
		{"slow oi drain", market.Snapshot{OIChange1h: -3.5}, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.score, a.Assess(tc.snap).Score)
		})
	}
}

func TestAssessAdditiveAndUnclamped(t *testing.T) {
	a := NewAssessor()
	snap := market.Snapshot{
		AlertLevel:         market.AlertCritical, // 40
		LongRatio:          80,                   // 20
		ShortRatio:         20,
		FearGreed:          10,   // 15
		ImportantEventSoon: true, // 20
		FundingRate:        0.2,  // 15
		OIChange1h:         8,    // 10
	}
	reading := a.Assess(snap)
	require.Equal(t, 120, reading.Score)
	assert.Equal(t, RiskExtreme, reading.Level)
	assert.NotEmpty(t, reading.Factors)
}

func TestBucketBoundariesExact(t *testing.T) {
	cases := map[int]RiskLevel{
		0:   RiskNormal,
		24:  RiskNormal,
		25:  RiskElevated,
		44:  RiskElevated,
		45:  RiskHigh,
		59:  RiskHigh,
		60:  RiskExtreme,
		150: RiskExtreme,
	}
	for score, level := range cases {
		assert.Equal(t, level, bucket(score), "score %d", score)
	}
}
