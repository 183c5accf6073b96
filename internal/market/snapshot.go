package market

import (
	"errors"
	"strings"
	"time"
)

// ErrDataUnavailable marks a feed that could not produce data this cycle.
// Callers skip the affected work and retry next cycle.
var ErrDataUnavailable = errors.New("market data unavailable")

type MarketMode string

const (
	ModeNormal    MarketMode = "NORMAL"
	ModeNewsAlert MarketMode = "NEWS_ALERT"
	ModeWaitEvent MarketMode = "WAIT_EVENT"
)

type AlertLevel string

const (
	AlertCalm      AlertLevel = "calm"
	AlertAttention AlertLevel = "attention"
	AlertWarning   AlertLevel = "warning"
	AlertCritical  AlertLevel = "critical"
)

// Sentiment counts news items per tone over the recent window.
type Sentiment struct {
	Bearish int `json:"bearish"`
	Neutral int `json:"neutral"`
	Bullish int `json:"bullish"`
}

type Tone string

const (
	ToneBearish Tone = "bearish"
	ToneNeutral Tone = "neutral"
	ToneBullish Tone = "bullish"
)

// Tone reduces the counts to the dominant tone; ties are neutral.
func (s Sentiment) Tone() Tone {
	switch {
	case s.Bullish > s.Bearish:
		return ToneBullish
	case s.Bearish > s.Bullish:
		return ToneBearish
	default:
		return ToneNeutral
	}
}

// Snapshot is the aggregated market picture one risk assessment consumes.
// All fields are optional at capture time; Normalize makes the value total.
type Snapshot struct {
	Symbol               string     `json:"symbol"`
	FearGreed            int        `json:"fear_greed"`
	FearGreedSet         bool       `json:"fear_greed_set"`
	LongRatio            float64    `json:"long_ratio"`
	ShortRatio           float64    `json:"short_ratio"`
	FundingRate          float64    `json:"funding_rate"`
	OIChange1h           float64    `json:"oi_change_1h"`
	OIChange24h          float64    `json:"oi_change_24h"`
	LiquidationsLongUSD  float64    `json:"liquidations_long_usd"`
	LiquidationsShortUSD float64    `json:"liquidations_short_usd"`
	NewsSentiment        Sentiment  `json:"news_sentiment"`
	ImportantEventSoon   bool       `json:"important_event_soon"`
	EventName            string     `json:"event_name"`
	MarketMode           MarketMode `json:"market_mode"`
	AlertLevel           AlertLevel `json:"alert_level"`
	CriticalNewsCount    int        `json:"critical_news_count"`
	CapturedAt           time.Time  `json:"captured_at"`
}

// Normalize substitutes neutral defaults for unset fields so downstream
// consumers never branch on missing data.
func (s Snapshot) Normalize() Snapshot {
	// An index of 0 is a real reading (maximum fear); only an absent or
	// negative value falls back to neutral.
	if s.FearGreed < 0 || (s.FearGreed == 0 && !s.FearGreedSet) {
		s.FearGreed = 50
	}
	s.FearGreedSet = true
	if s.LongRatio <= 0 && s.ShortRatio <= 0 {
		s.LongRatio = 50
		s.ShortRatio = 50
	}
	switch strings.ToUpper(strings.TrimSpace(string(s.MarketMode))) {
	case string(ModeNewsAlert):
		s.MarketMode = ModeNewsAlert
	case string(ModeWaitEvent):
		s.MarketMode = ModeWaitEvent
	default:
		s.MarketMode = ModeNormal
	}
	switch strings.ToLower(strings.TrimSpace(string(s.AlertLevel))) {
	case string(AlertAttention):
		s.AlertLevel = AlertAttention
	case string(AlertWarning):
		s.AlertLevel = AlertWarning
	case string(AlertCritical):
		s.AlertLevel = AlertCritical
	default:
		s.AlertLevel = AlertCalm
	}
	if s.CapturedAt.IsZero() {
		s.CapturedAt = time.Now()
	}
	return s
}
