// Package signal defines the shared trade-intent record produced by the
// strategy engine, the grid engine and the director.
package signal

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Opposite returns the mirrored direction.
func (d Direction) Opposite() Direction {
	if d == Long {
		return Short
	}
	return Long
}

func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(Long), "BUY":
		return Long, nil
	case string(Short), "SELL":
		return Short, nil
	default:
		return "", fmt.Errorf("unknown direction: %s", s)
	}
}

// Record is one actionable trade intent. It stays valid until ExpiresAt.
type Record struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Direction   Direction `json:"direction"`
	EntryPrice  float64   `json:"entry_price"`
	StopLoss    float64   `json:"stop_loss"`
	TakeProfit  float64   `json:"take_profit"`
	Source      string    `json:"source"`
	Confidence  float64   `json:"confidence"`
	Reason      string    `json:"reason"`
	GeneratedAt time.Time `json:"generated_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// New builds a record with a fresh id and generation timestamp.
func New(symbol string, direction Direction, entry float64, source string) Record {
	return Record{
		ID:          uuid.NewString(),
		Symbol:      strings.ToUpper(strings.TrimSpace(symbol)),
		Direction:   direction,
		EntryPrice:  entry,
		Source:      source,
		GeneratedAt: time.Now(),
	}
}

// Expired reports whether the record's validity window has passed.
func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}
