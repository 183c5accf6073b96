// Package indicator wraps go-talib with small total functions over candle
// series. Every function reports ErrInsufficientData when the series is
// shorter than the warm-up length, so callers can tell "condition false"
// from "could not evaluate".
package indicator

import (
	"errors"
	"math"

	"github.com/markcheno/go-talib"

	"cryptoden/internal/market"
)

// ErrInsufficientData marks a series too short for the requested indicator.
var ErrInsufficientData = errors.New("insufficient candle data")

// CrossDirection is the sign of a line crossing.
type CrossDirection int

const (
	CrossNone CrossDirection = iota
	CrossUp
	CrossDown
)

// RSI returns the latest Wilder RSI value.
func RSI(candles []market.Candle, period int) (float64, error) {
	if period <= 0 {
		period = 14
	}
	closes := market.Closes(candles)
	if len(closes) <= period {
		return 0, ErrInsufficientData
	}
	series := talib.Rsi(closes, period)
	return lastValid(series)
}

// EMA returns the latest exponential moving average.
func EMA(candles []market.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, ErrInsufficientData
	}
	closes := market.Closes(candles)
	if len(closes) < period {
		return 0, ErrInsufficientData
	}
	series := talib.Ema(closes, period)
	return lastValid(trimLeadingZeros(series))
}

// SMA returns the latest simple moving average.
func SMA(candles []market.Candle, period int) (float64, error) {
	if period <= 0 {
		return 0, ErrInsufficientData
	}
	closes := market.Closes(candles)
	if len(closes) < period {
		return 0, ErrInsufficientData
	}
	series := talib.Sma(closes, period)
	return lastValid(series)
}

// StochK returns the latest slow %K of the stochastic oscillator.
func StochK(candles []market.Candle, period int) (float64, error) {
	k, err := stochKSeries(candles, period)
	if err != nil {
		return 0, err
	}
	return lastValid(k)
}

// StochKPrev returns the %K one candle back, for falling/rising checks.
func StochKPrev(candles []market.Candle, period int) (float64, error) {
	k, err := stochKSeries(candles, period)
	if err != nil {
		return 0, err
	}
	valid := validValues(k)
	if len(valid) < 2 {
		return 0, ErrInsufficientData
	}
	return valid[len(valid)-2], nil
}

func stochKSeries(candles []market.Candle, period int) ([]float64, error) {
	if period <= 0 {
		period = 14
	}
	// slow %K needs the raw window plus two smoothing passes
	if len(candles) < period+6 {
		return nil, ErrInsufficientData
	}
	k, _ := talib.Stoch(market.Highs(candles), market.Lows(candles), market.Closes(candles),
		period, 3, talib.SMA, 3, talib.SMA)
	return k, nil
}

// MACD returns the latest MACD line, signal line and histogram (12/26/9).
func MACD(candles []market.Candle) (line, signal, hist float64, err error) {
	closes := market.Closes(candles)
	if len(closes) < 35 {
		return 0, 0, 0, ErrInsufficientData
	}
	m, s, h := talib.Macd(closes, 12, 26, 9)
	line, err = lastValid(m)
	if err != nil {
		return 0, 0, 0, err
	}
	signal, err = lastValid(s)
	if err != nil {
		return 0, 0, 0, err
	}
	hist, err = lastValid(h)
	if err != nil {
		return 0, 0, 0, err
	}
	return line, signal, hist, nil
}

// MACDCrossDirection reports whether the MACD line crossed its signal line
// on the latest candle.
func MACDCrossDirection(candles []market.Candle) (CrossDirection, error) {
	closes := market.Closes(candles)
	if len(closes) < 36 {
		return CrossNone, ErrInsufficientData
	}
	m, s, _ := talib.Macd(closes, 12, 26, 9)
	diffs := make([]float64, 0, len(m))
	for i := range m {
		if isInvalid(m[i]) || isInvalid(s[i]) {
			continue
		}
		diffs = append(diffs, m[i]-s[i])
	}
	if len(diffs) < 2 {
		return CrossNone, ErrInsufficientData
	}
	prev, curr := diffs[len(diffs)-2], diffs[len(diffs)-1]
	switch {
	case prev <= 0 && curr > 0:
		return CrossUp, nil
	case prev >= 0 && curr < 0:
		return CrossDown, nil
	default:
		return CrossNone, nil
	}
}

// ATR returns the latest average true range.
func ATR(candles []market.Candle, period int) (float64, error) {
	if period <= 0 {
		period = 14
	}
	if len(candles) <= period {
		return 0, ErrInsufficientData
	}
	series := talib.Atr(market.Highs(candles), market.Lows(candles), market.Closes(candles), period)
	return lastValid(series)
}

// BollingerBands returns the latest upper/middle/lower bands (period, 2 dev).
func BollingerBands(candles []market.Candle, period int) (upper, middle, lower float64, err error) {
	if period <= 0 {
		period = 20
	}
	closes := market.Closes(candles)
	if len(closes) < period {
		return 0, 0, 0, ErrInsufficientData
	}
	u, m, l := talib.BBands(closes, period, 2, 2, talib.SMA)
	upper, err = lastValid(u)
	if err != nil {
		return 0, 0, 0, err
	}
	middle, err = lastValid(m)
	if err != nil {
		return 0, 0, 0, err
	}
	lower, err = lastValid(l)
	if err != nil {
		return 0, 0, 0, err
	}
	return upper, middle, lower, nil
}

// VolumeSpike reports whether the latest volume exceeds multiplier times the
// average of the preceding lookback candles.
func VolumeSpike(candles []market.Candle, lookback int, multiplier float64) (bool, error) {
	if lookback <= 0 {
		lookback = 20
	}
	if multiplier <= 0 {
		multiplier = 2
	}
	if len(candles) < lookback+1 {
		return false, ErrInsufficientData
	}
	volumes := market.Volumes(candles)
	latest := volumes[len(volumes)-1]
	window := volumes[len(volumes)-1-lookback : len(volumes)-1]
	var sum float64
	for _, v := range window {
		sum += v
	}
	avg := sum / float64(lookback)
	if avg <= 0 {
		return false, ErrInsufficientData
	}
	return latest > avg*multiplier, nil
}

func isInvalid(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

func validValues(series []float64) []float64 {
	out := make([]float64, 0, len(series))
	for _, v := range series {
		if isInvalid(v) || v == 0 {
			continue
		}
		out = append(out, v)
	}
	return out
}

func lastValid(series []float64) (float64, error) {
	for i := len(series) - 1; i >= 0; i-- {
		if !isInvalid(series[i]) && series[i] != 0 {
			return series[i], nil
		}
	}
	return 0, ErrInsufficientData
}

// trimLeadingZeros drops TALib's zero-seeded warm-up values.
func trimLeadingZeros(series []float64) []float64 {
	start := 0
	for start < len(series) && math.Abs(series[start]) <= 1e-9 {
		start++
	}
	return series[start:]
}
