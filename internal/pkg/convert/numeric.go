// Package convert holds loose-typed numeric conversion helpers for feed
// payloads that report numbers as strings.
package convert

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ToFloat64 converts common numeric encodings to float64. Unsupported
// types and parse failures read as 0.
func ToFloat64(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f
	default:
		return 0
	}
}
