// Package numeric converts untrusted API field values into floats.
package numeric

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Normalize converts an arbitrary JSON-decoded value to a float64.
// Anything that does not carry a numeric value becomes NaN; it never
// returns an error, so one malformed field cannot abort a whole record.
func Normalize(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// NormalizeRaw decodes a raw JSON value and normalizes it. Hyperliquid
// reports most numeric fields as strings but timestamps as numbers, so
// fields are kept as json.RawMessage until this point.
func NormalizeRaw(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return math.NaN()
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return math.NaN()
	}
	return Normalize(v)
}
