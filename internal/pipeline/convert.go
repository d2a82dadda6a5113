package pipeline

import (
	"strconv"
	"strings"
)

// Loose-map helpers. Scraped payloads arrive as map[string]any with no
// schema guarantees, so every access goes through these.

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

func asSlice(v any) []any {
	if s, ok := v.([]any); ok {
		return s
	}
	return nil
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// toFloat coerces JSON-ish numeric values. Non-numeric input yields 0 with
// ok=false so callers can distinguish absence from an actual zero.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func isNumeric(v any) bool {
	switch v.(type) {
	case float64, float32, int, int64:
		return true
	}
	return false
}
