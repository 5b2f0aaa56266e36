package collector

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// stringField returns a trimmed string value, or def when missing or not a string.
func stringField(m map[string]any, key, def string) string {
	if s, ok := m[key].(string); ok {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return def
}

// floatField returns a numeric value. Missing or null fields yield 0;
// values of the wrong type are an error.
func floatField(m map[string]any, key string) (float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("field %s: %w", key, err)
		}
		return f, nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("field %s: not a number: %q", key, n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("field %s: unexpected type %T", key, v)
	}
}

func intField(m map[string]any, key string) (int64, error) {
	f, err := floatField(m, key)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt64/2 {
		return 0, fmt.Errorf("field %s: out of range", key)
	}
	return int64(math.Round(f)), nil
}

// optionalInt returns nil for missing or unparsable counts.
func optionalInt(m map[string]any, key string) *int {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	f, err := floatField(m, key)
	if err != nil || f < 0 {
		return nil
	}
	n := int(math.Round(f))
	return &n
}

// idString renders an identifier that may arrive as a number or a string.
func idString(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case string:
		return strings.TrimSpace(v)
	default:
		return ""
	}
}
