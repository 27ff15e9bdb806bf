package utils

import (
	"fmt"
	"strconv"
)

// ToString converts various types to string.
func ToString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ToFloat converts various types to float64. Remote table APIs deliver
// every numeric value as a JSON number, but local rows may carry ints,
// strings, or byte slices for the same field.
func ToFloat(val any) float64 {
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case int32:
		return float64(v)
	case uint:
		return float64(v)
	case uint64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case []byte:
		f, _ := strconv.ParseFloat(string(v), 64)
		return f
	default:
		f, _ := strconv.ParseFloat(fmt.Sprintf("%v", v), 64)
		return f
	}
}

// ToStringSlice converts a raw JSON array into a slice of strings.
// Non-array values yield a single-element slice; nil yields nil.
func ToStringSlice(val any) []string {
	switch v := val.(type) {
	case nil:
		return nil
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, ToString(item))
		}
		return out
	default:
		return []string{ToString(v)}
	}
}
