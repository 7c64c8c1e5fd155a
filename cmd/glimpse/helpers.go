package main

import (
	"fmt"
	"strconv"
	"time"
)

// parseTimeArg accepts an epoch-seconds number, RFC 3339, or the catalog's
// "2006-01-02 15:04:05" layout, and returns epoch seconds.
func parseTimeArg(value string) (float64, error) {
	if value == "" {
		return 0, fmt.Errorf("empty time value")
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		return seconds, nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return float64(ts.Unix()), nil
	}
	if ts, err := time.ParseInLocation("2006-01-02 15:04:05", value, time.Local); err == nil {
		return float64(ts.Unix()), nil
	}
	return 0, fmt.Errorf("unrecognized time %q (want epoch seconds, RFC 3339, or YYYY-MM-DD HH:MM:SS)", value)
}

func truncate(s string, limit int) string {
	if limit <= 3 || len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}

// num digs a float out of a decoded JSON object, returning 0 when absent.
func num(m map[string]any, key string) float64 {
	value, _ := m[key].(float64)
	return value
}

func str(m map[string]any, key string) string {
	value, _ := m[key].(string)
	return value
}

func formatUnix(seconds float64) string {
	if seconds == 0 {
		return ""
	}
	return time.Unix(int64(seconds), 0).UTC().Format("2006-01-02 15:04:05")
}
