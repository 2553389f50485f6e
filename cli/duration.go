package cli

import (
	"fmt"
	"strconv"
	"time"
)

// parseSpan parses a span like "90m", "2d" or "1w".
func parseSpan(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	if len(s) > 1 {
		var unit time.Duration
		switch s[len(s)-1] {
		case 'd':
			unit = 24 * time.Hour
		case 'w':
			unit = 7 * 24 * time.Hour
		}
		if unit > 0 {
			if n, err := strconv.Atoi(s[:len(s)-1]); err == nil && n >= 0 {
				return time.Duration(n) * unit, nil
			}
		}
	}

	return 0, fmt.Errorf("invalid duration: %q", s)
}

// parseSince parses a --since value: a span back from now, or a date.
func parseSince(s string, now time.Time) (time.Time, error) {
	if d, err := parseSpan(s); err == nil {
		return now.Add(-d), nil
	}

	layouts := []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		time.RFC3339,
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("invalid time: %q", s)
}
