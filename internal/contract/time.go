package contract

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Define the regular expression to capture "N [units]".
var durationRe = regexp.MustCompile(`^(\d+)\s*(year|month|week|day|hour|minute|d|w)s?$`)

// ParseDuration converts strings like "30 days" or "720h" into a single time.Duration.
// It first tries Go's built-in time.ParseDuration for standard formats, then falls back
// to custom parsing for human-readable formats.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	// Try Go's built-in duration parsing first (e.g., "720h", "30m")
	if duration, err := time.ParseDuration(s); err == nil {
		if duration <= 0 {
			return 0, errors.New("duration must be positive")
		}
		return duration, nil
	}

	// Fall back to custom parsing for human-readable formats (e.g., "30 days", "2 weeks", "7d")
	s = strings.ToLower(s)
	matches := durationRe.FindStringSubmatch(s)
	if len(matches) == 0 {
		return 0, fmt.Errorf("invalid duration format: %s", s)
	}

	value, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration quantity: %w", err)
	}
	var unit time.Duration
	switch matches[2] {
	case "year":
		// Approximation: 1 year ≈ 365 days
		unit = 365 * 24 * time.Hour
	case "month":
		// Approximation: 1 month ≈ 30 days
		unit = 30 * 24 * time.Hour
	case "week", "w":
		unit = 7 * 24 * time.Hour
	case "day", "d":
		unit = 24 * time.Hour
	case "hour":
		unit = time.Hour
	case "minute":
		unit = time.Minute
	}

	if value <= 0 {
		return 0, errors.New("duration must be positive")
	}
	if value > int64(math.MaxInt64/unit) {
		return 0, fmt.Errorf("duration %s overflows", s)
	}
	return time.Duration(value) * unit, nil
}

// timestampLayouts are tried in order by ParseTimestamp.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses an event timestamp. It accepts RFC 3339, the
// "2019-11-01 00:00:00 UTC" form of the ecommerce exports and unix seconds.
// Times are returned in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil && secs > 0 && secs < math.MaxInt32*1e3 {
		whole := int64(secs)
		return time.Unix(whole, int64((secs-float64(whole))*1e9)).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
