// Package timerange parses the --begin and --end arguments. Accepted forms
// are a UTC date ("2024-01-31"), a UTC date with a partial time
// ("2024-01-31 13", "2024-01-31 13:05", "2024-01-31 13:05:09"), an RFC 3339
// timestamp, or a span back from now ("30d", "24h", "15m").
package timerange

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"secevents/internal/domain"
)

const dateLayout = "2006-01-02"

var timeLayouts = []string{
	"2006-01-02 15",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

var relativePattern = regexp.MustCompile(`^(\d+)([dhm])$`)

var relativeUnits = map[string]time.Duration{
	"d": 24 * time.Hour,
	"h": time.Hour,
	"m": time.Minute,
}

// ParseBegin parses a range start. A bare date means midnight UTC.
func ParseBegin(s string, now time.Time) (time.Time, error) {
	return parse(s, now, false)
}

// ParseEnd parses an exclusive range end. A bare date covers the whole day,
// so it resolves to the following midnight.
func ParseEnd(s string, now time.Time) (time.Time, error) {
	return parse(s, now, true)
}

func parse(s string, now time.Time, end bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}

	if m := relativePattern.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q: %w", domain.ErrConfiguration, s, err)
		}
		return now.UTC().Add(-time.Duration(n) * relativeUnits[m[2]]), nil
	}

	if t, err := time.Parse(dateLayout, s); err == nil {
		if end {
			t = t.AddDate(0, 0, 1)
		}
		return t, nil
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("%w: cannot parse %q; use yyyy-MM-dd, yyyy-MM-dd HH[:MM[:SS]] or a span like 30d, 24h, 15m",
		domain.ErrConfiguration, s)
}

// CheckLookback rejects a begin older than limit before now. A zero begin
// or limit passes.
func CheckLookback(begin, now time.Time, limit time.Duration) error {
	if begin.IsZero() || limit <= 0 {
		return nil
	}
	if begin.Before(now.Add(-limit)) {
		return fmt.Errorf("%w: begin %s must be within %d days", domain.ErrConfiguration,
			begin.Format(time.RFC3339), int(limit/(24*time.Hour)))
	}
	return nil
}
