package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Timestamp is an exact count of UTC seconds since the Unix epoch.
// Event boundaries are compared for exact equality, so fractional seconds are
// kept as decimals rather than floats.
type Timestamp struct {
	d decimal.Decimal
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999Z07:00",
}

// TimestampFromTime converts t to a Timestamp with nanosecond precision.
func TimestampFromTime(t time.Time) Timestamp {
	sec := decimal.New(t.Unix(), 0)
	nanos := decimal.New(int64(t.Nanosecond()), -9)
	return Timestamp{d: sec.Add(nanos)}
}

// TimestampFromString parses decimal seconds such as "1606151606.239647".
func TimestampFromString(s string) (Timestamp, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Timestamp{}, fmt.Errorf("parse decimal seconds %q: %w", s, err)
	}
	return Timestamp{d: d}, nil
}

// ParseTimestamp converts a raw event timestamp value into a Timestamp.
// Strings may be RFC 3339 (zone optional, UTC assumed) or decimal seconds;
// numbers are seconds since the epoch.
func ParseTimestamp(v any) (Timestamp, error) {
	switch t := v.(type) {
	case json.Number:
		return TimestampFromString(t.String())
	case float64:
		return Timestamp{d: decimal.NewFromFloat(t)}, nil
	case int64:
		return Timestamp{d: decimal.New(t, 0)}, nil
	case int:
		return Timestamp{d: decimal.New(int64(t), 0)}, nil
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return TimestampFromTime(parsed.UTC()), nil
			}
		}
		if ts, err := TimestampFromString(t); err == nil {
			return ts, nil
		}
		return Timestamp{}, fmt.Errorf("unrecognised timestamp %q", t)
	case nil:
		return Timestamp{}, fmt.Errorf("timestamp is null")
	default:
		return Timestamp{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func (t Timestamp) Cmp(o Timestamp) int      { return t.d.Cmp(o.d) }
func (t Timestamp) Equal(o Timestamp) bool   { return t.d.Equal(o.d) }
func (t Timestamp) Before(o Timestamp) bool  { return t.d.LessThan(o.d) }
func (t Timestamp) After(o Timestamp) bool   { return t.d.GreaterThan(o.d) }
func (t Timestamp) IsZero() bool             { return t.d.IsZero() }
func (t Timestamp) String() string           { return t.d.String() }
func (t Timestamp) Decimal() decimal.Decimal { return t.d }

// Time returns the timestamp as a UTC time, truncated to nanoseconds.
func (t Timestamp) Time() time.Time {
	sec := t.d.Floor()
	nanos := t.d.Sub(sec).Shift(9).IntPart()
	return time.Unix(sec.IntPart(), nanos).UTC()
}

// MarshalJSON renders the timestamp as a bare JSON number.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(t.d.String()), nil
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	parsed, err := TimestampFromString(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
